// Command scangate is the scan ingestion daemon: camera capture, roster
// resolution, local history, and Google Sheets sync.
//
// Usage:
//
//	scangate -config scangate.yaml
//	scangate -config scangate.yaml -offline   # skip the remote session
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "modernc.org/sqlite"

	"scangate"
	"scangate/capture"
	"scangate/roster"
)

func main() {
	configPath := flag.String("config", "scangate.yaml", "path to scangate.yaml config file")
	offline := flag.Bool("offline", false, "skip the remote spreadsheet session")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *offline); err != nil {
		logger.Error("scangate: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath string, offline bool) error {
	fc, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cfg := fc.serviceConfig(logger)
	cfg.Capture.Device = capture.NewV4L2Device(fc.Camera.Device, fc.Camera.Width, fc.Camera.Height)
	cfg.Capture.Decoder = capture.NewZXingDecoder()

	events := scangate.Events{
		OnResolvedScan: func(scan roster.ResolvedScan) {
			logger.Info("scan",
				"name", scan.DisplayName,
				"matched", scan.Matched,
				"source", string(scan.Source),
				"symbology", scan.Symbology)
		},
		OnStatus: func(kind, message string) {
			logger.Info("status", "kind", kind, "message", message)
		},
		OnCredentialStatus: func(connected bool, detail string) {
			logger.Info("credentials", "connected", connected, "detail", detail)
		},
	}

	svc, err := scangate.New(cfg, events)
	if err != nil {
		return err
	}
	defer svc.Close()

	if !offline {
		if err := svc.Connect(ctx); err != nil {
			logger.Warn("scangate: remote session unavailable, running offline", "error", err)
		} else if _, err := svc.LoadRoster(ctx); err != nil {
			logger.Warn("scangate: roster load failed", "error", err)
		}
	}

	if err := svc.Start(); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}

	<-ctx.Done()
	logger.Info("scangate: shutting down")
	return nil
}
