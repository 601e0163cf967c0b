package scangate

import (
	"log/slog"
	"time"

	"scangate/capture"
	"scangate/history"
	"scangate/sheetsync"
)

// Config assembles the pipeline. Zero values take defaults; the Logger is
// propagated to components that do not set their own.
type Config struct {
	Capture capture.Config
	Sheets  sheetsync.Config
	History history.Config

	// SheetsAPI, when set, replaces the Google-backed transport. Used by
	// tests and embedders with their own backend.
	SheetsAPI sheetsync.API

	// AuditPath is the SQLite audit log location. Empty disables auditing.
	AuditPath string

	// SyncWorkers is the number of concurrent remote sync workers.
	// Default 2.
	SyncWorkers int

	// ShutdownGrace bounds how long Stop waits for in-flight syncs before
	// canceling them. Default 5s.
	ShutdownGrace time.Duration

	// MaxPayloadBytes rejects oversized payloads before resolution.
	// Default 10000.
	MaxPayloadBytes int

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.SyncWorkers <= 0 {
		c.SyncWorkers = 2
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 5 * time.Second
	}
	if c.MaxPayloadBytes <= 0 {
		c.MaxPayloadBytes = 10000
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Capture.Logger == nil {
		c.Capture.Logger = c.Logger
	}
	if c.Sheets.Logger == nil {
		c.Sheets.Logger = c.Logger
	}
	if c.History.Logger == nil {
		c.History.Logger = c.Logger
	}
}
