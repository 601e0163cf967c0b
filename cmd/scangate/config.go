package main

import (
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"scangate"
	"scangate/capture"
	"scangate/history"
	"scangate/sheetsync"
)

// fileConfig is the YAML configuration of the daemon.
type fileConfig struct {
	Camera struct {
		Device        string        `yaml:"device"`
		Width         int           `yaml:"width"`
		Height        int           `yaml:"height"`
		Interval      time.Duration `yaml:"interval"`
		PreviewWidth  int           `yaml:"preview_width"`
		PreviewHeight int           `yaml:"preview_height"`
	} `yaml:"camera"`

	Sheets struct {
		SpreadsheetID   string `yaml:"spreadsheet_id"`
		ScanSheet       string `yaml:"scan_sheet"`
		RosterSheet     string `yaml:"roster_sheet"`
		CredentialsFile string `yaml:"credentials_file"`
		TokenFile       string `yaml:"token_file"`
		Status          string `yaml:"status"`
	} `yaml:"sheets"`

	History struct {
		Path          string        `yaml:"path"`
		MaxEntries    int           `yaml:"max_entries"`
		FlushInterval time.Duration `yaml:"flush_interval"`
	} `yaml:"history"`

	AuditPath   string `yaml:"audit_path"`
	SyncWorkers int    `yaml:"sync_workers"`
}

func loadConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, err
	}
	fc.applyDefaults()
	return &fc, nil
}

func (fc *fileConfig) applyDefaults() {
	if fc.History.Path == "" {
		fc.History.Path = "scan_history.json"
	}
	if fc.AuditPath == "" {
		fc.AuditPath = "scangate.db"
	}
}

// serviceConfig maps the file configuration onto the pipeline config.
// Device and Decoder are wired by the caller.
func (fc *fileConfig) serviceConfig(logger *slog.Logger) scangate.Config {
	return scangate.Config{
		Capture: capture.Config{
			Interval:      fc.Camera.Interval,
			PreviewWidth:  fc.Camera.PreviewWidth,
			PreviewHeight: fc.Camera.PreviewHeight,
		},
		Sheets: sheetsync.Config{
			SpreadsheetID:   fc.Sheets.SpreadsheetID,
			ScanSheet:       fc.Sheets.ScanSheet,
			RosterSheet:     fc.Sheets.RosterSheet,
			CredentialsFile: fc.Sheets.CredentialsFile,
			TokenFile:       fc.Sheets.TokenFile,
			Status:          fc.Sheets.Status,
		},
		History: history.Config{
			Path:          fc.History.Path,
			MaxEntries:    fc.History.MaxEntries,
			FlushInterval: fc.History.FlushInterval,
		},
		AuditPath:   fc.AuditPath,
		SyncWorkers: fc.SyncWorkers,
		Logger:      logger,
	}
}
