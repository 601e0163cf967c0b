// Package scangate wires camera capture, identity resolution, local
// history and remote spreadsheet sync into one attendance pipeline.
//
// A Service owns one capture Loop, one roster Resolver, one sheet Client,
// a history Store and an optional audit Log. Scans flow from the capture
// goroutine through a single dispatch goroutine, which validates,
// deduplicates and resolves them, records them locally, notifies the
// Events callbacks, and hands matched scans to a bounded worker pool for
// remote sync. The capture path never blocks on the network.
package scangate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"scangate/audit"
	"scangate/capture"
	"scangate/history"
	"scangate/roster"
	"scangate/sheetsync"
)

// Service is the assembled pipeline. Create with New, then Connect and
// LoadRoster for remote sync, Start for the camera. Safe for concurrent
// use.
type Service struct {
	cfg    Config
	logger *slog.Logger
	events Events

	loop     *capture.Loop
	dedup    *capture.Deduper
	resolver *roster.Resolver
	sheets   *sheetsync.Client
	history  *history.Store
	auditDB  *sql.DB
	auditLog *audit.Log
	pool     *syncPool

	mu      sync.Mutex
	running bool
	quit    chan struct{}
	done    chan struct{}

	closeOnce sync.Once
}

// New assembles a Service. The history store and audit log are opened
// immediately; the camera and the remote session are not touched until
// Start and Connect.
func New(cfg Config, events Events) (*Service, error) {
	cfg.defaults()

	hist, err := history.New(cfg.History)
	if err != nil {
		return nil, err
	}

	sheets := sheetsync.New(cfg.Sheets)
	if cfg.SheetsAPI != nil {
		sheets = sheetsync.NewWithAPI(cfg.Sheets, cfg.SheetsAPI)
	}

	s := &Service{
		cfg:      cfg,
		logger:   cfg.Logger,
		events:   events,
		dedup:    capture.NewDeduper(),
		resolver: roster.NewResolver(cfg.Logger),
		sheets:   sheets,
		history:  hist,
	}

	if cfg.AuditPath != "" {
		db, err := audit.Open(cfg.AuditPath)
		if err != nil {
			hist.Close()
			return nil, err
		}
		s.auditDB = db
		s.auditLog = audit.NewLog(db, cfg.Logger)
	}

	s.loop = capture.NewLoop(cfg.Capture)
	s.pool = newSyncPool(cfg.SyncWorkers, s.syncScan, cfg.Logger)
	return s, nil
}

// Connect establishes the remote spreadsheet session and reports the
// outcome through OnCredentialStatus. Safe to call again after a failure.
func (s *Service) Connect(ctx context.Context) error {
	title, err := s.sheets.Connect(ctx)
	if err != nil {
		s.events.credentialStatus(false, err.Error())
		return err
	}
	s.events.credentialStatus(true, title)
	return nil
}

// LoadRoster pulls the roster sheet and replaces the resolver snapshot.
// It returns the number of records loaded.
func (s *Service) LoadRoster(ctx context.Context) (int, error) {
	rows, err := s.sheets.MasterList(ctx)
	if err != nil {
		return 0, err
	}
	n, err := s.resolver.Load(rows)
	if err != nil {
		return 0, err
	}
	s.audit(&audit.Event{Kind: audit.KindRosterLoaded, Detail: fmt.Sprintf("%d records", n)})
	s.events.status("roster", fmt.Sprintf("loaded %d records", n))
	return n, nil
}

// Start opens the camera and begins processing scans. It fails with
// capture.ErrDeviceUnavailable when the camera cannot be claimed.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scangate: already running")
	}

	s.dedup.Reset()
	if err := s.loop.Start(); err != nil {
		return err
	}

	s.quit = make(chan struct{})
	s.done = make(chan struct{})
	s.running = true
	go s.dispatch(s.quit, s.done)

	s.events.status("capture", "scanning started")
	return nil
}

// Stop halts the camera and the dispatch goroutine. The service can be
// started again afterwards. Idempotent.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	quit, done := s.quit, s.done
	s.mu.Unlock()

	s.loop.Stop()
	close(quit)
	<-done
	s.events.status("capture", "scanning stopped")
}

// Close stops everything and releases the local stores: in-flight syncs
// get ShutdownGrace to finish, the history store flushes, the audit log
// drains. The service is unusable afterwards.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.Stop()
		s.pool.shutdown(s.cfg.ShutdownGrace)
		err = s.history.Close()
		if s.auditLog != nil {
			s.auditLog.Close()
			s.auditDB.Close()
		}
		s.sheets.Close()
	})
	return err
}

// Submit feeds a payload into the pipeline by hand, bypassing the camera.
// Used for keyboard entry and tests. It returns a *ValidationError for
// rejected payloads; duplicates are silently ignored. Callbacks for the
// scan run synchronously on the calling goroutine.
func (s *Service) Submit(payload, symbology, source string) error {
	return s.handleScan(payload, symbology, time.Now(), source)
}

// History returns the local scan log.
func (s *Service) History() *history.Store { return s.history }

// Resolver returns the identity resolver, for roster inspection.
func (s *Service) Resolver() *roster.Resolver { return s.resolver }

// Connected reports whether the remote session is established.
func (s *Service) Connected() bool { return s.sheets.IsConnected() }

func (s *Service) dispatch(quit, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-quit:
			return
		case scan := <-s.loop.Scans():
			if err := s.handleScan(scan.Payload, scan.Symbology, scan.CapturedAt, "camera"); err != nil {
				s.logger.Warn("scangate: scan rejected", "error", err)
			}
		case frame := <-s.loop.Frames():
			s.events.previewFrame(frame)
		case err := <-s.loop.Fatal():
			s.audit(&audit.Event{Kind: audit.KindDeviceError, Detail: err.Error()})
			s.events.status("camera", "camera lost: "+err.Error())
		}
	}
}

// handleScan is the single funnel for camera and manual scans: validate,
// deduplicate, resolve, record, notify, and queue matched scans for sync.
func (s *Service) handleScan(payload, symbology string, capturedAt time.Time, source string) error {
	trimmed := strings.TrimSpace(payload)
	if trimmed == "" {
		return &ValidationError{Reason: "empty payload"}
	}
	if len(trimmed) > s.cfg.MaxPayloadBytes {
		return &ValidationError{Reason: fmt.Sprintf("payload exceeds %d bytes", s.cfg.MaxPayloadBytes)}
	}
	if !s.dedup.Submit(trimmed) {
		return nil
	}

	s.audit(&audit.Event{
		Kind:          audit.KindScan,
		PayloadPrefix: prefix(trimmed),
		Symbology:     symbology,
		Detail:        source,
	})

	resolved := s.resolver.Resolve(trimmed, symbology, capturedAt)
	s.history.Append(history.Entry{
		Timestamp:   capturedAt,
		Data:        trimmed,
		BarcodeType: symbology,
		Source:      source,
	})
	s.events.resolvedScan(resolved)
	s.audit(&audit.Event{
		Kind:          audit.KindResolved,
		PayloadPrefix: prefix(trimmed),
		Symbology:     symbology,
		Matched:       resolved.Matched,
		Detail:        resolved.DisplayName,
	})

	if resolved.Matched {
		s.pool.submit(resolved)
	} else {
		s.events.status("scan", "no roster match: "+resolved.DisplayName)
	}
	return nil
}

// syncScan runs on the worker pool.
func (s *Service) syncScan(ctx context.Context, scan roster.ResolvedScan) {
	if err := s.sheets.Upsert(ctx, scan); err != nil {
		s.logger.Error("scangate: sync failed", "name", scan.DisplayName, "error", err)
		s.audit(&audit.Event{
			Kind:          audit.KindSyncFailed,
			PayloadPrefix: prefix(scan.Payload),
			Matched:       true,
			Detail:        err.Error(),
		})
		var ae *sheetsync.AuthError
		if errors.As(err, &ae) {
			s.events.credentialStatus(false, err.Error())
		}
		s.events.status("sync", "sync failed: "+scan.DisplayName)
		return
	}
	s.audit(&audit.Event{
		Kind:          audit.KindSyncOK,
		PayloadPrefix: prefix(scan.Payload),
		Matched:       true,
		Detail:        scan.DisplayName,
	})
	s.events.status("sync", "recorded: "+scan.DisplayName)
}

func (s *Service) audit(e *audit.Event) {
	if s.auditLog != nil {
		s.auditLog.Record(e)
	}
}

func prefix(s string) string {
	const max = 32
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
