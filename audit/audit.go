// Package audit persists pipeline events to a SQLite log asynchronously.
//
// Every stage of the scan pipeline emits an Event: the raw detection, the
// resolution outcome, sync results, device failures, roster loads. Events
// are queued on a bounded buffer and written in batches by a background
// goroutine, so recording never blocks the capture path; under sustained
// pressure events are dropped rather than backing up the pipeline.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event kinds.
const (
	KindScan         = "scan"
	KindResolved     = "resolved"
	KindSyncOK       = "sync_ok"
	KindSyncFailed   = "sync_failed"
	KindDeviceError  = "device_error"
	KindRosterLoaded = "roster_loaded"
)

// Schema for the scan_events table. Applied by Open.
const Schema = `
CREATE TABLE IF NOT EXISTS scan_events (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	payload_prefix TEXT,
	symbology TEXT,
	matched INTEGER NOT NULL DEFAULT 0,
	detail TEXT,
	timestamp INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scan_events_ts ON scan_events(timestamp);
CREATE INDEX IF NOT EXISTS idx_scan_events_kind ON scan_events(kind);
`

// Event is one audit record. PayloadPrefix holds at most the leading
// characters of the payload; full payloads stay out of the audit trail.
type Event struct {
	ID            string
	Kind          string
	PayloadPrefix string
	Symbology     string
	Matched       bool
	Detail        string
	Timestamp     time.Time
}

// Open opens (creating if needed) the audit database at path and applies
// the schema. WAL mode and a busy timeout are set for concurrent readers.
func Open(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("audit: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open: %w", err)
	}
	if path == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("audit: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: apply schema: %w", err)
	}
	return db, nil
}

// Log writes events to the scan_events table asynchronously.
type Log struct {
	db     *sql.DB
	logger *slog.Logger
	ch     chan *Event
	done   chan struct{}
	once   sync.Once
}

// NewLog creates an event log backed by the given database connection and
// starts its flush goroutine.
func NewLog(db *sql.DB, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Log{
		db:     db,
		logger: logger,
		ch:     make(chan *Event, 1024),
		done:   make(chan struct{}),
	}
	go l.flushLoop()
	return l
}

// Record queues an event for async persistence. Non-blocking; drops when
// the buffer is full. Missing ID and Timestamp are filled in.
func (l *Log) Record(e *Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	select {
	case l.ch <- e:
	default:
	}
}

// Close drains the buffer and stops the flush goroutine. Idempotent.
func (l *Log) Close() error {
	l.once.Do(func() {
		close(l.ch)
		<-l.done
	})
	return nil
}

// Recent returns up to limit events, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Event, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, kind, payload_prefix, symbology, matched, detail, timestamp
		FROM scan_events ORDER BY timestamp DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query recent: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var matched int
		var ts int64
		if err := rows.Scan(&e.ID, &e.Kind, &e.PayloadPrefix, &e.Symbology, &matched, &e.Detail, &ts); err != nil {
			return nil, fmt.Errorf("audit: scan row: %w", err)
		}
		e.Matched = matched != 0
		e.Timestamp = time.UnixMicro(ts)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (l *Log) flushLoop() {
	defer close(l.done)

	batch := make([]*Event, 0, 64)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-l.ch:
			if !ok {
				l.flushBatch(batch)
				return
			}
			batch = append(batch, e)
			if len(batch) >= 64 {
				l.flushBatch(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				l.flushBatch(batch)
				batch = batch[:0]
			}
		}
	}
}

func (l *Log) flushBatch(batch []*Event) {
	if len(batch) == 0 {
		return
	}

	tx, err := l.db.Begin()
	if err != nil {
		l.logger.Error("audit: begin tx", "error", err)
		return
	}

	stmt, err := tx.Prepare(`INSERT INTO scan_events
		(id, kind, payload_prefix, symbology, matched, detail, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		l.logger.Error("audit: prepare", "error", err)
		return
	}
	defer stmt.Close()

	for _, e := range batch {
		matched := 0
		if e.Matched {
			matched = 1
		}
		if _, err := stmt.Exec(e.ID, e.Kind, e.PayloadPrefix, e.Symbology, matched, e.Detail, e.Timestamp.UnixMicro()); err != nil {
			l.logger.Error("audit: insert", "error", err)
		}
	}

	if err := tx.Commit(); err != nil {
		l.logger.Error("audit: commit", "error", err)
	}
}
