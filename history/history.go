// Package history keeps a bounded in-memory log of scans and persists it
// periodically as a JSON snapshot file.
//
// The store is the local record of everything scanned, matched or not. It
// holds at most MaxEntries entries, evicting the oldest, and a background
// goroutine flushes dirty state to disk every FlushInterval. Snapshots are
// written atomically (temp file then rename) so a crash never leaves a
// truncated file. A corrupt or missing snapshot on load is logged and
// skipped; the store starts empty rather than failing.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry is one recorded scan.
type Entry struct {
	Timestamp   time.Time `json:"timestamp"`
	Data        string    `json:"data"`
	BarcodeType string    `json:"barcode_type"`
	Source      string    `json:"source"`
}

// Config controls a Store. Zero values take defaults; Path is required.
type Config struct {
	// Path is the snapshot file location.
	Path string
	// MaxEntries bounds the in-memory log. Default 1000.
	MaxEntries int
	// FlushInterval is how often dirty state is written out. Default 5m.
	FlushInterval time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.MaxEntries <= 0 {
		c.MaxEntries = 1000
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = 5 * time.Minute
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Store is a bounded scan log with periodic persistence. Safe for
// concurrent use.
type Store struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	entries []Entry
	dirty   bool
	gen     uint64 // bumped by every Append

	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New opens a Store at cfg.Path, loading any existing snapshot, and starts
// the flush goroutine. A corrupt snapshot is not an error.
func New(cfg Config) (*Store, error) {
	cfg.defaults()
	if cfg.Path == "" {
		return nil, errors.New("history: Path is required")
	}

	s := &Store{
		cfg:    cfg,
		logger: cfg.Logger,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	s.load()
	go s.flushLoop()
	return s, nil
}

// Append records a scan, evicting the oldest entry when the log is full.
func (s *Store) Append(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	s.mu.Lock()
	s.entries = append(s.entries, e)
	if n := len(s.entries) - s.cfg.MaxEntries; n > 0 {
		s.entries = append(s.entries[:0], s.entries[n:]...)
	}
	s.dirty = true
	s.gen++
	s.mu.Unlock()
}

// Entries returns a copy of the log, oldest first.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of entries currently held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Flush writes the current log to disk if it changed since the last flush.
func (s *Store) Flush() error {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	gen := s.gen
	snapshot := make([]Entry, len(s.entries))
	copy(snapshot, s.entries)
	s.mu.Unlock()

	if err := s.write(snapshot); err != nil {
		return err
	}

	s.mu.Lock()
	// Only mark clean when nothing was appended while the snapshot was
	// being written; a concurrent Append must survive to the next flush.
	if s.gen == gen {
		s.dirty = false
	}
	s.mu.Unlock()
	return nil
}

// Close stops the flush goroutine and performs a final flush. Idempotent.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.quit)
		<-s.done
		err = s.Flush()
	})
	return err
}

func (s *Store) flushLoop() {
	defer close(s.done)
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.Flush(); err != nil {
				s.logger.Warn("history: periodic flush failed", "error", err)
			}
		case <-s.quit:
			return
		}
	}
}

func (s *Store) load() {
	data, err := os.ReadFile(s.cfg.Path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("history: failed to read snapshot", "path", s.cfg.Path, "error", err)
		}
		return
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		s.logger.Warn("history: corrupt snapshot, starting empty",
			"path", s.cfg.Path, "error", err)
		return
	}
	if n := len(entries) - s.cfg.MaxEntries; n > 0 {
		entries = entries[n:]
	}
	s.entries = entries
	s.logger.Info("history: snapshot loaded", "path", s.cfg.Path, "entries", len(entries))
}

// write persists entries atomically: temp file in the same directory,
// fsync-free rename over the target.
func (s *Store) write(entries []Entry) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("history: encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.cfg.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("history: create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return fmt.Errorf("history: create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("history: write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("history: close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.cfg.Path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("history: replace snapshot: %w", err)
	}
	return nil
}
