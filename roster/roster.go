// Package roster resolves scanned payloads to known identities.
//
// A Resolver holds a read-mostly snapshot of the reference roster, loaded
// from a tabular range (header row + data rows). Column roles are
// discovered from the header by keyword heuristics on every load;
// the roster schema is not guaranteed stable across spreadsheets. Loads replace
// the snapshot atomically; readers see either the old or the new roster,
// never a partial one.
//
// Resolve first tries an exact id lookup against the snapshot, then falls
// back to an ordered chain of heuristic name extractors over the raw
// payload text (see extract.go).
package roster

import (
	"log/slog"
	"strings"
	"sync"
)

// Record is one roster row. ID is trimmed; Raw preserves the full original
// row including columns the resolver does not interpret.
type Record struct {
	ID        string
	FirstName string
	LastName  string
	Raw       []string
}

// columns holds discovered header roles. combined is -1 when the roster
// uses separate first/last columns.
type columns struct {
	id       int
	first    int
	last     int
	combined int
}

var idKeywords = []string{"id", "volunteer", "number", "code"}

// detectColumns discovers column roles from the header row. The first
// header containing an id keyword wins the id role; for name roles the
// last matching header wins, mirroring how operators tend to append
// corrected columns on the right.
func detectColumns(header []string) columns {
	cols := columns{id: 0, first: 1, last: 2, combined: -1}

	for i, h := range header {
		lower := strings.ToLower(strings.TrimSpace(h))
		matched := false
		for _, kw := range idKeywords {
			if strings.Contains(lower, kw) {
				matched = true
				break
			}
		}
		if matched {
			cols.id = i
			break
		}
	}

	for i, h := range header {
		lower := strings.ToLower(h)
		hasFirst := strings.Contains(lower, "first")
		hasLast := strings.Contains(lower, "last")
		hasName := strings.Contains(lower, "name")
		switch {
		case hasFirst && hasName:
			cols.first = i
		case hasLast && hasName:
			cols.last = i
		case hasName:
			cols.combined = i
		}
	}

	return cols
}

type snapshot struct {
	records []Record
}

// Resolver maps payloads to ResolvedScans against the current roster
// snapshot. Safe for concurrent use; Load swaps the snapshot under a lock.
type Resolver struct {
	mu     sync.RWMutex
	snap   *snapshot
	logger *slog.Logger
}

// NewResolver returns a Resolver with no roster loaded. Until the first
// Load, every lookup behaves as not-found and resolution falls through to
// heuristic extraction.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{logger: logger}
}

// Load replaces the roster from a full tabular range (header + data rows).
// It returns the number of data rows loaded; an empty range or a range with
// only a header yields 0 without error.
func (r *Resolver) Load(rows [][]string) (int, error) {
	snap := &snapshot{}
	if len(rows) > 1 {
		cols := detectColumns(rows[0])
		snap.records = make([]Record, 0, len(rows)-1)
		for _, row := range rows[1:] {
			snap.records = append(snap.records, buildRecord(row, cols))
		}
	}

	r.mu.Lock()
	r.snap = snap
	r.mu.Unlock()

	r.logger.Info("roster: loaded", "records", len(snap.records))
	return len(snap.records), nil
}

// Loaded reports whether a roster snapshot with data rows is present.
func (r *Resolver) Loaded() bool {
	snap := r.snapshot()
	return snap != nil && len(snap.records) > 0
}

// Count returns the number of records in the current snapshot.
func (r *Resolver) Count() int {
	snap := r.snapshot()
	if snap == nil {
		return 0
	}
	return len(snap.records)
}

func (r *Resolver) snapshot() *snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

// lookup scans the snapshot for a record whose id equals payload
// case-insensitively. O(n) per call by design: rosters are hundreds of
// rows and column roles can change between loads, so no index is kept.
func (r *Resolver) lookup(trimmed string) (Record, bool) {
	snap := r.snapshot()
	if snap == nil || len(snap.records) == 0 {
		r.logger.Debug("roster: lookup with no roster loaded")
		return Record{}, false
	}
	for _, rec := range snap.records {
		if rec.ID != "" && strings.EqualFold(rec.ID, trimmed) {
			return rec, true
		}
	}
	return Record{}, false
}

func buildRecord(row []string, cols columns) Record {
	rec := Record{Raw: append([]string(nil), row...)}
	if cols.id < len(row) {
		rec.ID = strings.TrimSpace(row[cols.id])
	}
	if cols.combined >= 0 && cols.combined < len(row) {
		// Combined name column: "Last, First" when a comma is present,
		// otherwise the whole value is the first name.
		name := strings.TrimSpace(row[cols.combined])
		if last, first, ok := strings.Cut(name, ","); ok {
			rec.LastName = strings.TrimSpace(last)
			rec.FirstName = strings.TrimSpace(first)
		} else {
			rec.FirstName = name
		}
		return rec
	}
	if cols.first < len(row) {
		rec.FirstName = strings.TrimSpace(row[cols.first])
	}
	if cols.last < len(row) {
		rec.LastName = strings.TrimSpace(row[cols.last])
	}
	return rec
}
