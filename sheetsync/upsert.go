package sheetsync

import (
	"context"
	"strings"
	"sync"
	"time"

	"scangate/roster"
)

// Upsert records a resolved scan in the scan sheet. Unmatched scans are
// not written: the remote sheet holds attendance for known ids only, so
// the call is a logged no-op for them. For matched scans the id column is
// read first and the row appended only when the id is absent. Calls for
// the same id are serialized, so concurrent duplicates produce one row.
func (c *Client) Upsert(ctx context.Context, scan roster.ResolvedScan) error {
	if !scan.Matched {
		c.logger.Debug("sheetsync: skipping unmatched scan",
			"display_name", scan.DisplayName)
		return nil
	}

	api := c.currentAPI()
	if api == nil {
		return ErrNotConnected
	}

	id := strings.TrimSpace(scan.Payload)
	unlock := c.locks.lock(strings.ToLower(id))
	defer unlock()

	var rows [][]string
	err := c.call(ctx, "read scan ids", func(ctx context.Context) error {
		r, err := api.Get(ctx, c.cfg.ScanSheet+"!A:A")
		rows = r
		return err
	})
	if err != nil {
		return err
	}

	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		if len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), id) {
			c.logger.Debug("sheetsync: id already recorded", "id", id, "row", i+1)
			return nil
		}
	}

	now := time.Now()
	record := []string{
		id,
		now.Format("2006-01-02"),
		now.Format("03:04:05 PM"),
		c.cfg.Status,
	}
	err = c.call(ctx, "append scan", func(ctx context.Context) error {
		return api.Append(ctx, c.cfg.ScanSheet+"!A:D", [][]string{record})
	})
	if err != nil {
		return err
	}
	c.logger.Info("sheetsync: scan recorded", "id", id, "name", scan.DisplayName)
	return nil
}

// keyedMutex serializes critical sections per key. Entries are refcounted
// and removed once the last holder unlocks, so the map does not grow with
// the id space.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{entries: make(map[string]*keyedEntry)}
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	e := k.entries[key]
	if e == nil {
		e = &keyedEntry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}
