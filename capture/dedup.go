package capture

import "sync"

// Deduper suppresses repeated identical payloads from consecutive frames,
// so a code sitting in front of the camera is processed once rather than
// thirty times a second.
//
// It holds a single last-payload value, not a set: after any different
// payload is seen, the previous one may be scanned again.
type Deduper struct {
	mu   sync.Mutex
	last string
}

// NewDeduper returns an empty Deduper.
func NewDeduper() *Deduper {
	return &Deduper{}
}

// Submit reports whether payload should be processed. It returns true iff
// payload differs from the immediately previous submission, and records it
// as the new last value when it does.
func (d *Deduper) Submit(payload string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if payload == d.last {
		return false
	}
	d.last = payload
	return true
}

// Reset clears the last payload so the next submission is always processed.
func (d *Deduper) Reset() {
	d.mu.Lock()
	d.last = ""
	d.mu.Unlock()
}
