package capture

import "time"

// RawScan is a single decoded payload taken from a camera frame. It is
// transient: produced once per unique decode and discarded after the
// pipeline has consumed it.
type RawScan struct {
	Payload    string
	Symbology  string
	CapturedAt time.Time
}

// Decoded is one payload found in a frame by a Decoder.
type Decoded struct {
	Payload   string
	Symbology string
}
