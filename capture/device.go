package capture

import "image"

// Device is an exclusive handle on a frame source. Open claims the device;
// a second Open elsewhere must fail. ReadFrame blocks until the next frame
// is available (bounded by the device driver). Close releases the handle
// and must be safe to call more than once.
type Device interface {
	Open() error
	ReadFrame() (image.Image, error)
	Close() error
}
