//go:build !linux

package capture

import (
	"fmt"
	"image"
	"runtime"
)

// V4L2Device is only functional on Linux. The stub keeps the constructor
// available so configuration code builds everywhere; Open always fails.
type V4L2Device struct {
	path string
}

func NewV4L2Device(path string, width, height int) *V4L2Device {
	if path == "" {
		path = "/dev/video0"
	}
	return &V4L2Device{path: path}
}

func (d *V4L2Device) Open() error {
	return fmt.Errorf("capture: V4L2 device %s not supported on %s", d.path, runtime.GOOS)
}

func (d *V4L2Device) ReadFrame() (image.Image, error) {
	return nil, ErrDeviceUnavailable
}

func (d *V4L2Device) Close() error { return nil }
