package capture

import (
	"fmt"
	"image"
	"sync"

	"github.com/blackjack/webcam"
)

// V4L2_PIX_FMT_YUYV, the packed 4:2:2 format every UVC webcam speaks.
const fourccYUYV = webcam.PixelFormat(0x56595559)

// V4L2Device is a Device backed by a Video4Linux2 camera. Opening the
// device node claims it exclusively; a camera already streaming to another
// process fails at Open.
type V4L2Device struct {
	path          string
	width, height uint32

	mu     sync.Mutex
	cam    *webcam.Webcam
	frameW uint32
	frameH uint32
}

// NewV4L2Device creates a device for the given node (default /dev/video0)
// requesting the given capture resolution. The driver may negotiate a
// different resolution; frames report their actual size.
func NewV4L2Device(path string, width, height int) *V4L2Device {
	if path == "" {
		path = "/dev/video0"
	}
	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 720
	}
	return &V4L2Device{path: path, width: uint32(width), height: uint32(height)}
}

func (d *V4L2Device) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cam != nil {
		return fmt.Errorf("capture: %s already open", d.path)
	}

	cam, err := webcam.Open(d.path)
	if err != nil {
		return fmt.Errorf("capture: open %s: %w", d.path, err)
	}

	if _, ok := cam.GetSupportedFormats()[fourccYUYV]; !ok {
		cam.Close()
		return fmt.Errorf("capture: %s does not support YUYV", d.path)
	}

	format, w, h, err := cam.SetImageFormat(fourccYUYV, d.width, d.height)
	if err != nil {
		cam.Close()
		return fmt.Errorf("capture: set format on %s: %w", d.path, err)
	}
	if format != fourccYUYV {
		cam.Close()
		return fmt.Errorf("capture: %s negotiated unexpected format %#x", d.path, format)
	}

	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return fmt.Errorf("capture: start streaming on %s: %w", d.path, err)
	}

	d.cam, d.frameW, d.frameH = cam, w, h
	return nil
}

func (d *V4L2Device) ReadFrame() (image.Image, error) {
	d.mu.Lock()
	cam, w, h := d.cam, d.frameW, d.frameH
	d.mu.Unlock()
	if cam == nil {
		return nil, ErrDeviceUnavailable
	}

	// 5s is far beyond any frame interval; hitting it means the device
	// stalled and counts as a transient read failure upstream.
	if err := cam.WaitForFrame(5); err != nil {
		return nil, fmt.Errorf("capture: wait for frame: %w", err)
	}
	buf, err := cam.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("capture: read frame: %w", err)
	}
	if len(buf) == 0 {
		return nil, fmt.Errorf("capture: empty frame from %s", d.path)
	}
	return yuyvToImage(buf, int(w), int(h))
}

// Close releases the camera. Safe to call multiple times and concurrently
// with ReadFrame; closing unblocks a pending WaitForFrame.
func (d *V4L2Device) Close() error {
	d.mu.Lock()
	cam := d.cam
	d.cam = nil
	d.mu.Unlock()
	if cam == nil {
		return nil
	}
	cam.StopStreaming()
	return cam.Close()
}

// yuyvToImage reinterprets a packed YUYV buffer as a planar 4:2:2 YCbCr
// image without color conversion.
func yuyvToImage(buf []byte, w, h int) (image.Image, error) {
	if w%2 != 0 || len(buf) < w*h*2 {
		return nil, fmt.Errorf("capture: short YUYV frame: %d bytes for %dx%d", len(buf), w, h)
	}
	img := image.NewYCbCr(image.Rect(0, 0, w, h), image.YCbCrSubsampleRatio422)
	for y := 0; y < h; y++ {
		row := buf[y*w*2:]
		yi := y * img.YStride
		ci := y * img.CStride
		for x := 0; x < w; x += 2 {
			img.Y[yi+x] = row[2*x]
			img.Cb[ci+x/2] = row[2*x+1]
			img.Y[yi+x+1] = row[2*x+2]
			img.Cr[ci+x/2] = row[2*x+3]
		}
	}
	return img, nil
}
