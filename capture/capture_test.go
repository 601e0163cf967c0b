package capture

import (
	"errors"
	"image"
	"sync"
	"testing"
	"time"
)

// fakeDevice produces a fixed frame and counts lifecycle calls.
type fakeDevice struct {
	mu        sync.Mutex
	opened    int
	closed    int
	openErr   error
	readErr   error
	failReads int // fail this many reads, then succeed
	frame     image.Image
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{frame: image.NewGray(image.Rect(0, 0, 64, 64))}
}

func (d *fakeDevice) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return d.openErr
	}
	d.opened++
	return nil
}

func (d *fakeDevice) ReadFrame() (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.readErr != nil {
		return nil, d.readErr
	}
	if d.failReads > 0 {
		d.failReads--
		return nil, errors.New("transient read failure")
	}
	return d.frame, nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed++
	return nil
}

func (d *fakeDevice) closeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// scriptDecoder returns each result set once, then nothing.
type scriptDecoder struct {
	mu      sync.Mutex
	results [][]Decoded
}

func (s *scriptDecoder) Decode(image.Image) ([]Decoded, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.results) == 0 {
		return nil, nil
	}
	r := s.results[0]
	s.results = s.results[1:]
	return r, nil
}

func testConfig(dev Device, dec Decoder) Config {
	return Config{
		Device:          dev,
		Decoder:         dec,
		Interval:        time.Millisecond,
		ReadRetryDelay:  time.Millisecond,
		MaxReadFailures: 3,
		StopTimeout:     time.Second,
	}
}

func TestLoop_EmitsDecodedScans(t *testing.T) {
	dev := newFakeDevice()
	dec := &scriptDecoder{results: [][]Decoded{
		{{Payload: "V001", Symbology: "QR_CODE"}},
	}}
	l := NewLoop(testConfig(dev, dec))
	if err := l.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(l.Stop)

	select {
	case scan := <-l.Scans():
		if scan.Payload != "V001" || scan.Symbology != "QR_CODE" {
			t.Fatalf("unexpected scan: %+v", scan)
		}
		if scan.CapturedAt.IsZero() {
			t.Fatal("CapturedAt not set")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no scan emitted")
	}
}

func TestLoop_EmitsPreviewFrames(t *testing.T) {
	dev := newFakeDevice()
	l := NewLoop(testConfig(dev, &scriptDecoder{}))
	if err := l.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(l.Stop)

	select {
	case frame := <-l.Frames():
		if frame == nil {
			t.Fatal("nil preview frame")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no preview frame emitted")
	}
}

func TestLoop_StartFailsWhenDeviceUnavailable(t *testing.T) {
	dev := newFakeDevice()
	dev.openErr = errors.New("busy")
	l := NewLoop(testConfig(dev, &scriptDecoder{}))

	err := l.Start()
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("got %v, want ErrDeviceUnavailable", err)
	}
}

func TestLoop_StopReleasesDeviceAndIsIdempotent(t *testing.T) {
	dev := newFakeDevice()
	l := NewLoop(testConfig(dev, &scriptDecoder{}))
	if err := l.Start(); err != nil {
		t.Fatal(err)
	}

	l.Stop()
	if dev.closeCount() != 1 {
		t.Fatalf("device closed %d times, want 1", dev.closeCount())
	}
	l.Stop()
	if dev.closeCount() != 1 {
		t.Fatalf("second Stop closed the device again (%d)", dev.closeCount())
	}
}

func TestLoop_RestartAfterStop(t *testing.T) {
	dev := newFakeDevice()
	l := NewLoop(testConfig(dev, &scriptDecoder{}))

	if err := l.Start(); err != nil {
		t.Fatal(err)
	}
	l.Stop()
	if err := l.Start(); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	l.Stop()
}

func TestLoop_ConsecutiveReadFailuresAreFatal(t *testing.T) {
	dev := newFakeDevice()
	dev.readErr = errors.New("device gone")
	l := NewLoop(testConfig(dev, &scriptDecoder{}))
	if err := l.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(l.Stop)

	select {
	case err := <-l.Fatal():
		if err == nil {
			t.Fatal("nil fatal error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("device loss not reported")
	}
}

func TestLoop_TransientFailuresRecover(t *testing.T) {
	dev := newFakeDevice()
	dev.failReads = 2 // below MaxReadFailures
	dec := &scriptDecoder{results: [][]Decoded{
		{{Payload: "after-recovery", Symbology: "CODE_128"}},
	}}
	l := NewLoop(testConfig(dev, dec))
	if err := l.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(l.Stop)

	select {
	case scan := <-l.Scans():
		if scan.Payload != "after-recovery" {
			t.Fatalf("unexpected scan: %+v", scan)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not recover from transient failures")
	}
}
