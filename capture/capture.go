// Package capture owns the camera and produces the scan event stream.
//
// A Loop holds an exclusive Device handle and runs a read/decode cycle on
// its own goroutine: read a frame, run the Decoder over it, emit a RawScan
// per decoded payload and a downsampled preview frame per iteration.
// Event channels are small and bounded; overflow drops with a log line
// rather than queueing without limit.
//
// Transient read or decode failures skip the iteration; the loop only
// terminates on Stop or after a configured number of consecutive device
// read failures, which is surfaced on the Fatal channel.
package capture

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"
)

// ErrDeviceUnavailable is returned by Start when the camera is missing,
// busy, or already claimed by this process.
var ErrDeviceUnavailable = errors.New("capture: device unavailable")

// Config configures a capture Loop.
type Config struct {
	// Device is the exclusive frame source. Required.
	Device Device

	// Decoder extracts payloads from frames. Required.
	Decoder Decoder

	// Interval is the pause between cycle iterations (default: 33ms, ~30/s).
	Interval time.Duration

	// ReadRetryDelay is the pause after a transient frame read failure
	// (default: 100ms).
	ReadRetryDelay time.Duration

	// MaxReadFailures is the number of consecutive read failures after
	// which the device is considered lost (default: 30).
	MaxReadFailures int

	// PreviewWidth and PreviewHeight size the downsampled preview frames
	// (default: 640x480).
	PreviewWidth  int
	PreviewHeight int

	// StopTimeout bounds how long Stop waits for the cycle to observe
	// cancellation before force-releasing the device (default: 500ms).
	StopTimeout time.Duration

	// Logger for debug/error messages.
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Interval <= 0 {
		c.Interval = 33 * time.Millisecond
	}
	if c.ReadRetryDelay <= 0 {
		c.ReadRetryDelay = 100 * time.Millisecond
	}
	if c.MaxReadFailures <= 0 {
		c.MaxReadFailures = 30
	}
	if c.PreviewWidth <= 0 {
		c.PreviewWidth = 640
	}
	if c.PreviewHeight <= 0 {
		c.PreviewHeight = 480
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 500 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Loop runs the capture cycle. Create with NewLoop; a stopped Loop can be
// started again (the device is reopened).
type Loop struct {
	cfg    Config
	logger *slog.Logger

	scans  chan RawScan
	frames chan image.Image
	fatal  chan error

	mu       sync.Mutex
	running  bool
	quit     chan struct{}
	done     chan struct{}
	closeDev *sync.Once
}

// NewLoop creates a Loop from configuration. The event channels returned by
// Scans, Frames and Fatal are stable across Start/Stop cycles.
func NewLoop(cfg Config) *Loop {
	cfg.defaults()
	return &Loop{
		cfg:    cfg,
		logger: cfg.Logger,
		scans:  make(chan RawScan, 16),
		frames: make(chan image.Image, 1),
		fatal:  make(chan error, 1),
	}
}

// Scans returns the decoded payload stream.
func (l *Loop) Scans() <-chan RawScan { return l.scans }

// Frames returns the preview frame stream. Frames are conflated: a slow
// consumer sees the newest frame, not a backlog.
func (l *Loop) Frames() <-chan image.Image { return l.frames }

// Fatal delivers at most one error per run when the device is lost.
func (l *Loop) Fatal() <-chan error { return l.fatal }

// Start opens the device exclusively and begins the capture cycle on a
// dedicated goroutine. It fails with ErrDeviceUnavailable when the device
// cannot be claimed.
func (l *Loop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cfg.Device == nil || l.cfg.Decoder == nil {
		return errors.New("capture: device and decoder are required")
	}
	if l.running {
		return fmt.Errorf("%w: loop already running", ErrDeviceUnavailable)
	}
	if err := l.cfg.Device.Open(); err != nil {
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	l.quit = make(chan struct{})
	l.done = make(chan struct{})
	l.closeDev = &sync.Once{}
	l.running = true
	go l.run(l.quit, l.done, l.closeDev)

	l.logger.Info("capture: started",
		"interval", l.cfg.Interval, "preview", fmt.Sprintf("%dx%d", l.cfg.PreviewWidth, l.cfg.PreviewHeight))
	return nil
}

// Stop signals cancellation, waits up to StopTimeout for the cycle to
// release the device, then force-releases the handle regardless. It is
// idempotent and safe to call from any goroutine.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	quit, done, closeDev := l.quit, l.done, l.closeDev
	l.mu.Unlock()

	close(quit)
	select {
	case <-done:
	case <-time.After(l.cfg.StopTimeout):
		l.logger.Warn("capture: cycle did not observe cancellation in time, force releasing device")
	}
	closeDev.Do(func() { l.cfg.Device.Close() })
	l.logger.Info("capture: stopped")
}

func (l *Loop) run(quit chan struct{}, done chan struct{}, closeDev *sync.Once) {
	defer close(done)
	defer closeDev.Do(func() { l.cfg.Device.Close() })

	failures := 0
	for {
		select {
		case <-quit:
			return
		default:
		}

		frame, err := l.cfg.Device.ReadFrame()
		if err != nil {
			failures++
			if failures >= l.cfg.MaxReadFailures {
				l.logger.Error("capture: device lost",
					"consecutive_failures", failures, "error", err)
				select {
				case l.fatal <- fmt.Errorf("capture: device lost after %d consecutive read failures: %w", failures, err):
				default:
				}
				l.mu.Lock()
				l.running = false
				l.mu.Unlock()
				return
			}
			l.logger.Debug("capture: frame read failed", "error", err)
			select {
			case <-quit:
				return
			case <-time.After(l.cfg.ReadRetryDelay):
			}
			continue
		}
		failures = 0

		results, err := l.cfg.Decoder.Decode(frame)
		if err != nil {
			l.logger.Debug("capture: decode failed", "error", err)
		}
		now := time.Now()
		for _, dec := range results {
			select {
			case l.scans <- RawScan{Payload: dec.Payload, Symbology: dec.Symbology, CapturedAt: now}:
			default:
				l.logger.Warn("capture: scan buffer full, dropping",
					"payload_prefix", payloadPrefix(dec.Payload))
			}
		}

		l.emitPreview(frame)

		select {
		case <-quit:
			return
		case <-time.After(l.cfg.Interval):
		}
	}
}

// emitPreview conflates: when the consumer lags, the stale frame is dropped
// and replaced with the newest one.
func (l *Loop) emitPreview(frame image.Image) {
	img := downsample(frame, l.cfg.PreviewWidth, l.cfg.PreviewHeight)
	select {
	case l.frames <- img:
		return
	default:
	}
	select {
	case <-l.frames:
	default:
	}
	select {
	case l.frames <- img:
	default:
	}
}

// payloadPrefix bounds a payload for logging. Full payloads never go to
// the log; they can be arbitrarily large and may carry personal data.
func payloadPrefix(s string) string {
	const max = 32
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
