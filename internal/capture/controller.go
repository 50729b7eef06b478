package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"sync"
	"time"

	"smart-supermarket/internal/apperr"
	"smart-supermarket/internal/pkg/logger"
	"smart-supermarket/pkg/camera"
)

type State string

const (
	StateIdle       State = "IDLE"
	StateRequesting State = "REQUESTING"
	StateStreaming  State = "STREAMING"
	StateCaptured   State = "CAPTURED"
	StateError      State = "ERROR"
)

const (
	MimeJPEG           = "image/jpeg"
	defaultJPEGQuality = 92
	previewPollPeriod  = 50 * time.Millisecond

	msgCaptureFailed = "Failed to take the photo. Please start the camera and try again."
)

// Frame is a still extracted from the live stream. It lives only until the
// next submission attempt.
type Frame struct {
	Data       []byte
	MimeType   string
	Width      int
	Height     int
	CapturedAt time.Time
}

// Controller owns the camera. At most one stream is open at a time and every
// exit path releases it through Stop.
type Controller struct {
	mu      sync.Mutex
	device  camera.Device
	stream  camera.Stream
	state   State
	lastErr error
	attempt uint64
	logger  logger.ILogger
	quality int
}

func NewController(device camera.Device, log logger.ILogger) *Controller {
	return &Controller{
		device:  device,
		state:   StateIdle,
		logger:  log,
		quality: defaultJPEGQuality,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err is the last hardware error. It survives Stop and is cleared by the next Start.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Controller) PreviewReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		return false
	}
	_, ok := c.stream.Metadata()
	return ok
}

// Start requests camera access. It is a no-op while streaming; after a
// capture the still-open stream goes back to streaming for a retake.
// A refusal leaves the controller in StateError; nothing retries on its own.
func (c *Controller) Start(ctx context.Context) (State, error) {
	c.mu.Lock()
	switch {
	case c.stream != nil && c.state == StateStreaming:
		c.mu.Unlock()
		return StateStreaming, nil
	case c.stream != nil && c.state == StateCaptured:
		c.state = StateStreaming
		c.mu.Unlock()
		return StateStreaming, nil
	case c.stream != nil:
		releaseTracks(c.stream)
		c.stream = nil
	}
	if c.state == StateRequesting {
		c.mu.Unlock()
		return StateRequesting, apperr.New(apperr.KindNotReady, "Camera access is already being requested.")
	}
	c.state = StateRequesting
	c.lastErr = nil
	c.attempt++
	attempt := c.attempt
	c.mu.Unlock()

	// The permission prompt may take a while; Stop must stay callable meanwhile.
	stream, err := c.device.Open(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.attempt != attempt {
		if stream != nil {
			releaseTracks(stream)
		}
		return c.state, apperr.New(apperr.KindNotReady, "Camera request was cancelled.")
	}

	if err != nil {
		msg := "Unable to access the camera. Please make sure you have granted the necessary permissions."
		if errors.Is(err, camera.ErrNoDevice) {
			msg = "No camera is available on this kiosk."
		}
		c.state = StateError
		c.lastErr = apperr.Wrap(apperr.KindPermissionDenied, msg, err)
		c.logger.Warn("Capture", "Camera access refused", map[string]interface{}{"error": err.Error()})
		return c.state, c.lastErr
	}

	c.stream = stream
	c.state = StateStreaming
	c.logger.Info("Capture", "Camera streaming", map[string]interface{}{"tracks": len(stream.Tracks())})
	return c.state, nil
}

// Capture extracts a JPEG still at the stream's native resolution. It refuses
// with NotReady, without touching the hardware, unless the controller is
// streaming and the preview metadata has loaded.
func (c *Controller) Capture(ctx context.Context) (*Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateStreaming || c.stream == nil {
		return nil, apperr.New(apperr.KindNotReady, "Camera is not streaming. Start the camera first.")
	}
	meta, ok := c.stream.Metadata()
	if !ok {
		return nil, apperr.New(apperr.KindNotReady, "Video not loaded yet. Please wait a moment and try again.")
	}

	img, err := c.stream.Grab(ctx)
	if err != nil {
		return nil, c.fail(fmt.Errorf("grab frame: %w", err))
	}

	data, err := c.encode(img, meta)
	if err != nil {
		return nil, c.fail(fmt.Errorf("encode frame: %w", err))
	}

	c.state = StateCaptured
	c.logger.Info("Capture", "Frame captured", map[string]interface{}{
		"width":  meta.Width,
		"height": meta.Height,
		"bytes":  len(data),
	})

	return &Frame{
		Data:       data,
		MimeType:   MimeJPEG,
		Width:      meta.Width,
		Height:     meta.Height,
		CapturedAt: time.Now(),
	}, nil
}

// fail releases the stream after a hardware error. Caller holds c.mu.
func (c *Controller) fail(err error) error {
	releaseTracks(c.stream)
	c.stream = nil
	c.state = StateError
	c.lastErr = apperr.Wrap(apperr.KindNotReady, msgCaptureFailed, err)
	c.logger.Warn("Capture", "Capture failed, camera released", map[string]interface{}{"error": err.Error()})
	return c.lastErr
}

func (c *Controller) encode(img image.Image, meta camera.Metadata) ([]byte, error) {
	// Same as drawing the video element onto a canvas sized to the native resolution.
	canvas := image.NewRGBA(image.Rect(0, 0, meta.Width, meta.Height))
	draw.Draw(canvas, canvas.Bounds(), img, img.Bounds().Min, draw.Src)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: c.quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Stop releases every track and returns to Idle. Safe from any state, any number of times.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.attempt++
	if c.stream != nil {
		releaseTracks(c.stream)
		c.stream = nil
		c.logger.Info("Capture", "Camera released", nil)
	}
	c.state = StateIdle
}

func releaseTracks(stream camera.Stream) {
	for _, track := range stream.Tracks() {
		track.Stop()
	}
}

// Close is the teardown hook.
func (c *Controller) Close() error {
	c.Stop()
	return nil
}

// WaitPreview blocks until the preview metadata has loaded or ctx ends.
func (c *Controller) WaitPreview(ctx context.Context) error {
	ticker := time.NewTicker(previewPollPeriod)
	defer ticker.Stop()

	for {
		if c.PreviewReady() {
			return nil
		}
		if c.State() != StateStreaming {
			return apperr.New(apperr.KindNotReady, "Camera is not streaming. Start the camera first.")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// WithCamera opens the camera for the duration of fn. The camera is released
// when fn returns, panics, or ctx is cancelled, whichever comes first.
func (c *Controller) WithCamera(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, err := c.Start(ctx); err != nil {
		return err
	}
	defer c.Stop()

	stopOnCancel := context.AfterFunc(ctx, c.Stop)
	defer stopOnCancel()

	return fn(ctx)
}
