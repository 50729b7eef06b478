package camera

import (
	"context"
	"errors"
	"image"
)

var (
	ErrPermissionDenied = errors.New("camera permission denied")
	ErrNoDevice         = errors.New("no camera device available")
	ErrTrackStopped     = errors.New("camera track stopped")
)

// Metadata describes the live preview once the device has negotiated it.
type Metadata struct {
	Width  int
	Height int
}

// Device grants access to a camera. Open blocks until the user (or OS)
// grants or refuses access.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// Track is one hardware track of a stream. Stop must be safe to call twice.
type Track interface {
	ID() string
	Stop()
	Stopped() bool
}

// Stream is a live preview.
type Stream interface {
	Tracks() []Track
	// Metadata reports the native resolution; ok is false until the preview
	// has loaded.
	Metadata() (meta Metadata, ok bool)
	Grab(ctx context.Context) (image.Image, error)
}
