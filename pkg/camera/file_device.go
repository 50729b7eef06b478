package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// FileDevice plays a still image as a camera stream. Kiosks without a
// capture driver (and the shopper CLI) use it to feed a known photo.
type FileDevice struct {
	path         string
	previewDelay time.Duration
	now          func() time.Time
}

func NewFileDevice(path string, previewDelay time.Duration) *FileDevice {
	return &FileDevice{
		path:         path,
		previewDelay: previewDelay,
		now:          time.Now,
	}
}

func (d *FileDevice) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(d.path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrPermission):
			return nil, fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		case errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("%w: %v", ErrNoDevice, err)
		}
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode still %s: %w", d.path, err)
	}

	return &fileStream{
		img:      img,
		track:    &fileTrack{id: uuid.NewString()},
		readyAt:  d.now().Add(d.previewDelay),
		now:      d.now,
		metadata: Metadata{Width: img.Bounds().Dx(), Height: img.Bounds().Dy()},
	}, nil
}

type fileStream struct {
	img      image.Image
	track    *fileTrack
	readyAt  time.Time
	now      func() time.Time
	metadata Metadata
}

func (s *fileStream) Tracks() []Track {
	return []Track{s.track}
}

func (s *fileStream) Metadata() (Metadata, bool) {
	if s.track.Stopped() || s.now().Before(s.readyAt) {
		return Metadata{}, false
	}
	return s.metadata, true
}

func (s *fileStream) Grab(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.track.Stopped() {
		return nil, ErrTrackStopped
	}
	return s.img, nil
}

type fileTrack struct {
	id      string
	stopped atomic.Bool
}

func (t *fileTrack) ID() string    { return t.id }
func (t *fileTrack) Stop()         { t.stopped.Store(true) }
func (t *fileTrack) Stopped() bool { return t.stopped.Load() }
