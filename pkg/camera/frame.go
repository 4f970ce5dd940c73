package camera

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrOpen is returned when the capture device cannot be acquired.
	ErrOpen = errors.New("camera: open failed")

	// ErrClosed is returned by Read once the source has been closed.
	ErrClosed = errors.New("camera: source closed")

	// ErrEmptyFrame is returned when the device produced no image data.
	ErrEmptyFrame = errors.New("camera: empty frame")
)

// Frame is a single JPEG-encoded capture.
type Frame struct {
	Seq        uint64
	Data       []byte // JPEG
	Width      int
	Height     int
	CapturedAt time.Time
}

// Empty reports whether the frame carries no image data.
func (f Frame) Empty() bool {
	return len(f.Data) == 0
}

// Source supplies frames on demand.
//
// Read blocks until a frame is available or ctx is done. After Close,
// Read returns ErrClosed. Close is idempotent.
type Source interface {
	Read(ctx context.Context) (Frame, error)
	Close() error
}
