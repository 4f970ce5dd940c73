// Package capture reads frames from a local webcam with gocv.
package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-smartbin/internal/log"
	"github.com/teslashibe/go-smartbin/pkg/camera"
	"gocv.io/x/gocv"
)

// Device is a camera.Source backed by gocv.VideoCapture.
type Device struct {
	cfg    camera.Config
	logger *slog.Logger

	mu     sync.Mutex // Protects capture and mat
	vc     *gocv.VideoCapture
	mat    gocv.Mat
	seq    uint64
	closed bool
}

// Open acquires the capture device described by cfg.
// The returned error wraps camera.ErrOpen.
func Open(cfg camera.Config, logger *slog.Logger) (*Device, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("%w: invalid config: %v", camera.ErrOpen, errs)
	}

	vc, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return nil, fmt.Errorf("%w: device %d: %v", camera.ErrOpen, cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: device %d not opened", camera.ErrOpen, cfg.Device)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

	d := &Device{
		cfg:    cfg,
		logger: log.Component(logger, "camera"),
		vc:     vc,
		mat:    gocv.NewMat(),
	}

	d.logger.Info("camera opened",
		"device", cfg.Device,
		"width", int(vc.Get(gocv.VideoCaptureFrameWidth)),
		"height", int(vc.Get(gocv.VideoCaptureFrameHeight)),
	)

	return d, nil
}

// Read grabs the next frame and encodes it as JPEG.
func (d *Device) Read(ctx context.Context) (camera.Frame, error) {
	if err := ctx.Err(); err != nil {
		return camera.Frame{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return camera.Frame{}, camera.ErrClosed
	}

	if ok := d.vc.Read(&d.mat); !ok {
		return camera.Frame{}, fmt.Errorf("camera: read device %d failed", d.cfg.Device)
	}
	if d.mat.Empty() {
		return camera.Frame{}, camera.ErrEmptyFrame
	}

	if d.cfg.Mirror {
		gocv.Flip(d.mat, &d.mat, 1)
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, d.mat,
		[]int{gocv.IMWriteJpegQuality, d.cfg.Quality})
	if err != nil {
		return camera.Frame{}, fmt.Errorf("camera: encode frame: %w", err)
	}
	defer buf.Close()

	// buf memory is owned by OpenCV, copy out before Close
	data := append([]byte(nil), buf.GetBytes()...)

	d.seq++
	return camera.Frame{
		Seq:        d.seq,
		Data:       data,
		Width:      d.mat.Cols(),
		Height:     d.mat.Rows(),
		CapturedAt: time.Now(),
	}, nil
}

// Reconfigure reopens the device with cfg. It is wired to
// camera.Manager.OnChange.
func (d *Device) Reconfigure(cfg camera.Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return camera.ErrClosed
	}

	vc, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		return fmt.Errorf("%w: device %d: %v", camera.ErrOpen, cfg.Device, err)
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

	d.vc.Close()
	d.vc = vc
	d.cfg = cfg

	d.logger.Info("camera reconfigured", "device", cfg.Device, "width", cfg.Width, "height", cfg.Height)
	return nil
}

// Close releases the device. Safe to call more than once.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	d.mat.Close()
	return d.vc.Close()
}
