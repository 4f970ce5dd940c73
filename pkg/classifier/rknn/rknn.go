//go:build rknn

package rknn

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/swdee/go-rknnlite"
	"github.com/teslashibe/go-smartbin/pkg/camera"
	"github.com/teslashibe/go-smartbin/pkg/classifier"
	"gocv.io/x/gocv"
)

// Config holds NPU model configuration.
type Config struct {
	ModelPath   string // RKNN compiled model file
	LabelsPath  string // Labels text file or metadata.json
	InputWidth  int
	InputHeight int
}

// DefaultConfig returns a 224x224 classification model layout.
func DefaultConfig() Config {
	return Config{
		ModelPath:   "models/model-rk3588.rknn",
		LabelsPath:  "models/labels.txt",
		InputWidth:  224,
		InputHeight: 224,
	}
}

// Classifier runs a compiled RKNN model.
type Classifier struct {
	rt     *rknnlite.Runtime
	labels []string
	config Config
	mu     sync.Mutex // The runtime is not safe for concurrent inference
	closed bool
}

// New creates an NPU runtime for cfg.ModelPath.
func New(cfg Config) (*Classifier, error) {
	labels, err := classifier.LoadLabels(cfg.LabelsPath)
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}

	rt, err := rknnlite.NewRuntime(cfg.ModelPath, rknnlite.NPUCoreAuto)
	if err != nil {
		return nil, fmt.Errorf("init rknn runtime: %w", err)
	}

	return &Classifier{rt: rt, labels: labels, config: cfg}, nil
}

// Classify converts the frame to RGB at model size and returns the top
// class.
func (c *Classifier) Classify(ctx context.Context, frame camera.Frame) (classifier.Observation, error) {
	if err := ctx.Err(); err != nil {
		return classifier.Observation{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return classifier.Observation{}, classifier.ErrUnavailable
	}

	img, err := gocv.IMDecode(frame.Data, gocv.IMReadColor)
	if err != nil {
		return classifier.Observation{}, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return classifier.Observation{}, classifier.ErrEmptyFrame
	}

	rgbImg := gocv.NewMat()
	defer rgbImg.Close()
	gocv.CvtColor(img, &rgbImg, gocv.ColorBGRToRGB)

	cropImg := gocv.NewMat()
	defer cropImg.Close()
	gocv.Resize(rgbImg, &cropImg, image.Pt(c.config.InputWidth, c.config.InputHeight), 0, 0, gocv.InterpolationArea)

	outputs, err := c.rt.Inference([]gocv.Mat{cropImg})
	if err != nil {
		return classifier.Observation{}, fmt.Errorf("rknn inference: %w", err)
	}
	defer outputs.Free()

	top := rknnlite.GetTop5(outputs.Output)
	if len(top) == 0 {
		return classifier.Observation{}, classifier.ErrNoResult
	}

	return classifier.Observation{
		Label:      classifier.LabelFor(c.labels, int(top[0].LabelIndex)),
		Confidence: float64(top[0].Probability),
	}, nil
}

// Close releases the NPU runtime. Safe to call more than once.
func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.rt.Close()
}
