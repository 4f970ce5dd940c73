// Package onnx runs an ONNX image classification model through OpenCV's
// dnn module.
package onnx

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/teslashibe/go-smartbin/pkg/camera"
	"github.com/teslashibe/go-smartbin/pkg/classifier"
	"gocv.io/x/gocv"
)

// Config holds model configuration.
type Config struct {
	ModelPath   string  // Path to ONNX model
	LabelsPath  string  // Labels text file or metadata.json
	InputWidth  int     // Model input width
	InputHeight int     // Model input height
	Scale       float64 // Pixel scale applied after mean subtraction
	Mean        float64 // Per-channel mean subtracted before scaling
	SwapRB      bool    // OpenCV decodes BGR, most models expect RGB
	Softmax     bool    // Apply softmax to raw logits
}

// DefaultConfig matches a Teachable Machine image model export:
// 224x224 RGB input normalised to [-1, 1] with a softmax head.
func DefaultConfig() Config {
	return Config{
		ModelPath:   "models/model.onnx",
		LabelsPath:  "models/metadata.json",
		InputWidth:  224,
		InputHeight: 224,
		Scale:       1.0 / 127.5,
		Mean:        127.5,
		SwapRB:      true,
		Softmax:     false,
	}
}

// Classifier runs the network on decoded JPEG frames.
type Classifier struct {
	net       gocv.Net
	labels    []string
	config    Config
	inputSize image.Point
	mu        sync.Mutex // Protects inference and closed
	closed    bool
}

// New loads the model and its labels.
func New(cfg Config) (*Classifier, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}

	labels, err := classifier.LoadLabels(cfg.LabelsPath)
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load ONNX model from %s", cfg.ModelPath)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &Classifier{
		net:       net,
		labels:    labels,
		config:    cfg,
		inputSize: image.Pt(cfg.InputWidth, cfg.InputHeight),
	}, nil
}

// Classify decodes the frame, runs a forward pass and returns the top
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

	mean := gocv.NewScalar(c.config.Mean, c.config.Mean, c.config.Mean, 0)
	blob := gocv.BlobFromImage(img, c.config.Scale, c.inputSize, mean, c.config.SwapRB, false)
	defer blob.Close()

	c.net.SetInput(blob, "")

	output := c.net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return classifier.Observation{}, fmt.Errorf("read output: %w", err)
	}

	// data aliases the output Mat, copy before it is closed
	scores := append([]float32(nil), data...)
	if c.config.Softmax {
		scores = classifier.Softmax(scores)
	}

	top, err := classifier.Top(scores, c.labels)
	if err != nil {
		return classifier.Observation{}, err
	}

	return classifier.Observation{Label: top.Label, Confidence: top.Confidence}, nil
}

// Close releases the network. Safe to call more than once.
func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.net.Close()
}
