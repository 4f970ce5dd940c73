// Package classifier turns camera frames into labelled observations.
//
// A Classifier is the raw backend (ONNX via gocv, Rockchip NPU, ...).
// The Adapter wraps one and adds the pieces the observation loop relies
// on: a model-ready signal, a one-call-in-flight guard and latency
// recording.
//
// Example usage:
//
//	backend, _ := onnx.New(onnx.DefaultConfig())
//	adapter := classifier.NewAdapter(backend, classifier.WithLogger(logger))
//	adapter.MarkReady()
//
//	obs, err := adapter.Classify(ctx, frame)
package classifier

import (
	"context"
	"fmt"
	"math"

	"github.com/teslashibe/go-smartbin/pkg/camera"
)

// Observation is a single classifier output for one frame.
type Observation struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Valid reports whether the observation is well formed: a non-empty
// label and a finite confidence in [0,1].
func (o Observation) Valid() bool {
	if o.Label == "" {
		return false
	}
	if math.IsNaN(o.Confidence) || math.IsInf(o.Confidence, 0) {
		return false
	}
	return o.Confidence >= 0 && o.Confidence <= 1
}

// Percent returns the confidence as a whole percentage, rounded down.
func (o Observation) Percent() int {
	return int(math.Floor(o.Confidence * 100))
}

// String formats the observation the way the overlay shows it.
func (o Observation) String() string {
	return fmt.Sprintf("%s %d%%", o.Label, o.Percent())
}

// Classifier classifies a frame and returns its top result.
type Classifier interface {
	Classify(ctx context.Context, frame camera.Frame) (Observation, error)
}

// Closer is implemented by backends holding native resources.
type Closer interface {
	Close() error
}

// Result is one ranked class score.
type Result struct {
	Index      int
	Label      string
	Confidence float64
}

// Top returns the highest-scoring result, or ErrNoResult if scores is
// empty. Labels are looked up by index; missing labels fall back to the
// numeric index.
func Top(scores []float32, labels []string) (Result, error) {
	if len(scores) == 0 {
		return Result{}, ErrNoResult
	}

	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}

	return Result{
		Index:      best,
		Label:      LabelFor(labels, best),
		Confidence: float64(scores[best]),
	}, nil
}

// Softmax converts raw logits into probabilities. The input is not modified.
func Softmax(logits []float32) []float32 {
	if len(logits) == 0 {
		return nil
	}

	maxLogit := logits[0]
	for _, v := range logits[1:] {
		if v > maxLogit {
			maxLogit = v
		}
	}

	out := make([]float32, len(logits))
	var sum float64
	for i, v := range logits {
		e := math.Exp(float64(v - maxLogit))
		out[i] = float32(e)
		sum += e
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}
