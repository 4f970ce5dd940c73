package classifier

import (
	"context"
	"sync"

	"github.com/teslashibe/go-smartbin/pkg/camera"
)

// Mock implements Classifier for testing.
type Mock struct {
	// ClassifyFunc is called when Classify is invoked.
	ClassifyFunc func(ctx context.Context, frame camera.Frame) (Observation, error)

	mu     sync.Mutex
	frames []uint64
	closed bool
}

// NewMock returns a mock that always answers obs.
func NewMock(obs Observation) *Mock {
	return &Mock{
		ClassifyFunc: func(ctx context.Context, frame camera.Frame) (Observation, error) {
			return obs, nil
		},
	}
}

// NewSequence returns a mock that answers the given results in order,
// repeating the last one once exhausted. A nil error entry means the
// matching observation is returned. obs must not be empty.
func NewSequence(obs []Observation, errs []error) *Mock {
	var (
		mu sync.Mutex
		i  int
	)
	return &Mock{
		ClassifyFunc: func(ctx context.Context, frame camera.Frame) (Observation, error) {
			mu.Lock()
			defer mu.Unlock()

			idx := i
			if idx >= len(obs) {
				idx = len(obs) - 1
			} else {
				i++
			}
			if idx < len(errs) && errs[idx] != nil {
				return Observation{}, errs[idx]
			}
			return obs[idx], nil
		},
	}
}

// WithError returns a mock that always fails with err.
func WithError(err error) *Mock {
	return &Mock{
		ClassifyFunc: func(ctx context.Context, frame camera.Frame) (Observation, error) {
			return Observation{}, err
		},
	}
}

// Classify records the frame and delegates to ClassifyFunc.
func (m *Mock) Classify(ctx context.Context, frame camera.Frame) (Observation, error) {
	m.mu.Lock()
	m.frames = append(m.frames, frame.Seq)
	fn := m.ClassifyFunc
	m.mu.Unlock()

	if fn == nil {
		return Observation{}, ErrNoResult
	}
	return fn(ctx, frame)
}

// Frames returns the sequence numbers of every classified frame.
func (m *Mock) Frames() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uint64(nil), m.frames...)
}

// CallCount returns how many times Classify was called.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.frames)
}

// Close marks the mock closed.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
