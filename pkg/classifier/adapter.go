package classifier

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-smartbin/internal/log"
	"github.com/teslashibe/go-smartbin/pkg/camera"
)

// Recorder receives per-call latency and outcome.
type Recorder interface {
	RecordClassification(ctx context.Context, d time.Duration, err error)
}

// Option is a functional option for configuring an Adapter.
type Option func(*Adapter)

// WithName sets the backend name used in logs and wrapped errors.
func WithName(name string) Option {
	return func(a *Adapter) { a.name = name }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.logger = l }
}

// WithRecorder sets where call latency is reported.
func WithRecorder(r Recorder) Option {
	return func(a *Adapter) { a.recorder = r }
}

// WithTimeout bounds a single classification.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) { a.timeout = d }
}

// Adapter wraps a backend with readiness and a single in-flight call.
type Adapter struct {
	backend  Classifier
	name     string
	logger   *slog.Logger
	recorder Recorder
	timeout  time.Duration

	ready     chan struct{}
	readyOnce sync.Once
	inflight  atomic.Bool

	// Classify holds a read lock for the backend call; Close takes the
	// write lock so the backend is never released mid-call.
	closeMu sync.RWMutex
	closed  bool

	calls  atomic.Uint64
	errors atomic.Uint64
}

// NewAdapter wraps backend. The adapter starts not ready; call
// MarkReady once the model is loaded.
func NewAdapter(backend Classifier, opts ...Option) *Adapter {
	a := &Adapter{
		backend: backend,
		name:    "classifier",
		ready:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = log.Component(a.logger, "classifier").With("backend", a.name)
	return a
}

// Ready is closed once the model has been loaded.
func (a *Adapter) Ready() <-chan struct{} {
	return a.ready
}

// MarkReady signals that the model is loaded. Safe to call repeatedly.
func (a *Adapter) MarkReady() {
	a.readyOnce.Do(func() {
		a.logger.Info("model loaded")
		close(a.ready)
	})
}

// IsReady reports whether MarkReady has been called.
func (a *Adapter) IsReady() bool {
	select {
	case <-a.ready:
		return true
	default:
		return false
	}
}

// Classify runs the backend on frame. Only one call may be in flight;
// an overlapping call fails fast with ErrBusy.
func (a *Adapter) Classify(ctx context.Context, frame camera.Frame) (Observation, error) {
	if a.backend == nil {
		return Observation{}, ErrUnavailable
	}
	if !a.IsReady() {
		return Observation{}, ErrNotReady
	}
	if frame.Empty() {
		return Observation{}, ErrEmptyFrame
	}
	if !a.inflight.CompareAndSwap(false, true) {
		return Observation{}, ErrBusy
	}
	defer a.inflight.Store(false)

	a.closeMu.RLock()
	defer a.closeMu.RUnlock()
	if a.closed {
		return Observation{}, ErrUnavailable
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	a.calls.Add(1)
	start := time.Now()
	obs, err := a.backend.Classify(ctx, frame)
	elapsed := time.Since(start)

	if a.recorder != nil {
		a.recorder.RecordClassification(ctx, elapsed, err)
	}

	if err != nil {
		a.errors.Add(1)
		return Observation{}, WrapError(a.name, err)
	}

	a.logger.Debug("classified",
		"frame", frame.Seq,
		"label", obs.Label,
		"confidence", obs.Confidence,
		"latency_ms", elapsed.Milliseconds(),
	)
	return obs, nil
}

// InFlight reports whether a classification is currently running.
func (a *Adapter) InFlight() bool {
	return a.inflight.Load()
}

// Calls returns the number of backend invocations and how many failed.
func (a *Adapter) Calls() (total, failed uint64) {
	return a.calls.Load(), a.errors.Load()
}

// Close waits for any in-flight classification, then releases the
// backend if it holds resources. Later calls to Classify fail with
// ErrUnavailable.
func (a *Adapter) Close() error {
	a.closeMu.Lock()
	defer a.closeMu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true

	if c, ok := a.backend.(Closer); ok {
		return c.Close()
	}
	return nil
}
