// Package observe runs the observation loop: read a frame, classify it,
// hand the result to the selection policy, repeat.
package observe

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-smartbin/internal/log"
	"github.com/teslashibe/go-smartbin/pkg/camera"
	"github.com/teslashibe/go-smartbin/pkg/classifier"
	"github.com/teslashibe/go-smartbin/pkg/selection"
	"golang.org/x/time/rate"
)

// ErrAlreadyRunning is returned when Run is called on a running loop.
var ErrAlreadyRunning = errors.New("observe: loop already running")

// Policy consumes observations. *selection.Policy satisfies it.
type Policy interface {
	Observe(classifier.Observation) selection.Outcome
}

// Listener is told about every successful sample, whether or not it
// triggers a selection. The overlay renderer and web sink listen here.
type Listener interface {
	OnSample(Sample)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Sample)

// OnSample calls f(s).
func (f ListenerFunc) OnSample(s Sample) { f(s) }

// Recorder counts loop events.
type Recorder interface {
	RecordObservation(ctx context.Context, label string, outcome string)
}

// Readier is implemented by classifiers with a model-ready signal.
type Readier interface {
	Ready() <-chan struct{}
}

// Stats is a snapshot of loop counters.
type Stats struct {
	Frames        uint64 `json:"frames"`
	Observations  uint64 `json:"observations"`
	Triggers      uint64 `json:"triggers"`
	ClassifyErrs  uint64 `json:"classify_errors"`
	SkippedFrames uint64 `json:"skipped_frames"`
	Running       bool   `json:"running"`
}

// DefaultRate matches a 60 Hz display refresh.
const DefaultRate = 60

// Option is a functional option for configuring a Loop.
type Option func(*Loop)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(lp *Loop) { lp.logger = l }
}

// WithRate caps iterations per second. Zero or negative removes the cap.
func WithRate(perSecond float64) Option {
	return func(lp *Loop) {
		if perSecond <= 0 {
			lp.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		lp.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithListener adds a sample listener. May be given more than once.
func WithListener(l Listener) Option {
	return func(lp *Loop) { lp.listeners = append(lp.listeners, l) }
}

// WithRecorder sets where loop events are counted.
func WithRecorder(r Recorder) Option {
	return func(lp *Loop) { lp.recorder = r }
}

// Loop pulls frames from a source, classifies them one at a time and
// feeds the results to a policy.
type Loop struct {
	source     camera.Source
	classifier classifier.Classifier
	policy     Policy
	limiter    *rate.Limiter
	listeners  []Listener
	recorder   Recorder
	logger     *slog.Logger

	latest Latest

	mu      sync.Mutex
	running bool

	frames       atomic.Uint64
	observations atomic.Uint64
	triggers     atomic.Uint64
	classifyErrs atomic.Uint64
	skipped      atomic.Uint64
}

// New creates a loop. It does not start until Run is called.
func New(src camera.Source, c classifier.Classifier, p Policy, opts ...Option) *Loop {
	lp := &Loop{
		source:     src,
		classifier: c,
		policy:     p,
		limiter:    rate.NewLimiter(rate.Limit(DefaultRate), 1),
	}
	for _, opt := range opts {
		opt(lp)
	}
	lp.logger = log.Component(lp.logger, "observe")
	return lp
}

// Run blocks until ctx is done or the source is closed. It waits for the
// classifier's ready signal, if it has one, before the first frame.
//
// Classification errors are logged and skipped; they never reach the
// policy. camera.ErrClosed ends the loop and is returned; context
// cancellation returns nil.
func (lp *Loop) Run(ctx context.Context) error {
	lp.mu.Lock()
	if lp.running {
		lp.mu.Unlock()
		return ErrAlreadyRunning
	}
	lp.running = true
	lp.mu.Unlock()

	defer func() {
		lp.mu.Lock()
		lp.running = false
		lp.mu.Unlock()
	}()

	if r, ok := lp.classifier.(Readier); ok {
		lp.logger.Info("waiting for model")
		select {
		case <-r.Ready():
		case <-ctx.Done():
			return nil
		}
	}

	lp.logger.Info("observation loop started")
	defer lp.logger.Info("observation loop stopped")

	for {
		// Cancellation is checked before every iteration.
		if ctx.Err() != nil {
			return nil
		}
		if err := lp.limiter.Wait(ctx); err != nil {
			return nil
		}

		if err := lp.step(ctx); err != nil {
			if errors.Is(err, camera.ErrClosed) {
				lp.logger.Error("video source closed", "error", err)
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
		}
	}
}

// step runs one read-classify-observe iteration.
func (lp *Loop) step(ctx context.Context) error {
	frame, err := lp.source.Read(ctx)
	if err != nil {
		if !errors.Is(err, camera.ErrClosed) && ctx.Err() == nil {
			lp.skipped.Add(1)
			lp.logger.Warn("frame read failed", "error", err)
		}
		return err
	}
	lp.frames.Add(1)

	obs, err := lp.classifier.Classify(ctx, frame)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		lp.classifyErrs.Add(1)
		lp.logger.Warn("classification failed", "frame", frame.Seq, "error", err)
		if lp.recorder != nil {
			lp.recorder.RecordObservation(ctx, "", "error")
		}
		return err
	}
	lp.observations.Add(1)

	sample := Sample{Observation: obs, Frame: frame, At: time.Now()}
	lp.latest.Store(sample)
	for _, l := range lp.listeners {
		l.OnSample(sample)
	}

	outcome := lp.policy.Observe(obs)
	if outcome == selection.Triggered {
		lp.triggers.Add(1)
	}
	if lp.recorder != nil {
		lp.recorder.RecordObservation(ctx, obs.Label, outcome.String())
	}
	return nil
}

// Latest returns the most recent sample for the overlay.
func (lp *Loop) Latest() (Sample, bool) {
	return lp.latest.Load()
}

// Stats returns the loop counters.
func (lp *Loop) Stats() Stats {
	lp.mu.Lock()
	running := lp.running
	lp.mu.Unlock()

	return Stats{
		Frames:        lp.frames.Load(),
		Observations:  lp.observations.Load(),
		Triggers:      lp.triggers.Load(),
		ClassifyErrs:  lp.classifyErrs.Load(),
		SkippedFrames: lp.skipped.Load(),
		Running:       running,
	}
}
