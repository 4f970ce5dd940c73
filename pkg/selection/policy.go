// Package selection turns a noisy stream of classifier observations into
// a debounced selection cycle for the kiosk animation.
//
// A cycle runs Idle → Scanning → Confirmed → Idle. It starts on the
// first observation whose label is an allowed category and whose
// confidence is strictly above the threshold, then advances on two
// fixed dwell timers. While a cycle is active every observation is
// ignored, so a cycle always lasts ScanDwell + ConfirmDwell.
package selection

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-smartbin/internal/log"
	"github.com/teslashibe/go-smartbin/pkg/classifier"
	"github.com/teslashibe/go-smartbin/pkg/clock"
)

// Sink receives signals on every transition. Publish must not block and
// must not call back into the Policy.
type Sink interface {
	Publish(Signals)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Signals)

// Publish calls f(s).
func (f SinkFunc) Publish(s Signals) { f(s) }

// Recorder is told about each started cycle.
type Recorder interface {
	RecordCycle(category string)
}

// Option is a functional option for configuring a Policy.
type Option func(*Policy)

// WithClock sets the time source used for dwell timers.
func WithClock(c clock.Clock) Option {
	return func(p *Policy) { p.clock = c }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Policy) { p.logger = l }
}

// WithSink adds a sink. May be given more than once.
func WithSink(s Sink) Option {
	return func(p *Policy) { p.sinks = append(p.sinks, s) }
}

// WithRecorder sets where started cycles are counted.
func WithRecorder(r Recorder) Option {
	return func(p *Policy) { p.recorder = r }
}

// WithIDs overrides cycle ID generation.
func WithIDs(next func() string) Option {
	return func(p *Policy) { p.newID = next }
}

// Policy is the selection state machine. All state is guarded by mu;
// observations and timer callbacks interleave through it.
type Policy struct {
	cfg      Config
	allowed  map[string]struct{}
	flags    []string
	clock    clock.Clock
	sinks    []Sink
	recorder Recorder
	logger   *slog.Logger
	newID    func() string

	mu        sync.Mutex
	state     State
	label     string
	cycleID   string
	enteredAt time.Time
	timer     clock.Timer
	gen       uint64 // bumped per cycle so stale timers are dropped
	closed    bool
}

// New creates an idle policy. cfg must pass Validate.
func New(cfg Config, opts ...Option) (*Policy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Policy{
		cfg:     cfg,
		allowed: make(map[string]struct{}, len(cfg.Categories)),
		clock:   clock.Real(),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = log.Component(p.logger, "selection")

	for _, c := range cfg.Categories {
		p.allowed[c] = struct{}{}
	}
	for _, flag := range cfg.Signals {
		p.flags = append(p.flags, flag)
	}
	sort.Strings(p.flags)

	p.enteredAt = p.clock.Now()
	return p, nil
}

// Config returns the policy configuration.
func (p *Policy) Config() Config {
	return p.cfg
}

// Observe evaluates one observation. Only an idle policy evaluates the
// trigger; the first qualifying observation wins.
func (p *Policy) Observe(obs classifier.Observation) Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || p.state.Active() {
		return Ignored
	}

	if !obs.Valid() {
		p.logger.Debug("malformed observation ignored",
			"label", obs.Label,
			"confidence", obs.Confidence,
		)
		return Rejected
	}
	if _, ok := p.allowed[obs.Label]; !ok {
		return Rejected
	}
	if !(obs.Confidence > p.cfg.Threshold) {
		return Rejected
	}

	p.gen++
	p.label = obs.Label
	p.cycleID = p.newID()

	p.logger.Info("selection started",
		"cycle", p.cycleID,
		"label", obs.Label,
		"confidence", obs.Confidence,
	)
	if p.recorder != nil {
		p.recorder.RecordCycle(obs.Label)
	}

	p.enterLocked(Scanning)
	return Triggered
}

// enterLocked moves to state, schedules its timed exit and publishes
// the derived signals. Caller holds p.mu.
func (p *Policy) enterLocked(state State) {
	p.state = state
	p.enteredAt = p.clock.Now()
	p.timer = nil

	if t, ok := transitions[state]; ok {
		gen := p.gen
		p.timer = p.clock.AfterFunc(t.dwell(p.cfg), func() {
			p.expire(gen, state)
		})
	}

	if state == Confirmed {
		if _, ok := p.cfg.Signals[p.label]; !ok {
			p.logger.Warn("confirmed category has no dedicated signal",
				"cycle", p.cycleID,
				"label", p.label,
			)
		}
	}

	p.publishLocked(p.signalsLocked())

	if state == Idle {
		p.logger.Info("selection finished", "cycle", p.cycleID, "label", p.label)
		p.label = ""
		p.cycleID = ""
	}
}

// expire fires when the dwell for from has elapsed.
func (p *Policy) expire(gen uint64, from State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || gen != p.gen || p.state != from {
		return
	}
	p.enterLocked(transitions[from].next)
}

func (p *Policy) publishLocked(s Signals) {
	for _, sink := range p.sinks {
		sink.Publish(s)
	}
}

// signalsLocked derives the presentation signals. Caller holds p.mu.
func (p *Policy) signalsLocked() Signals {
	s := Signals{
		State:   p.state,
		CycleID: p.cycleID,
		Flags:   make(map[string]bool, len(p.flags)),
	}
	for _, f := range p.flags {
		s.Flags[f] = false
	}

	switch p.state {
	case Scanning:
		s.Scanning = true
		s.Category = p.label
	case Confirmed:
		s.Scanning = true
		s.Confirmed = true
		s.Category = p.label
		if flag, ok := p.cfg.Signals[p.label]; ok {
			s.Flags[flag] = true
		}
	}
	return s
}

// State returns the current state.
func (p *Policy) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Signals returns the signals for the current state.
func (p *Policy) Signals() Signals {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.signalsLocked()
}

// Replay publishes the current signals to sink only. It holds the
// policy lock, so sink cannot see them after a later transition.
func (p *Policy) Replay(sink Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sink.Publish(p.signalsLocked())
}

// Snapshot returns the current state with its label and cycle.
func (p *Policy) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		State:     p.state,
		Label:     p.label,
		CycleID:   p.cycleID,
		EnteredAt: p.enteredAt,
	}
}

// Close cancels any pending dwell timer. After Close the policy ignores
// observations and publishes nothing more. Safe to call more than once.
func (p *Policy) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	return nil
}
