package selection

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-smartbin/internal/log"
	"github.com/teslashibe/go-smartbin/pkg/classifier"
	"github.com/teslashibe/go-smartbin/pkg/clock"
)

type emission struct {
	at      time.Duration
	signals Signals
}

type recordingSink struct {
	mu    sync.Mutex
	clock *clock.Fake
	start time.Time
	got   []emission
}

func (r *recordingSink) Publish(s Signals) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, emission{at: r.clock.Now().Sub(r.start), signals: s})
}

func (r *recordingSink) emissions() []emission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]emission(nil), r.got...)
}

type countingRecorder struct {
	cycles []string
}

func (c *countingRecorder) RecordCycle(category string) {
	c.cycles = append(c.cycles, category)
}

func newTestPolicy(t *testing.T, opts ...Option) (*Policy, *clock.Fake, *recordingSink) {
	t.Helper()

	fc := clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	sink := &recordingSink{clock: fc, start: fc.Now()}

	ids := 0
	base := []Option{
		WithClock(fc),
		WithSink(sink),
		WithLogger(log.Discard()),
		WithIDs(func() string {
			ids++
			return fmt.Sprintf("cycle-%d", ids)
		}),
	}

	p, err := New(DefaultConfig(), append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })

	return p, fc, sink
}

func obs(label string, conf float64) classifier.Observation {
	return classifier.Observation{Label: label, Confidence: conf}
}

// Scenario 1: a confident PET runs a full 4s cycle.
func TestScenarioFullCycle(t *testing.T) {
	p, fc, sink := newTestPolicy(t)

	require.Equal(t, Triggered, p.Observe(obs("PET", 0.95)))
	assert.Equal(t, Scanning, p.State())

	s := p.Signals()
	assert.True(t, s.Scanning)
	assert.False(t, s.Confirmed)
	assert.False(t, s.Flag(SignalPetSelected))

	fc.Advance(2 * time.Second)
	assert.Equal(t, Confirmed, p.State())
	s = p.Signals()
	assert.True(t, s.Flag(SignalPetSelected))
	assert.False(t, s.Flag(SignalAlumSelected))
	assert.True(t, s.Scanning, "scanning stays raised while confirmed")

	fc.Advance(2 * time.Second)
	assert.Equal(t, Idle, p.State())
	s = p.Signals()
	assert.False(t, s.Scanning)
	assert.False(t, s.Confirmed)
	for name, v := range s.Flags {
		assert.False(t, v, "flag %s should be cleared", name)
	}

	got := sink.emissions()
	require.Len(t, got, 3)
	assert.Equal(t, time.Duration(0), got[0].at)
	assert.Equal(t, Scanning, got[0].signals.State)
	assert.Equal(t, 2*time.Second, got[1].at)
	assert.Equal(t, Confirmed, got[1].signals.State)
	assert.Equal(t, 4*time.Second, got[2].at)
	assert.Equal(t, Idle, got[2].signals.State)

	for _, e := range got {
		assert.Equal(t, "cycle-1", e.signals.CycleID)
	}
}

// Scenario 2: a label outside the allowed set never triggers.
func TestScenarioLabelNotAllowed(t *testing.T) {
	p, fc, sink := newTestPolicy(t)

	assert.Equal(t, Rejected, p.Observe(obs("Glass", 0.99)))
	fc.Advance(10 * time.Second)

	assert.Equal(t, Idle, p.State())
	assert.Empty(t, sink.emissions())
}

// Scenario 3: below-threshold confidence never triggers.
func TestScenarioBelowThreshold(t *testing.T) {
	p, fc, sink := newTestPolicy(t)

	assert.Equal(t, Rejected, p.Observe(obs("Aluminum", 0.85)))
	fc.Advance(10 * time.Second)

	assert.Equal(t, Idle, p.State())
	assert.Empty(t, sink.emissions())
}

// Scenario 4: a second allowed label mid-cycle is ignored.
func TestScenarioSecondLabelIgnored(t *testing.T) {
	p, fc, sink := newTestPolicy(t)

	require.Equal(t, Triggered, p.Observe(obs("PET", 0.95)))

	fc.Advance(1 * time.Second)
	assert.Equal(t, Ignored, p.Observe(obs("Aluminum", 0.99)))

	fc.Advance(1 * time.Second)
	s := p.Signals()
	assert.Equal(t, Confirmed, s.State)
	assert.True(t, s.Flag(SignalPetSelected))
	assert.False(t, s.Flag(SignalAlumSelected))
	assert.Equal(t, "PET", s.Category)

	fc.Advance(2 * time.Second)
	assert.Equal(t, Idle, p.State())
	assert.Len(t, sink.emissions(), 3)
}

func TestThresholdIsStrict(t *testing.T) {
	p, _, _ := newTestPolicy(t)

	assert.Equal(t, Rejected, p.Observe(obs("PET", 0.9)))
	assert.Equal(t, Idle, p.State())

	assert.Equal(t, Triggered, p.Observe(obs("PET", 0.9000001)))
}

func TestDuplicateObservationStartsOneCycle(t *testing.T) {
	p, fc, sink := newTestPolicy(t)
	rec := &countingRecorder{}
	p.recorder = rec

	assert.Equal(t, Triggered, p.Observe(obs("PET", 0.95)))
	assert.Equal(t, Ignored, p.Observe(obs("PET", 0.95)))

	fc.Advance(4 * time.Second)
	assert.Len(t, sink.emissions(), 3)
	assert.Equal(t, []string{"PET"}, rec.cycles)
}

func TestObservationsDuringCycleDoNotExtendIt(t *testing.T) {
	p, fc, sink := newTestPolicy(t)

	require.Equal(t, Triggered, p.Observe(obs("PET", 0.95)))

	// Hammer the policy every 100ms for the whole cycle
	for i := 0; i < 39; i++ {
		fc.Advance(100 * time.Millisecond)
		assert.Equal(t, Ignored, p.Observe(obs("PET", 0.99)), "step %d", i)
	}

	assert.Equal(t, Confirmed, p.State(), "3.9s into the cycle")
	fc.Advance(100 * time.Millisecond)
	assert.Equal(t, Idle, p.State(), "cycle ends at exactly 4s")

	got := sink.emissions()
	require.Len(t, got, 3)
	assert.Equal(t, 4*time.Second, got[2].at)
}

func TestRearmsAfterCycle(t *testing.T) {
	p, fc, sink := newTestPolicy(t)

	require.Equal(t, Triggered, p.Observe(obs("PET", 0.95)))
	fc.Advance(4 * time.Second)
	require.Equal(t, Idle, p.State())

	require.Equal(t, Triggered, p.Observe(obs("Aluminum", 0.97)))
	fc.Advance(2 * time.Second)
	assert.True(t, p.Signals().Flag(SignalAlumSelected))

	fc.Advance(2 * time.Second)
	got := sink.emissions()
	require.Len(t, got, 6)
	assert.Equal(t, "cycle-1", got[0].signals.CycleID)
	assert.Equal(t, "cycle-2", got[3].signals.CycleID)
}

func TestUnmappedCategoryStillConfirms(t *testing.T) {
	p, fc, _ := newTestPolicy(t)

	require.Equal(t, Triggered, p.Observe(obs("PP", 0.95)))
	fc.Advance(2 * time.Second)

	s := p.Signals()
	assert.Equal(t, Confirmed, s.State)
	assert.True(t, s.Confirmed)
	assert.Equal(t, "PP", s.Category)
	for name, v := range s.Flags {
		assert.False(t, v, "no dedicated flag should be raised, got %s", name)
	}

	fc.Advance(2 * time.Second)
	assert.Equal(t, Idle, p.State())
}

func TestMalformedObservationsRejected(t *testing.T) {
	p, _, sink := newTestPolicy(t)

	for _, o := range []classifier.Observation{
		obs("", 0.99),
		obs("PET", 1.5),
		obs("PET", -0.2),
	} {
		assert.Equal(t, Rejected, p.Observe(o))
	}

	assert.Equal(t, Idle, p.State())
	assert.Empty(t, sink.emissions())
}

func TestCloseCancelsTimers(t *testing.T) {
	p, fc, sink := newTestPolicy(t)

	require.Equal(t, Triggered, p.Observe(obs("PET", 0.95)))
	require.Equal(t, 1, fc.Pending())

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 0, fc.Pending())

	fc.Advance(10 * time.Second)
	assert.Len(t, sink.emissions(), 1, "nothing is published after Close")
	assert.Equal(t, Ignored, p.Observe(obs("PET", 0.95)))
}

func TestSignalsListEveryFlag(t *testing.T) {
	p, _, _ := newTestPolicy(t)

	s := p.Signals()
	assert.Equal(t, Idle, s.State)
	assert.Contains(t, s.Flags, SignalPetSelected)
	assert.Contains(t, s.Flags, SignalAlumSelected)
	assert.Len(t, s.Flags, 2)
}

func TestSignalsJSON(t *testing.T) {
	p, fc, _ := newTestPolicy(t)

	p.Observe(obs("Aluminum", 0.99))
	fc.Advance(2 * time.Second)

	data, err := json.Marshal(p.Signals())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "confirmed", decoded["state"])
	assert.Equal(t, true, decoded["scanning"])
	assert.Equal(t, "Aluminum", decoded["category"])
	flags := decoded["flags"].(map[string]any)
	assert.Equal(t, true, flags[SignalAlumSelected])
	assert.Equal(t, false, flags[SignalPetSelected])
}

func TestSnapshot(t *testing.T) {
	p, fc, _ := newTestPolicy(t)
	start := fc.Now()

	p.Observe(obs("PET", 0.99))
	fc.Advance(2 * time.Second)

	snap := p.Snapshot()
	assert.Equal(t, Confirmed, snap.State)
	assert.Equal(t, "PET", snap.Label)
	assert.Equal(t, "cycle-1", snap.CycleID)
	assert.Equal(t, start.Add(2*time.Second), snap.EnteredAt)

	fc.Advance(2 * time.Second)
	snap = p.Snapshot()
	assert.Equal(t, Idle, snap.State)
	assert.Empty(t, snap.Label)
	assert.Empty(t, snap.CycleID)
}

func TestSinkFunc(t *testing.T) {
	var got []State
	fc := clock.NewFake(time.Unix(0, 0))
	p, err := New(DefaultConfig(),
		WithClock(fc),
		WithLogger(log.Discard()),
		WithSink(SinkFunc(func(s Signals) { got = append(got, s.State) })),
	)
	require.NoError(t, err)

	p.Observe(obs("PET", 0.95))
	fc.Advance(4 * time.Second)

	assert.Equal(t, []State{Scanning, Confirmed, Idle}, got)
}

func TestDefaultIDsAreUUIDs(t *testing.T) {
	p, err := New(DefaultConfig(), WithClock(clock.NewFake(time.Unix(0, 0))), WithLogger(log.Discard()))
	require.NoError(t, err)
	defer p.Close()

	p.Observe(obs("PET", 0.95))
	assert.Len(t, p.Snapshot().CycleID, 36)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"no categories", func(c *Config) { c.Categories = nil }},
		{"empty category", func(c *Config) { c.Categories = append(c.Categories, "") }},
		{"duplicate category", func(c *Config) { c.Categories = append(c.Categories, "PET") }},
		{"threshold one", func(c *Config) { c.Threshold = 1 }},
		{"negative threshold", func(c *Config) { c.Threshold = -0.1 }},
		{"zero scan dwell", func(c *Config) { c.ScanDwell = 0 }},
		{"negative confirm dwell", func(c *Config) { c.ConfirmDwell = -time.Second }},
		{"signal for unknown label", func(c *Config) { c.Signals = map[string]string{"Glass": "isGlassSelected"} }},
		{"empty signal name", func(c *Config) { c.Signals = map[string]string{"PP": ""} }},
		{"signal shadows scanning", func(c *Config) { c.Signals = map[string]string{"PP": SignalScanning} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())

			_, err := New(cfg)
			assert.Error(t, err)
		})
	}
}

func TestStateAndOutcomeStrings(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "scanning", Scanning.String())
	assert.Equal(t, "confirmed", Confirmed.String())
	assert.Equal(t, "state(9)", State(9).String())
	assert.Equal(t, "triggered", Triggered.String())
	assert.Equal(t, "ignored", Ignored.String())
	assert.Equal(t, "rejected", Rejected.String())
}

func TestRealClockCycle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ScanDwell = 20 * time.Millisecond
	cfg.ConfirmDwell = 20 * time.Millisecond

	done := make(chan struct{})
	p, err := New(cfg,
		WithLogger(log.Discard()),
		WithSink(SinkFunc(func(s Signals) {
			if s.State == Idle {
				close(done)
			}
		})),
	)
	require.NoError(t, err)
	defer p.Close()

	start := time.Now()
	require.Equal(t, Triggered, p.Observe(obs("PET", 0.95)))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cycle did not finish")
	}
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestReplayOrderedWithTransitions(t *testing.T) {
	for i := 0; i < 200; i++ {
		p, _, sink := newTestPolicy(t)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			p.Observe(obs("PET", 0.95))
		}()
		go func() {
			defer wg.Done()
			p.Replay(sink)
		}()
		wg.Wait()

		got := sink.emissions()
		require.Len(t, got, 2)
		assert.Equal(t, Scanning, got[len(got)-1].signals.State, "iteration %d", i)
	}
}

func TestReplayDoesNotReachOtherSinks(t *testing.T) {
	p, _, sink := newTestPolicy(t)

	var replayed []Signals
	p.Replay(SinkFunc(func(s Signals) { replayed = append(replayed, s) }))

	require.Len(t, replayed, 1)
	assert.Equal(t, Idle, replayed[0].State)
	assert.Empty(t, sink.emissions())
}
