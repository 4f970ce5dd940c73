package selection

import (
	"fmt"
	"time"
)

// State is the policy's position in a selection cycle.
type State int

const (
	// Idle accepts observations and may start a cycle.
	Idle State = iota
	// Scanning shows the scan animation for the triggering label.
	Scanning
	// Confirmed shows the selected category.
	Confirmed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case Confirmed:
		return "confirmed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Active reports whether a cycle is running.
func (s State) Active() bool {
	return s != Idle
}

// transition is one timed edge of the cycle.
type transition struct {
	next  State
	dwell func(Config) time.Duration
}

// transitions lists the timed edges. Idle has none; it only leaves on a
// qualifying observation.
var transitions = map[State]transition{
	Scanning:  {next: Confirmed, dwell: func(c Config) time.Duration { return c.ScanDwell }},
	Confirmed: {next: Idle, dwell: func(c Config) time.Duration { return c.ConfirmDwell }},
}

// Outcome reports what Observe did with an observation.
type Outcome int

const (
	// Rejected means the policy was idle but the observation did not qualify.
	Rejected Outcome = iota
	// Triggered means the observation started a cycle.
	Triggered
	// Ignored means a cycle was active (or the policy closed) and the
	// observation was not evaluated.
	Ignored
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Rejected:
		return "rejected"
	case Triggered:
		return "triggered"
	case Ignored:
		return "ignored"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Signals is the presentation state derived from the policy state.
// It is never stored; every emission is computed fresh.
type Signals struct {
	State     State           `json:"state"`
	CycleID   string          `json:"cycle_id,omitempty"`
	Scanning  bool            `json:"scanning"`
	Confirmed bool            `json:"confirmed"`
	Category  string          `json:"category,omitempty"`
	Flags     map[string]bool `json:"flags"`
}

// Flag returns the value of a named flag; the scanning flag is included.
func (s Signals) Flag(name string) bool {
	if name == SignalScanning {
		return s.Scanning
	}
	return s.Flags[name]
}

// Snapshot is a point-in-time view of the policy.
type Snapshot struct {
	State     State     `json:"state"`
	Label     string    `json:"label,omitempty"`
	CycleID   string    `json:"cycle_id,omitempty"`
	EnteredAt time.Time `json:"entered_at"`
}
