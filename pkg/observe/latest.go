package observe

import (
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-smartbin/pkg/camera"
	"github.com/teslashibe/go-smartbin/pkg/classifier"
)

// Sample is an observation together with the frame it came from.
type Sample struct {
	Observation classifier.Observation
	Frame       camera.Frame
	At          time.Time
}

// Latest holds the most recent sample. One writer (the loop) overwrites
// it every iteration; readers may see a value one iteration old.
type Latest struct {
	v atomic.Pointer[Sample]
}

// Store replaces the current sample.
func (l *Latest) Store(s Sample) {
	l.v.Store(&s)
}

// Load returns the current sample, or false if none has been stored.
func (l *Latest) Load() (Sample, bool) {
	s := l.v.Load()
	if s == nil {
		return Sample{}, false
	}
	return *s, true
}
