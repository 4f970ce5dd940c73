package overlay

import (
	"log/slog"

	"github.com/teslashibe/go-smartbin/internal/log"
	"github.com/teslashibe/go-smartbin/pkg/observe"
)

// Publisher is where rendered frames go. *hub.Hub satisfies it.
type Publisher interface {
	BroadcastBinary(data []byte)
	ClientCount() int
}

// Feed renders every sample and publishes it. Frames are only rendered
// while someone is watching.
type Feed struct {
	renderer *Renderer
	out      Publisher
	logger   *slog.Logger
}

// NewFeed returns an observe.Listener that streams overlaid frames to out.
func NewFeed(r *Renderer, out Publisher, logger *slog.Logger) *Feed {
	return &Feed{
		renderer: r,
		out:      out,
		logger:   log.Component(logger, "overlay"),
	}
}

// OnSample implements observe.Listener.
func (f *Feed) OnSample(s observe.Sample) {
	if f.out.ClientCount() == 0 {
		return
	}

	data, err := f.renderer.Render(s.Frame, &s.Observation)
	if err != nil {
		f.logger.Debug("render failed", "frame", s.Frame.Seq, "error", err)
		return
	}
	f.out.BroadcastBinary(data)
}
