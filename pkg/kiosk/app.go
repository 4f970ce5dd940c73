// Package kiosk wires the smart bin together: camera, classifier,
// selection policy, observation loop and web server.
package kiosk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-smartbin/internal/config"
	"github.com/teslashibe/go-smartbin/internal/log"
	"github.com/teslashibe/go-smartbin/pkg/camera"
	"github.com/teslashibe/go-smartbin/pkg/classifier"
	"github.com/teslashibe/go-smartbin/pkg/clock"
	"github.com/teslashibe/go-smartbin/pkg/hub"
	"github.com/teslashibe/go-smartbin/pkg/metrics"
	"github.com/teslashibe/go-smartbin/pkg/observe"
	"github.com/teslashibe/go-smartbin/pkg/selection"
	"github.com/teslashibe/go-smartbin/pkg/web"
)

// SourceOpener acquires the video source.
type SourceOpener func(cfg camera.Config, logger *slog.Logger) (camera.Source, error)

// BackendFactory loads the classifier model.
type BackendFactory func(cfg config.Classifier, logger *slog.Logger) (classifier.Classifier, error)

// FeedFactory builds the listener that streams overlaid frames to the
// camera hub.
type FeedFactory func(cfg camera.Config, out *hub.Hub, logger *slog.Logger) observe.Listener

// Reconfigurer is implemented by sources that can apply new camera
// settings without a restart.
type Reconfigurer interface {
	Reconfigure(cfg camera.Config) error
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.base = l }
}

// WithSourceOpener sets how the camera is opened.
func WithSourceOpener(f SourceOpener) Option {
	return func(a *App) { a.openSource = f }
}

// WithBackend sets how the model is loaded.
func WithBackend(f BackendFactory) Option {
	return func(a *App) { a.newBackend = f }
}

// WithFeed enables the overlaid camera feed.
func WithFeed(f FeedFactory) Option {
	return func(a *App) { a.newFeed = f }
}

// WithClock sets the selection policy's time source.
func WithClock(c clock.Clock) Option {
	return func(a *App) { a.clock = c }
}

// App is the kiosk application.
type App struct {
	config config.Kiosk
	base   *slog.Logger // handed to components, which tag their own name
	logger *slog.Logger
	clock  clock.Clock

	openSource SourceOpener
	newBackend BackendFactory
	newFeed    FeedFactory

	metrics   *metrics.Metrics
	source    camera.Source
	cameraMgr *camera.Manager
	adapter   *classifier.Adapter
	policy    *selection.Policy
	loop      *observe.Loop
	webServer *web.Server
	feed      observe.Listener

	shutdownOnce sync.Once
}

// New creates a kiosk application with the given configuration.
func New(cfg config.Kiosk, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kiosk: invalid config: %w", err)
	}

	a := &App{
		config:     cfg,
		clock:      clock.Real(),
		newBackend: MockBackend,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = log.Component(a.base, "kiosk")
	return a, nil
}

// Init builds every component. Call this after New() and before Run().
// A camera that cannot be opened is logged and leaves the loop stopped;
// a model that cannot be loaded is an error.
func (a *App) Init(ctx context.Context) error {
	m, err := metrics.Setup(ctx, a.config.Metrics, a.base)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	a.metrics = m

	backend, err := a.newBackend(a.config.Classifier, a.base)
	if err != nil {
		return fmt.Errorf("classifier: %w", err)
	}
	a.adapter = classifier.NewAdapter(backend,
		classifier.WithName(a.config.Classifier.Backend),
		classifier.WithLogger(a.base),
		classifier.WithRecorder(m),
		classifier.WithTimeout(a.config.Classifier.Timeout),
	)
	a.adapter.MarkReady()

	a.policy, err = selection.New(a.config.Selection,
		selection.WithClock(a.clock),
		selection.WithLogger(a.base),
		selection.WithRecorder(m),
		selection.WithSink(selection.SinkFunc(func(s selection.Signals) {
			a.webServer.Publish(s)
		})),
	)
	if err != nil {
		return fmt.Errorf("selection: %w", err)
	}

	a.cameraMgr = camera.NewManager(a.config.Camera)
	a.initSource()

	loopOpts := []observe.Option{
		observe.WithLogger(a.base),
		observe.WithRate(a.config.Loop.Rate),
		observe.WithRecorder(m),
		observe.WithListener(observe.ListenerFunc(a.onSample)),
	}
	if a.source != nil {
		a.loop = observe.New(a.source, a.adapter, a.policy, loopOpts...)
	}

	a.webServer = web.New(a.config.Web.Addr,
		web.WithLogger(a.base),
		web.WithStaticDir(a.config.Web.StaticDir),
		web.WithPolicy(a.policy),
		web.WithLoop(a.loopView()),
		web.WithCamera(a.cameraMgr),
		web.WithReadiness(a.adapter),
	)
	if a.newFeed != nil {
		a.feed = a.newFeed(a.config.Camera, a.webServer.CameraHub(), a.base)
	}

	return nil
}

// onSample fans a loop sample out to the web streams and the camera feed.
func (a *App) onSample(s observe.Sample) {
	a.webServer.OnSample(s)
	if a.feed != nil {
		a.feed.OnSample(s)
	}
}

// initSource opens the camera once. Failure is reported and not retried.
func (a *App) initSource() {
	if a.openSource == nil {
		a.logger.Error("no video source configured")
		return
	}

	src, err := a.openSource(a.config.Camera, a.base)
	if err != nil {
		a.logger.Error("camera unavailable, observation loop will not start", "error", err)
		return
	}
	a.source = src

	if r, ok := src.(Reconfigurer); ok {
		a.cameraMgr.OnChange(r.Reconfigure)
	}
}

// Run serves the web API and runs the observation loop.
// Blocks until ctx is cancelled or the web server fails, and does not
// return before the loop has stopped.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	webErr := make(chan error, 1)
	go func() { webErr <- a.webServer.Start(ctx) }()

	loopDone := make(chan struct{})
	if a.loop != nil {
		go func() {
			defer close(loopDone)
			if err := a.loop.Run(ctx); err != nil && !errors.Is(err, camera.ErrClosed) {
				a.logger.Error("observation loop failed", "error", err)
			}
		}()
	} else {
		close(loopDone)
	}

	a.logger.Info("kiosk running", "addr", a.config.Web.Addr, "camera", a.source != nil)

	var err error
	select {
	case err = <-webErr:
	case <-ctx.Done():
		err = <-webErr
	}

	cancel()
	<-loopDone
	return err
}

// Shutdown cancels pending timers and releases the camera and model.
// Safe to call more than once.
func (a *App) Shutdown(ctx context.Context) {
	a.shutdownOnce.Do(func() {
		a.logger.Info("shutting down")

		if a.policy != nil {
			a.policy.Close()
		}
		if a.source != nil {
			if err := a.source.Close(); err != nil {
				a.logger.Warn("camera close failed", "error", err)
			}
		}
		if a.adapter != nil {
			if err := a.adapter.Close(); err != nil {
				a.logger.Warn("classifier close failed", "error", err)
			}
		}
		if a.metrics != nil {
			a.metrics.Shutdown(ctx)
		}
	})
}

// Policy returns the selection policy. Nil before Init.
func (a *App) Policy() *selection.Policy {
	return a.policy
}

// Loop returns the observation loop. Nil when the camera failed to open.
func (a *App) Loop() *observe.Loop {
	return a.loop
}

// Web returns the web server. Nil before Init.
func (a *App) Web() *web.Server {
	return a.webServer
}

func (a *App) loopView() web.LoopView {
	if a.loop == nil {
		return nil
	}
	return a.loop
}
