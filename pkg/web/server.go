// Package web serves the kiosk page, its JSON API and the websocket
// streams that drive the selection animation.
package web

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-smartbin/internal/log"
	"github.com/teslashibe/go-smartbin/pkg/camera"
	"github.com/teslashibe/go-smartbin/pkg/hub"
	"github.com/teslashibe/go-smartbin/pkg/observe"
	"github.com/teslashibe/go-smartbin/pkg/selection"
)

// PolicyView is the read side of the selection policy.
type PolicyView interface {
	Config() selection.Config
	Signals() selection.Signals
	Snapshot() selection.Snapshot
	Replay(selection.Sink)
}

// LoopView is the read side of the observation loop.
type LoopView interface {
	Latest() (observe.Sample, bool)
	Stats() observe.Stats
}

// Readiness reports whether the model is loaded.
type Readiness interface {
	IsReady() bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.base = l }
}

// WithStaticDir serves the kiosk page from dir.
func WithStaticDir(dir string) Option {
	return func(s *Server) { s.staticDir = dir }
}

// WithPolicy exposes the policy state on /api/status and /api/categories.
func WithPolicy(p PolicyView) Option {
	return func(s *Server) { s.policy = p }
}

// WithLoop exposes loop stats and the latest observation.
func WithLoop(l LoopView) Option {
	return func(s *Server) { s.loop = l }
}

// WithCamera enables GET/POST /api/camera.
func WithCamera(m *camera.Manager) Option {
	return func(s *Server) { s.camera = m }
}

// WithReadiness reports model readiness on /healthz.
func WithReadiness(r Readiness) Option {
	return func(s *Server) { s.ready = r }
}

// Server is the kiosk web server. It is a selection.Sink and an
// observe.Listener.
type Server struct {
	app       *fiber.App
	addr      string
	staticDir string
	base      *slog.Logger
	logger    *slog.Logger

	policy PolicyView
	loop   LoopView
	camera *camera.Manager
	ready  Readiness

	// Hubs for websocket broadcast
	signalsHub      *hub.Hub
	observationsHub *hub.Hub
	cameraHub       *hub.Hub

	started time.Time
}

// New creates a server listening on addr once Start is called.
func New(addr string, opts ...Option) *Server {
	s := &Server{addr: addr}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.Component(s.base, "web")

	s.signalsHub = hub.New("signals", hub.WithLogger(s.base), hub.WithReplay())
	s.observationsHub = hub.New("observations", hub.WithLogger(s.base))
	s.cameraHub = hub.New("camera", hub.WithLogger(s.base), hub.WithBuffer(8))

	app := fiber.New(fiber.Config{
		AppName:               "smartbin",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	if s.staticDir != "" {
		if _, err := os.Stat(s.staticDir); err == nil {
			app.Static("/", s.staticDir)
		} else {
			s.logger.Warn("static dir not found, kiosk page disabled", "dir", s.staticDir)
		}
	}

	app.Get("/healthz", s.handleHealth)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/categories", s.handleCategories)
	api.Get("/camera", s.handleGetCamera)
	api.Post("/camera", s.handleSetCamera)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/signals", websocket.New(s.serveHub(s.signalsHub)))
	app.Get("/ws/observations", websocket.New(s.serveHub(s.observationsHub)))
	app.Get("/ws/camera", websocket.New(s.serveHub(s.cameraHub)))

	s.app = app
	return s
}

// App returns the fiber app, for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// CameraHub is where overlaid camera frames are published.
func (s *Server) CameraHub() *hub.Hub {
	return s.cameraHub
}

// SignalsHub streams selection signals.
func (s *Server) SignalsHub() *hub.Hub {
	return s.signalsHub
}

// ObservationsHub streams raw observations.
func (s *Server) ObservationsHub() *hub.Hub {
	return s.observationsHub
}

// StartHubs runs the broadcast hubs until ctx is done and seeds the
// signals stream with the current policy state.
func (s *Server) StartHubs(ctx context.Context) {
	s.started = time.Now()
	go s.signalsHub.Run(ctx)
	go s.observationsHub.Run(ctx)
	go s.cameraHub.Run(ctx)

	if s.policy != nil {
		s.policy.Replay(s)
	}
}

// Start runs the hubs and serves HTTP until ctx is done, then shuts the
// server down.
func (s *Server) Start(ctx context.Context) error {
	s.StartHubs(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("web server listening", "addr", s.addr)
		errCh <- s.app.Listen(s.addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if err := s.Shutdown(5 * time.Second); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the web server
func (s *Server) Shutdown(timeout time.Duration) error {
	s.logger.Info("web server stopping")
	return s.app.ShutdownWithTimeout(timeout)
}

// Publish implements selection.Sink. It never blocks.
func (s *Server) Publish(sig selection.Signals) {
	if err := s.signalsHub.BroadcastJSON(sig); err != nil {
		s.logger.Error("encode signals", "error", err)
	}
}

// ObservationEvent is one /ws/observations message.
type ObservationEvent struct {
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Percent    int       `json:"percent"`
	Frame      uint64    `json:"frame"`
	At         time.Time `json:"at"`
}

func eventFor(sample observe.Sample) ObservationEvent {
	return ObservationEvent{
		Label:      sample.Observation.Label,
		Confidence: sample.Observation.Confidence,
		Percent:    sample.Observation.Percent(),
		Frame:      sample.Frame.Seq,
		At:         sample.At,
	}
}

// OnSample implements observe.Listener.
func (s *Server) OnSample(sample observe.Sample) {
	if s.observationsHub.ClientCount() == 0 {
		return
	}
	s.observationsHub.BroadcastJSON(eventFor(sample))
}

func (s *Server) serveHub(h *hub.Hub) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		client := hub.NewClient(h, c)
		if client == nil {
			c.Close()
			return
		}
		client.Run()
	}
}
