// smartbin runs the recycling kiosk: it watches the camera, classifies
// what is held up to it and drives the selection animation.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-smartbin/internal/config"
	"github.com/teslashibe/go-smartbin/internal/log"
	"github.com/teslashibe/go-smartbin/pkg/camera"
	"github.com/teslashibe/go-smartbin/pkg/camera/capture"
	"github.com/teslashibe/go-smartbin/pkg/hub"
	"github.com/teslashibe/go-smartbin/pkg/kiosk"
	"github.com/teslashibe/go-smartbin/pkg/observe"
	"github.com/teslashibe/go-smartbin/pkg/overlay"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	log.Init(cfg.LogLevel)
	logger := log.L()

	app, err := kiosk.New(cfg,
		kiosk.WithLogger(logger),
		kiosk.WithSourceOpener(openCamera),
		kiosk.WithBackend(newBackend),
		kiosk.WithFeed(newFeed),
	)
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Init(ctx); err != nil {
		logger.Error("initialization failed", "error", err)
		os.Exit(1)
	}

	runErr := app.Run(ctx)

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	app.Shutdown(shutdownCtx)

	if runErr != nil {
		logger.Error("runtime error", "error", runErr)
		os.Exit(1)
	}
}

// loadConfig layers flags over SMARTBIN_* env vars over the YAML file
// over defaults.
func loadConfig() (config.Kiosk, error) {
	path := flag.String("config", config.Path(), "YAML config file (SMARTBIN_CONFIG)")
	addr := flag.String("addr", "", "HTTP listen address (SMARTBIN_ADDR)")
	level := flag.String("log-level", "", "debug, info, warn or error (SMARTBIN_LOG_LEVEL)")
	device := flag.Int("device", -1, "Camera device index (SMARTBIN_CAMERA_DEVICE)")
	backend := flag.String("backend", "", "Classifier backend: onnx, rknn or mock (SMARTBIN_BACKEND)")
	model := flag.String("model", "", "Model file (SMARTBIN_MODEL)")
	labels := flag.String("labels", "", "Labels file or metadata.json (SMARTBIN_LABELS)")
	otlp := flag.String("otlp", "", "OTLP gRPC endpoint for metrics (SMARTBIN_OTLP_ENDPOINT)")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		return cfg, err
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		return cfg, err
	}

	if *addr != "" {
		cfg.Web.Addr = *addr
	}
	if *level != "" {
		cfg.LogLevel = *level
	}
	if *device >= 0 {
		cfg.Camera.Device = *device
	}
	if *backend != "" {
		cfg.Classifier.Backend = *backend
	}
	if *model != "" {
		cfg.Classifier.Model = *model
	}
	if *labels != "" {
		cfg.Classifier.Labels = *labels
	}
	if *otlp != "" {
		cfg.Metrics.Endpoint = *otlp
	}

	return cfg, cfg.Validate()
}

func openCamera(cfg camera.Config, logger *slog.Logger) (camera.Source, error) {
	dev, err := capture.Open(cfg, logger)
	if err != nil {
		return nil, err
	}
	return dev, nil
}

func newFeed(cfg camera.Config, out *hub.Hub, logger *slog.Logger) observe.Listener {
	return overlay.NewFeed(overlay.NewRenderer(cfg), out, logger)
}
