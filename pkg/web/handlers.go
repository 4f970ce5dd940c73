package web

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/teslashibe/go-smartbin/pkg/camera"
	"github.com/teslashibe/go-smartbin/pkg/observe"
	"github.com/teslashibe/go-smartbin/pkg/selection"
)

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	State   *selection.Snapshot `json:"state,omitempty"`
	Signals *selection.Signals  `json:"signals,omitempty"`
	Latest  *ObservationEvent   `json:"latest,omitempty"`
	Loop    *observe.Stats      `json:"loop,omitempty"`
	Clients map[string]int      `json:"clients"`
	Uptime  string              `json:"uptime"`
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	if s.ready != nil && !s.ready.IsReady() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":      "starting",
			"model_ready": false,
		})
	}
	return c.JSON(fiber.Map{
		"status":      "ok",
		"model_ready": true,
	})
}

// handleStatus returns the selection state, latest observation and loop stats
func (s *Server) handleStatus(c *fiber.Ctx) error {
	resp := StatusResponse{
		Clients: map[string]int{
			s.signalsHub.Name():      s.signalsHub.ClientCount(),
			s.observationsHub.Name(): s.observationsHub.ClientCount(),
			s.cameraHub.Name():       s.cameraHub.ClientCount(),
		},
	}
	if !s.started.IsZero() {
		resp.Uptime = time.Since(s.started).Truncate(time.Second).String()
	}

	if s.policy != nil {
		snap := s.policy.Snapshot()
		sig := s.policy.Signals()
		resp.State = &snap
		resp.Signals = &sig
	}
	if s.loop != nil {
		stats := s.loop.Stats()
		resp.Loop = &stats
		if sample, ok := s.loop.Latest(); ok {
			ev := eventFor(sample)
			resp.Latest = &ev
		}
	}

	return c.JSON(resp)
}

// handleCategories returns the allowed categories and their signal flags
func (s *Server) handleCategories(c *fiber.Ctx) error {
	if s.policy == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "selection policy not configured",
		})
	}

	cfg := s.policy.Config()
	return c.JSON(fiber.Map{
		"categories":       cfg.Categories,
		"threshold":        cfg.Threshold,
		"signals":          cfg.Signals,
		"scan_dwell_ms":    cfg.ScanDwell.Milliseconds(),
		"confirm_dwell_ms": cfg.ConfirmDwell.Milliseconds(),
	})
}

// handleGetCamera returns the current camera configuration
func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	if s.camera == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "camera not configured",
		})
	}
	return c.JSON(s.camera.Config())
}

// handleSetCamera applies a partial camera update, optionally from a preset
func (s *Server) handleSetCamera(c *fiber.Ctx) error {
	if s.camera == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "camera not configured",
		})
	}

	var patch camera.Patch
	if err := c.BodyParser(&patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid JSON body",
		})
	}

	cfg, err := s.camera.Update(patch)
	if err != nil {
		status := fiber.StatusBadRequest
		var invalid *camera.InvalidConfigError
		if !errors.As(err, &invalid) && !errors.Is(err, camera.ErrUnknownPreset) {
			// The device refused the settings
			status = fiber.StatusConflict
		}
		s.logger.Warn("camera update rejected", "error", err)
		return c.Status(status).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	s.logger.Info("camera config updated", "width", cfg.Width, "height", cfg.Height, "framerate", cfg.Framerate)
	return c.JSON(cfg)
}
