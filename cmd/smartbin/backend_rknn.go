//go:build rknn

package main

import (
	"log/slog"

	"github.com/teslashibe/go-smartbin/internal/config"
	"github.com/teslashibe/go-smartbin/pkg/classifier"
	"github.com/teslashibe/go-smartbin/pkg/classifier/rknn"
)

// newBackend prefers the NPU. When an ONNX model is also configured via
// SMARTBIN_FALLBACK_MODEL it is chained behind the NPU backend.
func newBackend(cfg config.Classifier, logger *slog.Logger) (classifier.Classifier, error) {
	if cfg.Backend != config.BackendRKNN {
		return commonBackend(cfg, logger)
	}

	rc := rknn.DefaultConfig()
	rc.ModelPath = cfg.Model
	rc.LabelsPath = cfg.Labels
	rc.InputWidth = cfg.InputWidth
	rc.InputHeight = cfg.InputHeight

	npu, err := rknn.New(rc)
	if err != nil {
		return nil, err
	}
	logger.Info("rknn model loaded", "model", cfg.Model)

	fallback := config.Env("SMARTBIN_FALLBACK_MODEL", "")
	if fallback == "" {
		return npu, nil
	}

	cpuCfg := cfg
	cpuCfg.Model = fallback
	cpu, err := newONNX(cpuCfg, logger)
	if err != nil {
		logger.Warn("fallback model unavailable", "model", fallback, "error", err)
		return npu, nil
	}
	return classifier.NewChain(logger, npu, cpu)
}
