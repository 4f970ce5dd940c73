package main

import (
	"log/slog"

	"github.com/teslashibe/go-smartbin/internal/config"
	"github.com/teslashibe/go-smartbin/pkg/classifier"
	"github.com/teslashibe/go-smartbin/pkg/classifier/onnx"
	"github.com/teslashibe/go-smartbin/pkg/kiosk"
)

// newONNX loads the OpenCV dnn backend.
func newONNX(cfg config.Classifier, logger *slog.Logger) (classifier.Classifier, error) {
	oc := onnx.DefaultConfig()
	oc.ModelPath = cfg.Model
	oc.LabelsPath = cfg.Labels
	oc.InputWidth = cfg.InputWidth
	oc.InputHeight = cfg.InputHeight
	oc.Softmax = cfg.Softmax

	c, err := onnx.New(oc)
	if err != nil {
		return nil, err
	}
	logger.Info("onnx model loaded", "model", cfg.Model)
	return c, nil
}

// commonBackend serves the backends every build has.
func commonBackend(cfg config.Classifier, logger *slog.Logger) (classifier.Classifier, error) {
	switch cfg.Backend {
	case config.BackendONNX:
		return newONNX(cfg, logger)
	default:
		return kiosk.MockBackend(cfg, logger)
	}
}
