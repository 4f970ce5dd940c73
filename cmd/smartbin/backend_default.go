//go:build !rknn

package main

import (
	"log/slog"

	"github.com/teslashibe/go-smartbin/internal/config"
	"github.com/teslashibe/go-smartbin/pkg/classifier"
)

// newBackend has no NPU support; build with -tags rknn on Rockchip boards.
func newBackend(cfg config.Classifier, logger *slog.Logger) (classifier.Classifier, error) {
	return commonBackend(cfg, logger)
}
