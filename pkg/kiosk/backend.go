package kiosk

import (
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-smartbin/internal/config"
	"github.com/teslashibe/go-smartbin/pkg/classifier"
)

// MockBackend answers every frame with the configured label. It is the
// default factory and only serves the mock backend.
func MockBackend(cfg config.Classifier, logger *slog.Logger) (classifier.Classifier, error) {
	if cfg.Backend != config.BackendMock {
		return nil, fmt.Errorf("backend %q not available in this build", cfg.Backend)
	}
	return classifier.NewMock(classifier.Observation{
		Label:      cfg.MockLabel,
		Confidence: cfg.MockConfidence,
	}), nil
}
