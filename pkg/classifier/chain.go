package classifier

import (
	"context"
	"log/slog"

	"github.com/teslashibe/go-smartbin/internal/log"
	"github.com/teslashibe/go-smartbin/pkg/camera"
)

// Chain tries multiple classifiers in order until one succeeds.
type Chain struct {
	backends []Classifier
	logger   *slog.Logger
}

// NewChain creates a classifier chain.
// At least one backend is required.
func NewChain(logger *slog.Logger, backends ...Classifier) (*Chain, error) {
	if len(backends) == 0 {
		return nil, ErrUnavailable
	}
	return &Chain{
		backends: backends,
		logger:   log.Component(logger, "classifier.chain"),
	}, nil
}

// Classify tries each backend until one succeeds.
func (c *Chain) Classify(ctx context.Context, frame camera.Frame) (Observation, error) {
	var errs []error

	for i, b := range c.backends {
		obs, err := b.Classify(ctx, frame)
		if err == nil {
			if i > 0 {
				c.logger.Info("fallback classifier succeeded", "backend_index", i)
			}
			return obs, nil
		}

		errs = append(errs, err)
		c.logger.Warn("classifier failed, trying next",
			"backend_index", i,
			"error", err,
		)

		if ctx.Err() != nil {
			return Observation{}, ctx.Err()
		}
	}

	return Observation{}, &ChainError{Errors: errs}
}

// Close closes every backend that holds resources and returns the
// first error.
func (c *Chain) Close() error {
	var first error
	for _, b := range c.backends {
		if cl, ok := b.(Closer); ok {
			if err := cl.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
