// Package metrics records kiosk counters with OpenTelemetry.
//
// With no OTLP endpoint configured the global meter provider is used,
// which is a no-op unless something else installed one.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-smartbin/internal/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const meterName = "github.com/teslashibe/go-smartbin"

// Instrument names.
const (
	ObservationsName   = "smartbin.observations"
	ClassifyErrorsName = "smartbin.classification.errors"
	ClassifyTimeName   = "smartbin.classification.duration"
	CyclesName         = "smartbin.selection.cycles"
)

// Config configures the exporter.
type Config struct {
	ServiceName    string        `yaml:"service_name"`
	ServiceVersion string        `yaml:"service_version"`
	Endpoint       string        `yaml:"endpoint"` // host:port, empty disables export
	Insecure       bool          `yaml:"insecure"`
	Interval       time.Duration `yaml:"interval"`
}

// DefaultConfig exports nothing.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "smartbin",
		ServiceVersion: "dev",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// Metrics holds the kiosk instruments. It implements the recorder
// interfaces of the classifier, selection and observe packages.
type Metrics struct {
	provider *sdkmetric.MeterProvider
	logger   *slog.Logger

	observations   metric.Int64Counter
	classifyErrors metric.Int64Counter
	classifyTime   metric.Float64Histogram
	cycles         metric.Int64Counter
}

// Setup builds the instruments. When cfg.Endpoint is set, an SDK meter
// provider exporting over OTLP gRPC is created and installed globally.
func Setup(ctx context.Context, cfg Config, logger *slog.Logger) (*Metrics, error) {
	logger = log.Component(logger, "metrics")

	if cfg.Endpoint == "" {
		logger.Debug("metrics export disabled")
		return New(otel.GetMeterProvider(), logger)
	}

	res := resource.NewSchemaless(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	)

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("metrics: exporter: %w", err)
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultConfig().Interval
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(interval),
		)),
	)
	otel.SetMeterProvider(mp)

	m, err := New(mp, logger)
	if err != nil {
		mp.Shutdown(ctx)
		return nil, err
	}
	m.provider = mp

	logger.Info("metrics export enabled", "endpoint", cfg.Endpoint, "interval", interval)
	return m, nil
}

// New creates the instruments on mp.
func New(mp metric.MeterProvider, logger *slog.Logger) (*Metrics, error) {
	meter := mp.Meter(meterName)
	m := &Metrics{logger: log.Component(logger, "metrics")}

	var err, e error
	m.observations, e = meter.Int64Counter(ObservationsName,
		metric.WithDescription("Classifier observations handed to the selection policy"),
		metric.WithUnit("{observation}"),
	)
	err = errors.Join(err, e)

	m.classifyErrors, e = meter.Int64Counter(ClassifyErrorsName,
		metric.WithDescription("Failed classifications"),
		metric.WithUnit("{error}"),
	)
	err = errors.Join(err, e)

	m.classifyTime, e = meter.Float64Histogram(ClassifyTimeName,
		metric.WithDescription("Classification latency"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(5, 10, 20, 35, 50, 75, 100, 150, 250, 500, 1000),
	)
	err = errors.Join(err, e)

	m.cycles, e = meter.Int64Counter(CyclesName,
		metric.WithDescription("Selection cycles started"),
		metric.WithUnit("{cycle}"),
	)
	err = errors.Join(err, e)

	if err != nil {
		return nil, fmt.Errorf("metrics: instruments: %w", err)
	}
	return m, nil
}

// RecordClassification records one classifier call.
func (m *Metrics) RecordClassification(ctx context.Context, d time.Duration, err error) {
	ms := float64(d) / float64(time.Millisecond)
	if err != nil {
		m.classifyErrors.Add(ctx, 1)
		m.classifyTime.Record(ctx, ms, metric.WithAttributes(attribute.Bool("error", true)))
		return
	}
	m.classifyTime.Record(ctx, ms, metric.WithAttributes(attribute.Bool("error", false)))
}

// RecordObservation counts one loop iteration by outcome.
func (m *Metrics) RecordObservation(ctx context.Context, label, outcome string) {
	m.observations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("label", label),
		attribute.String("outcome", outcome),
	))
}

// RecordCycle counts a started selection cycle.
func (m *Metrics) RecordCycle(category string) {
	m.cycles.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("category", category),
	))
}

// Shutdown flushes and stops the exporter, if one was started.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	if err := m.provider.Shutdown(ctx); err != nil {
		m.logger.Error("metrics shutdown failed", "error", err)
		return err
	}
	return nil
}
