package observability

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/MalkIPP/openfisca-core/pkg/errors"
)

// Exporter types
const (
	ExporterStdout = "stdout"
	ExporterNone   = "none"
)

// initTracing installs a tracer provider built from config as the global one
func initTracing(config TracingConfig) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(config.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(config.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var sampler sdktrace.Sampler
	switch {
	case config.SamplingRate <= 0:
		sampler = sdktrace.NeverSample()
	case config.SamplingRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(config.SamplingRate)
	}
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	}

	switch config.Exporter {
	case ExporterNone:
	case ExporterStdout, "":
		w := config.Writer
		if w == nil {
			w = os.Stderr
		}
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(config.BatchTimeout),
		))
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown trace exporter %q", config.Exporter)
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp, nil
}

// DefaultConfig returns the tracing configuration taken from the
// environment: OTEL_TRACES_EXPORTER, OTEL_TRACES_SAMPLER_ARG and
// OPENFISCA_ENVIRONMENT.
func DefaultConfig() TracingConfig {
	rate, err := strconv.ParseFloat(getEnv("OTEL_TRACES_SAMPLER_ARG", "1"), 64)
	if err != nil {
		rate = 1
	}
	return TracingConfig{
		ServiceName:    "openfisca",
		ServiceVersion: "dev",
		Environment:    getEnv("OPENFISCA_ENVIRONMENT", "development"),
		SamplingRate:   rate,
		Exporter:       getEnv("OTEL_TRACES_EXPORTER", ExporterNone),
		BatchTimeout:   5 * time.Second,
	}
}

// getEnv gets environment variable with default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Shutdown flushes pending spans and stops the tracer provider installed by
// Initialize.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	tp := provider
	provider = nil
	tracer = nil
	mu.Unlock()

	if tp == nil {
		return nil
	}
	if err := tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown tracer: %w", err)
	}
	return nil
}
