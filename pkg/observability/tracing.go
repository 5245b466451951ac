// Package observability sets up OpenTelemetry tracing for the command line
// and gives the engine's processing stages a span helper that also feeds the
// Prometheus stage histogram.
package observability

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/MalkIPP/openfisca-core/pkg/metrics"
)

var (
	mu       sync.Mutex
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
)

// TracingConfig contains tracing configuration
type TracingConfig struct {
	ServiceName    string  `yaml:"service_name"`
	ServiceVersion string  `yaml:"service_version"`
	Environment    string  `yaml:"environment"`
	SamplingRate   float64 `yaml:"sampling_rate"`
	// Exporter is "stdout" or "none"
	Exporter     string        `yaml:"exporter"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
	// Writer receives stdout spans, os.Stderr when nil
	Writer io.Writer `yaml:"-"`
}

// Initialize installs the global tracer provider. Calling it again replaces
// the previous provider after shutting it down.
func Initialize(config TracingConfig) error {
	if err := Shutdown(context.Background()); err != nil {
		return err
	}
	tp, err := initTracing(config)
	if err != nil {
		return err
	}
	mu.Lock()
	provider = tp
	tracer = tp.Tracer(config.ServiceName)
	mu.Unlock()
	return nil
}

// Tracer returns the tracer installed by Initialize, or the global no-op
// tracer before that.
func Tracer() trace.Tracer {
	mu.Lock()
	defer mu.Unlock()
	if tracer == nil {
		return otel.Tracer("openfisca")
	}
	return tracer
}

// Span is a stage span that records its duration when ended
type Span struct {
	span       trace.Span
	stage      string
	startTime  time.Time
	attributes []attribute.KeyValue
	failed     bool
}

// StartSpan starts a span named after stage
func StartSpan(ctx context.Context, stage string) (context.Context, *Span) {
	ctx, span := Tracer().Start(ctx, stage)
	return ctx, &Span{
		span:      span,
		stage:     stage,
		startTime: time.Now(),
	}
}

// SetAttribute adds an attribute to the span, sent when it ends
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	case []string:
		attr = attribute.StringSlice(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// Fail marks the span as failed
func (s *Span) Fail(err error) {
	s.failed = true
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// End ends the span and observes its duration
func (s *Span) End() {
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}
	status := "success"
	if s.failed {
		status = "error"
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	metrics.StageDuration.WithLabelValues(s.stage, status).Observe(time.Since(s.startTime).Seconds())
	s.span.End()
}

// Trace runs fn inside a span named after stage and records its outcome
func Trace(ctx context.Context, stage string, fn func(ctx context.Context) error) error {
	ctx, span := StartSpan(ctx, stage)
	defer span.End()

	if err := fn(ctx); err != nil {
		span.Fail(err)
		return err
	}
	return nil
}
