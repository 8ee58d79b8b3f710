package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/signalsfoundry/star-system-simulator/internal/config"
	"github.com/signalsfoundry/star-system-simulator/internal/logging"
)

// TracerName is the instrumentation scope used for spans emitted by this module.
const TracerName = "github.com/signalsfoundry/star-system-simulator"

const defaultOTLPEndpoint = "localhost:4317"

// Environment overrides for the tracing block of the scene config.
const (
	EnvTracingEnabled = "STARSYSTEM_TRACING_ENABLED"
	EnvTracingExport  = "STARSYSTEM_TRACING_EXPORTER"
	EnvTracingService = "STARSYSTEM_TRACING_SERVICE_NAME"
	EnvTracingRatio   = "STARSYSTEM_TRACING_SAMPLE_RATIO"
	EnvOTLPEndpoint   = "STARSYSTEM_OTLP_ENDPOINT"
)

// ErrUnknownExporter is returned for an exporter other than stdout or otlp.
var ErrUnknownExporter = errors.New("unknown tracing exporter")

// TracingConfig is the resolved tracing setup for one run: the YAML block,
// any environment overrides, and the scene attributes stamped on every span.
type TracingConfig struct {
	config.TracingConfig

	// Scene becomes resource attributes on the tracer provider.
	Scene []attribute.KeyValue
	// Output receives stdout-exporter spans. Defaults to os.Stderr so span
	// dumps do not interleave with command output.
	Output io.Writer
}

// NewTracingConfig takes the tracing block of cfg and describes the scene the
// spans will come from.
func NewTracingConfig(cfg *config.Config) TracingConfig {
	return TracingConfig{
		TracingConfig: cfg.Observability.Tracing,
		Scene: []attribute.KeyValue{
			attribute.String("starsystem.central_body", cfg.CentralBody.ID),
			attribute.Int("starsystem.satellites", len(cfg.Satellites)),
			attribute.Float64("starsystem.tick_hz", cfg.Physics.TickHz),
			attribute.Float64("starsystem.time_scale", cfg.Physics.TimeScale),
			attribute.String("starsystem.clock_mode", cfg.ClockMode().String()),
		},
	}
}

// TracingConfigFromEnv overlays the STARSYSTEM_* tracing variables on base.
// Unset or malformed variables leave the base value in place.
func TracingConfigFromEnv(base TracingConfig) TracingConfig {
	return overlayEnv(base, os.LookupEnv)
}

func overlayEnv(tc TracingConfig, lookup func(string) (string, bool)) TracingConfig {
	if v, ok := lookup(EnvTracingEnabled); ok {
		if enabled, err := strconv.ParseBool(v); err == nil {
			tc.Enabled = enabled
		}
	}
	if v, ok := lookup(EnvTracingExport); ok && v != "" {
		tc.Exporter = strings.ToLower(v)
	}
	if v, ok := lookup(EnvTracingService); ok && v != "" {
		tc.ServiceName = v
	}
	if v, ok := lookup(EnvOTLPEndpoint); ok && v != "" {
		tc.Endpoint = v
	}
	if v, ok := lookup(EnvTracingRatio); ok {
		if ratio, err := strconv.ParseFloat(v, 64); err == nil && ratio >= 0 && ratio <= 1 {
			tc.SampleRatio = ratio
		}
	}
	return tc
}

// InitTracing installs the global tracer provider for tc and returns the
// function that flushes it. A disabled config installs a noop provider.
func InitTracing(ctx context.Context, tc TracingConfig, log logging.Logger) (func(context.Context) error, error) {
	log = logging.OrNoop(log)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !tc.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		log.Debug(ctx, "tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	exp, err := newSpanExporter(ctx, tc)
	if err != nil {
		return nil, err
	}

	service := tc.ServiceName
	if service == "" {
		service = "starsystem"
	}
	attrs := append([]attribute.KeyValue{
		attribute.String("service.name", service),
		attribute.String("service.namespace", "starsystem"),
	}, tc.Scene...)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(tc.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewSchemaless(attrs...)),
	)
	otel.SetTracerProvider(tp)

	log.Info(ctx, "tracing enabled",
		logging.String("exporter", tc.Exporter),
		logging.String("service_name", service),
		logging.Float("sample_ratio", tc.SampleRatio),
	)
	return tp.Shutdown, nil
}

func newSpanExporter(ctx context.Context, tc TracingConfig) (sdktrace.SpanExporter, error) {
	switch tc.Exporter {
	case "", "stdout":
		out := tc.Output
		if out == nil {
			out = os.Stderr
		}
		return stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithoutTimestamps())
	case "otlp":
		endpoint := tc.Endpoint
		if endpoint == "" {
			endpoint = defaultOTLPEndpoint
		}
		return otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithInsecure(),
		))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExporter, tc.Exporter)
	}
}

// ShutdownWithTimeout flushes spans, giving up after five seconds. Failures
// are logged, never returned.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, log logging.Logger) {
	if shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logging.OrNoop(log).Warn(ctx, "tracing shutdown failed", logging.Err(err))
	}
}

// StartSpan starts an internal span on the module tracer.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}
