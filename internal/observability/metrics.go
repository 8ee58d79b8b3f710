package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/star-system-simulator/model"
	"github.com/signalsfoundry/star-system-simulator/timectrl"
)

// SimCollector bundles Prometheus metrics for the entity loops, the render
// loop and the scene RPC surface. All methods are safe on a nil receiver.
type SimCollector struct {
	gatherer prometheus.Gatherer

	Ticks        *prometheus.CounterVec
	TickElapsed  *prometheus.HistogramVec
	TickOverruns *prometheus.CounterVec
	Entities     *prometheus.GaugeVec
	Frames       prometheus.Counter

	RPCRequests  *prometheus.CounterVec
	RPCDurations *prometheus.HistogramVec
}

// NewSimCollector registers the metrics against reg, defaulting to the global
// Prometheus registry when nil. Re-registering against the same registry
// reuses the existing collectors.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	ticks, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "starsystem_ticks_total",
		Help: "Completed entity ticks, labeled by entity ID.",
	}, []string{"entity"}), "starsystem_ticks_total")
	if err != nil {
		return nil, err
	}

	elapsed, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "starsystem_tick_elapsed_seconds",
		Help:    "Measured elapsed time per entity tick, labeled by entity kind.",
		Buckets: []float64{0.008, 0.012, 0.016, 0.017, 0.018, 0.020, 0.025, 0.033, 0.05, 0.1, 0.25},
	}, []string{"kind"}), "starsystem_tick_elapsed_seconds")
	if err != nil {
		return nil, err
	}

	overruns, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "starsystem_tick_overruns_total",
		Help: "Entity ticks that took more than twice the nominal period.",
	}, []string{"entity"}), "starsystem_tick_overruns_total")
	if err != nil {
		return nil, err
	}

	entities, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "starsystem_entities",
		Help: "Number of running entities, labeled by kind.",
	}, []string{"kind"}), "starsystem_entities")
	if err != nil {
		return nil, err
	}

	frames, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "starsystem_frames_total",
		Help: "Render frames sampled from the position registry.",
	}), "starsystem_frames_total")
	if err != nil {
		return nil, err
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scene_requests_total",
		Help: "Total number of handled scene RPCs, labeled by service, method, and gRPC status code.",
	}, []string{"service", "method", "code"}), "scene_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scene_request_duration_seconds",
		Help:    "Scene RPC latency in seconds.",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"service", "method"}), "scene_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:     gatherer,
		Ticks:        ticks,
		TickElapsed:  elapsed,
		TickOverruns: overruns,
		Entities:     entities,
		Frames:       frames,
		RPCRequests:  requests,
		RPCDurations: durations,
	}, nil
}

// ObserveTick records one completed entity tick.
func (c *SimCollector) ObserveTick(entity string, kind model.Kind, elapsed, period time.Duration) {
	if c == nil {
		return
	}
	c.Ticks.WithLabelValues(entity).Inc()
	c.TickElapsed.WithLabelValues(kind.String()).Observe(elapsed.Seconds())
	if timectrl.Overrun(elapsed, period) {
		c.TickOverruns.WithLabelValues(entity).Inc()
	}
}

// SetEntityCount sets the running entity gauge for kind.
func (c *SimCollector) SetEntityCount(kind model.Kind, n int) {
	if c == nil {
		return
	}
	c.Entities.WithLabelValues(kind.String()).Set(float64(n))
}

// ObserveFrame counts one sampled render frame.
func (c *SimCollector) ObserveFrame() {
	if c == nil {
		return
	}
	c.Frames.Inc()
}

// UnaryServerInterceptor records request counts and durations for unary RPCs.
func (c *SimCollector) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		if c == nil {
			return resp, err
		}

		fullMethod := ""
		if info != nil {
			fullMethod = info.FullMethod
		}
		service, method := SplitMethod(fullMethod)
		code := status.Code(err).String()

		c.RPCRequests.WithLabelValues(service, method, code).Inc()
		c.RPCDurations.WithLabelValues(service, method).Observe(time.Since(start).Seconds())

		return resp, err
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SplitMethod parses a fully-qualified gRPC method name into service and method
// components. It tolerates empty strings and partial paths, returning
// "unknown"/"unknown" when parsing fails.
func SplitMethod(fullMethod string) (string, string) {
	if fullMethod == "" {
		return "unknown", "unknown"
	}
	fullMethod = strings.TrimPrefix(fullMethod, "/")
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 2 {
		return "unknown", "unknown"
	}
	service := parts[len(parts)-2]
	method := parts[len(parts)-1]
	if dot := strings.LastIndex(service, "."); dot >= 0 && dot+1 < len(service) {
		service = service[dot+1:]
	}
	if service == "" {
		service = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	return service, method
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T, name string) (T, error) {
	if err := reg.Register(c); err != nil {
		var zero T
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return zero, err
	}
	return c, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	return register(reg, vec, name)
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	return register(reg, vec, name)
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	return register(reg, vec, name)
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	return register(reg, counter, name)
}
