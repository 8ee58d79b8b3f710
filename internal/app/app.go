// Package app wires a star system to its ambient services: metrics endpoint,
// scene gRPC server, tracing and CSV recording. Front-ends own the frame loop
// and call Frame once per rendered frame.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"

	"github.com/signalsfoundry/star-system-simulator/internal/config"
	"github.com/signalsfoundry/star-system-simulator/internal/logging"
	"github.com/signalsfoundry/star-system-simulator/internal/observability"
	"github.com/signalsfoundry/star-system-simulator/internal/recorder"
	"github.com/signalsfoundry/star-system-simulator/internal/scene"
	"github.com/signalsfoundry/star-system-simulator/internal/sim"
	"github.com/signalsfoundry/star-system-simulator/model"
)

// Options carries per-run settings that are not part of the scene config.
type Options struct {
	// RecordPath enables CSV recording when non-empty.
	RecordPath string
	// Registry receives the simulator collectors. Nil uses the default
	// Prometheus registry.
	Registry *prometheus.Registry
	// Tracing configures the tracer provider. The zero value disables tracing.
	Tracing observability.TracingConfig
	// ClockFactory overrides the per-entity wall clocks.
	ClockFactory sim.ClockFactory
}

// Runtime is a started system plus the services around it.
type Runtime struct {
	Config    *config.Config
	System    *sim.System
	Collector *observability.SimCollector

	log      logging.Logger
	cancel   context.CancelFunc
	rec      *recorder.Recorder
	started  time.Time
	metrics  *http.Server
	grpc     *grpc.Server
	grpcAddr net.Addr
	tracing  func(context.Context) error

	stopOnce sync.Once
	stopErr  error
}

// Start builds the scene from cfg, brings up the configured listeners and
// launches every entity goroutine. On error everything already started is
// torn down.
func Start(ctx context.Context, cfg *config.Config, log logging.Logger, opts Options) (*Runtime, error) {
	rt := &Runtime{Config: cfg, log: logging.OrNoop(log)}
	if err := rt.start(ctx, opts); err != nil {
		_ = rt.Stop(context.Background())
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) start(ctx context.Context, opts Options) error {
	shutdown, err := observability.InitTracing(ctx, opts.Tracing, rt.log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	rt.tracing = shutdown

	var reg prometheus.Registerer
	if opts.Registry != nil {
		reg = opts.Registry
	}
	rt.Collector, err = observability.NewSimCollector(reg)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	sc, err := sim.SceneFromConfig(rt.Config)
	if err != nil {
		return err
	}
	simOpts := []sim.Option{sim.WithMetricsRecorder(rt.Collector)}
	if opts.ClockFactory != nil {
		simOpts = append(simOpts, sim.WithClockFactory(opts.ClockFactory))
	}
	rt.System, err = sim.New(sc, rt.log, simOpts...)
	if err != nil {
		return err
	}

	rt.rec, err = recorder.Create(opts.RecordPath)
	if err != nil {
		return err
	}
	if rt.rec != nil {
		rt.log.Info(ctx, "recording frames", logging.String("path", opts.RecordPath))
	}

	if addr := rt.Config.Observability.MetricsAddr; addr != "" {
		rt.metrics = serveMetrics(addr, rt.Collector, rt.log)
	}
	if addr := rt.Config.Observability.GRPCAddr; addr != "" {
		if err := rt.serveScene(addr); err != nil {
			return err
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	rt.cancel = cancel
	if err := rt.System.Start(runCtx); err != nil {
		return err
	}
	rt.started = time.Now()
	return nil
}

func serveMetrics(addr string, collector *observability.SimCollector, log logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}

func (rt *Runtime) serveScene(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen for gRPC on %s: %w", addr, err)
	}
	rt.grpc = scene.NewServer(rt.System, rt.log, rt.Collector)
	rt.grpcAddr = lis.Addr()

	rt.log.Info(context.Background(), "serving scene gRPC", logging.String("addr", lis.Addr().String()))
	go func() {
		if err := rt.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			rt.log.Error(context.Background(), "gRPC server exited", logging.Err(err))
		}
	}()
	return nil
}

// GRPCAddr returns the bound scene server address, or nil when disabled.
func (rt *Runtime) GRPCAddr() net.Addr { return rt.grpcAddr }

// Frame publishes in, samples every entity once and records the frame.
// Recording failures are logged and do not interrupt the frame loop.
func (rt *Runtime) Frame(ctx context.Context, in model.InputState) []model.Sprite {
	sprites := rt.System.Frame(in)
	if err := rt.rec.Record(time.Since(rt.started), sprites); err != nil {
		rt.log.Warn(ctx, "record frame failed", logging.Err(err))
	}
	return sprites
}

// Stop cancels every entity, waits for them, then shuts the listeners down.
// It is safe to call more than once.
func (rt *Runtime) Stop(ctx context.Context) error {
	rt.stopOnce.Do(func() {
		var errs []error
		if rt.cancel != nil {
			rt.cancel()
		}
		if rt.System != nil && rt.cancel != nil {
			errs = append(errs, rt.System.Wait())
		}
		if rt.grpc != nil {
			rt.grpc.GracefulStop()
		}
		if rt.metrics != nil {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			errs = append(errs, rt.metrics.Shutdown(shutdownCtx))
			cancel()
		}
		errs = append(errs, rt.rec.Close())
		observability.ShutdownWithTimeout(ctx, rt.tracing, rt.log)

		rt.stopErr = errors.Join(errs...)
		if rt.System != nil {
			rt.log.Info(ctx, "star system stopped", logging.Uint64("frames", rt.System.Frames()))
		}
	})
	return rt.stopErr
}

// StatusLine renders the one-line status shown under the scene.
func StatusLine(fps int32, frames uint64, in model.InputState) string {
	keys := in.String()
	if keys == "" {
		keys = "none"
	}
	return fmt.Sprintf("fps %d  frames %d  keys %s", fps, frames, keys)
}
