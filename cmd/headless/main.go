// Command headless runs the star system without a window. A fixed-rate frame
// loop stands in for the renderer: it publishes a scripted input snapshot and
// samples every entity once per frame.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/signalsfoundry/star-system-simulator/internal/app"
	"github.com/signalsfoundry/star-system-simulator/internal/config"
	"github.com/signalsfoundry/star-system-simulator/internal/logging"
	"github.com/signalsfoundry/star-system-simulator/internal/observability"
	"github.com/signalsfoundry/star-system-simulator/model"
	"github.com/signalsfoundry/star-system-simulator/timectrl"
)

// Options are the resolved command-line settings.
type Options struct {
	Duration    time.Duration
	FPS         int
	Input       model.InputState
	LogEvery    time.Duration
	RecordPath  string
	MetricsAddr string
	GRPCAddr    string
	TimeScale   float64
	Accelerated bool
}

func main() {
	configPath := flag.String("config", "", "YAML config file merged over the built-in defaults")
	duration := flag.Duration("duration", 10*time.Second, "total wall-clock run time")
	fps := flag.Int("fps", 0, "frame rate of the sampling loop (0 uses screen.target_fps)")
	input := flag.String("input", "", "keys held for the whole run, e.g. \"right,up\"")
	logEvery := flag.Duration("log-every", time.Second, "interval between position log lines (0 disables)")
	record := flag.String("record", "", "write every sampled frame to this CSV file")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for Prometheus /metrics (overrides config)")
	grpcAddr := flag.String("grpc-addr", "", "TCP address for the scene gRPC service (overrides config)")
	timeScale := flag.Float64("time-scale", 0, "simulated seconds per wall second (0 uses physics.time_scale)")
	accelerated := flag.Bool("accelerated", false, "step every entity by one period without sleeping")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error(ctx, "failed to load config", logging.String("path", *configPath), logging.Err(err))
		os.Exit(1)
	}
	in, err := model.ParseInputState(*input)
	if err != nil {
		log.Error(ctx, "invalid -input", logging.Err(err))
		os.Exit(1)
	}

	opts := Options{
		Duration:    *duration,
		FPS:         *fps,
		Input:       in,
		LogEvery:    *logEvery,
		RecordPath:  *record,
		MetricsAddr: *metricsAddr,
		GRPCAddr:    *grpcAddr,
		TimeScale:   *timeScale,
		Accelerated: *accelerated,
	}

	stopCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	if err := run(stopCtx, cfg, opts, log, os.Stdout); err != nil {
		log.Error(ctx, "headless run failed", logging.Err(err))
		os.Exit(1)
	}
}

// applyOverrides folds non-zero flag values into cfg.
func applyOverrides(cfg *config.Config, opts Options) error {
	if opts.MetricsAddr != "" {
		cfg.Observability.MetricsAddr = opts.MetricsAddr
	}
	if opts.GRPCAddr != "" {
		cfg.Observability.GRPCAddr = opts.GRPCAddr
	}
	if opts.TimeScale != 0 {
		cfg.Physics.TimeScale = opts.TimeScale
	}
	if opts.Accelerated {
		cfg.Physics.Mode = timectrl.Accelerated.String()
	}
	if opts.FPS != 0 {
		cfg.Screen.TargetFPS = opts.FPS
	}
	return cfg.Validate()
}

func run(ctx context.Context, cfg *config.Config, opts Options, log logging.Logger, out io.Writer) error {
	if err := applyOverrides(cfg, opts); err != nil {
		return err
	}

	rt, err := app.Start(ctx, cfg, log, app.Options{
		RecordPath: opts.RecordPath,
		Tracing:    observability.TracingConfigFromEnv(observability.NewTracingConfig(cfg)),
	})
	if err != nil {
		return err
	}

	runCtx := ctx
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	log.Info(ctx, "starting headless run",
		logging.Duration("duration", opts.Duration),
		logging.Int("fps", cfg.Screen.TargetFPS),
		logging.String("input", opts.Input.String()),
	)

	frame := time.NewTicker(time.Second / time.Duration(cfg.Screen.TargetFPS))
	defer frame.Stop()

	var lastLog time.Time
	var sprites []model.Sprite
loop:
	for {
		select {
		case <-runCtx.Done():
			break loop
		case <-frame.C:
		}
		sprites = rt.Frame(runCtx, opts.Input)
		if opts.LogEvery > 0 && time.Since(lastLog) >= opts.LogEvery {
			lastLog = time.Now()
			for _, s := range sprites {
				log.Debug(runCtx, "position",
					logging.String("entity", s.ID),
					logging.Float("x", s.Position.X),
					logging.Float("y", s.Position.Y),
				)
			}
		}
	}

	frames := rt.System.Frames()
	if err := rt.Stop(context.Background()); err != nil {
		return err
	}
	if sprites == nil {
		sprites = rt.System.Sprites()
	}
	return printSummary(out, frames, sprites)
}

func printSummary(out io.Writer, frames uint64, sprites []model.Sprite) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "frames\t%d\n", frames)
	fmt.Fprintln(w, "id\tkind\tx\ty")
	for _, s := range sprites {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%.2f\n", s.ID, s.Kind, s.Position.X, s.Position.Y)
	}
	return w.Flush()
}
