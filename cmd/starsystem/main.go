// Command starsystem opens a window and renders the star system. The arrow
// keys steer the central body; every satellite orbits it on its own
// goroutine. The render loop is the only writer of the input snapshot.
package main

import (
	"context"
	"flag"
	"os"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/signalsfoundry/star-system-simulator/internal/app"
	"github.com/signalsfoundry/star-system-simulator/internal/config"
	"github.com/signalsfoundry/star-system-simulator/internal/logging"
	"github.com/signalsfoundry/star-system-simulator/internal/observability"
	"github.com/signalsfoundry/star-system-simulator/model"
)

const statusBarHeight = 24

func main() {
	configPath := flag.String("config", "", "YAML config file merged over the built-in defaults")
	metricsAddr := flag.String("metrics-addr", "", "HTTP address for Prometheus /metrics (overrides config)")
	grpcAddr := flag.String("grpc-addr", "", "TCP address for the scene gRPC service (overrides config)")
	record := flag.String("record", "", "write every rendered frame to this CSV file")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error(ctx, "failed to load config", logging.String("path", *configPath), logging.Err(err))
		os.Exit(1)
	}
	if *metricsAddr != "" {
		cfg.Observability.MetricsAddr = *metricsAddr
	}
	if *grpcAddr != "" {
		cfg.Observability.GRPCAddr = *grpcAddr
	}

	rt, err := app.Start(ctx, cfg, log, app.Options{
		RecordPath: *record,
		Tracing:    observability.TracingConfigFromEnv(observability.NewTracingConfig(cfg)),
	})
	if err != nil {
		log.Error(ctx, "failed to start star system", logging.Err(err))
		os.Exit(1)
	}

	rl.InitWindow(int32(cfg.Screen.Width), int32(cfg.Screen.Height), cfg.Screen.Title)
	rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))

	background := cfg.BackgroundColor()
	for !rl.WindowShouldClose() {
		in := readInput()
		sprites := rt.Frame(ctx, in)

		rl.BeginDrawing()
		rl.ClearBackground(background)
		for _, s := range sprites {
			rl.DrawCircle(int32(s.Position.X), int32(s.Position.Y), float32(s.Radius), s.Color)
		}
		gui.StatusBar(
			rl.NewRectangle(0, float32(cfg.Screen.Height-statusBarHeight), float32(cfg.Screen.Width), statusBarHeight),
			app.StatusLine(rl.GetFPS(), rt.System.Frames(), in),
		)
		rl.EndDrawing()
	}

	rl.CloseWindow()
	if err := rt.Stop(ctx); err != nil {
		log.Error(ctx, "star system stopped with errors", logging.Err(err))
		os.Exit(1)
	}
}

// readInput polls the arrow keys. Called once per frame from the render loop.
func readInput() model.InputState {
	return model.InputState{
		Up:    rl.IsKeyDown(rl.KeyUp),
		Down:  rl.IsKeyDown(rl.KeyDown),
		Left:  rl.IsKeyDown(rl.KeyLeft),
		Right: rl.IsKeyDown(rl.KeyRight),
	}
}
