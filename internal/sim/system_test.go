package sim

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/signalsfoundry/star-system-simulator/core"
	"github.com/signalsfoundry/star-system-simulator/internal/config"
	"github.com/signalsfoundry/star-system-simulator/internal/logging"
	"github.com/signalsfoundry/star-system-simulator/internal/observability"
	"github.com/signalsfoundry/star-system-simulator/kb"
	"github.com/signalsfoundry/star-system-simulator/model"
	"github.com/signalsfoundry/star-system-simulator/timectrl"
)

// gatedClocks hands every entity its own gated StepClock so a test can tick
// entities one at a time with chosen elapsed values.
type gatedClocks struct {
	mu     sync.Mutex
	gates  map[string]chan struct{}
	clocks map[string]*timectrl.StepClock
}

func newGatedClocks() *gatedClocks {
	return &gatedClocks{
		gates:  make(map[string]chan struct{}),
		clocks: make(map[string]*timectrl.StepClock),
	}
}

func (g *gatedClocks) factory(id string, period time.Duration) (timectrl.Clock, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	gate := make(chan struct{})
	clock := timectrl.NewStepClock(period).WithGate(gate)
	g.gates[id] = gate
	g.clocks[id] = clock
	return clock, nil
}

func (g *gatedClocks) tick(id string, elapsed time.Duration) {
	g.mu.Lock()
	clock, gate := g.clocks[id], g.gates[id]
	g.mu.Unlock()
	clock.Push(elapsed)
	gate <- struct{}{}
}

func testScene() Scene {
	return Scene{
		Period: timectrl.DefaultPeriod,
		CentralBody: core.CentralBodyConfig{
			ID:     "star",
			Speed:  core.DefaultSpeed,
			Radius: 25,
		},
		Satellites: []core.SatelliteConfig{
			{ID: "still", Position: model.V(50, 0), Amplitude: 100, AngularSpeed: 0, Radius: 8},
			{ID: "spinning", Position: model.V(-50, 0), Amplitude: 60, AngularSpeed: math.Pi, Radius: 10},
		},
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func startSystem(t *testing.T, s *System) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		cancel()
		t.Fatalf("Start: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- s.Wait() }()
	t.Cleanup(cancel)
	return cancel, done
}

func TestSystemEndToEnd(t *testing.T) {
	clocks := newGatedClocks()
	s, err := New(testScene(), logging.Noop(), WithClockFactory(clocks.factory))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cancel, done := startSystem(t, s)

	// Before any tick satellites sit at their placement.
	sprites := s.Sprites()
	if len(sprites) != 3 || sprites[0].ID != "star" || sprites[1].Position != model.V(50, 0) {
		t.Fatalf("initial sprites = %+v", sprites)
	}

	s.SetInput(model.InputState{Right: true})
	clocks.tick("star", time.Second)
	waitFor(t, func() bool { return s.CentralBody().Position() == model.V(200, 0) })

	clocks.tick("still", time.Second)
	still, err := s.Registry().Get("still")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	waitFor(t, func() bool { return still.Sprite().Position == model.V(200, 100) })

	// Half a turn at π rad/s: offset 60*(sin(π/2), cos(π/2)).
	clocks.tick("spinning", 500*time.Millisecond)
	waitFor(t, func() bool {
		p, _ := s.Registry().Position("spinning")
		return math.Abs(p.X-260) < 1e-9 && math.Abs(p.Y) < 1e-9
	})

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Wait after cancel = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("entity goroutines did not stop")
	}
}

func TestSystemStartTwice(t *testing.T) {
	clocks := newGatedClocks()
	s, err := New(testScene(), nil, WithClockFactory(clocks.factory))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	startSystem(t, s)
	if err := s.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second Start err = %v, want ErrAlreadyStarted", err)
	}
}

func TestNewRejectsInvalidPeriod(t *testing.T) {
	scene := testScene()
	scene.Period = 0
	if _, err := New(scene, nil); !errors.Is(err, timectrl.ErrInvalidPeriod) {
		t.Fatalf("New err = %v, want ErrInvalidPeriod", err)
	}
}

func TestNewRejectsDuplicateIDs(t *testing.T) {
	scene := testScene()
	scene.Satellites[1].ID = "star"
	if _, err := New(scene, nil, WithClockFactory(newGatedClocks().factory)); !errors.Is(err, kb.ErrEntityExists) {
		t.Fatalf("New err = %v, want ErrEntityExists", err)
	}
}

func TestFrameRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := observability.NewSimCollector(reg)
	if err != nil {
		t.Fatalf("NewSimCollector: %v", err)
	}
	clocks := newGatedClocks()
	s, err := New(testScene(), nil, WithClockFactory(clocks.factory), WithMetricsRecorder(collector))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := testutil.ToFloat64(collector.Entities.WithLabelValues("satellite")); got != 2 {
		t.Fatalf("satellite gauge = %v, want 2", got)
	}

	startSystem(t, s)
	for i := 0; i < 3; i++ {
		s.Frame(model.InputState{Up: true})
	}
	if s.Frames() != 3 || testutil.ToFloat64(collector.Frames) != 3 {
		t.Fatalf("frames = %d / %v, want 3", s.Frames(), testutil.ToFloat64(collector.Frames))
	}
	if s.Input() != (model.InputState{Up: true}) {
		t.Fatalf("Input() = %+v", s.Input())
	}

	clocks.tick("star", time.Second)
	waitFor(t, func() bool { return testutil.ToFloat64(collector.Ticks.WithLabelValues("star")) == 1 })
	if got := s.CentralBody().Position(); got != model.V(0, -200) {
		t.Fatalf("star = %v, want (0, -200)", got)
	}
}

func TestSceneFromDefaultConfig(t *testing.T) {
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("config.Default: %v", err)
	}
	scene, err := SceneFromConfig(cfg)
	if err != nil {
		t.Fatalf("SceneFromConfig: %v", err)
	}
	origin := cfg.Origin()
	if scene.CentralBody.Position != origin || scene.Period != time.Second/60 {
		t.Fatalf("central body = %+v, period %v", scene.CentralBody, scene.Period)
	}
	if len(scene.Satellites) != 4 {
		t.Fatalf("satellites = %d", len(scene.Satellites))
	}
	if got := scene.Satellites[3].Position; got != origin.Add(model.V(0, -50)) {
		t.Fatalf("satellite 3 placement = %v", got)
	}
	if scene.Satellites[0].Color.A != 0xff {
		t.Fatalf("satellite color not parsed: %+v", scene.Satellites[0].Color)
	}
}

func TestSystemAcceleratedMode(t *testing.T) {
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("config.Default: %v", err)
	}
	cfg.Physics.Mode = "accelerated"
	scene, err := SceneFromConfig(cfg)
	if err != nil {
		t.Fatalf("SceneFromConfig: %v", err)
	}
	if scene.Mode != timectrl.Accelerated {
		t.Fatalf("scene mode = %v", scene.Mode)
	}
	s, err := New(scene, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.SetInput(model.InputState{Right: true})
	cancel, done := startSystem(t, s)

	// Ten simulated seconds of travel; a wall clock would need ten real ones.
	target := cfg.Origin().X + 10*cfg.CentralBody.Speed
	waitFor(t, func() bool { return s.CentralBody().Position().X >= target })
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

// Runs the default scene on real clocks while a render loop and several
// observers sample it, and checks the data flow end to end.
func TestSystemUnderContention(t *testing.T) {
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("config.Default: %v", err)
	}
	cfg.Physics.TickHz = 500
	scene, err := SceneFromConfig(cfg)
	if err != nil {
		t.Fatalf("SceneFromConfig: %v", err)
	}
	s, err := New(scene, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(2 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Frame(model.InputState{Right: true})
			}
		}
	}()
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				for _, sp := range s.Sprites() {
					if math.IsNaN(sp.Position.X) || math.IsNaN(sp.Position.Y) {
						t.Errorf("NaN position for %s", sp.ID)
						return
					}
				}
			}
		}()
	}

	wg.Wait()
	if err := s.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	origin := cfg.Origin()
	star := s.CentralBody().Position()
	if star.X <= origin.X || star.Y != origin.Y {
		t.Fatalf("star did not move right: %v from %v", star, origin)
	}
	for _, sat := range s.Satellites() {
		if sat.Phase() <= 0 {
			t.Fatalf("satellite %s never ticked", sat.ID())
		}
	}
}
