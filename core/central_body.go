package core

import (
	"context"
	"image/color"
	"sync"
	"time"

	"github.com/signalsfoundry/star-system-simulator/model"
	"github.com/signalsfoundry/star-system-simulator/timectrl"
)

// DefaultSpeed is the central body's speed along each held axis, px/s.
const DefaultSpeed = 200.0

// CentralBodyConfig describes the steerable body at the middle of the scene.
type CentralBodyConfig struct {
	ID       string
	Position model.Vec2
	Speed    float64
	Radius   float64
	Color    color.RGBA
}

// CentralBody is steered by the shared input snapshot. Its goroutine is the
// only writer of its position; satellites and the render loop only read it.
type CentralBody struct {
	id     string
	speed  float64
	radius float64
	color  color.RGBA

	clock  timectrl.Clock
	inputs *InputCell
	opts   loopOptions

	mu       sync.RWMutex
	position model.Vec2
	velocity model.Vec2
}

// NewCentralBody constructs a central body at cfg.Position.
func NewCentralBody(cfg CentralBodyConfig, clock timectrl.Clock, inputs *InputCell, opts ...Option) *CentralBody {
	return &CentralBody{
		id:       cfg.ID,
		speed:    cfg.Speed,
		radius:   cfg.Radius,
		color:    cfg.Color,
		clock:    clock,
		inputs:   inputs,
		opts:     newLoopOptions(opts),
		position: cfg.Position,
	}
}

// Velocity returns the velocity implied by in at the given speed. It does not
// depend on any previous velocity.
func Velocity(in model.InputState, speed float64) model.Vec2 {
	return in.Direction().Scale(speed)
}

// Integrate advances position by velocity over elapsed seconds.
func Integrate(position, velocity model.Vec2, elapsed float64) model.Vec2 {
	return position.Add(velocity.Scale(elapsed))
}

// ID returns the body's identifier.
func (b *CentralBody) ID() string { return b.id }

// Position returns the current position. Satellites call this every tick.
func (b *CentralBody) Position() model.Vec2 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.position
}

// Velocity returns the velocity applied on the most recent tick.
func (b *CentralBody) Velocity() model.Vec2 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.velocity
}

// Sprite returns the draw projection.
func (b *CentralBody) Sprite() model.Sprite {
	return model.Sprite{
		ID:       b.id,
		Kind:     model.KindCentralBody,
		Position: b.Position(),
		Radius:   b.radius,
		Color:    b.color,
	}
}

// Step applies one tick: velocity is recomputed from in, then position moves
// by velocity*elapsed. It returns the new position.
func (b *CentralBody) Step(in model.InputState, elapsed time.Duration) model.Vec2 {
	v := Velocity(in, b.speed)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.velocity = v
	b.position = Integrate(b.position, v, elapsed.Seconds())
	return b.position
}

// Run ticks the body until ctx is done.
func (b *CentralBody) Run(ctx context.Context) error {
	return runLoop(ctx, b.id, model.KindCentralBody, b.clock, b.opts, func(elapsed time.Duration) {
		b.Step(b.inputs.Get(), elapsed)
	})
}
