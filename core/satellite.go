package core

import (
	"context"
	"image/color"
	"math"
	"sync"
	"time"

	"github.com/signalsfoundry/star-system-simulator/model"
	"github.com/signalsfoundry/star-system-simulator/timectrl"
)

// Centre is the point a satellite orbits. *CentralBody implements it.
type Centre interface {
	Position() model.Vec2
}

// SatelliteConfig describes one orbiting body. Position is where the
// satellite is shown until its first tick.
type SatelliteConfig struct {
	ID           string
	Position     model.Vec2
	Phase        float64
	Amplitude    float64
	AngularSpeed float64 // rad/s
	Radius       float64
	Color        color.RGBA
}

// Satellite circles its centre. The centre is read fresh on every tick; the
// satellite never writes it.
type Satellite struct {
	id           string
	amplitude    float64
	angularSpeed float64
	radius       float64
	color        color.RGBA

	centre Centre
	clock  timectrl.Clock
	opts   loopOptions

	mu       sync.RWMutex
	phase    float64
	position model.Vec2
}

// NewSatellite constructs a satellite orbiting centre.
func NewSatellite(cfg SatelliteConfig, centre Centre, clock timectrl.Clock, opts ...Option) *Satellite {
	return &Satellite{
		id:           cfg.ID,
		amplitude:    cfg.Amplitude,
		angularSpeed: cfg.AngularSpeed,
		radius:       cfg.Radius,
		color:        cfg.Color,
		centre:       centre,
		clock:        clock,
		opts:         newLoopOptions(opts),
		phase:        cfg.Phase,
		position:     cfg.Position,
	}
}

// Offset is the satellite's displacement from its centre at phase:
// amplitude*(sin(phase), cos(phase)). Its length is always amplitude.
func Offset(amplitude, phase float64) model.Vec2 {
	s, c := math.Sincos(phase)
	return model.V(amplitude*s, amplitude*c)
}

// ID returns the satellite's identifier.
func (s *Satellite) ID() string { return s.id }

// Position returns the current position.
func (s *Satellite) Position() model.Vec2 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.position
}

// Phase returns the accumulated phase in radians. It is never wrapped.
func (s *Satellite) Phase() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Amplitude returns the orbit radius.
func (s *Satellite) Amplitude() float64 { return s.amplitude }

// Sprite returns the draw projection.
func (s *Satellite) Sprite() model.Sprite {
	return model.Sprite{
		ID:       s.id,
		Kind:     model.KindSatellite,
		Position: s.Position(),
		Radius:   s.radius,
		Color:    s.color,
	}
}

// Step advances the phase by elapsed*angularSpeed and places the satellite
// on its orbit around center. It returns the new position.
func (s *Satellite) Step(center model.Vec2, elapsed time.Duration) model.Vec2 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase += elapsed.Seconds() * s.angularSpeed
	s.position = center.Add(Offset(s.amplitude, s.phase))
	return s.position
}

// Run ticks the satellite until ctx is done. The centre is copied out before
// the satellite takes its own lock, so the two locks are never held together.
func (s *Satellite) Run(ctx context.Context) error {
	return runLoop(ctx, s.id, model.KindSatellite, s.clock, s.opts, func(elapsed time.Duration) {
		s.Step(s.centre.Position(), elapsed)
	})
}
