// Package timectrl provides the tick sources that pace entity goroutines.
package timectrl

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultPeriod is the nominal physics tick, 60 Hz.
const DefaultPeriod = time.Second / 60

// OverrunFactor is how many nominal periods a tick may take before it counts
// as an overrun.
const OverrunFactor = 2

// Overrun reports whether elapsed exceeds OverrunFactor nominal periods.
func Overrun(elapsed, period time.Duration) bool {
	return period > 0 && elapsed > OverrunFactor*period
}

// Mode describes how a clock advances simulation time.
type Mode int

const (
	// RealTime waits on the wall clock and reports the measured wait.
	RealTime Mode = iota
	// Accelerated never sleeps; every tick reports exactly one period.
	Accelerated
)

func (m Mode) String() string {
	switch m {
	case RealTime:
		return "realtime"
	case Accelerated:
		return "accelerated"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "realtime" (or "") and "accelerated".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "realtime", "real_time":
		return RealTime, nil
	case "accelerated":
		return Accelerated, nil
	default:
		return 0, fmt.Errorf("timectrl: unknown mode %q", s)
	}
}

// New builds a clock for mode. Options apply to RealTime clocks only.
func New(mode Mode, period time.Duration, opts ...Option) (Clock, error) {
	switch mode {
	case RealTime:
		return NewWallClock(period, opts...)
	case Accelerated:
		return NewAcceleratedClock(period)
	default:
		return nil, fmt.Errorf("timectrl: unknown mode %v", mode)
	}
}

// ErrInvalidPeriod is returned when a clock is built with a non-positive
// period or time scale.
var ErrInvalidPeriod = errors.New("timectrl: tick period must be positive")

// Clock paces one entity loop. WaitTick blocks for roughly one Period and
// returns the elapsed simulation time that the caller should integrate over.
// Each entity owns its own Clock; clocks are not aligned with each other.
type Clock interface {
	WaitTick(ctx context.Context) (time.Duration, error)
	Period() time.Duration
}

type tickStats struct {
	ticks atomic.Uint64
	last  atomic.Int64
}

func (s *tickStats) record(elapsed time.Duration) {
	s.ticks.Add(1)
	s.last.Store(int64(elapsed))
}

// Ticks returns how many ticks have completed.
func (s *tickStats) Ticks() uint64 { return s.ticks.Load() }

// LastElapsed returns the elapsed value reported by the most recent tick.
func (s *tickStats) LastElapsed() time.Duration { return time.Duration(s.last.Load()) }

// WallClock sleeps for its period and reports the measured wall time of the
// wait, overrun included. With a time scale k the wait shrinks to period/k and
// the reported elapsed grows by k, so simulated time runs k times faster.
type WallClock struct {
	tickStats

	period time.Duration
	scale  float64
}

// Option configures a WallClock.
type Option func(*WallClock)

// WithTimeScale runs simulated time at k times wall time.
func WithTimeScale(k float64) Option {
	return func(c *WallClock) { c.scale = k }
}

// NewWallClock returns a wall clock ticking every period.
func NewWallClock(period time.Duration, opts ...Option) (*WallClock, error) {
	c := &WallClock{period: period, scale: 1}
	for _, opt := range opts {
		opt(c)
	}
	if c.period <= 0 || c.scale <= 0 {
		return nil, ErrInvalidPeriod
	}
	return c, nil
}

// Period returns the nominal simulated tick length.
func (c *WallClock) Period() time.Duration { return c.period }

// TimeScale returns the simulated-to-wall time ratio.
func (c *WallClock) TimeScale() float64 { return c.scale }

// WaitTick blocks for one tick. It returns ctx.Err() if ctx is done before or
// during the wait.
func (c *WallClock) WaitTick(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	wait := time.Duration(float64(c.period) / c.scale)
	start := time.Now()
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-timer.C:
	}

	elapsed := time.Duration(float64(time.Since(start)) * c.scale)
	c.record(elapsed)
	return elapsed, nil
}

// AcceleratedClock steps by its period as fast as the loop runs. It yields
// the processor on every tick so other entity goroutines and the render loop
// keep running.
type AcceleratedClock struct {
	tickStats

	period time.Duration
}

// NewAcceleratedClock returns an accelerated clock.
func NewAcceleratedClock(period time.Duration) (*AcceleratedClock, error) {
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}
	return &AcceleratedClock{period: period}, nil
}

// Period returns the nominal tick length.
func (c *AcceleratedClock) Period() time.Duration { return c.period }

// WaitTick yields once and reports one period.
func (c *AcceleratedClock) WaitTick(ctx context.Context) (time.Duration, error) {
	runtime.Gosched()
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.record(c.period)
	return c.period, nil
}

// StepClock replays scripted elapsed values without sleeping. Once the script
// is exhausted it reports the nominal period. With a gate, each WaitTick
// consumes one value from the gate first, which lets a test single-step a
// running loop. Without a gate a loop driven by a StepClock never yields.
type StepClock struct {
	tickStats

	period time.Duration
	gate   <-chan struct{}

	mu    sync.Mutex
	steps []time.Duration
}

// NewStepClock returns a scripted clock.
func NewStepClock(period time.Duration, steps ...time.Duration) *StepClock {
	return &StepClock{
		period: period,
		steps:  append([]time.Duration(nil), steps...),
	}
}

// WithGate makes WaitTick block on gate. It must be called before the clock
// is shared.
func (c *StepClock) WithGate(gate <-chan struct{}) *StepClock {
	c.gate = gate
	return c
}

// Push appends elapsed values to the script.
func (c *StepClock) Push(steps ...time.Duration) {
	c.mu.Lock()
	c.steps = append(c.steps, steps...)
	c.mu.Unlock()
}

// Period returns the nominal tick length.
func (c *StepClock) Period() time.Duration { return c.period }

// WaitTick returns the next scripted elapsed value.
func (c *StepClock) WaitTick(ctx context.Context) (time.Duration, error) {
	if c.gate != nil {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-c.gate:
		}
	} else if err := ctx.Err(); err != nil {
		return 0, err
	}

	c.mu.Lock()
	elapsed := c.period
	if len(c.steps) > 0 {
		elapsed = c.steps[0]
		c.steps = c.steps[1:]
	}
	c.mu.Unlock()

	c.record(elapsed)
	return elapsed, nil
}
