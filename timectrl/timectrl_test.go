package timectrl

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewWallClockRejectsNonPositivePeriod(t *testing.T) {
	for _, p := range []time.Duration{0, -time.Millisecond} {
		if _, err := NewWallClock(p); !errors.Is(err, ErrInvalidPeriod) {
			t.Fatalf("NewWallClock(%v) err = %v, want ErrInvalidPeriod", p, err)
		}
	}
	if _, err := NewWallClock(time.Millisecond, WithTimeScale(0)); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("zero time scale accepted")
	}
}

func TestWallClockReportsMeasuredElapsed(t *testing.T) {
	period := 5 * time.Millisecond
	c, err := NewWallClock(period)
	if err != nil {
		t.Fatalf("NewWallClock: %v", err)
	}

	for i := 0; i < 3; i++ {
		elapsed, err := c.WaitTick(context.Background())
		if err != nil {
			t.Fatalf("WaitTick: %v", err)
		}
		if elapsed < period {
			t.Fatalf("elapsed %v shorter than period %v", elapsed, period)
		}
	}
	if got := c.Ticks(); got != 3 {
		t.Fatalf("Ticks() = %d, want 3", got)
	}
	if c.LastElapsed() < period {
		t.Fatalf("LastElapsed() = %v", c.LastElapsed())
	}
}

func TestWallClockTimeScale(t *testing.T) {
	c, err := NewWallClock(20*time.Millisecond, WithTimeScale(4))
	if err != nil {
		t.Fatalf("NewWallClock: %v", err)
	}
	if c.TimeScale() != 4 {
		t.Fatalf("TimeScale() = %v", c.TimeScale())
	}
	elapsed, err := c.WaitTick(context.Background())
	if err != nil {
		t.Fatalf("WaitTick: %v", err)
	}
	// The wait is a quarter period; the report is scaled back up.
	if elapsed < 20*time.Millisecond {
		t.Fatalf("scaled elapsed %v below nominal period", elapsed)
	}
}

func TestWallClockCancelledDuringWait(t *testing.T) {
	c, err := NewWallClock(time.Hour)
	if err != nil {
		t.Fatalf("NewWallClock: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	done := make(chan error, 1)
	go func() {
		_, err := c.WaitTick(ctx)
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("WaitTick err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("WaitTick did not return after cancel")
	}
	if c.Ticks() != 0 {
		t.Fatalf("cancelled wait counted as a tick")
	}
}

func TestStepClockReplaysScriptThenPeriod(t *testing.T) {
	c := NewStepClock(DefaultPeriod, time.Second, 2*time.Second)
	ctx := context.Background()

	want := []time.Duration{time.Second, 2 * time.Second, DefaultPeriod}
	for i, w := range want {
		got, err := c.WaitTick(ctx)
		if err != nil {
			t.Fatalf("tick %d: %v", i, err)
		}
		if got != w {
			t.Fatalf("tick %d = %v, want %v", i, got, w)
		}
	}
	c.Push(3 * time.Second)
	if got, _ := c.WaitTick(ctx); got != 3*time.Second {
		t.Fatalf("pushed step = %v", got)
	}
}

func TestStepClockGate(t *testing.T) {
	gate := make(chan struct{})
	c := NewStepClock(time.Second).WithGate(gate)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got := make(chan time.Duration, 1)
	go func() {
		d, _ := c.WaitTick(ctx)
		got <- d
	}()

	select {
	case <-got:
		t.Fatalf("WaitTick returned before the gate opened")
	case <-time.After(20 * time.Millisecond):
	}

	gate <- struct{}{}
	if d := <-got; d != time.Second {
		t.Fatalf("gated tick = %v", d)
	}
}

func TestNewByMode(t *testing.T) {
	period := 10 * time.Millisecond
	tests := []struct {
		name    string
		mode    Mode
		period  time.Duration
		wantErr bool
		check   func(t *testing.T, c Clock)
	}{
		{
			name: "realtime is a wall clock", mode: RealTime, period: period,
			check: func(t *testing.T, c Clock) {
				wc, ok := c.(*WallClock)
				if !ok {
					t.Fatalf("New(RealTime) = %T, want *WallClock", c)
				}
				if wc.TimeScale() != 3 {
					t.Fatalf("time scale option dropped: %v", wc.TimeScale())
				}
			},
		},
		{
			name: "accelerated reports the period without sleeping", mode: Accelerated, period: period,
			check: func(t *testing.T, c Clock) {
				if _, ok := c.(*AcceleratedClock); !ok {
					t.Fatalf("New(Accelerated) = %T, want *AcceleratedClock", c)
				}
				start := time.Now()
				for i := 0; i < 100; i++ {
					elapsed, err := c.WaitTick(context.Background())
					if err != nil {
						t.Fatalf("WaitTick: %v", err)
					}
					if elapsed != period {
						t.Fatalf("elapsed = %v, want %v", elapsed, period)
					}
				}
				if wall := time.Since(start); wall >= 100*period {
					t.Fatalf("100 accelerated ticks took %v of wall time", wall)
				}
			},
		},
		{name: "accelerated rejects zero period", mode: Accelerated, period: 0, wantErr: true},
		{name: "realtime rejects zero period", mode: RealTime, period: 0, wantErr: true},
		{name: "unknown mode", mode: Mode(9), period: period, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, err := New(tc.mode, tc.period, WithTimeScale(3))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("New(%v, %v) succeeded", tc.mode, tc.period)
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if c.Period() != tc.period {
				t.Fatalf("Period() = %v, want %v", c.Period(), tc.period)
			}
			tc.check(t, c)
		})
	}
}

func TestAcceleratedClockHonoursCancellation(t *testing.T) {
	c, err := NewAcceleratedClock(time.Millisecond)
	if err != nil {
		t.Fatalf("NewAcceleratedClock: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.WaitTick(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("WaitTick err = %v, want context.Canceled", err)
	}
	if c.Ticks() != 0 {
		t.Fatalf("cancelled wait counted a tick")
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": RealTime, "realtime": RealTime, "Accelerated": Accelerated} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) = %v, %v; want %v", in, got, err, want)
		}
		if in != "" && !strings.EqualFold(got.String(), in) {
			t.Fatalf("%v.String() = %q", got, got.String())
		}
	}
	if _, err := ParseMode("warp"); err == nil {
		t.Fatalf("ParseMode(warp) succeeded")
	}
}

func TestOverrun(t *testing.T) {
	period := 10 * time.Millisecond
	if Overrun(2*period, period) {
		t.Fatalf("exactly %d periods counted as overrun", OverrunFactor)
	}
	if !Overrun(2*period+1, period) {
		t.Fatalf("just over %d periods not counted", OverrunFactor)
	}
	if Overrun(time.Second, 0) {
		t.Fatalf("zero period counted as overrun")
	}
}
