package wavert

import (
	"time"
)

// DefaultTickStep is the simulation time added by one tick.
const DefaultTickStep float32 = 0.02

// Clock is simulation time. Only Tick advances it; rendering reads Now.
type Clock struct {
	step float32
	now  float32
	tick uint64
}

func NewClock(step float32) *Clock {
	if step <= 0 {
		step = DefaultTickStep
	}
	return &Clock{step: step}
}

func (c *Clock) Tick() {
	c.tick++
	c.now = float32(c.tick) * c.step
}

func (c *Clock) Now() float32  { return c.now }
func (c *Clock) Ticks() uint64 { return c.tick }
func (c *Clock) Step() float32 { return c.step }

// FixedStepper turns wall-clock frame deltas into whole clock ticks, keeping the
// remainder for the next frame.
type FixedStepper struct {
	Clock *Clock
	// MaxTicks bounds catch-up after a stall; 0 means unbounded.
	MaxTicks int

	last    time.Time
	pending time.Duration
}

// Advance ticks the clock for the time elapsed since the previous call and
// returns the number of ticks taken.
func (s *FixedStepper) Advance(now time.Time) int {
	if s.last.IsZero() {
		s.last = now
		return 0
	}
	s.pending += now.Sub(s.last)
	s.last = now

	step := time.Duration(float64(s.Clock.Step()) * float64(time.Second))
	ticks := 0
	for s.pending >= step {
		if s.MaxTicks > 0 && ticks == s.MaxTicks {
			s.pending = 0
			break
		}
		s.Clock.Tick()
		s.pending -= step
		ticks++
	}
	return ticks
}
