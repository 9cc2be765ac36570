package wavert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClockTick(t *testing.T) {
	c := NewClock(0)
	assert.Equal(t, DefaultTickStep, c.Step())
	assert.Zero(t, c.Now())

	prev := c.Now()
	for i := 0; i < 1000; i++ {
		c.Tick()
		assert.Greater(t, c.Now(), prev)
		prev = c.Now()
	}
	assert.Equal(t, uint64(1000), c.Ticks())
	assert.InDelta(t, 20, c.Now(), 1e-4)
}

func TestFixedStepperCarriesRemainder(t *testing.T) {
	c := NewClock(0.02)
	s := FixedStepper{Clock: c}
	start := time.Unix(100, 0)

	assert.Zero(t, s.Advance(start))
	assert.Equal(t, 1, s.Advance(start.Add(30*time.Millisecond)))
	// 10ms left over plus 15ms is one more tick.
	assert.Equal(t, 1, s.Advance(start.Add(45*time.Millisecond)))
	assert.Equal(t, 0, s.Advance(start.Add(50*time.Millisecond)))
	assert.Equal(t, uint64(2), c.Ticks())
}

func TestFixedStepperCapsCatchUp(t *testing.T) {
	c := NewClock(0.02)
	s := FixedStepper{Clock: c, MaxTicks: 3}
	start := time.Unix(100, 0)
	s.Advance(start)

	assert.Equal(t, 3, s.Advance(start.Add(time.Second)))
	assert.Equal(t, 1, s.Advance(start.Add(time.Second+20*time.Millisecond)))
}
