package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestGateAdmitsUnderCapacityImmediately(t *testing.T) {
	clock := newFakeClock()
	g := NewGate(3, time.Minute, WithClock(clock.Now, clock.Sleep))

	for i := 0; i < 3; i++ {
		assert.Zero(t, g.Admit(context.Background()))
	}
	assert.Empty(t, clock.sleeps)
	assert.Equal(t, 3, g.InWindow())
}

func TestGateThirdCallBlocksForRestOfWindow(t *testing.T) {
	clock := newFakeClock()
	g := NewGate(2, 60*time.Second, WithClock(clock.Now, clock.Sleep))

	g.Admit(context.Background())
	clock.Advance(2 * time.Second)
	g.Admit(context.Background())

	waited := g.Admit(context.Background())

	require.Len(t, clock.sleeps, 1)
	assert.GreaterOrEqual(t, waited, 58*time.Second)
	assert.Equal(t, 59*time.Second, waited) // 60 - 2 elapsed + 1 epsilon
}

func TestGateThirdImmediateCallWaitsFullWindow(t *testing.T) {
	clock := newFakeClock()
	g := NewGate(2, 60*time.Second, WithClock(clock.Now, clock.Sleep))

	g.Admit(context.Background())
	g.Admit(context.Background())
	waited := g.Admit(context.Background())

	assert.Equal(t, 61*time.Second, waited)
	// both earlier admissions aged out while waiting
	assert.Equal(t, 1, g.InWindow())
}

func TestGateWindowSlides(t *testing.T) {
	clock := newFakeClock()
	g := NewGate(2, 10*time.Second, WithClock(clock.Now, clock.Sleep), WithEpsilon(0))

	g.Admit(context.Background())
	clock.Advance(4 * time.Second)
	g.Admit(context.Background())
	clock.Advance(7 * time.Second) // first admission is now 11s old

	assert.Zero(t, g.Admit(context.Background()))
	assert.Empty(t, clock.sleeps)
}

func TestGateNeverExceedsLimitInAnyWindow(t *testing.T) {
	clock := newFakeClock()
	window := 30 * time.Second
	g := NewGate(4, window, WithClock(clock.Now, clock.Sleep))

	var admitted []time.Time
	for i := 0; i < 20; i++ {
		g.Admit(context.Background())
		admitted = append(admitted, clock.Now())
		clock.Advance(time.Second)
	}

	for i := range admitted {
		count := 0
		for j := i; j < len(admitted) && admitted[j].Sub(admitted[i]) < window; j++ {
			count++
		}
		assert.LessOrEqual(t, count, 4, "window starting at admission %d", i)
	}
}

func TestGateNonPositiveMaxIsOne(t *testing.T) {
	clock := newFakeClock()
	g := NewGate(0, time.Minute, WithClock(clock.Now, clock.Sleep), WithEpsilon(0))

	g.Admit(context.Background())
	assert.Equal(t, time.Minute, g.Admit(context.Background()))
}

func TestSleepReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	Sleep(ctx, time.Hour)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPerMinute(t *testing.T) {
	g := PerMinute(10)
	assert.Equal(t, time.Minute, g.window)
	assert.Equal(t, 10, g.maxRequests)
}
