package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClockDeltaBetweenUpdates(t *testing.T) {
	clock := NewClock()
	clock.Start()
	clock.Update()

	time.Sleep(20 * time.Millisecond)
	clock.Update()

	delta := clock.Delta()
	assert.GreaterOrEqual(t, delta, 0.02)
	assert.Less(t, delta, 1.0)
	assert.GreaterOrEqual(t, clock.Elapsed(), float64(20*time.Millisecond))
}

func TestClockStartResets(t *testing.T) {
	clock := NewClock()
	clock.Start()
	clock.Update()
	time.Sleep(5 * time.Millisecond)
	clock.Update()

	clock.Start()
	assert.Zero(t, clock.Elapsed())
	assert.Zero(t, clock.Delta())
}

func TestClockStoppedDoesNotAdvance(t *testing.T) {
	clock := NewClock()
	clock.Start()
	clock.Update()
	clock.Stop()

	elapsed := clock.Elapsed()
	time.Sleep(5 * time.Millisecond)
	clock.Update()
	assert.Equal(t, elapsed, clock.Elapsed())
}
