package core

import "time"

// Clock drives the frame loop timing. Elapsed is nanoseconds since Start;
// Delta is the time between the two most recent Updates, in seconds, which
// is what the renderer and the metrics consume.
type Clock struct {
	startTime float64
	elapsed   float64
	previous  float64
}

func NewClock() *Clock {
	return &Clock{}
}

// Updates the provided clock. Should be called once per frame, just before
// reading Elapsed or Delta. Has no effect on non-started clocks.
func (c *Clock) Update() {
	if c.startTime != 0 {
		c.previous = c.elapsed
		c.elapsed = float64(time.Now().UnixNano()) - c.startTime
	}
}

// Starts the provided clock. Resets elapsed time.
func (c *Clock) Start() {
	c.startTime = float64(time.Now().UnixNano())
	c.elapsed = 0
	c.previous = 0
}

// Stops the provided clock. Does not reset elapsed time.
func (c *Clock) Stop() {
	c.startTime = 0
}

func (c *Clock) Elapsed() float64 {
	return c.elapsed
}

// Delta returns the seconds between the last two Updates. Zero until the
// clock has been updated at least twice after Start.
func (c *Clock) Delta() float64 {
	return (c.elapsed - c.previous) / float64(time.Second)
}
