package core

import (
	"sync"

	"github.com/spaghettifunk/reactor/engine/containers"
)

// Rolling window used for the frame-time average.
const metricsWindow = 30

type MetricsState struct {
	frameTimes         *containers.RingQueue[float64]
	MSavg              float64
	Frames             int32
	AccumulatedFrameMS float64
	FPS                float64
}

var onceMetrics sync.Once
var metricsState *MetricsState = nil

func MetricsInitialize() error {
	onceMetrics.Do(func() {
		metricsState = &MetricsState{
			frameTimes: containers.NewRingQueue[float64](metricsWindow),
		}
	})
	return nil
}

// MetricsUpdate folds one frame's elapsed time (seconds) into the rolling
// average and the per-second FPS counter.
func MetricsUpdate(frameElapsedTime float64) {
	frameMS := frameElapsedTime * 1000.0

	if metricsState.frameTimes.IsFull() {
		metricsState.frameTimes.Dequeue()
	}
	metricsState.frameTimes.Enqueue(frameMS)

	var sum float64
	metricsState.frameTimes.Each(func(ms float64) {
		sum += ms
	})
	metricsState.MSavg = sum / float64(metricsState.frameTimes.Len())

	// Frames per second.
	metricsState.AccumulatedFrameMS += frameMS
	if metricsState.AccumulatedFrameMS > 1000 {
		metricsState.FPS = float64(metricsState.Frames)
		metricsState.AccumulatedFrameMS -= 1000
		metricsState.Frames = 0
	}
	metricsState.Frames++
}

func MetricsFPS() float64 {
	return metricsState.FPS
}

func MetricsFrameTime() float64 {
	return metricsState.MSavg
}

func MetricsFrame() (float64, float64) {
	return metricsState.FPS, metricsState.MSavg
}
