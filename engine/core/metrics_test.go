package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRollingAverage(t *testing.T) {
	require.NoError(t, MetricsInitialize())

	// 60 fps cadence: every frame takes ~16.6 ms.
	for i := 0; i < 100; i++ {
		MetricsUpdate(1.0 / 60.0)
	}

	assert.InDelta(t, 1000.0/60.0, MetricsFrameTime(), 0.01)

	fps, frameTime := MetricsFrame()
	assert.Equal(t, MetricsFPS(), fps)
	assert.Equal(t, MetricsFrameTime(), frameTime)
}
