package factors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPctChangeLagNullBeforeWindow(t *testing.T) {
	closes := []float64{100, 110, 121}
	out := pctChangeLag(closes, 2)
	assert.Nil(t, out[0])
	assert.Nil(t, out[1])
	assert.InDelta(t, float64(float32(0.21)), float64(*out[2]), 1e-9)
}

func TestPctChangeLagNullOnZeroBase(t *testing.T) {
	closes := []float64{0, 50}
	out := pctChangeLag(closes, 1)
	assert.Nil(t, out[1])
}

func TestRollingMeanFillsFromWindowMinusOne(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	out := rollingMean(values, 3)
	assert.Nil(t, out[0])
	assert.Nil(t, out[1])
	assert.InDelta(t, 2.0, float64(*out[2]), 1e-9)
	assert.InDelta(t, 4.0, float64(*out[4]), 1e-9)
}

func TestRollingMaxAndMin(t *testing.T) {
	values := []float64{3, 1, 4, 1, 5}
	max := rollingMax(values, 3)
	min := rollingMin(values, 3)
	assert.InDelta(t, 4.0, float64(*max[2]), 1e-9)
	assert.InDelta(t, 1.0, float64(*min[2]), 1e-9)
	assert.InDelta(t, 5.0, float64(*max[4]), 1e-9)
}

func TestStdDevOfConstantSeriesIsZero(t *testing.T) {
	assert.Equal(t, 0.0, stdDev([]float64{5, 5, 5}))
}

func TestMaxDrawdownTrailingCapturesDecline(t *testing.T) {
	closes := []float64{100, 120, 90, 95}
	out := maxDrawdownTrailing(closes, 4)
	assert.InDelta(t, -0.25, float64(*out[3]), 1e-9) // peak 120 -> trough 90
}
