package sizing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/kr-backtest/internal/domain"
)

func sumWeights(w map[string]float64) float64 {
	var total float64
	for _, v := range w {
		total += v
	}
	return total
}

func TestEqualWeightsSplitsEvenly(t *testing.T) {
	inputs := []Input{{Code: "A"}, {Code: "B"}, {Code: "C"}}
	w := Weights(domain.SizingEqualWeight, inputs)
	assert.Len(t, w, 3)
	assert.InDelta(t, 1.0/3, w["A"], 1e-9)
	assert.InDelta(t, 1.0, sumWeights(w), 1e-9)
}

func TestMarketCapWeightsProportional(t *testing.T) {
	inputs := []Input{
		{Code: "A", MarketCap: 300},
		{Code: "B", MarketCap: 100},
	}
	w := Weights(domain.SizingMarketCap, inputs)
	assert.InDelta(t, 0.75, w["A"], 1e-9)
	assert.InDelta(t, 0.25, w["B"], 1e-9)
}

func TestMarketCapWeightsFallBackToEqualWhenNoCapData(t *testing.T) {
	inputs := []Input{{Code: "A"}, {Code: "B"}}
	w := Weights(domain.SizingMarketCap, inputs)
	assert.InDelta(t, 0.5, w["A"], 1e-9)
	assert.InDelta(t, 0.5, w["B"], 1e-9)
}

func TestRiskParityWeightsFavourLowerVolatility(t *testing.T) {
	inputs := []Input{
		{Code: "LOW", TrailingReturns: []float64{0.001, -0.001, 0.0005, -0.0005, 0.001}},
		{Code: "HIGH", TrailingReturns: []float64{0.05, -0.05, 0.04, -0.06, 0.05}},
	}
	w := Weights(domain.SizingRiskParity, inputs)
	assert.Greater(t, w["LOW"], w["HIGH"])
	assert.InDelta(t, 1.0, sumWeights(w), 1e-6)
}

func TestRiskParityFallsBackWhenInsufficientHistory(t *testing.T) {
	inputs := []Input{
		{Code: "A", TrailingReturns: []float64{0.01}},
		{Code: "B", TrailingReturns: []float64{0.02}},
	}
	w := Weights(domain.SizingRiskParity, inputs)
	assert.InDelta(t, 0.5, w["A"], 1e-9)
	assert.InDelta(t, 0.5, w["B"], 1e-9)
}

func TestWeightsEmptyInputReturnsEmptyMap(t *testing.T) {
	w := Weights(domain.SizingEqualWeight, nil)
	assert.Empty(t, w)
}
