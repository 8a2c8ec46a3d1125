// Package sizing computes per-stock target weights for a rebalance's entry
// set, given the strategy's PositionSizingMode.
package sizing

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/kr-backtest/internal/domain"
)

// Input is the per-candidate data sizing needs: market cap for
// MARKET_CAP mode, and a trailing daily-return history for RISK_PARITY.
type Input struct {
	Code            string
	MarketCap       float64
	TrailingReturns []float64 // daily returns over the lookback window, aligned across candidates
}

// Weights computes a target weight per code, summing to 1.0 across the
// candidate set (absent a failure that leaves a candidate unweighable, in
// which case it is dropped and the rest renormalised).
func Weights(mode domain.PositionSizingMode, inputs []Input) map[string]float64 {
	switch mode {
	case domain.SizingMarketCap:
		return marketCapWeights(inputs)
	case domain.SizingRiskParity:
		return riskParityWeights(inputs)
	default:
		return equalWeights(inputs)
	}
}

func equalWeights(inputs []Input) map[string]float64 {
	out := make(map[string]float64, len(inputs))
	if len(inputs) == 0 {
		return out
	}
	w := 1.0 / float64(len(inputs))
	for _, in := range inputs {
		out[in.Code] = w
	}
	return out
}

func marketCapWeights(inputs []Input) map[string]float64 {
	out := make(map[string]float64, len(inputs))
	var total float64
	for _, in := range inputs {
		if in.MarketCap > 0 {
			total += in.MarketCap
		}
	}
	if total <= 0 {
		return equalWeights(inputs)
	}
	for _, in := range inputs {
		if in.MarketCap > 0 {
			out[in.Code] = in.MarketCap / total
		}
	}
	return out
}

// riskParityWeights assigns each candidate a weight inversely proportional
// to its trailing volatility, using the sample covariance matrix's diagonal
// (variance) rather than a full minimum-variance optimisation — each
// candidate's weight is independent of the others' correlations, which
// keeps the result well-defined even for small, noisy candidate sets.
func riskParityWeights(inputs []Input) map[string]float64 {
	usable := make([]Input, 0, len(inputs))
	for _, in := range inputs {
		if len(in.TrailingReturns) >= 2 {
			usable = append(usable, in)
		}
	}
	if len(usable) == 0 {
		return equalWeights(inputs)
	}

	n := len(usable)
	windowLen := len(usable[0].TrailingReturns)
	for _, in := range usable {
		if len(in.TrailingReturns) != windowLen {
			return equalWeights(inputs)
		}
	}

	data := mat.NewDense(windowLen, n, nil)
	for col, in := range usable {
		for row, r := range in.TrailingReturns {
			data.Set(row, col, r)
		}
	}

	cov := stat.CovarianceMatrix(nil, data, nil)

	inverseVols := make([]float64, n)
	var sum float64
	for i := 0; i < n; i++ {
		variance := cov.At(i, i)
		if variance <= 0 {
			inverseVols[i] = 0
			continue
		}
		iv := 1.0 / math.Sqrt(variance)
		inverseVols[i] = iv
		sum += iv
	}

	out := make(map[string]float64, n)
	if sum <= 0 {
		return equalWeights(inputs)
	}
	for i, in := range usable {
		out[in.Code] = inverseVols[i] / sum
	}
	return out
}
