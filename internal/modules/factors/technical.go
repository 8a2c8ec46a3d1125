package factors

import (
	"github.com/aristath/kr-backtest/pkg/formulas"
)

// Technical factors wrap pkg/formulas' go-talib-backed indicator series,
// converting NaN ("insufficient history") to null per the engine's
// convention.

func rsi14(s *Series) []*float32 {
	return fromFloat64Series(formulas.RSI(s.Close, 14))
}

func macdLine(s *Series) []*float32 {
	macd, _, _ := formulas.MACD(s.Close, 12, 26, 9)
	return fromFloat64Series(macd)
}

func macdSignal(s *Series) []*float32 {
	_, signal, _ := formulas.MACD(s.Close, 12, 26, 9)
	return fromFloat64Series(signal)
}

func macdHistogram(s *Series) []*float32 {
	_, _, hist := formulas.MACD(s.Close, 12, 26, 9)
	return fromFloat64Series(hist)
}

func bollingerPosition20(s *Series) []*float32 {
	return fromFloat64Series(formulas.BollingerPosition(s.Close, 20, 2.0))
}

func bollingerWidth(s *Series) []*float32 {
	return fromFloat64Series(formulas.BollingerWidth(s.Close, 20, 2.0))
}

func movingAverage(window int) func(*Series) []*float32 {
	return func(s *Series) []*float32 {
		return fromFloat64Series(formulas.SMA(s.Close, window))
	}
}

func priceToMA20(s *Series) []*float32 {
	ma := formulas.SMA(s.Close, 20)
	out := nullSeries(len(s.Close))
	for i := range s.Close {
		if i >= len(ma) || isNaN64(ma[i]) || ma[i] == 0 {
			continue
		}
		out[i] = ptr(s.Close[i]/ma[i] - 1)
	}
	return out
}

func stochasticK14(s *Series) []*float32 {
	k, _ := formulas.Stochastic(s.High, s.Low, s.Close, 14, 3, 3)
	return fromFloat64Series(k)
}

func stochasticD14(s *Series) []*float32 {
	_, d := formulas.Stochastic(s.High, s.Low, s.Close, 14, 3, 3)
	return fromFloat64Series(d)
}

// stochastic14 is the generic STOCHASTIC_14 factor: the %K line of the same
// 14/3/3 stochastic oscillator used by stochasticK14.
func stochastic14(s *Series) []*float32 { return stochasticK14(s) }

func fromFloat64Series(values []float64) []*float32 {
	out := nullSeries(len(values))
	for i, v := range values {
		if isNaN64(v) {
			continue
		}
		out[i] = ptr(v)
	}
	return out
}

func isNaN64(f float64) bool { return f != f }
