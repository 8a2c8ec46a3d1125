// Package formulas wraps go-talib for the technical-indicator factor
// family, returning full series (one value per trading day) rather than
// just the latest value, since the Factor Engine needs a value per day.
package formulas

import "github.com/markcheno/go-talib"

func isNaN(f float64) bool { return f != f }

// RSI computes the Relative Strength Index series. Entries before `length`
// trading days of history are NaN and must be treated as nulls by the
// caller.
func RSI(closes []float64, length int) []float64 {
	if len(closes) < length+1 {
		out := make([]float64, len(closes))
		for i := range out {
			out[i] = nan()
		}
		return out
	}
	return talib.Rsi(closes, length)
}

// EMA computes an Exponential Moving Average series, falling back to SMA
// when history is shorter than the requested length (matching the source
// system's behavior of degrading gracefully rather than returning null for
// borderline history lengths).
func EMA(closes []float64, length int) []float64 {
	if len(closes) == 0 {
		return nil
	}
	if len(closes) < length {
		return talib.Sma(closes, len(closes))
	}
	return talib.Ema(closes, length)
}

// SMA computes a Simple Moving Average series.
func SMA(closes []float64, length int) []float64 {
	if len(closes) < length {
		out := make([]float64, len(closes))
		for i := range out {
			out[i] = nan()
		}
		return out
	}
	return talib.Sma(closes, length)
}

// BollingerBands holds the three Bollinger Band series.
type BollingerBands struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// Bollinger computes Bollinger Bands: middle = SMA(length), upper/lower =
// middle +/- stdDevMultiplier standard deviations.
func Bollinger(closes []float64, length int, stdDevMultiplier float64) *BollingerBands {
	if len(closes) < length {
		return nil
	}
	upper, middle, lower := talib.BBands(closes, length, stdDevMultiplier, stdDevMultiplier, 0)
	return &BollingerBands{Upper: upper, Middle: middle, Lower: lower}
}

// BollingerPosition returns, for each day, where the close sits within that
// day's Bollinger Bands: 0.0 at the lower band, 1.0 at the upper band,
// clamped to [0, 1]. NaN where bands are undefined.
func BollingerPosition(closes []float64, length int, stdDevMultiplier float64) []float64 {
	bands := Bollinger(closes, length, stdDevMultiplier)
	out := make([]float64, len(closes))
	if bands == nil {
		for i := range out {
			out[i] = nan()
		}
		return out
	}
	for i := range closes {
		width := bands.Upper[i] - bands.Lower[i]
		if isNaN(bands.Upper[i]) || isNaN(bands.Lower[i]) {
			out[i] = nan()
			continue
		}
		if width == 0 {
			out[i] = 0.5
			continue
		}
		pos := (closes[i] - bands.Lower[i]) / width
		if pos < 0 {
			pos = 0
		}
		if pos > 1 {
			pos = 1
		}
		out[i] = pos
	}
	return out
}

// BollingerWidth returns, for each day, the band width as a percentage of
// the middle band: (upper - lower) / middle * 100, i.e.
// 2 * stdDevMultiplier * sigma / middle * 100. NaN
// where bands are undefined or the middle band is zero.
func BollingerWidth(closes []float64, length int, stdDevMultiplier float64) []float64 {
	bands := Bollinger(closes, length, stdDevMultiplier)
	out := make([]float64, len(closes))
	if bands == nil {
		for i := range out {
			out[i] = nan()
		}
		return out
	}
	for i := range closes {
		if isNaN(bands.Upper[i]) || isNaN(bands.Lower[i]) || isNaN(bands.Middle[i]) || bands.Middle[i] == 0 {
			out[i] = nan()
			continue
		}
		out[i] = (bands.Upper[i] - bands.Lower[i]) / bands.Middle[i] * 100
	}
	return out
}

// MACD computes the MACD line, signal line, and histogram series.
func MACD(closes []float64, fast, slow, signal int) (macd, signalLine, hist []float64) {
	return talib.Macd(closes, fast, slow, signal)
}

// Stochastic computes the %K/%D stochastic oscillator series.
func Stochastic(high, low, close []float64, kPeriod, kSlow, dPeriod int) (k, d []float64) {
	return talib.Stoch(high, low, close, kPeriod, kSlow, 0, dPeriod, 0)
}

func nan() float64 {
	var zero float64
	return zero / zero
}
