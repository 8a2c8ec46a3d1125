package factors

import "math"

// pctChangeLag returns close[i]/close[i-lag]-1 for each day, nil where the
// lookback index is out of range.
func pctChangeLag(closes []float64, lag int) []*float32 {
	out := nullSeries(len(closes))
	for i := lag; i < len(closes); i++ {
		if closes[i-lag] == 0 {
			continue
		}
		out[i] = ptr(closes[i]/closes[i-lag] - 1)
	}
	return out
}

func dailyReturns(closes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := 1; i < len(closes); i++ {
		if closes[i-1] != 0 {
			out[i] = closes[i]/closes[i-1] - 1
		}
	}
	return out
}

func rollingMean(values []float64, window int) []*float32 {
	out := nullSeries(len(values))
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out[i] = ptr(sum / float64(window))
		}
	}
	return out
}

func rollingMeanInt(values []int64, window int) []*float32 {
	f := make([]float64, len(values))
	for i, v := range values {
		f[i] = float64(v)
	}
	return rollingMean(f, window)
}

func rollingStdDev(values []float64, window int) []*float32 {
	out := nullSeries(len(values))
	for i := range values {
		if i < window-1 {
			continue
		}
		win := values[i-window+1 : i+1]
		out[i] = ptr(stdDev(win))
	}
	return out
}

func stdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var sumSq float64
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(values)))
}

func rollingMax(values []float64, window int) []*float32 {
	out := nullSeries(len(values))
	for i := range values {
		if i < window-1 {
			continue
		}
		win := values[i-window+1 : i+1]
		m := win[0]
		for _, v := range win[1:] {
			if v > m {
				m = v
			}
		}
		out[i] = ptr(m)
	}
	return out
}

func rollingMin(values []float64, window int) []*float32 {
	out := nullSeries(len(values))
	for i := range values {
		if i < window-1 {
			continue
		}
		win := values[i-window+1 : i+1]
		m := win[0]
		for _, v := range win[1:] {
			if v < m {
				m = v
			}
		}
		out[i] = ptr(m)
	}
	return out
}

// maxDrawdownTrailing returns, for each day, the maximum peak-to-trough
// decline observed within the trailing `window` closes.
func maxDrawdownTrailing(closes []float64, window int) []*float32 {
	out := nullSeries(len(closes))
	for i := range closes {
		if i < window-1 {
			continue
		}
		win := closes[i-window+1 : i+1]
		peak := win[0]
		maxDD := 0.0
		for _, v := range win {
			if v > peak {
				peak = v
			}
			if peak > 0 {
				dd := (v - peak) / peak
				if dd < maxDD {
					maxDD = dd
				}
			}
		}
		out[i] = ptr(maxDD)
	}
	return out
}

func covariance(a, b []float64) float64 {
	n := len(a)
	if n == 0 || n != len(b) {
		return 0
	}
	var meanA, meanB float64
	for i := range a {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= float64(n)
	meanB /= float64(n)
	var cov float64
	for i := range a {
		cov += (a[i] - meanA) * (b[i] - meanB)
	}
	return cov / float64(n)
}

func variance(a []float64) float64 {
	return covariance(a, a)
}
