package factors

import "math"

// Volatility/risk factors, annualised from daily returns by sqrt(252) where
// applicable.

// volatility is the bare VOLATILITY factor: annualised 60-day stdev of
// returns, scaled sqrt(252) x 100 per spec; annualizedVol already returns
// the sqrt(252) fraction, so the x100 percent scaling happens here.
func volatility(s *Series) []*float32 {
	v := annualizedVol(s.Close, 60)
	out := nullSeries(len(v))
	for i, p := range v {
		if p == nil {
			continue
		}
		out[i] = ptr(float64(*p) * 100)
	}
	return out
}

func volatility20D(s *Series) []*float32 { return annualizedVol(s.Close, 20) }
func volatility60D(s *Series) []*float32 { return annualizedVol(s.Close, 60) }
func volatility90D(s *Series) []*float32 { return annualizedVol(s.Close, 90) }

// downsideVolatility is the generic DOWNSIDE_VOLATILITY factor, the same
// trailing-20-day downside deviation used by downsideVolatility20D.
func downsideVolatility(s *Series) []*float32 { return downsideVolatility20D(s) }

func annualizedVol(closes []float64, window int) []*float32 {
	returns := dailyReturns(closes)
	sd := rollingStdDev(returns, window)
	out := nullSeries(len(closes))
	for i, v := range sd {
		if v == nil {
			continue
		}
		out[i] = ptr(float64(*v) * math.Sqrt(tradingDaysYear))
	}
	return out
}

func downsideVolatility20D(s *Series) []*float32 {
	returns := dailyReturns(s.Close)
	out := nullSeries(len(s.Close))
	for i := range s.Close {
		if i < 20 {
			continue
		}
		win := returns[i-19 : i+1]
		var downside []float64
		for _, r := range win {
			if r < 0 {
				downside = append(downside, r)
			}
		}
		if len(downside) == 0 {
			out[i] = ptr(0)
			continue
		}
		out[i] = ptr(stdDev(downside) * math.Sqrt(tradingDaysYear))
	}
	return out
}

func maxDrawdown1Y(s *Series) []*float32 {
	return maxDrawdownTrailing(s.Close, tradingDaysYear)
}

// maxDrawdown is the generic MAX_DRAWDOWN factor, the same trailing-1-year
// peak-to-trough decline used by maxDrawdown1Y.
func maxDrawdown(s *Series) []*float32 { return maxDrawdown1Y(s) }

// sharpeRatio divides a trailing-1-year annualised return by the same
// window's annualised volatility; null until both legs have a full window.
func sharpeRatio(s *Series) []*float32 {
	ret := pctChangeLag(s.Close, tradingDaysYear)
	vol := annualizedVol(s.Close, tradingDaysYear)
	out := nullSeries(len(s.Close))
	for i := range s.Close {
		if ret[i] == nil || vol[i] == nil || *vol[i] == 0 {
			continue
		}
		out[i] = ptr(float64(*ret[i]) / float64(*vol[i]))
	}
	return out
}

func beta1Y(s *Series) []*float32 {
	out := nullSeries(len(s.Close))
	if s.MarketClose == nil {
		return out
	}
	stockRet := dailyReturns(s.Close)
	marketRet := dailyReturns(s.MarketClose)
	n := tradingDaysYear
	for i := range s.Close {
		if i < n-1 || i >= len(marketRet) {
			continue
		}
		sWin := stockRet[i-n+1 : i+1]
		mWin := marketRet[i-n+1 : i+1]
		mVar := variance(mWin)
		if mVar == 0 {
			continue
		}
		out[i] = ptr(covariance(sWin, mWin) / mVar)
	}
	return out
}

// beta is the generic BETA factor, the same trailing-1-year regression
// against the market index used by beta1Y.
func beta(s *Series) []*float32 { return beta1Y(s) }
