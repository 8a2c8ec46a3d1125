package factors

// Liquidity factors: trading activity relative to float size.

func avgTradingValue20D(s *Series) []*float32 {
	values := make([]float64, len(s.Close))
	for i := range s.Close {
		values[i] = s.Close[i] * float64(s.Volume[i])
	}
	return rollingMean(values, 20)
}

// avgTradingValue is the generic AVG_TRADING_VALUE factor, the same 20-day
// mean trading value used by avgTradingValue20D.
func avgTradingValue(s *Series) []*float32 { return avgTradingValue20D(s) }

func turnoverRate20D(s *Series) []*float32 {
	volMean := rollingMeanInt(s.Volume, 20)
	out := nullSeries(len(s.Close))
	for i, v := range volMean {
		if v == nil || s.SharesOut[i] <= 0 {
			continue
		}
		out[i] = ptr(float64(*v) / float64(s.SharesOut[i]) * 100)
	}
	return out
}

// turnoverRate is the generic TURNOVER_RATE factor, the same
// avg_volume/shares_outstanding x 100 ratio used by turnoverRate20D.
func turnoverRate(s *Series) []*float32 { return turnoverRate20D(s) }
