package factors

// Momentum factors: trailing-return and range-position measures computed
// purely from the price series.

const (
	tradingDaysMonth = 21
	tradingDaysYear  = 252
)

func momentum1M(s *Series) []*float32  { return pctChangeLag(s.Close, 1*tradingDaysMonth) }
func momentum3M(s *Series) []*float32  { return pctChangeLag(s.Close, 3*tradingDaysMonth) }
func momentum6M(s *Series) []*float32  { return pctChangeLag(s.Close, 6*tradingDaysMonth) }
func momentum12M(s *Series) []*float32 { return pctChangeLag(s.Close, tradingDaysYear) }
func return1D(s *Series) []*float32    { return pctChangeLag(s.Close, 1) }
func return1W(s *Series) []*float32    { return pctChangeLag(s.Close, 5) }

// RETURN_{1M,3M,6M,12M} are the same trailing price ratio as the
// corresponding MOMENTUM_* factors (P_t/P_t-N - 1); kept as distinct
// registrations since strategies reference both spellings.
func return1M(s *Series) []*float32  { return momentum1M(s) }
func return3M(s *Series) []*float32  { return momentum3M(s) }
func return6M(s *Series) []*float32  { return momentum6M(s) }
func return12M(s *Series) []*float32 { return momentum12M(s) }

// changeRate is the day-over-day percent close change, expressed as a
// plain ratio (0.05 for +5%), not scaled by 100.
func changeRate(s *Series) []*float32 { return pctChangeLag(s.Close, 1) }

func distanceFrom52WHigh(s *Series) []*float32 {
	highs := rollingMax(s.Close, tradingDaysYear)
	out := nullSeries(len(s.Close))
	for i, h := range highs {
		if h == nil || *h == 0 {
			continue
		}
		out[i] = ptr(s.Close[i]/float64(*h) - 1)
	}
	return out
}

func distanceFrom52WLow(s *Series) []*float32 {
	lows := rollingMin(s.Close, tradingDaysYear)
	out := nullSeries(len(s.Close))
	for i, l := range lows {
		if l == nil || *l == 0 {
			continue
		}
		out[i] = ptr(s.Close[i]/float64(*l) - 1)
	}
	return out
}

func volumeMomentum(s *Series) []*float32 {
	short := rollingMeanInt(s.Volume, 20)
	long := rollingMeanInt(s.Volume, 60)
	out := nullSeries(len(s.Close))
	for i := range out {
		if short[i] == nil || long[i] == nil || *long[i] == 0 {
			continue
		}
		out[i] = ptr(float64(*short[i])/float64(*long[i]) - 1)
	}
	return out
}

// relativeStrength is the generic RELATIVE_STRENGTH factor, defined the
// same way as its 12-month variant: trailing stock momentum minus trailing
// market-index momentum over the same lookback.
func relativeStrength(s *Series) []*float32 { return relativeStrength12M(s) }

func relativeStrength12M(s *Series) []*float32 {
	out := nullSeries(len(s.Close))
	if s.MarketClose == nil {
		return out
	}
	stockMom := pctChangeLag(s.Close, tradingDaysYear)
	marketMom := pctChangeLag(s.MarketClose, tradingDaysYear)
	for i := range out {
		if stockMom[i] == nil || marketMom[i] == nil {
			continue
		}
		out[i] = ptr(float64(*stockMom[i]) - float64(*marketMom[i]))
	}
	return out
}
