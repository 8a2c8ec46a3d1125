package factors

// Profitability factors: returns-on-capital and margin ratios, all joined
// point-in-time against the latest disclosed net_income/equity/revenue/
// assets figures.

func roeSeries(s *Series) []*float32 {
	return fundamentalRatio(s, "net_income", "equity")
}

func roaSeries(s *Series) []*float32 {
	return fundamentalRatio(s, "net_income", "assets")
}

func netMarginSeries(s *Series) []*float32 {
	return fundamentalRatio(s, "net_income", "revenue")
}

func operatingMarginSeries(s *Series) []*float32 {
	return fundamentalRatio(s, "operating_income", "revenue")
}

func grossMarginSeries(s *Series) []*float32 {
	return fundamentalRatio(s, "gross_profit", "revenue")
}

// GPM/OPM/NPM are the conventional abbreviations for the same gross/
// operating/net margin ratios above; registered separately since
// strategies reference both spellings.
func gpmSeries(s *Series) []*float32 { return grossMarginSeries(s) }
func opmSeries(s *Series) []*float32 { return operatingMarginSeries(s) }
func npmSeries(s *Series) []*float32 { return netMarginSeries(s) }

func roicSeries(s *Series) []*float32 {
	out := nullSeries(len(s.Dates))
	for i, date := range s.Dates {
		nopat, ok1 := s.fundIdx.valueAsOf("operating_income", date)
		equity, ok2 := s.fundIdx.valueAsOf("equity", date)
		debt, ok3 := s.fundIdx.valueAsOf("total_debt", date)
		if !ok1 || !ok2 {
			continue
		}
		investedCapital := equity
		if ok3 {
			investedCapital += debt
		}
		if investedCapital <= 0 {
			continue
		}
		out[i] = ptr(nopat / investedCapital)
	}
	return out
}

// fundamentalRatio joins two fundamental metrics as-of the same date and
// reports numerator/denominator, null if either is unavailable or the
// denominator is non-positive.
func fundamentalRatio(s *Series, numerator, denominator string) []*float32 {
	out := nullSeries(len(s.Dates))
	for i, date := range s.Dates {
		num, ok1 := s.fundIdx.valueAsOf(numerator, date)
		den, ok2 := s.fundIdx.valueAsOf(denominator, date)
		if !ok1 || !ok2 || den <= 0 {
			continue
		}
		out[i] = ptr(num / den)
	}
	return out
}
