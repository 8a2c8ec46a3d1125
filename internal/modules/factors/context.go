// Package factors implements the vectorized factor engine: given a stock's
// aligned price/volume history and point-in-time fundamental disclosures, it
// computes one named, nullable factor value per trading day.
package factors

import (
	"sort"

	"github.com/aristath/kr-backtest/internal/domain"
)

// Series is a single stock's price/fundamental history aligned to Dates,
// extended back by priceadapter.LookbackDays (300 calendar days, about 200
// trading days); factors with a longer window (e.g. a 250-day moving
// average) are still null for the early part of the requested range.
type Series struct {
	Code      string
	Dates     []string
	Open      []float64
	High      []float64
	Low       []float64
	Close     []float64
	Volume    []int64
	MarketCap []float64
	SharesOut []int64

	// Fundamentals holds every disclosure across all metrics, sorted
	// ascending by AvailableDate; fundamentalIndex narrows it per metric.
	Fundamentals []domain.FundamentalRecord

	// MarketClose is an optional benchmark index series aligned to Dates,
	// used by relative-strength and beta factors. Nil if unavailable, in
	// which case those factors report null for every day.
	MarketClose []float64

	fundIdx fundamentalIndex
}

// NewSeries builds a Series from loaded price bars and fundamental records
// for a single stock, sorting both by date/available-date as required.
func NewSeries(code string, bars []domain.PriceBar, fundamentals []domain.FundamentalRecord, marketClose []float64) *Series {
	sorted := append([]domain.PriceBar(nil), bars...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })

	s := &Series{
		Code:      code,
		Dates:     make([]string, len(sorted)),
		Open:      make([]float64, len(sorted)),
		High:      make([]float64, len(sorted)),
		Low:       make([]float64, len(sorted)),
		Close:     make([]float64, len(sorted)),
		Volume:    make([]int64, len(sorted)),
		MarketCap: make([]float64, len(sorted)),
		SharesOut: make([]int64, len(sorted)),
	}
	for i, b := range sorted {
		s.Dates[i] = b.Date
		s.Open[i] = b.Open
		s.High[i] = b.High
		s.Low[i] = b.Low
		s.Close[i] = b.Close
		s.Volume[i] = b.Volume
		s.MarketCap[i] = b.MarketCap
		s.SharesOut[i] = b.SharesOut
	}
	s.MarketClose = marketClose

	f := append([]domain.FundamentalRecord(nil), fundamentals...)
	sort.Slice(f, func(i, j int) bool { return f[i].AvailableDate < f[j].AvailableDate })
	s.Fundamentals = f
	s.fundIdx = buildFundamentalIndex(f)

	return s
}

// fundamentalIndex groups a stock's disclosures by metric name, each sorted
// ascending by AvailableDate, so valueAsOf can binary-search the latest
// knowable value for a given trading day without look-ahead.
type fundamentalIndex map[string][]domain.FundamentalRecord

func buildFundamentalIndex(records []domain.FundamentalRecord) fundamentalIndex {
	idx := make(fundamentalIndex)
	for _, r := range records {
		idx[r.Metric] = append(idx[r.Metric], r)
	}
	return idx
}

// valueAsOf returns the latest disclosed value for metric whose
// AvailableDate is on or before date, or (0, false) if none exists yet.
func (idx fundamentalIndex) valueAsOf(metric, date string) (float64, bool) {
	recs := idx[metric]
	lo, hi := 0, len(recs)
	for lo < hi {
		mid := (lo + hi) / 2
		if recs[mid].AvailableDate <= date {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return 0, false
	}
	return recs[lo-1].Value, true
}

func ptr(v float64) *float32 {
	f := float32(v)
	return &f
}

func nullSeries(n int) []*float32 {
	return make([]*float32, n)
}
