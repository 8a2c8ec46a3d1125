// Package corpaction detects corporate-action-like single-day price
// discontinuities (splits, reverse splits, massive rights issues) that would
// otherwise masquerade as enormous momentum signals, and flags the affected
// stock/date for forced liquidation rather than normal trading.
package corpaction

import (
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/aristath/kr-backtest/internal/domain"
)

// DefaultThreshold is the fraction of single-day absolute return at or
// beyond which a bar is treated as a corporate action rather than a real trading
// move, per the engine's default configuration.
const DefaultThreshold = 0.50

// Detector scans a stock's bar history for single-day returns whose absolute
// value reaches or exceeds Threshold.
type Detector struct {
	Threshold float64
	log       zerolog.Logger
}

func New(threshold float64, log zerolog.Logger) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Detector{Threshold: threshold, log: log.With().Str("component", "corpaction").Logger()}
}

// Detect returns one CorporateActionRecord per day whose close-to-close
// return from the prior bar reaches or exceeds the threshold in absolute
// value. Bars
// must already be sorted ascending by date; Detect sorts defensively if not.
func (d *Detector) Detect(bars []domain.PriceBar) []domain.CorporateActionRecord {
	if len(bars) < 2 {
		return nil
	}
	sorted := bars
	if !sort.SliceIsSorted(bars, func(i, j int) bool { return bars[i].Date < bars[j].Date }) {
		sorted = append([]domain.PriceBar(nil), bars...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date < sorted[j].Date })
	}

	var events []domain.CorporateActionRecord
	for i := 1; i < len(sorted); i++ {
		prev := sorted[i-1]
		cur := sorted[i]
		if prev.Close <= 0 {
			continue
		}
		returnPct := (cur.Close - prev.Close) / prev.Close
		if math.Abs(returnPct) >= d.Threshold {
			actionType := domain.CorpActionConsolidation
			if returnPct > 0 {
				actionType = domain.CorpActionBonusSplit
			}
			events = append(events, domain.CorporateActionRecord{
				Code:       cur.Code,
				Date:       cur.Date,
				PrevClose:  prev.Close,
				Close:      cur.Close,
				ReturnPct:  returnPct,
				ActionType: actionType,
			})
		}
	}

	if len(events) > 0 {
		d.log.Warn().Int("count", len(events)).Msg("detected corporate-action-like price discontinuities")
	}
	return events
}

// BlockedDates returns the set of "code|date" keys that the simulator must
// force-liquidate on, derived from Detect's output.
func BlockedDates(events []domain.CorporateActionRecord) map[string]domain.CorporateActionRecord {
	out := make(map[string]domain.CorporateActionRecord, len(events))
	for _, e := range events {
		out[e.Code+"|"+e.Date] = e
	}
	return out
}
