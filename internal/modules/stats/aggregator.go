// Package stats computes the summary statistics the API and progress stream
// report once a backtest's daily snapshots are available: return, risk, and
// trade-level metrics.
package stats

import (
	"math"
	"sort"
	"time"

	"github.com/aristath/kr-backtest/internal/domain"
)

// Summary is the full statistics payload for one completed run. Return,
// volatility, and win-rate fields are percentages (e.g. 12.5, not 0.125) to
// match the external statistics contract.
type Summary struct {
	TotalReturn        float64                 `json:"total_return"`
	AnnualizedReturn    float64                 `json:"annualized_return"`
	Volatility          float64                 `json:"volatility"`
	DownsideVol         float64                 `json:"downside_volatility"`
	MaxDrawdown         float64                 `json:"max_drawdown"`
	DrawdownPeriods     []domain.DrawdownPeriod `json:"drawdown_periods"`
	SharpeRatio         float64                 `json:"sharpe_ratio"`
	SortinoRatio        float64                 `json:"sortino_ratio"`
	CalmarRatio         float64                 `json:"calmar_ratio"`
	WinRate             float64                 `json:"win_rate"`
	AvgWin              float64                 `json:"avg_win"`
	AvgLoss             float64                 `json:"avg_loss"`
	ProfitLossRatio     float64                 `json:"profit_loss_ratio"`
	TradeCount          int                     `json:"trade_count"`
	MonthlyReturns      map[string]float64      `json:"monthly_returns"`
	YearlyReturns       map[string]float64      `json:"yearly_returns"`
	FactorContributions []FactorContribution    `json:"factor_contributions"`
}

// FactorContribution aggregates closed-trade outcomes over every trade whose
// entry factor snapshot referenced a given factor, ranked by
// contribution_score = win_rate × avg_return (both fractional, not percent).
type FactorContribution struct {
	Factor            string  `json:"factor"`
	TradeCount        int     `json:"trade_count"`
	WinCount          int     `json:"win_count"`
	AvgReturn         float64 `json:"avg_return"`
	ContributionScore float64 `json:"contribution_score"`
	ImportanceRank    int     `json:"importance_rank"`
}

// closedTrade is one realised round trip: a SELL paired with the running
// average cost of the position it closed, plus the factor snapshot taken
// when the position was opened.
type closedTrade struct {
	returnPct float64
	factors   map[string]float64
}

const tradingDaysPerYear = 252

// Aggregate computes a Summary from a run's daily snapshots and realised
// sell trades. Snapshots must be sorted ascending by date.
func Aggregate(snapshots []domain.DailySnapshot, trades []domain.TradeRecord) Summary {
	var s Summary
	s.DrawdownPeriods = []domain.DrawdownPeriod{}
	s.MonthlyReturns = map[string]float64{}
	s.YearlyReturns = map[string]float64{}

	if len(snapshots) == 0 {
		return s
	}

	first := snapshots[0].PortfolioValue
	last := snapshots[len(snapshots)-1].PortfolioValue
	var totalReturnFraction float64
	if first > 0 {
		totalReturnFraction = last/first - 1
	}
	s.TotalReturn = totalReturnFraction * 100

	years := float64(len(snapshots)) / tradingDaysPerYear
	var annualizedFraction float64
	if years > 0 {
		annualizedFraction = math.Pow(1+totalReturnFraction, 1/years) - 1
	}
	s.AnnualizedReturn = annualizedFraction * 100

	dailyReturns := make([]float64, 0, len(snapshots))
	for _, snap := range snapshots {
		dailyReturns = append(dailyReturns, snap.Return)
	}
	volatilityFraction := annualizedStdDev(dailyReturns)
	downsideFraction := annualizedDownsideStdDev(dailyReturns)
	s.Volatility = volatilityFraction * 100
	s.DownsideVol = downsideFraction * 100

	s.MaxDrawdown, s.DrawdownPeriods = drawdowns(snapshots)

	if volatilityFraction > 0 {
		s.SharpeRatio = annualizedFraction / volatilityFraction
	}
	if downsideFraction > 0 {
		s.SortinoRatio = annualizedFraction / downsideFraction
	}
	if s.MaxDrawdown != 0 {
		s.CalmarRatio = annualizedFraction / math.Abs(s.MaxDrawdown)
	}

	closed := closedTrades(trades)
	s.TradeCount = len(closed)
	s.WinRate, s.AvgWin, s.AvgLoss, s.ProfitLossRatio = winLossStats(closed)
	s.FactorContributions = factorContributions(closed)

	s.MonthlyReturns = periodReturns(snapshots, "2006-01")
	s.YearlyReturns = periodReturns(snapshots, "2006")

	return s
}

func annualizedStdDev(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	return stdDev(returns) * math.Sqrt(tradingDaysPerYear)
}

func annualizedDownsideStdDev(returns []float64) float64 {
	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) == 0 {
		return 0
	}
	return stdDev(downside) * math.Sqrt(tradingDaysPerYear)
}

func stdDev(values []float64) float64 {
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

// drawdowns walks the equity curve once, tracking the running peak and
// emitting a DrawdownPeriod each time the curve recovers to a new high
// after having fallen below it.
func drawdowns(snapshots []domain.DailySnapshot) (maxDD float64, periods []domain.DrawdownPeriod) {
	peak := snapshots[0].PortfolioValue
	peakDate := snapshots[0].Date
	inDrawdown := false
	troughValue := peak
	troughDate := peakDate

	for _, snap := range snapshots {
		if snap.PortfolioValue >= peak {
			if inDrawdown {
				periods = append(periods, domain.DrawdownPeriod{
					PeakDate:     peakDate,
					TroughDate:   troughDate,
					RecoveryDate: snap.Date,
					DrawdownPct:  troughValue/peak - 1,
					DurationDays: daysBetween(peakDate, snap.Date),
				})
				inDrawdown = false
			}
			peak = snap.PortfolioValue
			peakDate = snap.Date
			troughValue = peak
			troughDate = peakDate
			continue
		}

		inDrawdown = true
		if snap.PortfolioValue < troughValue {
			troughValue = snap.PortfolioValue
			troughDate = snap.Date
		}
		dd := snap.PortfolioValue/peak - 1
		if dd < maxDD {
			maxDD = dd
		}
	}

	if inDrawdown {
		periods = append(periods, domain.DrawdownPeriod{
			PeakDate:     peakDate,
			TroughDate:   troughDate,
			DrawdownPct:  troughValue/peak - 1,
			DurationDays: daysBetween(peakDate, troughDate),
		})
	}
	return maxDD, periods
}

func daysBetween(a, b string) int {
	ta, err1 := time.Parse("2006-01-02", a)
	tb, err2 := time.Parse("2006-01-02", b)
	if err1 != nil || err2 != nil {
		return 0
	}
	return int(tb.Sub(ta).Hours() / 24)
}

// closedTrades pairs each SELL with the realised return_pct of the round
// trip it closed (net_proceeds/entry_cost - 1) and the factor snapshot taken
// when the position was opened, tracking a running average cost per code
// from the trade ledger alone.
func closedTrades(trades []domain.TradeRecord) []closedTrade {
	avgCost := map[string]float64{}
	qtyHeld := map[string]int64{}
	var out []closedTrade

	for _, t := range trades {
		switch t.Side {
		case "BUY":
			prevQty := qtyHeld[t.Code]
			prevCost := avgCost[t.Code] * float64(prevQty)
			newQty := prevQty + t.Quantity
			if newQty > 0 {
				avgCost[t.Code] = (prevCost + t.Price*float64(t.Quantity)) / float64(newQty)
			}
			qtyHeld[t.Code] = newQty
		case "SELL":
			netProceeds := t.Price*float64(t.Quantity) - t.Commission - t.Tax - t.Slippage
			cost := avgCost[t.Code] * float64(t.Quantity)
			returnPct := 0.0
			if cost > 0 {
				returnPct = netProceeds/cost - 1
			}
			out = append(out, closedTrade{returnPct: returnPct, factors: t.EntryFactorSnapshot})
			qtyHeld[t.Code] -= t.Quantity
		}
	}
	return out
}

// winLossStats reports win_rate as a percentage and avg_win/avg_loss as
// fractional return_pct, per the statistics contract.
func winLossStats(closed []closedTrade) (winRate, avgWin, avgLoss, profitLossRatio float64) {
	if len(closed) == 0 {
		return 0, 0, 0, 0
	}
	var wins, losses []float64
	for _, c := range closed {
		if c.returnPct > 0 {
			wins = append(wins, c.returnPct)
		} else if c.returnPct < 0 {
			losses = append(losses, c.returnPct)
		}
	}
	winRate = float64(len(wins)) / float64(len(closed)) * 100
	if len(wins) > 0 {
		avgWin = sum(wins) / float64(len(wins))
	}
	if len(losses) > 0 {
		avgLoss = sum(losses) / float64(len(losses))
	}
	if avgLoss != 0 {
		profitLossRatio = avgWin / math.Abs(avgLoss)
	}
	return
}

// factorContributions aggregates closed-trade outcomes per factor present in
// any trade's entry factor snapshot, scored by win_rate × avg_return and
// ranked descending by that score (rank 1 = strongest contributor).
func factorContributions(closed []closedTrade) []FactorContribution {
	type acc struct {
		count, wins int
		returnSum   float64
	}
	byFactor := map[string]*acc{}
	for _, c := range closed {
		for factor := range c.factors {
			a := byFactor[factor]
			if a == nil {
				a = &acc{}
				byFactor[factor] = a
			}
			a.count++
			a.returnSum += c.returnPct
			if c.returnPct > 0 {
				a.wins++
			}
		}
	}
	if len(byFactor) == 0 {
		return []FactorContribution{}
	}

	out := make([]FactorContribution, 0, len(byFactor))
	for factor, a := range byFactor {
		winRate := float64(a.wins) / float64(a.count)
		avgReturn := a.returnSum / float64(a.count)
		out = append(out, FactorContribution{
			Factor:            factor,
			TradeCount:        a.count,
			WinCount:          a.wins,
			AvgReturn:         avgReturn,
			ContributionScore: winRate * avgReturn,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ContributionScore != out[j].ContributionScore {
			return out[i].ContributionScore > out[j].ContributionScore
		}
		return out[i].Factor < out[j].Factor
	})
	for i := range out {
		out[i].ImportanceRank = i + 1
	}
	return out
}

func sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

// periodReturns buckets the equity curve by the given time-format layout
// (month or year) and reports each bucket's return as the change in
// cumulative_return (percentage points vs initial_capital) from the
// bucket's first snapshot to its last, not a compounded bucket-local return.
func periodReturns(snapshots []domain.DailySnapshot, layout string) map[string]float64 {
	out := map[string]float64{}
	buckets := map[string][]domain.DailySnapshot{}
	var order []string
	for _, snap := range snapshots {
		t, err := time.Parse("2006-01-02", snap.Date)
		if err != nil {
			continue
		}
		key := t.Format(layout)
		if _, ok := buckets[key]; !ok {
			order = append(order, key)
		}
		buckets[key] = append(buckets[key], snap)
	}
	sort.Strings(order)
	for _, key := range order {
		bucket := buckets[key]
		if len(bucket) == 0 {
			continue
		}
		out[key] = bucket[len(bucket)-1].CumulativeReturn - bucket[0].CumulativeReturn
	}
	return out
}
