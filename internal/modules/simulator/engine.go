// Package simulator runs the deterministic day-by-day portfolio simulation:
// advancing hold days, forcing liquidation on detected corporate actions,
// checking exit rules in a fixed priority order, rebalancing the holding
// set on the configured cadence, sizing and filling entries, and emitting
// one valuation snapshot per trading day.
package simulator

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/kr-backtest/internal/domain"
	"github.com/aristath/kr-backtest/internal/modules/condition"
	"github.com/aristath/kr-backtest/internal/modules/progress"
	"github.com/aristath/kr-backtest/internal/modules/sizing"
)

// RunInput is everything one simulation needs, already aligned to a common
// trading calendar: Bars[code][i] and every FactorValues[factor][code][i]
// describe the same trading day as Dates[i].
type RunInput struct {
	Spec              domain.StrategySpec
	Dates             []string
	Bars              map[string][]domain.PriceBar
	FactorValues      map[string]map[string][]*float32        // factor -> code -> per-day series
	CorporateActions  map[string]domain.CorporateActionRecord // "code|date"
	PriorityAscending bool // ranking direction for Spec.PriorityFactor

	// SessionID and Progress are optional; when both are set the engine
	// publishes one progress snapshot per simulated day and each trade as
	// it executes. Either left zero disables streaming for this run (used
	// by WarmFactorCache and tests, which never simulate).
	SessionID string
	Progress  *progress.Manager
}

// Result is the simulation's output ledger.
type Result struct {
	Trades    []domain.TradeRecord
	Snapshots []domain.DailySnapshot
}

type Engine struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Engine {
	return &Engine{log: log.With().Str("component", "simulator").Logger()}
}

// heldPosition tracks a position plus the parsed condition state needed
// during the loop; domain.Position itself has no parser dependency.
type heldPosition struct {
	pos domain.Position
}

// Run executes the full per-day event loop described by the package
// comment and returns the trade ledger and daily snapshots.
func (e *Engine) Run(input RunInput) (*Result, error) {
	buyExpr := input.Spec.ResolveBuyExpression()
	buyNode, err := condition.ParseExpression(buyExpr)
	if err != nil {
		return nil, domain.WrapError(domain.ErrValidation, "invalid_buy_condition", "could not parse buy condition", err)
	}
	sellExpr := input.Spec.ResolveSellExpression()
	sellNode, err := condition.ParseExpression(sellExpr)
	if err != nil {
		return nil, domain.WrapError(domain.ErrValidation, "invalid_sell_condition", "could not parse sell condition", err)
	}

	codes := make([]string, 0, len(input.Bars))
	for code := range input.Bars {
		codes = append(codes, code)
	}

	cash := domain.NewMoney(input.Spec.InitialCash, domain.CurrencyKRW)
	initialCash := float64(input.Spec.InitialCash)
	positions := map[string]*heldPosition{}
	// blocked holds every stock forced-liquidated by a corporate action.
	// Once blocked, a stock is never re-bought for the remainder of the run.
	blocked := map[string]bool{}
	var trades []domain.TradeRecord
	var snapshots []domain.DailySnapshot
	var prevPortfolioValue float64
	var peakPortfolioValue float64
	buyCount, sellCount := 0, 0

	publishTrade := func(t domain.TradeRecord) {
		if t.Side == "BUY" {
			buyCount++
		} else {
			sellCount++
		}
		trades = append(trades, t)
		if input.Progress != nil && input.SessionID != "" {
			input.Progress.PublishTrade(input.SessionID, t)
		}
	}

	for dayIdx, date := range input.Dates {
		// 1. advance hold days
		for _, hp := range positions {
			hp.pos.HoldDays++
		}

		// 2. forced liquidation on detected corporate actions
		for code, hp := range positions {
			event, isEvent := input.CorporateActions[code+"|"+date]
			if !isEvent {
				continue
			}
			publishTrade(e.sell(hp, code, date, event.PrevClose, domain.PriceBasisPrevClose, input.Spec, domain.ReasonCorporateAction, &cash))
			delete(positions, code)
			blocked[code] = true
		}

		// 3. ordered per-position exit rules: min-hold gate first (blocks
		// every rule below it), then stop-loss, take-profit, max-hold
		// expiry, then the sell condition — first match wins.
		for code, hp := range positions {
			bars := input.Bars[code]
			if dayIdx >= len(bars) {
				continue
			}
			if hp.pos.HoldDays < input.Spec.MinHoldDays {
				continue
			}

			basisPrice := priceAt(bars, dayIdx, input.Spec.SellBasis, input.Spec.SellPriceOffset)
			currentReturn := 0.0
			if hp.pos.AvgCost > 0 {
				currentReturn = basisPrice/hp.pos.AvgCost - 1
			}

			var reason domain.SellReason
			switch {
			case input.Spec.StopLossPct != 0 && currentReturn <= input.Spec.StopLossPct:
				reason = domain.ReasonStopLoss
			case input.Spec.TakeProfitPct != 0 && currentReturn >= input.Spec.TakeProfitPct:
				reason = domain.ReasonTargetGain
			case input.Spec.MaxHoldDays != 0 && hp.pos.HoldDays >= input.Spec.MaxHoldDays:
				reason = domain.ReasonMaxHold
			default:
				values := factorValuesFor(input.FactorValues, code, dayIdx)
				results := condition.EvaluateAll(sellExpr.Conditions, values)
				if condition.Eval(sellNode, results) {
					reason = domain.ReasonCondition
				}
			}
			if reason != "" {
				publishTrade(e.sell(hp, code, date, basisPrice, input.Spec.SellBasis, input.Spec, reason, &cash))
				delete(positions, code)
			}
		}

		// 4. rebalance: on the configured cadence, rank the buy-condition
		// universe, exit anything that fell out of the top MaxPositions,
		// and fill the freed slots.
		if isRebalanceDay(input.Dates, dayIdx, input.Spec.RebalanceFreq) {
			ranked := e.rankCandidates(buyNode, buyExpr.Conditions, input, codes, dayIdx, blocked)
			top := make(map[string]bool, input.Spec.MaxPositions)
			for i, c := range ranked {
				if i >= input.Spec.MaxPositions {
					break
				}
				top[c.Code] = true
			}

			for code, hp := range positions {
				if top[code] {
					continue
				}
				if hp.pos.HoldDays < input.Spec.MinHoldDays {
					continue
				}
				bars := input.Bars[code]
				if dayIdx >= len(bars) {
					continue
				}
				price := priceAt(bars, dayIdx, input.Spec.SellBasis, input.Spec.SellPriceOffset)
				publishTrade(e.sell(hp, code, date, price, input.Spec.SellBasis, input.Spec, domain.ReasonRebalance, &cash))
				delete(positions, code)
			}

			freeSlots := input.Spec.MaxPositions - len(positions)
			if freeSlots > 0 {
				var entrants []sizing.Input
				for _, c := range ranked {
					if freeSlots == 0 {
						break
					}
					if positions[c.Code] != nil {
						continue
					}
					bars := input.Bars[c.Code]
					if dayIdx >= len(bars) {
						continue
					}
					entrants = append(entrants, sizing.Input{
						Code:            c.Code,
						MarketCap:       bars[dayIdx].MarketCap,
						TrailingReturns: trailingReturns(bars, dayIdx, 60),
					})
					freeSlots--
				}
				weights := sizing.Weights(input.Spec.SizingMode, entrants)
				for _, ent := range entrants {
					w := weights[ent.Code]
					if w <= 0 {
						continue
					}
					bars := input.Bars[ent.Code]
					if dayIdx >= len(bars) || bars[dayIdx].Open <= 0 {
						continue
					}
					open := bars[dayIdx].Open
					executionPrice := open * (1 + input.Spec.SlippageRate)
					budget := cash.Float() * w
					qty := int64(budget / executionPrice)
					if qty <= 0 {
						continue
					}
					snapshot := snapshotFactors(factorValuesFor(input.FactorValues, ent.Code, dayIdx))
					trade, ok := e.buy(ent.Code, date, qty, open, executionPrice, input.Spec, &cash)
					if !ok {
						continue
					}
					trade.EntryFactorSnapshot = snapshot
					publishTrade(trade)
					positions[ent.Code] = &heldPosition{pos: domain.Position{
						Code: ent.Code, Quantity: qty, AvgCost: trade.Price, EntryDate: date, HoldDays: 0,
						EntryFactorSnapshot: snapshot,
					}}
				}
			}
		}

		// 5. mark-to-market and snapshot
		positionValue := 0.0
		invested := 0.0
		snapshotPositions := make(map[string]int64, len(positions))
		for code, hp := range positions {
			bars := input.Bars[code]
			if dayIdx < len(bars) {
				positionValue += float64(hp.pos.Quantity) * bars[dayIdx].Close
			}
			invested += float64(hp.pos.Quantity) * hp.pos.AvgCost
			snapshotPositions[code] = hp.pos.Quantity
		}
		portfolioValue := cash.Float() + positionValue
		dailyReturn := 0.0
		if prevPortfolioValue > 0 {
			dailyReturn = portfolioValue/prevPortfolioValue - 1
		}
		cumulativeReturn := 0.0
		if initialCash > 0 {
			cumulativeReturn = (portfolioValue/initialCash - 1) * 100
		}
		if portfolioValue > peakPortfolioValue {
			peakPortfolioValue = portfolioValue
		}
		drawdown := 0.0
		if peakPortfolioValue > 0 {
			drawdown = (peakPortfolioValue - portfolioValue) / peakPortfolioValue * 100
		}

		snapshots = append(snapshots, domain.DailySnapshot{
			Date:             date,
			Cash:             cash.Float(),
			PositionValue:    positionValue,
			PortfolioValue:   portfolioValue,
			Positions:        snapshotPositions,
			Return:           dailyReturn,
			CumulativeReturn: cumulativeReturn,
			Drawdown:         drawdown,
			TradeCount:       len(trades),
			Invested:         invested,
		})
		prevPortfolioValue = portfolioValue

		if input.Progress != nil && input.SessionID != "" {
			percent := 70
			if len(input.Dates) > 1 {
				percent = 70 + int(float64(dayIdx+1)/float64(len(input.Dates))*25)
			}
			input.Progress.PublishProgress(input.SessionID, "simulating", percent, map[string]interface{}{
				"date":              date,
				"portfolio_value":   portfolioValue,
				"cash":              cash.Float(),
				"position_value":    positionValue,
				"daily_return":      dailyReturn,
				"cumulative_return": cumulativeReturn,
				"progress_percent":  percent,
				"current_mdd":       drawdown,
				"buy_count":         buyCount,
				"sell_count":        sellCount,
			})
		}

		// 6. final-day liquidation
		if dayIdx == len(input.Dates)-1 {
			for code, hp := range positions {
				bars := input.Bars[code]
				if dayIdx >= len(bars) {
					continue
				}
				publishTrade(e.sell(hp, code, date, bars[dayIdx].Close, domain.PriceBasisClose, input.Spec, domain.ReasonFinal, &cash))
			}
		}
	}

	return &Result{Trades: trades, Snapshots: snapshots}, nil
}

// sell executes a full-position exit and returns its trade record. Per the
// engine's accounting convention, realised P&L is net proceeds minus entry
// cost: realised_pnl = net_proceeds − entry_avg_price × quantity.
func (e *Engine) sell(hp *heldPosition, code, date string, price float64, basis domain.PriceBasis, spec domain.StrategySpec, reason domain.SellReason, cash *domain.Money) domain.TradeRecord {
	qty := hp.pos.Quantity
	grossProceeds := float64(qty) * price
	slippage := grossProceeds * spec.SlippageRate
	commission := grossProceeds * spec.CommissionRate
	tax := grossProceeds * spec.TaxRate
	netProceeds := grossProceeds - slippage - commission - tax
	*cash = cash.AddFloat(netProceeds)

	return domain.TradeRecord{
		Code: code, Side: "SELL", Date: date, Quantity: qty, Price: price, Basis: basis,
		Commission: commission, Tax: tax, Slippage: slippage, Reason: string(reason),
		EntryFactorSnapshot: hp.pos.EntryFactorSnapshot,
	}
}

// buy executes an entry at open*(1+slippage). amount = qty * executionPrice;
// commission is levied on amount and cash decreases by amount + commission.
// ok is false if commission would drive cash negative, in which case no
// trade is recorded and cash is untouched.
func (e *Engine) buy(code, date string, qty int64, open, executionPrice float64, spec domain.StrategySpec, cash *domain.Money) (domain.TradeRecord, bool) {
	amount := float64(qty) * executionPrice
	commission := amount * spec.CommissionRate
	totalCost := amount + commission
	if totalCost > cash.Float() {
		return domain.TradeRecord{}, false
	}
	*cash = cash.SubFloat(totalCost)
	slippage := float64(qty) * (executionPrice - open)

	return domain.TradeRecord{
		Code: code, Side: "BUY", Date: date, Quantity: qty, Price: executionPrice, Basis: domain.PriceBasisOpen,
		Commission: commission, Tax: 0, Slippage: slippage, Reason: string(domain.ReasonEntry),
	}, true
}

// rankCandidates evaluates the buy expression for every non-blocked stock
// with bars on this day and returns the matches ranked by the strategy's
// priority factor. A blocked stock (forced-liquidated by a corporate
// action) never re-enters, regardless of how its factors read now.
func (e *Engine) rankCandidates(buyNode *condition.Node, buyConditions []domain.Condition, input RunInput, codes []string, dayIdx int, blocked map[string]bool) []condition.Candidate {
	priorityFactor := strings.ToUpper(strings.TrimSpace(input.Spec.PriorityFactor))
	var candidates []condition.Candidate
	for _, code := range codes {
		if blocked[code] {
			continue
		}
		bars := input.Bars[code]
		if dayIdx >= len(bars) {
			continue
		}
		values := factorValuesFor(input.FactorValues, code, dayIdx)
		results := condition.EvaluateAll(buyConditions, values)
		if !condition.Eval(buyNode, results) {
			continue
		}
		candidates = append(candidates, condition.Candidate{
			Code:  code,
			Value: values[priorityFactor],
		})
	}
	return condition.Rank(candidates, input.PriorityAscending)
}

// priceAt resolves the fill price for a sell basis and applies the
// strategy's sell_price_offset — a fractional nudge (e.g. 0.005 for a limit
// sell 0.5% above basis) used by every basis-priced exit. Forced liquidation
// and final-day liquidation bypass it and use their explicit prices as-is.
func priceAt(bars []domain.PriceBar, idx int, basis domain.PriceBasis, offset float64) float64 {
	var p float64
	switch basis {
	case domain.PriceBasisOpen:
		p = bars[idx].Open
	case domain.PriceBasisPrevClose:
		if idx == 0 {
			p = bars[idx].Open
		} else {
			p = bars[idx-1].Close
		}
	default:
		p = bars[idx].Close
	}
	return p * (1 + offset)
}

// snapshotFactors copies the non-null entries of a per-day factor value map
// into a plain float64 map suitable for persisting on a trade record.
func snapshotFactors(values map[string]*float32) map[string]float64 {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]float64, len(values))
	for name, v := range values {
		if v != nil {
			out[name] = float64(*v)
		}
	}
	return out
}

func factorValuesFor(factorValues map[string]map[string][]*float32, code string, dayIdx int) map[string]*float32 {
	out := make(map[string]*float32, len(factorValues))
	for factor, byCode := range factorValues {
		series := byCode[code]
		if dayIdx < len(series) {
			out[factor] = series[dayIdx]
		}
	}
	return out
}

func trailingReturns(bars []domain.PriceBar, dayIdx, window int) []float64 {
	start := dayIdx - window
	if start < 0 {
		start = 0
	}
	var out []float64
	for i := start + 1; i <= dayIdx && i < len(bars); i++ {
		if bars[i-1].Close == 0 {
			continue
		}
		out = append(out, bars[i].Close/bars[i-1].Close-1)
	}
	return out
}

func isRebalanceDay(dates []string, idx int, freq domain.RebalanceFrequency) bool {
	if freq == domain.RebalanceDaily || idx == 0 {
		return true
	}
	cur, err1 := time.Parse("2006-01-02", dates[idx])
	prev, err2 := time.Parse("2006-01-02", dates[idx-1])
	if err1 != nil || err2 != nil {
		return true
	}
	switch freq {
	case domain.RebalanceWeekly:
		_, curWeek := cur.ISOWeek()
		_, prevWeek := prev.ISOWeek()
		return curWeek != prevWeek || cur.Year() != prev.Year()
	case domain.RebalanceMonthly:
		return cur.Month() != prev.Month() || cur.Year() != prev.Year()
	default:
		return true
	}
}
