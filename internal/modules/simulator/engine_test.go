package simulator

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/kr-backtest/internal/domain"
)

func f32(v float32) *float32 { return &v }

func tradingDates(n int) []string {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = base.AddDate(0, 0, i).Format("2006-01-02")
	}
	return out
}

func barsFor(dates []string, closes []float64) []domain.PriceBar {
	bars := make([]domain.PriceBar, len(dates))
	for i, d := range dates {
		bars[i] = domain.PriceBar{Code: "A", Date: d, Open: closes[i], High: closes[i], Low: closes[i], Close: closes[i], MarketCap: closes[i] * 1e6}
	}
	return bars
}

// buyAlways and sellNever are the conditions every test below wires in: a
// single always-true sub-condition keyed "a" so the default AND-of-all-ids
// expression always matches, and a sub-condition no test's SIGNAL series
// can ever satisfy.
var buyAlways = []domain.Condition{{ID: "a", Factor: "SIGNAL", Operator: domain.OpGT, Value: 0}}
var sellNever = []domain.Condition{{ID: "a", Factor: "SIGNAL", Operator: domain.OpLT, Value: -999}}

func TestEngineEntersOnBuyConditionAndExitsOnTakeProfit(t *testing.T) {
	dates := tradingDates(5)
	closes := []float64{100, 105, 110, 130, 130} // +30% on day index 3 triggers take-profit
	input := RunInput{
		Spec: domain.StrategySpec{
			BuyConditions:  buyAlways,
			SellConditions: sellNever,
			PriorityFactor: "SIGNAL",
			MaxPositions:   1,
			TakeProfitPct:  0.2,
			RebalanceFreq:  domain.RebalanceDaily,
			SizingMode:     domain.SizingEqualWeight,
			SellBasis:      domain.PriceBasisClose,
			InitialCash:    1000000,
		},
		Dates: dates,
		Bars:  map[string][]domain.PriceBar{"A": barsFor(dates, closes)},
		FactorValues: map[string]map[string][]*float32{
			"SIGNAL": {"A": {f32(1), f32(1), f32(1), f32(-1), f32(-1)}},
		},
		PriorityAscending: false,
	}

	engine := New(zerolog.Nop())
	result, err := engine.Run(input)
	require.NoError(t, err)

	var buys, sells int
	for _, tr := range result.Trades {
		if tr.Side == "BUY" {
			buys++
		} else {
			sells++
			assert.Equal(t, string(domain.ReasonTargetGain), tr.Reason)
		}
	}
	assert.Equal(t, 1, buys)
	assert.Equal(t, 1, sells)
	assert.Len(t, result.Snapshots, 5)
}

func TestEngineStopLossExitsPosition(t *testing.T) {
	dates := tradingDates(4)
	closes := []float64{100, 100, 80, 80} // -20% triggers stop-loss
	input := RunInput{
		Spec: domain.StrategySpec{
			BuyConditions:  buyAlways,
			SellConditions: sellNever,
			PriorityFactor: "SIGNAL",
			MaxPositions:   1,
			StopLossPct:    -0.1,
			RebalanceFreq:  domain.RebalanceDaily,
			SizingMode:     domain.SizingEqualWeight,
			SellBasis:      domain.PriceBasisClose,
			InitialCash:    1000000,
		},
		Dates: dates,
		Bars:  map[string][]domain.PriceBar{"A": barsFor(dates, closes)},
		FactorValues: map[string]map[string][]*float32{
			"SIGNAL": {"A": {f32(1), f32(1), f32(1), f32(1)}},
		},
	}

	engine := New(zerolog.Nop())
	result, err := engine.Run(input)
	require.NoError(t, err)

	found := false
	for _, tr := range result.Trades {
		if tr.Side == "SELL" {
			found = true
			assert.Equal(t, string(domain.ReasonStopLoss), tr.Reason)
		}
	}
	assert.True(t, found)
}

func TestEngineMinHoldDaysBlocksEarlyExit(t *testing.T) {
	dates := tradingDates(3)
	closes := []float64{100, 50, 50} // would stop-loss on day 2 but min hold blocks it
	input := RunInput{
		Spec: domain.StrategySpec{
			BuyConditions:  buyAlways,
			SellConditions: sellNever,
			PriorityFactor: "SIGNAL",
			MaxPositions:   1,
			MinHoldDays:    5,
			StopLossPct:    -0.1,
			RebalanceFreq:  domain.RebalanceDaily,
			SizingMode:     domain.SizingEqualWeight,
			SellBasis:      domain.PriceBasisClose,
			InitialCash:    1000000,
		},
		Dates: dates,
		Bars:  map[string][]domain.PriceBar{"A": barsFor(dates, closes)},
		FactorValues: map[string]map[string][]*float32{
			"SIGNAL": {"A": {f32(1), f32(1), f32(1)}},
		},
	}

	engine := New(zerolog.Nop())
	result, err := engine.Run(input)
	require.NoError(t, err)
	for _, tr := range result.Trades {
		assert.NotEqual(t, string(domain.ReasonStopLoss), tr.Reason)
	}
}

func TestEngineFinalDayLiquidatesOpenPositions(t *testing.T) {
	dates := tradingDates(3)
	closes := []float64{100, 101, 102}
	input := RunInput{
		Spec: domain.StrategySpec{
			BuyConditions:  buyAlways,
			SellConditions: sellNever,
			PriorityFactor: "SIGNAL",
			MaxPositions:   1,
			RebalanceFreq:  domain.RebalanceDaily,
			SizingMode:     domain.SizingEqualWeight,
			SellBasis:      domain.PriceBasisClose,
			InitialCash:    1000000,
		},
		Dates: dates,
		Bars:  map[string][]domain.PriceBar{"A": barsFor(dates, closes)},
		FactorValues: map[string]map[string][]*float32{
			"SIGNAL": {"A": {f32(1), f32(1), f32(1)}},
		},
	}

	engine := New(zerolog.Nop())
	result, err := engine.Run(input)
	require.NoError(t, err)

	last := result.Trades[len(result.Trades)-1]
	assert.Equal(t, "SELL", last.Side)
	assert.Equal(t, string(domain.ReasonFinal), last.Reason)
}

func TestEngineForcedLiquidationOnCorporateAction(t *testing.T) {
	dates := tradingDates(3)
	closes := []float64{100, 101, 20}
	input := RunInput{
		Spec: domain.StrategySpec{
			BuyConditions:  buyAlways,
			SellConditions: sellNever,
			PriorityFactor: "SIGNAL",
			MaxPositions:   1,
			RebalanceFreq:  domain.RebalanceDaily,
			SizingMode:     domain.SizingEqualWeight,
			SellBasis:      domain.PriceBasisClose,
			InitialCash:    1000000,
		},
		Dates: dates,
		Bars:  map[string][]domain.PriceBar{"A": barsFor(dates, closes)},
		FactorValues: map[string]map[string][]*float32{
			"SIGNAL": {"A": {f32(1), f32(1), f32(1)}},
		},
		CorporateActions: map[string]domain.CorporateActionRecord{
			"A|" + dates[2]: {Code: "A", Date: dates[2], PrevClose: 101, Close: 20, ReturnPct: -0.8},
		},
	}

	engine := New(zerolog.Nop())
	result, err := engine.Run(input)
	require.NoError(t, err)

	found := false
	for _, tr := range result.Trades {
		if tr.Reason == string(domain.ReasonCorporateAction) {
			found = true
			assert.Equal(t, 101.0, tr.Price) // priced at PrevClose, not the discontinuous close
		}
	}
	assert.True(t, found)
}

// TestEngineBlockedStockNeverReenters extends the forced-liquidation case
// across more trading days: once a corporate action forces the stock out,
// later days where the buy condition is true again must not re-enter it.
func TestEngineBlockedStockNeverReenters(t *testing.T) {
	dates := tradingDates(6)
	closes := []float64{100, 101, 20, 22, 25, 30} // buy signal stays true the whole way
	input := RunInput{
		Spec: domain.StrategySpec{
			BuyConditions:  buyAlways,
			SellConditions: sellNever,
			PriorityFactor: "SIGNAL",
			MaxPositions:   1,
			RebalanceFreq:  domain.RebalanceDaily,
			SizingMode:     domain.SizingEqualWeight,
			SellBasis:      domain.PriceBasisClose,
			InitialCash:    1000000,
		},
		Dates: dates,
		Bars:  map[string][]domain.PriceBar{"A": barsFor(dates, closes)},
		FactorValues: map[string]map[string][]*float32{
			"SIGNAL": {"A": {f32(1), f32(1), f32(1), f32(1), f32(1), f32(1)}},
		},
		CorporateActions: map[string]domain.CorporateActionRecord{
			"A|" + dates[2]: {Code: "A", Date: dates[2], PrevClose: 101, Close: 20, ReturnPct: -0.8},
		},
	}

	engine := New(zerolog.Nop())
	result, err := engine.Run(input)
	require.NoError(t, err)

	sawForcedLiquidation := false
	for _, tr := range result.Trades {
		if tr.Reason == string(domain.ReasonCorporateAction) {
			sawForcedLiquidation = true
			continue
		}
		if sawForcedLiquidation {
			assert.NotEqual(t, "BUY", tr.Side, "stock must never be re-bought after forced liquidation")
		}
	}
	assert.True(t, sawForcedLiquidation)
}

func TestEngineRejectsInvalidCondition(t *testing.T) {
	input := RunInput{
		Spec: domain.StrategySpec{
			BuyExpression:  &domain.ConditionExpression{Expression: "a AND", Conditions: buyAlways},
			SellConditions: sellNever,
		},
	}
	engine := New(zerolog.Nop())
	_, err := engine.Run(input)
	assert.Error(t, err)
}
