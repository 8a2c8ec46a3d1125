package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/kr-backtest/internal/domain"
)

func baseSpec() domain.StrategySpec {
	return domain.StrategySpec{
		Market: domain.MarketKOSPI,
		BuyConditions: []domain.Condition{
			{ID: "a", Factor: "PER", Operator: domain.OpLT, Value: 10},
			{ID: "b", Factor: "ROE", Operator: domain.OpGT, Value: 5},
		},
		SellConditions: []domain.Condition{
			{ID: "a", Factor: "RSI_14", Operator: domain.OpGT, Value: 70},
		},
		PriorityFactor:  "per",
		PriorityOrder:   domain.PriorityAscending,
		MaxPositions:    10,
		MinHoldDays:     3,
		StopLossPct:     -0.1,
		TakeProfitPct:   0.2,
		MaxHoldDays:     60,
		SizingMode:      domain.SizingEqualWeight,
		RebalanceFreq:   domain.RebalanceMonthly,
		SellBasis:       domain.PriceBasisClose,
		SellPriceOffset: 0.005,
		CommissionRate:  0.00015,
		TaxRate:         0.0023,
		SlippageRate:    0.001,
		InitialCash:     100000000,
		StartDate:       "2020-01-01",
		EndDate:         "2023-12-31",
		TargetThemes:    []string{"Technology", "Materials"},
	}
}

func TestGenerateStrategyHashIsDeterministic(t *testing.T) {
	a := GenerateStrategyHash(baseSpec())
	b := GenerateStrategyHash(baseSpec())
	assert.Equal(t, a, b)
	assert.Len(t, a, 8)
}

func TestGenerateStrategyHashIgnoresConditionOrderAndListOrder(t *testing.T) {
	s1 := baseSpec()
	s2 := baseSpec()
	s2.BuyConditions = []domain.Condition{s2.BuyConditions[1], s2.BuyConditions[0]}
	s2.TargetThemes = []string{"Materials", "Technology"}
	s2.PriorityFactor = "PER"

	assert.Equal(t, GenerateStrategyHash(s1), GenerateStrategyHash(s2))
}

func TestGenerateStrategyHashChangesWithPriorityOrder(t *testing.T) {
	s1 := baseSpec()
	s2 := baseSpec()
	s2.PriorityOrder = domain.PriorityDescending

	assert.NotEqual(t, GenerateStrategyHash(s1), GenerateStrategyHash(s2))
}

func TestGenerateStrategyHashChangesWithRiskParameters(t *testing.T) {
	s1 := baseSpec()
	s2 := baseSpec()
	s2.StopLossPct = -0.2

	assert.NotEqual(t, GenerateStrategyHash(s1), GenerateStrategyHash(s2))
}

func TestGenerateStrategyHashChangesWithTargetUniverse(t *testing.T) {
	s1 := baseSpec()
	s2 := baseSpec()
	s2.TargetUniverses = []string{"KOSPI_MEGA"}

	assert.NotEqual(t, GenerateStrategyHash(s1), GenerateStrategyHash(s2))
}
