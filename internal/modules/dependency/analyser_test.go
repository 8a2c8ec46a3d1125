package dependency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/kr-backtest/internal/domain"
)

func TestAnalyseCollectsKnownFactors(t *testing.T) {
	spec := domain.StrategySpec{
		BuyConditions: []domain.Condition{
			{ID: "a", Factor: "PER", Operator: domain.OpLT, Value: 10},
			{ID: "b", Factor: "ROE", Operator: domain.OpGT, Value: 5},
		},
		SellConditions: []domain.Condition{
			{ID: "a", Factor: "RSI_14", Operator: domain.OpGT, Value: 70},
		},
		PriorityFactor: "PER",
	}
	mask, unresolved, err := Analyse(spec)
	require.NoError(t, err)
	assert.Empty(t, unresolved)
	assert.True(t, mask["PER"])
	assert.True(t, mask["ROE"])
	assert.True(t, mask["RSI_14"])
}

func TestAnalyseIncludesUnknownFactorDefensively(t *testing.T) {
	spec := domain.StrategySpec{
		BuyConditions: []domain.Condition{
			{ID: "a", Factor: "NOT_A_REAL_FACTOR", Operator: domain.OpLT, Value: 10},
		},
	}
	mask, unresolved, err := Analyse(spec)
	require.NoError(t, err)
	assert.Contains(t, unresolved, "NOT_A_REAL_FACTOR")
	assert.True(t, mask["NOT_A_REAL_FACTOR"])
}

func TestAnalyseUsesExplicitExpressionWrapperConditions(t *testing.T) {
	spec := domain.StrategySpec{
		BuyExpression: &domain.ConditionExpression{
			Expression: "NOT a AND b OR c",
			Conditions: []domain.Condition{
				{ID: "a", Factor: "PER", Operator: domain.OpLT, Value: 10},
				{ID: "b", Factor: "ROE", Operator: domain.OpGT, Value: 5},
				{ID: "c", Factor: "PBR", Operator: domain.OpLT, Value: 1},
			},
		},
	}
	mask, unresolved, err := Analyse(spec)
	require.NoError(t, err)
	assert.Empty(t, unresolved)
	assert.Len(t, mask, 3)
}

func TestAnalyseEmptyConditionsProduceEmptyMask(t *testing.T) {
	mask, unresolved, err := Analyse(domain.StrategySpec{})
	require.NoError(t, err)
	assert.Empty(t, unresolved)
	assert.Empty(t, mask)
}
