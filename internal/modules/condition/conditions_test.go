package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/kr-backtest/internal/domain"
)

func ptr32(v float32) *float32 { return &v }

func TestEvaluateConditionSimpleComparison(t *testing.T) {
	cond := domain.Condition{ID: "a", Factor: "PER", Operator: domain.OpLT, Value: 10}
	assert.True(t, EvaluateCondition(cond, map[string]*float32{"PER": ptr32(8)}))
	assert.False(t, EvaluateCondition(cond, map[string]*float32{"PER": ptr32(12)}))
}

func TestEvaluateConditionNullFactorIsFalseNotPanic(t *testing.T) {
	cond := domain.Condition{ID: "a", Factor: "PER", Operator: domain.OpLT, Value: 10}
	assert.False(t, EvaluateCondition(cond, map[string]*float32{"PER": nil}))
	assert.False(t, EvaluateCondition(cond, map[string]*float32{}))
}

func TestEvaluateConditionBetween(t *testing.T) {
	cond := domain.Condition{ID: "a", Factor: "PER", Operator: domain.OpBetween, ValueList: []float64{5, 15}}
	assert.True(t, EvaluateCondition(cond, map[string]*float32{"PER": ptr32(5)}))
	assert.True(t, EvaluateCondition(cond, map[string]*float32{"PER": ptr32(15)}))
	assert.False(t, EvaluateCondition(cond, map[string]*float32{"PER": ptr32(16)}))
}

func TestEvaluateConditionInAndNotIn(t *testing.T) {
	in := domain.Condition{ID: "a", Factor: "PIOTROSKI_F_SCORE", Operator: domain.OpIn, ValueList: []float64{7, 8, 9}}
	assert.True(t, EvaluateCondition(in, map[string]*float32{"PIOTROSKI_F_SCORE": ptr32(8)}))
	assert.False(t, EvaluateCondition(in, map[string]*float32{"PIOTROSKI_F_SCORE": ptr32(5)}))

	notIn := domain.Condition{ID: "a", Factor: "PIOTROSKI_F_SCORE", Operator: domain.OpNotIn, ValueList: []float64{0, 1}}
	assert.True(t, EvaluateCondition(notIn, map[string]*float32{"PIOTROSKI_F_SCORE": ptr32(8)}))
	assert.False(t, EvaluateCondition(notIn, map[string]*float32{"PIOTROSKI_F_SCORE": ptr32(1)}))
}

func TestEvaluateAllKeysByUppercaseID(t *testing.T) {
	conds := []domain.Condition{
		{ID: "a", Factor: "PER", Operator: domain.OpLT, Value: 10},
		{ID: "b", Factor: "ROE", Operator: domain.OpGT, Value: 5},
	}
	results := EvaluateAll(conds, map[string]*float32{"PER": ptr32(8), "ROE": ptr32(2)})
	assert.True(t, results["A"])
	assert.False(t, results["B"])
}

func TestMatchesDefaultsToAndOfAllConditionsWhenExpressionEmpty(t *testing.T) {
	expr := domain.ConditionExpression{
		Conditions: []domain.Condition{
			{ID: "a", Factor: "PER", Operator: domain.OpLT, Value: 10},
			{ID: "b", Factor: "ROE", Operator: domain.OpGT, Value: 5},
		},
	}
	ok, err := Matches(expr, map[string]*float32{"PER": ptr32(8), "ROE": ptr32(10)})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Matches(expr, map[string]*float32{"PER": ptr32(8), "ROE": ptr32(2)})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatchesUsesExplicitExpression(t *testing.T) {
	expr := domain.ConditionExpression{
		Expression: "a OR (b AND NOT c)",
		Conditions: []domain.Condition{
			{ID: "a", Factor: "PER", Operator: domain.OpLT, Value: 10},
			{ID: "b", Factor: "ROE", Operator: domain.OpGT, Value: 5},
			{ID: "c", Factor: "PBR", Operator: domain.OpGT, Value: 3},
		},
	}
	values := map[string]*float32{"PER": ptr32(20), "ROE": ptr32(10), "PBR": ptr32(1)}
	ok, err := Matches(expr, values)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatchesReturnsErrorOnEmptyExpressionAndConditions(t *testing.T) {
	_, err := Matches(domain.ConditionExpression{}, map[string]*float32{})
	assert.Error(t, err)
}
