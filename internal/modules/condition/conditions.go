package condition

import (
	"fmt"
	"strings"

	"github.com/aristath/kr-backtest/internal/domain"
)

// EvaluateCondition evaluates one atomic sub-condition against a stock's
// factor values on one day. A null or missing factor value evaluates to
// false rather than panicking, so a condition can only ever fire when the
// factor it touches is actually known for that stock on that day.
func EvaluateCondition(cond domain.Condition, values map[string]*float32) bool {
	lhs, ok := values[strings.ToUpper(cond.Factor)]
	if !ok || lhs == nil {
		return false
	}
	v := float64(*lhs)
	switch cond.Operator {
	case domain.OpBetween:
		if len(cond.ValueList) != 2 {
			return false
		}
		return v >= cond.ValueList[0] && v <= cond.ValueList[1]
	case domain.OpIn:
		return containsValue(cond.ValueList, v)
	case domain.OpNotIn:
		return !containsValue(cond.ValueList, v)
	default:
		return compare(v, string(cond.Operator), cond.Value)
	}
}

// EvaluateAll evaluates every sub-condition independently, keyed by its
// (uppercased) ID, matching the expression parser's identifier case.
func EvaluateAll(conditions []domain.Condition, values map[string]*float32) map[string]bool {
	out := make(map[string]bool, len(conditions))
	for _, c := range conditions {
		out[strings.ToUpper(c.ID)] = EvaluateCondition(c, values)
	}
	return out
}

// Matches evaluates a ConditionExpression against one stock's factor values
// on one day: first every condition independently, then the boolean
// expression combining their results. An empty Expression means "AND every
// condition", built from the condition IDs in order.
func Matches(expr domain.ConditionExpression, values map[string]*float32) (bool, error) {
	node, err := ParseExpression(expr)
	if err != nil {
		return false, err
	}
	results := EvaluateAll(expr.Conditions, values)
	return Eval(node, results), nil
}

// ParseExpression parses a ConditionExpression's combinator string once,
// for reuse across many days/stocks without re-lexing on every call. An
// empty Expression defaults to ANDing every condition's ID in order.
func ParseExpression(expr domain.ConditionExpression) (*Node, error) {
	text := expr.Expression
	if strings.TrimSpace(text) == "" {
		ids := make([]string, 0, len(expr.Conditions))
		for _, c := range expr.Conditions {
			ids = append(ids, c.ID)
		}
		text = strings.Join(ids, " AND ")
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("condition expression has no conditions and no expression")
	}
	return Parse(text)
}

func containsValue(list []float64, v float64) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func compare(lhs float64, op string, rhs float64) bool {
	switch op {
	case "<":
		return lhs < rhs
	case "<=":
		return lhs <= rhs
	case ">":
		return lhs > rhs
	case ">=":
		return lhs >= rhs
	case "==":
		return lhs == rhs
	case "!=":
		return lhs != rhs
	default:
		return false
	}
}
