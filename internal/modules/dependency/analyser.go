// Package dependency extracts the set of factor names a strategy's
// conditions and priority factor actually reference, so the Factor Engine
// only computes what's needed for a given run (the "compute mask").
package dependency

import (
	"sort"
	"strings"

	"github.com/aristath/kr-backtest/internal/domain"
	"github.com/aristath/kr-backtest/internal/modules/factors"
)

// Analyse extracts every factor name referenced across a strategy's buy
// conditions, sell conditions, and priority factor. Every referenced
// factor is added to the compute mask regardless of whether it matches the
// Factor Engine's known vocabulary: unrecognized names are computed
// defensively (the engine just won't have a compute function for them and
// they'll evaluate to null) rather than being dropped or rejected outright.
// unresolved lists those unrecognized names purely for caller-side
// logging/diagnostics; it never causes an error.
func Analyse(spec domain.StrategySpec) (mask map[string]bool, unresolved []string, err error) {
	names := map[string]bool{}
	collect(spec.ResolveBuyExpression(), names)
	collect(spec.ResolveSellExpression(), names)
	if p := strings.ToUpper(strings.TrimSpace(spec.PriorityFactor)); p != "" {
		names[p] = true
	}

	mask = make(map[string]bool, len(names))
	for name := range names {
		mask[name] = true
		if !factors.IsKnownFactor(name) {
			unresolved = append(unresolved, name)
		}
	}
	sort.Strings(unresolved)
	return mask, unresolved, nil
}

func collect(expr domain.ConditionExpression, into map[string]bool) {
	for _, c := range expr.Conditions {
		if f := strings.ToUpper(strings.TrimSpace(c.Factor)); f != "" {
			into[f] = true
		}
	}
}
