// Package hash builds the deterministic strategy hash used as a cache-key
// component throughout the engine, so that two requests describing the same
// strategy (field order and number formatting aside) hit the same cached
// factor tables and recommendation sets.
package hash

import (
	"crypto/md5"
	"fmt"
	"sort"
	"strings"

	"github.com/aristath/kr-backtest/internal/domain"
)

// GenerateStrategyHash canonicalises a StrategySpec into a sorted
// "key:value" string and returns the first 8 hex characters of its MD5
// digest. Numeric fields are rounded to a stable precision before joining
// so float formatting differences (1.0 vs 1, 0.30000000000000004) never
// change the hash.
func GenerateStrategyHash(spec domain.StrategySpec) string {
	fields := map[string]string{
		"market":            string(spec.Market),
		"buy_expression":    normalizeConditionExpression(spec.ResolveBuyExpression()),
		"sell_expression":   normalizeConditionExpression(spec.ResolveSellExpression()),
		"priority_factor":   strings.ToUpper(strings.TrimSpace(spec.PriorityFactor)),
		"priority_order":    string(spec.PriorityOrder),
		"max_positions":     fmt.Sprintf("%d", spec.MaxPositions),
		"min_hold_days":     fmt.Sprintf("%d", spec.MinHoldDays),
		"stop_loss_pct":     round6(spec.StopLossPct),
		"take_profit_pct":   round6(spec.TakeProfitPct),
		"max_hold_days":     fmt.Sprintf("%d", spec.MaxHoldDays),
		"sizing_mode":       string(spec.SizingMode),
		"rebalance_freq":    string(spec.RebalanceFreq),
		"sell_basis":        string(spec.SellBasis),
		"sell_price_offset": round6(spec.SellPriceOffset),
		"commission_rate":   round6(spec.CommissionRate),
		"tax_rate":          round6(spec.TaxRate),
		"slippage_rate":     round6(spec.SlippageRate),
		"initial_cash":      fmt.Sprintf("%d", spec.InitialCash),
		"start_date":        spec.StartDate,
		"end_date":          spec.EndDate,
		"target_themes":     normalizeStringList(spec.TargetThemes),
		"target_stocks":     normalizeStringList(spec.TargetStocks),
		"target_universes":  normalizeStringList(spec.TargetUniverses),
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%s", k, fields[k]))
	}
	canonical := strings.Join(parts, ",")

	sum := md5.Sum([]byte(canonical))
	full := fmt.Sprintf("%x", sum)
	return full[:8]
}

// normalizeConditionExpression canonicalises a ConditionExpression into a
// sorted, delimiter-stable string so that semantically identical
// expressions (conditions listed in a different order, incidental
// whitespace in the combinator string) hash identically.
func normalizeConditionExpression(expr domain.ConditionExpression) string {
	conds := append([]domain.Condition(nil), expr.Conditions...)
	sort.Slice(conds, func(i, j int) bool { return conds[i].ID < conds[j].ID })

	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		parts = append(parts, fmt.Sprintf("%s=%s:%s:%s:%s",
			strings.ToUpper(c.ID), strings.ToUpper(c.Factor), c.Operator, round6(c.Value), formatValueList(c.ValueList)))
	}

	exprFields := strings.Fields(strings.ToUpper(expr.Expression))
	return strings.Join(parts, "|") + ";" + strings.Join(exprFields, " ")
}

func formatValueList(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = round6(v)
	}
	return strings.Join(parts, ",")
}

// normalizeStringList sorts and joins a string list so that field order
// never changes the hash; an empty list normalises to the same string a
// nil list would.
func normalizeStringList(values []string) string {
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

func round6(v float64) string {
	return fmt.Sprintf("%.6f", v)
}
