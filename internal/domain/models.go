// Package domain provides the core types shared across the backtesting and
// paper-trading engine: instruments, prices, factor values, portfolio state,
// and the strategy specification that drives a run.
package domain

import (
	"strings"
	"time"
)

// Currency represents a currency code. The engine is KRW-first; other codes
// exist only so a BrokerClient implementation can report foreign cash sweeps.
type Currency string

const (
	CurrencyKRW Currency = "KRW"
	CurrencyUSD Currency = "USD"
)

// Money is a fixed-point monetary amount. Korean won has no minor unit, so
// Amount is the integral won value; this avoids float drift in the
// portfolio accounting identity cash + Σposition_value == portfolio_value.
type Money struct {
	Amount   int64    `json:"amount"`
	Currency Currency `json:"currency"`
}

// NewMoney creates a new Money value.
func NewMoney(amount int64, currency Currency) Money {
	return Money{Amount: amount, Currency: currency}
}

func (m Money) Add(other Money) Money {
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency}
}

func (m Money) Sub(other Money) Money {
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency}
}

// AddFloat rounds f to the nearest whole won and adds it.
func (m Money) AddFloat(f float64) Money {
	return Money{Amount: m.Amount + roundWon(f), Currency: m.Currency}
}

// SubFloat rounds f to the nearest whole won and subtracts it.
func (m Money) SubFloat(f float64) Money {
	return Money{Amount: m.Amount - roundWon(f), Currency: m.Currency}
}

// Float returns the amount as a float64 for use in valuation arithmetic
// that mixes cash with fractional position values.
func (m Money) Float() float64 {
	return float64(m.Amount)
}

func roundWon(f float64) int64 {
	if f >= 0 {
		return int64(f + 0.5)
	}
	return -int64(-f + 0.5)
}

// Market identifies a Korean exchange segment.
type Market string

const (
	MarketKOSPI  Market = "KOSPI"
	MarketKOSDAQ Market = "KOSDAQ"
)

// Stock is a tradable instrument in the universe.
type Stock struct {
	Code   string `json:"code"` // 6-digit short code, e.g. "005930"
	ISIN   string `json:"isin"`
	Name   string `json:"name"`
	Market Market `json:"market"`
	Sector string `json:"sector,omitempty"`
	// ListedDate and DelistedDate bound the instrument's trading life;
	// DelistedDate is zero if still listed.
	ListedDate   time.Time `json:"listed_date"`
	DelistedDate time.Time `json:"delisted_date,omitempty"`
}

// PriceBar is one day's OHLCV record for a stock, plus the adjustment factor
// applied for splits/dividends.
type PriceBar struct {
	Code          string  `json:"code"`
	Date          string  `json:"date"` // YYYY-MM-DD
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Close         float64 `json:"close"`
	Volume        int64   `json:"volume"`
	AdjustedClose float64 `json:"adjusted_close"`
	MarketCap     float64 `json:"market_cap,omitempty"`
	SharesOut     int64   `json:"shares_outstanding,omitempty"`
}

// FundamentalRecord is a point-in-time fundamental disclosure. AvailableDate
// is the date the value became knowable (filing date), which is the date the
// Factor Engine must join against to avoid look-ahead bias — never the
// PeriodEnd date the figure describes.
type FundamentalRecord struct {
	Code          string    `json:"code"`
	PeriodEnd     string    `json:"period_end"`     // YYYY-MM-DD, the reporting period this value describes
	AvailableDate string    `json:"available_date"` // YYYY-MM-DD, first date this value may be used
	Metric        string    `json:"metric"`         // e.g. "net_income", "equity", "revenue"
	Value         float64   `json:"value"`
	FetchedAt     time.Time `json:"fetched_at,omitempty"`
}

// FactorValue is the computed value of a single named factor for one stock
// on one trading date. A nil Value represents "insufficient data" and
// propagates as null through conditions and rankings rather than as zero.
type FactorValue struct {
	Code   string
	Date   string
	Factor string
	Value  *float32
}

// PositionSizingMode selects how entry quantities are computed.
type PositionSizingMode string

const (
	SizingEqualWeight PositionSizingMode = "EQUAL_WEIGHT"
	SizingMarketCap   PositionSizingMode = "MARKET_CAP"
	SizingRiskParity  PositionSizingMode = "RISK_PARITY"
)

// PriorityOrder controls ranking direction for a strategy's PriorityFactor.
type PriorityOrder string

const (
	PriorityAscending  PriorityOrder = "asc"
	PriorityDescending PriorityOrder = "desc"
)

// PriceBasis selects which price a simulated fill uses.
type PriceBasis string

const (
	PriceBasisOpen      PriceBasis = "OPEN"
	PriceBasisPrevClose PriceBasis = "PREV_CLOSE"
	PriceBasisClose     PriceBasis = "CLOSE"
)

// priceBasisAliases maps every loosely-cased or Korean-literal spelling
// observed for a sell/stop price basis to its canonical enum value. The
// source system accepted "current", "CURRENT", "open", "전일 종가"
// (prev-close), "종가" (close) interchangeably across call paths; this is
// the single normalisation point for all of them.
var priceBasisAliases = map[string]PriceBasis{
	"OPEN":       PriceBasisOpen,
	"CURRENT":    PriceBasisClose,
	"CLOSE":      PriceBasisClose,
	"종가":         PriceBasisClose,
	"PREV_CLOSE": PriceBasisPrevClose,
	"전일":         PriceBasisPrevClose,
	"전일종가":       PriceBasisPrevClose,
	"전일 종가":      PriceBasisPrevClose,
}

// CanonicalizePriceBasis maps a raw request string (any case, with or
// without internal spaces, including the source system's Korean literals)
// to the canonical PriceBasis enum. Empty input canonicalises to
// PriceBasisClose, the source system's default. Unrecognized input returns
// ok=false so the caller can reject it as a VALIDATION error.
func CanonicalizePriceBasis(raw string) (PriceBasis, bool) {
	trimmed := strings.ToUpper(strings.TrimSpace(raw))
	if trimmed == "" {
		return PriceBasisClose, true
	}
	if b, ok := priceBasisAliases[trimmed]; ok {
		return b, true
	}
	if b, ok := priceBasisAliases[raw]; ok {
		return b, true
	}
	return "", false
}

// Position is a simulator's live holding of a single stock on a given day.
type Position struct {
	Code        string    `json:"code"`
	Quantity    int64     `json:"quantity"`
	AvgCost     float64   `json:"avg_cost"`
	EntryDate   string    `json:"entry_date"`
	HoldDays    int       `json:"hold_days"`
	LastUpdated time.Time `json:"last_updated,omitempty"`
	// EntryFactorSnapshot is the set of non-null factor values computed for
	// this stock on the day it was bought, carried forward so the closing
	// trade can attribute its realised return back to those factors.
	EntryFactorSnapshot map[string]float64 `json:"-"`
}

// SellReason enumerates the literal sell-reason values the simulator and
// live execution job emit on a SELL trade.
type SellReason string

const (
	ReasonEntry            SellReason = "ENTRY"
	ReasonTargetGain       SellReason = "TARGET_GAIN"
	ReasonStopLoss         SellReason = "STOP_LOSS"
	ReasonMaxHold          SellReason = "MAX_HOLD"
	ReasonCondition        SellReason = "CONDITION"
	ReasonRebalance        SellReason = "REBALANCE"
	ReasonCorporateAction  SellReason = "CORPORATE_ACTION"
	ReasonFinal            SellReason = "FINAL"
)

// TradeRecord is one executed buy or sell in the simulator's ledger.
type TradeRecord struct {
	Code       string     `json:"code"`
	Side       string     `json:"side"` // "BUY" or "SELL"
	Date       string     `json:"date"`
	Quantity   int64      `json:"quantity"`
	Price      float64    `json:"price"`
	Basis      PriceBasis `json:"basis"`
	Commission float64    `json:"commission"`
	Tax        float64    `json:"tax"`
	Slippage   float64    `json:"slippage"`
	Reason     string     `json:"reason"` // one of SellReason's values, or "ENTRY" for a BUY
	// EntryFactorSnapshot is the buy-time factor snapshot for this position,
	// present on both the opening BUY and the closing SELL so the statistics
	// aggregator can attribute a closed trade's realised return to the
	// factors that were true when it was opened.
	EntryFactorSnapshot map[string]float64 `json:"entry_factor_snapshot,omitempty"`
}

// DailySnapshot is the end-of-day state of a backtest: valuation and
// composition, used to build the statistics aggregator's time series.
type DailySnapshot struct {
	Date             string           `json:"date"`
	Cash             float64          `json:"cash"`
	PositionValue    float64          `json:"position_value"`
	PortfolioValue   float64          `json:"portfolio_value"`
	Positions        map[string]int64 `json:"positions"` // code -> quantity held at close
	Return           float64          `json:"return"`    // daily return vs prior snapshot
	CumulativeReturn float64          `json:"cumulative_return"` // % vs initial_capital
	Drawdown         float64          `json:"drawdown"`          // % below running peak, always >= 0
	TradeCount       int              `json:"trade_count"`       // cumulative trades executed through this day
	Invested         float64          `json:"invested"`          // cost basis of open positions
}

// DrawdownPeriod describes one peak-to-trough-to-recovery drawdown episode.
type DrawdownPeriod struct {
	PeakDate      string  `json:"peak_date"`
	TroughDate    string  `json:"trough_date"`
	RecoveryDate  string  `json:"recovery_date,omitempty"` // empty if not yet recovered by end of run
	DrawdownPct   float64 `json:"drawdown_pct"`
	DurationDays  int     `json:"duration_days"`
}

// CorporateActionType classifies a detected event by the direction of its
// price discontinuity.
type CorporateActionType string

const (
	CorpActionBonusSplit   CorporateActionType = "bonus_split"
	CorpActionConsolidation CorporateActionType = "consolidation"
)

// CorporateActionRecord marks a detected corporate-action-like event: a
// single-day return at or beyond the configured threshold, treated as a forced
// liquidation trigger rather than a tradeable signal.
type CorporateActionRecord struct {
	Code       string              `json:"code"`
	Date       string              `json:"date"`
	PrevClose  float64             `json:"prev_close"`
	Close      float64             `json:"close"`
	ReturnPct  float64             `json:"return_pct"`
	ActionType CorporateActionType `json:"action_type"`
}

// ConditionOperator enumerates the comparison operators a sub-condition may
// use against its factor value.
type ConditionOperator string

const (
	OpLT      ConditionOperator = "<"
	OpLTE     ConditionOperator = "<="
	OpGT      ConditionOperator = ">"
	OpGTE     ConditionOperator = ">="
	OpEQ      ConditionOperator = "=="
	OpNEQ     ConditionOperator = "!="
	OpBetween ConditionOperator = "BETWEEN"
	OpIn      ConditionOperator = "IN"
	OpNotIn   ConditionOperator = "NOT_IN"
)

// Condition is one atomic, independently evaluable sub-condition: a named
// factor compared against a literal value or (for BETWEEN/IN/NOT_IN) a
// literal list. ID is the identifier a ConditionExpression's boolean
// expression string uses to combine this sub-condition with the others in
// the same array — evaluation happens in two stages, mirroring the source
// system's condition evaluator: every sub-condition is evaluated
// independently into a boolean keyed by ID, then the expression string
// combines those booleans via AND/OR/NOT/parens.
type Condition struct {
	ID        string            `json:"id"`
	Factor    string            `json:"factor"`
	Operator  ConditionOperator `json:"operator"`
	Value     float64           `json:"value,omitempty"`
	ValueList []float64         `json:"value_list,omitempty"`
}

// ConditionExpression pairs a boolean expression string (referencing each
// Condition's ID via AND/OR/NOT/parens) with the conditions it combines. An
// empty Expression means "AND every condition", the canonical form of a
// bare buy_conditions[]/sell_conditions[] request with no explicit
// buy_expression/sell_expression wrapper.
type ConditionExpression struct {
	Expression string      `json:"expression"`
	Conditions []Condition `json:"conditions"`
}

// RebalanceFrequency controls how often the simulator re-evaluates the full
// universe for rebalance exits/entries, independent of per-position exit
// rules that are checked every day.
type RebalanceFrequency string

const (
	RebalanceDaily   RebalanceFrequency = "DAILY"
	RebalanceWeekly  RebalanceFrequency = "WEEKLY"
	RebalanceMonthly RebalanceFrequency = "MONTHLY"
)

// StrategySpec is the user-supplied description of a backtest run: the
// universe, the entry/exit boolean expressions, and execution parameters.
// Every field here is part of the canonical form hashed by modules/hash.
type StrategySpec struct {
	Name   string `json:"name"`
	Market Market `json:"market,omitempty"` // empty = both
	// BuyConditions/SellConditions are the bare {id,factor,operator,value}
	// list shape of a request. BuyExpression/SellExpression are the
	// alternative {expression, conditions[]} shape; when present they take
	// precedence over the bare lists. Use ResolveBuyExpression /
	// ResolveSellExpression rather than reading these directly.
	BuyConditions  []Condition           `json:"buy_conditions,omitempty"`
	BuyExpression  *ConditionExpression  `json:"buy_expression,omitempty"`
	SellConditions []Condition           `json:"sell_conditions,omitempty"`
	SellExpression *ConditionExpression  `json:"sell_expression,omitempty"`
	PriorityFactor string                `json:"priority_factor"`
	PriorityOrder  PriorityOrder         `json:"priority_order"` // asc = smaller value first, desc = larger first
	MaxPositions   int                   `json:"max_positions"`
	MinHoldDays    int                   `json:"min_hold_days"`
	// StopLossPct and TakeProfitPct are fractional return thresholds
	// (e.g. -0.10 for a 10% stop) that force an exit independent of
	// SellConditions; 0 disables the rule. MaxHoldDays force-exits a
	// position after that many trading days regardless of return; 0
	// disables the rule.
	StopLossPct   float64            `json:"stop_loss_pct,omitempty"`
	TakeProfitPct float64            `json:"take_profit_pct,omitempty"`
	MaxHoldDays   int                `json:"max_hold_days,omitempty"`
	SizingMode    PositionSizingMode `json:"sizing_mode"`
	RebalanceFreq RebalanceFrequency `json:"rebalance_frequency"`
	// SellBasis controls which price a sell/stop/take-profit fill uses.
	// Buys have no equivalent field: the engine always fills entries at
	// that day's open scaled by slippage. SellPriceOffset is an additional
	// fractional adjustment applied on top of that basis price (e.g. 0.005
	// to fill stop-losses half a percent below the basis).
	SellBasis       PriceBasis `json:"sell_basis"`
	SellPriceOffset float64    `json:"sell_price_offset,omitempty"`
	CommissionRate  float64    `json:"commission_rate"`
	TaxRate         float64    `json:"tax_rate"`
	SlippageRate    float64    `json:"slippage_rate"`
	InitialCash     int64      `json:"initial_cash"`
	StartDate       string     `json:"start_date"`
	EndDate         string     `json:"end_date"`
	// TargetThemes/TargetStocks/TargetUniverses narrow the tradable universe
	// before factor computation: TargetThemes filters by Stock.Sector,
	// TargetStocks restricts to an explicit code list, and TargetUniverses
	// restricts to the named market-cap tiers (e.g. "KOSPI_MEGA") from
	// modules/universe. Empty means unrestricted.
	TargetThemes    []string `json:"target_themes,omitempty"`
	TargetStocks    []string `json:"target_stocks,omitempty"`
	TargetUniverses []string `json:"target_universes,omitempty"`
}

// ResolveBuyExpression returns the canonical ConditionExpression a buy
// request describes, preferring the explicit buy_expression object over the
// bare buy_conditions list when both are present.
func (s StrategySpec) ResolveBuyExpression() ConditionExpression {
	if s.BuyExpression != nil {
		return *s.BuyExpression
	}
	return ConditionExpression{Conditions: s.BuyConditions}
}

// ResolveSellExpression is ResolveBuyExpression's sell-side counterpart.
func (s StrategySpec) ResolveSellExpression() ConditionExpression {
	if s.SellExpression != nil {
		return *s.SellExpression
	}
	return ConditionExpression{Conditions: s.SellConditions}
}
