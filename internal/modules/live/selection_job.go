package live

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/kr-backtest/internal/domain"
	"github.com/aristath/kr-backtest/internal/modules/condition"
	"github.com/aristath/kr-backtest/internal/modules/dependency"
	"github.com/aristath/kr-backtest/internal/modules/factors"
	"github.com/aristath/kr-backtest/internal/modules/hash"
)

// lookbackDays extends the price window back from today far enough to seed
// the slowest trailing factor (MOMENTUM_12M, VOLATILITY_90D) plus margin.
const lookbackDays = 400

// SelectionJob is the 07:00 job: it advances hold_days on live positions,
// runs the Factor Engine and Condition Evaluator against today's date for
// every active strategy, and persists a rebalance preview for the 09:00
// execution job to consume without recomputation.
type SelectionJob struct {
	repo        *Repository
	priceStore  domain.PriceStore
	factorBackend string
	log         zerolog.Logger
	now         func() time.Time
}

func NewSelectionJob(repo *Repository, priceStore domain.PriceStore, factorBackend string, log zerolog.Logger) *SelectionJob {
	return &SelectionJob{
		repo:          repo,
		priceStore:    priceStore,
		factorBackend: factorBackend,
		log:           log.With().Str("component", "selection_job").Logger(),
		now:           time.Now,
	}
}

func (j *SelectionJob) Name() string { return "live_selection" }

func (j *SelectionJob) Run() error {
	ctx := context.Background()
	today := j.now()
	if !isBusinessDay(today) {
		j.log.Debug().Msg("skipping selection job, not a business day")
		return nil
	}
	todayStr := today.Format("2006-01-02")

	strategies, err := j.repo.ActiveStrategies(ctx)
	if err != nil {
		return err
	}

	for _, spec := range strategies {
		strategyHash := hash.GenerateStrategyHash(spec)
		if err := j.runOne(ctx, strategyHash, spec, todayStr); err != nil {
			j.log.Error().Err(err).Str("strategy_hash", strategyHash).Msg("selection job failed for strategy, continuing with next")
		}
	}
	return nil
}

func (j *SelectionJob) runOne(ctx context.Context, strategyHash string, spec domain.StrategySpec, today string) error {
	mask, unresolved, err := dependency.Analyse(spec)
	if err != nil {
		return err
	}
	if len(unresolved) > 0 {
		j.log.Warn().Strs("unresolved", unresolved).Str("strategy_hash", strategyHash).
			Msg("computing unresolved factor references defensively")
	}

	universe, err := j.priceStore.LoadUniverse(ctx, spec.Market, today)
	if err != nil {
		return err
	}
	codes := make([]string, len(universe))
	for i, s := range universe {
		codes[i] = s.Code
	}

	start := today
	if t, perr := time.Parse("2006-01-02", today); perr == nil {
		start = t.AddDate(0, 0, -lookbackDays).Format("2006-01-02")
	}

	bars, err := j.priceStore.LoadPrices(ctx, codes, start, today)
	if err != nil {
		return err
	}
	fundamentals, err := j.priceStore.LoadFundamentals(ctx, codes, today)
	if err != nil {
		return err
	}

	positions, err := j.repo.Positions(ctx, strategyHash)
	if err != nil {
		return err
	}
	if err := j.advanceHoldDays(ctx, strategyHash, positions, today); err != nil {
		return err
	}

	backend := factors.NewBackend(j.factorBackend)
	buyExpr := spec.ResolveBuyExpression()
	buyNode, err := condition.ParseExpression(buyExpr)
	if err != nil {
		return err
	}
	sellExpr := spec.ResolveSellExpression()
	sellNode, err := condition.ParseExpression(sellExpr)
	if err != nil {
		return err
	}
	priorityFactor := strings.ToUpper(strings.TrimSpace(spec.PriorityFactor))

	var candidates []condition.Candidate
	var sellCodes []string
	for code, series := range seriesByCode(codes, bars, fundamentals) {
		values, err := backend.Compute(series, mask)
		if err != nil {
			j.log.Warn().Err(err).Str("code", code).Msg("factor computation failed, excluding from preview")
			continue
		}
		lastIdx := len(series.Dates) - 1
		if lastIdx < 0 {
			continue
		}
		todayValues := lastRow(values, lastIdx)

		_, held := positions[code]
		if !held && condition.Eval(buyNode, condition.EvaluateAll(buyExpr.Conditions, todayValues)) {
			candidates = append(candidates, condition.Candidate{Code: code, Value: todayValues[priorityFactor]})
		}
		if held && condition.Eval(sellNode, condition.EvaluateAll(sellExpr.Conditions, todayValues)) {
			sellCodes = append(sellCodes, code)
		}
	}

	ranked := condition.Rank(candidates, spec.PriorityOrder == domain.PriorityAscending)
	rankedCodes := make([]string, len(ranked))
	for i, c := range ranked {
		rankedCodes[i] = c.Code
	}

	return j.repo.SavePreview(ctx, Preview{
		StrategyHash: strategyHash,
		AsOf:         today,
		Candidates:   rankedCodes,
		SellCodes:    sellCodes,
	})
}

func (j *SelectionJob) advanceHoldDays(ctx context.Context, strategyHash string, positions map[string]domain.Position, today string) error {
	for code, pos := range positions {
		days := 1
		if !pos.LastUpdated.IsZero() {
			d, err := businessDaysBetween(pos.LastUpdated.Format("2006-01-02"), today)
			if err == nil {
				days = d
			}
		}
		pos.HoldDays += days
		pos.LastUpdated = j.now()
		if err := j.repo.UpsertPosition(ctx, strategyHash, pos); err != nil {
			return err
		}
		positions[code] = pos
	}
	return nil
}

func seriesByCode(codes []string, bars map[string][]domain.PriceBar, fundamentals map[string][]domain.FundamentalRecord) map[string]*factors.Series {
	out := make(map[string]*factors.Series, len(codes))
	for _, code := range codes {
		out[code] = factors.NewSeries(code, bars[code], fundamentals[code], nil)
	}
	return out
}

func lastRow(values map[string][]*float32, idx int) map[string]*float32 {
	out := make(map[string]*float32, len(values))
	for name, series := range values {
		if idx < len(series) {
			out[name] = series[idx]
		}
	}
	return out
}
