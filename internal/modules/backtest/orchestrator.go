package backtest

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/kr-backtest/internal/domain"
	"github.com/aristath/kr-backtest/internal/modules/cache"
	"github.com/aristath/kr-backtest/internal/modules/corpaction"
	"github.com/aristath/kr-backtest/internal/modules/dependency"
	"github.com/aristath/kr-backtest/internal/modules/factors"
	"github.com/aristath/kr-backtest/internal/modules/hash"
	"github.com/aristath/kr-backtest/internal/modules/progress"
	"github.com/aristath/kr-backtest/internal/modules/simulator"
	"github.com/aristath/kr-backtest/internal/modules/stats"
	"github.com/aristath/kr-backtest/internal/modules/universe"
)

// Response is the full payload the API returns for a backtest session,
// matching §6's Response shape: statistics, the full trade list, daily
// snapshots, and parallel chart_data arrays for rendering.
type Response struct {
	SessionID      string                 `json:"session_id"`
	Status         string                 `json:"status"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
	Statistics     stats.Summary          `json:"statistics"`
	Trades         []domain.TradeRecord   `json:"trades"`
	DailySnapshots []domain.DailySnapshot `json:"daily_performance"`
	ChartDates     []string               `json:"chart_dates"`
	ChartValues    []float64              `json:"chart_values"`
}

// cachedFactorTable is the shape persisted by the Cache Layer for one
// strategy-hash/target-themes pair: every requested factor's full per-code,
// per-day series, aligned to Dates.
type cachedFactorTable struct {
	Dates   []string                          `msgpack:"dates"`
	Factors map[string]map[string][]*float32 `msgpack:"factors"`
}

// Engine runs the full run_backtest pipeline described in spec §2's control
// flow: validate, derive the strategy hash, load prices/fundamentals in
// parallel, detect corporate actions, consult the cache (or compute via the
// Factor Engine with a compute mask), run the Condition Evaluator and
// Portfolio Simulator, aggregate statistics, and persist.
type Engine struct {
	priceStore    domain.PriceStore
	cacheLayer    domain.Cache
	repo          *Repository
	progress      *progress.Manager
	factorBackend string
	cacheTTLDays  int
	archiver      *Archiver // optional; nil disables result archival
	log           zerolog.Logger
}

func NewEngine(priceStore domain.PriceStore, cacheLayer domain.Cache, repo *Repository, prog *progress.Manager, factorBackend string, cacheTTLDays int, archiver *Archiver, log zerolog.Logger) *Engine {
	return &Engine{
		priceStore:    priceStore,
		cacheLayer:    cacheLayer,
		repo:          repo,
		progress:      prog,
		factorBackend: factorBackend,
		cacheTTLDays:  cacheTTLDays,
		archiver:      archiver,
		log:           log.With().Str("component", "backtest").Logger(),
	}
}

// Validate checks request shape invariants per §7's VALIDATION error kind,
// before any I/O is attempted.
func Validate(spec domain.StrategySpec) error {
	if spec.StartDate == "" || spec.EndDate == "" {
		return domain.NewError(domain.ErrValidation, "missing_date_range", "start_date and end_date are required")
	}
	start, err := time.Parse("2006-01-02", spec.StartDate)
	if err != nil {
		return domain.WrapError(domain.ErrValidation, "invalid_start_date", "start_date must be YYYY-MM-DD", err)
	}
	end, err := time.Parse("2006-01-02", spec.EndDate)
	if err != nil {
		return domain.WrapError(domain.ErrValidation, "invalid_end_date", "end_date must be YYYY-MM-DD", err)
	}
	if !start.Before(end) {
		return domain.NewError(domain.ErrValidation, "inverted_date_range", "start_date must be before end_date")
	}
	if spec.MaxPositions < 1 || spec.MaxPositions > 100 {
		return domain.NewError(domain.ErrValidation, "max_positions_out_of_bounds", "max_positions must be between 1 and 100")
	}
	if spec.InitialCash <= 0 {
		return domain.NewError(domain.ErrValidation, "invalid_initial_cash", "initial_cash must be positive")
	}
	if spec.CommissionRate < 0 || spec.CommissionRate > 0.01 {
		return domain.NewError(domain.ErrValidation, "invalid_commission_rate", "commission_rate must be between 0 and 0.01")
	}
	if spec.SlippageRate < 0 || spec.SlippageRate > 0.1 {
		return domain.NewError(domain.ErrValidation, "invalid_slippage", "slippage must be between 0 and 0.1")
	}
	if len(spec.ResolveBuyExpression().Conditions) == 0 {
		return domain.NewError(domain.ErrValidation, "missing_buy_condition", "buy_conditions (or buy_expression) is required")
	}
	return nil
}

// loaded bundles the three independent loads run concurrently in Run.
type loaded struct {
	universe     []domain.Stock
	bars         map[string][]domain.PriceBar
	fundamentals map[string][]domain.FundamentalRecord
}

// Run executes one backtest end to end, streaming preparation/progress/
// trade/completed events under sessionID via modules/progress, and
// persisting the session row, trade ledger, snapshots, and statistics. It
// never returns a partial result: on error the session is marked FAILED (or
// CANCELLED) and the terminal progress event carries the failure.
func (e *Engine) Run(ctx context.Context, sessionID string, spec domain.StrategySpec) (*Response, error) {
	if err := e.repo.SetStatus(ctx, sessionID, StatusRunning, ""); err != nil {
		return nil, err
	}

	resp, err := e.run(ctx, sessionID, spec)
	if err != nil {
		status := StatusFailed
		if ctx.Err() != nil {
			status = StatusCancelled
		}
		_ = e.repo.SetStatus(ctx, sessionID, status, err.Error())
		e.progress.PublishError(sessionID, err)
		return nil, err
	}

	if err := e.repo.SetStatus(ctx, sessionID, StatusCompleted, ""); err != nil {
		return nil, err
	}
	if err := e.repo.SaveResult(ctx, sessionID, resp.Trades, resp.DailySnapshots, resp.Statistics); err != nil {
		return nil, err
	}
	if e.archiver != nil {
		if err := e.archiver.Archive(ctx, sessionID, resp); err != nil {
			e.log.Warn().Err(err).Str("session_id", sessionID).Msg("result archival failed, continuing")
		}
	}
	e.progress.PublishCompleted(sessionID, resp)
	return resp, nil
}

func (e *Engine) run(ctx context.Context, sessionID string, spec domain.StrategySpec) (*Response, error) {
	sellBasis, ok := domain.CanonicalizePriceBasis(string(spec.SellBasis))
	if !ok {
		return nil, domain.NewError(domain.ErrValidation, "invalid_sell_basis", "unrecognized sell_basis: "+string(spec.SellBasis))
	}
	spec.SellBasis = sellBasis

	if err := Validate(spec); err != nil {
		return nil, err
	}

	strategyHash := hash.GenerateStrategyHash(spec)
	e.progress.PublishProgress(sessionID, "validating", 0, map[string]interface{}{"strategy_hash": strategyHash})

	mask, unresolved, err := dependency.Analyse(spec)
	if err != nil {
		return nil, err
	}
	if len(unresolved) > 0 {
		e.log.Warn().Strs("unresolved", unresolved).Msg("computing unresolved factor references defensively")
	}

	e.progress.PublishProgress(sessionID, "loading_data", 10, nil)
	data, err := e.loadParallel(ctx, spec)
	if err != nil {
		return nil, err
	}
	if len(data.universe) == 0 {
		return nil, domain.NewError(domain.ErrDataUnavailable, "empty_universe", "no stocks matched the requested universe")
	}

	e.progress.PublishProgress(sessionID, "detecting_corporate_actions", 35, nil)
	corporateActions, filteredBars := e.detectAndFilterCorporateActions(data.bars)

	e.progress.PublishProgress(sessionID, "computing_factors", 50, nil)
	factorTable, dates, err := e.computeFactors(ctx, spec, strategyHash, mask, filteredBars, data.fundamentals)
	if err != nil {
		return nil, err
	}

	windowDates := datesInRange(dates, spec.StartDate, spec.EndDate)
	if len(windowDates) == 0 {
		return nil, domain.NewError(domain.ErrDataUnavailable, "empty_trading_calendar", "no trading days fall within the requested window")
	}

	e.progress.PublishProgress(sessionID, "simulating", 70, nil)
	sim := simulator.New(e.log)
	result, err := sim.Run(simulator.RunInput{
		Spec:              spec,
		Dates:             windowDates,
		Bars:              alignedBars(filteredBars, dates, windowDates),
		FactorValues:      alignedFactors(factorTable, dates, windowDates),
		CorporateActions:  corporateActions,
		PriorityAscending: spec.PriorityOrder == domain.PriorityAscending,
		SessionID:         sessionID,
		Progress:          e.progress,
	})
	if err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, domain.WrapError(domain.ErrCancelled, "cancelled", "backtest cancelled", ctx.Err())
	}

	e.progress.PublishProgress(sessionID, "aggregating_statistics", 95, nil)
	summary := stats.Aggregate(result.Snapshots, result.Trades)

	resp := &Response{
		SessionID:      sessionID,
		Status:         string(StatusCompleted),
		Statistics:     summary,
		Trades:         result.Trades,
		DailySnapshots: result.Snapshots,
	}
	for _, snap := range result.Snapshots {
		resp.ChartDates = append(resp.ChartDates, snap.Date)
		resp.ChartValues = append(resp.ChartValues, snap.PortfolioValue)
	}
	return resp, nil
}

// WarmFactorCache runs the load/detect/compute stages of the pipeline for
// spec and leaves the result in the Cache Layer, without simulating or
// persisting anything. Used by cmd/cachewarmer to precompute factor tables
// for a fixed set of well-known strategies ahead of user requests.
func (e *Engine) WarmFactorCache(ctx context.Context, spec domain.StrategySpec) error {
	sellBasis, ok := domain.CanonicalizePriceBasis(string(spec.SellBasis))
	if !ok {
		return domain.NewError(domain.ErrValidation, "invalid_sell_basis", "unrecognized sell_basis: "+string(spec.SellBasis))
	}
	spec.SellBasis = sellBasis
	if err := Validate(spec); err != nil {
		return err
	}
	strategyHash := hash.GenerateStrategyHash(spec)
	mask, _, err := dependency.Analyse(spec)
	if err != nil {
		return err
	}
	data, err := e.loadParallel(ctx, spec)
	if err != nil {
		return err
	}
	_, filteredBars := e.detectAndFilterCorporateActions(data.bars)
	_, _, err = e.computeFactors(ctx, spec, strategyHash, mask, filteredBars, data.fundamentals)
	return err
}

// loadParallel resolves the universe first, then runs the price and
// fundamentals loads concurrently via errgroup, so wall-clock latency is the
// universe load plus the slower of the other two rather than all three summed.
func (e *Engine) loadParallel(ctx context.Context, spec domain.StrategySpec) (*loaded, error) {
	out := &loaded{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		stocks, err := e.priceStore.LoadUniverse(gctx, spec.Market, spec.EndDate)
		if err != nil {
			return err
		}
		out.universe = stocks
		return nil
	})

	// Prices and fundamentals depend on the universe's code list, but the
	// loaders themselves (and the adapter's internal per-code concurrency)
	// are what dominates wall-clock time, so the dependent fetch is kept
	// a cheap sequential step after the universe resolves rather than
	// stalling the whole group on it.
	if err := g.Wait(); err != nil {
		return nil, domain.WrapError(domain.ErrDataUnavailable, "universe_load_failed", "failed to resolve universe", err)
	}
	out.universe = filterByThemesAndStocks(out.universe, spec.TargetThemes, spec.TargetStocks)

	codes := make([]string, len(out.universe))
	for i, s := range out.universe {
		codes[i] = s.Code
	}

	g2, gctx2 := errgroup.WithContext(ctx)
	g2.Go(func() error {
		bars, err := e.priceStore.LoadPrices(gctx2, codes, spec.StartDate, spec.EndDate)
		if err != nil {
			return err
		}
		out.bars = bars
		return nil
	})
	g2.Go(func() error {
		fundamentals, err := e.priceStore.LoadFundamentals(gctx2, codes, spec.EndDate)
		if err != nil {
			return err
		}
		out.fundamentals = fundamentals
		return nil
	})
	if err := g2.Wait(); err != nil {
		return nil, err
	}

	if len(spec.TargetUniverses) > 0 {
		out.universe = filterByTargetUniverses(out.universe, spec.TargetUniverses, out.bars)
		keep := make(map[string]bool, len(out.universe))
		for _, s := range out.universe {
			keep[s.Code] = true
		}
		out.bars = filterBarsByCodes(out.bars, keep)
		out.fundamentals = filterFundamentalsByCodes(out.fundamentals, keep)
	}
	return out, nil
}

// filterByThemesAndStocks narrows a universe to stocks whose sector is in
// themes or whose code is explicitly listed in stocks. Either list left
// empty drops out of the match; both empty means no filtering at all.
func filterByThemesAndStocks(stocks []domain.Stock, themes, explicitCodes []string) []domain.Stock {
	if len(themes) == 0 && len(explicitCodes) == 0 {
		return stocks
	}
	themeSet := make(map[string]bool, len(themes))
	for _, t := range themes {
		themeSet[t] = true
	}
	codeSet := make(map[string]bool, len(explicitCodes))
	for _, c := range explicitCodes {
		codeSet[c] = true
	}
	var out []domain.Stock
	for _, s := range stocks {
		if themeSet[s.Sector] || codeSet[s.Code] {
			out = append(out, s)
		}
	}
	return out
}

// filterByTargetUniverses keeps only stocks whose most recent loaded market
// cap falls within one of the requested cap-tier ids.
func filterByTargetUniverses(stocks []domain.Stock, ids []string, bars map[string][]domain.PriceBar) []domain.Stock {
	var out []domain.Stock
	for _, s := range stocks {
		series := bars[s.Code]
		if len(series) == 0 {
			continue
		}
		marketCap := series[len(series)-1].MarketCap
		if universe.MatchesAny(ids, s.Market, marketCap) {
			out = append(out, s)
		}
	}
	return out
}

func filterBarsByCodes(bars map[string][]domain.PriceBar, keep map[string]bool) map[string][]domain.PriceBar {
	out := make(map[string][]domain.PriceBar, len(keep))
	for code, series := range bars {
		if keep[code] {
			out[code] = series
		}
	}
	return out
}

func filterFundamentalsByCodes(f map[string][]domain.FundamentalRecord, keep map[string]bool) map[string][]domain.FundamentalRecord {
	out := make(map[string][]domain.FundamentalRecord, len(keep))
	for code, recs := range f {
		if keep[code] {
			out[code] = recs
		}
	}
	return out
}

// detectAndFilterCorporateActions runs the Corporate-Action Detector per
// stock and, for each stock with an event, keeps the bars before the first
// detected event date plus the event-date bar itself and drops every bar
// after it. The event-date bar therefore still reaches factor computation
// and the simulator.
func (e *Engine) detectAndFilterCorporateActions(bars map[string][]domain.PriceBar) (map[string]domain.CorporateActionRecord, map[string][]domain.PriceBar) {
	detector := corpaction.New(corpaction.DefaultThreshold, e.log)
	events := map[string]domain.CorporateActionRecord{}
	filtered := make(map[string][]domain.PriceBar, len(bars))

	for code, series := range bars {
		detected := detector.Detect(series)
		if len(detected) == 0 {
			filtered[code] = series
			continue
		}
		eventDate := detected[0].Date
		for _, ev := range detected {
			events[ev.Code+"|"+ev.Date] = ev
		}
		var kept []domain.PriceBar
		for _, b := range series {
			if b.Date >= eventDate {
				break
			}
			kept = append(kept, b)
		}
		// Keep the event-date bar itself so the simulator can see the
		// forced-liquidation trigger land on that date, then nothing after.
		for _, b := range series {
			if b.Date == eventDate {
				kept = append(kept, b)
				break
			}
		}
		filtered[code] = kept
	}
	return events, filtered
}

// computeFactors consults the Cache Layer for a previously computed factor
// table under this strategy's hash; on a miss it builds each stock's
// factors.Series and runs the configured Backend with the Dependency
// Analyser's compute mask, then writes the result back to the cache.
func (e *Engine) computeFactors(ctx context.Context, spec domain.StrategySpec, strategyHash string, mask map[string]bool, bars map[string][]domain.PriceBar, fundamentals map[string][]domain.FundamentalRecord) (map[string]map[string][]*float32, []string, error) {
	key := cache.KeyForFactorTable(spec.TargetThemes, strategyHash)

	var cached cachedFactorTable
	if ok, _ := e.cacheLayer.Get(ctx, key, &cached); ok && len(cached.Dates) > 0 {
		e.log.Debug().Str("strategy_hash", strategyHash).Msg("factor table cache hit")
		return cached.Factors, cached.Dates, nil
	}

	backend := factors.NewBackend(e.factorBackend)
	dates := unionDates(bars)

	result := make(map[string]map[string][]*float32, len(mask))
	for factorName := range mask {
		result[factorName] = make(map[string][]*float32, len(bars))
	}

	for code, codeBars := range bars {
		series := factors.NewSeries(code, codeBars, fundamentals[code], nil)
		computed, err := backend.Compute(series, mask)
		if err != nil {
			return nil, nil, domain.WrapError(domain.ErrInternal, "factor_compute_failed", fmt.Sprintf("factor computation failed for %s", code), err)
		}
		perCode := alignSeriesToDates(series.Dates, computed, dates)
		for factorName, values := range perCode {
			result[factorName][code] = values
		}
	}

	if err := e.cacheLayer.Set(ctx, key, cachedFactorTable{Dates: dates, Factors: result}, e.cacheTTLDays*24*3600); err != nil {
		e.log.Warn().Err(err).Msg("failed to write factor table to cache")
	}
	return result, dates, nil
}

// unionDates returns the sorted set of every date present in any stock's
// bar history, forming the common trading calendar the simulator walks.
func unionDates(bars map[string][]domain.PriceBar) []string {
	set := map[string]bool{}
	for _, series := range bars {
		for _, b := range series {
			set[b.Date] = true
		}
	}
	out := make([]string, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// datesInRange filters a sorted date slice to [start, end] inclusive.
func datesInRange(dates []string, start, end string) []string {
	var out []string
	for _, d := range dates {
		if d >= start && d <= end {
			out = append(out, d)
		}
	}
	return out
}

// alignSeriesToDates reindexes a per-stock factor computation (indexed by
// the stock's own Dates) onto the common calendar, leaving null for any
// date the stock has no bar for (e.g. it listed later or delisted early).
func alignSeriesToDates(stockDates []string, computed map[string][]*float32, calendar []string) map[string][]*float32 {
	idx := make(map[string]int, len(stockDates))
	for i, d := range stockDates {
		idx[d] = i
	}
	out := make(map[string][]*float32, len(computed))
	for factorName, series := range computed {
		aligned := make([]*float32, len(calendar))
		for i, d := range calendar {
			if pos, ok := idx[d]; ok && pos < len(series) {
				aligned[i] = series[pos]
			}
		}
		out[factorName] = aligned
	}
	return out
}

// alignedBars reindexes each stock's bars from the full calendar onto just
// the simulated window, matching the simulator's expectation that
// Bars[code][i] and Dates[i] describe the same day.
func alignedBars(bars map[string][]domain.PriceBar, calendar, window []string) map[string][]domain.PriceBar {
	idx := make(map[string]int, len(calendar))
	for i, d := range calendar {
		idx[d] = i
	}
	byDate := make(map[string]map[string]domain.PriceBar, len(calendar))
	for code, series := range bars {
		for _, b := range series {
			m, ok := byDate[b.Date]
			if !ok {
				m = make(map[string]domain.PriceBar)
				byDate[b.Date] = m
			}
			m[code] = b
		}
	}

	out := make(map[string][]domain.PriceBar, len(bars))
	for code := range bars {
		series := make([]domain.PriceBar, 0, len(window))
		for _, d := range window {
			if b, ok := byDate[d][code]; ok {
				series = append(series, b)
			} else {
				series = append(series, domain.PriceBar{Code: code, Date: d})
			}
		}
		out[code] = series
	}
	return out
}

// alignedFactors narrows each factor's per-code series from the full
// calendar onto just the simulated window, index-for-index with window.
func alignedFactors(factorTable map[string]map[string][]*float32, calendar, window []string) map[string]map[string][]*float32 {
	idx := make(map[string]int, len(calendar))
	for i, d := range calendar {
		idx[d] = i
	}
	windowIdx := make([]int, len(window))
	for i, d := range window {
		windowIdx[i] = idx[d]
	}

	out := make(map[string]map[string][]*float32, len(factorTable))
	for factorName, byCode := range factorTable {
		out[factorName] = make(map[string][]*float32, len(byCode))
		for code, series := range byCode {
			narrowed := make([]*float32, len(window))
			for i, pos := range windowIdx {
				if pos < len(series) {
					narrowed[i] = series[pos]
				}
			}
			out[factorName][code] = narrowed
		}
	}
	return out
}
