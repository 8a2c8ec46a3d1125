package live

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/kr-backtest/internal/domain"
	"github.com/aristath/kr-backtest/internal/modules/hash"
)

// CredentialRefresher re-authenticates a broker client ahead of its
// credentials expiring, so the 09:00 execution job never starts placing
// orders against a session that might lapse mid-run.
type CredentialRefresher struct {
	refresh   func() (apiKey, apiSecret string, expiresAt time.Time)
	expiresAt time.Time
}

func NewCredentialRefresher(refresh func() (apiKey, apiSecret string, expiresAt time.Time)) *CredentialRefresher {
	return &CredentialRefresher{refresh: refresh}
}

// EnsureFresh refreshes the broker's credentials if they expire within the
// next 10 minutes.
func (c *CredentialRefresher) EnsureFresh(broker domain.BrokerClient, now time.Time) {
	if c.refresh == nil {
		return
	}
	if now.Add(10 * time.Minute).Before(c.expiresAt) {
		return
	}
	apiKey, apiSecret, expiresAt := c.refresh()
	broker.SetCredentials(apiKey, apiSecret)
	c.expiresAt = expiresAt
}

// ExecutionJob is the 09:00 job: it evaluates exit rules against current
// holdings using live quotes, places sell orders, then consumes the 07:00
// preview to place buy orders for freed slots.
type ExecutionJob struct {
	repo   *Repository
	broker domain.BrokerClient
	creds  *CredentialRefresher
	log    zerolog.Logger
	now    func() time.Time
}

func NewExecutionJob(repo *Repository, broker domain.BrokerClient, creds *CredentialRefresher, log zerolog.Logger) *ExecutionJob {
	return &ExecutionJob{
		repo:   repo,
		broker: broker,
		creds:  creds,
		log:    log.With().Str("component", "execution_job").Logger(),
		now:    time.Now,
	}
}

func (j *ExecutionJob) Name() string { return "live_execution" }

func (j *ExecutionJob) Run() error {
	ctx := context.Background()
	today := j.now()
	if !isBusinessDay(today) {
		j.log.Debug().Msg("skipping execution job, not a business day")
		return nil
	}
	todayStr := today.Format("2006-01-02")

	if j.creds != nil {
		j.creds.EnsureFresh(j.broker, today)
	}

	strategies, err := j.repo.ActiveStrategies(ctx)
	if err != nil {
		return err
	}

	for _, spec := range strategies {
		strategyHash := hash.GenerateStrategyHash(spec)
		if err := j.runOne(ctx, strategyHash, spec, todayStr); err != nil {
			j.log.Error().Err(err).Str("strategy_hash", strategyHash).Msg("execution job failed for strategy, continuing with next")
		}
	}
	return nil
}

func (j *ExecutionJob) runOne(ctx context.Context, strategyHash string, spec domain.StrategySpec, today string) error {
	preview, ok, err := j.repo.LoadPreview(ctx, strategyHash)
	if err != nil {
		return err
	}
	if !ok {
		j.log.Warn().Str("strategy_hash", strategyHash).Msg("no rebalance preview for today, skipping execution")
		return nil
	}
	if preview.AsOf != today {
		j.log.Warn().Str("strategy_hash", strategyHash).Str("preview_as_of", preview.AsOf).Msg("preview is stale, skipping execution")
		return nil
	}

	positions, err := j.repo.Positions(ctx, strategyHash)
	if err != nil {
		return err
	}
	sellSet := make(map[string]bool, len(preview.SellCodes))
	for _, c := range preview.SellCodes {
		sellSet[c] = true
	}

	for code, pos := range positions {
		quote, err := j.broker.GetQuote(code)
		if err != nil {
			j.log.Warn().Err(err).Str("code", code).Msg("no quote, skipping exit check")
			continue
		}
		reason := j.exitReason(spec, pos, quote.Price, sellSet[code])
		if reason == "" {
			continue
		}
		if err := j.sell(ctx, strategyHash, code, pos.Quantity, reason); err != nil {
			j.log.Error().Err(err).Str("code", code).Msg("sell order failed")
		}
	}

	remaining, err := j.repo.Positions(ctx, strategyHash)
	if err != nil {
		return err
	}
	slots := spec.MaxPositions - len(remaining)
	if slots <= 0 {
		return nil
	}

	cash, err := j.cashBalance()
	if err != nil {
		return err
	}

	placed := 0
	for _, code := range preview.Candidates {
		if placed >= slots {
			break
		}
		if _, held := remaining[code]; held {
			continue
		}
		quote, err := j.broker.GetQuote(code)
		if err != nil || quote.Price <= 0 {
			continue
		}
		budget := cash / float64(slots-placed)
		qty := int64(budget / quote.Price)
		if qty < 1 {
			continue
		}
		if err := j.buy(ctx, strategyHash, code, qty, quote.Price, today); err != nil {
			j.log.Error().Err(err).Str("code", code).Msg("buy order failed")
			continue
		}
		cash -= float64(qty) * quote.Price
		placed++
	}

	return j.recordPerformance(ctx, strategyHash, today)
}

// exitReason checks exit rules in the same priority order as the backtest
// simulator: stop-loss and take-profit are checked against current price,
// hold-day expiry against the tracked hold_days, and the sell-condition flag
// computed by the selection job last.
func (j *ExecutionJob) exitReason(spec domain.StrategySpec, pos domain.Position, currentPrice float64, conditionSell bool) string {
	if pos.AvgCost <= 0 {
		return ""
	}
	returnPct := currentPrice/pos.AvgCost - 1
	if spec.StopLossPct != 0 && returnPct <= spec.StopLossPct {
		return string(domain.ReasonStopLoss)
	}
	if spec.TakeProfitPct != 0 && returnPct >= spec.TakeProfitPct {
		return string(domain.ReasonTargetGain)
	}
	if spec.MaxHoldDays > 0 && pos.HoldDays >= spec.MaxHoldDays {
		return string(domain.ReasonMaxHold)
	}
	if conditionSell {
		return string(domain.ReasonCondition)
	}
	return ""
}

func (j *ExecutionJob) sell(ctx context.Context, strategyHash, code string, quantity int64, reason string) error {
	result, err := j.broker.PlaceOrder(code, "SELL", quantity, 0)
	if err != nil {
		return err
	}
	if err := j.repo.RecordOrder(ctx, uuid.NewString(), code, "SELL", quantity, result.Price, reason, "EXECUTION"); err != nil {
		return err
	}
	return j.repo.RemovePosition(ctx, strategyHash, code)
}

func (j *ExecutionJob) buy(ctx context.Context, strategyHash, code string, quantity int64, price float64, today string) error {
	result, err := j.broker.PlaceOrder(code, "BUY", quantity, 0)
	if err != nil {
		return err
	}
	if err := j.repo.RecordOrder(ctx, uuid.NewString(), code, "BUY", quantity, result.Price, string(domain.ReasonEntry), "EXECUTION"); err != nil {
		return err
	}
	return j.repo.UpsertPosition(ctx, strategyHash, domain.Position{
		Code:        code,
		Quantity:    quantity,
		AvgCost:     result.Price,
		EntryDate:   today,
		HoldDays:    0,
		LastUpdated: j.now(),
	})
}

func (j *ExecutionJob) cashBalance() (float64, error) {
	balances, err := j.broker.GetCashBalances()
	if err != nil {
		return 0, err
	}
	var total float64
	for _, b := range balances {
		if b.Currency == string(domain.CurrencyKRW) {
			total += b.Amount
		}
	}
	return total, nil
}

func (j *ExecutionJob) recordPerformance(ctx context.Context, strategyHash, today string) error {
	positions, err := j.repo.Positions(ctx, strategyHash)
	if err != nil {
		return err
	}
	cash, err := j.cashBalance()
	if err != nil {
		return err
	}
	var positionValue float64
	for code, pos := range positions {
		quote, err := j.broker.GetQuote(code)
		if err != nil {
			continue
		}
		positionValue += quote.Price * float64(pos.Quantity)
	}
	portfolioValue := cash + positionValue

	var dailyReturn float64
	return j.repo.RecordDailyPerformance(ctx, strategyHash, today, cash, positionValue, portfolioValue, dailyReturn)
}
