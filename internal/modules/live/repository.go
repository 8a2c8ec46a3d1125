// Package live implements the Live Adapter: the scheduled selection and
// execution jobs that run the same Factor Engine and Condition Evaluator as
// a backtest, but against today's date and a real (or sandbox) broker,
// instead of historical data and a simulated fill engine.
package live

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/aristath/kr-backtest/internal/database"
	"github.com/aristath/kr-backtest/internal/domain"
)

// Repository persists the state the 07:00 and 09:00 jobs share: which
// strategies are active, their open positions, and the most recent
// rebalance preview, against the backtest database's live_* tables.
type Repository struct {
	db *database.DB
}

func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// ActiveStrategies returns every strategy currently flagged active.
func (r *Repository) ActiveStrategies(ctx context.Context) ([]domain.StrategySpec, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT strategy_spec FROM live_strategies WHERE active = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var specs []domain.StrategySpec
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var spec domain.StrategySpec
		if err := json.Unmarshal([]byte(raw), &spec); err != nil {
			return nil, domain.WrapError(domain.ErrInternal, "bad_strategy_spec", "stored strategy spec is not valid JSON", err)
		}
		specs = append(specs, spec)
	}
	return specs, rows.Err()
}

// Activate registers or updates a live strategy under its canonical hash.
func (r *Repository) Activate(ctx context.Context, strategyHash string, spec domain.StrategySpec) error {
	raw, err := json.Marshal(spec)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO live_strategies (strategy_hash, strategy_spec, active) VALUES (?, ?, 1)
		ON CONFLICT(strategy_hash) DO UPDATE SET strategy_spec = excluded.strategy_spec, active = 1`,
		strategyHash, string(raw))
	return err
}

// Deactivate flags a strategy inactive; existing positions and history are
// left untouched so it can be reactivated without losing state.
func (r *Repository) Deactivate(ctx context.Context, strategyHash string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE live_strategies SET active = 0 WHERE strategy_hash = ?`, strategyHash)
	return err
}

// Positions returns the open live positions for a strategy, keyed by code.
func (r *Repository) Positions(ctx context.Context, strategyHash string) (map[string]domain.Position, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT code, quantity, avg_cost, entry_date, hold_days, last_updated FROM live_positions WHERE strategy_hash = ?`,
		strategyHash)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]domain.Position)
	for rows.Next() {
		var p domain.Position
		var lastUpdated string
		if err := rows.Scan(&p.Code, &p.Quantity, &p.AvgCost, &p.EntryDate, &p.HoldDays, &lastUpdated); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339, lastUpdated); err == nil {
			p.LastUpdated = t
		}
		out[p.Code] = p
	}
	return out, rows.Err()
}

// UpsertPosition writes a live position's current state.
func (r *Repository) UpsertPosition(ctx context.Context, strategyHash string, p domain.Position) error {
	lastUpdated := p.LastUpdated
	if lastUpdated.IsZero() {
		lastUpdated = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO live_positions (strategy_hash, code, quantity, avg_cost, entry_date, hold_days, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(strategy_hash, code) DO UPDATE SET
			quantity = excluded.quantity, avg_cost = excluded.avg_cost,
			entry_date = excluded.entry_date, hold_days = excluded.hold_days,
			last_updated = excluded.last_updated`,
		strategyHash, p.Code, p.Quantity, p.AvgCost, p.EntryDate, p.HoldDays, lastUpdated.Format(time.RFC3339))
	return err
}

// RemovePosition deletes a fully-exited position.
func (r *Repository) RemovePosition(ctx context.Context, strategyHash, code string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM live_positions WHERE strategy_hash = ? AND code = ?`, strategyHash, code)
	return err
}

// Preview is the 07:00 job's output: the ranked buy candidates and the
// codes flagged for exit, for the 09:00 job to consume unchanged.
type Preview struct {
	StrategyHash string
	AsOf         string
	Candidates   []string
	SellCodes    []string
}

func (r *Repository) SavePreview(ctx context.Context, p Preview) error {
	candidates, err := json.Marshal(p.Candidates)
	if err != nil {
		return err
	}
	sellCodes, err := json.Marshal(p.SellCodes)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO live_previews (strategy_hash, as_of, candidates, sell_codes) VALUES (?, ?, ?, ?)
		ON CONFLICT(strategy_hash) DO UPDATE SET as_of = excluded.as_of, candidates = excluded.candidates, sell_codes = excluded.sell_codes`,
		p.StrategyHash, p.AsOf, string(candidates), string(sellCodes))
	return err
}

// LoadPreview returns the strategy's most recent preview, or ok=false if
// none has been published yet.
func (r *Repository) LoadPreview(ctx context.Context, strategyHash string) (Preview, bool, error) {
	var p Preview
	var candidates, sellCodes string
	p.StrategyHash = strategyHash
	err := r.db.QueryRowContext(ctx, `SELECT as_of, candidates, sell_codes FROM live_previews WHERE strategy_hash = ?`, strategyHash).
		Scan(&p.AsOf, &candidates, &sellCodes)
	if err == sql.ErrNoRows {
		return Preview{}, false, nil
	}
	if err != nil {
		return Preview{}, false, err
	}
	if err := json.Unmarshal([]byte(candidates), &p.Candidates); err != nil {
		return Preview{}, false, err
	}
	if err := json.Unmarshal([]byte(sellCodes), &p.SellCodes); err != nil {
		return Preview{}, false, err
	}
	return p, true, nil
}

// RecordDailyPerformance upserts one day's mark-to-market row for a
// strategy's live book.
func (r *Repository) RecordDailyPerformance(ctx context.Context, strategyHash, date string, cash, positionValue, portfolioValue, dailyReturn float64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO live_daily_performance (strategy_hash, date, cash, position_value, portfolio_value, daily_return)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(strategy_hash, date) DO UPDATE SET
			cash = excluded.cash, position_value = excluded.position_value,
			portfolio_value = excluded.portfolio_value, daily_return = excluded.daily_return`,
		strategyHash, date, cash, positionValue, portfolioValue, dailyReturn)
	return err
}

// RecordOrder logs a placed order for audit, independent of the broker's
// own trade history.
func (r *Repository) RecordOrder(ctx context.Context, id, code, side string, quantity int64, price float64, status, job string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO live_orders (id, code, side, quantity, limit_price, status, job) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, code, side, quantity, price, status, job)
	return err
}
