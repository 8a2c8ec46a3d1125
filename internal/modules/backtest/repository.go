// Package backtest implements the outer run_backtest orchestration: it wires
// together the Price Store Adapter, Corporate-Action Detector, Factor
// Engine, Dependency Analyser, Condition Evaluator, Portfolio Simulator, and
// Statistics Aggregator into the single control-flow pipeline the rest of
// the engine's components only implement a slice of, persisting sessions
// and their results to the backtest database and streaming progress through
// modules/progress.
package backtest

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/aristath/kr-backtest/internal/database"
	"github.com/aristath/kr-backtest/internal/domain"
	"github.com/aristath/kr-backtest/internal/modules/stats"
)

// SessionStatus mirrors the backtest_schema.sql sessions.status column.
type SessionStatus string

const (
	StatusPending   SessionStatus = "PENDING"
	StatusRunning   SessionStatus = "RUNNING"
	StatusCompleted SessionStatus = "COMPLETED"
	StatusFailed    SessionStatus = "FAILED"
	StatusCancelled SessionStatus = "CANCELLED"
)

// Repository persists backtest sessions, their trade ledgers, daily
// snapshots, and summary statistics against the backtest database.
type Repository struct {
	db *database.DB
}

func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// CreateSession inserts a new PENDING session row and returns its id.
func (r *Repository) CreateSession(ctx context.Context, strategyHash string, spec domain.StrategySpec) (string, error) {
	id := uuid.NewString()
	raw, err := json.Marshal(spec)
	if err != nil {
		return "", err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, strategy_hash, strategy_spec, status) VALUES (?, ?, ?, ?)`,
		id, strategyHash, string(raw), string(StatusPending))
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository) SetStatus(ctx context.Context, sessionID string, status SessionStatus, errMsg string) error {
	var completedAt interface{}
	if status == StatusCompleted || status == StatusFailed || status == StatusCancelled {
		completedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET status = ?, error_message = ?, completed_at = ? WHERE id = ?`,
		string(status), errMsg, completedAt, sessionID)
	return err
}

// SaveResult persists the full trade ledger, daily snapshots, and summary
// statistics for a completed run in a single transaction.
func (r *Repository) SaveResult(ctx context.Context, sessionID string, trades []domain.TradeRecord, snapshots []domain.DailySnapshot, summary stats.Summary) error {
	return database.WithTransaction(r.db.Conn(), func(tx *sql.Tx) error {
		tradeStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO session_trades (session_id, seq, code, side, date, quantity, price, basis, commission, tax, slippage, reason)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer tradeStmt.Close()
		for i, t := range trades {
			if _, err := tradeStmt.ExecContext(ctx, sessionID, i, t.Code, t.Side, t.Date, t.Quantity, t.Price, string(t.Basis), t.Commission, t.Tax, t.Slippage, t.Reason); err != nil {
				return err
			}
		}

		snapStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO session_snapshots (session_id, date, cash, position_value, portfolio_value, positions, daily_return)
			VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer snapStmt.Close()
		for _, snap := range snapshots {
			positions, err := json.Marshal(snap.Positions)
			if err != nil {
				return err
			}
			if _, err := snapStmt.ExecContext(ctx, sessionID, snap.Date, snap.Cash, snap.PositionValue, snap.PortfolioValue, string(positions), snap.Return); err != nil {
				return err
			}
		}

		statsJSON, err := json.Marshal(summary)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO session_stats (session_id, stats_json) VALUES (?, ?)
			ON CONFLICT(session_id) DO UPDATE SET stats_json = excluded.stats_json`,
			sessionID, string(statsJSON))
		return err
	})
}

// LoadResult reconstructs a completed session's full response from the
// database, for the GET /api/backtests/{id} endpoint.
func (r *Repository) LoadResult(ctx context.Context, sessionID string) (*Response, error) {
	var status, errMsg string
	err := r.db.QueryRowContext(ctx, `SELECT status, error_message FROM sessions WHERE id = ?`, sessionID).Scan(&status, &errMsg)
	if err == sql.ErrNoRows {
		return nil, domain.NewError(domain.ErrDataUnavailable, "session_not_found", "no such backtest session")
	}
	if err != nil {
		return nil, err
	}

	resp := &Response{SessionID: sessionID, Status: status, ErrorMessage: errMsg}
	if status != string(StatusCompleted) {
		return resp, nil
	}

	var statsJSON string
	if err := r.db.QueryRowContext(ctx, `SELECT stats_json FROM session_stats WHERE session_id = ?`, sessionID).Scan(&statsJSON); err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if statsJSON != "" {
		if err := json.Unmarshal([]byte(statsJSON), &resp.Statistics); err != nil {
			return nil, err
		}
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT code, side, date, quantity, price, basis, commission, tax, slippage, reason
		FROM session_trades WHERE session_id = ? ORDER BY seq ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var t domain.TradeRecord
		var basis string
		if err := rows.Scan(&t.Code, &t.Side, &t.Date, &t.Quantity, &t.Price, &basis, &t.Commission, &t.Tax, &t.Slippage, &t.Reason); err != nil {
			return nil, err
		}
		t.Basis = domain.PriceBasis(basis)
		resp.Trades = append(resp.Trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	snapRows, err := r.db.QueryContext(ctx, `
		SELECT date, cash, position_value, portfolio_value, positions, daily_return
		FROM session_snapshots WHERE session_id = ? ORDER BY date ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer snapRows.Close()
	for snapRows.Next() {
		var snap domain.DailySnapshot
		var positions string
		if err := snapRows.Scan(&snap.Date, &snap.Cash, &snap.PositionValue, &snap.PortfolioValue, &positions, &snap.Return); err != nil {
			return nil, err
		}
		if positions != "" {
			if err := json.Unmarshal([]byte(positions), &snap.Positions); err != nil {
				return nil, err
			}
		}
		resp.DailySnapshots = append(resp.DailySnapshots, snap)
		resp.ChartDates = append(resp.ChartDates, snap.Date)
		resp.ChartValues = append(resp.ChartValues, snap.PortfolioValue)
	}
	return resp, snapRows.Err()
}
