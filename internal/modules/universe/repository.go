// Package universe persists the instrument catalogue and the
// corporate-action/blocked-stock bookkeeping the simulator depends on,
// against the universe and prices databases.
package universe

import (
	"context"
	"database/sql"

	"github.com/aristath/kr-backtest/internal/database"
	"github.com/aristath/kr-backtest/internal/domain"
)

type Repository struct {
	universeDB *database.DB
	pricesDB   *database.DB
}

func NewRepository(universeDB, pricesDB *database.DB) *Repository {
	return &Repository{universeDB: universeDB, pricesDB: pricesDB}
}

// UpsertStock inserts or updates one instrument's catalogue row.
func (r *Repository) UpsertStock(ctx context.Context, s domain.Stock) error {
	var delisted interface{}
	if !s.DelistedDate.IsZero() {
		delisted = s.DelistedDate.Format("2006-01-02")
	}
	_, err := r.universeDB.ExecContext(ctx, `
		INSERT INTO stocks (code, isin, name, market, sector, listed_date, delisted_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			isin = excluded.isin, name = excluded.name, market = excluded.market,
			sector = excluded.sector, listed_date = excluded.listed_date, delisted_date = excluded.delisted_date`,
		s.Code, s.ISIN, s.Name, string(s.Market), s.Sector, s.ListedDate.Format("2006-01-02"), delisted)
	return err
}

// RecordCorporateAction persists a detected corporate-action event, keyed by
// code and date.
func (r *Repository) RecordCorporateAction(ctx context.Context, e domain.CorporateActionRecord) error {
	_, err := r.pricesDB.ExecContext(ctx, `
		INSERT INTO corporate_actions (code, date, prev_close, close, return_pct)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(code, date) DO UPDATE SET prev_close = excluded.prev_close, close = excluded.close, return_pct = excluded.return_pct`,
		e.Code, e.Date, e.PrevClose, e.Close, e.ReturnPct)
	return err
}

// BlockStock records a code as blocked on date, with a reason, in the
// blocked_stocks table.
func (r *Repository) BlockStock(ctx context.Context, code, date, reason string) error {
	_, err := r.universeDB.ExecContext(ctx, `
		INSERT INTO blocked_stocks (code, date, reason) VALUES (?, ?, ?)
		ON CONFLICT(code, date) DO UPDATE SET reason = excluded.reason`,
		code, date, reason)
	return err
}

// IsBlocked reports whether code is blocked on date.
func (r *Repository) IsBlocked(ctx context.Context, code, date string) (bool, error) {
	var count int
	err := r.universeDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM blocked_stocks WHERE code = ? AND date = ?`, code, date).Scan(&count)
	if err != nil && err != sql.ErrNoRows {
		return false, err
	}
	return count > 0, nil
}
