// Package priceadapter implements domain.PriceStore against the prices and
// universe SQLite databases, loading OHLCV history, point-in-time
// fundamentals, and the tradable universe in parallel per request.
package priceadapter

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/kr-backtest/internal/database"
	"github.com/aristath/kr-backtest/internal/domain"
	"github.com/aristath/kr-backtest/internal/reliability"
)

// LookbackDays is the number of extra calendar days of history loaded before
// a requested start date, giving the Factor Engine trailing history for
// long-lookback factors. 300 calendar days is about 200 trading days, so
// factors with a longer window (e.g. a 250-day moving average) are still
// null for the early part of the requested range.
const LookbackDays = 300

// Store loads prices, fundamentals, and the universe from the prices and
// universe databases.
type Store struct {
	pricesDB   *database.DB
	universeDB *database.DB
	log        zerolog.Logger
}

func New(pricesDB, universeDB *database.DB, log zerolog.Logger) *Store {
	return &Store{
		pricesDB:   pricesDB,
		universeDB: universeDB,
		log:        log.With().Str("component", "priceadapter").Logger(),
	}
}

var _ domain.PriceStore = (*Store)(nil)

// LoadPrices fetches OHLCV bars for each code between start and end
// (inclusive), extending the query window back LookbackDays before start so
// callers get enough trailing history for rolling-window factors. Codes are
// loaded concurrently via errgroup, bounded by the database's own connection
// pool limit.
func (s *Store) LoadPrices(ctx context.Context, codes []string, start, end string) (map[string][]domain.PriceBar, error) {
	extendedStart, err := extendLookback(start, LookbackDays)
	if err != nil {
		return nil, domain.WrapError(domain.ErrValidation, "invalid_start_date", "could not parse start date", err)
	}

	results := make(map[string][]domain.PriceBar, len(codes))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for _, code := range codes {
		code := code
		g.Go(func() error {
			bars, err := reliability.Retry(gctx, s.log, reliability.DatabaseRetry, isTransientSQLError, func(ctx context.Context) ([]domain.PriceBar, error) {
				return s.queryBars(ctx, code, extendedStart, end)
			})
			if err != nil {
				return domain.WrapError(domain.ErrDataUnavailable, "price_load_failed", fmt.Sprintf("failed to load prices for %s", code), err)
			}
			mu.Lock()
			results[code] = bars
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Store) queryBars(ctx context.Context, code, start, end string) ([]domain.PriceBar, error) {
	rows, err := s.pricesDB.QueryContext(ctx, `
		SELECT code, date, open, high, low, close, volume, adjusted_close, market_cap, shares_out
		FROM price_bars
		WHERE code = ? AND date >= ? AND date <= ?
		ORDER BY date ASC`, code, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []domain.PriceBar
	for rows.Next() {
		var b domain.PriceBar
		if err := rows.Scan(&b.Code, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.AdjustedClose, &b.MarketCap, &b.SharesOut); err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// LoadFundamentals fetches every fundamental disclosure whose AvailableDate
// is on or before asOf, for each code, in parallel.
func (s *Store) LoadFundamentals(ctx context.Context, codes []string, asOf string) (map[string][]domain.FundamentalRecord, error) {
	results := make(map[string][]domain.FundamentalRecord, len(codes))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for _, code := range codes {
		code := code
		g.Go(func() error {
			recs, err := reliability.Retry(gctx, s.log, reliability.DatabaseRetry, isTransientSQLError, func(ctx context.Context) ([]domain.FundamentalRecord, error) {
				return s.queryFundamentals(ctx, code, asOf)
			})
			if err != nil {
				return domain.WrapError(domain.ErrDataUnavailable, "fundamentals_load_failed", fmt.Sprintf("failed to load fundamentals for %s", code), err)
			}
			mu.Lock()
			results[code] = recs
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Store) queryFundamentals(ctx context.Context, code, asOf string) ([]domain.FundamentalRecord, error) {
	rows, err := s.pricesDB.QueryContext(ctx, `
		SELECT code, period_end, available_date, metric, value
		FROM fundamentals
		WHERE code = ? AND available_date <= ?
		ORDER BY available_date ASC`, code, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []domain.FundamentalRecord
	for rows.Next() {
		var r domain.FundamentalRecord
		if err := rows.Scan(&r.Code, &r.PeriodEnd, &r.AvailableDate, &r.Metric, &r.Value); err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// LoadUniverse returns every stock listed on or before asOf and not yet
// delisted (or delisted after asOf), optionally filtered to a single market.
func (s *Store) LoadUniverse(ctx context.Context, market domain.Market, asOf string) ([]domain.Stock, error) {
	query := `
		SELECT code, isin, name, market, sector, listed_date, delisted_date
		FROM stocks
		WHERE listed_date <= ? AND (delisted_date IS NULL OR delisted_date = '' OR delisted_date > ?)`
	args := []interface{}{asOf, asOf}
	if market != "" {
		query += " AND market = ?"
		args = append(args, string(market))
	}

	rows, err := reliability.Retry(ctx, s.log, reliability.DatabaseRetry, isTransientSQLError, func(ctx context.Context) (*sql.Rows, error) {
		return s.universeDB.QueryContext(ctx, query, args...)
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrDataUnavailable, "universe_load_failed", "failed to load universe", err)
	}
	defer rows.Close()

	var stocks []domain.Stock
	for rows.Next() {
		var st domain.Stock
		var delisted sql.NullString
		var listed string
		if err := rows.Scan(&st.Code, &st.ISIN, &st.Name, &st.Market, &st.Sector, &listed, &delisted); err != nil {
			return nil, err
		}
		st.ListedDate, _ = time.Parse("2006-01-02", listed)
		if delisted.Valid && delisted.String != "" {
			st.DelistedDate, _ = time.Parse("2006-01-02", delisted.String)
		}
		stocks = append(stocks, st)
	}
	return stocks, rows.Err()
}

func extendLookback(start string, days int) (string, error) {
	t, err := time.Parse("2006-01-02", start)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, 0, -days).Format("2006-01-02"), nil
}

func isTransientSQLError(err error) bool {
	return err == context.DeadlineExceeded || err == sql.ErrConnDone
}
