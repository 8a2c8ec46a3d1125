package live

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/kr-backtest/internal/domain"
	enginetesting "github.com/aristath/kr-backtest/internal/testing"
)

func TestRepositoryActivateAndListStrategies(t *testing.T) {
	db, cleanup := enginetesting.NewTestDB(t, "backtest")
	defer cleanup()
	repo := NewRepository(db)
	ctx := context.Background()

	spec := enginetesting.NewStrategySpecFixture()
	require.NoError(t, repo.Activate(ctx, "hash1", spec))

	strategies, err := repo.ActiveStrategies(ctx)
	require.NoError(t, err)
	require.Len(t, strategies, 1)
	assert.Equal(t, spec.BuyConditions, strategies[0].BuyConditions)

	require.NoError(t, repo.Deactivate(ctx, "hash1"))
	strategies, err = repo.ActiveStrategies(ctx)
	require.NoError(t, err)
	assert.Len(t, strategies, 0)
}

func TestRepositoryPositionLifecycle(t *testing.T) {
	db, cleanup := enginetesting.NewTestDB(t, "backtest")
	defer cleanup()
	repo := NewRepository(db)
	ctx := context.Background()

	pos := domain.Position{Code: "005930", Quantity: 10, AvgCost: 50000, EntryDate: "2024-03-01", HoldDays: 2, LastUpdated: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, repo.UpsertPosition(ctx, "hash1", pos))

	positions, err := repo.Positions(ctx, "hash1")
	require.NoError(t, err)
	require.Contains(t, positions, "005930")
	assert.Equal(t, int64(10), positions["005930"].Quantity)
	assert.Equal(t, 2, positions["005930"].HoldDays)
	assert.True(t, positions["005930"].LastUpdated.Equal(pos.LastUpdated))

	require.NoError(t, repo.RemovePosition(ctx, "hash1", "005930"))
	positions, err = repo.Positions(ctx, "hash1")
	require.NoError(t, err)
	assert.Len(t, positions, 0)
}

func TestRepositoryPreviewRoundTrip(t *testing.T) {
	db, cleanup := enginetesting.NewTestDB(t, "backtest")
	defer cleanup()
	repo := NewRepository(db)
	ctx := context.Background()

	_, ok, err := repo.LoadPreview(ctx, "hash1")
	require.NoError(t, err)
	assert.False(t, ok)

	p := Preview{StrategyHash: "hash1", AsOf: "2024-03-15", Candidates: []string{"005930", "000660"}, SellCodes: []string{"035720"}}
	require.NoError(t, repo.SavePreview(ctx, p))

	loaded, ok, err := repo.LoadPreview(ctx, "hash1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, p.Candidates, loaded.Candidates)
	assert.Equal(t, p.SellCodes, loaded.SellCodes)
}

func TestRepositoryRecordDailyPerformance(t *testing.T) {
	db, cleanup := enginetesting.NewTestDB(t, "backtest")
	defer cleanup()
	repo := NewRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.RecordDailyPerformance(ctx, "hash1", "2024-03-15", 100, 900, 1000, 0.01))

	var portfolioValue float64
	err := db.QueryRowContext(ctx, `SELECT portfolio_value FROM live_daily_performance WHERE strategy_hash = ? AND date = ?`, "hash1", "2024-03-15").Scan(&portfolioValue)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, portfolioValue)
}
