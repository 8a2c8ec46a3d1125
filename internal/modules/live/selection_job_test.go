package live

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/kr-backtest/internal/domain"
	"github.com/aristath/kr-backtest/internal/modules/hash"
	enginetesting "github.com/aristath/kr-backtest/internal/testing"
)

func TestSelectionJobPersistsPreview(t *testing.T) {
	ctx := context.Background()

	priceStore := enginetesting.NewMockPriceStore()
	bars := enginetesting.NewPriceBarFixtures("005930", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), 90, 50000)
	priceStore.SetPrices("005930", bars)
	priceStore.SetFundamentals("005930", enginetesting.NewFundamentalFixtures("005930", time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)))
	priceStore.SetUniverse(enginetesting.NewStockFixtures())

	db, cleanup := enginetesting.NewTestDB(t, "backtest")
	defer cleanup()
	repo := NewRepository(db)
	job := NewSelectionJob(repo, priceStore, "dataframe", zerolog.Nop())

	today, err := time.Parse("2006-01-02", bars[len(bars)-1].Date)
	require.NoError(t, err)
	job.now = func() time.Time { return today }

	spec := enginetesting.NewStrategySpecFixture()
	spec.PriorityOrder = domain.PriorityAscending
	strategyHash := hash.GenerateStrategyHash(spec)
	require.NoError(t, repo.Activate(ctx, strategyHash, spec))

	require.NoError(t, job.Run())

	preview, ok, err := repo.LoadPreview(ctx, strategyHash)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, bars[len(bars)-1].Date, preview.AsOf)
}

func TestSelectionJobSkipsNonBusinessDay(t *testing.T) {
	priceStore := enginetesting.NewMockPriceStore()
	db, cleanup := enginetesting.NewTestDB(t, "backtest")
	defer cleanup()
	repo := NewRepository(db)
	job := NewSelectionJob(repo, priceStore, "dataframe", zerolog.Nop())
	job.now = func() time.Time { return time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC) } // Saturday

	require.NoError(t, job.Run())

	_, ok, err := repo.LoadPreview(context.Background(), "anything")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSelectionJobAdvancesHoldDays(t *testing.T) {
	ctx := context.Background()
	priceStore := enginetesting.NewMockPriceStore()
	bars := enginetesting.NewPriceBarFixtures("005930", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), 90, 50000)
	priceStore.SetPrices("005930", bars)
	priceStore.SetUniverse(enginetesting.NewStockFixtures())

	db, cleanup := enginetesting.NewTestDB(t, "backtest")
	defer cleanup()
	repo := NewRepository(db)
	job := NewSelectionJob(repo, priceStore, "dataframe", zerolog.Nop())

	today, err := time.Parse("2006-01-02", bars[len(bars)-1].Date)
	require.NoError(t, err)
	job.now = func() time.Time { return today }

	spec := enginetesting.NewStrategySpecFixture()
	strategyHash := hash.GenerateStrategyHash(spec)
	require.NoError(t, repo.Activate(ctx, strategyHash, spec))
	require.NoError(t, repo.UpsertPosition(ctx, strategyHash, domain.Position{
		Code: "005930", Quantity: 10, AvgCost: 50000, EntryDate: "2024-01-02", HoldDays: 1,
		LastUpdated: today.AddDate(0, 0, -1),
	}))

	require.NoError(t, job.Run())

	positions, err := repo.Positions(ctx, strategyHash)
	require.NoError(t, err)
	require.Contains(t, positions, "005930")
	assert.Greater(t, positions["005930"].HoldDays, 1)
}
