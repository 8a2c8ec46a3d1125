package universe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/kr-backtest/internal/domain"
	enginetesting "github.com/aristath/kr-backtest/internal/testing"
)

func newRepoForTest(t *testing.T) (*Repository, func()) {
	universeDB, cleanupU := enginetesting.NewTestDB(t, "universe")
	pricesDB, cleanupP := enginetesting.NewTestDB(t, "prices")
	return NewRepository(universeDB, pricesDB), func() { cleanupU(); cleanupP() }
}

func TestUpsertStockInsertsAndUpdates(t *testing.T) {
	repo, cleanup := newRepoForTest(t)
	defer cleanup()
	ctx := context.Background()

	stock := domain.Stock{
		Code: "005930", Name: "Samsung", Market: domain.MarketKOSPI,
		ListedDate: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repo.UpsertStock(ctx, stock))

	stock.Name = "Samsung Electronics"
	require.NoError(t, repo.UpsertStock(ctx, stock))

	var name string
	require.NoError(t, repo.universeDB.QueryRowContext(ctx, `SELECT name FROM stocks WHERE code = ?`, "005930").Scan(&name))
	assert.Equal(t, "Samsung Electronics", name)
}

func TestRecordCorporateActionIsIdempotent(t *testing.T) {
	repo, cleanup := newRepoForTest(t)
	defer cleanup()
	ctx := context.Background()

	event := domain.CorporateActionRecord{Code: "005930", Date: "2024-01-04", PrevClose: 100, Close: 20, ReturnPct: -0.8}
	require.NoError(t, repo.RecordCorporateAction(ctx, event))
	require.NoError(t, repo.RecordCorporateAction(ctx, event))

	var count int
	require.NoError(t, repo.pricesDB.QueryRowContext(ctx, `SELECT COUNT(*) FROM corporate_actions WHERE code = ? AND date = ?`, "005930", "2024-01-04").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestBlockStockAndIsBlocked(t *testing.T) {
	repo, cleanup := newRepoForTest(t)
	defer cleanup()
	ctx := context.Background()

	blocked, err := repo.IsBlocked(ctx, "005930", "2024-01-04")
	require.NoError(t, err)
	assert.False(t, blocked)

	require.NoError(t, repo.BlockStock(ctx, "005930", "2024-01-04", "CORPORATE_ACTION"))

	blocked, err = repo.IsBlocked(ctx, "005930", "2024-01-04")
	require.NoError(t, err)
	assert.True(t, blocked)
}
