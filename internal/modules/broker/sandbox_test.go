package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSandboxBrokerBuyAndSell(t *testing.T) {
	b := NewSandboxBroker(1_000_000)
	b.SetQuote("005930", 50_000)

	order, err := b.PlaceOrder("005930", "BUY", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 50_000.0, order.Price)

	positions, err := b.GetPortfolio()
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, int64(10), positions[0].Quantity)
	assert.Equal(t, 50_000.0, positions[0].AvgPrice)

	cash, err := b.GetCashBalances()
	require.NoError(t, err)
	assert.Equal(t, 500_000.0, cash[0].Amount)

	b.SetQuote("005930", 55_000)
	_, err = b.PlaceOrder("005930", "SELL", 10, 0)
	require.NoError(t, err)

	positions, err = b.GetPortfolio()
	require.NoError(t, err)
	assert.Len(t, positions, 0)

	cash, err = b.GetCashBalances()
	require.NoError(t, err)
	assert.Equal(t, 1_050_000.0, cash[0].Amount)

	trades, err := b.GetExecutedTrades(0)
	require.NoError(t, err)
	assert.Len(t, trades, 2)
}

func TestSandboxBrokerRejectsInsufficientCash(t *testing.T) {
	b := NewSandboxBroker(1000)
	b.SetQuote("005930", 50_000)

	_, err := b.PlaceOrder("005930", "BUY", 10, 0)
	assert.Error(t, err)
}

func TestSandboxBrokerRejectsOversizedSell(t *testing.T) {
	b := NewSandboxBroker(1_000_000)
	b.SetQuote("005930", 50_000)
	_, err := b.PlaceOrder("005930", "BUY", 5, 0)
	require.NoError(t, err)

	_, err = b.PlaceOrder("005930", "SELL", 10, 0)
	assert.Error(t, err)
}

func TestSandboxBrokerGetQuoteRequiresSeeding(t *testing.T) {
	b := NewSandboxBroker(1_000_000)
	_, err := b.GetQuote("005930")
	assert.Error(t, err)

	b.SetQuote("005930", 1000)
	q, err := b.GetQuote("005930")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, q.Price)
}
