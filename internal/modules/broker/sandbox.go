// Package broker provides a sandbox/paper implementation of
// domain.BrokerClient, filling orders at the last quoted price and
// maintaining an in-memory ledger. It is the Live Adapter's default target
// so a strategy can be exercised end-to-end without a real brokerage
// connection.
package broker

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aristath/kr-backtest/internal/domain"
)

type SandboxBroker struct {
	mu          sync.Mutex
	apiKey      string
	apiSecret   string
	connected   bool
	cash        map[string]float64
	positions   map[string]*domain.BrokerPosition
	trades      []domain.BrokerTrade
	pending     []domain.BrokerPendingOrder
	quotes      map[string]float64
}

// NewSandboxBroker creates a paper broker seeded with startingCashKRW of
// Korean won cash.
func NewSandboxBroker(startingCashKRW float64) *SandboxBroker {
	return &SandboxBroker{
		connected: true,
		cash:      map[string]float64{string(domain.CurrencyKRW): startingCashKRW},
		positions: make(map[string]*domain.BrokerPosition),
		quotes:    make(map[string]float64),
	}
}

var _ domain.BrokerClient = (*SandboxBroker)(nil)

// SetQuote seeds or updates the last-traded price the sandbox fills orders
// at and reports from GetQuote.
func (b *SandboxBroker) SetQuote(symbol string, price float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.quotes[symbol] = price
}

func (b *SandboxBroker) GetPortfolio() ([]domain.BrokerPosition, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.BrokerPosition, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, *p)
	}
	return out, nil
}

func (b *SandboxBroker) GetCashBalances() ([]domain.BrokerCashBalance, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]domain.BrokerCashBalance, 0, len(b.cash))
	for ccy, amount := range b.cash {
		out = append(out, domain.BrokerCashBalance{Currency: ccy, Amount: amount})
	}
	return out, nil
}

func (b *SandboxBroker) PlaceOrder(symbol, side string, quantity int64, limitPrice float64) (*domain.BrokerOrderResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	price := limitPrice
	if price <= 0 {
		price = b.quotes[symbol]
	}
	if price <= 0 {
		return nil, domain.NewError(domain.ErrValidation, "no_quote", fmt.Sprintf("no quote available for %s", symbol))
	}

	notional := price * float64(quantity)
	switch side {
	case "BUY":
		if b.cash[string(domain.CurrencyKRW)] < notional {
			return nil, domain.NewError(domain.ErrValidation, "insufficient_cash", "insufficient cash balance for order")
		}
		b.cash[string(domain.CurrencyKRW)] -= notional
		pos, ok := b.positions[symbol]
		if !ok {
			pos = &domain.BrokerPosition{Symbol: symbol}
			b.positions[symbol] = pos
		}
		totalCost := pos.AvgPrice*float64(pos.Quantity) + notional
		pos.Quantity += quantity
		if pos.Quantity > 0 {
			pos.AvgPrice = totalCost / float64(pos.Quantity)
		}
		pos.CurrentPrice = price
		pos.MarketValue = price * float64(pos.Quantity)
	case "SELL":
		pos, ok := b.positions[symbol]
		if !ok || pos.Quantity < quantity {
			return nil, domain.NewError(domain.ErrValidation, "insufficient_position", "insufficient position to sell")
		}
		b.cash[string(domain.CurrencyKRW)] += notional
		pos.UnrealizedPnL += (price - pos.AvgPrice) * float64(quantity)
		pos.Quantity -= quantity
		pos.CurrentPrice = price
		pos.MarketValue = price * float64(pos.Quantity)
		if pos.Quantity == 0 {
			delete(b.positions, symbol)
		}
	default:
		return nil, domain.NewError(domain.ErrValidation, "invalid_side", "side must be BUY or SELL")
	}

	result := domain.BrokerOrderResult{
		OrderID:  uuid.NewString(),
		Symbol:   symbol,
		Side:     side,
		Quantity: quantity,
		Price:    price,
	}
	b.trades = append(b.trades, domain.BrokerTrade{
		OrderID: result.OrderID, Symbol: symbol, Side: side, Quantity: quantity, Price: price,
		ExecutedAt: time.Now().UTC().Format(time.RFC3339),
	})
	return &result, nil
}

func (b *SandboxBroker) GetExecutedTrades(limit int) ([]domain.BrokerTrade, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if limit <= 0 || limit > len(b.trades) {
		limit = len(b.trades)
	}
	start := len(b.trades) - limit
	return append([]domain.BrokerTrade(nil), b.trades[start:]...), nil
}

func (b *SandboxBroker) GetPendingOrders() ([]domain.BrokerPendingOrder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]domain.BrokerPendingOrder(nil), b.pending...), nil
}

func (b *SandboxBroker) GetQuote(symbol string) (*domain.BrokerQuote, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	price, ok := b.quotes[symbol]
	if !ok {
		return nil, domain.NewError(domain.ErrDataUnavailable, "no_quote", fmt.Sprintf("no quote available for %s", symbol))
	}
	return &domain.BrokerQuote{Symbol: symbol, Price: price, Timestamp: time.Now().UTC().Format(time.RFC3339)}, nil
}

func (b *SandboxBroker) FindSymbol(symbol string) ([]domain.BrokerSecurityInfo, error) {
	return []domain.BrokerSecurityInfo{{Symbol: symbol}}, nil
}

func (b *SandboxBroker) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connected
}

func (b *SandboxBroker) HealthCheck() (*domain.BrokerHealthResult, error) {
	return &domain.BrokerHealthResult{Connected: b.IsConnected(), Timestamp: time.Now().UTC().Format(time.RFC3339)}, nil
}

func (b *SandboxBroker) SetCredentials(apiKey, apiSecret string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.apiKey = apiKey
	b.apiSecret = apiSecret
}
