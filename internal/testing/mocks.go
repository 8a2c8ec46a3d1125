package testing

import (
	"context"
	"sync"

	"github.com/aristath/kr-backtest/internal/domain"
)

// MockPriceStore is an in-memory domain.PriceStore for simulator/factor
// engine tests: load fixtures via SetPrices/SetFundamentals/SetUniverse,
// then exercise the component under test against it.
type MockPriceStore struct {
	mu           sync.Mutex
	prices       map[string][]domain.PriceBar
	fundamentals map[string][]domain.FundamentalRecord
	universe     []domain.Stock
	err          error
}

func NewMockPriceStore() *MockPriceStore {
	return &MockPriceStore{
		prices:       make(map[string][]domain.PriceBar),
		fundamentals: make(map[string][]domain.FundamentalRecord),
	}
}

func (m *MockPriceStore) SetPrices(code string, bars []domain.PriceBar) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[code] = bars
}

func (m *MockPriceStore) SetFundamentals(code string, records []domain.FundamentalRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fundamentals[code] = records
}

func (m *MockPriceStore) SetUniverse(stocks []domain.Stock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.universe = stocks
}

func (m *MockPriceStore) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockPriceStore) LoadPrices(ctx context.Context, codes []string, start, end string) (map[string][]domain.PriceBar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string][]domain.PriceBar, len(codes))
	for _, code := range codes {
		var filtered []domain.PriceBar
		for _, bar := range m.prices[code] {
			if bar.Date >= start && bar.Date <= end {
				filtered = append(filtered, bar)
			}
		}
		out[code] = filtered
	}
	return out, nil
}

func (m *MockPriceStore) LoadFundamentals(ctx context.Context, codes []string, asOf string) (map[string][]domain.FundamentalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string][]domain.FundamentalRecord, len(codes))
	for _, code := range codes {
		var filtered []domain.FundamentalRecord
		for _, rec := range m.fundamentals[code] {
			if rec.AvailableDate <= asOf {
				filtered = append(filtered, rec)
			}
		}
		out[code] = filtered
	}
	return out, nil
}

func (m *MockPriceStore) LoadUniverse(ctx context.Context, market domain.Market, asOf string) ([]domain.Stock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if market == "" {
		return m.universe, nil
	}
	var out []domain.Stock
	for _, s := range m.universe {
		if s.Market == market {
			out = append(out, s)
		}
	}
	return out, nil
}

// MockCache is an in-memory domain.Cache for tests that need fail-soft
// caching semantics without a real LRU/remote tier.
type MockCache struct {
	mu    sync.Mutex
	store map[string]interface{}
}

func NewMockCache() *MockCache {
	return &MockCache{store: make(map[string]interface{})}
}

func (m *MockCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.store[key]
	if !ok {
		return false, nil
	}
	if d, ok := dest.(*interface{}); ok {
		*d = v
	}
	return true, nil
}

func (m *MockCache) Set(ctx context.Context, key string, value interface{}, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[key] = value
	return nil
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, key)
	return nil
}

// MockBrokerClient is an in-memory domain.BrokerClient for live-adapter
// tests.
type MockBrokerClient struct {
	mu        sync.Mutex
	connected bool
	positions []domain.BrokerPosition
	cash      []domain.BrokerCashBalance
	orders    []domain.BrokerOrderResult
	err       error
}

func NewMockBrokerClient() *MockBrokerClient {
	return &MockBrokerClient{connected: true}
}

func (m *MockBrokerClient) SetPositions(p []domain.BrokerPosition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions = p
}

func (m *MockBrokerClient) SetCashBalances(c []domain.BrokerCashBalance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cash = c
}

func (m *MockBrokerClient) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockBrokerClient) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
}

func (m *MockBrokerClient) GetPortfolio() ([]domain.BrokerPosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.positions, m.err
}

func (m *MockBrokerClient) GetCashBalances() ([]domain.BrokerCashBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cash, m.err
}

func (m *MockBrokerClient) PlaceOrder(symbol, side string, quantity int64, limitPrice float64) (*domain.BrokerOrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	price := limitPrice
	if price <= 0 {
		price = 1000 // matches GetQuote's fixed price, for market (limitPrice=0) orders
	}
	result := domain.BrokerOrderResult{
		OrderID:  "mock-order",
		Symbol:   symbol,
		Side:     side,
		Quantity: quantity,
		Price:    price,
	}
	m.orders = append(m.orders, result)
	return &result, nil
}

// Orders returns every order placed through this mock, for assertions.
func (m *MockBrokerClient) Orders() []domain.BrokerOrderResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.BrokerOrderResult(nil), m.orders...)
}

func (m *MockBrokerClient) GetExecutedTrades(limit int) ([]domain.BrokerTrade, error) {
	return nil, m.err
}

func (m *MockBrokerClient) GetPendingOrders() ([]domain.BrokerPendingOrder, error) {
	return nil, m.err
}

func (m *MockBrokerClient) GetQuote(symbol string) (*domain.BrokerQuote, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.BrokerQuote{Symbol: symbol, Price: 1000}, nil
}

func (m *MockBrokerClient) FindSymbol(symbol string) ([]domain.BrokerSecurityInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []domain.BrokerSecurityInfo{{Symbol: symbol}}, nil
}

func (m *MockBrokerClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockBrokerClient) HealthCheck() (*domain.BrokerHealthResult, error) {
	return &domain.BrokerHealthResult{Connected: m.IsConnected()}, m.err
}

func (m *MockBrokerClient) SetCredentials(apiKey, apiSecret string) {}
