package domain

import "context"

// BrokerClient defines broker-agnostic trading and portfolio operations used
// by the Live Adapter. Abstracting over the concrete broker keeps
// modules/live testable against a sandbox/paper implementation.
type BrokerClient interface {
	GetPortfolio() ([]BrokerPosition, error)
	GetCashBalances() ([]BrokerCashBalance, error)

	PlaceOrder(symbol, side string, quantity int64, limitPrice float64) (*BrokerOrderResult, error)
	GetExecutedTrades(limit int) ([]BrokerTrade, error)
	GetPendingOrders() ([]BrokerPendingOrder, error)

	GetQuote(symbol string) (*BrokerQuote, error)
	FindSymbol(symbol string) ([]BrokerSecurityInfo, error)

	IsConnected() bool
	HealthCheck() (*BrokerHealthResult, error)
	SetCredentials(apiKey, apiSecret string)
}

// PriceStore is the read interface the Factor Engine and Simulator use to
// pull OHLCV history. Implementations live in modules/priceadapter.
type PriceStore interface {
	LoadPrices(ctx context.Context, codes []string, start, end string) (map[string][]PriceBar, error)
	LoadFundamentals(ctx context.Context, codes []string, asOf string) (map[string][]FundamentalRecord, error)
	LoadUniverse(ctx context.Context, market Market, asOf string) ([]Stock, error)
}

// Cache is the narrow interface modules/factors and modules/backtest depend
// on, satisfied by modules/cache.Layer. Get/Set never return an error to
// callers that can proceed without the cache (fail-soft); Delete removes a
// key from both tiers.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
