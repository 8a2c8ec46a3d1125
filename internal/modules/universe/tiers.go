package universe

import "github.com/aristath/kr-backtest/internal/domain"

// Tier is one named market-cap bracket within a market, the unit
// target_universes filters against and /api/universe reports against.
type Tier struct {
	ID     string
	Name   string
	Market domain.Market
	MinCap float64
	MaxCap *float64 // nil means unbounded above
}

func capPtr(v float64) *float64 { return &v }

// Tiers is the fixed catalogue of market-cap brackets per market.
var Tiers = []Tier{
	{ID: "KOSPI_MEGA", Name: "KOSPI Mega Cap", Market: domain.MarketKOSPI, MinCap: 10_000_000_000_000, MaxCap: nil},
	{ID: "KOSPI_LARGE", Name: "KOSPI Large Cap", Market: domain.MarketKOSPI, MinCap: 2_000_000_000_000, MaxCap: capPtr(10_000_000_000_000)},
	{ID: "KOSPI_MID", Name: "KOSPI Mid Cap", Market: domain.MarketKOSPI, MinCap: 500_000_000_000, MaxCap: capPtr(2_000_000_000_000)},
	{ID: "KOSPI_SMALL", Name: "KOSPI Small Cap", Market: domain.MarketKOSPI, MinCap: 0, MaxCap: capPtr(500_000_000_000)},
	{ID: "KOSDAQ_MEGA", Name: "KOSDAQ Mega Cap", Market: domain.MarketKOSDAQ, MinCap: 2_000_000_000_000, MaxCap: nil},
	{ID: "KOSDAQ_LARGE", Name: "KOSDAQ Large Cap", Market: domain.MarketKOSDAQ, MinCap: 500_000_000_000, MaxCap: capPtr(2_000_000_000_000)},
	{ID: "KOSDAQ_MID", Name: "KOSDAQ Mid Cap", Market: domain.MarketKOSDAQ, MinCap: 200_000_000_000, MaxCap: capPtr(500_000_000_000)},
	{ID: "KOSDAQ_SMALL", Name: "KOSDAQ Small Cap", Market: domain.MarketKOSDAQ, MinCap: 0, MaxCap: capPtr(200_000_000_000)},
}

// Summary is one tier's classification result for a given trade date, the
// shape the /api/universe endpoint reports.
type Summary struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Market     string   `json:"market"`
	StockCount int      `json:"stock_count"`
	MinCap     float64  `json:"min_cap"`
	MaxCap     *float64 `json:"max_cap,omitempty"`
}

func (t Tier) includes(market domain.Market, marketCap float64) bool {
	if market != t.Market {
		return false
	}
	if marketCap < t.MinCap {
		return false
	}
	if t.MaxCap != nil && marketCap >= *t.MaxCap {
		return false
	}
	return true
}

// Classify counts, for every tier, how many of the given stocks fall within
// its market-cap bracket on the same market.
func Classify(marketCapByCode map[string]float64, marketByCode map[string]domain.Market) []Summary {
	out := make([]Summary, len(Tiers))
	for i, t := range Tiers {
		count := 0
		for code, mc := range marketCapByCode {
			if t.includes(marketByCode[code], mc) {
				count++
			}
		}
		out[i] = Summary{ID: t.ID, Name: t.Name, Market: string(t.Market), StockCount: count, MinCap: t.MinCap, MaxCap: t.MaxCap}
	}
	return out
}

// MatchesAny reports whether marketCap on market falls within any of the
// named tiers. An empty ids list matches everything (unrestricted).
func MatchesAny(ids []string, market domain.Market, marketCap float64) bool {
	if len(ids) == 0 {
		return true
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for _, t := range Tiers {
		if want[t.ID] && t.includes(market, marketCap) {
			return true
		}
	}
	return false
}
