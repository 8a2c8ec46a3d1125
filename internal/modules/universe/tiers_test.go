package universe

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aristath/kr-backtest/internal/domain"
)

func TestClassifyCountsStocksPerTier(t *testing.T) {
	caps := map[string]float64{
		"005930": 400_000_000_000_000, // KOSPI mega
		"000660": 1_500_000_000_000,   // KOSPI mid
		"123456": 100_000_000_000,     // KOSDAQ small
	}
	markets := map[string]domain.Market{
		"005930": domain.MarketKOSPI,
		"000660": domain.MarketKOSPI,
		"123456": domain.MarketKOSDAQ,
	}
	summaries := Classify(caps, markets)
	byID := map[string]Summary{}
	for _, s := range summaries {
		byID[s.ID] = s
	}
	assert.Equal(t, 1, byID["KOSPI_MEGA"].StockCount)
	assert.Equal(t, 1, byID["KOSPI_MID"].StockCount)
	assert.Equal(t, 1, byID["KOSDAQ_SMALL"].StockCount)
	assert.Equal(t, 0, byID["KOSDAQ_MEGA"].StockCount)
}

func TestMatchesAnyEmptyListMatchesEverything(t *testing.T) {
	assert.True(t, MatchesAny(nil, domain.MarketKOSPI, 1))
}

func TestMatchesAnyChecksTierBounds(t *testing.T) {
	assert.True(t, MatchesAny([]string{"KOSPI_MEGA"}, domain.MarketKOSPI, 20_000_000_000_000))
	assert.False(t, MatchesAny([]string{"KOSPI_MEGA"}, domain.MarketKOSPI, 1_000_000_000_000))
	assert.False(t, MatchesAny([]string{"KOSPI_MEGA"}, domain.MarketKOSDAQ, 20_000_000_000_000))
}

func TestTierBoundaryIsMinInclusiveMaxExclusive(t *testing.T) {
	assert.True(t, MatchesAny([]string{"KOSPI_MID"}, domain.MarketKOSPI, 500_000_000_000))
	assert.False(t, MatchesAny([]string{"KOSPI_MID"}, domain.MarketKOSPI, 2_000_000_000_000))
	assert.True(t, MatchesAny([]string{"KOSPI_LARGE"}, domain.MarketKOSPI, 2_000_000_000_000))
}
