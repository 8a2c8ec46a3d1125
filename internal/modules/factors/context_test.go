package factors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/kr-backtest/internal/domain"
)

func TestNewSeriesSortsBarsAndFundamentalsAscending(t *testing.T) {
	bars := []domain.PriceBar{
		{Code: "A", Date: "2024-01-03", Close: 120, MarketCap: 1000},
		{Code: "A", Date: "2024-01-01", Close: 100, MarketCap: 900},
		{Code: "A", Date: "2024-01-02", Close: 110, MarketCap: 950},
	}
	funds := []domain.FundamentalRecord{
		{Code: "A", Metric: "net_income", AvailableDate: "2024-01-03", Value: 20},
		{Code: "A", Metric: "net_income", AvailableDate: "2024-01-01", Value: 10},
	}
	s := NewSeries("A", bars, funds, nil)
	require.Equal(t, []string{"2024-01-01", "2024-01-02", "2024-01-03"}, s.Dates)
	assert.Equal(t, 100.0, s.Close[0])
	assert.Equal(t, 120.0, s.Close[2])
	assert.Equal(t, "2024-01-01", s.Fundamentals[0].AvailableDate)
}

func TestValueAsOfReturnsLatestKnowableDisclosure(t *testing.T) {
	funds := []domain.FundamentalRecord{
		{Code: "A", Metric: "net_income", AvailableDate: "2024-01-01", Value: 10},
		{Code: "A", Metric: "net_income", AvailableDate: "2024-03-01", Value: 20},
	}
	s := NewSeries("A", nil, funds, nil)

	v, ok := s.fundIdx.valueAsOf("net_income", "2024-02-01")
	require.True(t, ok)
	assert.Equal(t, 10.0, v)

	v, ok = s.fundIdx.valueAsOf("net_income", "2024-03-01")
	require.True(t, ok)
	assert.Equal(t, 20.0, v)

	_, ok = s.fundIdx.valueAsOf("net_income", "2023-12-31")
	assert.False(t, ok)
}

func TestValueAsOfUnknownMetricIsAbsent(t *testing.T) {
	s := NewSeries("A", nil, nil, nil)
	_, ok := s.fundIdx.valueAsOf("revenue", "2024-01-01")
	assert.False(t, ok)
}
