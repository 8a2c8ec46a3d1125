package factors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/kr-backtest/internal/domain"
)

func TestROEComputesFromDisclosedMetrics(t *testing.T) {
	bars := []domain.PriceBar{{Code: "A", Date: "2024-01-01", Close: 100}}
	funds := []domain.FundamentalRecord{
		{Code: "A", Metric: "net_income", AvailableDate: "2024-01-01", Value: 50},
		{Code: "A", Metric: "equity", AvailableDate: "2024-01-01", Value: 500},
	}
	s := NewSeries("A", bars, funds, nil)
	out := roeSeries(s)
	require.NotNil(t, out[0])
	assert.InDelta(t, float64(float32(0.1)), float64(*out[0]), 1e-9)
}

func TestROICIncludesDebtWhenDisclosed(t *testing.T) {
	bars := []domain.PriceBar{{Code: "A", Date: "2024-01-01", Close: 100}}
	funds := []domain.FundamentalRecord{
		{Code: "A", Metric: "operating_income", AvailableDate: "2024-01-01", Value: 100},
		{Code: "A", Metric: "equity", AvailableDate: "2024-01-01", Value: 400},
		{Code: "A", Metric: "total_debt", AvailableDate: "2024-01-01", Value: 600},
	}
	s := NewSeries("A", bars, funds, nil)
	out := roicSeries(s)
	require.NotNil(t, out[0])
	assert.InDelta(t, float64(float32(0.1)), float64(*out[0]), 1e-9) // 100 / (400+600)
}

func TestVolatility20DNullBeforeWindow(t *testing.T) {
	s := makeSeries("A", 10, 1000)
	out := volatility20D(s)
	assert.Nil(t, out[len(out)-1])
}

func TestMaxDrawdown1YOnDecliningSeries(t *testing.T) {
	closes := []float64{100, 80}
	for i := 0; i < tradingDaysYear-2; i++ {
		closes = append(closes, 80)
	}
	base := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = domain.PriceBar{Code: "A", Date: base.AddDate(0, 0, i).Format("2006-01-02"), Close: c}
	}
	s := NewSeries("A", bars, nil, nil)
	out := maxDrawdown1Y(s)
	require.NotNil(t, out[len(out)-1])
	assert.InDelta(t, float64(float32(-0.2)), float64(*out[len(out)-1]), 1e-9)
}

func TestBeta1YNullWithoutMarketSeries(t *testing.T) {
	s := makeSeries("A", tradingDaysYear+5, 1000)
	out := beta1Y(s)
	for _, v := range out {
		assert.Nil(t, v)
	}
}
