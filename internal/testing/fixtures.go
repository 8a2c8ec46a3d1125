package testing

import (
	"fmt"
	"math"
	"time"

	"github.com/aristath/kr-backtest/internal/domain"
)

// NewStockFixtures returns a small KOSPI/KOSDAQ universe for use in tests.
func NewStockFixtures() []domain.Stock {
	listed := time.Date(2010, 1, 4, 0, 0, 0, 0, time.UTC)
	return []domain.Stock{
		{Code: "005930", ISIN: "KR7005930003", Name: "Samsung Electronics", Market: domain.MarketKOSPI, Sector: "Technology", ListedDate: listed},
		{Code: "000660", ISIN: "KR7000660001", Name: "SK Hynix", Market: domain.MarketKOSPI, Sector: "Technology", ListedDate: listed},
		{Code: "035720", ISIN: "KR7035720002", Name: "Kakao", Market: domain.MarketKOSDAQ, Sector: "Communication", ListedDate: listed},
		{Code: "247540", ISIN: "KR7247540008", Name: "Ecopro BM", Market: domain.MarketKOSDAQ, Sector: "Materials", ListedDate: listed},
	}
}

// NewPriceBarFixtures generates `days` of deterministic, mildly trending
// daily bars for `code`, starting at `startClose`, useful for exercising the
// simulator and factor engine without touching a real price store.
func NewPriceBarFixtures(code string, startDate time.Time, days int, startClose float64) []domain.PriceBar {
	bars := make([]domain.PriceBar, 0, days)
	close := startClose
	date := startDate
	for i := 0; i < days; i++ {
		for date.Weekday() == time.Saturday || date.Weekday() == time.Sunday {
			date = date.AddDate(0, 0, 1)
		}
		drift := math.Sin(float64(i)/7.0) * 0.01
		open := close
		close = close * (1 + drift)
		high := math.Max(open, close) * 1.005
		low := math.Min(open, close) * 0.995

		bars = append(bars, domain.PriceBar{
			Code:          code,
			Date:          date.Format("2006-01-02"),
			Open:          round2(open),
			High:          round2(high),
			Low:           round2(low),
			Close:         round2(close),
			Volume:        1_000_000,
			AdjustedClose: round2(close),
			MarketCap:     round2(close) * 5_000_000,
			SharesOut:     5_000_000,
		})
		date = date.AddDate(0, 0, 1)
	}
	return bars
}

// NewFundamentalFixtures returns a single annual fundamental disclosure per
// metric, available three months after the period end, matching the engine's
// anti-look-ahead AvailableDate convention.
func NewFundamentalFixtures(code string, periodEnd time.Time) []domain.FundamentalRecord {
	available := periodEnd.AddDate(0, 3, 0)
	return []domain.FundamentalRecord{
		{Code: code, PeriodEnd: periodEnd.Format("2006-01-02"), AvailableDate: available.Format("2006-01-02"), Metric: "net_income", Value: 1_200_000_000},
		{Code: code, PeriodEnd: periodEnd.Format("2006-01-02"), AvailableDate: available.Format("2006-01-02"), Metric: "equity", Value: 15_000_000_000},
		{Code: code, PeriodEnd: periodEnd.Format("2006-01-02"), AvailableDate: available.Format("2006-01-02"), Metric: "revenue", Value: 8_000_000_000},
	}
}

// NewStrategySpecFixture returns a minimal valid StrategySpec for tests.
func NewStrategySpecFixture() domain.StrategySpec {
	return domain.StrategySpec{
		Name: fmt.Sprintf("test-strategy-%d", time.Now().UnixNano()%1000),
		BuyConditions: []domain.Condition{
			{ID: "a", Factor: "RSI_14", Operator: domain.OpLT, Value: 30},
		},
		SellConditions: []domain.Condition{
			{ID: "a", Factor: "RSI_14", Operator: domain.OpGT, Value: 70},
		},
		PriorityFactor: "RSI_14",
		MaxPositions:   5,
		MinHoldDays:    3,
		SizingMode:     domain.SizingEqualWeight,
		RebalanceFreq:  domain.RebalanceWeekly,
		SellBasis:      domain.PriceBasisClose,
		CommissionRate: 0.00015,
		TaxRate:        0.0018,
		SlippageRate:   0.001,
		InitialCash:    10_000_000,
		StartDate:      "2023-01-01",
		EndDate:        "2023-12-31",
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
