// Package main is the Cache Warmer: an offline batch job that precomputes
// factor tables for a fixed set of well-known strategies over a trailing
// one-year window, so the first user to request one of them hits a warm
// Cache Layer instead of a cold factor computation.
package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/aristath/kr-backtest/internal/config"
	"github.com/aristath/kr-backtest/internal/database"
	"github.com/aristath/kr-backtest/internal/domain"
	"github.com/aristath/kr-backtest/internal/modules/backtest"
	"github.com/aristath/kr-backtest/internal/modules/cache"
	"github.com/aristath/kr-backtest/internal/modules/priceadapter"
	"github.com/aristath/kr-backtest/internal/modules/progress"
	"github.com/aristath/kr-backtest/pkg/logger"
)

// famousStrategies is the fixed set of well-known factor combinations worth
// pre-warming. Real deployments would load this from config; kept as a
// literal list here since it names a small, stable set of textbook
// strategies rather than anything user-configurable.
func famousStrategies(start, end string) []domain.StrategySpec {
	base := domain.StrategySpec{
		MaxPositions:    20,
		MinHoldDays:     5,
		StopLossPct:     -0.10,
		TakeProfitPct:   0.30,
		MaxHoldDays:     120,
		SizingMode:      domain.SizingEqualWeight,
		RebalanceFreq:   domain.RebalanceMonthly,
		SellBasis:       domain.PriceBasisOpen,
		CommissionRate:  0.00015,
		TaxRate:         0.0023,
		SlippageRate:    0.001,
		InitialCash:     100_000_000,
		StartDate:       start,
		EndDate:         end,
		PriorityOrder:   domain.PriorityAscending,
	}

	magicFormula := base
	magicFormula.Name = "magic_formula"
	magicFormula.Market = domain.MarketKOSPI
	magicFormula.BuyConditions = []domain.Condition{
		{ID: "a", Factor: "PER", Operator: domain.OpLT, Value: 15},
		{ID: "b", Factor: "ROE", Operator: domain.OpGT, Value: 10},
	}
	magicFormula.SellConditions = []domain.Condition{
		{ID: "a", Factor: "PER", Operator: domain.OpGT, Value: 25},
	}
	magicFormula.PriorityFactor = "EARNINGS_YIELD"
	magicFormula.PriorityOrder = domain.PriorityDescending

	lowPBRHighROE := base
	lowPBRHighROE.Name = "low_pbr_high_roe"
	lowPBRHighROE.Market = domain.MarketKOSPI
	lowPBRHighROE.BuyConditions = []domain.Condition{
		{ID: "a", Factor: "PBR", Operator: domain.OpLT, Value: 1},
		{ID: "b", Factor: "ROE", Operator: domain.OpGT, Value: 8},
	}
	lowPBRHighROE.SellConditions = []domain.Condition{
		{ID: "a", Factor: "PBR", Operator: domain.OpGT, Value: 2},
	}
	lowPBRHighROE.PriorityFactor = "PBR"
	lowPBRHighROE.PriorityOrder = domain.PriorityAscending

	momentum := base
	momentum.Name = "momentum_12_1"
	momentum.Market = domain.MarketKOSDAQ
	momentum.BuyConditions = []domain.Condition{
		{ID: "a", Factor: "MOMENTUM_12M", Operator: domain.OpGT, Value: 0},
	}
	momentum.SellConditions = []domain.Condition{
		{ID: "a", Factor: "MOMENTUM_12M", Operator: domain.OpLT, Value: 0},
	}
	momentum.PriorityFactor = "MOMENTUM_12M"
	momentum.PriorityOrder = domain.PriorityDescending

	return []domain.StrategySpec{magicFormula, lowPBRHighROE, momentum}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode}).With().Str("component", "cachewarmer").Logger()

	universeDB, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "universe.db"), Profile: database.ProfileStandard, Name: "universe",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open universe database")
	}
	defer universeDB.Close()

	pricesDB, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "prices.db"), Profile: database.ProfileStandard, Name: "prices",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open prices database")
	}
	defer pricesDB.Close()

	cacheDB, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "cache.db"), Profile: database.ProfileCache, Name: "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open cache database")
	}
	defer cacheDB.Close()
	if err := cacheDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("cache schema migration failed")
	}

	priceStore := priceadapter.New(pricesDB, universeDB, log)
	cacheLayer, err := cache.New(cacheDB, cache.Config{LRUCapacity: cfg.LRUCacheCapacity}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize cache layer")
	}

	// No repository/progress persistence needed for a warm-only run; the
	// engine is used solely for its WarmFactorCache stage.
	progressManager := progress.NewManager(log)
	engine := backtest.NewEngine(priceStore, cacheLayer, nil, progressManager, string(cfg.FactorBackend), cfg.CacheTTLDays, nil, log)

	end := time.Now().Format("2006-01-02")
	start := time.Now().AddDate(-1, 0, 0).Format("2006-01-02")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	for _, spec := range famousStrategies(start, end) {
		log.Info().Str("strategy", spec.Name).Str("market", string(spec.Market)).Msg("warming factor cache")
		if err := engine.WarmFactorCache(ctx, spec); err != nil {
			log.Error().Err(err).Str("strategy", spec.Name).Msg("cache warm failed, continuing with remaining strategies")
			continue
		}
		log.Info().Str("strategy", spec.Name).Msg("factor cache warmed")
	}
}
