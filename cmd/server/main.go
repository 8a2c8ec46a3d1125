// Package main is the entry point for the backtesting and live paper-trading
// engine. It wires the price/fundamentals store, the two-tier cache, the
// sandbox broker, the backtest orchestrator, the scheduled live-execution
// jobs, and the HTTP API into a single running process.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/kr-backtest/internal/config"
	"github.com/aristath/kr-backtest/internal/database"
	"github.com/aristath/kr-backtest/internal/domain"
	"github.com/aristath/kr-backtest/internal/modules/backtest"
	"github.com/aristath/kr-backtest/internal/modules/broker"
	"github.com/aristath/kr-backtest/internal/modules/cache"
	"github.com/aristath/kr-backtest/internal/modules/live"
	"github.com/aristath/kr-backtest/internal/modules/priceadapter"
	"github.com/aristath/kr-backtest/internal/modules/progress"
	"github.com/aristath/kr-backtest/internal/scheduler"
	"github.com/aristath/kr-backtest/internal/server"
	"github.com/aristath/kr-backtest/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	log.Info().Str("data_dir", cfg.DataDir).Msg("starting kr-backtest")

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

	backtestDB, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "backtest.db"), Profile: database.ProfileLedger, Name: "backtest",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open backtest database")
	}
	defer backtestDB.Close()

	cacheDB, err := database.New(database.Config{
		Path: filepath.Join(cfg.DataDir, "cache.db"), Profile: database.ProfileCache, Name: "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open cache database")
	}
	defer cacheDB.Close()

	for _, db := range []*database.DB{universeDB, pricesDB, backtestDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", db.Name()).Msg("schema migration failed")
		}
	}

	priceStore := priceadapter.New(pricesDB, universeDB, log)
	cacheLayer, err := cache.New(cacheDB, cache.Config{LRUCapacity: cfg.LRUCacheCapacity}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize cache layer")
	}

	sandboxBroker := broker.NewSandboxBroker(10_000_000)
	sandboxBroker.SetCredentials(cfg.BrokerAPIKey, cfg.BrokerAPISecret)

	progressManager := progress.NewManager(log)
	backtestRepo := backtest.NewRepository(backtestDB)

	archiverCtx, archiverCancel := context.WithTimeout(context.Background(), 10*time.Second)
	archiver, err := backtest.NewArchiver(archiverCtx, cfg, log)
	archiverCancel()
	if err != nil {
		log.Warn().Err(err).Msg("result archival disabled: failed to initialize S3 client")
		archiver = nil
	}

	engine := backtest.NewEngine(priceStore, cacheLayer, backtestRepo, progressManager, string(cfg.FactorBackend), cfg.CacheTTLDays, archiver, log)

	liveRepo := live.NewRepository(backtestDB)
	selectionJob := live.NewSelectionJob(liveRepo, priceStore, string(cfg.FactorBackend), log)
	credRefresher := live.NewCredentialRefresher(func() (string, string, time.Time) {
		return cfg.BrokerAPIKey, cfg.BrokerAPISecret, time.Time{}
	})
	executionJob := live.NewExecutionJob(liveRepo, domain.BrokerClient(sandboxBroker), credRefresher, log)

	sched := scheduler.New(log)
	if err := sched.AddJob("0 7 * * MON-FRI", selectionJob); err != nil {
		log.Fatal().Err(err).Msg("failed to register selection job")
	}
	if err := sched.AddJob("0 9 * * MON-FRI", executionJob); err != nil {
		log.Fatal().Err(err).Msg("failed to register execution job")
	}
	sched.Start()

	httpServer := server.New(server.Config{
		Log:        log,
		Config:     cfg,
		Engine:     engine,
		Repository: backtestRepo,
		Progress:   progressManager,
		PriceStore: priceStore,
		Port:       cfg.Port,
		DevMode:    cfg.DevMode,
	})

	go func() {
		if err := httpServer.Start(); err != nil {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}
}
