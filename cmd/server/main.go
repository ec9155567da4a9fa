// Package main is the entry point for the rebalancer analysis service.
// The service backtests periodic rebalancing of a configured portfolio over
// stored price history, computes risk metrics and composite scores, and
// serves reports and charts over HTTP.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mkarlis/rebalancer/internal/config"
	"github.com/mkarlis/rebalancer/internal/database"
	"github.com/mkarlis/rebalancer/internal/modules/backtest"
	"github.com/mkarlis/rebalancer/internal/modules/calculations"
	"github.com/mkarlis/rebalancer/internal/modules/charts"
	"github.com/mkarlis/rebalancer/internal/modules/universe"
	"github.com/mkarlis/rebalancer/internal/scheduler"
	"github.com/mkarlis/rebalancer/internal/server"
	"github.com/mkarlis/rebalancer/internal/services"
	"github.com/mkarlis/rebalancer/pkg/logger"
)

func main() {
	// Load configuration first to get log level
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Int("port", cfg.Port).
		Int("assets", len(cfg.Weights)).
		Int("benchmarks", len(cfg.Benchmarks)).
		Msg("Starting rebalancer")

	// Databases
	historyDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "history.db"),
		Profile: database.ProfileStandard,
		Name:    "history",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open history database")
	}
	defer historyDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	for _, db := range []*database.DB{historyDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", db.Name()).Msg("Migration failed")
		}
	}

	// Services
	history := universe.NewHistoryDB(historyDB.Conn(), log)
	for _, ticker := range cfg.Weights.Tickers() {
		if err := history.RegisterAsset(ticker); err != nil {
			log.Fatal().Err(err).Str("ticker", ticker).Msg("Failed to register asset")
		}
	}
	for _, benchmark := range cfg.Benchmarks {
		if err := history.RegisterAsset(benchmark); err != nil {
			log.Fatal().Err(err).Str("ticker", benchmark).Msg("Failed to register benchmark")
		}
	}

	reportCache := calculations.NewReportCache(
		cacheDB.Conn(),
		time.Duration(cfg.CacheTTLHours)*time.Hour,
		log,
	)
	analysis := services.NewAnalysisService(
		cfg,
		history,
		reportCache,
		backtest.NewAggregator(cfg.Analysis, log),
		charts.NewService(log),
		log,
	)

	// Background refresh
	sched := scheduler.New(log)
	refreshJob := scheduler.NewRefreshJob(analysis, []*database.DB{historyDB, cacheDB}, log)
	if err := sched.AddJob(cfg.RefreshSchedule, refreshJob); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.RefreshSchedule).Msg("Failed to register refresh job")
	}
	sched.Start()
	defer sched.Stop()

	// HTTP server
	srv := server.New(server.Config{
		Log:       log,
		Config:    cfg,
		HistoryDB: historyDB,
		CacheDB:   cacheDB,
		History:   history,
		Analysis:  analysis,
		Scheduler: sched,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	// Wait for shutdown signal or server failure
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}

	log.Info().Msg("Rebalancer stopped")
}
