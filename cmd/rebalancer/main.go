package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/scobru/baluni-sub001/internal/config"
	"github.com/scobru/baluni-sub001/internal/engine"
	"github.com/scobru/baluni-sub001/internal/executor"
	"github.com/scobru/baluni-sub001/internal/logger"
	"github.com/scobru/baluni-sub001/internal/market"
	"github.com/scobru/baluni-sub001/internal/planner"
	"github.com/scobru/baluni-sub001/internal/signals"
	"github.com/scobru/baluni-sub001/internal/state"
	"github.com/scobru/baluni-sub001/internal/valuer"
	"github.com/scobru/baluni-sub001/internal/vault"
	"github.com/scobru/baluni-sub001/internal/wallet"
	"github.com/scobru/baluni-sub001/internal/web"
)

// main is the entry point for the rebalancer.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("Rebalancer starting...")

	// Initialize database connection
	dbCfg := state.DBConfig{
		Host: os.Getenv("DB_HOST"), Port: mustAtoi(os.Getenv("DB_PORT"), 5432),
		User: os.Getenv("DB_USER"), Password: os.Getenv("DB_PASSWORD"),
		DBName: os.Getenv("DB_NAME"), SSLMode: os.Getenv("DB_SSLMODE"),
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// Load strategy parameters, seeding the store with defaults on first run
	if _, err := state.LoadActiveStrategyParameters(engine.DEFAULT_CONFIG_NAME); err != nil {
		log.Warn().Err(err).Msg("No active strategy parameters, saving defaults.")
		if _, err := state.SaveStrategyParameters(config.DefaultStrategyParameters,
			engine.DEFAULT_CONFIG_NAME, engine.DEFAULT_CONFIG_VERSION, true); err != nil {
			log.Fatal().Err(err).Msg("Failed to save initial default strategy parameters.")
		}
	}
	log.Info().Msg("Strategy parameters ready.")

	// --- 2. Start Web Server ---
	webServer := web.NewWebServer(cfg.WebPort, engine.DEFAULT_CONFIG_NAME)
	go func() {
		log.Info().Str("port", cfg.WebPort).Msg("Starting rebalancer API server")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 3. Wire Components ---
	reference, err := cfg.ReferenceAsset()
	if err != nil {
		log.Fatal().Err(err).Msg("Reference asset misconfigured")
	}

	rpcClient := market.NewRPCClient(cfg.RPCEndpoint)
	oracle := market.NewHTTPOracle(cfg.PriceAPIURL)
	balanceReader := market.NewRPCBalanceReader(rpcClient)
	relayer := wallet.NewRelayer(cfg.RelayerURL)
	vaultClient := vault.NewClient(rpcClient, relayer)
	swapper := wallet.NewSwapAdapter(relayer, oracle, reference)

	portfolioValuer := valuer.New(oracle, balanceReader, vaultClient,
		cfg.Account, reference, cfg.Assets, cfg.ValuationConcurrency)
	sequencer := executor.New(swapper, vaultClient, relayer,
		cfg.Account, reference, cfg.AssetMap(), cfg.ConfirmTimeout)

	rebalancer, err := engine.New(engine.Config{
		Valuer:          portfolioValuer,
		Planner:         planner.New(),
		Sequencer:       sequencer,
		Signals:         signals.NewTA(oracle),
		Account:         cfg.Account,
		ReferenceSymbol: cfg.ReferenceSymbol,
		ConfigName:      engine.DEFAULT_CONFIG_NAME,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create rebalancing engine")
	}
	log.Info().Msg("Engine created successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- 4. Run ---
	if cfg.RunOnce {
		log.Info().Msg("RUN_ONCE set, executing a single cycle")
		if err := rebalancer.RunCycle(ctx); err != nil {
			log.Error().Err(err).Msg("Cycle failed")
			os.Exit(1)
		}
		return
	}

	scheduler := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))
	if _, err := scheduler.AddFunc(cfg.Schedule, func() {
		if err := rebalancer.RunCycle(ctx); err != nil {
			log.Error().Err(err).Msg("Cycle failed")
		}
	}); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.Schedule).Msg("Invalid cycle schedule")
	}

	log.Info().Str("schedule", cfg.Schedule).Msg("Scheduler starting")
	scheduler.Start()

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received, stopping scheduler")
	<-scheduler.Stop().Done()
	log.Info().Msg("Rebalancer stopped")
}

// Helper to convert string to int with a default value
func mustAtoi(s string, defaultValue int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return i
}
