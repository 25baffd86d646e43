package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/rtoken-labs/rvm/internal/chain"
	"github.com/rtoken-labs/rvm/internal/config"
	"github.com/rtoken-labs/rvm/internal/keeper"
	"github.com/rtoken-labs/rvm/internal/logger"
	"github.com/rtoken-labs/rvm/internal/state"
	"github.com/rtoken-labs/rvm/internal/web"
)

// main is the entry point for the recollateralization keeper.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(os.Getenv("LOG_LEVEL"))
	log.Info().Msg("RToken keeper starting...")

	// Initialize Database Connection
	dbCfg := state.DBConfig{
		Host: config.DBHost, Port: config.DBPort,
		User: config.DBUser, Password: config.DBPassword,
		DBName: config.DBName, SSLMode: config.DBSSLMode,
	}
	if err := state.InitDB(dbCfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer state.CloseDB()
	if err := state.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure database schema")
	}

	// Load Protocol Parameters
	params, err := state.GetActiveProtocolParameters(config.DefaultParametersName)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load active protocol parameters, using defaults and saving.")
		defaults := config.DefaultProtocolParameters()
		if _, err := state.SaveProtocolParameters(config.DefaultParametersName, config.DefaultParametersVersion, defaults); err != nil {
			log.Fatal().Err(err).Msg("Failed to save initial default protocol parameters.")
		}
		params = &defaults
	}
	log.Info().Msg("Protocol parameters loaded successfully.")

	// --- 2. Chain Connection ---
	client, err := chain.Dial(config.EthRPC)
	if err != nil {
		log.Fatal().Err(err).Str("endpoint", config.EthRPC).Msg("Failed to connect to EVM RPC")
	}
	defer client.Close()
	log.Info().Str("endpoint", config.EthRPC).Msg("EVM RPC connected")

	// --- 3. Component Wiring from Deployment ---
	deployment, err := config.LoadDeployment(config.DeploymentFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load deployment descriptor")
	}

	comps, err := buildComponents(deployment, params, client)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build protocol components")
	}
	log.Info().Str("mode", config.Mode).Msg("Protocol components wired")

	ctx := context.Background()

	if err := seedBackingFromChain(ctx, deployment, client, comps.backingAcct, comps.registry); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed backing account from chain balances")
	}

	// Derive the initial basket before the first cycle.
	comps.registry.Refresh(ctx, time.Now())
	if err := comps.basket.RefreshBasket(time.Now()); err != nil {
		log.Warn().Err(err).Msg("Initial basket derivation failed; keeper will retry each cycle")
	}

	// --- 4. Web Server ---
	webServer := web.NewWebServer(config.WebPort, comps.keeper)
	go func() {
		log.Info().Str("port", config.WebPort).Msg("Starting monitoring API")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed to start")
		}
	}()

	// --- 5. Keeper Loop ---
	service, err := keeper.NewService(comps.keeper, comps.executor, state.Recorder{})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create keeper service")
	}

	log.Info().Dur("interval", config.KeeperInterval).Msg("Starting keeper loop")
	service.RunLoop(ctx, config.KeeperInterval)
}
