package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// Mode selects how the keeper executes actions: "shadow" dry-runs against
	// the in-process venue, "chain" dry-runs calldata with eth_call.
	Mode string

	// DeploymentFile is the path to the JSON deployment describing assets and
	// the prime basket.
	DeploymentFile string

	// KeeperInterval is the poll interval of the keeper loop.
	KeeperInterval time.Duration

	// WebPort is the port for the monitoring API.
	WebPort string

	// EthRPC is the EVM RPC endpoint used for oracle and balance reads.
	EthRPC string

	// Database connection settings.
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// All environment variables are required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	Mode, err = getEnv("RVM_MODE")
	if err != nil {
		return err
	}
	if Mode != "shadow" && Mode != "chain" {
		return errors.New("RVM_MODE must be \"shadow\" or \"chain\", got: " + Mode)
	}

	DeploymentFile, err = getEnv("RVM_DEPLOYMENT_FILE")
	if err != nil {
		return err
	}

	intervalSeconds, err := getEnvAsUint64("KEEPER_INTERVAL_SECONDS")
	if err != nil {
		return err
	}
	if intervalSeconds == 0 {
		return errors.New("KEEPER_INTERVAL_SECONDS must be positive")
	}
	KeeperInterval = time.Duration(intervalSeconds) * time.Second

	WebPort, err = getEnv("WEB_PORT")
	if err != nil {
		return err
	}

	// Both modes price collateral from the chain; only execution differs.
	EthRPC, err = getEnv("ETH_RPC_URL")
	if err != nil {
		return err
	}

	if err := loadDatabaseConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("Mode", Mode).
		Str("DeploymentFile", DeploymentFile).
		Dur("KeeperInterval", KeeperInterval).
		Msg("Configuration loaded successfully.")

	return nil
}

// loadDatabaseConfig loads database connection settings.
func loadDatabaseConfig() error {
	var err error

	DBHost, err = getEnv("DB_HOST")
	if err != nil {
		return err
	}
	DBPort, err = getEnvAsInt("DB_PORT")
	if err != nil {
		return err
	}
	DBUser, err = getEnv("DB_USER")
	if err != nil {
		return err
	}
	DBPassword, err = getEnv("DB_PASSWORD")
	if err != nil {
		return err
	}
	DBName, err = getEnv("DB_NAME")
	if err != nil {
		return err
	}
	DBSSLMode, err = getEnv("DB_SSLMODE")
	if err != nil {
		return err
	}
	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsInt retrieves an environment variable as an int. Returns error if not set or invalid.
func getEnvAsInt(key string) (int, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid int, got: " + valueStr)
	}
	return value, nil
}
