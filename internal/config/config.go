// Package config provides configuration management functionality.
//
// Configuration Loading Order:
// 1. Load from .env file (if exists)
// 2. Load from environment variables
//
// Data Directory Priority (highest to lowest):
// 1. --data-dir CLI flag (if provided)
// 2. BACKTEST_DATA_DIR environment variable
// 3. ./data (default)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// FactorBackend selects which Factor Engine implementation is active.
type FactorBackend string

const (
	FactorBackendDataframe FactorBackend = "dataframe"
	FactorBackendColumnar  FactorBackend = "columnar"
	FactorBackendJIT       FactorBackend = "jit"
)

// Config holds application configuration.
type Config struct {
	DataDir          string        // Base directory for all sqlite databases, always absolute
	LogLevel         string        // Log level (debug, info, warn, error)
	Port             int           // HTTP server port
	DevMode          bool          // Development mode flag (enables pretty console logs)
	BrokerAPIKey     string        // Sandbox/paper broker API key
	BrokerAPISecret  string        // Sandbox/paper broker API secret
	CacheAddr        string        // CACHE_ADDR value; not read by the cache layer, whose remote tier is the cache SQLite database
	FactorBackend    FactorBackend // Which factor engine backend to run
	LRUCacheCapacity int           // In-process LRU entry capacity
	CacheTTLDays     int           // Remote cache entry TTL, in days
	S3Bucket         string        // Optional S3-compatible bucket for result archival
	S3Region         string
}

// Load reads configuration from environment variables.
//
// dataDirOverride - Optional CLI flag override for data directory (takes highest priority)
func Load(dataDirOverride ...string) (*Config, error) {
	_ = godotenv.Load()

	var dataDir string
	if len(dataDirOverride) > 0 && dataDirOverride[0] != "" {
		dataDir = dataDirOverride[0]
	} else {
		dataDir = getEnv("BACKTEST_DATA_DIR", "")
		if dataDir == "" {
			dataDir = "./data"
		}
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:          absDataDir,
		Port:             getEnvAsInt("GO_PORT", 8010),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		BrokerAPIKey:     getEnv("BROKER_API_KEY", ""),
		BrokerAPISecret:  getEnv("BROKER_API_SECRET", ""),
		CacheAddr:        getEnv("CACHE_ADDR", ""),
		FactorBackend:    FactorBackend(getEnv("FACTOR_BACKEND", string(FactorBackendDataframe))),
		LRUCacheCapacity: getEnvAsInt("LRU_CACHE_CAPACITY", 500),
		CacheTTLDays:     getEnvAsInt("CACHE_TTL_DAYS", 30),
		S3Bucket:         getEnv("S3_RESULTS_BUCKET", ""),
		S3Region:         getEnv("S3_REGION", "ap-northeast-2"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present.
func (c *Config) Validate() error {
	switch c.FactorBackend {
	case FactorBackendDataframe, FactorBackendColumnar, FactorBackendJIT:
	default:
		return fmt.Errorf("invalid FACTOR_BACKEND: %q", c.FactorBackend)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
