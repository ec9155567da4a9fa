// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/mkarlis/rebalancer/internal/domain"
)

// Config holds application configuration
type Config struct {
	DataDir         string // Base directory for all databases (always absolute)
	Port            int
	LogLevel        string
	DevMode         bool
	Weights         domain.Weights // ticker -> target fraction, validated at load
	Benchmarks      []string
	DefaultScope    domain.Scope
	RefreshSchedule string // cron expression for the analysis refresh job
	CacheTTLHours   int    // report cache freshness window
	Analysis        domain.AnalysisConfig
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("REBALANCER_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	weights, err := parseWeights(getEnv("PORTFOLIO_WEIGHTS", ""))
	if err != nil {
		return nil, err
	}

	scope, err := domain.ParseScope(getEnv("DEFAULT_SCOPE", string(domain.MutualRange)))
	if err != nil {
		return nil, fmt.Errorf("DEFAULT_SCOPE: %w", err)
	}

	cfg := &Config{
		DataDir:         absDataDir,
		Port:            getEnvAsInt("PORT", 8001),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		Weights:         weights,
		Benchmarks:      parseList(getEnv("BENCHMARKS", "")),
		DefaultScope:    scope,
		RefreshSchedule: getEnv("REFRESH_SCHEDULE", "0 0 6 * * *"), // daily at 06:00
		CacheTTLHours:   getEnvAsInt("CACHE_TTL_HOURS", 24),
		Analysis:        domain.DefaultAnalysisConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present. Weight validation is
// the pipeline's single fail-fast precondition, so it runs here, once.
func (c *Config) Validate() error {
	if len(c.Weights) == 0 {
		return fmt.Errorf("PORTFOLIO_WEIGHTS is required (e.g. \"VAS.AX:0.5,IVV:0.5\")")
	}
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if c.CacheTTLHours <= 0 {
		return fmt.Errorf("CACHE_TTL_HOURS must be positive, got %d", c.CacheTTLHours)
	}
	return nil
}

// parseWeights parses "TICKER:WEIGHT,TICKER:WEIGHT" pairs.
func parseWeights(raw string) (domain.Weights, error) {
	weights := make(domain.Weights)
	if strings.TrimSpace(raw) == "" {
		return weights, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("PORTFOLIO_WEIGHTS: malformed pair %q", pair)
		}
		ticker := strings.TrimSpace(parts[0])
		weight, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("PORTFOLIO_WEIGHTS: invalid weight for %s: %w", ticker, err)
		}
		weights[ticker] = weight
	}
	return weights, nil
}

func parseList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Helper functions
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
