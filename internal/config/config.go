package config

import (
	"os"
	"strconv"

	"semfit/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Data      DataConfig
	Estimator EstimatorConfig
}

// DataConfig holds input data settings
type DataConfig struct {
	SurveyFile string
}

// EstimatorConfig holds estimation settings
type EstimatorConfig struct {
	// Reliability is the external reliability estimate for the self-rated
	// health indicator; the fixed residual is (1 - Reliability) * Var(srh).
	Reliability   float64
	MaxIterations int
	Tolerance     float64
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Data: DataConfig{
			SurveyFile: getEnvOrDefault("SURVEY_FILE", ""),
		},
		Estimator: EstimatorConfig{
			Reliability:   getEnvFloatOrDefault("SRH_RELIABILITY", 0.611),
			MaxIterations: getEnvIntOrDefault("SEM_MAX_ITERATIONS", 500),
			Tolerance:     getEnvFloatOrDefault("SEM_TOLERANCE", 1e-9),
		},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func validateConfig(config *Config) error {
	if config.Estimator.Reliability <= 0 || config.Estimator.Reliability >= 1 {
		return errors.ConfigInvalid("SRH_RELIABILITY must be in (0, 1)")
	}
	if config.Estimator.MaxIterations <= 0 {
		return errors.ConfigInvalid("SEM_MAX_ITERATIONS must be positive")
	}
	if config.Estimator.Tolerance <= 0 {
		return errors.ConfigInvalid("SEM_TOLERANCE must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
