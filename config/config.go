// Package config loads the forecast service configuration from environment variables
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment is the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "dev"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
)

// ParseEnvironment maps an ENV value to an Environment
func ParseEnvironment(env string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "development":
		return EnvDevelopment, nil
	case "staging":
		return EnvStaging, nil
	case "prod", "production":
		return EnvProduction, nil
	case "test":
		return EnvTest, nil
	default:
		return "", fmt.Errorf("ENV must be one of: [dev staging prod test], got: %s", env)
	}
}

func (e Environment) String() string {
	return string(e)
}

// Config holds all application configuration
type Config struct {
	Port              string
	Address           string
	Env               Environment
	LogLevel          string
	LogDir            string
	LogRetentionWeeks int   // Number of weeks to keep log files
	MaxLogFileSize    int64 // Maximum log file size in bytes
	MaxRequestBody    int64 // Maximum request body size in bytes
	MaxHeaderSize     int64 // Maximum header size in bytes

	ModelPath           string
	ModelURL            string        // Inference service base URL; takes precedence over ModelPath
	ModelTimeout        time.Duration // Per-call timeout of the inference service
	ModelReloadInterval time.Duration

	RecordsPath            string
	ForecastWorkers        int
	MaxMedicinesPerRequest int
	DatabaseURL            string // Forecast history; empty disables recording
}

// Load loads and validates configuration from environment variables
func Load() (*Config, error) {
	env, err := ParseEnvironment(getEnvWithDefault("ENV", "dev"))
	if err != nil {
		return nil, fmt.Errorf("configuration validation failed: invalid ENV: %w", err)
	}

	cfg := &Config{
		Port:              getEnvWithDefault("PORT", "8000"),
		Address:           getEnvWithDefault("ADDRESS", "127.0.0.1"),
		Env:               env,
		LogLevel:          getEnvWithDefault("LOG_LEVEL", "info"),
		LogDir:            getEnvWithDefault("LOG_DIR", "logs"),
		LogRetentionWeeks: getIntEnvWithDefault("LOG_RETENTION_WEEKS", 4),         // 4 weeks default
		MaxLogFileSize:    getInt64EnvWithDefault("MAX_LOG_FILE_SIZE", 104857600), // 100MB default
		MaxRequestBody:    getInt64EnvWithDefault("MAX_REQUEST_BODY", 1048576),    // 1MB default
		MaxHeaderSize:     getInt64EnvWithDefault("MAX_HEADER_SIZE", 1048576),     // 1MB default

		ModelPath:           getEnvWithDefault("MODEL_PATH", "models/medicine_demand.yaml"),
		ModelURL:            os.Getenv("MODEL_URL"),
		ModelTimeout:        getDurationEnvWithDefault("MODEL_TIMEOUT", 10*time.Second),
		ModelReloadInterval: getDurationEnvWithDefault("MODEL_RELOAD_INTERVAL", 6*time.Hour),

		RecordsPath:            getEnvWithDefault("RECORDS_PATH", "data/medicines.csv"),
		ForecastWorkers:        getIntEnvWithDefault("FORECAST_WORKERS", 4),
		MaxMedicinesPerRequest: getIntEnvWithDefault("MAX_MEDICINES_PER_REQUEST", 20),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// validateConfig validates all configuration values
func validateConfig(cfg *Config) error {
	// Validate PORT
	if err := validatePort(cfg.Port); err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	// Validate ADDRESS
	if err := validateAddress(cfg.Address); err != nil {
		return fmt.Errorf("invalid ADDRESS: %w", err)
	}

	// Validate LOG_LEVEL
	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	// Validate MAX_REQUEST_BODY
	if err := validateSizeLimit(cfg.MaxRequestBody, "MAX_REQUEST_BODY"); err != nil {
		return fmt.Errorf("invalid MAX_REQUEST_BODY: %w", err)
	}

	// Validate MAX_HEADER_SIZE
	if err := validateSizeLimit(cfg.MaxHeaderSize, "MAX_HEADER_SIZE"); err != nil {
		return fmt.Errorf("invalid MAX_HEADER_SIZE: %w", err)
	}

	// Validate LOG_RETENTION_WEEKS
	if err := validateLogRetentionWeeks(cfg.LogRetentionWeeks); err != nil {
		return fmt.Errorf("invalid LOG_RETENTION_WEEKS: %w", err)
	}

	// Validate MAX_LOG_FILE_SIZE
	if err := validateMaxLogFileSize(cfg.MaxLogFileSize); err != nil {
		return fmt.Errorf("invalid MAX_LOG_FILE_SIZE: %w", err)
	}

	// Validate MODEL_PATH / MODEL_URL
	if err := validateModelSource(cfg.ModelPath, cfg.ModelURL); err != nil {
		return fmt.Errorf("invalid model source: %w", err)
	}

	// Validate MODEL_TIMEOUT
	if err := validateDuration(cfg.ModelTimeout, 100*time.Millisecond, 5*time.Minute, "MODEL_TIMEOUT"); err != nil {
		return fmt.Errorf("invalid MODEL_TIMEOUT: %w", err)
	}

	// Validate MODEL_RELOAD_INTERVAL
	if err := validateDuration(cfg.ModelReloadInterval, time.Minute, 7*24*time.Hour, "MODEL_RELOAD_INTERVAL"); err != nil {
		return fmt.Errorf("invalid MODEL_RELOAD_INTERVAL: %w", err)
	}

	// Validate FORECAST_WORKERS
	if err := validateRange(cfg.ForecastWorkers, 1, 64, "FORECAST_WORKERS"); err != nil {
		return fmt.Errorf("invalid FORECAST_WORKERS: %w", err)
	}

	// Validate MAX_MEDICINES_PER_REQUEST
	if err := validateRange(cfg.MaxMedicinesPerRequest, 1, 100, "MAX_MEDICINES_PER_REQUEST"); err != nil {
		return fmt.Errorf("invalid MAX_MEDICINES_PER_REQUEST: %w", err)
	}

	// Validate DATABASE_URL
	if err := validateDatabaseURL(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("invalid DATABASE_URL: %w", err)
	}

	return nil
}

// validatePort validates the PORT environment variable
func validatePort(port string) error {
	if port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	portNum, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid number: %w", err)
	}

	if portNum < 1 || portNum > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	// Check for privileged ports
	if portNum < 1024 {
		return fmt.Errorf("PORT %d is privileged (less than 1024), use ports 1024-65535", portNum)
	}

	return nil
}

// validateAddress validates the ADDRESS environment variable
func validateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("ADDRESS cannot be empty")
	}

	// Check for localhost/loopback addresses first
	if address == "127.0.0.1" || address == "::1" || address == "localhost" {
		return nil
	}

	ip := net.ParseIP(address)
	if ip == nil {
		return fmt.Errorf("ADDRESS must be a valid IP address or 'localhost', got: %s", address)
	}

	// Unspecified addresses bind every interface, used inside containers
	if ip.IsUnspecified() {
		return nil
	}

	// Check for private network ranges (10.0.0.0/8, 172.16.0.0/12, 192.168.0.0/16)
	if !ip.IsLoopback() && !ip.IsPrivate() {
		return fmt.Errorf("ADDRESS %s is a public IP, consider using private network ranges for security", address)
	}

	return nil
}

// validateLogLevel validates the LOG_LEVEL environment variable
func validateLogLevel(logLevel string) error {
	if logLevel == "" {
		return fmt.Errorf("LOG_LEVEL cannot be empty")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	logLevel = strings.ToLower(logLevel)

	for _, level := range validLevels {
		if logLevel == level {
			return nil
		}
	}

	return fmt.Errorf("LOG_LEVEL must be one of: %v, got: %s", validLevels, logLevel)
}

// validateSizeLimit validates size limit configuration values
func validateSizeLimit(size int64, configName string) error {
	if size <= 0 {
		return fmt.Errorf("%s must be positive, got: %d", configName, size)
	}

	if size > 100*1024*1024 { // 100MB
		return fmt.Errorf("%s is too large (max 100MB), got: %d bytes", configName, size)
	}

	return nil
}

// validateLogRetentionWeeks validates the LOG_RETENTION_WEEKS environment variable
func validateLogRetentionWeeks(weeks int) error {
	if weeks <= 0 {
		return fmt.Errorf("LOG_RETENTION_WEEKS must be positive, got: %d", weeks)
	}

	if weeks > 52 { // 1 year maximum
		return fmt.Errorf("LOG_RETENTION_WEEKS is too large (max 52 weeks), got: %d", weeks)
	}

	return nil
}

// validateMaxLogFileSize validates the MAX_LOG_FILE_SIZE environment variable
func validateMaxLogFileSize(size int64) error {
	if size <= 0 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE must be positive, got: %d", size)
	}

	// Minimum 1MB, maximum 1GB
	if size < 1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too small (min 1MB), got: %d bytes", size)
	}

	if size > 1024*1024*1024 {
		return fmt.Errorf("MAX_LOG_FILE_SIZE is too large (max 1GB), got: %d bytes", size)
	}

	return nil
}

// validateModelSource requires an artifact path or a http(s) inference service URL
func validateModelSource(path, rawURL string) error {
	if rawURL == "" {
		if strings.TrimSpace(path) == "" {
			return fmt.Errorf("MODEL_PATH cannot be empty when MODEL_URL is not set")
		}
		return nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("MODEL_URL is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("MODEL_URL must use http or https, got: %s", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("MODEL_URL must include a host")
	}
	return nil
}

// validateDuration validates a duration lies within [minimum, maximum]
func validateDuration(d, minimum, maximum time.Duration, configName string) error {
	if d < minimum {
		return fmt.Errorf("%s is too small (min %s), got: %s", configName, minimum, d)
	}
	if d > maximum {
		return fmt.Errorf("%s is too large (max %s), got: %s", configName, maximum, d)
	}
	return nil
}

// validateRange validates an integer lies within [minimum, maximum]
func validateRange(value, minimum, maximum int, configName string) error {
	if value < minimum || value > maximum {
		return fmt.Errorf("%s must be between %d and %d, got: %d", configName, minimum, maximum, value)
	}
	return nil
}

// validateDatabaseURL accepts an empty value or a postgres URL
func validateDatabaseURL(rawURL string) error {
	if rawURL == "" {
		return nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("DATABASE_URL is not a valid URL: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return fmt.Errorf("DATABASE_URL must use the postgres scheme, got: %s", u.Scheme)
	}
	return nil
}

// getEnvWithDefault gets an environment variable with a default value
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnvWithDefault gets an environment variable as int with a default value
func getIntEnvWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getInt64EnvWithDefault gets an environment variable as int64 with a default value
func getInt64EnvWithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getDurationEnvWithDefault gets an environment variable as a Go duration with a default value
func getDurationEnvWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// GetEnvVars returns a list of all expected environment variables
func GetEnvVars() []string {
	return []string{
		"PORT",
		"ADDRESS",
		"ENV",
		"LOG_LEVEL",
		"LOG_DIR",
		"LOG_RETENTION_WEEKS",
		"MAX_LOG_FILE_SIZE",
		"MAX_REQUEST_BODY",
		"MAX_HEADER_SIZE",
		"MODEL_PATH",
		"MODEL_URL",
		"MODEL_TIMEOUT",
		"MODEL_RELOAD_INTERVAL",
		"RECORDS_PATH",
		"FORECAST_WORKERS",
		"MAX_MEDICINES_PER_REQUEST",
		"DATABASE_URL",
	}
}
