package main

import (
	"log"
	"os"
	"strconv"

	"github.com/hannes/pagepack/config"
)

const TRUE = "true"

// loadConfigFromEnv loads configuration from environment variables
func loadConfigFromEnv(cfg *config.Config) error {
	if err := loadModeConfig(cfg); err != nil {
		return err
	}
	loadBuildConfig(cfg)
	loadServerConfig(cfg)
	loadDatabaseConfig(cfg)
	loadLoggingConfig(cfg)
	loadSentryConfig(cfg)
	return nil
}

// loadModeConfig reads PAGEPACK_MODE, then NODE_ENV, when either is set
func loadModeConfig(cfg *config.Config) error {
	if os.Getenv("PAGEPACK_MODE") == "" && os.Getenv("NODE_ENV") == "" {
		return nil
	}
	mode, err := config.ModeFromEnv()
	if err != nil {
		return err
	}
	cfg.Mode = mode
	return nil
}

// loadBuildConfig loads entry and output overrides from environment variables
func loadBuildConfig(cfg *config.Config) {
	if entry := os.Getenv("PAGEPACK_ENTRY"); entry != "" {
		cfg.Entry = entry
		cfg.Entries = nil
	}

	if output := os.Getenv("PAGEPACK_OUTPUT"); output != "" {
		cfg.Output.Path = output
	}
}

// loadServerConfig loads server configuration from environment variables
func loadServerConfig(cfg *config.Config) {
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = envInt("PORT", port, cfg.Server.Port)
	}

	if port := os.Getenv("DEV_PORT"); port != "" {
		cfg.DevServer.Port = envInt("DEV_PORT", port, cfg.DevServer.Port)
	}

	if rps := os.Getenv("RATE_LIMIT_RPS"); rps != "" {
		if v, err := strconv.ParseFloat(rps, 64); err == nil {
			cfg.Server.RateLimit.RequestsPerSecond = v
		} else {
			log.Printf("Ignoring RATE_LIMIT_RPS=%q: %v", rps, err)
		}
	}

	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		cfg.Server.RateLimit.Burst = envInt("RATE_LIMIT_BURST", burst, cfg.Server.RateLimit.Burst)
	}
}

// loadDatabaseConfig loads database configuration from environment variables
func loadDatabaseConfig(cfg *config.Config) {
	if driver := os.Getenv("DB_DRIVER"); driver != "" {
		cfg.Database.Driver = driver
	}

	if path := os.Getenv("DB_PATH"); path != "" {
		cfg.Database.Path = path
	}

	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Database.Host = host
	}

	if port := os.Getenv("DB_PORT"); port != "" {
		cfg.Database.Port = envInt("DB_PORT", port, cfg.Database.Port)
	}

	if dbName := os.Getenv("DB_NAME"); dbName != "" {
		cfg.Database.Name = dbName
	}

	if user := os.Getenv("DB_USER"); user != "" {
		cfg.Database.Username = user
	}

	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Database.Password = password
	}

	if sslMode := os.Getenv("DB_SSL_MODE"); sslMode != "" {
		cfg.Database.SSLMode = sslMode
	}
}

// loadLoggingConfig loads logging configuration from environment variables
func loadLoggingConfig(cfg *config.Config) {
	if logVerbose := os.Getenv("LOG_VERBOSE"); logVerbose != "" {
		cfg.Logging.LogVerbose = logVerbose == TRUE
	}

	if logRequests := os.Getenv("LOG_REQUESTS"); logRequests != "" {
		cfg.Logging.LogRequests = logRequests == TRUE
	}
}

// loadSentryConfig loads error reporting configuration from environment variables
func loadSentryConfig(cfg *config.Config) {
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		cfg.Sentry.DSN = dsn
	}

	if environment := os.Getenv("SENTRY_ENVIRONMENT"); environment != "" {
		cfg.Sentry.Environment = environment
	}
}

func envInt(name, value string, fallback int) int {
	v, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Ignoring %s=%q: %v", name, value, err)
		return fallback
	}
	return v
}
