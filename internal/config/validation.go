package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Configuration validation failed with %d error(s):\n\n", len(ve)))
	for i, err := range ve {
		sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.Field, err.Message))
	}
	sb.WriteString("\nPlease fix the above errors and try again.\n")
	return sb.String()
}

// Validate performs comprehensive configuration validation
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateApp()...)
	errors = append(errors, c.validateLedger()...)
	errors = append(errors, c.validateFees()...)
	errors = append(errors, c.validateOracle()...)
	errors = append(errors, c.validateRedis()...)
	errors = append(errors, c.validateStore()...)
	errors = append(errors, c.validateEvents()...)
	errors = append(errors, c.validateMonitoring()...)
	errors = append(errors, c.validateEnvironmentRequirements()...)

	if len(errors) > 0 {
		return errors
	}

	return nil
}

func (c *Config) validateApp() ValidationErrors {
	var errors ValidationErrors

	if c.App.Name == "" {
		errors = append(errors, ValidationError{
			Field:   "app.name",
			Message: "Application name is required",
		})
	}

	if c.App.Environment == "" {
		errors = append(errors, ValidationError{
			Field:   "app.environment",
			Message: "Environment is required (development, staging, or production)",
		})
	} else {
		validEnvs := []string{"development", "staging", "production"}
		valid := false
		for _, env := range validEnvs {
			if c.App.Environment == env {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, ValidationError{
				Field:   "app.environment",
				Message: fmt.Sprintf("Invalid environment '%s'. Must be one of: %v", c.App.Environment, validEnvs),
			})
		}
	}

	if c.App.LogLevel == "" {
		errors = append(errors, ValidationError{
			Field:   "app.log_level",
			Message: "Log level is required (debug, info, warn, error)",
		})
	}

	if c.App.LogFormat != "" && c.App.LogFormat != "json" && c.App.LogFormat != "console" {
		errors = append(errors, ValidationError{
			Field:   "app.log_format",
			Message: fmt.Sprintf("Invalid log format '%s'. Must be 'json' or 'console'", c.App.LogFormat),
		})
	}

	return errors
}

func (c *Config) validateLedger() ValidationErrors {
	var errors ValidationErrors

	if c.Ledger.InitialBalance <= 0 {
		errors = append(errors, ValidationError{
			Field:   "ledger.initial_balance",
			Message: "Initial balance must be greater than 0",
		})
	}

	if !isCurrencyCode(c.Ledger.BaseCurrency) {
		errors = append(errors, ValidationError{
			Field:   "ledger.base_currency",
			Message: fmt.Sprintf("Invalid base currency '%s'. Must be a 3-letter uppercase code like USD", c.Ledger.BaseCurrency),
		})
	}

	return errors
}

func (c *Config) validateFees() ValidationErrors {
	var errors ValidationErrors

	if c.Fees.DefaultRate < 0 || c.Fees.DefaultRate > 0.1 {
		errors = append(errors, ValidationError{
			Field:   "fees.default_rate",
			Message: fmt.Sprintf("Invalid fee rate %.4f. Must be between 0-0.1", c.Fees.DefaultRate),
		})
	}

	for class, rate := range c.Fees.Rates {
		if rate < 0 || rate > 0.1 {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("fees.rates.%s", class),
				Message: fmt.Sprintf("Invalid fee rate %.4f. Must be between 0-0.1", rate),
			})
		}
	}

	return errors
}

func (c *Config) validateOracle() ValidationErrors {
	var errors ValidationErrors

	if c.Oracle.Provider != "static" && c.Oracle.Provider != "binance" {
		errors = append(errors, ValidationError{
			Field:   "oracle.provider",
			Message: fmt.Sprintf("Invalid oracle provider '%s'. Must be 'static' or 'binance'", c.Oracle.Provider),
		})
	}

	if c.Oracle.RequestTimeoutMS < 0 {
		errors = append(errors, ValidationError{
			Field:   "oracle.request_timeout_ms",
			Message: "Request timeout must be non-negative",
		})
	}

	if c.Oracle.RequestsPerSecond <= 0 {
		errors = append(errors, ValidationError{
			Field:   "oracle.requests_per_second",
			Message: "Rate limit must be greater than 0",
		})
	}

	if c.Oracle.Burst < 1 {
		errors = append(errors, ValidationError{
			Field:   "oracle.burst",
			Message: "Rate limit burst must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateRedis() ValidationErrors {
	var errors ValidationErrors

	if !c.Redis.Enabled {
		return errors
	}

	if c.Redis.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "redis.host",
			Message: "Redis host is required when the quote cache is enabled",
		})
	}

	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "redis.port",
			Message: fmt.Sprintf("Invalid port %d. Must be between 1-65535", c.Redis.Port),
		})
	}

	if c.Redis.DB < 0 {
		errors = append(errors, ValidationError{
			Field:   "redis.db",
			Message: "Redis DB index must be non-negative",
		})
	}

	if c.Redis.CacheTTL < 1 {
		errors = append(errors, ValidationError{
			Field:   "redis.cache_ttl",
			Message: "Quote cache TTL must be at least 1 second",
		})
	}

	return errors
}

func (c *Config) validateStore() ValidationErrors {
	var errors ValidationErrors

	switch c.Store.Backend {
	case "file":
		if c.Store.SnapshotPath == "" {
			errors = append(errors, ValidationError{
				Field:   "store.snapshot_path",
				Message: "Snapshot path is required for the file backend",
			})
		}
	case "postgres":
		if c.Store.LedgerName == "" {
			errors = append(errors, ValidationError{
				Field:   "store.ledger_name",
				Message: "Ledger name is required for the postgres backend",
			})
		}
		errors = append(errors, c.validateDatabase()...)
	default:
		errors = append(errors, ValidationError{
			Field:   "store.backend",
			Message: fmt.Sprintf("Invalid store backend '%s'. Must be 'file' or 'postgres'", c.Store.Backend),
		})
	}

	return errors
}

func (c *Config) validateDatabase() ValidationErrors {
	var errors ValidationErrors

	if c.Store.Database.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "store.database.host",
			Message: "Database host is required",
		})
	}

	if c.Store.Database.Port == 0 {
		errors = append(errors, ValidationError{
			Field:   "store.database.port",
			Message: "Database port is required",
		})
	} else if c.Store.Database.Port < 1 || c.Store.Database.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "store.database.port",
			Message: fmt.Sprintf("Invalid port %d. Must be between 1-65535", c.Store.Database.Port),
		})
	}

	if c.Store.Database.User == "" {
		errors = append(errors, ValidationError{
			Field:   "store.database.user",
			Message: "Database user is required",
		})
	}

	if c.Store.Database.Database == "" {
		errors = append(errors, ValidationError{
			Field:   "store.database.database",
			Message: "Database name is required",
		})
	}

	if c.Store.Database.Password == "" && c.App.Environment != "development" {
		errors = append(errors, ValidationError{
			Field:   "store.database.password",
			Message: "Database password is required in non-development environments",
		})
	}

	return errors
}

func (c *Config) validateEvents() ValidationErrors {
	var errors ValidationErrors

	if !c.Events.Enabled {
		return errors
	}

	if c.Events.URL == "" {
		errors = append(errors, ValidationError{
			Field:   "events.url",
			Message: "NATS URL is required when event publishing is enabled",
		})
	} else if !strings.HasPrefix(c.Events.URL, "nats://") {
		errors = append(errors, ValidationError{
			Field:   "events.url",
			Message: "NATS URL must start with 'nats://'",
		})
	}

	return errors
}

func (c *Config) validateMonitoring() ValidationErrors {
	var errors ValidationErrors

	if !c.Monitoring.EnableMetrics {
		return errors
	}

	if c.Monitoring.PrometheusPort < 1 || c.Monitoring.PrometheusPort > 65535 {
		errors = append(errors, ValidationError{
			Field:   "monitoring.prometheus_port",
			Message: fmt.Sprintf("Invalid port %d. Must be between 1-65535", c.Monitoring.PrometheusPort),
		})
	}

	if c.Monitoring.PollInterval < 1 {
		errors = append(errors, ValidationError{
			Field:   "monitoring.poll_interval",
			Message: "Poll interval must be at least 1 second",
		})
	}

	return errors
}

func (c *Config) validateEnvironmentRequirements() ValidationErrors {
	var errors ValidationErrors

	// Production-specific validations
	if c.App.Environment == "production" {
		if c.Oracle.Testnet {
			errors = append(errors, ValidationError{
				Field:   "oracle.testnet",
				Message: "Testnet mode must be disabled in production",
			})
		}

		if c.Store.Backend == "postgres" && c.Store.Database.SSLMode == "disable" {
			errors = append(errors, ValidationError{
				Field:   "store.database.ssl_mode",
				Message: "SSL must be enabled for database in production",
			})
		}
	}

	return errors
}

// isCurrencyCode reports whether code looks like an ISO 4217 currency
// code: exactly three uppercase ASCII letters.
func isCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
