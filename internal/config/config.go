package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Fees       FeesConfig       `mapstructure:"fees"`
	Oracle     OracleConfig     `mapstructure:"oracle"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Store      StoreConfig      `mapstructure:"store"`
	Events     EventsConfig     `mapstructure:"events"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Assets     AssetsConfig     `mapstructure:"assets"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"` // development, staging, production
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"` // "json" or "console"
}

// LedgerConfig contains the starting state of the paper portfolio
type LedgerConfig struct {
	InitialBalance float64 `mapstructure:"initial_balance"` // in the base currency
	BaseCurrency   string  `mapstructure:"base_currency"`   // ISO 4217 code, e.g. "USD"
}

// FeesConfig contains commission rates by asset class
type FeesConfig struct {
	DefaultRate float64            `mapstructure:"default_rate"` // fraction, e.g. 0.001 = 0.1%
	Rates       map[string]float64 `mapstructure:"rates"`        // keyed by asset class name
}

// GetRate returns the commission rate for an asset class, falling back
// to the default rate for unknown classes.
func (c *FeesConfig) GetRate(class string) float64 {
	if rate, ok := c.Rates[class]; ok {
		return rate
	}
	return c.DefaultRate
}

// OracleConfig contains price oracle settings
type OracleConfig struct {
	Provider          string  `mapstructure:"provider"` // "static" or "binance"
	APIKey            string  `mapstructure:"api_key"`
	SecretKey         string  `mapstructure:"secret_key"`
	Testnet           bool    `mapstructure:"testnet"`
	RequestTimeoutMS  int     `mapstructure:"request_timeout_ms"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// GetRequestTimeout returns the oracle request timeout as time.Duration
func (c *OracleConfig) GetRequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// RedisConfig contains the optional quote cache settings
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	CacheTTL int    `mapstructure:"cache_ttl"` // seconds
}

// GetRedisAddr returns the Redis address
func (c *RedisConfig) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetCacheTTL returns the quote cache TTL as time.Duration
func (c *RedisConfig) GetCacheTTL() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// StoreConfig contains snapshot persistence settings
type StoreConfig struct {
	Backend      string         `mapstructure:"backend"` // "file" or "postgres"
	SnapshotPath string         `mapstructure:"snapshot_path"`
	LedgerName   string         `mapstructure:"ledger_name"`
	Database     DatabaseConfig `mapstructure:"database"`
}

// DatabaseConfig contains PostgreSQL settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// EventsConfig contains NATS event publishing settings
type EventsConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	URL           string `mapstructure:"url"`
	SubjectPrefix string `mapstructure:"subject_prefix"`
	ClientName    string `mapstructure:"client_name"`
}

// MonitoringConfig contains monitoring settings
type MonitoringConfig struct {
	PrometheusPort int  `mapstructure:"prometheus_port"`
	EnableMetrics  bool `mapstructure:"enable_metrics"`
	PollInterval   int  `mapstructure:"poll_interval"` // seconds
}

// GetPollInterval returns the portfolio metrics poll interval as time.Duration
func (c *MonitoringConfig) GetPollInterval() time.Duration {
	return time.Duration(c.PollInterval) * time.Second
}

// AssetsConfig contains asset catalog settings
type AssetsConfig struct {
	CatalogFile string `mapstructure:"catalog_file"` // optional YAML catalog overriding the built-in one
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable overrides, e.g. PAPERTRADER_STORE_BACKEND
	v.AutomaticEnv()
	v.SetEnvPrefix("PAPERTRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; using defaults and environment variables
	}

	// Unmarshal into struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "papertrader")
	v.SetDefault("app.version", Version)
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "console")

	// Ledger defaults
	v.SetDefault("ledger.initial_balance", 100000.0)
	v.SetDefault("ledger.base_currency", "USD")

	// Fee defaults (fraction of gross trade value)
	v.SetDefault("fees.default_rate", 0.001)
	v.SetDefault("fees.rates.stocks", 0.001)      // 0.1%
	v.SetDefault("fees.rates.bonds", 0.0005)      // 0.05%
	v.SetDefault("fees.rates.commodities", 0.001) // 0.1%
	v.SetDefault("fees.rates.forex", 0.0001)      // 0.01%
	v.SetDefault("fees.rates.crypto", 0.001)      // 0.1%
	v.SetDefault("fees.rates.reits", 0.001)       // 0.1%
	v.SetDefault("fees.rates.etfs", 0.0005)       // 0.05%
	v.SetDefault("fees.rates.indices", 0.0001)    // 0.01%

	// Oracle defaults
	v.SetDefault("oracle.provider", "static")
	v.SetDefault("oracle.request_timeout_ms", 10000)
	v.SetDefault("oracle.requests_per_second", 10.0)
	v.SetDefault("oracle.burst", 5)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cache_ttl", 30)

	// Store defaults
	v.SetDefault("store.backend", "file")
	v.SetDefault("store.snapshot_path", "data/snapshot.json")
	v.SetDefault("store.ledger_name", "default")
	v.SetDefault("store.database.host", "localhost")
	v.SetDefault("store.database.port", 5432)
	v.SetDefault("store.database.user", "postgres")
	v.SetDefault("store.database.database", "papertrader")
	v.SetDefault("store.database.ssl_mode", "disable")

	// Events defaults
	v.SetDefault("events.enabled", false)
	v.SetDefault("events.url", "nats://localhost:4222")
	v.SetDefault("events.subject_prefix", "papertrader.")
	v.SetDefault("events.client_name", "papertrader")

	// Monitoring defaults
	v.SetDefault("monitoring.prometheus_port", 9094)
	v.SetDefault("monitoring.enable_metrics", true)
	v.SetDefault("monitoring.poll_interval", 15)
}
