package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all configuration for our application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Business  BusinessConfig  `mapstructure:"business"`
	Health    HealthConfig    `mapstructure:"health"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"SERVER_PORT"`
	Host         string        `mapstructure:"SERVER_HOST"`
	Env          string        `mapstructure:"ENV"`
	ReadTimeout  time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"DATABASE_URL"`
	MaxOpenConns    int           `mapstructure:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int           `mapstructure:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `mapstructure:"DATABASE_CONN_MAX_LIFETIME"`
}

type RedisConfig struct {
	Host     string `mapstructure:"REDIS_HOST"`
	Port     string `mapstructure:"REDIS_PORT"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
}

type SchedulerConfig struct {
	ArrearsSpec     string `mapstructure:"SCHEDULER_ARREARS_SPEC"`
	OfferExpirySpec string `mapstructure:"SCHEDULER_OFFER_EXPIRY_SPEC"`
	LateFeeSpec     string `mapstructure:"SCHEDULER_LATE_FEE_SPEC"`
	Timezone        string `mapstructure:"SCHEDULER_TIMEZONE"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
}

type BusinessConfig struct {
	DefaultInterestRate       string `mapstructure:"DEFAULT_INTEREST_RATE"`
	SettlementDiscountPercent string `mapstructure:"SETTLEMENT_DISCOUNT_PERCENT"`
	LateFeePercent            string `mapstructure:"LATE_FEE_PERCENT"`
	ManualReviewThreshold     string `mapstructure:"MANUAL_REVIEW_THRESHOLD"`
	GracePeriodDays           int    `mapstructure:"GRACE_PERIOD_DAYS"`
	OutstandingCacheTTL       string `mapstructure:"OUTSTANDING_CACHE_TTL"`
}

type HealthConfig struct {
	Timeout string `mapstructure:"HEALTH_CHECK_TIMEOUT"`
}

// Load reads configuration from environment variables and files
func Load() (*Config, error) {
	// Set defaults
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("SERVER_HOST", "0.0.0.0")
	viper.SetDefault("SERVER_READ_TIMEOUT", "15s")
	viper.SetDefault("SERVER_WRITE_TIMEOUT", "15s")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("DATABASE_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DATABASE_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DATABASE_CONN_MAX_LIFETIME", "5m")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "json")
	viper.SetDefault("DEFAULT_INTEREST_RATE", "0.08")
	viper.SetDefault("SETTLEMENT_DISCOUNT_PERCENT", "0.20")
	viper.SetDefault("LATE_FEE_PERCENT", "0.05")
	viper.SetDefault("MANUAL_REVIEW_THRESHOLD", "10000.00")
	viper.SetDefault("GRACE_PERIOD_DAYS", 3)
	viper.SetDefault("OUTSTANDING_CACHE_TTL", "10m")
	viper.SetDefault("SCHEDULER_ARREARS_SPEC", "0 0 1 * * *")
	viper.SetDefault("SCHEDULER_OFFER_EXPIRY_SPEC", "0 30 1 * * *")
	viper.SetDefault("SCHEDULER_LATE_FEE_SPEC", "0 0 2 * * *")
	viper.SetDefault("SCHEDULER_TIMEZONE", "UTC")
	viper.SetDefault("HEALTH_CHECK_TIMEOUT", "5s")

	// Read from environment variables
	viper.AutomaticEnv()

	// Try to read from .env file (optional)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./deployments")

	// Don't fail if .env file doesn't exist
	_ = viper.ReadInConfig()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("SERVER_PORT is required")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Business.GracePeriodDays < 0 {
		return fmt.Errorf("GRACE_PERIOD_DAYS must not be negative")
	}

	for name, value := range map[string]string{
		"DEFAULT_INTEREST_RATE":       c.Business.DefaultInterestRate,
		"SETTLEMENT_DISCOUNT_PERCENT": c.Business.SettlementDiscountPercent,
		"LATE_FEE_PERCENT":            c.Business.LateFeePercent,
		"MANUAL_REVIEW_THRESHOLD":     c.Business.ManualReviewThreshold,
	} {
		if _, err := decimal.NewFromString(value); err != nil {
			return fmt.Errorf("%s must be a valid decimal: %w", name, err)
		}
	}

	if _, err := time.ParseDuration(c.Business.OutstandingCacheTTL); err != nil {
		return fmt.Errorf("OUTSTANDING_CACHE_TTL must be a valid duration: %w", err)
	}

	if _, err := time.ParseDuration(c.Health.Timeout); err != nil {
		return fmt.Errorf("HEALTH_CHECK_TIMEOUT must be a valid duration: %w", err)
	}

	return nil
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development" || c.Server.Env == "dev"
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production" || c.Server.Env == "prod"
}

// GetDefaultInterestRate returns the default interest rate as decimal
func (c *Config) GetDefaultInterestRate() decimal.Decimal {
	rate, _ := decimal.NewFromString(c.Business.DefaultInterestRate)
	return rate
}

// GetSettlementDiscountPercent returns the settlement discount as decimal
func (c *Config) GetSettlementDiscountPercent() decimal.Decimal {
	pct, _ := decimal.NewFromString(c.Business.SettlementDiscountPercent)
	return pct
}

// GetLateFeePercent returns the late fee percent as decimal
func (c *Config) GetLateFeePercent() decimal.Decimal {
	pct, _ := decimal.NewFromString(c.Business.LateFeePercent)
	return pct
}

// GetManualReviewThreshold returns the manual review threshold as decimal
func (c *Config) GetManualReviewThreshold() decimal.Decimal {
	threshold, _ := decimal.NewFromString(c.Business.ManualReviewThreshold)
	return threshold
}

// GetOutstandingCacheTTL returns the outstanding balance cache TTL
func (c *Config) GetOutstandingCacheTTL() time.Duration {
	ttl, _ := time.ParseDuration(c.Business.OutstandingCacheTTL)
	return ttl
}

// GetHealthTimeout returns the health check timeout as duration
func (c *Config) GetHealthTimeout() time.Duration {
	timeout, _ := time.ParseDuration(c.Health.Timeout)
	return timeout
}
