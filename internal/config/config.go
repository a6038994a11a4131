// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"sync"

	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Config holds all configuration parameters for the pixel engine.
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`

	// Tracking settings
	Token              string `mapstructure:"token"`
	SiteName           string `mapstructure:"sitename"`
	Endpoint           string `mapstructure:"endpoint"`
	ConversionEndpoint string `mapstructure:"conversionendpoint"`
	Platform           string `mapstructure:"platform"`
	EnableEcommerce    bool   `mapstructure:"enableecommerce"`
	Debug              bool   `mapstructure:"debug"`

	// Session settings
	SessionTimeoutSeconds int `mapstructure:"sessiontimeoutseconds"`

	// Transport settings
	RetryIntervalSeconds int `mapstructure:"retryintervalseconds"`
	MaxRetries           int `mapstructure:"maxretries"`
	RetryQueueSize       int `mapstructure:"retryqueuesize"`
	RequestTimeoutMs     int `mapstructure:"requesttimeoutms"`

	// Detector timing settings (milliseconds)
	ScrollDebounceMs     int `mapstructure:"scrolldebouncems"`
	CartRecheckMs        int `mapstructure:"cartrecheckms"`
	CheckoutSettleMs     int `mapstructure:"checkoutsettlems"`
	ConfirmationSettleMs int `mapstructure:"confirmationsettlems"`
	CartPollMs           int `mapstructure:"cartpollms"`
	MinDwellSeconds      int `mapstructure:"mindwellseconds"`

	// Collector settings
	CollectorPort string `mapstructure:"collectorport"`

	// Storage settings (for the persistent session storage backend)
	StoragePath string `mapstructure:"storagepath"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		// Set defaults
		v.SetDefault("appname", "rankitopixel")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("endpoint", "https://api.rankito.app/functions/v1/api-track")
		v.SetDefault("conversionendpoint", "https://api.rankito.app/functions/v1/track-rank-rent-conversion")
		v.SetDefault("enableecommerce", true)
		v.SetDefault("debug", false)
		v.SetDefault("sessiontimeoutseconds", 1800)
		v.SetDefault("retryintervalseconds", 30)
		v.SetDefault("maxretries", 3)
		v.SetDefault("retryqueuesize", 100)
		v.SetDefault("requesttimeoutms", 10000)
		v.SetDefault("scrolldebouncems", 150)
		v.SetDefault("cartrecheckms", 500)
		v.SetDefault("checkoutsettlems", 1000)
		v.SetDefault("confirmationsettlems", 1500)
		v.SetDefault("cartpollms", 2000)
		v.SetDefault("mindwellseconds", 1)
		v.SetDefault("collectorport", "3100")
		v.SetDefault("storagepath", "storage")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)

		// Bind environment variables
		v.BindEnv("appname", "RANKITO_PIXEL_APP_NAME")
		v.BindEnv("environment", "RANKITO_PIXEL_ENV")
		v.BindEnv("loglevel", "RANKITO_PIXEL_LOG_LEVEL")
		v.BindEnv("token", "RANKITO_PIXEL_TOKEN")
		v.BindEnv("sitename", "RANKITO_PIXEL_SITE_NAME")
		v.BindEnv("endpoint", "RANKITO_PIXEL_ENDPOINT")
		v.BindEnv("conversionendpoint", "RANKITO_PIXEL_CONVERSION_ENDPOINT")
		v.BindEnv("platform", "RANKITO_PIXEL_PLATFORM")
		v.BindEnv("enableecommerce", "RANKITO_PIXEL_ENABLE_ECOMMERCE")
		v.BindEnv("debug", "RANKITO_PIXEL_DEBUG")
		v.BindEnv("sessiontimeoutseconds", "RANKITO_PIXEL_SESSION_TIMEOUT_SECONDS")
		v.BindEnv("retryintervalseconds", "RANKITO_PIXEL_RETRY_INTERVAL_SECONDS")
		v.BindEnv("maxretries", "RANKITO_PIXEL_MAX_RETRIES")
		v.BindEnv("retryqueuesize", "RANKITO_PIXEL_RETRY_QUEUE_SIZE")
		v.BindEnv("requesttimeoutms", "RANKITO_PIXEL_REQUEST_TIMEOUT_MS")
		v.BindEnv("scrolldebouncems", "RANKITO_PIXEL_SCROLL_DEBOUNCE_MS")
		v.BindEnv("cartrecheckms", "RANKITO_PIXEL_CART_RECHECK_MS")
		v.BindEnv("checkoutsettlems", "RANKITO_PIXEL_CHECKOUT_SETTLE_MS")
		v.BindEnv("confirmationsettlems", "RANKITO_PIXEL_CONFIRMATION_SETTLE_MS")
		v.BindEnv("cartpollms", "RANKITO_PIXEL_CART_POLL_MS")
		v.BindEnv("mindwellseconds", "RANKITO_PIXEL_MIN_DWELL_SECONDS")
		v.BindEnv("collectorport", "RANKITO_PIXEL_COLLECTOR_PORT")
		v.BindEnv("storagepath", "RANKITO_PIXEL_STORAGE_PATH")
		v.BindEnv("logsdir", "RANKITO_PIXEL_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "RANKITO_PIXEL_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "RANKITO_PIXEL_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "RANKITO_PIXEL_LOGS_MAX_AGE_IN_DAYS")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("maxretries must not be negative: %d", c.MaxRetries)
	}
	if c.RetryQueueSize <= 0 {
		return fmt.Errorf("retryqueuesize must be positive: %d", c.RetryQueueSize)
	}

	return nil
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// GetSessionTimeout returns the visitor session timeout in seconds.
// A stored session older than this is discarded and replaced on next read.
func (c *Config) GetSessionTimeout() int {
	return c.SessionTimeoutSeconds
}

// GetLogLevel returns the log level as a string
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
