// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
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

// Store backends
const (
	SQLiteStore = "sqlite"
	RedisStore  = "redis"
	MemoryStore = "memory"
)

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	AppPort     string   `mapstructure:"appport"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`

	// Document store settings
	StoreBackend string `mapstructure:"storebackend"`
	StoragePath  string `mapstructure:"storagepath"`
	DatabaseName string `mapstructure:"-"` // Derived from other settings
	StatsKey     string `mapstructure:"statskey"`
	RedisAddr    string `mapstructure:"redisaddr"`
	RedisDB      int    `mapstructure:"redisdb"`

	// GeoIP settings
	GeoDBPath string `mapstructure:"geodbpath"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Data retention settings
	RetentionDays int `mapstructure:"retentiondays"`
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
		v.SetDefault("appname", "pagebeacon")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("storebackend", SQLiteStore)
		v.SetDefault("storagepath", "storage")
		v.SetDefault("statskey", "stats")
		v.SetDefault("redisaddr", "localhost:6379")
		v.SetDefault("redisdb", 0)
		v.SetDefault("geodbpath", "storage/GeoLite2-City.mmdb")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("retentiondays", 90)

		// Bind environment variables
		v.BindEnv("appname", "PAGEBEACON_APP_NAME")
		v.BindEnv("appport", "PAGEBEACON_APP_PORT")
		v.BindEnv("environment", "PAGEBEACON_ENV")
		v.BindEnv("loglevel", "PAGEBEACON_LOG_LEVEL")
		v.BindEnv("storebackend", "PAGEBEACON_STORE")
		v.BindEnv("storagepath", "PAGEBEACON_STORAGE_PATH")
		v.BindEnv("statskey", "PAGEBEACON_STATS_KEY")
		v.BindEnv("redisaddr", "PAGEBEACON_REDIS_ADDR")
		v.BindEnv("redisdb", "PAGEBEACON_REDIS_DB")
		v.BindEnv("geodbpath", "PAGEBEACON_GEO_DB_PATH")
		v.BindEnv("logsdir", "PAGEBEACON_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "PAGEBEACON_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "PAGEBEACON_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "PAGEBEACON_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("retentiondays", "PAGEBEACON_RETENTION_DAYS")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		// Validate
		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		// Set derived values
		cfg.DatabaseName = cfg.GetDatabasePath()
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

	validStores := map[string]bool{
		SQLiteStore: true,
		RedisStore:  true,
		MemoryStore: true,
	}
	if !validStores[c.StoreBackend] {
		return fmt.Errorf("invalid store backend: %s", c.StoreBackend)
	}

	if c.RetentionDays <= 0 {
		return fmt.Errorf("retention days must be positive: %d", c.RetentionDays)
	}

	return nil
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.StoragePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
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

// GetLogLevel returns the log level as a string
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
