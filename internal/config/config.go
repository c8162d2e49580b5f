// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

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

// Geo providers
const (
	GeoProviderMaxMind = "maxmind"
	GeoProviderIPAPI   = "ipapi"
	GeoProviderNone    = "none"
)

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	AppPort     string   `mapstructure:"appport"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`
	AdminAPIKey string   `mapstructure:"adminapikey"`
	SessionSalt string   `mapstructure:"sessionsalt"`

	// Beacon intake
	BeaconsPerMinute  int `mapstructure:"beaconsperminute"`
	BeaconMaxBodySize int `mapstructure:"beaconmaxbodysize"`

	// File paths
	DataDirectory string `mapstructure:"datadir"`
	DatabasePath  string `mapstructure:"storagepath"`
	DatabaseName  string `mapstructure:"-"` // Derived from other settings

	// Registry database pool
	DatabaseMaxOpenConns int `mapstructure:"databasemaxopenconns"`
	DatabaseMaxIdleConns int `mapstructure:"databasemaxidleconns"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Session windowing
	SessionTimeoutSeconds int `mapstructure:"sessiontimeoutseconds"`
	SweepIntervalSeconds  int `mapstructure:"sweepintervalseconds"`

	// Cached artifacts (stats documents, per-day session bundles)
	CacheTTLSeconds int `mapstructure:"cachettlseconds"`

	// Geolocation
	GeoProvider          string `mapstructure:"geoprovider"`
	GeoDBPath            string `mapstructure:"geodbpath"`
	GeoAPIURL            string `mapstructure:"geoapiurl"`
	GeoCacheTTLSeconds   int    `mapstructure:"geocachettlseconds"`
	GeoRequestsPerMinute int    `mapstructure:"georequestsperminute"`

	// Job scheduling settings
	JobIntervalSeconds int `mapstructure:"jobintervalseconds"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		v.SetDefault("appname", "pagetally")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("sessionsalt", "pagetally")
		v.SetDefault("beaconsperminute", 70)
		v.SetDefault("beaconmaxbodysize", 64*1024)
		v.SetDefault("datadir", "data")
		v.SetDefault("storagepath", "storage")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("sessiontimeoutseconds", 3600)
		v.SetDefault("sweepintervalseconds", 300)
		v.SetDefault("cachettlseconds", 86400)
		v.SetDefault("geoprovider", GeoProviderMaxMind)
		v.SetDefault("geodbpath", "storage/GeoLite2-City.mmdb")
		v.SetDefault("geoapiurl", "http://ip-api.com/json")
		v.SetDefault("geocachettlseconds", 259200) // 3 days
		v.SetDefault("georequestsperminute", 45)
		v.SetDefault("jobintervalseconds", 86400)

		v.BindEnv("appname", "PAGETALLY_APP_NAME")
		v.BindEnv("appport", "PAGETALLY_APP_PORT")
		v.BindEnv("environment", "PAGETALLY_ENV")
		v.BindEnv("loglevel", "PAGETALLY_LOG_LEVEL")
		v.BindEnv("adminapikey", "PAGETALLY_ADMIN_API_KEY")
		v.BindEnv("sessionsalt", "PAGETALLY_SESSION_SALT")
		v.BindEnv("beaconsperminute", "PAGETALLY_BEACONS_PER_MINUTE")
		v.BindEnv("beaconmaxbodysize", "PAGETALLY_BEACON_MAX_BODY_SIZE")
		v.BindEnv("datadir", "PAGETALLY_DATA_DIR")
		v.BindEnv("storagepath", "PAGETALLY_STORAGE_PATH")
		v.BindEnv("databasemaxopenconns", "PAGETALLY_DATABASE_MAX_OPEN_CONNS")
		v.BindEnv("databasemaxidleconns", "PAGETALLY_DATABASE_MAX_IDLE_CONNS")
		v.BindEnv("logsdir", "PAGETALLY_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "PAGETALLY_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "PAGETALLY_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "PAGETALLY_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("sessiontimeoutseconds", "PAGETALLY_SESSION_TIMEOUT_SECONDS")
		v.BindEnv("sweepintervalseconds", "PAGETALLY_SWEEP_INTERVAL_SECONDS")
		v.BindEnv("cachettlseconds", "PAGETALLY_CACHE_TTL_SECONDS")
		v.BindEnv("geoprovider", "PAGETALLY_GEO_PROVIDER")
		v.BindEnv("geodbpath", "PAGETALLY_GEO_DB_PATH")
		v.BindEnv("geoapiurl", "PAGETALLY_GEO_API_URL")
		v.BindEnv("geocachettlseconds", "PAGETALLY_GEO_CACHE_TTL_SECONDS")
		v.BindEnv("georequestsperminute", "PAGETALLY_GEO_REQUESTS_PER_MINUTE")
		v.BindEnv("jobintervalseconds", "PAGETALLY_JOB_INTERVAL_SECONDS")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		cfg.DatabaseName = cfg.GetDatabasePath()

		if cfg.IsProduction() && cfg.AdminAPIKey == "" {
			log.Fatal("Production requires PAGETALLY_ADMIN_API_KEY")
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

	validProviders := map[string]bool{
		GeoProviderMaxMind: true,
		GeoProviderIPAPI:   true,
		GeoProviderNone:    true,
	}
	if !validProviders[c.GeoProvider] {
		return fmt.Errorf("invalid geo provider: %s", c.GeoProvider)
	}

	if c.SessionTimeoutSeconds <= 0 {
		return fmt.Errorf("session timeout must be positive, got %d", c.SessionTimeoutSeconds)
	}
	if c.BeaconsPerMinute <= 0 {
		return fmt.Errorf("beacons per minute must be positive, got %d", c.BeaconsPerMinute)
	}
	if c.SweepIntervalSeconds <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %d", c.SweepIntervalSeconds)
	}

	return nil
}

// GetDatabasePath returns the registry database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
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

// GetMaxOpenConns returns the registry pool size; tests use a single connection.
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}
	if c.Environment == Test {
		return 1
	}
	return 10
}

// GetMaxIdleConns returns how many registry connections are kept warm.
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}
	if c.Environment == Test {
		return 1
	}
	return 5
}

// GetSessionTimeout returns how long a visitor session stays open after its last event.
func (c *Config) GetSessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutSeconds) * time.Second
}

// GetSweepInterval returns how often the open-session index is swept.
func (c *Config) GetSweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// GetCacheTTL bounds the age of cached stats and session bundles.
func (c *Config) GetCacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// GetJobInterval returns how often cached artifacts are pruned.
func (c *Config) GetJobInterval() time.Duration {
	return time.Duration(c.JobIntervalSeconds) * time.Second
}

// GetGeoCacheTTL returns how long a geolocation result is kept per IP.
func (c *Config) GetGeoCacheTTL() time.Duration {
	return time.Duration(c.GeoCacheTTLSeconds) * time.Second
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
