// Package config loads the process configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds everything the service needs at startup. Runtime settings
// that administrators can change live in the settings store; the values
// here only seed their defaults.
type Config struct {
	ListenAddr string `env:"CAFEVDBMEMBERS_LISTEN_ADDR" envDefault:":8080"`
	LogLevel   string `env:"CAFEVDBMEMBERS_LOG_LEVEL"   envDefault:"info"`

	CloudURL        string `env:"CAFEVDBMEMBERS_CLOUD_URL,required"`
	ServiceUser     string `env:"CAFEVDBMEMBERS_SERVICE_USER,required"`
	ServicePassword string `env:"CAFEVDBMEMBERS_SERVICE_PASSWORD,required"`
	AdminGroup      string `env:"CAFEVDBMEMBERS_ADMIN_GROUP" envDefault:"admin"`

	DatabaseDSN   string `env:"CAFEVDBMEMBERS_DATABASE_DSN,required"`
	EncryptionKey string `env:"CAFEVDBMEMBERS_ENCRYPTION_KEY,required"`

	RootFolder      string `env:"CAFEVDBMEMBERS_ROOT_FOLDER"      envDefault:"CAFEVDB"`
	ManagementGroup string `env:"CAFEVDBMEMBERS_MANAGEMENT_GROUP" envDefault:"cafevdb-management"`

	CalendarUser string `env:"CAFEVDBMEMBERS_CALENDAR_USER"`

	// DevUsersFile replaces cloud authentication by a static account list.
	DevUsersFile string `env:"CAFEVDBMEMBERS_DEV_USERS"`

	RegistrationRate  float64 `env:"CAFEVDBMEMBERS_REGISTRATION_RATE"  envDefault:"0.5"`
	RegistrationBurst int     `env:"CAFEVDBMEMBERS_REGISTRATION_BURST" envDefault:"5"`

	RequestTimeout time.Duration `env:"CAFEVDBMEMBERS_REQUEST_TIMEOUT"   envDefault:"30s"`
	LoginCacheTTL  time.Duration `env:"CAFEVDBMEMBERS_LOGIN_CACHE_TTL"   envDefault:"1m"`

	// Event expansions are cached per series; zero entries disables the cache.
	RecurrenceCacheEntries int           `env:"CAFEVDBMEMBERS_RECURRENCE_CACHE_ENTRIES" envDefault:"1000"`
	RecurrenceCacheTTL     time.Duration `env:"CAFEVDBMEMBERS_RECURRENCE_CACHE_TTL"     envDefault:"15m"`
}

// Load parses the environment into a Config and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values env tags cannot express.
func (c Config) Validate() error {
	u, err := url.Parse(c.CloudURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("invalid cloud URL %q", c.CloudURL)
	}
	if c.RegistrationRate <= 0 || c.RegistrationBurst <= 0 {
		return fmt.Errorf("registration rate limit must be positive")
	}
	if c.RecurrenceCacheEntries < 0 {
		return fmt.Errorf("recurrence cache size must not be negative")
	}
	return nil
}

// CalendarOwner is the cloud user owning the project calendars.
func (c Config) CalendarOwner() string {
	if c.CalendarUser != "" {
		return c.CalendarUser
	}
	return c.ServiceUser
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
