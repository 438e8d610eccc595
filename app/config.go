package app

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/xraph/tokenledger"
	"github.com/xraph/tokenledger/i18n"
	"github.com/xraph/tokenledger/telegram"
)

// Store kinds accepted by TOKENLEDGER_STORE.
const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreMongo    = "mongo"
	StoreMemory   = "memory"
)

// DefaultDotenvFile is loaded when DOTENV_FILE is unset.
const DefaultDotenvFile = ".env"

// Config holds the process configuration. Every field is read from the
// environment; an optional dotenv file is loaded first and never overrides
// variables that are already set.
type Config struct {
	// APIToken is the Telegram bot token.
	APIToken string `env:"API_TOKEN"`

	// Store selects the backend: postgres, sqlite, mongo or memory.
	Store string `env:"TOKENLEDGER_STORE" envDefault:"postgres"`

	// Postgres connection.
	DBUser    string `env:"DB_USER"`
	DBPass    string `env:"DB_PASS"`
	DBHost    string `env:"DB_HOST" envDefault:"localhost"`
	DBPort    int    `env:"DB_PORT" envDefault:"5432"`
	DBName    string `env:"DB_NAME"`
	DBSSLMode string `env:"DB_SSLMODE" envDefault:"disable"`

	// SQL connection pool.
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"10"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"30m"`

	SQLitePath string `env:"SQLITE_PATH" envDefault:"tokenledger.db"`

	MongoURI      string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"tokenledger"`

	// Organizers is the allow-list for /addtokens and /removetokens.
	Organizers []string `env:"ORGANIZERS" envSeparator:"," envDefault:"@roman_odobesku"`

	Locale      string `env:"BOT_LOCALE" envDefault:"ru"`
	Workers     int    `env:"BOT_WORKERS" envDefault:"8"`
	PollTimeout int    `env:"BOT_POLL_TIMEOUT" envDefault:"60"`
	SkipUpdates bool   `env:"BOT_SKIP_UPDATES" envDefault:"true"`

	AtomicTransfers bool `env:"ATOMIC_TRANSFERS" envDefault:"true"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// MetricsAddr enables the /metrics and /healthz listener when set.
	MetricsAddr string `env:"METRICS_ADDR"`
}

// DefaultConfig returns a Config with the same defaults the environment
// loader applies.
func DefaultConfig() Config {
	return Config{
		Store:             StorePostgres,
		DBHost:            "localhost",
		DBPort:            5432,
		DBSSLMode:         "disable",
		DBMaxOpenConns:    10,
		DBMaxIdleConns:    5,
		DBConnMaxLifetime: 30 * time.Minute,
		SQLitePath:        "tokenledger.db",
		MongoURI:          "mongodb://localhost:27017",
		MongoDatabase:     "tokenledger",
		Organizers:        append([]string(nil), tokenledger.DefaultOrganizers...),
		Locale:            i18n.DefaultLocale,
		Workers:           telegram.DefaultWorkers,
		PollTimeout:       telegram.DefaultPollTimeout,
		SkipUpdates:       true,
		AtomicTransfers:   true,
		LogLevel:          "info",
		LogFormat:         "text",
	}
}

// LoadConfig loads the dotenv file named by DOTENV_FILE (default .env) if
// it exists, then parses the environment.
func LoadConfig() (Config, error) {
	file := os.Getenv("DOTENV_FILE")
	if file == "" {
		file = DefaultDotenvFile
	}
	if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", file, err)
	}

	return ParseEnv()
}

// ParseEnv reads the configuration from the process environment only.
func ParseEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg = mergeWithDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// mergeWithDefaults fills zero-valued fields with defaults. Booleans are
// left alone since false is a meaningful setting.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Store == "" {
		cfg.Store = defaults.Store
	}
	if cfg.DBHost == "" {
		cfg.DBHost = defaults.DBHost
	}
	if cfg.DBPort == 0 {
		cfg.DBPort = defaults.DBPort
	}
	if cfg.DBSSLMode == "" {
		cfg.DBSSLMode = defaults.DBSSLMode
	}
	if cfg.DBMaxOpenConns == 0 {
		cfg.DBMaxOpenConns = defaults.DBMaxOpenConns
	}
	if cfg.DBMaxIdleConns == 0 {
		cfg.DBMaxIdleConns = defaults.DBMaxIdleConns
	}
	if cfg.DBConnMaxLifetime == 0 {
		cfg.DBConnMaxLifetime = defaults.DBConnMaxLifetime
	}
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = defaults.SQLitePath
	}
	if cfg.MongoURI == "" {
		cfg.MongoURI = defaults.MongoURI
	}
	if cfg.MongoDatabase == "" {
		cfg.MongoDatabase = defaults.MongoDatabase
	}
	if len(cfg.Organizers) == 0 {
		cfg.Organizers = defaults.Organizers
	}
	if cfg.Locale == "" {
		cfg.Locale = defaults.Locale
	}
	if cfg.Workers == 0 {
		cfg.Workers = defaults.Workers
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = defaults.LogFormat
	}
	return cfg
}

// Validate reports every invalid field. The bot token is checked by New,
// since tests and tools can run without one.
func (c Config) Validate() error {
	var errs []error
	invalid := func(field, msg string) {
		errs = append(errs, tokenledger.ValidationError{Field: field, Message: msg})
	}

	switch c.Store {
	case StorePostgres:
		if c.DBUser == "" {
			invalid("DB_USER", "required for the postgres store")
		}
		if c.DBName == "" {
			invalid("DB_NAME", "required for the postgres store")
		}
		if c.DBPort <= 0 || c.DBPort > 65535 {
			invalid("DB_PORT", "must be between 1 and 65535")
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			invalid("SQLITE_PATH", "required for the sqlite store")
		}
	case StoreMongo:
		if c.MongoURI == "" {
			invalid("MONGO_URI", "required for the mongo store")
		}
	case StoreMemory:
	default:
		invalid("TOKENLEDGER_STORE", fmt.Sprintf("unknown store %q", c.Store))
	}

	if c.Workers < 1 {
		invalid("BOT_WORKERS", "must be at least 1")
	}
	if c.PollTimeout < 0 {
		invalid("BOT_POLL_TIMEOUT", "must not be negative")
	}
	if tokenledger.NewOrganizers(c.Organizers...).Len() == 0 {
		invalid("ORGANIZERS", "at least one organizer is required")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		invalid("LOG_LEVEL", err.Error())
	}
	if f := strings.ToLower(c.LogFormat); f != "text" && f != "json" {
		invalid("LOG_FORMAT", "must be text or json")
	}

	return errors.Join(errs...)
}

// PostgresDSN builds a postgres:// URL from the DB_* settings.
func (c Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPass),
		Host:     net.JoinHostPort(c.DBHost, strconv.Itoa(c.DBPort)),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": {c.DBSSLMode}}.Encode(),
	}
	return u.String()
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown level %q", s)
	}
	return level, nil
}
