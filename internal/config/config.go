package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/mauv0809/rating-ladder/internal/database"
	"github.com/mauv0809/rating-ladder/internal/elo"
	"github.com/mauv0809/rating-ladder/internal/rating"
	"github.com/mauv0809/rating-ladder/internal/retry"
	"github.com/mauv0809/rating-ladder/internal/webhook"
	"gopkg.in/yaml.v3"
)

// Load reads configuration from the optional CONFIG_FILE, the .env file and
// environment variables, in increasing order of precedence.
func Load() Config {
	err := godotenv.Load()
	if err != nil {
		log.Info("No .env file found, reading from environment variables")
	}

	cfg, err := load(os.LookupEnv)
	if err != nil {
		log.Fatalf("Error: invalid configuration: %s", err)
	}
	return cfg
}

// Defaults is the configuration used when nothing is set: a local SQLite
// file, the recorder messenger and in-process events.
func Defaults() Config {
	pool := database.DefaultPoolConfig()
	return Config{
		Port:         "8081",
		LogLevel:     "info",
		LogFormat:    "json",
		RankingLimit: rating.DefaultRankingLimit,
		Webhook:      webhook.DefaultConfig(),
		Database: DatabaseConfig{
			Driver:      database.DriverSQLite,
			Name:        "rating-ladder.db",
			PoolMin:     pool.MinSize,
			PoolMax:     pool.MaxSize,
			IdleTimeout: pool.IdleTimeout,
			MaxLifetime: pool.MaxLifetime,
		},
		Retry: retry.DefaultConfig(),
		Elo: EloConfig{
			K:             elo.DefaultK,
			DefaultRating: elo.DefaultRating,
			Floor:         elo.DefaultFloor,
			Ceiling:       elo.DefaultCeiling,
		},
	}
}

func load(lookup func(string) (string, bool)) (Config, error) {
	cfg := Defaults()

	if path, ok := lookup("CONFIG_FILE"); ok && path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
		log.Info("Loaded config file", "path", path)
	}

	e := &env{lookup: lookup}
	e.str("PORT", &cfg.Port)
	e.str("LOG_LEVEL", &cfg.LogLevel)
	e.str("LOG_FORMAT", &cfg.LogFormat)
	e.integer("RANKING_LIMIT", &cfg.RankingLimit)

	e.integer("WEBHOOK_PORT", &cfg.Webhook.Port)
	e.str("WEBHOOK_BIND", &cfg.Webhook.BindAddress)
	e.str("WEBHOOK_PATH", &cfg.Webhook.Path)
	e.str("WEBHOOK_SECRET", &cfg.Webhook.SharedSecret)
	e.integer("WEBHOOK_BACKLOG", &cfg.Webhook.Backlog)
	e.int64("WEBHOOK_MAX_BODY", &cfg.Webhook.MaxBodySize)
	e.duration("WEBHOOK_TIMEOUT", &cfg.Webhook.Timeout)

	var driver string
	if e.str("DB_DRIVER", &driver) {
		cfg.Database.Driver = database.Driver(driver)
	}
	e.str("DB_NAME", &cfg.Database.Name)
	e.str("DATABASE_URL", &cfg.Database.URL)
	e.str("TURSO_PRIMARY_URL", &cfg.Database.Turso.PrimaryURL)
	e.str("TURSO_AUTH_TOKEN", &cfg.Database.Turso.AuthToken)
	e.integer("POOL_MIN", &cfg.Database.PoolMin)
	e.integer("POOL_MAX", &cfg.Database.PoolMax)
	e.duration("POOL_IDLE_TIMEOUT", &cfg.Database.IdleTimeout)
	e.duration("POOL_MAX_LIFETIME", &cfg.Database.MaxLifetime)

	e.uint64("RETRY_MAX", &cfg.Retry.MaxRetries)
	e.duration("RETRY_INITIAL_DELAY", &cfg.Retry.InitialDelay)
	e.float("RETRY_MULTIPLIER", &cfg.Retry.Multiplier)
	e.duration("RETRY_MAX_DELAY", &cfg.Retry.MaxDelay)

	e.float("ELO_K", &cfg.Elo.K)
	e.integer("ELO_DEFAULT", &cfg.Elo.DefaultRating)
	e.integer("ELO_FLOOR", &cfg.Elo.Floor)
	e.integer("ELO_CEILING", &cfg.Elo.Ceiling)

	e.str("SLACK_BOT_TOKEN", &cfg.Slack.Token)
	e.str("GCP_PROJECT", &cfg.ProjectID)

	if e.err != nil {
		return Config{}, e.err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Database.Driver {
	case database.DriverSQLite, database.DriverLibSQL, database.DriverPostgres:
	default:
		return fmt.Errorf("DB_DRIVER: unsupported driver %q", c.Database.Driver)
	}
	if c.Database.Driver == database.DriverLibSQL && c.Database.Turso.PrimaryURL == "" {
		return fmt.Errorf("TURSO_PRIMARY_URL is required for the libsql driver")
	}
	if c.Database.Driver == database.DriverPostgres && c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required for the postgres driver")
	}
	if c.Database.PoolMax <= 0 || c.Database.PoolMin < 0 || c.Database.PoolMin > c.Database.PoolMax {
		return fmt.Errorf("POOL_MIN/POOL_MAX: need 0 <= min <= max and max > 0, got %d..%d", c.Database.PoolMin, c.Database.PoolMax)
	}
	if err := c.Retry.Validate(); err != nil {
		return err
	}
	if c.Elo.K <= 0 {
		return fmt.Errorf("ELO_K must be positive, got %v", c.Elo.K)
	}
	if c.Elo.Floor > c.Elo.Ceiling {
		return fmt.Errorf("ELO_FLOOR %d is above ELO_CEILING %d", c.Elo.Floor, c.Elo.Ceiling)
	}
	if c.Webhook.Port < 0 || c.Webhook.Port > 65535 {
		return fmt.Errorf("WEBHOOK_PORT %d is out of range", c.Webhook.Port)
	}
	return nil
}

// env parses variables into typed fields and keeps the first error.
type env struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *env) get(key string) (string, bool) {
	if e.err != nil {
		return "", false
	}
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e *env) fail(key, value string, err error) {
	e.err = fmt.Errorf("%s=%q: %w", key, value, err)
}

func (e *env) str(key string, dst *string) bool {
	v, ok := e.get(key)
	if ok {
		*dst = v
	}
	return ok
}

func (e *env) integer(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *env) int64(key string, dst *int64) {
	if v, ok := e.get(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *env) uint64(key string, dst *uint64) {
	if v, ok := e.get(key); ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *env) float(key string, dst *float64) {
	if v, ok := e.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = f
	}
}

func (e *env) duration(key string, dst *time.Duration) {
	if v, ok := e.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = d
	}
}
