package config

import (
	"time"

	"github.com/mauv0809/rating-ladder/internal/database"
	"github.com/mauv0809/rating-ladder/internal/elo"
	"github.com/mauv0809/rating-ladder/internal/retry"
	"github.com/mauv0809/rating-ladder/internal/webhook"
)

// Config holds all configuration for the application.
type Config struct {
	Port         string         `yaml:"port"`
	LogLevel     string         `yaml:"log_level"`
	LogFormat    string         `yaml:"log_format"`
	RankingLimit int            `yaml:"ranking_limit"`
	Webhook      webhook.Config `yaml:"webhook"`
	Database     DatabaseConfig `yaml:"database"`
	Retry        retry.Config   `yaml:"retry"`
	Elo          EloConfig      `yaml:"elo"`
	Slack        SlackConfig    `yaml:"slack"`
	ProjectID    string         `yaml:"gcp_project"`
}

type DatabaseConfig struct {
	Driver      database.Driver `yaml:"driver"`
	Name        string          `yaml:"name"`
	URL         string          `yaml:"url"`
	Turso       TursoConfig     `yaml:"turso"`
	PoolMin     int             `yaml:"pool_min"`
	PoolMax     int             `yaml:"pool_max"`
	IdleTimeout time.Duration   `yaml:"idle_timeout"`
	MaxLifetime time.Duration   `yaml:"max_lifetime"`
}

type TursoConfig struct {
	PrimaryURL string `yaml:"primary_url"`
	AuthToken  string `yaml:"auth_token"`
}

type EloConfig struct {
	K             float64 `yaml:"k"`
	DefaultRating int     `yaml:"default_rating"`
	Floor         int     `yaml:"floor"`
	Ceiling       int     `yaml:"ceiling"`
}

type SlackConfig struct {
	Token string `yaml:"token"`
}

// Options maps the database section onto database.Open options.
func (d DatabaseConfig) Options() database.Options {
	switch d.Driver {
	case database.DriverLibSQL:
		return database.Options{Driver: d.Driver, DSN: d.Turso.PrimaryURL, AuthToken: d.Turso.AuthToken}
	case database.DriverPostgres:
		return database.Options{Driver: d.Driver, DSN: d.URL}
	default:
		return database.Options{Driver: database.DriverSQLite, DSN: d.Name}
	}
}

func (d DatabaseConfig) Pool() database.PoolConfig {
	return database.PoolConfig{
		MinSize:     d.PoolMin,
		MaxSize:     d.PoolMax,
		IdleTimeout: d.IdleTimeout,
		MaxLifetime: d.MaxLifetime,
	}
}

func (e EloConfig) Engine() elo.Engine {
	return elo.Engine{K: e.K, Floor: e.Floor, Ceiling: e.Ceiling}
}
