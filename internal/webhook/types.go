package webhook

import (
	"errors"
	"time"
)

// Config configures the listener. Zero fields other than Port take the
// defaults from DefaultConfig; a zero Port binds an ephemeral port.
type Config struct {
	Port         int           `yaml:"port"`
	BindAddress  string        `yaml:"bind_address"`
	Path         string        `yaml:"path"`
	SharedSecret string        `yaml:"shared_secret"`
	Backlog      int           `yaml:"backlog"`
	MaxBodySize  int64         `yaml:"max_body_size"`
	Timeout      time.Duration `yaml:"timeout"`
}

// DefaultConfig listens on 0.0.0.0:8080/webhook without a secret.
func DefaultConfig() Config {
	return Config{
		Port:        8080,
		BindAddress: "0.0.0.0",
		Path:        "/webhook",
		Backlog:     10,
		MaxBodySize: 1 << 20,
		Timeout:     30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BindAddress == "" {
		c.BindAddress = d.BindAddress
	}
	if c.Path == "" {
		c.Path = d.Path
	}
	if c.Backlog <= 0 {
		c.Backlog = d.Backlog
	}
	if c.MaxBodySize <= 0 {
		c.MaxBodySize = d.MaxBodySize
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}

// Callback receives a validated body and reports whether it was accepted.
type Callback func(body []byte) bool

// SecretHeader carries the shared secret.
const SecretHeader = "X-Shared-Secret-Token"

// maxHeaderBytes caps the request line plus headers.
const maxHeaderBytes = 8 << 10

var (
	// ErrAlreadyRunning is returned by Start on a running listener.
	ErrAlreadyRunning = errors.New("webhook listener already running")

	errHeaderTooLarge = errors.New("request header too large")
	errMalformed      = errors.New("malformed request")
)
