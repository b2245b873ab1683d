package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	goretry "github.com/sethvargo/go-retry"
)

// Config describes a deterministic exponential backoff.
type Config struct {
	MaxRetries   uint64        `yaml:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	Multiplier   float64       `yaml:"multiplier"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// DefaultConfig retries three times starting at 100ms, doubling up to one second.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   3,
		InitialDelay: 100 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     time.Second,
	}
}

var ErrInvalidConfig = errors.New("invalid retry config")

// Validate reports configs that cannot produce a sensible delay sequence.
func (c Config) Validate() error {
	if c.InitialDelay < 0 || c.MaxDelay < 0 {
		return fmt.Errorf("%w: negative delay", ErrInvalidConfig)
	}
	if c.Multiplier < 1 {
		return fmt.Errorf("%w: multiplier %v is below 1", ErrInvalidConfig, c.Multiplier)
	}
	return nil
}

// Delay returns the wait before retry k (1-based): min(initial * multiplier^(k-1), max).
func (c Config) Delay(k int) time.Duration {
	if k < 1 {
		return 0
	}
	d := float64(c.InitialDelay) * math.Pow(c.Multiplier, float64(k-1))
	if c.MaxDelay > 0 && d > float64(c.MaxDelay) {
		return c.MaxDelay
	}
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Option customizes a single Run.
type Option func(*options)

type options struct {
	onRetry func(attempt int, delay time.Duration, err error)
}

// WithOnRetry registers a hook called before each retry with the number of the
// attempt that just failed, the upcoming delay and the error.
func WithOnRetry(fn func(attempt int, delay time.Duration, err error)) Option {
	return func(o *options) {
		o.onRetry = fn
	}
}

// Backoff returns the delay sequence for cfg, stopping after MaxRetries values.
func Backoff(cfg Config) goretry.Backoff {
	return goretry.WithMaxRetries(cfg.MaxRetries, multiplier(cfg.InitialDelay, cfg.Multiplier, cfg.MaxDelay))
}

// Run executes work, retrying it while isRetryable reports true for the
// returned error. Other errors propagate immediately. Once MaxRetries retries
// are spent the last retryable error is returned unwrapped.
func Run(ctx context.Context, cfg Config, isRetryable func(error) bool, work func(ctx context.Context) error, opts ...Option) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	var (
		attempt int
		lastErr error
	)
	inner := Backoff(cfg)
	b := goretry.BackoffFunc(func() (time.Duration, bool) {
		d, stop := inner.Next()
		if !stop && o.onRetry != nil {
			o.onRetry(attempt, d, lastErr)
		}
		return d, stop
	})

	return goretry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := work(ctx)
		if err != nil && isRetryable(err) {
			lastErr = err
			return goretry.RetryableError(err)
		}
		return err
	})
}

// multiplier grows the delay geometrically without jitter, capped at maxDelay
// when it is positive. A zero delay stays zero.
func multiplier(initial time.Duration, factor float64, maxDelay time.Duration) goretry.Backoff {
	var mu sync.Mutex
	next := float64(initial)
	return goretry.BackoffFunc(func() (time.Duration, bool) {
		mu.Lock()
		defer mu.Unlock()
		d := next
		if next < math.MaxInt64/factor {
			next *= factor
		}
		if maxDelay > 0 && d > float64(maxDelay) {
			return maxDelay, false
		}
		if d >= math.MaxInt64 {
			return time.Duration(math.MaxInt64), false
		}
		return time.Duration(d), false
	})
}
