package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jackc/puddle/v2"
	"github.com/uptrace/bun"
)

// Pool lends dedicated connections of a bun.DB. Acquire blocks until a
// connection is free or the context ends; it never fails fast on exhaustion.
type Pool struct {
	cfg       PoolConfig
	db        *bun.DB
	pool      *puddle.Pool[bun.Conn]
	closeOnce sync.Once
}

// Conn is a connection checked out of the pool.
type Conn struct {
	pool     *Pool
	res      *puddle.Resource[bun.Conn]
	released atomic.Bool
	broken   atomic.Bool
}

// NewPool builds a pool over db and eagerly opens MinSize connections.
func NewPool(ctx context.Context, db *bun.DB, cfg PoolConfig) (*Pool, error) {
	if cfg.MaxSize <= 0 || cfg.MinSize < 0 || cfg.MinSize > cfg.MaxSize {
		return nil, fmt.Errorf("%w: min=%d max=%d", ErrInvalidPoolConfig, cfg.MinSize, cfg.MaxSize)
	}

	// Every physical connection belongs to exactly one pooled Conn, so
	// database/sql must not keep its own idle set.
	db.SetMaxOpenConns(cfg.MaxSize)
	db.SetMaxIdleConns(0)
	db.SetConnMaxLifetime(0)

	p := &Pool{cfg: cfg, db: db}
	inner, err := puddle.NewPool(&puddle.Config[bun.Conn]{
		Constructor: func(ctx context.Context) (bun.Conn, error) {
			return db.Conn(ctx)
		},
		Destructor: func(c bun.Conn) {
			if err := c.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
				log.Warn("Failed to close pooled connection", "error", err)
			}
		},
		MaxSize: int32(cfg.MaxSize),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPoolConfig, err)
	}
	p.pool = inner

	if err := p.fill(ctx); err != nil {
		inner.Close()
		return nil, err
	}
	log.Info("Connection pool ready", "min", cfg.MinSize, "max", cfg.MaxSize,
		"idle_timeout", cfg.IdleTimeout, "max_lifetime", cfg.MaxLifetime)
	return p, nil
}

// Acquire checks out a connection. Idle connections past their idle timeout
// or lifetime are destroyed on the way out and replaced.
func (p *Pool) Acquire(ctx context.Context) (*Conn, error) {
	start := time.Now()
	for {
		res, err := p.pool.Acquire(ctx)
		if err != nil {
			if errors.Is(err, puddle.ErrClosedPool) {
				return nil, ErrPoolClosed
			}
			return nil, fmt.Errorf("%w: acquire connection: %w", ErrUnavailable, err)
		}
		if res.CreationTime().Before(start) && p.expired(res) {
			log.Debug("Discarding expired connection", "age", time.Since(res.CreationTime()), "idle", res.IdleDuration())
			res.Destroy()
			continue
		}
		return &Conn{pool: p, res: res}, nil
	}
}

// Release returns c to the pool. It is safe to call more than once; only the
// first call has an effect.
func (p *Pool) Release(c *Conn) {
	if c == nil || !c.released.CompareAndSwap(false, true) {
		return
	}
	if c.broken.Load() || p.pastLifetime(c.res) {
		c.res.Destroy()
		return
	}
	c.res.Release()
}

// HealthCheck verifies a connection answers a trivial query.
func (p *Pool) HealthCheck(ctx context.Context) error {
	c, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer c.Release()

	var one int
	if err := c.Conn().QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		c.MarkBroken()
		return fmt.Errorf("%w: health check: %w", ErrUnavailable, err)
	}
	if one != 1 {
		return fmt.Errorf("%w: health check returned %d", ErrUnavailable, one)
	}
	return nil
}

// Prune destroys idle connections that outlived their idle timeout or
// lifetime and tops the pool back up to MinSize. It returns how many were destroyed.
func (p *Pool) Prune(ctx context.Context) (int, error) {
	destroyed := 0
	for _, res := range p.pool.AcquireAllIdle() {
		if p.expired(res) {
			res.Destroy()
			destroyed++
			continue
		}
		res.ReleaseUnused()
	}
	return destroyed, p.fill(ctx)
}

// Stat reports current occupancy.
func (p *Pool) Stat() PoolStat {
	s := p.pool.Stat()
	return PoolStat{
		Total:        s.TotalResources(),
		Idle:         s.IdleResources(),
		Acquired:     s.AcquiredResources(),
		Constructing: s.ConstructingResources(),
		Max:          s.MaxResources(),
		AcquireCount: s.AcquireCount(),
		AcquireWait:  s.AcquireDuration(),
	}
}

// Close destroys all connections. It blocks until checked-out connections are released.
func (p *Pool) Close() {
	p.closeOnce.Do(p.pool.Close)
}

func (p *Pool) fill(ctx context.Context) error {
	for int(p.pool.Stat().TotalResources()) < p.cfg.MinSize {
		if err := p.pool.CreateResource(ctx); err != nil {
			if errors.Is(err, puddle.ErrClosedPool) {
				return ErrPoolClosed
			}
			if errors.Is(err, puddle.ErrNotAvailable) {
				return nil
			}
			return fmt.Errorf("%w: open connection: %w", ErrUnavailable, err)
		}
	}
	return nil
}

func (p *Pool) expired(res *puddle.Resource[bun.Conn]) bool {
	if p.pastLifetime(res) {
		return true
	}
	return p.cfg.IdleTimeout > 0 && res.IdleDuration() > p.cfg.IdleTimeout
}

func (p *Pool) pastLifetime(res *puddle.Resource[bun.Conn]) bool {
	return p.cfg.MaxLifetime > 0 && time.Since(res.CreationTime()) > p.cfg.MaxLifetime
}

// Conn returns the underlying bun connection.
func (c *Conn) Conn() bun.Conn {
	return c.res.Value()
}

// MarkBroken makes Release destroy the connection instead of reusing it.
func (c *Conn) MarkBroken() {
	c.broken.Store(true)
}

// Release returns the connection to its pool.
func (c *Conn) Release() {
	c.pool.Release(c)
}
