package database

import (
	"errors"
	"time"
)

// Driver selects the SQL backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverLibSQL   Driver = "libsql"
	DriverPostgres Driver = "postgres"
)

// Options describes how to reach the store.
type Options struct {
	Driver    Driver
	DSN       string
	AuthToken string
}

// PoolConfig bounds the connection pool.
type PoolConfig struct {
	MinSize     int
	MaxSize     int
	IdleTimeout time.Duration
	MaxLifetime time.Duration
}

// DefaultPoolConfig returns the pool defaults: 2..10 connections, 5 minute idle timeout, 1 hour lifetime.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MinSize:     2,
		MaxSize:     10,
		IdleTimeout: 5 * time.Minute,
		MaxLifetime: time.Hour,
	}
}

// PoolStat is a snapshot of pool occupancy.
type PoolStat struct {
	Total        int32         `json:"total"`
	Idle         int32         `json:"idle"`
	Acquired     int32         `json:"acquired"`
	Constructing int32         `json:"constructing"`
	Max          int32         `json:"max"`
	AcquireCount int64         `json:"acquire_count"`
	AcquireWait  time.Duration `json:"acquire_wait_ns"`
}

var (
	// ErrUnavailable marks failures to reach the store or obtain a usable connection.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrPoolClosed is returned by Acquire after Close.
	ErrPoolClosed = errors.New("connection pool closed")
	// ErrTxDone is returned when committing or rolling back a finished transaction.
	ErrTxDone = errors.New("transaction already finished")
	// ErrInvalidPoolConfig is returned by NewPool for inconsistent bounds.
	ErrInvalidPoolConfig = errors.New("invalid pool config")
)
