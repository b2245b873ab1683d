package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/uptrace/bun"
)

type txState int

const (
	txActive txState = iota
	txCommitted
	txRolledBack
)

// Tx is a unit of work bound to one pooled connection. Exactly one of
// Commit, Rollback or the implicit rollback in Close takes effect, and Close
// returns the connection to the pool exactly once.
//
//	tx, err := database.Begin(ctx, pool)
//	if err != nil { ... }
//	defer tx.Close()
type Tx struct {
	mu     sync.Mutex
	conn   *Conn
	tx     bun.Tx
	state  txState
	closed bool
}

// Begin acquires a connection and opens a transaction on it.
func Begin(ctx context.Context, pool *Pool) (*Tx, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := conn.Conn().BeginTx(ctx, nil)
	if err != nil {
		conn.MarkBroken()
		conn.Release()
		return nil, fmt.Errorf("%w: begin transaction: %w", ErrUnavailable, err)
	}
	return &Tx{conn: conn, tx: tx}, nil
}

// Bun exposes the transaction to bun query builders.
func (t *Tx) Bun() bun.Tx {
	return t.tx
}

// Commit commits the transaction. It fails with ErrTxDone once the
// transaction was committed or rolled back.
func (t *Tx) Commit() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != txActive || t.closed {
		return ErrTxDone
	}
	t.state = txCommitted
	if err := t.tx.Commit(); err != nil {
		t.conn.MarkBroken()
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. Rolling back twice is a no-op;
// rolling back after Commit fails with ErrTxDone.
func (t *Tx) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rollbackLocked()
}

// Close rolls back an unfinished transaction and releases the connection.
func (t *Tx) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true

	var err error
	if t.state == txActive {
		log.Debug("Rolling back unfinished transaction")
		err = t.rollbackLocked()
	}
	t.conn.Release()
	return err
}

func (t *Tx) rollbackLocked() error {
	switch t.state {
	case txCommitted:
		return ErrTxDone
	case txRolledBack:
		return nil
	}
	t.state = txRolledBack
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		t.conn.MarkBroken()
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}
