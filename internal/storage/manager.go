package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wardenhq/warden/internal/domain"
)

// Transaction misuse errors.
var (
	ErrTransactionActive = errors.New("transaction already active")
	ErrNestedIsolation   = errors.New("isolation level cannot be set on a nested transaction")
)

// Querier is the query surface shared by the pool, a pooled connection and a
// transaction. Repositories always go through Manager.Querier so statements
// land inside the active transaction when there is one.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Manager is the per-request unit of work. It runs plain reads on the pool
// and owns at most one root transaction; nested calls become savepoints.
// A Manager serves one request goroutine and is not safe for concurrent use.
type Manager struct {
	pool *pgxpool.Pool
	conn *pgxpool.Conn
	tx   pgx.Tx
}

var _ domain.TxManager = (*Manager)(nil)

func NewManager(pool *pgxpool.Pool) *Manager {
	return &Manager{pool: pool}
}

// Querier returns the innermost active querier: savepoint or transaction
// first, then the held connection, then the pool.
func (m *Manager) Querier() Querier {
	if m.tx != nil {
		return m.tx
	}
	if m.conn != nil {
		return m.conn
	}
	return m.pool
}

// WithTransaction runs fn inside a transaction, committing when fn returns
// nil and rolling back otherwise. Re-entry requires the Nested option and
// opens a savepoint; requesting an isolation level on a savepoint fails.
// Nested without an active transaction is tolerated with a warning.
func (m *Manager) WithTransaction(ctx context.Context, fn func(context.Context) error, opts ...domain.TxOption) error {
	settings := domain.NewTxSettings(opts...)

	if m.tx != nil {
		if !settings.Nested {
			return ErrTransactionActive
		}
		if settings.Isolation != "" {
			return ErrNestedIsolation
		}
		return m.runSavepoint(ctx, fn)
	}

	if settings.Nested {
		slog.Warn("nested_transaction_without_active", "isolation", string(settings.Isolation))
	}
	return m.runRoot(ctx, fn, settings.Isolation)
}

func (m *Manager) runRoot(ctx context.Context, fn func(context.Context) error, isolation domain.IsolationLevel) error {
	conn, err := m.acquire(ctx)
	if err != nil {
		return err
	}

	tx, err := conn.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.TxIsoLevel(isolation)})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	m.tx = tx
	defer func() {
		m.tx = nil
		_ = tx.Rollback(ctx) // no-op once committed
	}()

	if err := fn(ctx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (m *Manager) runSavepoint(ctx context.Context, fn func(context.Context) error) error {
	outer := m.tx

	sp, err := outer.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to open savepoint: %w", err)
	}

	m.tx = sp
	defer func() {
		m.tx = outer
		_ = sp.Rollback(ctx)
	}()

	if err := fn(ctx); err != nil {
		return err
	}
	if err := sp.Commit(ctx); err != nil {
		return fmt.Errorf("failed to release savepoint: %w", err)
	}
	return nil
}

func (m *Manager) acquire(ctx context.Context) (*pgxpool.Conn, error) {
	if m.conn == nil {
		conn, err := m.pool.Acquire(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire connection: %w", err)
		}
		m.conn = conn
	}
	return m.conn, nil
}

// Release rolls back any transaction still open and returns the connection
// to the pool. Safe to call multiple times.
func (m *Manager) Release(ctx context.Context) {
	if m.tx != nil {
		_ = m.tx.Rollback(ctx)
		m.tx = nil
	}
	if m.conn != nil {
		m.conn.Release()
		m.conn = nil
	}
}
