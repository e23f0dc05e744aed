// Package postgres implements core.Store on PostgreSQL through pgx.
//
// Reads go straight to the pool and see committed rows only. Writes are
// buffered on the unit of work and replayed inside a single transaction on
// Commit, so a failed import leaves no rows behind.
package postgres

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/orderimport/internal/core"
)

// DBTX is the query surface shared by the pool and a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Pool is a DBTX that can open transactions. *pgxpool.Pool satisfies it.
type Pool interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

var _ Pool = (*pgxpool.Pool)(nil)

// Store is the PostgreSQL-backed core.Store.
type Store struct {
	pool Pool
}

var _ core.Store = (*Store)(nil)

// New wraps a connection pool.
func New(pool Pool) *Store {
	return &Store{pool: pool}
}

// Begin opens a unit of work. No connection is held until Commit.
func (s *Store) Begin(ctx context.Context) (core.UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &unitOfWork{pool: s.pool}, nil
}

type writeOp func(ctx context.Context, tx DBTX) error

type unitOfWork struct {
	pool Pool

	mu      sync.Mutex
	pending []writeOp
}

func (u *unitOfWork) record(op writeOp) {
	u.mu.Lock()
	u.pending = append(u.pending, op)
	u.mu.Unlock()
}

func (u *unitOfWork) Customers() core.Repository[core.Customer, uuid.UUID] {
	return &repository[core.Customer]{uow: u, t: customersTable}
}

func (u *unitOfWork) Categories() core.Repository[core.Category, uuid.UUID] {
	return &repository[core.Category]{uow: u, t: categoriesTable}
}

func (u *unitOfWork) Products() core.Repository[core.Product, uuid.UUID] {
	return &repository[core.Product]{uow: u, t: productsTable}
}

func (u *unitOfWork) Orders() core.Repository[core.Order, uuid.UUID] {
	return &repository[core.Order]{uow: u, t: ordersTable}
}

func (u *unitOfWork) Sessions() core.SessionRepository {
	return &sessionRepository{repository[core.ImportSession]{uow: u, t: sessionsTable}}
}

func (u *unitOfWork) AuditLogs() core.AuditRepository {
	return &auditRepository{repository[core.AuditLog]{uow: u, t: auditTable}}
}

// Commit replays pending writes in one transaction.
func (u *unitOfWork) Commit(ctx context.Context) error {
	u.mu.Lock()
	ops := u.pending
	u.pending = nil
	u.mu.Unlock()

	if len(ops) == 0 {
		return ctx.Err()
	}

	tx, err := u.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	for _, op := range ops {
		if err := op(ctx, tx); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback drops pending writes. Nothing has reached the database yet.
func (u *unitOfWork) Rollback(context.Context) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.pending = nil
	return nil
}
