package core

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned (wrapped) by Repository.Get for an unknown key and
// by Commit when an update or delete targets a missing entity.
var ErrNotFound = errors.New("not found")

// Repository is the per-entity storage capability.
//
// Reads see committed state only. Add, Update and Delete are recorded on the
// owning UnitOfWork and reach storage together on Commit.
type Repository[T any, K comparable] interface {
	Get(ctx context.Context, id K) (T, error)
	List(ctx context.Context, tenantID string) ([]T, error)
	Add(ctx context.Context, entity T) error
	Update(ctx context.Context, entity T) error
	Delete(ctx context.Context, id K) error
}

// SessionRepository adds the dedup lookup to the session repository.
type SessionRepository interface {
	Repository[ImportSession, uuid.UUID]

	// FindActive returns the newest non-rolled-back session for tenantID
	// with the given content hash, or ErrNotFound.
	FindActive(ctx context.Context, tenantID, fileHash string) (ImportSession, error)
}

// AuditRepository adds retention pruning to the audit repository.
type AuditRepository interface {
	Repository[AuditLog, uuid.UUID]

	// DeleteBefore removes records created before cutoff across all tenants.
	// It runs immediately rather than on Commit.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// UnitOfWork is one storage scope. Pending changes recorded through any of its
// repositories are applied atomically by Commit: all of them become visible
// or none do. Rollback discards pending changes; it is safe after Commit.
type UnitOfWork interface {
	Customers() Repository[Customer, uuid.UUID]
	Categories() Repository[Category, uuid.UUID]
	Products() Repository[Product, uuid.UUID]
	Orders() Repository[Order, uuid.UUID]
	Sessions() SessionRepository
	AuditLogs() AuditRepository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store opens independent storage scopes.
type Store interface {
	Begin(ctx context.Context) (UnitOfWork, error)
}
