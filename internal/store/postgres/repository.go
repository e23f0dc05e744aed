package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/orderimport/internal/core"
)

// table describes how one entity maps onto SQL.
type table[T any] struct {
	name      string
	selectSQL string // SELECT ... FROM <table>, no WHERE clause
	deleteSQL string
	scan      func(row pgx.CollectableRow) (T, error)
	id        func(T) uuid.UUID
	insert    func(ctx context.Context, db DBTX, entity T) error
	update    func(ctx context.Context, db DBTX, entity T) (int64, error)

	// hydrate loads child rows for entities returned by a read. Optional.
	hydrate func(ctx context.Context, db DBTX, entities []T) error
}

type repository[T any] struct {
	uow *unitOfWork
	t   *table[T]
}

func (r *repository[T]) query(ctx context.Context, sql string, args ...any) ([]T, error) {
	rows, err := r.uow.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", r.t.name, err)
	}
	list, err := pgx.CollectRows(rows, r.t.scan)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", r.t.name, err)
	}
	if r.t.hydrate != nil && len(list) > 0 {
		if err := r.t.hydrate(ctx, r.uow.pool, list); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (r *repository[T]) Get(ctx context.Context, id uuid.UUID) (T, error) {
	var zero T
	list, err := r.query(ctx, r.t.selectSQL+" WHERE id = $1", id)
	if err != nil {
		return zero, err
	}
	if len(list) == 0 {
		return zero, fmt.Errorf("%s %s: %w", r.t.name, id, core.ErrNotFound)
	}
	return list[0], nil
}

func (r *repository[T]) List(ctx context.Context, tenantID string) ([]T, error) {
	return r.query(ctx, r.t.selectSQL+" WHERE tenant_id = $1", tenantID)
}

func (r *repository[T]) Add(ctx context.Context, entity T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.uow.record(func(ctx context.Context, tx DBTX) error {
		if err := r.t.insert(ctx, tx, entity); err != nil {
			return fmt.Errorf("insert %s %s: %w", r.t.name, r.t.id(entity), err)
		}
		return nil
	})
	return nil
}

func (r *repository[T]) Update(ctx context.Context, entity T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.uow.record(func(ctx context.Context, tx DBTX) error {
		n, err := r.t.update(ctx, tx, entity)
		if err != nil {
			return fmt.Errorf("update %s %s: %w", r.t.name, r.t.id(entity), err)
		}
		if n == 0 {
			return fmt.Errorf("update %s %s: %w", r.t.name, r.t.id(entity), core.ErrNotFound)
		}
		return nil
	})
	return nil
}

func (r *repository[T]) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.uow.record(func(ctx context.Context, tx DBTX) error {
		tag, err := tx.Exec(ctx, r.t.deleteSQL, id)
		if err != nil {
			return fmt.Errorf("delete %s %s: %w", r.t.name, id, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("delete %s %s: %w", r.t.name, id, core.ErrNotFound)
		}
		return nil
	})
	return nil
}

type sessionRepository struct {
	repository[core.ImportSession]
}

func (r *sessionRepository) FindActive(ctx context.Context, tenantID, fileHash string) (core.ImportSession, error) {
	list, err := r.query(ctx, r.t.selectSQL+findActiveClause, tenantID, fileHash)
	if err != nil {
		return core.ImportSession{}, err
	}
	if len(list) == 0 {
		return core.ImportSession{}, fmt.Errorf("active session for hash %s: %w", fileHash, core.ErrNotFound)
	}
	return list[0], nil
}

type auditRepository struct {
	repository[core.AuditLog]
}

func (r *auditRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.uow.pool.Exec(ctx, deleteAuditBeforeSQL, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune audit logs: %w", err)
	}
	return tag.RowsAffected(), nil
}
