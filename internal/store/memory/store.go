// Package memory is an in-process implementation of core.Store.
//
// Committed state is a set of maps guarded by one RWMutex. A unit of work
// records its writes as pending operations; Commit applies them to a copy of
// the committed maps and swaps the copy in only if every operation succeeded.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/orderimport/internal/core"
)

// Store holds committed data for every tenant.
type Store struct {
	mu   sync.RWMutex
	data *dataset
}

var _ core.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{data: newDataset()}
}

type table[T any] map[uuid.UUID]T

type dataset struct {
	customers  table[core.Customer]
	categories table[core.Category]
	products   table[core.Product]
	orders     table[core.Order]
	sessions   table[core.ImportSession]
	auditLogs  table[core.AuditLog]
}

func newDataset() *dataset {
	return &dataset{
		customers:  make(table[core.Customer]),
		categories: make(table[core.Category]),
		products:   make(table[core.Product]),
		orders:     make(table[core.Order]),
		sessions:   make(table[core.ImportSession]),
		auditLogs:  make(table[core.AuditLog]),
	}
}

func (d *dataset) clone() *dataset {
	return &dataset{
		customers:  maps.Clone(d.customers),
		categories: maps.Clone(d.categories),
		products:   maps.Clone(d.products),
		orders:     maps.Clone(d.orders),
		sessions:   maps.Clone(d.sessions),
		auditLogs:  maps.Clone(d.auditLogs),
	}
}

// Begin opens a unit of work. It never fails.
func (s *Store) Begin(ctx context.Context) (core.UnitOfWork, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &unitOfWork{store: s}, nil
}

type operation func(*dataset) error

type unitOfWork struct {
	store *Store

	mu      sync.Mutex
	pending []operation
}

func (u *unitOfWork) record(op operation) {
	u.mu.Lock()
	u.pending = append(u.pending, op)
	u.mu.Unlock()
}

// Commit applies pending operations atomically.
func (u *unitOfWork) Commit(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	u.mu.Lock()
	ops := u.pending
	u.pending = nil
	u.mu.Unlock()

	if len(ops) == 0 {
		return nil
	}

	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	next := u.store.data.clone()
	for _, op := range ops {
		if err := op(next); err != nil {
			return err
		}
	}
	u.store.data = next
	return nil
}

// Rollback drops pending operations.
func (u *unitOfWork) Rollback(context.Context) error {
	u.mu.Lock()
	u.pending = nil
	u.mu.Unlock()
	return nil
}

func (u *unitOfWork) Customers() core.Repository[core.Customer, uuid.UUID] {
	return &repository[core.Customer]{
		uow:    u,
		name:   "customer",
		table:  func(d *dataset) table[core.Customer] { return d.customers },
		key:    func(c core.Customer) uuid.UUID { return c.ID },
		tenant: func(c core.Customer) string { return c.TenantID },
	}
}

func (u *unitOfWork) Categories() core.Repository[core.Category, uuid.UUID] {
	return &repository[core.Category]{
		uow:    u,
		name:   "category",
		table:  func(d *dataset) table[core.Category] { return d.categories },
		key:    func(c core.Category) uuid.UUID { return c.ID },
		tenant: func(c core.Category) string { return c.TenantID },
	}
}

func (u *unitOfWork) Products() core.Repository[core.Product, uuid.UUID] {
	return &repository[core.Product]{
		uow:    u,
		name:   "product",
		table:  func(d *dataset) table[core.Product] { return d.products },
		key:    func(p core.Product) uuid.UUID { return p.ID },
		tenant: func(p core.Product) string { return p.TenantID },
	}
}

func (u *unitOfWork) Orders() core.Repository[core.Order, uuid.UUID] {
	return &repository[core.Order]{
		uow:    u,
		name:   "order",
		table:  func(d *dataset) table[core.Order] { return d.orders },
		key:    func(o core.Order) uuid.UUID { return o.ID },
		tenant: func(o core.Order) string { return o.TenantID },
		copyOf: func(o core.Order) core.Order {
			o.Items = slices.Clone(o.Items)
			return o
		},
	}
}

func (u *unitOfWork) Sessions() core.SessionRepository {
	return &sessionRepository{repository[core.ImportSession]{
		uow:    u,
		name:   "import session",
		table:  func(d *dataset) table[core.ImportSession] { return d.sessions },
		key:    func(s core.ImportSession) uuid.UUID { return s.ID },
		tenant: func(s core.ImportSession) string { return s.TenantID },
	}}
}

func (u *unitOfWork) AuditLogs() core.AuditRepository {
	return &auditRepository{repository[core.AuditLog]{
		uow:    u,
		name:   "audit log",
		table:  func(d *dataset) table[core.AuditLog] { return d.auditLogs },
		key:    func(a core.AuditLog) uuid.UUID { return a.ID },
		tenant: func(a core.AuditLog) string { return a.TenantID },
	}}
}

// repository is a generic table view bound to one unit of work.
type repository[T any] struct {
	uow    *unitOfWork
	name   string
	table  func(*dataset) table[T]
	key    func(T) uuid.UUID
	tenant func(T) string
	copyOf func(T) T // deep copy for types holding slices; nil means plain copy
}

func (r *repository[T]) clone(v T) T {
	if r.copyOf != nil {
		return r.copyOf(v)
	}
	return v
}

func (r *repository[T]) Get(ctx context.Context, id uuid.UUID) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	r.uow.store.mu.RLock()
	defer r.uow.store.mu.RUnlock()

	v, ok := r.table(r.uow.store.data)[id]
	if !ok {
		return zero, fmt.Errorf("%s %s: %w", r.name, id, core.ErrNotFound)
	}
	return r.clone(v), nil
}

func (r *repository[T]) List(ctx context.Context, tenantID string) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.uow.store.mu.RLock()
	defer r.uow.store.mu.RUnlock()

	return r.filter(func(v T) bool { return r.tenant(v) == tenantID }), nil
}

// filter scans committed rows. Callers hold the read lock.
func (r *repository[T]) filter(keep func(T) bool) []T {
	out := []T{}
	for _, v := range r.table(r.uow.store.data) {
		if keep(v) {
			out = append(out, r.clone(v))
		}
	}
	return out
}

func (r *repository[T]) Add(_ context.Context, entity T) error {
	entity = r.clone(entity)
	r.uow.record(func(d *dataset) error {
		t := r.table(d)
		id := r.key(entity)
		if _, exists := t[id]; exists {
			return fmt.Errorf("%s %s: duplicate key", r.name, id)
		}
		t[id] = entity
		return nil
	})
	return nil
}

func (r *repository[T]) Update(_ context.Context, entity T) error {
	entity = r.clone(entity)
	r.uow.record(func(d *dataset) error {
		t := r.table(d)
		id := r.key(entity)
		if _, exists := t[id]; !exists {
			return fmt.Errorf("update %s %s: %w", r.name, id, core.ErrNotFound)
		}
		t[id] = entity
		return nil
	})
	return nil
}

func (r *repository[T]) Delete(_ context.Context, id uuid.UUID) error {
	r.uow.record(func(d *dataset) error {
		t := r.table(d)
		if _, exists := t[id]; !exists {
			return fmt.Errorf("delete %s %s: %w", r.name, id, core.ErrNotFound)
		}
		delete(t, id)
		return nil
	})
	return nil
}

type sessionRepository struct {
	repository[core.ImportSession]
}

func (r *sessionRepository) FindActive(ctx context.Context, tenantID, fileHash string) (core.ImportSession, error) {
	if err := ctx.Err(); err != nil {
		return core.ImportSession{}, err
	}

	r.uow.store.mu.RLock()
	defer r.uow.store.mu.RUnlock()

	matches := r.filter(func(s core.ImportSession) bool {
		return s.TenantID == tenantID && s.FileHash == fileHash && !s.RolledBack
	})
	if len(matches) == 0 {
		return core.ImportSession{}, fmt.Errorf("active session for hash %s: %w", fileHash, core.ErrNotFound)
	}
	return slices.MaxFunc(matches, func(a, b core.ImportSession) int {
		return a.ImportedAt.Compare(b.ImportedAt)
	}), nil
}

type auditRepository struct {
	repository[core.AuditLog]
}

// DeleteBefore prunes immediately, outside the unit of work.
func (r *auditRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.uow.store.mu.Lock()
	defer r.uow.store.mu.Unlock()

	var n int64
	for id, entry := range r.uow.store.data.auditLogs {
		if entry.CreatedAt.Before(cutoff) {
			delete(r.uow.store.data.auditLogs, id)
			n++
		}
	}
	return n, nil
}
