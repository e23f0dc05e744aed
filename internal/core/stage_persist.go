package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PersistStage writes everything the transform stage produced, plus the new
// session, in one commit. Categories, customers and products are added before
// the orders that reference them.
type PersistStage struct {
	now func() time.Time
}

// NewPersistStage uses now for the session's ImportedAt.
func NewPersistStage(now func() time.Time) PersistStage {
	if now == nil {
		now = time.Now
	}
	return PersistStage{now: now}
}

func (PersistStage) Name() string { return "persist" }

func (s PersistStage) Execute(ctx context.Context, ic *ImportContext) error {
	session := ImportSession{
		ID:          uuid.New(),
		TenantID:    ic.TenantID,
		FileName:    ic.FileName,
		FileHash:    ic.FileHash,
		ImportedAt:  s.now().UTC(),
		OrdersCount: len(ic.Orders),
		ItemsCount:  ic.ItemCount(),
	}

	if err := s.write(ctx, ic, session); err != nil {
		ic.Fail(0, ErrColumnDatabase, "Failed to save data: "+MapError(err).Message)
		return nil
	}

	ic.Session = &session
	return nil
}

func (s PersistStage) write(ctx context.Context, ic *ImportContext, session ImportSession) error {
	uow := ic.UnitOfWork()

	for _, c := range ic.NewCategories {
		if err := uow.Categories().Add(ctx, c); err != nil {
			return fmt.Errorf("add category %q: %w", c.Name, err)
		}
	}
	for _, c := range ic.NewCustomers {
		if err := uow.Customers().Add(ctx, c); err != nil {
			return fmt.Errorf("add customer %q: %w", c.Email, err)
		}
	}
	for _, p := range ic.NewProducts {
		if err := uow.Products().Add(ctx, p); err != nil {
			return fmt.Errorf("add product %q: %w", p.Name, err)
		}
	}
	for i := range ic.Orders {
		ic.Orders[i].ImportSessionID = session.ID
		if err := uow.Orders().Add(ctx, ic.Orders[i]); err != nil {
			return fmt.Errorf("add order: %w", err)
		}
	}
	if err := uow.Sessions().Add(ctx, session); err != nil {
		return fmt.Errorf("add session: %w", err)
	}

	if err := uow.Commit(ctx); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}
	return nil
}
