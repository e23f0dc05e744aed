package core

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/orderimport/internal/config"
	"github.com/JonMunkholm/orderimport/internal/logging"
)

// DefaultImportTimeout bounds a single import when config leaves it unset.
const DefaultImportTimeout = 10 * time.Minute

// Service is the entry point used by the web layer.
type Service struct {
	store    Store
	importer Importer
	events   *Dispatcher
	limiter  *ImportLimiter
	timeout  time.Duration
	now      func() time.Time
}

// ImportRequest is one upload to import.
type ImportRequest struct {
	File     io.ReadSeeker
	FileName string
	TenantID string
}

// NewService wires the pipeline over store. The audit and performance
// observers are always registered; extra observers (SNS) are appended.
func NewService(store Store, cfg *config.Config, observers ...Observer) *Service {
	now := time.Now

	all := append([]Observer{
		NewAuditObserver(store),
		NewPerformanceObserver(now),
	}, observers...)
	events := NewDispatcher(all...)

	pipeline := NewPipeline(store, events, WithClock(now))

	timeout := cfg.Upload.Timeout
	if timeout <= 0 {
		timeout = DefaultImportTimeout
	}

	return &Service{
		store:    store,
		importer: NewPerformanceDecorator(pipeline),
		events:   events,
		limiter:  NewImportLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		timeout:  timeout,
		now:      now,
	}
}

// Import runs the pipeline for req. Rejected imports are reported in the
// result; the error is ErrTooManyUploads, a cancelled context, or an
// infrastructure fault that also appears as a generic entry in the result.
func (s *Service) Import(ctx context.Context, req ImportRequest) (ImportResult, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return FailedResult(), err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ic := NewImportContext(req.File, req.FileName, req.TenantID)
	out, err := s.importer.Execute(ctx, ic)
	return out.Result(), err
}

// History returns the tenant's import sessions, newest first.
func (s *Service) History(ctx context.Context, tenantID string) ([]ImportSession, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = uow.Rollback(ctx) }()

	sessions, err := uow.Sessions().List(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	slices.SortStableFunc(sessions, func(a, b ImportSession) int {
		return b.ImportedAt.Compare(a.ImportedAt)
	})
	return sessions, nil
}

// ToggleRollback flips a session between rolled back and active and reports
// the change to observers. A session owned by another tenant is reported as
// not found.
//
// A rolled-back session no longer blocks re-importing the same content.
func (s *Service) ToggleRollback(ctx context.Context, tenantID string, sessionID uuid.UUID) (ImportSession, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return ImportSession{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = uow.Rollback(ctx) }()

	session, err := uow.Sessions().Get(ctx, sessionID)
	if err != nil {
		return ImportSession{}, fmt.Errorf("session %s: %w", sessionID, err)
	}
	if session.TenantID != tenantID {
		return ImportSession{}, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}

	session.RolledBack = !session.RolledBack
	if err := uow.Sessions().Update(ctx, session); err != nil {
		return ImportSession{}, fmt.Errorf("update session: %w", err)
	}
	if err := uow.Commit(ctx); err != nil {
		return ImportSession{}, fmt.Errorf("commit session: %w", err)
	}

	action, verb := ActionRestored, "restored"
	if session.RolledBack {
		action, verb = ActionRolledBack, "rolled back"
	}
	logging.WithFields(ctx, "tenant", tenantID, "session_id", sessionID).
		Info("import session toggled", "action", action)

	count := session.OrdersCount
	s.events.Dispatch(ctx, ImportEvent{
		TenantID:    tenantID,
		Action:      action,
		SessionID:   session.ID,
		FileName:    session.FileName,
		Timestamp:   s.now().UTC(),
		OrdersCount: &count,
		Message:     fmt.Sprintf("Import %s.", verb),
	})

	return session, nil
}

// AuditLog returns the tenant's audit records, newest first.
func (s *Service) AuditLog(ctx context.Context, tenantID string) ([]AuditLog, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = uow.Rollback(ctx) }()

	logs, err := uow.AuditLogs().List(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	slices.SortStableFunc(logs, func(a, b AuditLog) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID.String(), a.ID.String()))
	})
	return logs, nil
}

// PruneAuditLogs deletes audit records created before cutoff.
func (s *Service) PruneAuditLogs(ctx context.Context, cutoff time.Time) (int64, error) {
	uow, err := s.store.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = uow.Rollback(ctx) }()

	n, err := uow.AuditLogs().DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete audit logs: %w", err)
	}
	return n, nil
}

// WaitForImports blocks until in-flight imports finish or ctx is done.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// Observers returns the names of the registered event observers.
func (s *Service) Observers() []string {
	return s.events.Observers()
}

// LimiterStatus reports import slot usage.
func (s *Service) LimiterStatus() ImportLimiterStatus {
	return s.limiter.Status()
}

// IsBusy reports whether err means no import slot was free.
func IsBusy(err error) bool {
	return errors.Is(err, ErrTooManyUploads)
}
