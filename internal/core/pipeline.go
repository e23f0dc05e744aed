package core

// pipeline.go runs the import stages in a fixed order:
//
//	hash -> parse -> validate -> transform -> persist
//
// Each stage works on the shared ImportContext. After every stage the context
// is checked and the run stops as soon as a stage aborted or recorded errors.
// Only a run that clears every stage dispatches the Imported event.
//
// A stage returning a Go error signals an unexpected fault. The pipeline turns
// it into a single generic error on the context, aborts, and returns the error
// so the caller can log it.

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/orderimport/internal/logging"
)

// Stage is one step of the import.
type Stage interface {
	Name() string
	Execute(ctx context.Context, ic *ImportContext) error
}

// Importer runs an import over ic and returns it. Validation failures live on
// the returned context; the error is reserved for infrastructure faults.
type Importer interface {
	Execute(ctx context.Context, ic *ImportContext) (*ImportContext, error)
}

// Pipeline is the stage orchestrator.
type Pipeline struct {
	store  Store
	events *Dispatcher
	stages []Stage
	now    func() time.Time
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithClock sets the time source used for timestamps.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

// WithStages replaces the default stage list.
func WithStages(stages ...Stage) PipelineOption {
	return func(p *Pipeline) { p.stages = stages }
}

// NewPipeline builds the default pipeline over store. events may be nil.
func NewPipeline(store Store, events *Dispatcher, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		store:  store,
		events: events,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.stages == nil {
		p.stages = DefaultStages(p.now)
	}
	return p
}

// DefaultStages returns the order import stages in run order.
func DefaultStages(now func() time.Time) []Stage {
	return []Stage{
		HashStage{},
		NewParseStage(nil),
		NewValidateStage(nil),
		NewTransformStage(now),
		NewPersistStage(now),
	}
}

// Execute implements Importer.
func (p *Pipeline) Execute(ctx context.Context, ic *ImportContext) (*ImportContext, error) {
	logger := logging.WithFields(ctx, "tenant", ic.TenantID, "file", ic.FileName)

	uow, err := p.store.Begin(ctx)
	if err != nil {
		ic.Fail(0, ErrColumnDatabase, "Failed to save data: "+MapError(err).Message)
		return ic, fmt.Errorf("begin import: %w", err)
	}
	ic.uow = uow
	defer func() {
		// No-op after a successful commit.
		_ = uow.Rollback(context.WithoutCancel(ctx))
		ic.uow = nil
	}()

	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			ic.Fail(0, ErrColumnFile, "Import was interrupted: "+MapError(err).Message)
			return ic, fmt.Errorf("before %s stage: %w", stage.Name(), err)
		}

		if err := stage.Execute(ctx, ic); err != nil {
			ic.Fail(0, ErrColumnDatabase, fmt.Sprintf("Unexpected error during %s: %s", stage.Name(), MapError(err).Message))
			return ic, fmt.Errorf("%s stage: %w", stage.Name(), err)
		}

		if ic.Stopped() {
			logger.Debug("import stopped", "stage", stage.Name(), "errors", len(ic.Errors))
			return ic, nil
		}
		logger.Debug("stage completed", "stage", stage.Name())
	}

	if ic.Session != nil && p.events != nil {
		count := ic.Session.OrdersCount
		p.events.Dispatch(ctx, ImportEvent{
			TenantID:    ic.TenantID,
			Action:      ActionImported,
			SessionID:   ic.Session.ID,
			FileName:    ic.FileName,
			Timestamp:   p.now().UTC(),
			OrdersCount: &count,
			Message:     fmt.Sprintf("Successfully imported %d orders.", count),
		})
	}

	return ic, nil
}
