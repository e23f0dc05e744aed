package core

import (
	"io"

	"github.com/google/uuid"
)

// Error columns used for file-level and infrastructure errors.
const (
	ErrColumnFile      = "File"
	ErrColumnDatabase  = "Database"
	ErrColumnTransform = "Transform"
)

// ImportContext is the unit of work threaded through every stage of one
// import. It is owned by the pipeline for the duration of a run.
type ImportContext struct {
	// Input
	File     io.ReadSeeker
	FileName string
	TenantID string

	// Hash stage
	FileHash string
	FileSize int64

	// Parse stage
	Headers []string
	Rows    []Row

	// Accumulated by every stage
	Errors []ValidationError

	// Transform stage. New* hold master records created during this run.
	NewCustomers  []Customer
	NewCategories []Category
	NewProducts   []Product
	Orders        []Order

	// Persist stage
	Session *ImportSession

	// Aborted stops the pipeline after the current stage.
	Aborted bool

	uow UnitOfWork
}

// NewImportContext creates a context for one upload.
func NewImportContext(file io.ReadSeeker, fileName, tenantID string) *ImportContext {
	return &ImportContext{
		File:     file,
		FileName: fileName,
		TenantID: tenantID,
	}
}

// UnitOfWork returns the storage scope bound by the pipeline.
func (ic *ImportContext) UnitOfWork() UnitOfWork {
	return ic.uow
}

// HasErrors reports whether any error was recorded.
func (ic *ImportContext) HasErrors() bool {
	return len(ic.Errors) > 0
}

// Stopped reports whether the pipeline must not run further stages.
func (ic *ImportContext) Stopped() bool {
	return ic.Aborted || ic.HasErrors()
}

// AddError records an error without aborting.
func (ic *ImportContext) AddError(row int, column, message string) {
	ic.Errors = append(ic.Errors, ValidationError{Row: row, Column: column, Message: message})
}

// Fail records a single fatal error and aborts.
func (ic *ImportContext) Fail(row int, column, message string) {
	ic.AddError(row, column, message)
	ic.Aborted = true
}

// ItemCount is the number of order items grouped so far.
func (ic *ImportContext) ItemCount() int {
	n := 0
	for _, o := range ic.Orders {
		n += len(o.Items)
	}
	return n
}

// ImportResult is what callers of the pipeline see.
type ImportResult struct {
	Success     bool              `json:"success"`
	OrdersCount int               `json:"ordersCount"`
	ItemsCount  int               `json:"itemsCount"`
	SessionID   *uuid.UUID        `json:"sessionId,omitempty"`
	Errors      []ValidationError `json:"errors"`
}

// Result converts the context. Counts and id come from the persisted session.
func (ic *ImportContext) Result() ImportResult {
	res := ImportResult{
		Success: !ic.Stopped(),
		Errors:  make([]ValidationError, len(ic.Errors)),
	}
	copy(res.Errors, ic.Errors)

	if ic.Session != nil {
		id := ic.Session.ID
		res.SessionID = &id
		res.OrdersCount = ic.Session.OrdersCount
		res.ItemsCount = ic.Session.ItemsCount
	}
	return res
}

// FailedResult builds a result for an import rejected before the pipeline ran.
func FailedResult(errs ...ValidationError) ImportResult {
	if errs == nil {
		errs = []ValidationError{}
	}
	return ImportResult{Errors: errs}
}
