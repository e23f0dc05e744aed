package core

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/JonMunkholm/orderimport/internal/logging"
)

// AuditSeverity represents the severity level of an audit entry.
type AuditSeverity string

const (
	SeverityLow    AuditSeverity = "low"
	SeverityMedium AuditSeverity = "medium"
	SeverityHigh   AuditSeverity = "high"
)

// determineSeverity maps an action to its audit severity.
func determineSeverity(action ImportAction) AuditSeverity {
	switch action {
	case ActionRolledBack:
		return SeverityHigh
	case ActionRestored:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// MaxAuditMessageLength bounds AuditLog.Message, in runes.
const MaxAuditMessageLength = 255

// AuditLog is one persisted audit record.
type AuditLog struct {
	ID        uuid.UUID     `json:"id"`
	TenantID  string        `json:"tenantId"`
	Action    ImportAction  `json:"action"`
	Severity  AuditSeverity `json:"severity"`
	Message   string        `json:"message"`
	RelatedID uuid.UUID     `json:"relatedId"`
	IPAddress string        `json:"ipAddress,omitempty"`
	UserAgent string        `json:"userAgent,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

// AuditObserver writes one audit record per event in its own storage scope.
type AuditObserver struct {
	store Store
}

// NewAuditObserver creates an audit writer over store.
func NewAuditObserver(store Store) *AuditObserver {
	return &AuditObserver{store: store}
}

func (a *AuditObserver) Name() string { return "audit" }

// Handle persists the audit record for event.
func (a *AuditObserver) Handle(ctx context.Context, event ImportEvent) error {
	entry := buildAuditLog(ctx, event)

	uow, err := a.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin audit: %w", err)
	}
	defer func() { _ = uow.Rollback(ctx) }()

	if err := uow.AuditLogs().Add(ctx, entry); err != nil {
		return fmt.Errorf("add audit log: %w", err)
	}
	if err := uow.Commit(ctx); err != nil {
		return fmt.Errorf("commit audit log: %w", err)
	}

	logging.FromContext(ctx).Debug("audit log written",
		"audit_id", entry.ID,
		"action", entry.Action,
		"severity", entry.Severity,
	)
	return nil
}

// buildAuditLog renders event as an audit record stamped with the event time.
// Request metadata is taken from ctx when the web layer put it there.
func buildAuditLog(ctx context.Context, event ImportEvent) AuditLog {
	orders := 0
	if event.OrdersCount != nil {
		orders = *event.OrdersCount
	}

	return AuditLog{
		ID:        uuid.New(),
		TenantID:  event.TenantID,
		Action:    event.Action,
		Severity:  determineSeverity(event.Action),
		Message:   truncateRunes(fmt.Sprintf("File: %s. Orders: %d. %s", event.FileName, orders, event.Message), MaxAuditMessageLength),
		RelatedID: event.SessionID,
		IPAddress: GetIPAddressFromContext(ctx),
		UserAgent: GetUserAgentFromContext(ctx),
		CreatedAt: event.Timestamp,
	}
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}
