package core

import (
	"context"
	"time"

	"github.com/JonMunkholm/orderimport/internal/logging"
)

// PerformanceObserver logs each event with its latency since the event was
// stamped and counts events by action.
type PerformanceObserver struct {
	now func() time.Time
}

// NewPerformanceObserver creates the timing logger.
func NewPerformanceObserver(now func() time.Time) *PerformanceObserver {
	if now == nil {
		now = time.Now
	}
	return &PerformanceObserver{now: now}
}

func (p *PerformanceObserver) Name() string { return "performance" }

func (p *PerformanceObserver) Handle(ctx context.Context, event ImportEvent) error {
	eventsTotal.WithLabelValues(string(event.Action)).Inc()

	args := []any{
		"action", event.Action,
		"tenant", event.TenantID,
		"session_id", event.SessionID,
		"file", event.FileName,
		"completed_at", event.Timestamp.Format(time.RFC3339),
		"dispatch_lag_ms", p.now().Sub(event.Timestamp).Milliseconds(),
	}
	if event.OrdersCount != nil {
		args = append(args, "orders", *event.OrdersCount)
	}

	logging.FromContext(ctx).Info("[PERFORMANCE] event handled", args...)
	return nil
}
