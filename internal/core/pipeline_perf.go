package core

import (
	"context"
	"time"

	"github.com/JonMunkholm/orderimport/internal/logging"
)

// PerformanceDecorator times an Importer and logs the outcome. It does not
// change the wrapped importer's result.
type PerformanceDecorator struct {
	inner Importer
}

// NewPerformanceDecorator wraps inner.
func NewPerformanceDecorator(inner Importer) *PerformanceDecorator {
	return &PerformanceDecorator{inner: inner}
}

// Execute implements Importer.
func (d *PerformanceDecorator) Execute(ctx context.Context, ic *ImportContext) (*ImportContext, error) {
	logger := logging.WithFields(ctx, "tenant", ic.TenantID, "file", ic.FileName)
	logger.Info("[PERFORMANCE] import started")
	start := time.Now()

	out, err := d.inner.Execute(ctx, ic)
	elapsed := time.Since(start)

	if err != nil {
		importDuration.WithLabelValues(outcomeError).Observe(elapsed.Seconds())
		importsTotal.WithLabelValues(outcomeError).Inc()
		logger.Error("[PERFORMANCE] import failed",
			"duration_ms", elapsed.Milliseconds(),
			"error", err,
		)
		return out, err
	}

	res := out.Result()
	outcome := outcomeRejected
	if res.Success {
		outcome = outcomeSuccess
		importedOrders.Add(float64(res.OrdersCount))
		importedItems.Add(float64(res.ItemsCount))
	}
	importDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	importsTotal.WithLabelValues(outcome).Inc()

	logger.Info("[PERFORMANCE] import completed",
		"duration_ms", elapsed.Milliseconds(),
		"orders", res.OrdersCount,
		"items", res.ItemsCount,
		"success", res.Success,
		"errors", len(res.Errors),
	)
	return out, nil
}
