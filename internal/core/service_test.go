package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/orderimport/internal/config"
	"github.com/JonMunkholm/orderimport/internal/core"
	"github.com/JonMunkholm/orderimport/internal/store/memory"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Upload.MaxConcurrent = 2
	cfg.Upload.MaxWaitTime = time.Second
	cfg.Upload.Timeout = time.Minute
	return cfg
}

func newService(t *testing.T, observers ...core.Observer) (*core.Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	return core.NewService(store, testConfig(), observers...), store
}

func importCSV(t *testing.T, svc *core.Service, tenant, name string, lines ...string) core.ImportResult {
	t.Helper()
	res, err := svc.Import(context.Background(), core.ImportRequest{
		File:     csvFile(lines...),
		FileName: name,
		TenantID: tenant,
	})
	require.NoError(t, err)
	return res
}

const sampleLine = "2024-03-15 10:30,Ada,ada@example.com,Laptop,Electronics,2,100,Pending"

func TestService_ImportAndHistory(t *testing.T) {
	rec := &recorder{}
	svc, _ := newService(t, rec)

	first := importCSV(t, svc, "tenant-a", "one.csv", sampleLine)
	require.True(t, first.Success, "errors: %v", first.Errors)
	assert.Equal(t, 1, first.OrdersCount)
	assert.Equal(t, 1, first.ItemsCount)

	// ImportedAt has wall-clock resolution; make the order unambiguous.
	time.Sleep(5 * time.Millisecond)

	second := importCSV(t, svc, "tenant-a", "two.csv",
		"2024-03-16,Bob,bob@example.com,Mouse,Electronics,1,10,Shipped",
		"2024-03-17,Bob,bob@example.com,Mouse,Electronics,1,10,Shipped",
	)
	require.True(t, second.Success)

	history, err := svc.History(context.Background(), "tenant-a")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, *second.SessionID, history[0].ID, "newest first")
	assert.Equal(t, 2, history[0].OrdersCount)
	assert.Equal(t, *first.SessionID, history[1].ID)

	other, err := svc.History(context.Background(), "tenant-b")
	require.NoError(t, err)
	assert.Empty(t, other)

	assert.Equal(t, 2, rec.count())
	assert.Equal(t, 0, svc.LimiterStatus().Active)
}

func TestService_ToggleRollback(t *testing.T) {
	rec := &recorder{}
	svc, _ := newService(t, rec)
	ctx := context.Background()

	res := importCSV(t, svc, "tenant-a", "orders.csv", sampleLine)
	require.True(t, res.Success)

	dup := importCSV(t, svc, "tenant-a", "orders.csv", sampleLine)
	require.False(t, dup.Success)

	session, err := svc.ToggleRollback(ctx, "tenant-a", *res.SessionID)
	require.NoError(t, err)
	assert.True(t, session.RolledBack)

	again := importCSV(t, svc, "tenant-a", "orders.csv", sampleLine)
	assert.True(t, again.Success, "rolled-back session no longer blocks the same content")

	restored, err := svc.ToggleRollback(ctx, "tenant-a", *res.SessionID)
	require.NoError(t, err)
	assert.False(t, restored.RolledBack)

	actions := []core.ImportAction{}
	for _, e := range rec.events {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []core.ImportAction{
		core.ActionImported, core.ActionRolledBack, core.ActionImported, core.ActionRestored,
	}, actions)

	logs, err := svc.AuditLog(ctx, "tenant-a")
	require.NoError(t, err)
	require.Len(t, logs, 4)

	severities := map[core.ImportAction]core.AuditSeverity{}
	for _, l := range logs {
		severities[l.Action] = l.Severity
	}
	assert.Equal(t, core.SeverityLow, severities[core.ActionImported])
	assert.Equal(t, core.SeverityHigh, severities[core.ActionRolledBack])
	assert.Equal(t, core.SeverityMedium, severities[core.ActionRestored])
}

func TestService_ToggleRollbackOtherTenant(t *testing.T) {
	svc, _ := newService(t)

	res := importCSV(t, svc, "tenant-a", "orders.csv", sampleLine)
	require.True(t, res.Success)

	_, err := svc.ToggleRollback(context.Background(), "tenant-b", *res.SessionID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = svc.ToggleRollback(context.Background(), "tenant-a", uuid.New())
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestService_AuditRecordsRequestMeta(t *testing.T) {
	svc, _ := newService(t)
	ctx := core.WithRequestMeta(context.Background(), "203.0.113.7", "curl/8.0")

	res, err := svc.Import(ctx, core.ImportRequest{File: csvFile(sampleLine), FileName: "orders.csv", TenantID: "tenant-a"})
	require.NoError(t, err)
	require.True(t, res.Success)

	logs, err := svc.AuditLog(context.Background(), "tenant-a")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "203.0.113.7", logs[0].IPAddress)
	assert.Equal(t, "curl/8.0", logs[0].UserAgent)
}

func TestService_PruneAuditLogs(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, uow.AuditLogs().Add(ctx, core.AuditLog{ID: uuid.New(), TenantID: "tenant-a", CreatedAt: time.Now().AddDate(-2, 0, 0)}))
	require.NoError(t, uow.AuditLogs().Add(ctx, core.AuditLog{ID: uuid.New(), TenantID: "tenant-a", CreatedAt: time.Now()}))
	require.NoError(t, uow.Commit(ctx))

	n, err := svc.PruneAuditLogs(ctx, time.Now().AddDate(-1, 0, 0))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	logs, err := svc.AuditLog(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestService_RetentionSchedulerRunsAndStops(t *testing.T) {
	svc, store := newService(t)
	ctx, cancel := context.WithCancel(context.Background())

	seed, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, seed.AuditLogs().Add(ctx, core.AuditLog{ID: uuid.New(), TenantID: "tenant-a", CreatedAt: time.Now().AddDate(0, 0, -40)}))
	require.NoError(t, seed.Commit(ctx))

	done := make(chan struct{})
	go func() {
		svc.StartRetentionScheduler(ctx, core.RetentionConfig{RetentionDays: 30, CheckInterval: time.Hour})
		close(done)
	}()

	require.Eventually(t, func() bool {
		logs, err := svc.AuditLog(context.Background(), "tenant-a")
		return err == nil && len(logs) == 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestService_WaitForImportsIdle(t *testing.T) {
	svc, _ := newService(t)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.NoError(t, svc.WaitForImports(ctx))
}
