package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/orderimport/internal/core"
)

type execCall struct {
	sql  string
	args []any
}

// fakeTx records Exec calls. Methods not overridden panic through the nil
// embedded interface, which keeps the fake honest about what Commit uses.
type fakeTx struct {
	pgx.Tx

	execs      []execCall
	failOn     string
	affected   string
	committed  bool
	rolledBack bool
}

func (f *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	if f.failOn != "" && strings.Contains(sql, f.failOn) {
		return pgconn.CommandTag{}, errors.New(`ERROR: duplicate key value violates unique constraint "customers_pkey" (SQLSTATE 23505)`)
	}
	if f.affected != "" {
		return pgconn.NewCommandTag(f.affected), nil
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	if !f.committed {
		f.rolledBack = true
	}
	return nil
}

type fakePool struct {
	DBTX

	tx     *fakeTx
	begins int
}

func (p *fakePool) Begin(context.Context) (pgx.Tx, error) {
	p.begins++
	return p.tx, nil
}

func newFake() (*Store, *fakePool) {
	pool := &fakePool{tx: &fakeTx{}}
	return New(pool), pool
}

func TestCommitReplaysWritesInOrder(t *testing.T) {
	store, pool := newFake()
	ctx := context.Background()

	uow, err := store.Begin(ctx)
	require.NoError(t, err)

	cat := core.Category{ID: uuid.New(), TenantID: "t1", Name: "Electronics"}
	prod := core.Product{ID: uuid.New(), TenantID: "t1", Name: "Laptop", Price: decimal.RequireFromString("999.50"), CategoryID: cat.ID}
	order := core.Order{ID: uuid.New(), TenantID: "t1", OrderDate: time.Now(), Status: core.StatusPending}
	order.AddItem(core.OrderItem{ID: uuid.New(), ProductID: prod.ID, Quantity: 2, UnitPrice: prod.Price})

	require.NoError(t, uow.Categories().Add(ctx, cat))
	require.NoError(t, uow.Products().Add(ctx, prod))
	require.NoError(t, uow.Orders().Add(ctx, order))
	assert.Zero(t, pool.begins, "nothing touches the database before Commit")

	require.NoError(t, uow.Commit(ctx))
	assert.Equal(t, 1, pool.begins)
	assert.True(t, pool.tx.committed)

	execs := pool.tx.execs
	require.Len(t, execs, 4)
	assert.Contains(t, execs[0].sql, "INSERT INTO categories")
	assert.Contains(t, execs[1].sql, "INSERT INTO products")
	assert.Equal(t, "999.5", execs[1].args[4], "decimals are sent as text")
	assert.Contains(t, execs[2].sql, "INSERT INTO orders")
	assert.Equal(t, "1999", execs[2].args[4])
	assert.Contains(t, execs[3].sql, "INSERT INTO order_items")
	assert.Equal(t, 0, execs[3].args[2], "line number")

	require.NoError(t, uow.Rollback(ctx), "rollback after commit is a no-op")
}

func TestCommitFailureRollsBack(t *testing.T) {
	store, pool := newFake()
	pool.tx.failOn = "INSERT INTO customers"
	ctx := context.Background()

	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, uow.Categories().Add(ctx, core.Category{ID: uuid.New(), TenantID: "t1", Name: "A"}))
	require.NoError(t, uow.Customers().Add(ctx, core.Customer{ID: uuid.New(), TenantID: "t1", Email: "a@example.com"}))
	require.NoError(t, uow.Sessions().Add(ctx, core.ImportSession{ID: uuid.New(), TenantID: "t1"}))

	err = uow.Commit(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert customer")
	assert.Equal(t, "DB001", core.MapError(err).Code)

	assert.False(t, pool.tx.committed)
	assert.True(t, pool.tx.rolledBack)
	assert.Len(t, pool.tx.execs, 2, "writes after the failure are not attempted")
}

func TestUpdateMissingRowIsNotFound(t *testing.T) {
	store, pool := newFake()
	pool.tx.affected = "UPDATE 0"
	ctx := context.Background()

	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, uow.Sessions().Update(ctx, core.ImportSession{ID: uuid.New(), RolledBack: true}))

	err = uow.Commit(ctx)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestDeleteMissingRowIsNotFound(t *testing.T) {
	store, pool := newFake()
	pool.tx.affected = "DELETE 0"
	ctx := context.Background()

	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, uow.Products().Delete(ctx, uuid.New()))

	assert.ErrorIs(t, uow.Commit(ctx), core.ErrNotFound)
}

func TestEmptyCommitSkipsTransaction(t *testing.T) {
	store, pool := newFake()
	ctx := context.Background()

	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, uow.Commit(ctx))
	assert.Zero(t, pool.begins)
}

func TestRollbackDiscardsPending(t *testing.T) {
	store, pool := newFake()
	ctx := context.Background()

	uow, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, uow.Customers().Add(ctx, core.Customer{ID: uuid.New()}))
	require.NoError(t, uow.Rollback(ctx))
	require.NoError(t, uow.Commit(ctx))
	assert.Zero(t, pool.begins)
}

func TestBeginCancelled(t *testing.T) {
	store, _ := newFake()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Begin(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseNumeric(t *testing.T) {
	d, err := parseNumeric("price", "12.30")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("12.3")))

	_, err = parseNumeric("price", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "column price")
}

func TestMigrationsEmbedded(t *testing.T) {
	data, err := migrations.ReadFile("migrations/00001_init.sql")
	require.NoError(t, err)
	sql := string(data)
	assert.Contains(t, sql, "-- +goose Up")
	assert.Contains(t, sql, "-- +goose Down")
	for _, table := range []string{"customers", "categories", "products", "orders", "order_items", "import_sessions", "audit_logs"} {
		assert.Contains(t, sql, "CREATE TABLE "+table+" (")
	}
}
