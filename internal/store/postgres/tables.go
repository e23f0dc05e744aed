package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/JonMunkholm/orderimport/internal/core"
)

// Numeric columns are read as text and written as text cast to numeric so
// that decimal values round-trip without passing through float64.

const (
	findActiveClause = " WHERE tenant_id = $1 AND file_hash = $2 AND NOT is_rolled_back" +
		" ORDER BY imported_at DESC LIMIT 1"

	deleteAuditBeforeSQL = `DELETE FROM audit_logs WHERE created_at < $1`

	selectItemsSQL = `SELECT id, order_id, product_id, quantity, unit_price::text
FROM order_items WHERE order_id = ANY($1::uuid[]) ORDER BY order_id, line_no`

	insertItemSQL = `INSERT INTO order_items (id, order_id, line_no, product_id, quantity, unit_price)
VALUES ($1, $2, $3, $4, $5, $6::numeric)`

	deleteItemsSQL = `DELETE FROM order_items WHERE order_id = $1`
)

func parseNumeric(column, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("column %s: %w", column, err)
	}
	return d, nil
}

var customersTable = &table[core.Customer]{
	name:      "customer",
	selectSQL: `SELECT id, tenant_id, full_name, email, created_at FROM customers`,
	deleteSQL: `DELETE FROM customers WHERE id = $1`,
	scan: func(row pgx.CollectableRow) (core.Customer, error) {
		var c core.Customer
		err := row.Scan(&c.ID, &c.TenantID, &c.FullName, &c.Email, &c.CreatedAt)
		return c, err
	},
	id: func(c core.Customer) uuid.UUID { return c.ID },
	insert: func(ctx context.Context, db DBTX, c core.Customer) error {
		_, err := db.Exec(ctx,
			`INSERT INTO customers (id, tenant_id, full_name, email, created_at) VALUES ($1, $2, $3, $4, $5)`,
			c.ID, c.TenantID, c.FullName, c.Email, c.CreatedAt)
		return err
	},
	update: func(ctx context.Context, db DBTX, c core.Customer) (int64, error) {
		tag, err := db.Exec(ctx,
			`UPDATE customers SET tenant_id = $2, full_name = $3, email = $4, created_at = $5 WHERE id = $1`,
			c.ID, c.TenantID, c.FullName, c.Email, c.CreatedAt)
		return tag.RowsAffected(), err
	},
}

var categoriesTable = &table[core.Category]{
	name:      "category",
	selectSQL: `SELECT id, tenant_id, name FROM categories`,
	deleteSQL: `DELETE FROM categories WHERE id = $1`,
	scan: func(row pgx.CollectableRow) (core.Category, error) {
		var c core.Category
		err := row.Scan(&c.ID, &c.TenantID, &c.Name)
		return c, err
	},
	id: func(c core.Category) uuid.UUID { return c.ID },
	insert: func(ctx context.Context, db DBTX, c core.Category) error {
		_, err := db.Exec(ctx,
			`INSERT INTO categories (id, tenant_id, name) VALUES ($1, $2, $3)`,
			c.ID, c.TenantID, c.Name)
		return err
	},
	update: func(ctx context.Context, db DBTX, c core.Category) (int64, error) {
		tag, err := db.Exec(ctx,
			`UPDATE categories SET tenant_id = $2, name = $3 WHERE id = $1`,
			c.ID, c.TenantID, c.Name)
		return tag.RowsAffected(), err
	},
}

var productsTable = &table[core.Product]{
	name:      "product",
	selectSQL: `SELECT id, tenant_id, name, description, price::text, category_id FROM products`,
	deleteSQL: `DELETE FROM products WHERE id = $1`,
	scan: func(row pgx.CollectableRow) (core.Product, error) {
		var (
			p     core.Product
			price string
		)
		if err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.Description, &price, &p.CategoryID); err != nil {
			return p, err
		}
		var err error
		p.Price, err = parseNumeric("price", price)
		return p, err
	},
	id: func(p core.Product) uuid.UUID { return p.ID },
	insert: func(ctx context.Context, db DBTX, p core.Product) error {
		_, err := db.Exec(ctx,
			`INSERT INTO products (id, tenant_id, name, description, price, category_id)
VALUES ($1, $2, $3, $4, $5::numeric, $6)`,
			p.ID, p.TenantID, p.Name, p.Description, p.Price.String(), p.CategoryID)
		return err
	},
	update: func(ctx context.Context, db DBTX, p core.Product) (int64, error) {
		tag, err := db.Exec(ctx,
			`UPDATE products SET tenant_id = $2, name = $3, description = $4, price = $5::numeric, category_id = $6
WHERE id = $1`,
			p.ID, p.TenantID, p.Name, p.Description, p.Price.String(), p.CategoryID)
		return tag.RowsAffected(), err
	},
}

var ordersTable = &table[core.Order]{
	name: "order",
	selectSQL: `SELECT id, tenant_id, customer_id, order_date, total_amount::text, status, updated_at, import_session_id
FROM orders`,
	deleteSQL: `DELETE FROM orders WHERE id = $1`,
	scan: func(row pgx.CollectableRow) (core.Order, error) {
		var (
			o             core.Order
			total, status string
		)
		if err := row.Scan(&o.ID, &o.TenantID, &o.CustomerID, &o.OrderDate, &total, &status, &o.UpdatedAt, &o.ImportSessionID); err != nil {
			return o, err
		}
		o.Status = core.OrderStatus(status)
		var err error
		o.TotalAmount, err = parseNumeric("total_amount", total)
		return o, err
	},
	id: func(o core.Order) uuid.UUID { return o.ID },
	insert: func(ctx context.Context, db DBTX, o core.Order) error {
		_, err := db.Exec(ctx,
			`INSERT INTO orders (id, tenant_id, customer_id, order_date, total_amount, status, updated_at, import_session_id)
VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8)`,
			o.ID, o.TenantID, o.CustomerID, o.OrderDate, o.TotalAmount.String(), string(o.Status), o.UpdatedAt, o.ImportSessionID)
		if err != nil {
			return err
		}
		return insertItems(ctx, db, o)
	},
	update: func(ctx context.Context, db DBTX, o core.Order) (int64, error) {
		tag, err := db.Exec(ctx,
			`UPDATE orders SET tenant_id = $2, customer_id = $3, order_date = $4, total_amount = $5::numeric,
status = $6, updated_at = $7, import_session_id = $8 WHERE id = $1`,
			o.ID, o.TenantID, o.CustomerID, o.OrderDate, o.TotalAmount.String(), string(o.Status), o.UpdatedAt, o.ImportSessionID)
		if err != nil || tag.RowsAffected() == 0 {
			return tag.RowsAffected(), err
		}
		if _, err := db.Exec(ctx, deleteItemsSQL, o.ID); err != nil {
			return 0, err
		}
		return tag.RowsAffected(), insertItems(ctx, db, o)
	},
	hydrate: loadItems,
}

func insertItems(ctx context.Context, db DBTX, o core.Order) error {
	for i, item := range o.Items {
		if _, err := db.Exec(ctx, insertItemSQL,
			item.ID, o.ID, i, item.ProductID, item.Quantity, item.UnitPrice.String()); err != nil {
			return fmt.Errorf("item %s: %w", item.ID, err)
		}
	}
	return nil
}

func loadItems(ctx context.Context, db DBTX, orders []core.Order) error {
	ids := make([]string, len(orders))
	index := make(map[uuid.UUID]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID.String()
		index[o.ID] = i
	}

	rows, err := db.Query(ctx, selectItemsSQL, ids)
	if err != nil {
		return fmt.Errorf("query order items: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.OrderItem, error) {
		var (
			it    core.OrderItem
			price string
		)
		if err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &price); err != nil {
			return it, err
		}
		var err error
		it.UnitPrice, err = parseNumeric("unit_price", price)
		return it, err
	})
	if err != nil {
		return fmt.Errorf("scan order items: %w", err)
	}

	for _, it := range items {
		if i, ok := index[it.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	return nil
}

var sessionsTable = &table[core.ImportSession]{
	name: "import session",
	selectSQL: `SELECT id, tenant_id, file_name, file_hash, imported_at, orders_count, items_count, is_rolled_back
FROM import_sessions`,
	deleteSQL: `DELETE FROM import_sessions WHERE id = $1`,
	scan: func(row pgx.CollectableRow) (core.ImportSession, error) {
		var s core.ImportSession
		err := row.Scan(&s.ID, &s.TenantID, &s.FileName, &s.FileHash, &s.ImportedAt, &s.OrdersCount, &s.ItemsCount, &s.RolledBack)
		return s, err
	},
	id: func(s core.ImportSession) uuid.UUID { return s.ID },
	insert: func(ctx context.Context, db DBTX, s core.ImportSession) error {
		_, err := db.Exec(ctx,
			`INSERT INTO import_sessions (id, tenant_id, file_name, file_hash, imported_at, orders_count, items_count, is_rolled_back)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			s.ID, s.TenantID, s.FileName, s.FileHash, s.ImportedAt, s.OrdersCount, s.ItemsCount, s.RolledBack)
		return err
	},
	update: func(ctx context.Context, db DBTX, s core.ImportSession) (int64, error) {
		tag, err := db.Exec(ctx,
			`UPDATE import_sessions SET tenant_id = $2, file_name = $3, file_hash = $4, imported_at = $5,
orders_count = $6, items_count = $7, is_rolled_back = $8 WHERE id = $1`,
			s.ID, s.TenantID, s.FileName, s.FileHash, s.ImportedAt, s.OrdersCount, s.ItemsCount, s.RolledBack)
		return tag.RowsAffected(), err
	},
}

var auditTable = &table[core.AuditLog]{
	name: "audit log",
	selectSQL: `SELECT id, tenant_id, action, severity, message, related_id, ip_address, user_agent, created_at
FROM audit_logs`,
	deleteSQL: `DELETE FROM audit_logs WHERE id = $1`,
	scan: func(row pgx.CollectableRow) (core.AuditLog, error) {
		var (
			l                core.AuditLog
			action, severity string
		)
		err := row.Scan(&l.ID, &l.TenantID, &action, &severity, &l.Message, &l.RelatedID, &l.IPAddress, &l.UserAgent, &l.CreatedAt)
		l.Action = core.ImportAction(action)
		l.Severity = core.AuditSeverity(severity)
		return l, err
	},
	id: func(l core.AuditLog) uuid.UUID { return l.ID },
	insert: func(ctx context.Context, db DBTX, l core.AuditLog) error {
		_, err := db.Exec(ctx,
			`INSERT INTO audit_logs (id, tenant_id, action, severity, message, related_id, ip_address, user_agent, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			l.ID, l.TenantID, string(l.Action), string(l.Severity), l.Message, l.RelatedID, l.IPAddress, l.UserAgent, l.CreatedAt)
		return err
	},
	update: func(ctx context.Context, db DBTX, l core.AuditLog) (int64, error) {
		tag, err := db.Exec(ctx,
			`UPDATE audit_logs SET tenant_id = $2, action = $3, severity = $4, message = $5, related_id = $6,
ip_address = $7, user_agent = $8, created_at = $9 WHERE id = $1`,
			l.ID, l.TenantID, string(l.Action), string(l.Severity), l.Message, l.RelatedID, l.IPAddress, l.UserAgent, l.CreatedAt)
		return tag.RowsAffected(), err
	},
}
