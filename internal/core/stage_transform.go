package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TransformStage groups rows into orders and resolves master data.
//
// Rows sharing the raw OrderDate text and the normalized customer email form
// one order, in order of first appearance. Customers are matched by email,
// categories and products by name, all case-insensitively, against both stored
// records and records created earlier in this run.
type TransformStage struct {
	now func() time.Time
}

// NewTransformStage uses now for CreatedAt/UpdatedAt stamps.
func NewTransformStage(now func() time.Time) TransformStage {
	if now == nil {
		now = time.Now
	}
	return TransformStage{now: now}
}

func (TransformStage) Name() string { return "transform" }

// masterData indexes the tenant's master records by normalized key.
type masterData struct {
	customers  map[string]Customer
	categories map[string]Category
	products   map[string]Product
}

func loadMasterData(ctx context.Context, uow UnitOfWork, tenantID string) (*masterData, error) {
	customers, err := uow.Customers().List(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load customers: %w", err)
	}
	categories, err := uow.Categories().List(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	products, err := uow.Products().List(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}

	md := &masterData{
		customers:  make(map[string]Customer, len(customers)),
		categories: make(map[string]Category, len(categories)),
		products:   make(map[string]Product, len(products)),
	}
	for _, c := range customers {
		md.customers[NormalizeKey(c.Email)] = c
	}
	for _, c := range categories {
		md.categories[NormalizeKey(c.Name)] = c
	}
	for _, p := range products {
		md.products[NormalizeKey(p.Name)] = p
	}
	return md, nil
}

type orderKey struct {
	date  string
	email string
}

type rowGroup struct {
	key  orderKey
	rows []Row
}

// groupRows buckets rows by order key, keeping first-appearance order.
func groupRows(rows []Row) []*rowGroup {
	var groups []*rowGroup
	index := make(map[orderKey]*rowGroup)
	for _, row := range rows {
		key := orderKey{
			date:  row.Get(ColOrderDate),
			email: NormalizeKey(row.Get(ColCustomerEmail)),
		}
		g, ok := index[key]
		if !ok {
			g = &rowGroup{key: key}
			index[key] = g
			groups = append(groups, g)
		}
		g.rows = append(g.rows, row)
	}
	return groups
}

func (s TransformStage) Execute(ctx context.Context, ic *ImportContext) error {
	md, err := loadMasterData(ctx, ic.UnitOfWork(), ic.TenantID)
	if err != nil {
		ic.Fail(0, ErrColumnDatabase, "Failed to load existing data: "+MapError(err).Message)
		return nil
	}

	now := s.now().UTC()

	for _, g := range groupRows(ic.Rows) {
		if err := ctx.Err(); err != nil {
			return err
		}

		first := g.rows[0]
		orderDate, err := ParseOrderDate(g.key.date)
		if err != nil {
			ic.Fail(first.Number, ErrColumnTransform, fmt.Sprintf("Failed to transform row %d: %v", first.Number, err))
			return nil
		}
		status, ok := ParseOrderStatus(first.Get(ColStatus))
		if !ok {
			ic.Fail(first.Number, ErrColumnTransform, fmt.Sprintf("Failed to transform row %d: %v: status %q",
				first.Number, ErrInvalidValue, first.Get(ColStatus)))
			return nil
		}

		customer := s.resolveCustomer(ic, md, first, now)

		order := Order{
			ID:         uuid.New(),
			TenantID:   ic.TenantID,
			CustomerID: customer.ID,
			OrderDate:  orderDate,
			Status:     status,
			UpdatedAt:  now,
		}

		for _, row := range g.rows {
			item, err := s.buildItem(ic, md, row)
			if err != nil {
				ic.Fail(row.Number, ErrColumnTransform, fmt.Sprintf("Failed to transform row %d: %v", row.Number, err))
				return nil
			}
			order.AddItem(item)
		}

		ic.Orders = append(ic.Orders, order)
	}

	return nil
}

func (s TransformStage) resolveCustomer(ic *ImportContext, md *masterData, row Row, now time.Time) Customer {
	email := row.Get(ColCustomerEmail)
	key := NormalizeKey(email)
	if c, ok := md.customers[key]; ok {
		return c
	}

	c := Customer{
		ID:        uuid.New(),
		TenantID:  ic.TenantID,
		FullName:  row.Get(ColCustomerName),
		Email:     email,
		CreatedAt: now,
	}
	md.customers[key] = c
	ic.NewCustomers = append(ic.NewCustomers, c)
	return c
}

func (s TransformStage) resolveCategory(ic *ImportContext, md *masterData, name string) Category {
	key := NormalizeKey(name)
	if c, ok := md.categories[key]; ok {
		return c
	}

	c := Category{ID: uuid.New(), TenantID: ic.TenantID, Name: name}
	md.categories[key] = c
	ic.NewCategories = append(ic.NewCategories, c)
	return c
}

func (s TransformStage) buildItem(ic *ImportContext, md *masterData, row Row) (OrderItem, error) {
	qty, err := ParseQuantity(row.Get(ColQuantity))
	if err != nil {
		return OrderItem{}, err
	}
	price, err := ParseDecimal(row.Get(ColUnitPrice))
	if err != nil {
		return OrderItem{}, err
	}
	// Prices are stored with cent precision; round before the order total
	// is derived so the persisted items still sum to it.
	price = price.Round(PriceScale)

	category := s.resolveCategory(ic, md, row.Get(ColCategoryName))

	name := row.Get(ColProductName)
	key := NormalizeKey(name)
	product, ok := md.products[key]
	if !ok {
		product = Product{
			ID:         uuid.New(),
			TenantID:   ic.TenantID,
			Name:       name,
			Price:      price,
			CategoryID: category.ID,
		}
		md.products[key] = product
		ic.NewProducts = append(ic.NewProducts, product)
	}

	return OrderItem{
		ID:        uuid.New(),
		ProductID: product.ID,
		Quantity:  qty,
		UnitPrice: price,
	}, nil
}
