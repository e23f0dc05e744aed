package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an imported order.
type OrderStatus string

const (
	StatusPending    OrderStatus = "Pending"
	StatusProcessing OrderStatus = "Processing"
	StatusShipped    OrderStatus = "Shipped"
	StatusDelivered  OrderStatus = "Delivered"
	StatusCancelled  OrderStatus = "Cancelled"
)

// OrderStatuses lists the accepted statuses in display order.
var OrderStatuses = []OrderStatus{
	StatusPending,
	StatusProcessing,
	StatusShipped,
	StatusDelivered,
	StatusCancelled,
}

// ParseOrderStatus matches s case-insensitively against OrderStatuses.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	s = strings.TrimSpace(s)
	for _, st := range OrderStatuses {
		if strings.EqualFold(s, string(st)) {
			return st, true
		}
	}
	return "", false
}

// Customer is a tenant-scoped buyer, matched by email.
type Customer struct {
	ID        uuid.UUID `json:"id"`
	TenantID  string    `json:"tenantId"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Category is a tenant-scoped product grouping, matched by name.
type Category struct {
	ID       uuid.UUID `json:"id"`
	TenantID string    `json:"tenantId"`
	Name     string    `json:"name"`
}

// Product is a tenant-scoped catalog entry, matched by name.
type Product struct {
	ID          uuid.UUID       `json:"id"`
	TenantID    string          `json:"tenantId"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	CategoryID  uuid.UUID       `json:"categoryId"`
}

// OrderItem is one line of an order.
type OrderItem struct {
	ID        uuid.UUID       `json:"id"`
	OrderID   uuid.UUID       `json:"orderId"`
	ProductID uuid.UUID       `json:"productId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// LineTotal returns quantity x unit price.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order groups the items bought by one customer at one order date.
type Order struct {
	ID              uuid.UUID       `json:"id"`
	TenantID        string          `json:"tenantId"`
	CustomerID      uuid.UUID       `json:"customerId"`
	OrderDate       time.Time       `json:"orderDate"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Status          OrderStatus     `json:"status"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	ImportSessionID uuid.UUID       `json:"importSessionId"`
	Items           []OrderItem     `json:"items"`
}

// AddItem appends an item and keeps TotalAmount equal to the item sum.
func (o *Order) AddItem(item OrderItem) {
	item.OrderID = o.ID
	o.Items = append(o.Items, item)
	o.TotalAmount = o.TotalAmount.Add(item.LineTotal())
}

// ComputeTotal returns the sum of all line totals.
func (o *Order) ComputeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// ImportSession records one committed import. (TenantID, FileHash, !RolledBack)
// is the logical dedup key; it is enforced by query, not by a unique index.
type ImportSession struct {
	ID          uuid.UUID `json:"id"`
	TenantID    string    `json:"tenantId"`
	FileName    string    `json:"fileName"`
	FileHash    string    `json:"fileHash"`
	ImportedAt  time.Time `json:"importedAt"`
	OrdersCount int       `json:"ordersCount"`
	ItemsCount  int       `json:"itemsCount"`
	RolledBack  bool      `json:"isRolledBack"`
}

// ImportAction tags an import event and its audit record.
type ImportAction string

const (
	ActionImported   ImportAction = "Imported"
	ActionRolledBack ImportAction = "RolledBack"
	ActionRestored   ImportAction = "Restored"
)
