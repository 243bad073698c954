package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPlaced    Status = "PLACED"
	StatusShipped   Status = "SHIPPED"
	StatusCancelled Status = "CANCELLED"
)

// Statuses lists every order status in display order.
var Statuses = []Status{StatusDraft, StatusPlaced, StatusShipped, StatusCancelled}

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPlaced, StatusShipped, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Label() string {
	switch s {
	case StatusDraft:
		return "Draft"
	case StatusPlaced:
		return "Placed"
	case StatusShipped:
		return "Shipped"
	case StatusCancelled:
		return "Cancelled"
	}
	return string(s)
}

// Order is a customer's order. OrderDate is set once at creation.
type Order struct {
	ID            int64
	CustomerID    int64
	CustomerName  string
	CustomerEmail string
	Status        Status
	OrderDate     time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Items         []OrderItem
}

// OrderItem is one product line of an order. UnitPrice is captured when the line
// is written and does not follow later product price changes.
type OrderItem struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	ProductSKU  string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CustomerRef is the slice of a customer the order workflow reads.
type CustomerRef struct {
	ID    int64
	Name  string
	Email string
}

// ProductRef is the slice of a product the order workflow reads.
type ProductRef struct {
	ID       int64
	SKU      string
	Name     string
	Price    decimal.Decimal
	IsActive bool
}
