package orders

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/orderdesk/internal/shared"
)

// LineTotal is unit price times quantity at currency precision.
func LineTotal(item OrderItem) decimal.Decimal {
	return shared.RoundMoney(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
}

// Subtotal sums the line totals of items. An empty order totals 0.00.
func Subtotal(items []OrderItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(LineTotal(item))
	}
	return shared.RoundMoney(sum)
}

// TotalItems sums the quantities of items.
func TotalItems(items []OrderItem) int {
	n := 0
	for _, item := range items {
		n += item.Quantity
	}
	return n
}

// ItemView is an order line with its computed total.
type ItemView struct {
	OrderItem
	LineTotal decimal.Decimal
}

// OrderView is an order with its lines and computed aggregates. Nothing here is stored.
type OrderView struct {
	Order
	Lines      []ItemView
	Subtotal   decimal.Decimal
	TotalItems int
}

// BuildView computes the aggregates of order from its current items.
func BuildView(order Order) OrderView {
	lines := make([]ItemView, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, ItemView{OrderItem: item, LineTotal: LineTotal(item)})
	}
	return OrderView{
		Order:      order,
		Lines:      lines,
		Subtotal:   Subtotal(order.Items),
		TotalItems: TotalItems(order.Items),
	}
}
