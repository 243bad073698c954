package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/orderdesk/internal/shared"
)

type CreateOrderRequest struct {
	CustomerID int64       `json:"customer_id" validate:"required,gt=0"`
	Status     Status      `json:"status,omitempty" validate:"omitempty,oneof=DRAFT PLACED SHIPPED CANCELLED"`
	Items      []ItemInput `json:"items,omitempty"`
}

// ItemInput is a line supplied together with a new order.
type ItemInput struct {
	ProductID int64            `json:"product_id"`
	Quantity  *int             `json:"quantity,omitempty"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

type UpdateOrderRequest struct {
	CustomerID *int64  `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	Status     *Status `json:"status,omitempty" validate:"omitempty,oneof=DRAFT PLACED SHIPPED CANCELLED"`
}

type ListOrdersRequest struct {
	CustomerID *int64
	Status     *Status
	Limit      int
	Offset     int
}

type CreateItemRequest struct {
	OrderID   int64            `json:"order_id" validate:"required,gt=0"`
	ProductID int64            `json:"product_id" validate:"required,gt=0"`
	Quantity  *int             `json:"quantity,omitempty"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

type UpdateItemRequest struct {
	OrderID   *int64           `json:"order_id,omitempty"`
	ProductID *int64           `json:"product_id,omitempty" validate:"omitempty,gt=0"`
	Quantity  *int             `json:"quantity,omitempty"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

type ListItemsRequest struct {
	OrderID *int64
	Limit   int
	Offset  int
}

// BatchRequest is the body of the line item batch endpoint.
type BatchRequest struct {
	Directives []Directive `json:"directives"`
}

// ItemResponse is the JSON representation of an order line.
type ItemResponse struct {
	ID          int64     `json:"id"`
	OrderID     int64     `json:"order_id"`
	ProductID   int64     `json:"product_id"`
	ProductSKU  string    `json:"product_sku"`
	ProductName string    `json:"product_name"`
	Quantity    int       `json:"quantity"`
	UnitPrice   string    `json:"unit_price"`
	LineTotal   string    `json:"line_total"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// OrderResponse is the JSON representation of an order with its lines and totals.
type OrderResponse struct {
	ID           int64          `json:"id"`
	CustomerID   int64          `json:"customer_id"`
	CustomerName string         `json:"customer_name"`
	Status       Status         `json:"status"`
	OrderDate    string         `json:"order_date"`
	Items        []ItemResponse `json:"items"`
	Subtotal     string         `json:"subtotal"`
	TotalItems   int            `json:"total_items"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func toItemResponse(item OrderItem) ItemResponse {
	return ItemResponse{
		ID:          item.ID,
		OrderID:     item.OrderID,
		ProductID:   item.ProductID,
		ProductSKU:  item.ProductSKU,
		ProductName: item.ProductName,
		Quantity:    item.Quantity,
		UnitPrice:   shared.FormatMoney(item.UnitPrice),
		LineTotal:   shared.FormatMoney(LineTotal(item)),
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}

func toResponse(o Order) OrderResponse {
	items := make([]ItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, toItemResponse(item))
	}
	return OrderResponse{
		ID:           o.ID,
		CustomerID:   o.CustomerID,
		CustomerName: o.CustomerName,
		Status:       o.Status,
		OrderDate:    o.OrderDate.Format(time.DateOnly),
		Items:        items,
		Subtotal:     shared.FormatMoney(Subtotal(o.Items)),
		TotalItems:   TotalItems(o.Items),
		CreatedAt:    o.CreatedAt,
		UpdatedAt:    o.UpdatedAt,
	}
}
