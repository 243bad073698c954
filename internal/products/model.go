package products

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a sellable item. Price is the current list price; order lines keep their own copy.
type Product struct {
	ID        int64
	SKU       string
	Name      string
	Price     decimal.Decimal
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Label is the display form used in pickers, e.g. "SKU-1 - Widget".
func (p Product) Label() string {
	return p.SKU + " - " + p.Name
}
