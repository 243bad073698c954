package orders

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func line(qty int, price string) OrderItem {
	return OrderItem{Quantity: qty, UnitPrice: decimal.RequireFromString(price)}
}

func TestLineTotal(t *testing.T) {
	tests := []struct {
		name string
		item OrderItem
		want string
	}{
		{"whole price", line(3, "10.00"), "30.00"},
		{"cents", line(3, "0.10"), "0.30"},
		{"zero price", line(5, "0"), "0.00"},
		{"large", line(1000, "99999.99"), "99999990.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LineTotal(tt.item).StringFixed(2))
		})
	}
}

func TestSubtotalIsExact(t *testing.T) {
	items := make([]OrderItem, 0, 10)
	for i := 0; i < 10; i++ {
		items = append(items, line(1, "0.10"))
	}
	assert.True(t, Subtotal(items).Equal(decimal.RequireFromString("1.00")))
}

func TestEmptyOrderTotals(t *testing.T) {
	assert.Equal(t, "0.00", Subtotal(nil).StringFixed(2))
	assert.Equal(t, 0, TotalItems(nil))
}

func TestBuildView(t *testing.T) {
	order := Order{ID: 7, Items: []OrderItem{line(3, "10.00"), line(3, "0.00")}}

	view := BuildView(order)
	assert.Equal(t, "30.00", view.Subtotal.StringFixed(2))
	assert.Equal(t, 6, view.TotalItems)
	assert.Len(t, view.Lines, 2)
	assert.Equal(t, "30.00", view.Lines[0].LineTotal.StringFixed(2))
	assert.Equal(t, int64(7), view.ID)
}
