package orders

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/orderdesk/internal/shared"
)

// Op is the kind of change a Directive makes to an order's lines.
type Op string

const (
	OpAdd    Op = "add"
	OpUpdate Op = "update"
	OpRemove Op = "remove"
)

// Directive is one requested change inside an item batch.
//
// add needs ProductID. update and remove need ItemID. A nil UnitPrice on add, or on an
// update that switches product, takes the product's current price. Reprice forces that
// default on an update that keeps its product.
type Directive struct {
	Op        Op               `json:"op"`
	ItemID    int64            `json:"item_id,omitempty"`
	ProductID int64            `json:"product_id,omitempty"`
	Quantity  *int             `json:"quantity,omitempty"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
	Reprice   bool             `json:"reprice,omitempty"`
}

const (
	msgRequired      = "This field is required."
	msgInvalidChoice = "Select a valid choice. That choice is not one of the available choices."
	msgQuantity      = "Ensure this value is greater than or equal to 1."
	msgQuantityMax   = "Ensure this value is less than or equal to 2147483647."
	msgUnknownOp     = "Unknown operation. Use add, update or remove."
	msgForeignItem   = "Select a valid line item of this order."
	msgItemTargeted  = "This line item is already changed by another directive in this batch."
	msgDuplicateLine = "Order item with this Order and Product already exists."
	msgItemOnAdd     = "Leave empty when adding a line item."
	msgMovedLine     = "Line items cannot be moved between orders."
)

// batchPlan is a validated batch, ready to write.
type batchPlan struct {
	removes []int64
	updates []OrderItem
	adds    []OrderItem
}

func (p *batchPlan) empty() bool {
	return len(p.removes) == 0 && len(p.updates) == 0 && len(p.adds) == 0
}

// productIDs lists every product a batch needs priced or checked.
func productIDs(current []OrderItem, directives []Directive) []int64 {
	byItem := make(map[int64]int64, len(current))
	for _, item := range current {
		byItem[item.ID] = item.ProductID
	}
	seen := make(map[int64]bool)
	var ids []int64
	add := func(id int64) {
		if id > 0 && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, d := range directives {
		switch d.Op {
		case OpAdd:
			add(d.ProductID)
		case OpUpdate:
			add(d.ProductID)
			if d.Reprice {
				add(byItem[d.ItemID])
			}
		}
	}
	return ids
}

// slot is a line in the post-batch state of the order.
type slot struct {
	productID int64
	directive int // -1 for a line no directive touches
}

// planBatch validates every directive against the order's current lines and the referenced
// products, and returns either a plan or a BatchValidationError listing all failing directives.
func planBatch(orderID int64, current []OrderItem, products map[int64]ProductRef, directives []Directive) (*batchPlan, error) {
	items := make(map[int64]OrderItem, len(current))
	for _, item := range current {
		items[item.ID] = item
	}

	failures := make(map[int]*shared.ValidationError)
	fail := func(i int, field, msg string) {
		if failures[i] == nil {
			failures[i] = &shared.ValidationError{}
		}
		failures[i].Add(field, msg)
	}

	targeted := make(map[int64]int)
	plan := &batchPlan{}
	removed := make(map[int64]bool)
	replaced := make(map[int64]slot)
	var added []slot

	for i, d := range directives {
		switch d.Op {
		case OpAdd, OpUpdate, OpRemove:
		default:
			fail(i, "op", msgUnknownOp)
			continue
		}

		var existing OrderItem
		if d.Op == OpAdd {
			if d.ItemID != 0 {
				fail(i, "item_id", msgItemOnAdd)
			}
		} else {
			var ok bool
			switch {
			case d.ItemID == 0:
				fail(i, "item_id", msgRequired)
			default:
				existing, ok = items[d.ItemID]
				if !ok {
					fail(i, "item_id", msgForeignItem)
				} else if prev, dup := targeted[d.ItemID]; dup && prev != i {
					fail(i, "item_id", msgItemTargeted)
				} else {
					targeted[d.ItemID] = i
				}
			}
		}

		if d.Op == OpRemove {
			if failures[i] == nil {
				plan.removes = append(plan.removes, d.ItemID)
				removed[d.ItemID] = true
			}
			continue
		}

		line := existing
		line.OrderID = orderID
		productChanged := false
		switch {
		case d.Op == OpAdd && d.ProductID == 0:
			fail(i, "product_id", msgRequired)
		case d.ProductID != 0 && d.ProductID != existing.ProductID:
			product, ok := products[d.ProductID]
			if !ok {
				fail(i, "product_id", msgInvalidChoice)
				break
			}
			productChanged = true
			line.ProductID = product.ID
			line.ProductSKU = product.SKU
			line.ProductName = product.Name
		}

		switch {
		case d.Quantity != nil && *d.Quantity < 1:
			fail(i, "quantity", msgQuantity)
		case d.Quantity != nil && *d.Quantity > math.MaxInt32:
			fail(i, "quantity", msgQuantityMax)
		case d.Quantity != nil:
			line.Quantity = *d.Quantity
		case d.Op == OpAdd:
			line.Quantity = 1
		}

		switch {
		case d.UnitPrice != nil:
			if msg := shared.CheckMoney(*d.UnitPrice); msg != "" {
				fail(i, "unit_price", msg)
			} else {
				line.UnitPrice = *d.UnitPrice
			}
		case productChanged || d.Reprice:
			if product, ok := products[line.ProductID]; ok {
				line.UnitPrice = product.Price
			}
		}

		if failures[i] != nil {
			continue
		}
		if d.Op == OpAdd {
			plan.adds = append(plan.adds, line)
			added = append(added, slot{productID: line.ProductID, directive: i})
		} else {
			plan.updates = append(plan.updates, line)
			replaced[line.ID] = slot{productID: line.ProductID, directive: i}
		}
	}

	// (order, product) must stay unique across the post-batch lines.
	var final []slot
	for _, item := range current {
		if removed[item.ID] {
			continue
		}
		if s, ok := replaced[item.ID]; ok {
			final = append(final, s)
			continue
		}
		final = append(final, slot{productID: item.ProductID, directive: -1})
	}
	final = append(final, added...)

	byProduct := make(map[int64][]slot)
	for _, s := range final {
		byProduct[s.productID] = append(byProduct[s.productID], s)
	}
	for _, group := range byProduct {
		if len(group) < 2 {
			continue
		}
		for _, s := range group {
			if s.directive >= 0 {
				fail(s.directive, "product_id", msgDuplicateLine)
			}
		}
	}

	if len(failures) > 0 {
		return nil, newBatchError(failures)
	}
	return plan, nil
}

func newBatchError(failures map[int]*shared.ValidationError) *shared.BatchValidationError {
	out := &shared.BatchValidationError{}
	for i, verr := range failures {
		out.Errors = append(out.Errors, shared.DirectiveError{Index: i, Fields: verr.Fields})
	}
	sort.Slice(out.Errors, func(a, b int) bool { return out.Errors[a].Index < out.Errors[b].Index })
	return out
}

// applyBatch validates directives against the order's lines inside repo's transaction and
// writes removes, then updates, then adds. Nothing is written unless the whole batch is valid.
func applyBatch(ctx context.Context, repo Repository, orderID int64, directives []Directive) (*batchPlan, error) {
	if len(directives) == 0 {
		return &batchPlan{}, nil
	}
	current, err := repo.ListItems(ctx, []int64{orderID})
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	products, err := repo.LookupProducts(ctx, productIDs(current, directives))
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	plan, err := planBatch(orderID, current, products, directives)
	if err != nil {
		return nil, err
	}

	if len(plan.removes) > 0 {
		if err := repo.DeleteItems(ctx, plan.removes); err != nil {
			return nil, fmt.Errorf("remove order items: %w", err)
		}
	}
	for i, item := range plan.updates {
		updated, err := repo.UpdateItem(ctx, item)
		if err != nil {
			return nil, fmt.Errorf("update order item %d: %w", item.ID, err)
		}
		plan.updates[i] = *updated
	}
	for i, item := range plan.adds {
		created, err := repo.CreateItem(ctx, item)
		if err != nil {
			return nil, fmt.Errorf("add order item: %w", err)
		}
		plan.adds[i] = *created
	}
	return plan, nil
}
