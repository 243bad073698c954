package orders

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/orderdesk/internal/integrity"
	"github.com/odyssey-erp/orderdesk/internal/shared"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	orders    map[int64]*Order
	items     map[int64]*OrderItem
	customers map[int64]CustomerRef
	products  map[int64]ProductRef

	nextOrderID int64
	nextItemID  int64

	// Error injection
	txError        error
	createItemErr  error
	listItemsCalls int
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		orders:      make(map[int64]*Order),
		items:       make(map[int64]*OrderItem),
		customers:   make(map[int64]CustomerRef),
		products:    make(map[int64]ProductRef),
		nextOrderID: 1,
		nextItemID:  1,
	}
}

// WithTx snapshots state and restores it when fn fails, like a rolled back transaction.
func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if m.txError != nil {
		return m.txError
	}
	orders := make(map[int64]*Order, len(m.orders))
	for id, o := range m.orders {
		copied := *o
		orders[id] = &copied
	}
	items := make(map[int64]*OrderItem, len(m.items))
	for id, item := range m.items {
		copied := *item
		items[id] = &copied
	}
	nextOrder, nextItem := m.nextOrderID, m.nextItemID
	if err := fn(ctx, m); err != nil {
		m.orders, m.items = orders, items
		m.nextOrderID, m.nextItemID = nextOrder, nextItem
		return err
	}
	return nil
}

func (m *mockRepository) addCustomer(id int64, name string) {
	m.customers[id] = CustomerRef{ID: id, Name: name, Email: fmt.Sprintf("c%d@example.test", id)}
}

func (m *mockRepository) addProduct(id int64, sku, price string) {
	m.products[id] = ProductRef{ID: id, SKU: sku, Name: "Product " + sku, Price: decimal.RequireFromString(price), IsActive: true}
}

func (m *mockRepository) withCustomer(o *Order) *Order {
	copied := *o
	c := m.customers[o.CustomerID]
	copied.CustomerName = c.Name
	copied.CustomerEmail = c.Email
	copied.Items = nil
	return &copied
}

func (m *mockRepository) GetOrder(ctx context.Context, id int64) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, &shared.NotFoundError{Entity: "order", ID: id}
	}
	return m.withCustomer(o), nil
}

func (m *mockRepository) GetOrderForUpdate(ctx context.Context, id int64) (*Order, error) {
	return m.GetOrder(ctx, id)
}

func (m *mockRepository) ListOrders(ctx context.Context, req ListOrdersRequest) ([]Order, int, error) {
	var result []Order
	for _, o := range m.orders {
		if req.CustomerID != nil && o.CustomerID != *req.CustomerID {
			continue
		}
		if req.Status != nil && o.Status != *req.Status {
			continue
		}
		result = append(result, *m.withCustomer(o))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	total := len(result)
	if req.Offset >= len(result) {
		return nil, total, nil
	}
	end := min(req.Offset+req.Limit, len(result))
	return result[req.Offset:end], total, nil
}

func (m *mockRepository) CreateOrder(ctx context.Context, o Order) (*Order, error) {
	o.ID = m.nextOrderID
	m.nextOrderID++
	now := time.Now()
	o.OrderDate = now.Truncate(24 * time.Hour)
	o.CreatedAt = now
	o.UpdatedAt = now
	m.orders[o.ID] = &o
	return m.withCustomer(&o), nil
}

func (m *mockRepository) UpdateOrder(ctx context.Context, id int64, updates map[string]any) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, &shared.NotFoundError{Entity: "order", ID: id}
	}
	if v, ok := updates["customer_id"]; ok {
		o.CustomerID = v.(int64)
	}
	if v, ok := updates["status"]; ok {
		o.Status = v.(Status)
	}
	o.UpdatedAt = time.Now()
	return m.withCustomer(o), nil
}

func (m *mockRepository) DeleteOrder(ctx context.Context, id int64) error {
	if _, ok := m.orders[id]; !ok {
		return &shared.NotFoundError{Entity: "order", ID: id}
	}
	for _, item := range m.items {
		if item.OrderID == id {
			return fmt.Errorf("order %d still has lines", id)
		}
	}
	delete(m.orders, id)
	return nil
}

func (m *mockRepository) CountStatusBefore(ctx context.Context, status Status, before time.Time) (int, error) {
	n := 0
	for _, o := range m.orders {
		if o.Status == status && o.OrderDate.Before(before) {
			n++
		}
	}
	return n, nil
}

func (m *mockRepository) withProduct(item *OrderItem) OrderItem {
	copied := *item
	p := m.products[item.ProductID]
	copied.ProductSKU = p.SKU
	copied.ProductName = p.Name
	return copied
}

func (m *mockRepository) sortedItems(keep func(OrderItem) bool) []OrderItem {
	var out []OrderItem
	for _, item := range m.items {
		if keep(*item) {
			out = append(out, m.withProduct(item))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderID != out[j].OrderID {
			return out[i].OrderID < out[j].OrderID
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *mockRepository) ListItems(ctx context.Context, orderIDs []int64) ([]OrderItem, error) {
	m.listItemsCalls++
	wanted := make(map[int64]bool, len(orderIDs))
	for _, id := range orderIDs {
		wanted[id] = true
	}
	return m.sortedItems(func(item OrderItem) bool { return wanted[item.OrderID] }), nil
}

func (m *mockRepository) ListAllItems(ctx context.Context, req ListItemsRequest) ([]OrderItem, int, error) {
	result := m.sortedItems(func(item OrderItem) bool {
		return req.OrderID == nil || item.OrderID == *req.OrderID
	})
	total := len(result)
	if req.Offset >= len(result) {
		return nil, total, nil
	}
	end := min(req.Offset+req.Limit, len(result))
	return result[req.Offset:end], total, nil
}

func (m *mockRepository) GetItem(ctx context.Context, id int64) (*OrderItem, error) {
	item, ok := m.items[id]
	if !ok {
		return nil, &shared.NotFoundError{Entity: "order item", ID: id}
	}
	copied := m.withProduct(item)
	return &copied, nil
}

func (m *mockRepository) CreateItem(ctx context.Context, item OrderItem) (*OrderItem, error) {
	if m.createItemErr != nil {
		return nil, m.createItemErr
	}
	item.ID = m.nextItemID
	m.nextItemID++
	item.CreatedAt = time.Now()
	item.UpdatedAt = item.CreatedAt
	m.items[item.ID] = &item
	copied := m.withProduct(&item)
	return &copied, nil
}

func (m *mockRepository) UpdateItem(ctx context.Context, item OrderItem) (*OrderItem, error) {
	existing, ok := m.items[item.ID]
	if !ok {
		return nil, &shared.NotFoundError{Entity: "order item", ID: item.ID}
	}
	existing.ProductID = item.ProductID
	existing.Quantity = item.Quantity
	existing.UnitPrice = item.UnitPrice
	existing.UpdatedAt = time.Now()
	copied := m.withProduct(existing)
	return &copied, nil
}

func (m *mockRepository) DeleteItems(ctx context.Context, ids []int64) error {
	for _, id := range ids {
		delete(m.items, id)
	}
	return nil
}

func (m *mockRepository) LookupProducts(ctx context.Context, ids []int64) (map[int64]ProductRef, error) {
	out := make(map[int64]ProductRef)
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *mockRepository) GetCustomer(ctx context.Context, id int64) (*CustomerRef, error) {
	c, ok := m.customers[id]
	if !ok {
		return nil, &shared.NotFoundError{Entity: "customer", ID: id}
	}
	return &c, nil
}

func (m *mockRepository) CustomerChoices(ctx context.Context) ([]CustomerRef, error) {
	var out []CustomerRef
	for _, c := range m.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockRepository) ProductChoices(ctx context.Context) ([]ProductRef, error) {
	var out []ProductRef
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (m *mockRepository) References() integrity.Store {
	return mockReferences{repo: m}
}

type mockReferences struct {
	repo *mockRepository
}

func (r mockReferences) CountChildren(ctx context.Context, rule integrity.Rule, parentID int64) (int, error) {
	n := 0
	for _, item := range r.repo.items {
		if item.OrderID == parentID {
			n++
		}
	}
	return n, nil
}

func (r mockReferences) DeleteChildren(ctx context.Context, rule integrity.Rule, parentID int64) (int64, error) {
	var n int64
	for id, item := range r.repo.items {
		if item.OrderID == parentID {
			delete(r.repo.items, id)
			n++
		}
	}
	return n, nil
}

// recordingNotifier captures status changes.
type recordingNotifier struct {
	changes []StatusChange
	err     error
}

func (n *recordingNotifier) OrderStatusChanged(ctx context.Context, change StatusChange) error {
	n.changes = append(n.changes, change)
	return n.err
}

type countingRecorder map[string]int

func (c countingRecorder) ItemBatch(outcome string, directives int) { c[outcome]++ }

func ptr[T any](v T) *T { return &v }

func money(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// newTestService seeds customer 1 (Acme) and products 1 (SKU-1, 10.00) and 2 (SKU-2, 2.50).
func newTestService() (*Service, *mockRepository, *recordingNotifier) {
	repo := newMockRepository()
	repo.addCustomer(1, "Acme")
	repo.addProduct(1, "SKU-1", "10.00")
	repo.addProduct(2, "SKU-2", "2.50")
	notifier := &recordingNotifier{}
	return NewService(repo, integrity.NewPolicy(), notifier, nil), repo, notifier
}
