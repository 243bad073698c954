package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/orderdesk/internal/shared"
)

func TestCreateOrderDefaultsToDraft(t *testing.T) {
	svc, _, _ := newTestService()

	order, err := svc.Create(context.Background(), CreateOrderRequest{CustomerID: 1})
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, order.Status)
	assert.Equal(t, "Acme", order.CustomerName)
	assert.False(t, order.OrderDate.IsZero())
	assert.Empty(t, order.Items)
}

func TestCreateOrderUnknownCustomer(t *testing.T) {
	svc, repo, _ := newTestService()

	_, err := svc.Create(context.Background(), CreateOrderRequest{CustomerID: 99})
	var verr *shared.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, msgInvalidChoice, verr.Fields["customer_id"])
	assert.Empty(t, repo.orders)
}

func TestCreateOrderRejectsUnknownStatus(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Create(context.Background(), CreateOrderRequest{CustomerID: 1, Status: "LOST"})
	var verr *shared.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "status")
}

func TestCreateOrderWithItems(t *testing.T) {
	svc, _, _ := newTestService()

	order, err := svc.Create(context.Background(), CreateOrderRequest{
		CustomerID: 1,
		Items:      []ItemInput{{ProductID: 1, Quantity: ptr(3)}},
	})
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "30.00", Subtotal(order.Items).StringFixed(2))
}

func TestCreateOrderWithBadItemsSavesNothing(t *testing.T) {
	svc, repo, _ := newTestService()

	_, err := svc.Create(context.Background(), CreateOrderRequest{
		CustomerID: 1,
		Items:      []ItemInput{{ProductID: 1}, {ProductID: 77}},
	})
	assert.ErrorIs(t, err, shared.ErrBatchInvalid)
	assert.Empty(t, repo.orders)
	assert.Empty(t, repo.items)
}

// Acme orders three SKU-1 at the list price, then a free second line of SKU-2.
func TestOrderTotalsScenario(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	order, err := svc.Create(ctx, CreateOrderRequest{CustomerID: 1})
	require.NoError(t, err)

	_, err = svc.ApplyItemBatch(ctx, order.ID, []Directive{{Op: OpAdd, ProductID: 1, Quantity: ptr(3)}})
	require.NoError(t, err)

	view, err := svc.GetView(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, "10.00", view.Lines[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "30.00", view.Lines[0].LineTotal.StringFixed(2))
	assert.Equal(t, "30.00", view.Subtotal.StringFixed(2))
	assert.Equal(t, 3, view.TotalItems)

	_, err = svc.ApplyItemBatch(ctx, order.ID, []Directive{{Op: OpAdd, ProductID: 2, Quantity: ptr(3), UnitPrice: money("0")}})
	require.NoError(t, err)

	view, err = svc.GetView(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "30.00", view.Subtotal.StringFixed(2))
	assert.Equal(t, 6, view.TotalItems)
}

func TestApplyItemBatchIsAllOrNothing(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	order, err := svc.Create(ctx, CreateOrderRequest{CustomerID: 1, Items: []ItemInput{{ProductID: 1}}})
	require.NoError(t, err)
	itemID := order.Items[0].ID

	_, err = svc.ApplyItemBatch(ctx, order.ID, []Directive{
		{Op: OpUpdate, ItemID: itemID, Quantity: ptr(9)},
		{Op: OpAdd, ProductID: 2},
		{Op: OpAdd, ProductID: 2},
	})
	errs := batchErrors(t, err)
	assert.Len(t, errs, 2)

	require.Len(t, repo.items, 1)
	assert.Equal(t, 1, repo.items[itemID].Quantity)
}

func TestApplyItemBatchRollsBackOnWriteFailure(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	order, err := svc.Create(ctx, CreateOrderRequest{CustomerID: 1, Items: []ItemInput{{ProductID: 1}}})
	require.NoError(t, err)
	repo.createItemErr = errors.New("disk full")

	_, err = svc.ApplyItemBatch(ctx, order.ID, []Directive{
		{Op: OpRemove, ItemID: order.Items[0].ID},
		{Op: OpAdd, ProductID: 2},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply item batch")
	assert.Len(t, repo.items, 1)
}

func TestApplyItemBatchEmptyIsNoop(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	order, err := svc.Create(ctx, CreateOrderRequest{CustomerID: 1, Items: []ItemInput{{ProductID: 1}}})
	require.NoError(t, err)

	result, err := svc.ApplyItemBatch(ctx, order.ID, nil)
	require.NoError(t, err)
	assert.Len(t, result.Items, 1)
}

func TestApplyItemBatchMissingOrder(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.ApplyItemBatch(context.Background(), 404, []Directive{{Op: OpAdd, ProductID: 1}})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestApplyItemBatchRejectsLineOfAnotherOrder(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	first, err := svc.Create(ctx, CreateOrderRequest{CustomerID: 1, Items: []ItemInput{{ProductID: 1}}})
	require.NoError(t, err)
	second, err := svc.Create(ctx, CreateOrderRequest{CustomerID: 1})
	require.NoError(t, err)

	_, err = svc.ApplyItemBatch(ctx, second.ID, []Directive{{Op: OpRemove, ItemID: first.Items[0].ID}})
	errs := batchErrors(t, err)
	assert.Equal(t, msgForeignItem, errs[0]["item_id"])
}

func TestUpdateOrderNotifiesStatusChange(t *testing.T) {
	svc, _, notifier := newTestService()
	ctx := context.Background()
	order, err := svc.Create(ctx, CreateOrderRequest{CustomerID: 1})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, order.ID, UpdateOrderRequest{Status: ptr(StatusPlaced)})
	require.NoError(t, err)
	assert.Equal(t, StatusPlaced, updated.Status)

	require.Len(t, notifier.changes, 1)
	change := notifier.changes[0]
	assert.Equal(t, StatusDraft, change.From)
	assert.Equal(t, StatusPlaced, change.To)
	assert.Equal(t, "c1@example.test", change.CustomerEmail)

	_, err = svc.Update(ctx, order.ID, UpdateOrderRequest{Status: ptr(StatusPlaced)})
	require.NoError(t, err)
	assert.Len(t, notifier.changes, 1)
}

func TestUpdateOrderSkipsNotificationWithoutEmail(t *testing.T) {
	svc, repo, notifier := newTestService()
	repo.customers[2] = CustomerRef{ID: 2, Name: "No Mail"}
	ctx := context.Background()
	order, err := svc.Create(ctx, CreateOrderRequest{CustomerID: 2})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, order.ID, UpdateOrderRequest{Status: ptr(StatusPlaced)})
	require.NoError(t, err)
	assert.Equal(t, StatusPlaced, updated.Status)
	assert.Empty(t, notifier.changes)
}

func TestUpdateOrderNotifierFailureIsNotFatal(t *testing.T) {
	svc, _, notifier := newTestService()
	notifier.err = errors.New("queue down")
	ctx := context.Background()
	order, err := svc.Create(ctx, CreateOrderRequest{CustomerID: 1})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, order.ID, UpdateOrderRequest{Status: ptr(StatusCancelled)})
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, updated.Status)
}

func TestUpdateOrderAllowsAnyTransition(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	order, err := svc.Create(ctx, CreateOrderRequest{CustomerID: 1, Status: StatusShipped})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, order.ID, UpdateOrderRequest{Status: ptr(StatusDraft)})
	require.NoError(t, err)
	assert.Equal(t, StatusDraft, updated.Status)
}

func TestUpdateOrderUnknownCustomer(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	order, err := svc.Create(ctx, CreateOrderRequest{CustomerID: 1})
	require.NoError(t, err)

	_, err = svc.Update(ctx, order.ID, UpdateOrderRequest{CustomerID: ptr(int64(5))})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestDeleteOrderCascadesToItems(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	order, err := svc.Create(ctx, CreateOrderRequest{
		CustomerID: 1,
		Items:      []ItemInput{{ProductID: 1}, {ProductID: 2}},
	})
	require.NoError(t, err)
	require.Len(t, repo.items, 2)

	require.NoError(t, svc.Delete(ctx, order.ID))
	assert.Empty(t, repo.orders)
	assert.Empty(t, repo.items)
}

func TestDeleteOrderNotFound(t *testing.T) {
	svc, _, _ := newTestService()
	assert.ErrorIs(t, svc.Delete(context.Background(), 3), shared.ErrNotFound)
}

func TestListOrdersLoadsItemsInOneQuery(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, CreateOrderRequest{CustomerID: 1, Items: []ItemInput{{ProductID: 1, Quantity: ptr(i + 1)}}})
		require.NoError(t, err)
	}
	repo.listItemsCalls = 0

	views, total, err := svc.ListViews(ctx, ListOrdersRequest{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, views, 3)
	assert.Equal(t, 1, repo.listItemsCalls)
	// newest first
	assert.Equal(t, 3, views[0].TotalItems)
	assert.Equal(t, "30.00", views[0].Subtotal.StringFixed(2))
}

func TestListOrdersFiltersByStatus(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	_, err := svc.Create(ctx, CreateOrderRequest{CustomerID: 1})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateOrderRequest{CustomerID: 1, Status: StatusPlaced})
	require.NoError(t, err)

	orders, total, err := svc.List(ctx, ListOrdersRequest{Status: ptr(StatusPlaced)})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, StatusPlaced, orders[0].Status)
}

func TestCreateItemDefaultsToProductPrice(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	order, err := svc.Create(ctx, CreateOrderRequest{CustomerID: 1})
	require.NoError(t, err)

	item, err := svc.CreateItem(ctx, CreateItemRequest{OrderID: order.ID, ProductID: 2, Quantity: ptr(2)})
	require.NoError(t, err)
	assert.Equal(t, "2.50", item.UnitPrice.StringFixed(2))
	assert.Equal(t, "SKU-2", item.ProductSKU)
}

func TestCreateItemErrorsAreFieldErrors(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	order, err := svc.Create(ctx, CreateOrderRequest{CustomerID: 1, Items: []ItemInput{{ProductID: 1}}})
	require.NoError(t, err)

	_, err = svc.CreateItem(ctx, CreateItemRequest{OrderID: order.ID, ProductID: 1})
	var verr *shared.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, msgDuplicateLine, verr.Fields["product_id"])

	_, err = svc.CreateItem(ctx, CreateItemRequest{OrderID: 500, ProductID: 1})
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, msgInvalidChoice, verr.Fields["order_id"])
}

func TestUpdateItemCannotMoveOrders(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	order, err := svc.Create(ctx, CreateOrderRequest{CustomerID: 1, Items: []ItemInput{{ProductID: 1}}})
	require.NoError(t, err)

	_, err = svc.UpdateItem(ctx, order.Items[0].ID, UpdateItemRequest{OrderID: ptr(order.ID + 1)})
	var verr *shared.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, msgMovedLine, verr.Fields["order_id"])

	updated, err := svc.UpdateItem(ctx, order.Items[0].ID, UpdateItemRequest{Quantity: ptr(4), UnitPrice: money("8.00")})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Quantity)
	assert.Equal(t, "32.00", LineTotal(*updated).StringFixed(2))
}

func TestProductPriceChangeDoesNotTouchLines(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	order, err := svc.Create(ctx, CreateOrderRequest{CustomerID: 1, Items: []ItemInput{{ProductID: 1}}})
	require.NoError(t, err)

	repo.addProduct(1, "SKU-1", "12.00")

	got, err := svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "10.00", got.Items[0].UnitPrice.StringFixed(2))
}

func TestDeleteItem(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	order, err := svc.Create(ctx, CreateOrderRequest{CustomerID: 1, Items: []ItemInput{{ProductID: 1}}})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteItem(ctx, order.Items[0].ID))
	assert.Empty(t, repo.items)
	assert.ErrorIs(t, svc.DeleteItem(ctx, order.Items[0].ID), shared.ErrNotFound)
}

func TestServiceTxFailure(t *testing.T) {
	svc, repo, _ := newTestService()
	repo.txError = errors.New("tx failed")

	_, err := svc.Create(context.Background(), CreateOrderRequest{CustomerID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create order")
}

func TestChoices(t *testing.T) {
	svc, _, _ := newTestService()

	choices, err := svc.Choices(context.Background())
	require.NoError(t, err)
	assert.Len(t, choices.Customers, 1)
	require.Len(t, choices.Products, 2)
	assert.Equal(t, "SKU-1", choices.Products[0].SKU)
}

func TestStaleDrafts(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()
	old, err := svc.Create(ctx, CreateOrderRequest{CustomerID: 1})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateOrderRequest{CustomerID: 1})
	require.NoError(t, err)
	placed, err := svc.Create(ctx, CreateOrderRequest{CustomerID: 1, Status: StatusPlaced})
	require.NoError(t, err)
	repo.orders[old.ID].OrderDate = time.Now().AddDate(0, 0, -10)
	repo.orders[placed.ID].OrderDate = time.Now().AddDate(0, 0, -10)

	n, err := svc.StaleDrafts(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestApplyItemBatchRecordsOutcome(t *testing.T) {
	svc, _, _ := newTestService()
	recorder := countingRecorder{}
	svc.WithRecorder(recorder)
	ctx := context.Background()
	order, err := svc.Create(ctx, CreateOrderRequest{CustomerID: 1})
	require.NoError(t, err)

	_, err = svc.ApplyItemBatch(ctx, order.ID, []Directive{{Op: OpAdd, ProductID: 1}})
	require.NoError(t, err)
	_, err = svc.ApplyItemBatch(ctx, order.ID, []Directive{{Op: OpAdd, ProductID: 99}})
	require.Error(t, err)

	assert.Equal(t, 1, recorder["applied"])
	assert.Equal(t, 1, recorder["rejected"])
}
