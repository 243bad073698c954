package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/orderdesk/internal/integrity"
	"github.com/odyssey-erp/orderdesk/internal/shared"
)

// StatusChange describes an order that moved to a new status.
type StatusChange struct {
	OrderID       int64  `json:"order_id"`
	CustomerID    int64  `json:"customer_id"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	From          Status `json:"from"`
	To            Status `json:"to"`
}

// Notifier is told about committed status changes.
type Notifier interface {
	OrderStatusChanged(ctx context.Context, change StatusChange) error
}

// BatchRecorder observes item batch outcomes: "applied", "rejected" or "failed".
type BatchRecorder interface {
	ItemBatch(outcome string, directives int)
}

type Service struct {
	repo     Repository
	policy   *integrity.Policy
	notifier Notifier
	logger   *slog.Logger
	recorder BatchRecorder
}

// NewService builds the order service. notifier may be nil.
func NewService(repo Repository, policy *integrity.Policy, notifier Notifier, logger *slog.Logger) *Service {
	if policy == nil {
		policy = integrity.NewPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, policy: policy, notifier: notifier, logger: logger}
}

// WithRecorder sets the batch outcome recorder.
func (s *Service) WithRecorder(r BatchRecorder) *Service {
	s.recorder = r
	return s
}

func (s *Service) recordBatch(err error, directives int) {
	if s.recorder == nil {
		return
	}
	outcome := "applied"
	switch {
	case errors.Is(err, shared.ErrBatchInvalid):
		outcome = "rejected"
	case err != nil:
		outcome = "failed"
	}
	s.recorder.ItemBatch(outcome, directives)
}

func (s *Service) Create(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if err := shared.ValidateStruct(req); err != nil {
		return nil, err
	}
	if req.Status == "" {
		req.Status = StatusDraft
	}
	directives := make([]Directive, 0, len(req.Items))
	for _, in := range req.Items {
		directives = append(directives, Directive{
			Op:        OpAdd,
			ProductID: in.ProductID,
			Quantity:  in.Quantity,
			UnitPrice: in.UnitPrice,
		})
	}

	var created *Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := ensureCustomer(ctx, repo, req.CustomerID); err != nil {
			return err
		}
		order, err := repo.CreateOrder(ctx, Order{CustomerID: req.CustomerID, Status: req.Status})
		if err != nil {
			return err
		}
		if _, err := applyBatch(ctx, repo, order.ID, directives); err != nil {
			return err
		}
		order.Items, err = repo.ListItems(ctx, []int64{order.ID})
		if err != nil {
			return err
		}
		created = order
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	s.logger.InfoContext(ctx, "order created", slog.Int64("order_id", created.ID), slog.Int("items", len(created.Items)))
	return created, nil
}

func ensureCustomer(ctx context.Context, repo Repository, id int64) error {
	if _, err := repo.GetCustomer(ctx, id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NewValidationError("customer_id", msgInvalidChoice)
		}
		return err
	}
	return nil
}

// Update changes the customer or status of an order. Any status may follow any other.
func (s *Service) Update(ctx context.Context, id int64, req UpdateOrderRequest) (*Order, error) {
	if err := shared.ValidateStruct(req); err != nil {
		return nil, err
	}
	updates := make(map[string]any)
	if req.CustomerID != nil {
		updates["customer_id"] = *req.CustomerID
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}

	var before, updated *Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		before, err = repo.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if len(updates) == 0 {
			updated = before
		} else {
			if req.CustomerID != nil {
				if err := ensureCustomer(ctx, repo, *req.CustomerID); err != nil {
					return err
				}
			}
			updated, err = repo.UpdateOrder(ctx, id, updates)
			if err != nil {
				return err
			}
		}
		updated.Items, err = repo.ListItems(ctx, []int64{id})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update order: %w", err)
	}
	if before.Status != updated.Status {
		s.notifyStatus(ctx, before.Status, updated)
	}
	return updated, nil
}

func (s *Service) notifyStatus(ctx context.Context, from Status, order *Order) {
	s.logger.InfoContext(ctx, "order status changed",
		slog.Int64("order_id", order.ID),
		slog.String("from", string(from)),
		slog.String("to", string(order.Status)),
	)
	if s.notifier == nil {
		return
	}
	if order.CustomerEmail == "" {
		s.logger.DebugContext(ctx, "status notification skipped: customer has no email", slog.Int64("order_id", order.ID))
		return
	}
	change := StatusChange{
		OrderID:       order.ID,
		CustomerID:    order.CustomerID,
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		From:          from,
		To:            order.Status,
	}
	if err := s.notifier.OrderStatusChanged(ctx, change); err != nil {
		s.logger.WarnContext(ctx, "status notification failed", slog.Int64("order_id", order.ID), slog.Any("error", err))
	}
}

// Get returns an order with its lines.
func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	order.Items, err = s.repo.ListItems(ctx, []int64{id})
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	return order, nil
}

func (s *Service) GetView(ctx context.Context, id int64) (*OrderView, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	view := BuildView(*order)
	return &view, nil
}

// List returns a page of orders, each with its lines loaded in one query.
func (s *Service) List(ctx context.Context, req ListOrdersRequest) ([]Order, int, error) {
	req.Limit, req.Offset = shared.NormalizePage(req.Limit, req.Offset)
	orders, total, err := s.repo.ListOrders(ctx, req)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, total, nil
	}
	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}
	items, err := s.repo.ListItems(ctx, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("list order items: %w", err)
	}
	for _, item := range items {
		if i, ok := index[item.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, item)
		}
	}
	return orders, total, nil
}

func (s *Service) ListViews(ctx context.Context, req ListOrdersRequest) ([]OrderView, int, error) {
	orders, total, err := s.List(ctx, req)
	if err != nil {
		return nil, 0, err
	}
	views := make([]OrderView, len(orders))
	for i, o := range orders {
		views[i] = BuildView(o)
	}
	return views, total, nil
}

// Delete removes an order together with its lines.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if _, err := repo.GetOrderForUpdate(ctx, id); err != nil {
			return err
		}
		if err := s.policy.BeforeDelete(ctx, repo.References(), integrity.Order, id); err != nil {
			return err
		}
		return repo.DeleteOrder(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return nil
}

// StaleDrafts counts draft orders dated more than age ago.
func (s *Service) StaleDrafts(ctx context.Context, age time.Duration) (int, error) {
	n, err := s.repo.CountStatusBefore(ctx, StatusDraft, time.Now().Add(-age))
	if err != nil {
		return 0, fmt.Errorf("count stale drafts: %w", err)
	}
	return n, nil
}

// ApplyItemBatch applies directives to the lines of an order as one unit. Either every
// directive is written or none is, and a rejected batch reports each failing directive.
func (s *Service) ApplyItemBatch(ctx context.Context, orderID int64, directives []Directive) (*Order, error) {
	var result *Order
	var plan *batchPlan
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		order, err := repo.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		plan, err = applyBatch(ctx, repo, orderID, directives)
		if err != nil {
			return err
		}
		order.Items, err = repo.ListItems(ctx, []int64{orderID})
		if err != nil {
			return err
		}
		result = order
		return nil
	})
	s.recordBatch(err, len(directives))
	if err != nil {
		return nil, fmt.Errorf("apply item batch: %w", err)
	}
	if !plan.empty() {
		s.logger.InfoContext(ctx, "order items changed",
			slog.Int64("order_id", orderID),
			slog.Int("removed", len(plan.removes)),
			slog.Int("updated", len(plan.updates)),
			slog.Int("added", len(plan.adds)),
		)
	}
	return result, nil
}

// singleDirective runs one directive as a batch and reports its failure as a plain
// ValidationError, the way a standalone line item form would.
func singleDirective(ctx context.Context, repo Repository, orderID int64, d Directive) (*batchPlan, error) {
	plan, err := applyBatch(ctx, repo, orderID, []Directive{d})
	var berr *shared.BatchValidationError
	if errors.As(err, &berr) && len(berr.Errors) > 0 {
		return nil, &shared.ValidationError{Fields: berr.Errors[0].Fields}
	}
	return plan, err
}

func (s *Service) CreateItem(ctx context.Context, req CreateItemRequest) (*OrderItem, error) {
	if err := shared.ValidateStruct(req); err != nil {
		return nil, err
	}
	var created *OrderItem
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if _, err := repo.GetOrderForUpdate(ctx, req.OrderID); err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				return shared.NewValidationError("order_id", msgInvalidChoice)
			}
			return err
		}
		plan, err := singleDirective(ctx, repo, req.OrderID, Directive{
			Op:        OpAdd,
			ProductID: req.ProductID,
			Quantity:  req.Quantity,
			UnitPrice: req.UnitPrice,
		})
		if err != nil {
			return err
		}
		created = &plan.adds[0]
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create order item: %w", err)
	}
	return created, nil
}

func (s *Service) UpdateItem(ctx context.Context, id int64, req UpdateItemRequest) (*OrderItem, error) {
	if err := shared.ValidateStruct(req); err != nil {
		return nil, err
	}
	var updated *OrderItem
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		item, err := repo.GetItem(ctx, id)
		if err != nil {
			return err
		}
		if req.OrderID != nil && *req.OrderID != item.OrderID {
			return shared.NewValidationError("order_id", msgMovedLine)
		}
		if _, err := repo.GetOrderForUpdate(ctx, item.OrderID); err != nil {
			return err
		}
		d := Directive{Op: OpUpdate, ItemID: id, Quantity: req.Quantity, UnitPrice: req.UnitPrice}
		if req.ProductID != nil {
			d.ProductID = *req.ProductID
		}
		plan, err := singleDirective(ctx, repo, item.OrderID, d)
		if err != nil {
			return err
		}
		updated = &plan.updates[0]
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update order item: %w", err)
	}
	return updated, nil
}

func (s *Service) GetItem(ctx context.Context, id int64) (*OrderItem, error) {
	item, err := s.repo.GetItem(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order item: %w", err)
	}
	return item, nil
}

func (s *Service) ListItems(ctx context.Context, req ListItemsRequest) ([]OrderItem, int, error) {
	req.Limit, req.Offset = shared.NormalizePage(req.Limit, req.Offset)
	items, total, err := s.repo.ListAllItems(ctx, req)
	if err != nil {
		return nil, 0, fmt.Errorf("list order items: %w", err)
	}
	return items, total, nil
}

func (s *Service) DeleteItem(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		item, err := repo.GetItem(ctx, id)
		if err != nil {
			return err
		}
		if _, err := repo.GetOrderForUpdate(ctx, item.OrderID); err != nil {
			return err
		}
		return repo.DeleteItems(ctx, []int64{id})
	})
	if err != nil {
		return fmt.Errorf("delete order item: %w", err)
	}
	return nil
}

// Choices holds the options of the order and line item selects.
type Choices struct {
	Customers []CustomerRef
	Products  []ProductRef
}

func (s *Service) Choices(ctx context.Context) (*Choices, error) {
	var out Choices
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.Customers, err = s.repo.CustomerChoices(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		out.Products, err = s.repo.ProductChoices(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load order choices: %w", err)
	}
	return &out, nil
}
