package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/orderdesk/internal/orders"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOrderStatusChanged notifies a customer that their order moved status.
	TaskOrderStatusChanged = "orders:status_changed"
	// TaskStaleDrafts reports draft orders left untouched for too long.
	TaskStaleDrafts = "orders:stale_drafts"

	// StaleDraftsSchedule runs the stale draft report every morning.
	StaleDraftsSchedule = "0 6 * * *"
	defaultStaleAge     = 7 * 24 * time.Hour
)

// StatusChangedPayload is the queued form of an order status change.
type StatusChangedPayload struct {
	orders.StatusChange
	ChangedAt time.Time `json:"changed_at"`
}

// NewOrderStatusTask constructs an Asynq task for a status change.
func NewOrderStatusTask(change orders.StatusChange) (*asynq.Task, error) {
	data, err := json.Marshal(StatusChangedPayload{StatusChange: change, ChangedAt: time.Now().UTC()})
	if err != nil {
		return nil, fmt.Errorf("marshal status change: %w", err)
	}
	return asynq.NewTask(TaskOrderStatusChanged, data, asynq.MaxRetry(5)), nil
}

// StaleDraftsPayload carries the age after which a draft counts as stale.
type StaleDraftsPayload struct {
	AgeHours int `json:"age_hours"`
}

// NewStaleDraftsTask constructs the scheduled stale draft task.
func NewStaleDraftsTask(age time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(StaleDraftsPayload{AgeHours: int(age / time.Hour)})
	if err != nil {
		return nil, fmt.Errorf("marshal stale drafts: %w", err)
	}
	return asynq.NewTask(TaskStaleDrafts, data), nil
}

// DraftCounter counts old draft orders.
type DraftCounter interface {
	StaleDrafts(ctx context.Context, age time.Duration) (int, error)
}

// OrderTasks processes order related tasks.
type OrderTasks struct {
	drafts DraftCounter
	logger *slog.Logger
}

// NewOrderTasks constructs the order task handlers. drafts may be nil when the
// worker runs without a database.
func NewOrderTasks(drafts DraftCounter, logger *slog.Logger) *OrderTasks {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderTasks{drafts: drafts, logger: logger}
}

// Handlers lists the task handlers to register on a worker.
func (t *OrderTasks) Handlers() []TaskHandler {
	handlers := []TaskHandler{{Type: TaskOrderStatusChanged, Handler: t.HandleStatusChanged}}
	if t.drafts != nil {
		handlers = append(handlers, TaskHandler{Type: TaskStaleDrafts, Handler: t.HandleStaleDrafts})
	}
	return handlers
}

// HandleStatusChanged processes TaskOrderStatusChanged tasks.
func (t *OrderTasks) HandleStatusChanged(ctx context.Context, task *asynq.Task) error {
	var payload StatusChangedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode status change: %v: %w", err, asynq.SkipRetry)
	}
	if payload.OrderID == 0 || payload.CustomerEmail == "" {
		return fmt.Errorf("status change for order %d has no recipient: %w", payload.OrderID, asynq.SkipRetry)
	}
	// Delivery goes to the log until an SMTP relay is configured.
	t.logger.InfoContext(ctx, "order status notification",
		slog.Int64("order_id", payload.OrderID),
		slog.String("to", payload.CustomerEmail),
		slog.String("subject", statusSubject(payload.StatusChange)),
		slog.Time("changed_at", payload.ChangedAt),
	)
	return nil
}

// HandleStaleDrafts processes TaskStaleDrafts tasks.
func (t *OrderTasks) HandleStaleDrafts(ctx context.Context, task *asynq.Task) error {
	if t.drafts == nil {
		return fmt.Errorf("stale drafts: no order store: %w", asynq.SkipRetry)
	}
	age := defaultStaleAge
	if len(task.Payload()) > 0 {
		var payload StaleDraftsPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("decode stale drafts: %v: %w", err, asynq.SkipRetry)
		}
		if payload.AgeHours > 0 {
			age = time.Duration(payload.AgeHours) * time.Hour
		}
	}
	n, err := t.drafts.StaleDrafts(ctx, age)
	if err != nil {
		return err
	}
	if n > 0 {
		t.logger.WarnContext(ctx, "stale draft orders", slog.Int("count", n), slog.Duration("age", age))
	}
	return nil
}

func statusSubject(c orders.StatusChange) string {
	return fmt.Sprintf("Order #%d is now %s", c.OrderID, c.To)
}
