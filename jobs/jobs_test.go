package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/orderdesk/internal/orders"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{Type: task.Type(), Queue: QueueDefault}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

type fakeDrafts struct {
	age time.Duration
	n   int
}

func (f *fakeDrafts) StaleDrafts(ctx context.Context, age time.Duration) (int, error) {
	f.age = age
	return f.n, nil
}

var sampleChange = orders.StatusChange{
	OrderID:       7,
	CustomerID:    1,
	CustomerName:  "Acme",
	CustomerEmail: "orders@acme.test",
	From:          orders.StatusDraft,
	To:            orders.StatusPlaced,
}

func TestClientEnqueuesStatusChange(t *testing.T) {
	fake := &fakeEnqueuer{}
	client := &Client{client: fake}

	require.NoError(t, client.OrderStatusChanged(context.Background(), sampleChange))
	require.Len(t, fake.tasks, 1)
	assert.Equal(t, TaskOrderStatusChanged, fake.tasks[0].Type())

	var payload StatusChangedPayload
	require.NoError(t, json.Unmarshal(fake.tasks[0].Payload(), &payload))
	assert.Equal(t, int64(7), payload.OrderID)
	assert.Equal(t, orders.StatusPlaced, payload.To)
	assert.False(t, payload.ChangedAt.IsZero())
}

func TestClientWrapsEnqueueError(t *testing.T) {
	client := &Client{client: &fakeEnqueuer{err: errors.New("redis down")}}

	err := client.OrderStatusChanged(context.Background(), sampleChange)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enqueue status change")
}

func TestHandleStatusChanged(t *testing.T) {
	tasks := NewOrderTasks(nil, quietLogger())
	task, err := NewOrderStatusTask(sampleChange)
	require.NoError(t, err)

	assert.NoError(t, tasks.HandleStatusChanged(context.Background(), task))
}

func TestHandleStatusChangedSkipsBadPayload(t *testing.T) {
	tasks := NewOrderTasks(nil, quietLogger())

	err := tasks.HandleStatusChanged(context.Background(), asynq.NewTask(TaskOrderStatusChanged, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	noRecipient := sampleChange
	noRecipient.CustomerEmail = ""
	task, err := NewOrderStatusTask(noRecipient)
	require.NoError(t, err)
	assert.ErrorIs(t, tasks.HandleStatusChanged(context.Background(), task), asynq.SkipRetry)
}

func TestHandleStaleDrafts(t *testing.T) {
	drafts := &fakeDrafts{n: 2}
	tasks := NewOrderTasks(drafts, quietLogger())

	task, err := NewStaleDraftsTask(48 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, tasks.HandleStaleDrafts(context.Background(), task))
	assert.Equal(t, 48*time.Hour, drafts.age)

	require.NoError(t, tasks.HandleStaleDrafts(context.Background(), asynq.NewTask(TaskStaleDrafts, nil)))
	assert.Equal(t, defaultStaleAge, drafts.age)
}

func TestHandlersWithoutStore(t *testing.T) {
	assert.Len(t, NewOrderTasks(nil, nil).Handlers(), 1)
	assert.Len(t, NewOrderTasks(&fakeDrafts{}, nil).Handlers(), 2)
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, quietLogger()).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body queueHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, QueueDefault, body.Queue)
	assert.Zero(t, body.Pending)
}
