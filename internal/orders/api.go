package orders

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/odyssey-erp/orderdesk/internal/platform/httpx"
	"github.com/odyssey-erp/orderdesk/internal/shared"
)

// APIHandler serves the orders and order-items JSON resources.
type APIHandler struct {
	logger  *slog.Logger
	service *Service
	keys    KeyGuard
}

// KeyGuard deduplicates requests that carry an Idempotency-Key header.
type KeyGuard interface {
	Claim(ctx context.Context, scope, key string) error
	Release(ctx context.Context, scope, key string) error
}

func NewAPIHandler(logger *slog.Logger, service *Service) *APIHandler {
	return &APIHandler{logger: logger, service: service}
}

// WithIdempotency enables Idempotency-Key handling on the item batch endpoint.
func (h *APIHandler) WithIdempotency(keys KeyGuard) *APIHandler {
	h.keys = keys
	return h
}

func queryID(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, shared.NewValidationError(name, "A valid integer is required.")
	}
	return &id, nil
}

func (h *APIHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	limit, offset := shared.PageFromQuery(r.URL.Query())
	req := ListOrdersRequest{Limit: limit, Offset: offset}
	customerID, err := queryID(r, "customer")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	req.CustomerID = customerID
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := Status(strings.ToUpper(raw))
		if !status.Valid() {
			httpx.RespondError(w, h.logger, shared.NewValidationError("status", "Select a valid choice."))
			return
		}
		req.Status = &status
	}

	orders, total, err := h.service.List(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	results := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		results = append(results, toResponse(o))
	}
	httpx.JSON(w, http.StatusOK, httpx.NewPage(results, total, limit, offset))
}

func (h *APIHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	order, err := h.service.Create(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toResponse(*order))
}

func (h *APIHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(*order))
}

func (h *APIHandler) updateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var req UpdateOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	order, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(*order))
}

func (h *APIHandler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// applyBatch answers 200 with the updated order, or 422 listing every failing directive.
func (h *APIHandler) applyBatch(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var req BatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	key := strings.TrimSpace(r.Header.Get(shared.IdempotencyHeader))
	scope := "order:" + strconv.FormatInt(id, 10) + ":items"
	if key != "" && h.keys != nil {
		if err := h.keys.Claim(r.Context(), scope, key); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.Problem(w, http.StatusConflict, "Duplicate request", "This batch was already submitted.")
				return
			}
			httpx.RespondError(w, h.logger, err)
			return
		}
	}
	order, err := h.service.ApplyItemBatch(r.Context(), id, req.Directives)
	if err != nil {
		if key != "" && h.keys != nil {
			// A failed batch wrote nothing, so the client may retry with the same key.
			if rerr := h.keys.Release(r.Context(), scope, key); rerr != nil && h.logger != nil {
				h.logger.Warn("release idempotency key", slog.Any("error", rerr))
			}
		}
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toResponse(*order))
}

func (h *APIHandler) listItems(w http.ResponseWriter, r *http.Request) {
	limit, offset := shared.PageFromQuery(r.URL.Query())
	orderID, err := queryID(r, "order")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	items, total, err := h.service.ListItems(r.Context(), ListItemsRequest{OrderID: orderID, Limit: limit, Offset: offset})
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	results := make([]ItemResponse, 0, len(items))
	for _, item := range items {
		results = append(results, toItemResponse(item))
	}
	httpx.JSON(w, http.StatusOK, httpx.NewPage(results, total, limit, offset))
}

func (h *APIHandler) createItem(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	item, err := h.service.CreateItem(r.Context(), req)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toItemResponse(*item))
}

func (h *APIHandler) getItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toItemResponse(*item))
}

func (h *APIHandler) updateItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	var req UpdateItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	item, err := h.service.UpdateItem(r.Context(), id, req)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toItemResponse(*item))
}

func (h *APIHandler) deleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	if err := h.service.DeleteItem(r.Context(), id); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
