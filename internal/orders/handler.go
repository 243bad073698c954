package orders

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/odyssey-erp/orderdesk/internal/platform/httpx"
	"github.com/odyssey-erp/orderdesk/internal/shared"
	"github.com/odyssey-erp/orderdesk/internal/view"
)

type Handler struct {
	logger  *slog.Logger
	service *Service
	pages   *view.Pages
}

func NewHandler(logger *slog.Logger, service *Service, pages *view.Pages) *Handler {
	return &Handler{logger: logger, service: service, pages: pages}
}

type formErrors map[string]string

type orderForm struct {
	CustomerID string
	Status     string
}

// SelectedCustomer reports whether the customer select should preselect id.
func (f orderForm) SelectedCustomer(id int64) bool {
	return f.CustomerID == strconv.FormatInt(id, 10)
}

func formFromOrder(o *Order) orderForm {
	return orderForm{CustomerID: strconv.FormatInt(o.CustomerID, 10), Status: string(o.Status)}
}

func orderURL(id int64) string {
	return "/orders/" + strconv.FormatInt(id, 10)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := shared.PageFromQuery(q)
	req := ListOrdersRequest{Limit: limit, Offset: offset}
	statusFilter := Status(strings.ToUpper(q.Get("status")))
	if statusFilter.Valid() {
		req.Status = &statusFilter
	} else {
		statusFilter = ""
	}
	if raw := q.Get("customer"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			req.CustomerID = &id
		}
	}

	orders, total, err := h.service.ListViews(r.Context(), req)
	if err != nil {
		h.pages.ServerError(w, r, "list orders failed", err)
		return
	}

	h.pages.Render(w, r, http.StatusOK, "pages/orders_list.html", "Orders", map[string]any{
		"Orders":     orders,
		"Statuses":   Statuses,
		"Status":     string(statusFilter),
		"Pagination": shared.NewPagination(limit, offset, total),
	})
}

func (h *Handler) ShowForm(w http.ResponseWriter, r *http.Request) {
	form := orderForm{Status: string(StatusDraft), CustomerID: r.URL.Query().Get("customer")}
	h.renderForm(w, r, http.StatusOK, nil, form, formErrors{})
}

// parseOrderForm reads the posted header fields.
func parseOrderForm(r *http.Request) (orderForm, int64, formErrors) {
	form := orderForm{
		CustomerID: strings.TrimSpace(r.PostFormValue("customer_id")),
		Status:     strings.TrimSpace(r.PostFormValue("status")),
	}
	errs := formErrors{}
	var customerID int64
	if form.CustomerID == "" {
		errs["customer_id"] = msgRequired
	} else if id, err := strconv.ParseInt(form.CustomerID, 10, 64); err != nil || id <= 0 {
		errs["customer_id"] = msgInvalidChoice
	} else {
		customerID = id
	}
	if form.Status == "" {
		form.Status = string(StatusDraft)
	}
	return form, customerID, errs
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	form, customerID, errs := parseOrderForm(r)
	if len(errs) > 0 {
		h.renderForm(w, r, http.StatusBadRequest, nil, form, errs)
		return
	}

	order, err := h.service.Create(r.Context(), CreateOrderRequest{CustomerID: customerID, Status: Status(form.Status)})
	if err != nil {
		h.handleFormError(w, r, nil, form, err)
		return
	}

	h.logger.Info("order created", slog.Int64("id", order.ID), slog.Int64("customer_id", order.CustomerID))
	h.pages.RedirectWithFlash(w, r, orderURL(order.ID), "success", "Order created. Add line items below.")
}

// Detail shows an order with its line item formset.
func (h *Handler) Detail(w http.ResponseWriter, r *http.Request) {
	order, ok := h.load(w, r)
	if !ok {
		return
	}
	h.renderDetail(w, r, http.StatusOK, order, NewItemFormset(order.Items))
}

// SaveItems applies the submitted line item formset as one batch.
func (h *Handler) SaveItems(w http.ResponseWriter, r *http.Request) {
	order, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	formset, directives := ParseItemFormset(r.PostForm)
	if len(formset.NonFormErrors) > 0 {
		fresh := NewItemFormset(order.Items)
		fresh.NonFormErrors = formset.NonFormErrors
		h.renderDetail(w, r, http.StatusBadRequest, order, fresh)
		return
	}
	if formset.HasErrors() {
		h.renderDetail(w, r, http.StatusBadRequest, order, formset)
		return
	}

	if _, err := h.service.ApplyItemBatch(r.Context(), order.ID, directives); err != nil {
		var berr *shared.BatchValidationError
		switch {
		case errors.As(err, &berr):
			formset.ApplyErrors(berr)
			h.renderDetail(w, r, http.StatusBadRequest, order, formset)
		case errors.Is(err, shared.ErrNotFound):
			h.pages.NotFound(w, r)
		default:
			h.pages.ServerError(w, r, "save order items failed", err)
		}
		return
	}
	h.pages.RedirectWithFlash(w, r, orderURL(order.ID), "success", "Order items saved.")
}

func (h *Handler) ShowEditForm(w http.ResponseWriter, r *http.Request) {
	order, ok := h.load(w, r)
	if !ok {
		return
	}
	h.renderForm(w, r, http.StatusOK, order, formFromOrder(order), formErrors{})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	order, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	form, customerID, errs := parseOrderForm(r)
	if len(errs) > 0 {
		h.renderForm(w, r, http.StatusBadRequest, order, form, errs)
		return
	}

	status := Status(form.Status)
	if _, err := h.service.Update(r.Context(), order.ID, UpdateOrderRequest{CustomerID: &customerID, Status: &status}); err != nil {
		h.handleFormError(w, r, order, form, err)
		return
	}
	h.pages.RedirectWithFlash(w, r, orderURL(order.ID), "success", "Order updated successfully")
}

func (h *Handler) ConfirmDelete(w http.ResponseWriter, r *http.Request) {
	order, ok := h.load(w, r)
	if !ok {
		return
	}
	h.pages.Render(w, r, http.StatusOK, "pages/order_confirm_delete.html", "Delete order", map[string]any{
		"Order": BuildView(*order),
	})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	order, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), order.ID); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.pages.NotFound(w, r)
			return
		}
		h.pages.ServerError(w, r, "delete order failed", err)
		return
	}
	h.pages.RedirectWithFlash(w, r, "/orders", "success", fmt.Sprintf("Order #%d deleted", order.ID))
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*Order, bool) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.pages.NotFound(w, r)
		return nil, false
	}
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.pages.NotFound(w, r)
			return nil, false
		}
		h.pages.ServerError(w, r, "get order failed", err)
		return nil, false
	}
	return order, true
}

func (h *Handler) handleFormError(w http.ResponseWriter, r *http.Request, order *Order, form orderForm, err error) {
	var verr *shared.ValidationError
	if errors.As(err, &verr) {
		h.renderForm(w, r, http.StatusBadRequest, order, form, verr.Fields)
		return
	}
	if errors.Is(err, shared.ErrNotFound) {
		h.pages.NotFound(w, r)
		return
	}
	h.pages.ServerError(w, r, "save order failed", err)
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, status int, order *Order, form orderForm, errs formErrors) {
	choices, err := h.service.Choices(r.Context())
	if err != nil {
		h.pages.ServerError(w, r, "load order choices failed", err)
		return
	}
	title := "New order"
	action := "/orders"
	if order != nil {
		title = fmt.Sprintf("Edit order #%d", order.ID)
		action = orderURL(order.ID) + "/edit"
	}
	h.pages.Render(w, r, status, "pages/order_form.html", title, map[string]any{
		"Order":     order,
		"Form":      form,
		"Errors":    errs,
		"Action":    action,
		"Customers": choices.Customers,
		"Statuses":  Statuses,
	})
}

func (h *Handler) renderDetail(w http.ResponseWriter, r *http.Request, status int, order *Order, formset *ItemFormset) {
	choices, err := h.service.Choices(r.Context())
	if err != nil {
		h.pages.ServerError(w, r, "load order choices failed", err)
		return
	}
	h.pages.Render(w, r, status, "pages/order_detail.html", fmt.Sprintf("Order #%d", order.ID), map[string]any{
		"Order":    BuildView(*order),
		"Formset":  formset,
		"Products": choices.Products,
	})
}
