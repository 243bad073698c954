package customers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

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

type customerForm struct {
	Name  string
	Email string
	Phone string
	Notes string
}

func formFromRequest(r *http.Request) customerForm {
	return customerForm{
		Name:  r.PostFormValue("name"),
		Email: r.PostFormValue("email"),
		Phone: r.PostFormValue("phone"),
		Notes: r.PostFormValue("notes"),
	}
}

func formFromCustomer(c *Customer) customerForm {
	return customerForm{Name: c.Name, Email: c.Email, Phone: c.Phone, Notes: c.Notes}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := shared.PageFromQuery(r.URL.Query())
	search := r.URL.Query().Get("q")

	customers, total, err := h.service.List(r.Context(), ListCustomersRequest{Search: search, Limit: limit, Offset: offset})
	if err != nil {
		h.pages.ServerError(w, r, "list customers failed", err)
		return
	}

	h.pages.Render(w, r, http.StatusOK, "pages/customers_list.html", "Customers", map[string]any{
		"Customers":  customers,
		"Search":     search,
		"Pagination": shared.NewPagination(limit, offset, total),
	})
}

func (h *Handler) ShowForm(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, nil, customerForm{}, formErrors{})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	form := formFromRequest(r)

	customer, err := h.service.Create(r.Context(), CreateCustomerRequest{
		Name:  form.Name,
		Email: form.Email,
		Phone: form.Phone,
		Notes: form.Notes,
	})
	if err != nil {
		h.handleFormError(w, r, nil, form, err)
		return
	}

	h.logger.Info("customer created", slog.Int64("id", customer.ID))
	h.pages.RedirectWithFlash(w, r, "/customers", "success", "Customer created successfully")
}

func (h *Handler) ShowEditForm(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.load(w, r)
	if !ok {
		return
	}
	h.renderForm(w, r, http.StatusOK, customer, formFromCustomer(customer), formErrors{})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	form := formFromRequest(r)

	_, err := h.service.Update(r.Context(), customer.ID, UpdateCustomerRequest{
		Name:  &form.Name,
		Email: &form.Email,
		Phone: &form.Phone,
		Notes: &form.Notes,
	})
	if err != nil {
		h.handleFormError(w, r, customer, form, err)
		return
	}

	h.pages.RedirectWithFlash(w, r, "/customers", "success", "Customer updated successfully")
}

func (h *Handler) ConfirmDelete(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.load(w, r)
	if !ok {
		return
	}
	h.pages.Render(w, r, http.StatusOK, "pages/customer_confirm_delete.html", "Delete customer", map[string]any{
		"Customer": customer,
	})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	customer, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), customer.ID); err != nil {
		if errors.Is(err, shared.ErrProtected) {
			h.pages.RedirectWithFlash(w, r, "/customers", "error", shared.UserSafeMessage(err))
			return
		}
		h.pages.ServerError(w, r, "delete customer failed", err)
		return
	}
	h.pages.RedirectWithFlash(w, r, "/customers", "success", "Customer deleted")
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*Customer, bool) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.pages.NotFound(w, r)
		return nil, false
	}
	customer, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.pages.NotFound(w, r)
			return nil, false
		}
		h.pages.ServerError(w, r, "get customer failed", err)
		return nil, false
	}
	return customer, true
}

func (h *Handler) handleFormError(w http.ResponseWriter, r *http.Request, customer *Customer, form customerForm, err error) {
	var verr *shared.ValidationError
	if errors.As(err, &verr) {
		h.renderForm(w, r, http.StatusBadRequest, customer, form, verr.Fields)
		return
	}
	if errors.Is(err, shared.ErrNotFound) {
		h.pages.NotFound(w, r)
		return
	}
	h.pages.ServerError(w, r, "save customer failed", err)
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, status int, customer *Customer, form customerForm, errs formErrors) {
	title := "New customer"
	action := "/customers"
	if customer != nil {
		title = "Edit customer"
		action = "/customers/" + strconv.FormatInt(customer.ID, 10) + "/edit"
	}
	h.pages.Render(w, r, status, "pages/customer_form.html", title, map[string]any{
		"Customer": customer,
		"Form":     form,
		"Errors":   errs,
		"Action":   action,
	})
}
