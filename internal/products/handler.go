package products

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

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

type productForm struct {
	SKU      string
	Name     string
	Price    string
	IsActive bool
}

func formFromProduct(p *Product) productForm {
	return productForm{SKU: p.SKU, Name: p.Name, Price: shared.FormatMoney(p.Price), IsActive: p.IsActive}
}

// parseForm reads the posted fields. A blank price means zero.
func parseForm(r *http.Request) (productForm, *decimal.Decimal, formErrors) {
	form := productForm{
		SKU:      r.PostFormValue("sku"),
		Name:     r.PostFormValue("name"),
		Price:    strings.TrimSpace(r.PostFormValue("price")),
		IsActive: r.PostFormValue("is_active") != "",
	}
	errs := formErrors{}
	price := decimal.Zero
	if form.Price != "" {
		parsed, err := shared.ParseMoney(form.Price)
		if err != nil {
			errs["price"] = "Enter a number."
		}
		price = parsed
	}
	return form, &price, errs
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := shared.PageFromQuery(r.URL.Query())
	search := r.URL.Query().Get("q")

	products, total, err := h.service.List(r.Context(), ListProductsRequest{Search: search, Limit: limit, Offset: offset})
	if err != nil {
		h.pages.ServerError(w, r, "list products failed", err)
		return
	}

	h.pages.Render(w, r, http.StatusOK, "pages/products_list.html", "Products", map[string]any{
		"Products":   products,
		"Search":     search,
		"Pagination": shared.NewPagination(limit, offset, total),
	})
}

func (h *Handler) ShowForm(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, nil, productForm{Price: "0.00", IsActive: true}, formErrors{})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	form, price, errs := parseForm(r)
	if len(errs) > 0 {
		h.renderForm(w, r, http.StatusBadRequest, nil, form, errs)
		return
	}

	product, err := h.service.Create(r.Context(), CreateProductRequest{
		SKU:      form.SKU,
		Name:     form.Name,
		Price:    price,
		IsActive: &form.IsActive,
	})
	if err != nil {
		h.handleFormError(w, r, nil, form, err)
		return
	}

	h.logger.Info("product created", slog.Int64("id", product.ID), slog.String("sku", product.SKU))
	h.pages.RedirectWithFlash(w, r, "/products", "success", "Product created successfully")
}

func (h *Handler) ShowEditForm(w http.ResponseWriter, r *http.Request) {
	product, ok := h.load(w, r)
	if !ok {
		return
	}
	h.renderForm(w, r, http.StatusOK, product, formFromProduct(product), formErrors{})
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	product, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	form, price, errs := parseForm(r)
	if len(errs) > 0 {
		h.renderForm(w, r, http.StatusBadRequest, product, form, errs)
		return
	}

	_, err := h.service.Update(r.Context(), product.ID, UpdateProductRequest{
		SKU:      &form.SKU,
		Name:     &form.Name,
		Price:    price,
		IsActive: &form.IsActive,
	})
	if err != nil {
		h.handleFormError(w, r, product, form, err)
		return
	}

	h.pages.RedirectWithFlash(w, r, "/products", "success", "Product updated successfully")
}

func (h *Handler) ConfirmDelete(w http.ResponseWriter, r *http.Request) {
	product, ok := h.load(w, r)
	if !ok {
		return
	}
	h.pages.Render(w, r, http.StatusOK, "pages/product_confirm_delete.html", "Delete product", map[string]any{
		"Product": product,
	})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	product, ok := h.load(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), product.ID); err != nil {
		if errors.Is(err, shared.ErrProtected) {
			h.pages.RedirectWithFlash(w, r, "/products", "error", shared.UserSafeMessage(err))
			return
		}
		h.pages.ServerError(w, r, "delete product failed", err)
		return
	}
	h.pages.RedirectWithFlash(w, r, "/products", "success", "Product deleted")
}

func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*Product, bool) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.pages.NotFound(w, r)
		return nil, false
	}
	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.pages.NotFound(w, r)
			return nil, false
		}
		h.pages.ServerError(w, r, "get product failed", err)
		return nil, false
	}
	return product, true
}

func (h *Handler) handleFormError(w http.ResponseWriter, r *http.Request, product *Product, form productForm, err error) {
	var verr *shared.ValidationError
	if errors.As(err, &verr) {
		h.renderForm(w, r, http.StatusBadRequest, product, form, verr.Fields)
		return
	}
	if errors.Is(err, shared.ErrNotFound) {
		h.pages.NotFound(w, r)
		return
	}
	h.pages.ServerError(w, r, "save product failed", err)
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, status int, product *Product, form productForm, errs formErrors) {
	title := "New product"
	action := "/products"
	if product != nil {
		title = "Edit product"
		action = "/products/" + strconv.FormatInt(product.ID, 10) + "/edit"
	}
	h.pages.Render(w, r, status, "pages/product_form.html", title, map[string]any{
		"Product": product,
		"Form":    form,
		"Errors":  errs,
		"Action":  action,
	})
}
