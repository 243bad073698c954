package orders

import (
	"github.com/go-chi/chi/v5"
)

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/new", h.ShowForm)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Detail)
	r.Post("/{id}", h.SaveItems)
	r.Get("/{id}/edit", h.ShowEditForm)
	r.Post("/{id}/edit", h.Update)
	r.Get("/{id}/delete", h.ConfirmDelete)
	r.Post("/{id}/delete", h.Delete)
}

// MountRoutes registers /orders under r.
func (h *APIHandler) MountRoutes(r chi.Router) {
	r.Get("/", h.listOrders)
	r.Post("/", h.createOrder)
	r.Get("/{id}", h.getOrder)
	r.Patch("/{id}", h.updateOrder)
	r.Put("/{id}", h.updateOrder)
	r.Delete("/{id}", h.deleteOrder)
	r.Post("/{id}/items/batch", h.applyBatch)
}

// MountItemRoutes registers /order-items under r.
func (h *APIHandler) MountItemRoutes(r chi.Router) {
	r.Get("/", h.listItems)
	r.Post("/", h.createItem)
	r.Get("/{id}", h.getItem)
	r.Patch("/{id}", h.updateItem)
	r.Put("/{id}", h.updateItem)
	r.Delete("/{id}", h.deleteItem)
}
