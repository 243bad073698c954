package app

import (
	"io/fs"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/orderdesk/internal/customers"
	"github.com/odyssey-erp/orderdesk/internal/observability"
	"github.com/odyssey-erp/orderdesk/internal/orders"
	"github.com/odyssey-erp/orderdesk/internal/platform/httpx"
	"github.com/odyssey-erp/orderdesk/internal/products"
	"github.com/odyssey-erp/orderdesk/internal/shared"
	"github.com/odyssey-erp/orderdesk/internal/view"
	"github.com/odyssey-erp/orderdesk/jobs"
	"github.com/odyssey-erp/orderdesk/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Pages          *view.Pages
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Dashboard      *Dashboard

	CustomersHandler *customers.Handler
	CustomersAPI     *customers.APIHandler
	ProductsHandler  *products.Handler
	ProductsAPI      *products.APIHandler
	OrdersHandler    *orders.Handler
	OrdersAPI        *orders.APIHandler

	JobHandler *jobs.Handler
	Metrics    *observability.Metrics
}

// NewRouter constructs the chi.Router with orderdesk defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	// Browser pages carry a session and verify CSRF on unsafe methods.
	r.Group(func(r chi.Router) {
		if params.SessionManager != nil {
			r.Use(params.SessionManager.Middleware(params.Logger))
		}
		if params.CSRFManager != nil {
			r.Use(params.CSRFManager.Middleware(params.Logger))
		}
		r.Get("/", homeHandler(params))
		if params.CustomersHandler != nil {
			r.Route("/customers", params.CustomersHandler.MountRoutes)
		}
		if params.ProductsHandler != nil {
			r.Route("/products", params.ProductsHandler.MountRoutes)
		}
		if params.OrdersHandler != nil {
			r.Route("/orders", params.OrdersHandler.MountRoutes)
		}
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			params.Pages.NotFound(w, r)
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusNotFound, "Not found", "No such resource.")
		})
		if params.CustomersAPI != nil {
			r.Route("/customers", params.CustomersAPI.MountRoutes)
		}
		if params.ProductsAPI != nil {
			r.Route("/products", params.ProductsAPI.MountRoutes)
		}
		if params.OrdersAPI != nil {
			r.Route("/orders", params.OrdersAPI.MountRoutes)
			r.Route("/order-items", params.OrdersAPI.MountItemRoutes)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		if err := mime.AddExtensionType(".css", "text/css; charset=utf-8"); err != nil {
			params.Logger.Warn("register css mime type", slog.Any("error", err))
		}
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

func homeHandler(params RouterParams) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var counts Counts
		if params.Dashboard != nil {
			var err error
			counts, err = params.Dashboard.Load(r.Context())
			if err != nil {
				params.Pages.ServerError(w, r, "load dashboard failed", err)
				return
			}
		}
		params.Pages.Render(w, r, http.StatusOK, "pages/home.html", "Order desk", counts)
	}
}

// staticCacheHandler caches static assets in the browser for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
