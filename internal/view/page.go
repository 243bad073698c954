package view

import (
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/orderdesk/internal/shared"
)

// Pages renders session-aware pages for the web handlers.
type Pages struct {
	Templates *Engine
	CSRF      *shared.CSRFManager
	Logger    *slog.Logger
}

// Render writes tmpl with the session's CSRF token and pending flash message.
func (p *Pages) Render(w http.ResponseWriter, r *http.Request, status int, tmpl, title string, data any) {
	sess := shared.SessionFromContext(r.Context())
	var (
		csrfToken string
		flash     *shared.FlashMessage
	)
	if sess != nil {
		token, err := p.CSRF.EnsureToken(sess)
		if err != nil {
			p.Logger.Warn("ensure csrf token", slog.Any("error", err))
		}
		csrfToken = token
		flash = sess.PopFlash()
	}

	viewData := TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if err := p.Templates.Render(w, status, tmpl, viewData); err != nil {
		p.Logger.Error("template render failed", slog.Any("error", err), slog.String("template", tmpl))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// RedirectWithFlash queues a flash message and redirects with 303.
func (p *Pages) RedirectWithFlash(w http.ResponseWriter, r *http.Request, url, kind, message string) {
	shared.Flash(r.Context(), kind, message)
	http.Redirect(w, r, url, http.StatusSeeOther)
}

// NotFound renders the shared 404 page.
func (p *Pages) NotFound(w http.ResponseWriter, r *http.Request) {
	p.Render(w, r, http.StatusNotFound, "pages/not_found.html", "Not found", nil)
}

// ServerError logs err and renders a generic failure page.
func (p *Pages) ServerError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	p.Logger.Error(msg, slog.Any("error", err), slog.String("path", r.URL.Path))
	p.Render(w, r, http.StatusInternalServerError, "pages/error.html", "Error", map[string]any{
		"Message": shared.UserSafeMessage(err),
	})
}
