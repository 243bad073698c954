package customers

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/orderdesk/internal/shared"
	"github.com/odyssey-erp/orderdesk/internal/view"
)

type webClient struct {
	handler http.Handler
	cookie  *http.Cookie
	csrf    string
}

func newWebClient(t *testing.T) (*webClient, *Service, *mockRepository) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.DiscardHandler)
	sessions := shared.NewSessionManager(client, "orderdesk_session", time.Hour, false)
	csrf := shared.NewCSRFManager("test-csrf-secret")
	engine, err := view.NewEngine()
	require.NoError(t, err)

	svc, repo := newTestService()
	h := NewHandler(logger, svc, &view.Pages{Templates: engine, CSRF: csrf, Logger: logger})

	r := chi.NewRouter()
	r.Use(sessions.Middleware(logger), csrf.Middleware(logger))
	r.Get("/token", func(w http.ResponseWriter, r *http.Request) {
		token, _ := csrf.EnsureToken(shared.SessionFromContext(r.Context()))
		_, _ = w.Write([]byte(token))
	})
	r.Route("/customers", h.MountRoutes)

	wc := &webClient{handler: r}
	rr := wc.do(httptest.NewRequest(http.MethodGet, "/token", nil))
	wc.cookie = rr.Result().Cookies()[0]
	wc.csrf = rr.Body.String()
	return wc, svc, repo
}

func (c *webClient) do(req *http.Request) *httptest.ResponseRecorder {
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rr := httptest.NewRecorder()
	c.handler.ServeHTTP(rr, req)
	return rr
}

func (c *webClient) post(path string, form url.Values) *httptest.ResponseRecorder {
	form.Set(shared.CSRFFormField, c.csrf)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func TestWebEditCustomerWithoutEmail(t *testing.T) {
	c, svc, repo := newWebClient(t)
	created, err := svc.Create(t.Context(), CreateCustomerRequest{Name: "Acme"})
	require.NoError(t, err)

	path := "/customers/" + strconv.FormatInt(created.ID, 10) + "/edit"
	rr := c.post(path, url.Values{"name": {"Acme Corp"}, "email": {""}, "phone": {""}, "notes": {"Net 30"}})
	require.Equal(t, http.StatusSeeOther, rr.Code, rr.Body.String())
	assert.Equal(t, "Acme Corp", repo.customers[created.ID].Name)
	assert.Equal(t, "Net 30", repo.customers[created.ID].Notes)
}

func TestWebEditCustomerClearsEmail(t *testing.T) {
	c, svc, repo := newWebClient(t)
	created, err := svc.Create(t.Context(), CreateCustomerRequest{Name: "Acme", Email: "ops@acme.test"})
	require.NoError(t, err)

	path := "/customers/" + strconv.FormatInt(created.ID, 10) + "/edit"
	rr := c.post(path, url.Values{"name": {"Acme"}, "email": {""}})
	require.Equal(t, http.StatusSeeOther, rr.Code, rr.Body.String())
	assert.Empty(t, repo.customers[created.ID].Email)

	rr = c.post(path, url.Values{"name": {"Acme"}, "email": {"nope"}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Enter a valid email address.")
}
