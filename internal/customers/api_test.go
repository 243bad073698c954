package customers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/orderdesk/internal/integrity"
)

func newTestAPI() (http.Handler, *mockRepository) {
	repo := newMockRepository()
	api := NewAPIHandler(nil, NewService(repo, integrity.NewPolicy()))
	r := chi.NewRouter()
	r.Route("/api/customers", api.MountRoutes)
	return r, repo
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestAPICreateAndGetCustomer(t *testing.T) {
	h, _ := newTestAPI()

	rr := doJSON(t, h, http.MethodPost, "/api/customers", `{"name":"Acme","email":"a@acme.test"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var created Customer
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, "Acme", created.Name)

	rr = doJSON(t, h, http.MethodGet, "/api/customers/1", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"email":"a@acme.test"`)
}

func TestAPICreateCustomerValidation(t *testing.T) {
	h, _ := newTestAPI()

	rr := doJSON(t, h, http.MethodPost, "/api/customers", `{"email":"a@acme.test"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), `"name"`)
}

func TestAPIPatchCustomer(t *testing.T) {
	h, _ := newTestAPI()
	require.Equal(t, http.StatusCreated, doJSON(t, h, http.MethodPost, "/api/customers", `{"name":"Acme"}`).Code)

	rr := doJSON(t, h, http.MethodPatch, "/api/customers/1", `{"phone":"555"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"phone":"555"`)
	assert.Contains(t, rr.Body.String(), `"name":"Acme"`)
}

func TestAPIPatchCustomerBlankEmail(t *testing.T) {
	h, _ := newTestAPI()
	require.Equal(t, http.StatusCreated, doJSON(t, h, http.MethodPost, "/api/customers", `{"name":"Acme","email":"ops@acme.test"}`).Code)

	rr := doJSON(t, h, http.MethodPatch, "/api/customers/1", `{"email":""}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), `"email":""`)
}

func TestAPIDeleteProtectedCustomer(t *testing.T) {
	h, repo := newTestAPI()
	require.Equal(t, http.StatusCreated, doJSON(t, h, http.MethodPost, "/api/customers", `{"name":"Acme"}`).Code)
	repo.orderCounts[1] = 3

	rr := doJSON(t, h, http.MethodDelete, "/api/customers/1", "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	repo.orderCounts[1] = 0
	rr = doJSON(t, h, http.MethodDelete, "/api/customers/1", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestAPIGetMissingCustomer(t *testing.T) {
	h, _ := newTestAPI()

	assert.Equal(t, http.StatusNotFound, doJSON(t, h, http.MethodGet, "/api/customers/9", "").Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(t, h, http.MethodGet, "/api/customers/abc", "").Code)
}

func TestAPIListCustomers(t *testing.T) {
	h, _ := newTestAPI()
	doJSON(t, h, http.MethodPost, "/api/customers", `{"name":"Acme"}`)
	doJSON(t, h, http.MethodPost, "/api/customers", `{"name":"Globex"}`)

	rr := doJSON(t, h, http.MethodGet, "/api/customers?search=glo", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var page struct {
		Count   int        `json:"count"`
		Limit   int        `json:"limit"`
		Results []Customer `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Count)
	assert.Equal(t, 25, page.Limit)
	require.Len(t, page.Results, 1)
	assert.Equal(t, "Globex", page.Results[0].Name)
}
