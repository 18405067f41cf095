package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockflow/backend/internal/domain"
)

func TestMiddlewareSetsSecurityHeaders(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	assert.Equal(t, "nosniff", res.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", res.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, res.Header().Get("Referrer-Policy"))
	assert.Equal(t, "*", res.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, res.Header().Get("X-Request-ID"))
}

func TestMiddlewareKeepsIncomingRequestID(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "till-7-0001")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	assert.Equal(t, "till-7-0001", res.Header().Get("X-Request-ID"))
}

func TestLoginRateLimitReturns429(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	body, _ := json.Marshal(domain.LoginRequest{Username: "admin", Password: "wrong-pass"})

	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "127.0.0.1:5000"
		res := httptest.NewRecorder()

		handler.ServeHTTP(res, req)

		if i < 5 {
			require.Equal(t, http.StatusUnauthorized, res.Code, "attempt %d", i+1)
		} else {
			require.Equal(t, http.StatusTooManyRequests, res.Code, "attempt %d", i+1)
		}
	}

	// Another client is unaffected.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.RemoteAddr = "127.0.0.2:5000"
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestJSONBodyTooLargeRejected(t *testing.T) {
	api := newTestAPI(t)
	veryLong := strings.Repeat("a", (1<<20)+1024)
	body := fmt.Sprintf(`{"username":"%s","password":"x"}`, veryLong)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)

	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestMutationsRequireCSRFToken(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAs(t, handler, "cashier", "cashier123")

	res := doJSON(t, handler, http.MethodPost, "/api/v1/carts", token, "", map[string]string{})
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = doJSON(t, handler, http.MethodPost, "/api/v1/carts", token, "not-a-token", map[string]string{})
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = doJSON(t, handler, http.MethodPost, "/api/v1/carts", token, fetchCSRFToken(t, handler), map[string]string{})
	assert.Equal(t, http.StatusCreated, res.Code)
}

func TestRoleGates(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	cashier := loginAs(t, handler, "cashier", "cashier123")
	csrf := fetchCSRFToken(t, handler)

	for _, path := range []string{"/api/v1/analytics", "/api/v1/audit-logs", "/api/v1/inventory/export.csv", "/api/v1/users/cashiers"} {
		res := doJSON(t, handler, http.MethodGet, path, cashier, "", nil)
		assert.Equal(t, http.StatusForbidden, res.Code, path)
	}

	res := doJSON(t, handler, http.MethodDelete, "/api/v1/items/AB12CD", cashier, csrf, nil)
	assert.Equal(t, http.StatusForbidden, res.Code)

	res = doJSON(t, handler, http.MethodGet, "/api/v1/items", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	res = doJSON(t, handler, http.MethodGet, "/api/v1/items", "garbage", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestParsePositiveLimitCaps(t *testing.T) {
	assert.Equal(t, 200, parsePositiveLimit("9999", 50, 200))
	assert.Equal(t, 50, parsePositiveLimit("", 50, 200))
	assert.Equal(t, 50, parsePositiveLimit("invalid", 50, 200))
	assert.Equal(t, 50, parsePositiveLimit("-3", 50, 200))
}

func TestStatusForTaxonomy(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrStockExceeded, http.StatusConflict},
		{domain.ErrInvalidQuantity, http.StatusBadRequest},
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{domain.ErrEmptyCart, http.StatusUnprocessableEntity},
		{domain.ErrMissingCustomerDetails, http.StatusUnprocessableEntity},
		{domain.ErrNotPending, http.StatusConflict},
		{domain.ErrCheckoutInProgress, http.StatusConflict},
		{domain.ErrConflict, http.StatusConflict},
		{domain.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("%w: dial tcp", domain.ErrBackendUnavailable), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(fmt.Errorf("wrapped: %w", tc.err)), tc.err.Error())
	}
}

func TestServerErrorsHideMessage(t *testing.T) {
	res := httptest.NewRecorder()
	writeErrorCode(res, http.StatusServiceUnavailable, "BACKEND_UNAVAILABLE", errors.New("pq: password authentication failed"))

	var payload map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&payload))
	assert.Equal(t, "service unavailable", payload["error"])
	assert.Equal(t, "BACKEND_UNAVAILABLE", payload["code"])
}

// fetchCSRFToken calls the CSRF token endpoint and returns the token string.
func fetchCSRFToken(t *testing.T, handler http.Handler) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/csrf-token", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	var payload map[string]string
	require.NoError(t, json.NewDecoder(res.Body).Decode(&payload))
	require.NotEmpty(t, strings.TrimSpace(payload["csrf_token"]))
	return payload["csrf_token"]
}

func loginAs(t *testing.T, handler http.Handler, username string, password string) string {
	t.Helper()

	body, _ := json.Marshal(domain.LoginRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()

	handler.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code, "login %s: %s", username, res.Body.String())

	var payload domain.LoginResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&payload))
	require.NotEmpty(t, payload.AccessToken)
	return payload.AccessToken
}
