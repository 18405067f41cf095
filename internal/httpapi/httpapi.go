package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stockflow/backend/internal/domain"
	"stockflow/backend/internal/logger"
	"stockflow/backend/internal/metrics"
	"stockflow/backend/internal/service"
)

type Options struct {
	AllowedOrigin string
	Logger        *logger.Logger
	Metrics       *metrics.Metrics
}

type API struct {
	service       *service.Service
	auth          *AuthManager
	log           *logger.Logger
	metrics       *metrics.Metrics
	allowedOrigin string
	loginLimiter  *attemptLimiter
	csrfSecret    []byte
}

func New(svc *service.Service, auth *AuthManager, opts Options) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &API{
		service:       svc,
		auth:          auth,
		log:           opts.Logger,
		metrics:       opts.Metrics,
		allowedOrigin: opts.AllowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		csrfSecret:    csrfSecret,
	}
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket
// (expressed as Unix time truncated to the hour). The token is hex-encoded.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	bucket := time.Now().UTC().Truncate(time.Hour).Unix()
	return a.csrfTokenForHour(bucket)
}

// validateCSRFToken accepts tokens from the current or previous hour bucket.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	currentBucket := time.Now().UTC().Truncate(time.Hour).Unix()
	prevBucket := currentBucket - 3600

	return hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(currentBucket))) ||
		hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(prevBucket)))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	l.entries[key] = append(kept, now)
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

const adminOnly = domain.RoleAdmin

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.Handle("GET /metrics", a.metrics.Handler())
	mux.HandleFunc("POST /api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("GET /api/v1/auth/csrf-token", a.handleCSRFToken)
	mux.HandleFunc("GET /api/v1/public/invoices/{shareID}", a.handlePublicInvoice)

	staff := []string{domain.RoleCashier, domain.RoleAdmin}

	mux.HandleFunc("GET /api/v1/items", a.requireAuth(a.handleListItems, staff...))
	mux.HandleFunc("POST /api/v1/items", a.requireAuth(a.handleCreateItem, adminOnly))
	mux.HandleFunc("GET /api/v1/items/{code}", a.requireAuth(a.handleGetItem, staff...))
	mux.HandleFunc("PATCH /api/v1/items/{code}", a.requireAuth(a.handleUpdateItem, adminOnly))
	mux.HandleFunc("DELETE /api/v1/items/{code}", a.requireAuth(a.handleDeleteItem, adminOnly))
	mux.HandleFunc("GET /api/v1/items/{code}/pack-options", a.requireAuth(a.handlePackOptions, staff...))
	mux.HandleFunc("GET /api/v1/items/{code}/labels", a.requireAuth(a.handleLabels, staff...))
	mux.HandleFunc("GET /api/v1/inventory/export.csv", a.requireAuth(a.handleInventoryExport, adminOnly))

	mux.HandleFunc("POST /api/v1/carts", a.requireAuth(a.handleOpenCart, staff...))
	mux.HandleFunc("GET /api/v1/carts/{id}", a.requireAuth(a.handleGetCart, staff...))
	mux.HandleFunc("DELETE /api/v1/carts/{id}", a.requireAuth(a.handleDiscardCart, staff...))
	mux.HandleFunc("POST /api/v1/carts/{id}/lines", a.requireAuth(a.handleAddCartLine, staff...))
	mux.HandleFunc("PATCH /api/v1/carts/{id}/lines/{itemID}", a.requireAuth(a.handleUpdateCartLine, staff...))
	mux.HandleFunc("DELETE /api/v1/carts/{id}/lines/{itemID}", a.requireAuth(a.handleRemoveCartLine, staff...))
	mux.HandleFunc("PUT /api/v1/carts/{id}/discount", a.requireAuth(a.handleCartDiscount, staff...))
	mux.HandleFunc("PUT /api/v1/carts/{id}/mode", a.requireAuth(a.handleCartMode, staff...))
	mux.HandleFunc("PUT /api/v1/carts/{id}/customer", a.requireAuth(a.handleCartCustomer, staff...))
	mux.HandleFunc("POST /api/v1/carts/{id}/checkout", a.requireAuth(a.handleCheckout, staff...))

	mux.HandleFunc("GET /api/v1/bills", a.requireAuth(a.handleDailySales, staff...))
	mux.HandleFunc("GET /api/v1/bills/{id}", a.requireAuth(a.handleGetBill, staff...))
	mux.HandleFunc("GET /api/v1/bills/{id}/receipt", a.requireAuth(a.handleReceipt, staff...))
	mux.HandleFunc("GET /api/v1/bills/{id}/share", a.requireAuth(a.handleShare, staff...))

	mux.HandleFunc("GET /api/v1/udhaar", a.requireAuth(a.handleListUdhaar, staff...))
	mux.HandleFunc("POST /api/v1/udhaar/{id}/settle", a.requireAuth(a.handleSettleUdhaar, staff...))
	mux.HandleFunc("GET /api/v1/udhaar/{id}/reminder", a.requireAuth(a.handleUdhaarReminder, staff...))

	mux.HandleFunc("GET /api/v1/analytics", a.requireAuth(a.handleAnalytics, adminOnly))
	mux.HandleFunc("GET /api/v1/audit-logs", a.requireAuth(a.handleAuditLogs, adminOnly))
	mux.HandleFunc("GET /api/v1/users/cashiers", a.requireAuth(a.handleListCashiers, adminOnly))
	mux.HandleFunc("POST /api/v1/users/cashiers", a.requireAuth(a.handleCreateCashier, adminOnly))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		ctx := service.WithActor(r.Context(), actor)
		ctx = a.log.WithActor(ctx, actor.Username, actor.Role)
		next(w, r.WithContext(ctx))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

// checkCSRF enforces the CSRF header on state-changing requests. Login and
// public routes are exempt because they are called without a prior token fetch.
func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return true
	}
	if r.URL.Path == "/api/v1/auth/login" || strings.HasPrefix(r.URL.Path, "/api/v1/public/") {
		return true
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()

		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}
		ctx := a.log.WithRequestID(r.Context(), requestID)
		r = r.WithContext(ctx)

		w.Header().Set("X-Request-ID", requestID)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		if a.allowedOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token, X-Request-ID")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
			w.Header().Set("Vary", "Origin")
		}

		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		rec := &statusRecorder{ResponseWriter: w}
		if a.checkCSRF(rec, r) {
			next.ServeHTTP(rec, r)
		}
		if rec.status == 0 {
			rec.status = http.StatusOK
		}

		elapsed := time.Since(startedAt)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		a.metrics.ObserveRequest(r.Method, route, rec.status, elapsed)

		level := zerolog.InfoLevel
		if rec.status >= 500 {
			level = zerolog.ErrorLevel
		}
		a.log.Event(ctx, level).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("route", route).
			Int("status", rec.status).
			Int("bytes", rec.bytes).
			Dur("duration", elapsed).
			Msg("http request")
	})
}

// statusFor maps the domain error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch domain.ErrorCode(err) {
	case "NOT_FOUND":
		return http.StatusNotFound
	case "STOCK_EXCEEDED", "NOT_PENDING", "CHECKOUT_IN_PROGRESS", "CONFLICT":
		return http.StatusConflict
	case "INVALID_QUANTITY", "INVALID_INPUT":
		return http.StatusBadRequest
	case "EMPTY_CART", "MISSING_CUSTOMER_DETAILS":
		return http.StatusUnprocessableEntity
	case "FORBIDDEN":
		return http.StatusForbidden
	default:
		return http.StatusServiceUnavailable
	}
}

// fail writes err with its taxonomy status and code. Server-side failures are
// logged with the request context; their message never reaches the client.
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= 500 {
		a.log.Error(r.Context(), "request failed", err)
	}
	writeErrorCode(w, status, domain.ErrorCode(err), err)
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

// decodeOptionalJSON is decodeJSON that accepts an empty body.
func decodeOptionalJSON(r *http.Request, dest any) error {
	if err := decodeJSON(r, dest); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func writeError(w http.ResponseWriter, status int, err error) {
	code := "INVALID_INPUT"
	switch status {
	case http.StatusUnauthorized:
		code = "UNAUTHORIZED"
	case http.StatusForbidden:
		code = "FORBIDDEN"
	case http.StatusTooManyRequests:
		code = "RATE_LIMITED"
	}
	writeErrorCode(w, status, code, err)
}

func writeErrorCode(w http.ResponseWriter, status int, code string, err error) {
	msg := err.Error()
	if status >= 500 {
		msg = strings.ToLower(http.StatusText(status))
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
		"code":  code,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeFile(w http.ResponseWriter, contentType string, disposition string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	if disposition != "" {
		w.Header().Set("Content-Disposition", disposition)
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
