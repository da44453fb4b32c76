package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"vansales/backend/internal/domain"
	"vansales/backend/internal/service"
	"vansales/backend/internal/store"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string) *API {
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
	}
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
	kept = append(kept, now)
	l.entries[key] = kept
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

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	mux.HandleFunc("/api/v1/auth/login", a.handleLogin)

	mux.HandleFunc("/api/v1/invoices", a.requireAuth(a.handleInvoices, "salesman", "manager"))
	mux.HandleFunc("/api/v1/invoices/", a.requireAuth(a.handleInvoiceActions, "salesman", "manager"))
	mux.HandleFunc("/api/v1/returns", a.requireAuth(a.handleReturns, "salesman", "manager"))
	mux.HandleFunc("/api/v1/returns/", a.requireAuth(a.handleReturnActions, "salesman", "manager"))
	mux.HandleFunc("/api/v1/receipts", a.requireAuth(a.handleReceipts, "salesman", "manager"))
	mux.HandleFunc("/api/v1/receipts/", a.requireAuth(a.handleReceiptActions, "salesman", "manager"))
	mux.HandleFunc("/api/v1/catalog/items", a.requireAuth(a.handleCatalogItems, "salesman", "manager"))
	mux.HandleFunc("/api/v1/catalog/customers", a.requireAuth(a.handleCatalogCustomers, "salesman", "manager"))
	mux.HandleFunc("/api/v1/documents/next-number", a.requireAuth(a.handleNextNumber, "salesman", "manager"))
	mux.HandleFunc("/api/v1/reports/daily", a.requireAuth(a.handleDailyReport, "salesman", "manager"))
	mux.HandleFunc("/api/v1/audit-logs", a.requireAuth(a.handleAuditLogs, "manager"))
	mux.HandleFunc("/api/v1/users/salesmen", a.requireAuth(a.handleSalesmen, "manager"))

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

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
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

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleInvoices(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		filter := domain.InvoiceListFilter{
			VanID:         r.URL.Query().Get("van_id"),
			CustomerID:    r.URL.Query().Get("customer_id"),
			PaymentStatus: r.URL.Query().Get("payment_status"),
			Limit:         parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500),
		}
		if raw := r.URL.Query().Get("from"); raw != "" {
			parsed, err := time.Parse("2006-01-02", raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, errors.New("invalid from date"))
				return
			}
			filter.From = parsed.UTC()
		}
		if raw := r.URL.Query().Get("to"); raw != "" {
			parsed, err := time.Parse("2006-01-02", raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, errors.New("invalid to date"))
				return
			}
			// Stores filter with invoice_date < To, so the named day itself
			// stays in range.
			filter.To = parsed.UTC().Add(24 * time.Hour)
		}

		if number := strings.TrimSpace(r.URL.Query().Get("number")); number != "" {
			invoice, err := a.service.GetInvoiceByNumber(r.Context(), number)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"invoices": []domain.Invoice{invoice}})
			return
		}

		invoices, err := a.service.ListInvoices(r.Context(), filter)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices})
	case http.MethodPost:
		var req domain.InvoiceCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		invoice, err := a.service.CreateInvoice(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"invoice": invoice})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleInvoiceActions(w http.ResponseWriter, r *http.Request) {
	id, action := splitDocumentPath(r.URL.Path, "/api/v1/invoices/")
	if id == "" {
		writeError(w, http.StatusNotFound, errors.New("invoice id required"))
		return
	}

	switch {
	case action == "print" && r.Method == http.MethodGet:
		doc, err := a.service.BuildInvoiceDocument(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"document": doc})
	case action == "" && r.Method == http.MethodGet:
		invoice, err := a.service.GetInvoice(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invoice": invoice})
	case action == "" && (r.Method == http.MethodPatch || r.Method == http.MethodPut):
		var patch domain.InvoiceUpdateRequest
		if err := decodeJSON(r, &patch); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		invoice, err := a.service.UpdateInvoice(r.Context(), id, patch)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"invoice": invoice})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleReturns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		filter := domain.ReturnListFilter{
			VanID:      r.URL.Query().Get("van_id"),
			CustomerID: r.URL.Query().Get("customer_id"),
			InvoiceID:  r.URL.Query().Get("invoice_id"),
			ReturnType: r.URL.Query().Get("return_type"),
			Limit:      parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500),
		}
		returns, err := a.service.ListReturns(r.Context(), filter)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"returns": returns})
	case http.MethodPost:
		var req domain.ReturnCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		ret, err := a.service.CreateReturn(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"return": ret})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleReturnActions(w http.ResponseWriter, r *http.Request) {
	id, action := splitDocumentPath(r.URL.Path, "/api/v1/returns/")
	if id == "" {
		writeError(w, http.StatusNotFound, errors.New("return id required"))
		return
	}

	switch {
	case action == "print" && r.Method == http.MethodGet:
		doc, err := a.service.BuildReturnDocument(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"document": doc})
	case action == "" && r.Method == http.MethodGet:
		ret, err := a.service.GetReturn(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"return": ret})
	case action == "" && (r.Method == http.MethodPatch || r.Method == http.MethodPut):
		var patch domain.ReturnUpdateRequest
		if err := decodeJSON(r, &patch); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		ret, err := a.service.UpdateReturn(r.Context(), id, patch)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"return": ret})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleReceipts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		filter := domain.ReceiptListFilter{
			VanID:      r.URL.Query().Get("van_id"),
			CustomerID: r.URL.Query().Get("customer_id"),
			InvoiceID:  r.URL.Query().Get("invoice_id"),
			Limit:      parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500),
		}
		receipts, err := a.service.ListReceipts(r.Context(), filter)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"receipts": receipts})
	case http.MethodPost:
		var req domain.ReceiptCreateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		receipt, err := a.service.CreateReceipt(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"receipt": receipt})
	default:
		writeMethodNotAllowed(w)
	}
}

func (a *API) handleReceiptActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	id, _ := splitDocumentPath(r.URL.Path, "/api/v1/receipts/")
	if id == "" {
		writeError(w, http.StatusNotFound, errors.New("receipt id required"))
		return
	}

	receipt, err := a.service.GetReceipt(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"receipt": receipt})
}

func (a *API) handleCatalogItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	items, err := a.service.SearchItems(r.Context(), r.URL.Query().Get("q"), parsePositiveLimit(r.URL.Query().Get("limit"), 50, 200))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (a *API) handleCatalogCustomers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	customers, err := a.service.SearchCustomers(r.Context(), r.URL.Query().Get("q"), parsePositiveLimit(r.URL.Query().Get("limit"), 50, 200))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": customers})
}

func (a *API) handleNextNumber(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	number, err := a.service.NextDocumentNumber(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"number": number})
}

func (a *API) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	report, err := a.service.DailyReport(r.Context(), r.URL.Query().Get("van_id"), r.URL.Query().Get("date"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"report": report})
}

func (a *API) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}

	logs, err := a.service.ListAuditLogs(r.Context(), r.URL.Query().Get("van_id"), r.URL.Query().Get("date"), parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"audit_logs": logs})
}

func (a *API) handleSalesmen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req domain.SalesmanCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := a.service.CreateSalesman(r.Context(), req); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"username": strings.ToLower(strings.TrimSpace(req.Username))})
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,PUT,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(startedAt))
	})
}

// splitDocumentPath pulls the id and optional trailing action out of
// /api/v1/<kind>/{id}[/{action}].
func splitDocumentPath(path string, prefix string) (id string, action string) {
	rest := strings.TrimPrefix(path, prefix)
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return "", ""
	}
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}

// writeServiceError maps the service and store error taxonomy onto HTTP
// status codes.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrInvalidDocument),
		errors.Is(err, store.ErrDuplicateItem),
		errors.Is(err, service.ErrMissingVan),
		errors.Is(err, service.ErrMissingParty),
		errors.Is(err, service.ErrEmptyDocument),
		errors.Is(err, service.ErrInvalidLineItem),
		errors.Is(err, service.ErrMissingReason):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, service.ErrManagerRequired):
		writeError(w, http.StatusForbidden, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
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

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx responses get a generic message so storage details never leak to
	// the device. 4xx messages are user-facing and pass through.
	msg := err.Error()
	if status >= 500 {
		log.Printf("internal error (status %d): %v", status, err)
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
