package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/joyeria/internal/config"
	"github.com/JonMunkholm/joyeria/internal/core"
	"github.com/JonMunkholm/joyeria/internal/upstream"
	"github.com/JonMunkholm/joyeria/internal/web/templates"
)

// ============================================================================
// Fixtures
// ============================================================================

type fakeSource struct {
	mu        sync.Mutex
	records   map[string][]core.Record
	listErr   error
	createErr error
	created   []core.Record
	files     []core.Attachment
	deleted   []string

	// When set, Create signals entered and waits for release.
	entered chan struct{}
	release chan struct{}
}

func (f *fakeSource) List(_ context.Context, entity string) ([]core.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]core.Record(nil), f.records[entity]...), nil
}

func (f *fakeSource) Create(_ context.Context, entity string, rec core.Record, files []core.Attachment) (core.Record, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	out := core.Record{"_id": fmt.Sprintf("new-%d", len(f.created)+1)}
	for k, v := range rec {
		out[k] = v
	}
	f.created = append(f.created, out)
	f.files = append(f.files, files...)
	f.records[entity] = append(f.records[entity], out)
	return out, nil
}

func (f *fakeSource) Update(_ context.Context, entity, id string, rec core.Record, _ []core.Attachment) (core.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := core.Record{"_id": id}
	for k, v := range rec {
		out[k] = v
	}
	return out, nil
}

func (f *fakeSource) Delete(_ context.Context, _ string, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func ordersTable() core.TableConfig {
	return core.TableConfig{
		Key:   "orders",
		Title: "Pedidos",
		Group: "Ventas",
		Columns: []core.ColumnDescriptor{
			{Key: "orderCode", Label: "Código", Priority: core.PriorityEssential},
			{Key: "status", Label: "Estado", Type: core.TypeBadge, Priority: core.PriorityEssential},
			{Key: "total", Label: "Total", Type: core.TypeCurrency},
			{Key: "notes", Label: "Notas", Hidden: true, Priority: core.PriorityOptional},
		},
		Actions: core.Actions{CanAdd: true, CanEdit: true, CanExport: true, CanView: true},
	}
}

// twelveOrders has 7 pending orders: o01 o03 o04 o06 o08 o09 o11.
func twelveOrders() []core.Record {
	pending := map[int]bool{1: true, 3: true, 4: true, 6: true, 8: true, 9: true, 11: true}
	out := make([]core.Record, 0, 12)
	for i := 1; i <= 12; i++ {
		status := "entregado"
		if pending[i] {
			status = "pendiente"
		}
		out = append(out, core.Record{
			"_id":       fmt.Sprintf("o%02d", i),
			"orderCode": fmt.Sprintf("ORD-%02d", i),
			"status":    status,
			"total":     float64(i * 100),
			"notes":     "nota " + fmt.Sprint(i),
		})
	}
	return out
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Table.DefaultPageSize = 10
	cfg.Table.MaxPageSize = 100
	cfg.Security.EnableCSP = true
	return cfg
}

type harness struct {
	t      *testing.T
	src    *fakeSource
	svc    *core.Service
	server *Server
	cookie *http.Cookie
}

func newHarness(t *testing.T, cfg *config.Config) *harness {
	t.Helper()
	core.Clear()
	t.Cleanup(core.Clear)
	core.Register(ordersTable())

	src := &fakeSource{records: map[string][]core.Record{"orders": twelveOrders()}}
	svc := core.NewService(nil, src, core.WithReportRenderer(templates.Printer{}))
	t.Cleanup(svc.Close)

	if cfg == nil {
		cfg = testConfig()
	}
	srv := NewServer(svc, cfg)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	return &harness{t: t, src: src, svc: svc, server: srv}
}

// do sends a request through the router, keeping the session cookie.
func (h *harness) do(method, target string, body io.Reader, headers ...string) *httptest.ResponseRecorder {
	h.t.Helper()
	req := httptest.NewRequest(method, target, body)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	if h.cookie != nil {
		req.AddCookie(h.cookie)
	}
	rec := httptest.NewRecorder()
	h.server.Router().ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookie {
			h.cookie = c
		}
	}
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	decodeJSON(t, rec, &resp)
	return resp.Code
}

// ============================================================================
// Middleware wiring
// ============================================================================

func TestSecurityHeaders(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(http.MethodGet, "/api/tables", nil)

	for _, name := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy"} {
		if rec.Header().Get(name) == "" {
			t.Errorf("missing header %s", name)
		}
	}
}

func TestSessionCookieIssuedOnce(t *testing.T) {
	h := newHarness(t, nil)

	first := h.do(http.MethodGet, "/api/tables/orders/rows", nil)
	if h.cookie == nil {
		t.Fatal("first request should issue a session cookie")
	}
	if n := len(first.Result().Cookies()); n != 1 {
		t.Errorf("cookies issued = %d, want 1", n)
	}

	second := h.do(http.MethodGet, "/api/tables/orders/rows", nil)
	if len(second.Result().Cookies()) != 0 {
		t.Error("known session should not get a new cookie")
	}
	if n := h.server.Sessions().Len(); n != 1 {
		t.Errorf("sessions = %d, want 1", n)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate.Enabled = true
	cfg.Rate.RequestsPerMinute = 2
	h := newHarness(t, cfg)

	for i := 0; i < 2; i++ {
		if rec := h.do(http.MethodGet, "/api/tables", nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec := h.do(http.MethodGet, "/api/tables", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if code := errorCode(t, rec); code != "RATE001" {
		t.Errorf("code = %s, want RATE001", code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret"}
	h := newHarness(t, cfg)

	if rec := h.do(http.MethodGet, "/api/tables", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("without key status = %d, want 401", rec.Code)
	}
	if rec := h.do(http.MethodGet, "/api/tables", nil, "X-API-Key", "secret"); rec.Code != http.StatusOK {
		t.Errorf("with key status = %d, want 200", rec.Code)
	}
	// Pages are not behind the key.
	if rec := h.do(http.MethodGet, "/", nil); rec.Code != http.StatusOK {
		t.Errorf("dashboard status = %d, want 200", rec.Code)
	}
}

// ============================================================================
// Error mapping
// ============================================================================

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"bad request", fmt.Errorf("%w: page", errBadRequest), http.StatusBadRequest},
		{"unsupported format", core.ErrUnsupportedFormat, http.StatusBadRequest},
		{"unknown table", fmt.Errorf("%w: x", core.ErrUnknownTable), http.StatusNotFound},
		{"record not found", core.ErrRecordNotFound, http.StatusNotFound},
		{"not allowed", core.ErrActionNotAllowed, http.StatusForbidden},
		{"submit in progress", core.ErrSubmitInProgress, http.StatusConflict},
		{"nothing to export", core.ErrNothingToExport, http.StatusUnprocessableEntity},
		{"too many exports", core.ErrTooManyExports, http.StatusTooManyRequests},
		{"upstream 401", &upstream.StatusError{Code: 401}, http.StatusUnauthorized},
		{"upstream 422", fmt.Errorf("create: %w", &upstream.StatusError{Code: 422}), http.StatusUnprocessableEntity},
		{"upstream 503", &upstream.StatusError{Code: 503}, http.StatusBadGateway},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestRespondError_ByRequestType(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodGet, "/table/nope", nil, "HX-Request", "true")
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), `class="alert"`) {
		t.Errorf("htmx error = %d %s", rec.Code, rec.Body.String())
	}

	rec = h.do(http.MethodGet, "/table/nope", nil)
	if !strings.Contains(rec.Body.String(), "TBL001") || strings.Contains(rec.Body.String(), "{") {
		t.Errorf("plain error = %s", rec.Body.String())
	}

	rec = h.do(http.MethodGet, "/api/tables/nope", nil)
	if code := errorCode(t, rec); code != "TBL001" {
		t.Errorf("json code = %s", code)
	}
}

// ============================================================================
// Sessions
// ============================================================================

func TestSessionStore_Purge(t *testing.T) {
	st := NewSessionStore(10)
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		st.resolve(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)).get()
	}
	now = now.Add(2 * time.Hour)
	st.resolve(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)).get()

	if n := st.Purge(time.Hour); n != 3 {
		t.Errorf("purged %d, want 3", n)
	}
	if st.Len() != 1 {
		t.Errorf("remaining = %d, want 1", st.Len())
	}

	now = now.Add(2 * time.Hour)
	st.PurgeHook(time.Hour)(context.Background())
	if st.Len() != 0 {
		t.Errorf("hook left %d sessions", st.Len())
	}
}

func TestSessionStore_InvalidCookieGetsNewSession(t *testing.T) {
	st := NewSessionStore(10)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "not-a-uuid"})
	rec := httptest.NewRecorder()

	st.resolve(rec, req).get()
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value == "not-a-uuid" {
		t.Errorf("cookies = %v", cookies)
	}
}

func TestSessionStore_UnusedSessionsAreNotKept(t *testing.T) {
	h := newHarness(t, nil)

	for i := 0; i < 500; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
		rec := httptest.NewRecorder()
		h.server.Router().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if len(rec.Result().Cookies()) != 0 {
			t.Fatal("stateless request should not issue a cookie")
		}
	}
	if n := h.server.Sessions().Len(); n != 0 {
		t.Errorf("sessions = %d, want 0", n)
	}

	h.do(http.MethodGet, "/api/tables/orders/rows", nil)
	if h.cookie == nil {
		t.Fatal("stateful request should issue a cookie")
	}
	if n := h.server.Sessions().Len(); n != 1 {
		t.Errorf("sessions = %d, want 1", n)
	}
}

func TestSessionStore_EvictsOldestPastCap(t *testing.T) {
	st := NewSessionStore(10)
	st.maxSessions = 3
	now := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return now }

	var first string
	for i := 0; i < 5; i++ {
		h := st.resolve(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		h.get()
		if i == 0 {
			first = h.id
		}
		now = now.Add(time.Minute)
	}

	if st.Len() != 3 {
		t.Errorf("sessions = %d, want 3", st.Len())
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: first})
	if h := st.resolve(httptest.NewRecorder(), req); !h.fresh {
		t.Error("oldest session should have been evicted")
	}
}
