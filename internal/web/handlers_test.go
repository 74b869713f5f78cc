package web

import (
	"bytes"
	"encoding/csv"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/joyeria/internal/core"
	"github.com/JonMunkholm/joyeria/internal/upstream"
)

// ============================================================================
// Tables and rows
// ============================================================================

func TestListAndGetTables(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodGet, "/api/tables", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var list struct {
		Groups map[string][]tableSummary `json:"groups"`
		Count  int                       `json:"count"`
	}
	decodeJSON(t, rec, &list)
	if list.Count != 1 || len(list.Groups["Ventas"]) != 1 || list.Groups["Ventas"][0].Columns != 4 {
		t.Errorf("list = %+v", list)
	}

	rec = h.do(http.MethodGet, "/api/tables/orders", nil)
	var cfg core.TableConfig
	decodeJSON(t, rec, &cfg)
	if cfg.Key != "orders" || !cfg.Actions.CanExport || cfg.Actions.CanDelete {
		t.Errorf("config = %+v", cfg)
	}

	rec = h.do(http.MethodGet, "/api/tables/ghost", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown table status = %d, want 404", rec.Code)
	}
	if code := errorCode(t, rec); code != "TBL001" {
		t.Errorf("code = %s, want TBL001", code)
	}
}

func TestRows(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantTotal int
		wantPage  int
		wantIDs   []string
	}{
		{"first page", "", 12, 1, []string{"o01", "o02", "o03", "o04", "o05", "o06", "o07", "o08", "o09", "o10"}},
		{"second page", "?page=2", 12, 2, []string{"o11", "o12"}},
		{"page clamped", "?page=9&pageSize=5", 12, 3, []string{"o11", "o12"}},
		{"search", "?search=PEND&pageSize=3", 7, 1, []string{"o01", "o03", "o04"}},
		{"sorted desc", "?sort=total&dir=desc&pageSize=2", 12, 1, []string{"o12", "o11"}},
		{"no match", "?search=zzz", 0, 1, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			rec := h.do(http.MethodGet, "/api/tables/orders/rows"+tt.query, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
			}
			var view core.TableView
			decodeJSON(t, rec, &view)

			if view.Result.Total != tt.wantTotal {
				t.Errorf("total = %d, want %d", view.Result.Total, tt.wantTotal)
			}
			if view.Result.Page != tt.wantPage {
				t.Errorf("page = %d, want %d", view.Result.Page, tt.wantPage)
			}
			var ids []string
			for _, r := range view.Result.Rows {
				ids = append(ids, r.ID())
			}
			if strings.Join(ids, ",") != strings.Join(tt.wantIDs, ",") {
				t.Errorf("ids = %v, want %v", ids, tt.wantIDs)
			}
		})
	}
}

func TestRows_HiddenColumnNotRendered(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(http.MethodGet, "/api/tables/orders/rows?pageSize=1", nil)

	var view core.TableView
	decodeJSON(t, rec, &view)
	for _, c := range view.Columns {
		if c.Key == "notes" {
			t.Error("hidden column in view")
		}
	}
	if len(view.Cells) != 1 {
		t.Fatalf("cells = %d", len(view.Cells))
	}
	if got := view.Cells[0]["status"]; got.Kind != core.KindBadge {
		t.Errorf("status cell = %+v, want badge", got)
	}
}

func TestRows_BadParams(t *testing.T) {
	h := newHarness(t, nil)
	for _, q := range []string{"?page=0", "?page=abc", "?pageSize=-1"} {
		rec := h.do(http.MethodGet, "/api/tables/orders/rows"+q, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d, want 400", q, rec.Code)
			continue
		}
		if code := errorCode(t, rec); code != "REQ003" {
			t.Errorf("%s code = %s, want REQ003", q, code)
		}
	}
}

func TestRows_FetchFailureBecomesWarning(t *testing.T) {
	h := newHarness(t, nil)
	h.src.listErr = &upstream.StatusError{Method: "GET", Path: "/api/orders", Code: 503}

	rec := h.do(http.MethodGet, "/api/tables/orders/rows", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var view core.TableView
	decodeJSON(t, rec, &view)
	if view.Warning == "" {
		t.Error("expected a warning")
	}
	if view.Result.Total != 0 {
		t.Errorf("total = %d, want 0", view.Result.Total)
	}
}

func TestRefresh(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodPost, "/api/tables/orders/refresh", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"count":12`) {
		t.Errorf("refresh = %d %s", rec.Code, rec.Body.String())
	}

	rec = h.do(http.MethodPost, "/api/tables/orders/refresh?async=1", nil)
	if rec.Code != http.StatusAccepted {
		t.Errorf("async refresh status = %d, want 202", rec.Code)
	}

	rec = h.do(http.MethodPost, "/api/tables/ghost/refresh", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown refresh status = %d, want 404", rec.Code)
	}
}

// ============================================================================
// Column visibility
// ============================================================================

func TestColumns(t *testing.T) {
	h := newHarness(t, nil)

	var state columnsResponse
	decodeJSON(t, h.do(http.MethodGet, "/api/tables/orders/columns", nil), &state)
	if strings.Join(state.Visible, ",") != "orderCode,status,total" {
		t.Errorf("default visible = %v", state.Visible)
	}

	// Toggling only changes the pending map.
	rec := h.do(http.MethodPost, "/api/tables/orders/columns/toggle?key=notes", nil)
	decodeJSON(t, rec, &state)
	if !state.Pending["notes"] || state.Active["notes"] {
		t.Errorf("after toggle active=%v pending=%v", state.Active, state.Pending)
	}

	decodeJSON(t, h.do(http.MethodPost, "/api/tables/orders/columns/save", nil), &state)
	if !state.Active["notes"] {
		t.Error("save did not commit")
	}

	// Rows honour the committed map.
	var view core.TableView
	decodeJSON(t, h.do(http.MethodGet, "/api/tables/orders/rows?pageSize=1", nil), &view)
	if len(view.Columns) != 4 {
		t.Errorf("visible columns = %d, want 4", len(view.Columns))
	}

	decodeJSON(t, h.do(http.MethodPost, "/api/tables/orders/columns/essential", nil), &state)
	decodeJSON(t, h.do(http.MethodPost, "/api/tables/orders/columns/discard", nil), &state)
	if !state.Pending["notes"] {
		t.Error("discard should restore the committed map")
	}
}

func TestColumns_Errors(t *testing.T) {
	h := newHarness(t, nil)

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"unknown action", "/api/tables/orders/columns/explode", http.StatusBadRequest},
		{"unknown key", "/api/tables/orders/columns/toggle?key=ghost", http.StatusBadRequest},
		{"unknown table", "/api/tables/ghost/columns/all", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := h.do(http.MethodPost, tt.target, nil); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestSetColumns(t *testing.T) {
	h := newHarness(t, nil)

	body := strings.NewReader(`{"visible":{"orderCode":true,"status":false,"ghost":true}}`)
	rec := h.do(http.MethodPost, "/api/tables/orders/columns", body, "Content-Type", "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var state columnsResponse
	decodeJSON(t, rec, &state)
	if _, ok := state.Active["ghost"]; ok {
		t.Error("unknown key kept")
	}
	if state.Active["status"] {
		t.Error("status should be hidden")
	}
	if strings.Join(state.Visible, ",") != "orderCode,total" {
		t.Errorf("visible = %v", state.Visible)
	}
}

func TestColumns_PerSession(t *testing.T) {
	h := newHarness(t, nil)
	h.do(http.MethodPost, "/api/tables/orders/columns/all", nil)
	h.do(http.MethodPost, "/api/tables/orders/columns/save", nil)

	other := &harness{t: t, server: h.server}
	var state columnsResponse
	decodeJSON(t, other.do(http.MethodGet, "/api/tables/orders/columns", nil), &state)
	if state.Active["notes"] {
		t.Error("column state leaked across sessions")
	}
}

// ============================================================================
// Export
// ============================================================================

func TestExport(t *testing.T) {
	tests := []struct {
		format      string
		contentType string
		disposition string
		extension   string
	}{
		{"csv", "text/csv; charset=utf-8", "attachment", ".csv"},
		{"excel", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "attachment", ".xlsx"},
		{"pdf", "text/html; charset=utf-8", "inline", ".html"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			h := newHarness(t, nil)
			rec := h.do(http.MethodGet, "/api/export/orders/"+tt.format+"?search=pendiente", nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
			}
			if got := rec.Header().Get("Content-Type"); got != tt.contentType {
				t.Errorf("content type = %q", got)
			}
			cd := rec.Header().Get("Content-Disposition")
			if !strings.HasPrefix(cd, tt.disposition) || !strings.Contains(cd, tt.extension) {
				t.Errorf("disposition = %q", cd)
			}
			if got := rec.Header().Get("X-Export-Rows"); got != "7" {
				t.Errorf("rows = %q, want 7", got)
			}
			if rec.Body.Len() == 0 {
				t.Error("empty body")
			}
		})
	}
}

func TestExport_CSVContent(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(http.MethodGet, "/api/export/orders/csv?search=pendiente&sort=total&dir=desc", nil)

	rows, err := csv.NewReader(rec.Body).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(rows) != 8 {
		t.Fatalf("rows = %d, want header + 7", len(rows))
	}
	if rows[0][0] != "_id" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != "o11" {
		t.Errorf("first row = %v, want o11", rows[1])
	}
}

func TestExport_Errors(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodGet, "/api/export/orders/csv?search=zzz", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("empty export status = %d, want 422", rec.Code)
	}
	if code := errorCode(t, rec); code != "EXP001" {
		t.Errorf("code = %s, want EXP001", code)
	}
	if rec.Header().Get("Content-Disposition") != "" {
		t.Error("empty export should not send a file")
	}

	if rec := h.do(http.MethodGet, "/api/export/orders/docx", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad format status = %d, want 400", rec.Code)
	}
	if rec := h.do(http.MethodGet, "/api/export/ghost/csv", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown table status = %d, want 404", rec.Code)
	}
}

func TestExport_Audited(t *testing.T) {
	h := newHarness(t, nil)
	h.do(http.MethodGet, "/api/export/orders/csv", nil, "User-Agent", "test-agent")

	rec := h.do(http.MethodGet, "/api/audit?action=export&table=orders", nil)
	var resp struct {
		Entries []core.AuditEntry `json:"entries"`
		Count   int               `json:"count"`
	}
	decodeJSON(t, rec, &resp)
	if resp.Count != 1 {
		t.Fatalf("entries = %d, want 1", resp.Count)
	}
	e := resp.Entries[0]
	if e.Format != "csv" || e.RowsAffected != 12 || e.UserAgent != "test-agent" {
		t.Errorf("entry = %+v", e)
	}

	if rec := h.do(http.MethodGet, "/api/audit?since=yesterday", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("bad since status = %d, want 400", rec.Code)
	}
}

// ============================================================================
// Records
// ============================================================================

func TestCreateRecord_JSON(t *testing.T) {
	h := newHarness(t, nil)

	body := strings.NewReader(`{"orderCode":"ORD-99","status":"pendiente","items":[1,2]}`)
	rec := h.do(http.MethodPost, "/api/records/orders", body, "Content-Type", "application/json")
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var created core.Record
	decodeJSON(t, rec, &created)
	if created.ID() != "new-1" {
		t.Errorf("created = %v", created)
	}

	// The cache was refetched after the mutation.
	var view core.TableView
	decodeJSON(t, h.do(http.MethodGet, "/api/tables/orders/rows", nil), &view)
	if view.Result.Total != 13 {
		t.Errorf("total after create = %d, want 13", view.Result.Total)
	}
}

func TestCreateRecord_Multipart(t *testing.T) {
	h := newHarness(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("orderCode", "ORD-50")
	_ = mw.WriteField("tags", `["oro","plata"]`)
	fw, _ := mw.CreateFormFile("image", "anillo.png")
	_, _ = fw.Write([]byte("png-bytes"))
	_ = mw.Close()

	rec := h.do(http.MethodPost, "/api/records/orders", &buf, "Content-Type", mw.FormDataContentType())
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	h.src.mu.Lock()
	defer h.src.mu.Unlock()
	got := h.src.created[0]
	if got["orderCode"] != "ORD-50" {
		t.Errorf("orderCode = %v", got["orderCode"])
	}
	if tags, ok := got["tags"].([]any); !ok || len(tags) != 2 {
		t.Errorf("tags = %#v", got["tags"])
	}
	if len(h.src.files) != 1 || h.src.files[0].Filename != "anillo.png" || string(h.src.files[0].Data) != "png-bytes" {
		t.Errorf("files = %+v", h.src.files)
	}
}

func TestRecordErrors(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		target   string
		body     string
		setup    func(*fakeSource)
		want     int
		wantCode string
	}{
		{"delete not allowed", http.MethodDelete, "/api/records/orders/o01", "", nil, http.StatusForbidden, ""},
		{"bad body", http.MethodPost, "/api/records/orders", "[1,2]", nil, http.StatusBadRequest, "REQ003"},
		{"unknown table", http.MethodPost, "/api/records/ghost", "{}", nil, http.StatusNotFound, "TBL001"},
		{"record not found", http.MethodGet, "/api/records/orders/nope", "", nil, http.StatusNotFound, ""},
		{
			"session expired upstream", http.MethodPost, "/api/records/orders", `{"a":1}`,
			func(f *fakeSource) { f.createErr = &upstream.StatusError{Method: "POST", Path: "/api/orders", Code: 401} },
			http.StatusUnauthorized, "API001",
		},
		{
			"validation upstream", http.MethodPost, "/api/records/orders", `{"a":1}`,
			func(f *fakeSource) {
				f.createErr = &upstream.StatusError{Method: "POST", Path: "/api/orders", Code: 422, Message: "orderCode required"}
			},
			http.StatusUnprocessableEntity, "API004",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, nil)
			if tt.setup != nil {
				tt.setup(h.src)
			}
			rec := h.do(tt.method, tt.target, strings.NewReader(tt.body), "Content-Type", "application/json")
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
			if tt.wantCode != "" {
				if code := errorCode(t, rec); code != tt.wantCode {
					t.Errorf("code = %s, want %s", code, tt.wantCode)
				}
			}
		})
	}
}

func TestGetAndUpdateRecord(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodGet, "/api/records/orders/o03", nil)
	var got core.Record
	decodeJSON(t, rec, &got)
	if got["orderCode"] != "ORD-03" {
		t.Errorf("record = %v", got)
	}

	rec = h.do(http.MethodPut, "/api/records/orders/o03", strings.NewReader(`{"status":"entregado"}`),
		"Content-Type", "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d: %s", rec.Code, rec.Body.String())
	}
	decodeJSON(t, rec, &got)
	if got.ID() != "o03" || got["status"] != "entregado" {
		t.Errorf("updated = %v", got)
	}
}

func TestSubmitInProgress(t *testing.T) {
	h := newHarness(t, nil)
	h.do(http.MethodGet, "/api/tables/orders/rows", nil) // establish the session cookie

	h.src.entered = make(chan struct{})
	h.src.release = make(chan struct{})

	first := make(chan int, 1)
	go func() {
		req := strings.NewReader(`{"orderCode":"A"}`)
		first <- h.do(http.MethodPost, "/api/records/orders", req, "Content-Type", "application/json").Code
	}()

	select {
	case <-h.src.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first submit never reached the source")
	}

	rec := h.do(http.MethodPost, "/api/records/orders", strings.NewReader(`{"orderCode":"B"}`),
		"Content-Type", "application/json")
	if rec.Code != http.StatusConflict {
		t.Errorf("second submit status = %d, want 409", rec.Code)
	}

	close(h.src.release)
	if code := <-first; code != http.StatusCreated {
		t.Errorf("first submit status = %d, want 201", code)
	}

	h.src.entered = nil
	rec = h.do(http.MethodPost, "/api/records/orders", strings.NewReader(`{"orderCode":"C"}`),
		"Content-Type", "application/json")
	if rec.Code != http.StatusCreated {
		t.Errorf("submit after release status = %d, want 201", rec.Code)
	}
}

// ============================================================================
// Pages
// ============================================================================

func TestTablePage(t *testing.T) {
	h := newHarness(t, nil)

	rec := h.do(http.MethodGet, "/table/orders", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"<html", "Pedidos", "ORD-01", "Página 1 de 2", "/api/export/orders/csv"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}

	// Header clicks toggle through the session's shell.
	rec = h.do(http.MethodGet, "/table/orders?sort=orderCode", nil, "HX-Request", "true")
	if strings.Contains(rec.Body.String(), "<html") {
		t.Error("htmx request got the full page")
	}
	if !strings.Contains(rec.Body.String(), "▲") {
		t.Error("first click should sort ascending")
	}
	rec = h.do(http.MethodGet, "/table/orders?sort=orderCode", nil, "HX-Request", "true")
	body = rec.Body.String()
	if !strings.Contains(body, "▼") {
		t.Error("second click should sort descending")
	}
	if strings.Index(body, "ORD-12") > strings.Index(body, "ORD-03") {
		t.Error("descending order not applied")
	}

	// Searching returns to the first page and refresh clears the state.
	h.do(http.MethodGet, "/table/orders?page=2", nil, "HX-Request", "true")
	rec = h.do(http.MethodGet, "/table/orders?search=pendiente", nil, "HX-Request", "true")
	if !strings.Contains(rec.Body.String(), "Página 1 de 1") {
		t.Error("search should reset to page 1")
	}
	rec = h.do(http.MethodGet, "/table/orders?refresh=1", nil, "HX-Request", "true")
	if !strings.Contains(rec.Body.String(), "12 registros") {
		t.Error("refresh should clear the search")
	}
}

func TestDashboard(t *testing.T) {
	h := newHarness(t, nil)
	rec := h.do(http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `href="/table/orders"`) {
		t.Error("dashboard missing table link")
	}
}

func TestStatus(t *testing.T) {
	h := newHarness(t, nil)
	h.do(http.MethodGet, "/api/tables/orders/rows", nil)

	rec := h.do(http.MethodGet, "/api/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{`"tables":1`, `"sessions":1`, `"orders"`} {
		if !strings.Contains(body, want) {
			t.Errorf("status missing %s: %s", want, body)
		}
	}
}

func TestSourceErrorIsNotAStatusError(t *testing.T) {
	// A plain transport failure on create surfaces as a 500.
	h := newHarness(t, nil)
	h.src.createErr = errors.New("connection reset")
	rec := h.do(http.MethodPost, "/api/records/orders", strings.NewReader(`{"a":1}`), "Content-Type", "application/json")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
