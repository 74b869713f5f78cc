package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/joyeria/internal/core"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Options{
		BaseURL:      srv.URL + "/",
		SessionToken: "s3cret",
		Timeout:      time.Second,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}

// ============================================================================
// Construction
// ============================================================================

func TestNew_RejectsBadBaseURL(t *testing.T) {
	for _, raw := range []string{"", "ftp://example.com", "::bad"} {
		t.Run(raw, func(t *testing.T) {
			if _, err := New(Options{BaseURL: raw}); err == nil {
				t.Errorf("New(%q) should fail", raw)
			}
		})
	}
}

// ============================================================================
// List / Get
// ============================================================================

func TestList_BareAndWrapped(t *testing.T) {
	tests := map[string]string{
		"bare":    `[{"_id":"1","name":"Anillo"},{"_id":"2","name":"Collar"}]`,
		"wrapped": `{"data":[{"_id":"1","name":"Anillo"},{"_id":"2","name":"Collar"}]}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet || r.URL.Path != "/api/products" {
					t.Errorf("request = %s %s", r.Method, r.URL.Path)
				}
				cookie, err := r.Cookie("connect.sid")
				if err != nil || cookie.Value != "s3cret" {
					t.Errorf("session cookie = %v, %v", cookie, err)
				}
				_, _ = io.WriteString(w, body)
			})

			recs, err := c.List(context.Background(), "products")
			if err != nil {
				t.Fatalf("List() error: %v", err)
			}
			if len(recs) != 2 || recs[1].ID() != "2" || recs[0]["name"] != "Anillo" {
				t.Errorf("records = %v", recs)
			}
		})
	}
}

func TestList_EmptyBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	})
	recs, err := c.List(context.Background(), "orders")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if recs == nil || len(recs) != 0 {
		t.Errorf("records = %#v, want empty non-nil", recs)
	}
}

func TestGet(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/orders/abc" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"data":{"_id":"abc","orderCode":"ORD-1"}}`)
	})
	rec, err := c.Get(context.Background(), "orders", "abc")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if rec["orderCode"] != "ORD-1" {
		t.Errorf("record = %v", rec)
	}
}

func TestList_DecodeError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html>login</html>`)
	})
	_, err := c.List(context.Background(), "orders")
	if err == nil || !strings.Contains(err.Error(), "decode upstream response") {
		t.Fatalf("error = %v", err)
	}
	if got := core.MapError(err).Code; got != "API007" {
		t.Errorf("code = %s, want API007", got)
	}
}

// ============================================================================
// Status errors
// ============================================================================

func TestStatusErrors(t *testing.T) {
	tests := []struct {
		status int
		body   string
		code   string
	}{
		{http.StatusUnauthorized, `{"message":"session expired"}`, "API001"},
		{http.StatusForbidden, ``, "API002"},
		{http.StatusNotFound, ``, "API003"},
		{http.StatusUnprocessableEntity, `{"error":"price required"}`, "API004"},
		{http.StatusBadRequest, `bad`, "API004"},
		{http.StatusBadGateway, ``, "API005"},
		{http.StatusTooManyRequests, ``, "RATE001"},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			err := c.Delete(context.Background(), "products", "p1")
			if !errors.Is(err, ErrStatus) {
				t.Fatalf("error = %v, want ErrStatus", err)
			}
			if !IsStatus(err, tt.status) {
				t.Errorf("IsStatus(%d) = false for %v", tt.status, err)
			}
			if got := core.MapError(err).Code; got != tt.code {
				t.Errorf("code = %s, want %s (error %q)", got, tt.code, err)
			}
		})
	}
}

func TestStatusError_Message(t *testing.T) {
	err := &StatusError{Method: "GET", Path: "/api/orders", Code: 401, Message: "session expired"}
	want := "upstream unauthorized: GET /api/orders returned 401: session expired"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(Options{BaseURL: url, Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.List(context.Background(), "orders")
	if err == nil {
		t.Fatal("List() against a closed server should fail")
	}
	if got := core.MapError(err).Code; got != "API006" {
		t.Errorf("code = %s, want API006 (error %q)", got, err)
	}
}

// ============================================================================
// Mutations
// ============================================================================

func TestCreate_JSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/customers" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		var in map[string]any
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		in["_id"] = "new"
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(in)
	})

	out, err := c.Create(context.Background(), "customers", core.Record{"name": "Ana"}, nil)
	if err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	if out.ID() != "new" || out["name"] != "Ana" {
		t.Errorf("created = %v", out)
	}
}

func TestUpdate_Multipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/api/products/p1" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		if got := r.FormValue("name"); got != "Anillo" {
			t.Errorf("name = %q", got)
		}
		if got := r.FormValue("price"); got != "120.5" {
			t.Errorf("price = %q", got)
		}
		if got := r.FormValue("tags"); got != `["oro","plata"]` {
			t.Errorf("tags = %q", got)
		}
		f, hdr, err := r.FormFile("images")
		if err != nil {
			t.Fatalf("FormFile: %v", err)
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if hdr.Filename != "ring.png" || string(data) != "PNG" {
			t.Errorf("file = %s %q", hdr.Filename, data)
		}
		if ct := hdr.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("file content type = %q", ct)
		}
		_, _ = io.WriteString(w, `{"_id":"p1"}`)
	})

	rec := core.Record{"name": "Anillo", "price": 120.5, "tags": []any{"oro", "plata"}}
	files := []core.Attachment{{Field: "images", Filename: "ring.png", ContentType: "image/png", Data: []byte("PNG")}}
	if _, err := c.Update(context.Background(), "products", "p1", rec, files); err != nil {
		t.Fatalf("Update() error: %v", err)
	}
}

func TestDelete_NoContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/api/reviews/r9" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	})
	if err := c.Delete(context.Background(), "reviews", "r9"); err != nil {
		t.Errorf("Delete() error: %v", err)
	}
}

// ============================================================================
// Session and rate limiting
// ============================================================================

func TestSetSessionToken(t *testing.T) {
	var got string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("connect.sid"); err == nil {
			got = ck.Value
		}
		_, _ = io.WriteString(w, `[]`)
	})

	c.SetSessionToken("rotated")
	if _, err := c.List(context.Background(), "orders"); err != nil {
		t.Fatal(err)
	}
	if got != "rotated" {
		t.Errorf("cookie = %q, want rotated", got)
	}
}

func TestRateLimit_RespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	c, err := New(Options{BaseURL: srv.URL, RequestsPerSecond: 0.01, Burst: 1})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.List(context.Background(), "orders"); err != nil {
		t.Fatalf("first request error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.List(ctx, "orders")
	if err == nil || !strings.Contains(err.Error(), "rate limit") {
		t.Errorf("error = %v, want rate limit wait failure", err)
	}
}

// Compile-time check.
var _ core.Source = (*Client)(nil)
