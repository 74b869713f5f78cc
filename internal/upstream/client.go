// Package upstream is the REST client for the remote API that owns the
// admin records. It implements core.Source.
//
// Every entity lives under /api/{entity}: GET lists, POST creates, and
// PUT/DELETE on /api/{entity}/{id} update and delete. Requests carry the
// session cookie, are rate limited client-side, and fail with a
// *StatusError on any non-2xx answer.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JonMunkholm/joyeria/internal/core"
	"github.com/JonMunkholm/joyeria/internal/logging"
)

// ErrStatus is wrapped by every StatusError.
var ErrStatus = errors.New("upstream status")

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 4 << 10

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	Method  string
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("upstream %s: %s %s returned %d", statusCategory(e.Code), e.Method, e.Path, e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *StatusError) Unwrap() error { return ErrStatus }

// statusCategory names a status code with the words core.MapError matches.
func statusCategory(code int) string {
	switch {
	case code == http.StatusUnauthorized:
		return "unauthorized"
	case code == http.StatusForbidden:
		return "forbidden"
	case code == http.StatusNotFound:
		return "not found"
	case code == http.StatusTooManyRequests:
		return "rate limit"
	case code >= 500:
		return "unavailable"
	case code >= 400:
		return "rejected"
	default:
		return "error"
	}
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// Options configures a Client.
type Options struct {
	BaseURL      string
	CookieName   string
	SessionToken string
	Timeout      time.Duration

	// RequestsPerSecond <= 0 disables client-side rate limiting.
	RequestsPerSecond float64
	Burst             int

	// HTTPClient overrides the default transport, mainly for tests.
	HTTPClient *http.Client
}

// Client talks to the records API.
type Client struct {
	base       *url.URL
	cookieName string
	http       *http.Client
	limiter    *rate.Limiter

	mu    sync.RWMutex
	token string
}

// New validates opts and returns a client.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", opts.BaseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		hc = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:    20,
				MaxConnsPerHost: 10,
				IdleConnTimeout: 30 * time.Second,
			},
		}
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	cookie := opts.CookieName
	if cookie == "" {
		cookie = "connect.sid"
	}

	return &Client{
		base:       base,
		cookieName: cookie,
		http:       hc,
		limiter:    rate.NewLimiter(limit, burst),
		token:      opts.SessionToken,
	}, nil
}

// SetSessionToken replaces the session cookie value.
func (c *Client) SetSessionToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) sessionToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// List fetches every record of entity.
func (c *Client) List(ctx context.Context, entity string) ([]core.Record, error) {
	var recs []core.Record
	if err := c.do(ctx, http.MethodGet, c.path(entity, ""), nil, "", &recs); err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []core.Record{}
	}
	return recs, nil
}

// Get fetches one record.
func (c *Client) Get(ctx context.Context, entity, id string) (core.Record, error) {
	var rec core.Record
	if err := c.do(ctx, http.MethodGet, c.path(entity, id), nil, "", &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Create posts a new record. Files switch the body to multipart.
func (c *Client) Create(ctx context.Context, entity string, rec core.Record, files []core.Attachment) (core.Record, error) {
	body, contentType, err := encodeBody(rec, files)
	if err != nil {
		return nil, err
	}
	var out core.Record
	if err := c.do(ctx, http.MethodPost, c.path(entity, ""), body, contentType, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update replaces a record. Files switch the body to multipart.
func (c *Client) Update(ctx context.Context, entity, id string, rec core.Record, files []core.Attachment) (core.Record, error) {
	body, contentType, err := encodeBody(rec, files)
	if err != nil {
		return nil, err
	}
	var out core.Record
	if err := c.do(ctx, http.MethodPut, c.path(entity, id), body, contentType, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a record.
func (c *Client) Delete(ctx context.Context, entity, id string) error {
	return c.do(ctx, http.MethodDelete, c.path(entity, id), nil, "", nil)
}

func (c *Client) path(entity, id string) string {
	elems := []string{"api", entity}
	if id != "" {
		elems = append(elems, id)
	}
	return c.base.JoinPath(elems...).String()
}

func (c *Client) do(ctx context.Context, method, target string, body []byte, contentType string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := c.sessionToken(); token != "" {
		req.AddCookie(&http.Cookie{Name: c.cookieName, Value: token})
	}

	path := req.URL.Path
	log := logging.FromContext(ctx)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn("upstream request failed", "method", method, "path", path, "error", err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	log.Debug("upstream request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{
			Method:  method,
			Path:    path,
			Code:    resp.StatusCode,
			Message: errorMessage(resp.Body),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read upstream response: %w", err)
	}
	if err := decodeEnvelope(data, out); err != nil {
		return fmt.Errorf("decode upstream response: %w", err)
	}
	return nil
}

// decodeEnvelope accepts a bare payload or one wrapped in {"data": ...}.
func decodeEnvelope(data []byte, out any) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	if data[0] == '{' {
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(data, &env); err == nil && len(env.Data) > 0 && string(env.Data) != "null" {
			return json.Unmarshal(env.Data, out)
		}
	}
	return json.Unmarshal(data, out)
}

// errorMessage extracts {"message": ...} or {"error": ...} from an error body.
func errorMessage(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		return body.Error
	}
	return strings.TrimSpace(string(data))
}

// encodeBody returns a JSON body, or a multipart form when files are attached.
func encodeBody(rec core.Record, files []core.Attachment) ([]byte, string, error) {
	if len(files) == 0 {
		data, err := json.Marshal(rec)
		if err != nil {
			return nil, "", fmt.Errorf("encode record: %w", err)
		}
		return data, "application/json", nil
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(rec))
	for k := range rec {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		val, err := formValue(rec[k])
		if err != nil {
			return nil, "", fmt.Errorf("encode field %s: %w", k, err)
		}
		if err := mw.WriteField(k, val); err != nil {
			return nil, "", err
		}
	}

	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, f.Filename))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", err
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

// formValue writes strings as-is and everything else as JSON.
func formValue(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
