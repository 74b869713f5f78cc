package web

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/joyeria/internal/core"
)

// MaxUploadSize caps record bodies, attachments included (32MB).
const MaxUploadSize = 32 << 20

// parseIntParam parses a positive integer query parameter. Empty yields
// def; anything else that is not a positive integer is a bad request.
func parseIntParam(q url.Values, name string, def int) (int, error) {
	val := strings.TrimSpace(q.Get(name))
	if val == "" {
		return def, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", errBadRequest, name)
	}
	return i, nil
}

// parseSort reads ?sort=key&dir=asc|desc.
func parseSort(q url.Values) core.SortState {
	key := strings.TrimSpace(q.Get("sort"))
	if key == "" {
		return core.SortState{Direction: core.Asc}
	}
	return core.SortState{Key: key, Direction: core.ParseDirection(q.Get("dir"))}
}

// parseViewRequest reads search, sort, page and pageSize. pageSize is
// capped at maxPageSize.
func parseViewRequest(q url.Values, defaultSize, maxPageSize int) (core.ViewRequest, error) {
	page, err := parseIntParam(q, "page", 1)
	if err != nil {
		return core.ViewRequest{}, err
	}
	size, err := parseIntParam(q, "pageSize", defaultSize)
	if err != nil {
		return core.ViewRequest{}, err
	}
	if maxPageSize > 0 && size > maxPageSize {
		size = maxPageSize
	}
	return core.ViewRequest{
		Search:   strings.TrimSpace(q.Get("search")),
		Sort:     parseSort(q),
		Page:     page,
		PageSize: size,
	}, nil
}

// parseSince accepts RFC 3339 timestamps or YYYY-MM-DD dates.
func parseSince(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: since must be a date", errBadRequest)
}

// decodeRecord reads a record from a JSON body or a multipart form.
// Multipart fields holding JSON arrays or objects are decoded; files
// become attachments.
func decodeRecord(w http.ResponseWriter, r *http.Request) (core.Record, []core.Attachment, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var rec core.Record
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			return nil, nil, fmt.Errorf("%w: body must be a JSON object: %v", errBadRequest, err)
		}
		if rec == nil {
			return nil, nil, fmt.Errorf("%w: empty record", errBadRequest)
		}
		return rec, nil, nil
	}

	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}

	rec := make(core.Record, len(r.MultipartForm.Value))
	for key, vals := range r.MultipartForm.Value {
		if len(vals) == 0 {
			continue
		}
		rec[key] = formValue(vals[0])
	}

	var files []core.Attachment
	for field, headers := range r.MultipartForm.File {
		for _, fh := range headers {
			f, err := fh.Open()
			if err != nil {
				return nil, nil, fmt.Errorf("open %s: %w", fh.Filename, err)
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return nil, nil, fmt.Errorf("read %s: %w", fh.Filename, err)
			}
			files = append(files, core.Attachment{
				Field:       field,
				Filename:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Data:        data,
			})
		}
	}
	return rec, files, nil
}

// formValue decodes JSON arrays and objects; other values stay strings.
func formValue(s string) any {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		var v any
		if json.Unmarshal([]byte(trimmed), &v) == nil {
			return v
		}
	}
	return s
}
