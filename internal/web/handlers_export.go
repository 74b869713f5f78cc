package web

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/joyeria/internal/core"
)

// handleExport streams the filtered and sorted records of a table as CSV,
// Excel or a printable report. An empty result is a 422 with EXP001 and
// no file.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	format, err := core.ParseExportFormat(chi.URLParam(r, "format"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	q := r.URL.Query()
	ctx := WithRequestMetadata(r.Context(), r)
	res, err := s.service.Export(ctx, entity, core.ExportRequest{
		Format: format,
		Search: strings.TrimSpace(q.Get("search")),
		Sort:   parseSort(q),
		Now:    time.Now(),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	disposition := "attachment"
	if res.Inline {
		disposition = "inline"
	}
	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, res.Filename))
	w.Header().Set("X-Export-Rows", strconv.Itoa(res.Rows))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Body)
}
