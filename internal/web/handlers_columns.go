package web

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/joyeria/internal/core"
)

// columnsResponse is the session's visibility state for one table.
type columnsResponse struct {
	Columns []core.ColumnDescriptor `json:"columns"`
	Active  core.VisibleColumns     `json:"active"`
	Pending core.VisibleColumns     `json:"pending"`
	Visible []string                `json:"visible"`
}

func newColumnsResponse(cfg core.TableConfig, cs *core.ColumnState) columnsResponse {
	visible := cs.Visible()
	keys := make([]string, len(visible))
	for i, c := range visible {
		keys[i] = c.Key
	}
	return columnsResponse{
		Columns: cfg.Columns,
		Active:  cs.Active(),
		Pending: cs.Pending(),
		Visible: keys,
	}
}

// handleGetColumns returns the committed and pending visibility maps.
func (s *Server) handleGetColumns(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.service.Config(chi.URLParam(r, "entity"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newColumnsResponse(cfg, s.sessions.Columns(r, cfg)))
}

// handleSetColumns replaces and commits the visibility map from a JSON
// body of the form {"visible": {"key": true}}.
func (s *Server) handleSetColumns(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.service.Config(chi.URLParam(r, "entity"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var body struct {
		Visible core.VisibleColumns `json:"visible"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.fail(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	cs := s.sessions.Columns(r, cfg)
	cs.Set(body.Visible)
	cs.Save()
	writeJSON(w, http.StatusOK, newColumnsResponse(cfg, cs))
}

// handleColumnAction applies toggle, all, essential, reset, save or
// discard to the pending map. Saving from htmx reloads the page.
func (s *Server) handleColumnAction(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.service.Config(chi.URLParam(r, "entity"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	action := core.ColumnAction(chi.URLParam(r, "action"))
	key := r.URL.Query().Get("key")
	if action == core.ColumnsToggle {
		if _, ok := cfg.Column(key); !ok {
			s.fail(w, r, fmt.Errorf("%w: unknown column %q", errBadRequest, key))
			return
		}
	}

	cs := s.sessions.Columns(r, cfg)
	if !cs.Apply(action, key) {
		s.fail(w, r, fmt.Errorf("%w: unknown column action %q", errBadRequest, action))
		return
	}

	if action == core.ColumnsSave && isHTMX(r) {
		w.Header().Set("HX-Refresh", "true")
	}
	writeJSON(w, http.StatusOK, newColumnsResponse(cfg, cs))
}
