package web

import (
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/joyeria/internal/core"
	"github.com/JonMunkholm/joyeria/internal/logging"
	"github.com/JonMunkholm/joyeria/internal/web/templates"
)

// handleDashboard renders the list of tables by group.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	var groups []templates.TableGroup
	for _, name := range core.Groups() {
		groups = append(groups, templates.TableGroup{Name: name, Tables: core.ByGroup(name)})
	}
	render(w, r, http.StatusOK, templates.Dashboard(groups))
}

// handleTablePage renders a table. Query parameters drive the session's
// shell: search replaces the query, sort toggles a column, page and
// pageSize move the window and refresh resets the view. htmx requests get
// the fragment only.
func (s *Server) handleTablePage(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	cfg, err := s.service.Config(entity)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	q := r.URL.Query()
	page, err := parseIntParam(q, "page", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	size, err := parseIntParam(q, "pageSize", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var req core.ViewRequest
	s.sessions.WithShell(r, entity, func(sh *core.Shell) {
		if q.Has("refresh") {
			sh.Refresh()
		}
		if q.Has("search") {
			sh.SetSearch(strings.TrimSpace(q.Get("search")))
		}
		if key := q.Get("sort"); key != "" {
			sh.ToggleSort(key)
		}
		if size > 0 {
			sh.SetPageSize(min(size, s.maxPageSize()))
		}
		if page > 0 {
			sh.Page = page
		}
		req = sh.Request()
	})

	columns := s.sessions.Columns(r, cfg)
	view, err := s.service.View(r.Context(), entity, req, columns.Active())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	s.sessions.WithShell(r, entity, func(sh *core.Shell) {
		sh.Sync(view.Result)
		sh.Sort = view.Sort
	})

	params := templates.TableParams{
		View:       view,
		AllColumns: cfg.Columns,
		Pending:    columns.Pending(),
	}
	if isHTMX(r) {
		render(w, r, http.StatusOK, templates.TablePartial(params))
		return
	}
	render(w, r, http.StatusOK, templates.TablePage(params))
}

// tableSummary is one entry of the table listing.
type tableSummary struct {
	Key     string       `json:"key"`
	Title   string       `json:"title"`
	Group   string       `json:"group"`
	Columns int          `json:"columns"`
	Actions core.Actions `json:"actions"`
}

// handleListTables returns the registered tables keyed by group.
func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	groups := make(map[string][]tableSummary)
	for group, tables := range s.service.TablesByGroup() {
		for _, t := range tables {
			groups[group] = append(groups[group], tableSummary{
				Key:     t.Key,
				Title:   t.Title,
				Group:   t.Group,
				Columns: len(t.Columns),
				Actions: t.Actions,
			})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"groups": groups,
		"count":  core.TableCount(),
	})
}

// handleGetTable returns one table config.
func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.service.Config(chi.URLParam(r, "entity"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// handleRows returns one rendered page restricted to the session's
// visible columns.
func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	cfg, err := s.service.Config(entity)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	req, err := parseViewRequest(r.URL.Query(), s.cfg.Table.DefaultPageSize, s.maxPageSize())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	visible := s.sessions.Columns(r, cfg).Active()
	view, err := s.service.View(r.Context(), entity, req, visible)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if view.Warning != "" {
		logging.ForEntity(r.Context(), entity).Warn("serving rows with fetch warning", "warning", view.Warning)
	}
	writeJSON(w, http.StatusOK, view)
}

// handleRefresh invalidates and refetches a table. With ?async=1 the
// refetch is debounced in the background and the call returns 202.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	if _, err := s.service.Config(entity); err != nil {
		s.fail(w, r, err)
		return
	}

	s.sessions.WithShell(r, entity, func(sh *core.Shell) { sh.Refresh() })

	if r.URL.Query().Get("async") != "" {
		if err := s.service.RequestRefresh(entity); err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
		return
	}

	records, err := s.service.Refresh(r.Context(), entity)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "refreshed", "count": len(records)})
}

// handleStatus reports cache, export and session state.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	cache := s.service.CacheStatus()
	sort.Slice(cache, func(i, j int) bool { return cache[i].Entity < cache[j].Entity })
	writeJSON(w, http.StatusOK, map[string]any{
		"tables":   core.TableCount(),
		"cache":    cache,
		"exports":  s.service.ExportStatus(),
		"sessions": s.sessions.Len(),
	})
}

// handleAudit lists recent audit entries.
func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := parseIntParam(q, "limit", core.DefaultAuditLimit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	since, err := parseSince(q.Get("since"))
	if err != nil {
		s.fail(w, r, err)
		return
	}

	entries, err := s.service.RecentAudit(r.Context(), core.AuditQuery{
		TableKey: q.Get("table"),
		Action:   core.AuditAction(q.Get("action")),
		Since:    since,
		Limit:    min(limit, 1000),
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []core.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "count": len(entries)})
}

func (s *Server) maxPageSize() int {
	if s.cfg.Table.MaxPageSize > 0 {
		return s.cfg.Table.MaxPageSize
	}
	return 100
}
