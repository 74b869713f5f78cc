package web

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/joyeria/internal/core"
)

// submit runs do as the session's in-flight submit for entity. open sets
// the dialog the submit belongs to. A second submit while one is running
// fails with core.ErrSubmitInProgress. The dialog closes only on success.
func (s *Server) submit(r *http.Request, entity string, open func(*core.Shell), do func(ctx context.Context) error) error {
	var begin error
	s.sessions.WithShell(r, entity, func(sh *core.Shell) {
		if sh.Submitting() {
			begin = core.ErrSubmitInProgress
			return
		}
		open(sh)
		begin = sh.BeginSubmit()
	})
	if begin != nil {
		return begin
	}

	err := do(WithRequestMetadata(r.Context(), r))
	s.sessions.WithShell(r, entity, func(sh *core.Shell) { sh.EndSubmit(err == nil) })
	return err
}

// selection returns the cached record a dialog targets, or a stub with
// only the id when the cache does not hold it.
func (s *Server) selection(ctx context.Context, entity, id string) core.Record {
	if rec, err := s.service.Get(ctx, entity, id); err == nil {
		return rec
	}
	return core.Record{"_id": id}
}

// handleGetRecord returns one cached record.
func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	entity, id := chi.URLParam(r, "entity"), chi.URLParam(r, "id")
	rec, err := s.service.Get(r.Context(), entity, id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.sessions.WithShell(r, entity, func(sh *core.Shell) { sh.OpenView(rec) })
	writeJSON(w, http.StatusOK, rec)
}

// handleCreateRecord proxies a new record to the API.
func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	if _, err := s.service.Config(entity); err != nil {
		s.fail(w, r, err)
		return
	}
	rec, files, err := decodeRecord(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	var created core.Record
	err = s.submit(r, entity,
		func(sh *core.Shell) { sh.OpenAdd() },
		func(ctx context.Context) error {
			var err error
			created, err = s.service.Create(ctx, entity, rec, files)
			return err
		})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleUpdateRecord proxies a record update to the API.
func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	entity, id := chi.URLParam(r, "entity"), chi.URLParam(r, "id")
	if _, err := s.service.Config(entity); err != nil {
		s.fail(w, r, err)
		return
	}
	rec, files, err := decodeRecord(w, r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	selected := s.selection(r.Context(), entity, id)
	var updated core.Record
	err = s.submit(r, entity,
		func(sh *core.Shell) { sh.OpenEdit(selected) },
		func(ctx context.Context) error {
			var err error
			updated, err = s.service.Update(ctx, entity, id, rec, files)
			return err
		})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteRecord proxies a delete to the API.
func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	entity, id := chi.URLParam(r, "entity"), chi.URLParam(r, "id")
	if _, err := s.service.Config(entity); err != nil {
		s.fail(w, r, err)
		return
	}

	selected := s.selection(r.Context(), entity, id)
	err := s.submit(r, entity,
		func(sh *core.Shell) { sh.OpenDelete(selected) },
		func(ctx context.Context) error {
			return s.service.Delete(ctx, entity, id)
		})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
