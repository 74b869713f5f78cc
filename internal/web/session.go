package web

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/joyeria/internal/core"
	"github.com/JonMunkholm/joyeria/internal/logging"
)

// SessionCookie names the cookie that keys per-browser table state.
const SessionCookie = "joyeria_session"

// session is the table state of one browser: committed and pending column
// visibility plus the interactive shell, both per entity.
type session struct {
	mu       sync.Mutex
	columns  map[string]*core.ColumnState
	shells   map[string]*core.Shell
	lastSeen time.Time
}

// DefaultMaxSessions caps the store. Past it the least recently seen
// session is evicted.
const DefaultMaxSessions = 10000

// SessionStore keeps sessions in memory. Nothing is persisted.
type SessionStore struct {
	mu          sync.Mutex
	sessions    map[string]*session
	pageSize    int
	maxSessions int
	now         func() time.Time
}

// NewSessionStore creates an empty store. pageSize seeds new shells.
func NewSessionStore(pageSize int) *SessionStore {
	return &SessionStore{
		sessions:    make(map[string]*session),
		pageSize:    pageSize,
		maxSessions: DefaultMaxSessions,
		now:         time.Now,
	}
}

func newSession(now time.Time) *session {
	return &session{
		columns:  make(map[string]*core.ColumnState),
		shells:   make(map[string]*core.Shell),
		lastSeen: now,
	}
}

type sessionKey struct{}

// sessionHandle is the request's view of its session. A fresh session is
// stored, and its cookie issued, only when a handler first touches it.
type sessionHandle struct {
	store *SessionStore
	w     http.ResponseWriter
	id    string
	sess  *session
	fresh bool
	once  sync.Once
}

func (h *sessionHandle) get() *session {
	if h.fresh {
		h.once.Do(h.attach)
	}
	return h.sess
}

func (h *sessionHandle) attach() {
	st := h.store
	st.mu.Lock()
	if st.maxSessions > 0 && len(st.sessions) >= st.maxSessions {
		st.evictOldestLocked()
	}
	st.sessions[h.id] = h.sess
	st.mu.Unlock()

	http.SetCookie(h.w, &http.Cookie{
		Name:     SessionCookie,
		Value:    h.id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Middleware resolves the session of every request once. Requests with no
// known cookie get a pending session that costs nothing until used.
func (st *SessionStore) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := st.resolve(w, r)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, h)))
	})
}

// resolve returns a handle on the session named by the request cookie, or
// on a new pending one.
func (st *SessionStore) resolve(w http.ResponseWriter, r *http.Request) *sessionHandle {
	if c, err := r.Cookie(SessionCookie); err == nil {
		if _, perr := uuid.Parse(c.Value); perr == nil {
			st.mu.Lock()
			s, ok := st.sessions[c.Value]
			if ok {
				s.lastSeen = st.now()
			}
			st.mu.Unlock()
			if ok {
				return &sessionHandle{store: st, w: w, id: c.Value, sess: s}
			}
		}
	}

	return &sessionHandle{
		store: st,
		w:     w,
		id:    uuid.NewString(),
		sess:  newSession(st.now()),
		fresh: true,
	}
}

func (st *SessionStore) evictOldestLocked() {
	oldestID := ""
	var oldest time.Time
	for id, s := range st.sessions {
		if oldestID == "" || s.lastSeen.Before(oldest) {
			oldestID, oldest = id, s.lastSeen
		}
	}
	delete(st.sessions, oldestID)
}

// from returns the session Middleware attached to r. Requests that did
// not pass through Middleware get a throwaway session.
func (st *SessionStore) from(r *http.Request) *session {
	if h, ok := r.Context().Value(sessionKey{}).(*sessionHandle); ok {
		return h.get()
	}
	return newSession(st.now())
}

// Columns returns the column state of cfg's table for the request's session.
func (st *SessionStore) Columns(r *http.Request, cfg core.TableConfig) *core.ColumnState {
	s := st.from(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	cs, ok := s.columns[cfg.Key]
	if !ok {
		cs = core.NewColumnState(cfg.Columns)
		s.columns[cfg.Key] = cs
	}
	return cs
}

// WithShell runs fn with the shell of entity while holding the session
// lock. fn must not block on I/O.
func (st *SessionStore) WithShell(r *http.Request, entity string, fn func(*core.Shell)) {
	s := st.from(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.shells[entity]
	if !ok {
		sh = core.NewShell(st.pageSize)
		s.shells[entity] = sh
	}
	fn(sh)
}

// Len is the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}

// Purge drops sessions idle for longer than ttl and reports how many.
func (st *SessionStore) Purge(ttl time.Duration) int {
	cutoff := st.now().Add(-ttl)

	st.mu.Lock()
	defer st.mu.Unlock()

	n := 0
	for id, s := range st.sessions {
		if s.lastSeen.Before(cutoff) {
			delete(st.sessions, id)
			n++
		}
	}
	return n
}

// PurgeHook adapts Purge to the refresh scheduler.
func (st *SessionStore) PurgeHook(ttl time.Duration) core.MaintenanceHook {
	return func(ctx context.Context) {
		if n := st.Purge(ttl); n > 0 {
			logging.FromContext(ctx).Info("purged idle table sessions", "count", n)
		}
	}
}
