package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JonMunkholm/joyeria/internal/logging"
)

// FetchFunc retrieves the full record set of one entity.
type FetchFunc func(ctx context.Context) ([]Record, error)

// Loader caches one entity's records. Every fetch is tagged with a
// monotonically increasing sequence number and its response is stored
// only if no newer fetch has been issued since, so a slow response can
// never overwrite a fresher one. The cached slice is replaced whole and
// never modified in place.
type Loader struct {
	entity string
	fetch  FetchFunc

	issued atomic.Uint64

	mu       sync.RWMutex
	records  []Record
	stored   uint64
	loadedAt time.Time
	stale    bool
	lastErr  error
}

// NewLoader returns an empty loader for entity.
func NewLoader(entity string, fetch FetchFunc) *Loader {
	return &Loader{entity: entity, fetch: fetch, records: []Record{}, stale: true}
}

// Load fetches the records. A stale response is never stored: the caller
// gets the cached snapshot when a newer fetch has already landed, and its
// own records otherwise. On a fetch error the previous snapshot (empty if
// none) is kept and returned with the error.
func (l *Loader) Load(ctx context.Context) ([]Record, error) {
	seq := l.issued.Add(1)
	recs, err := l.fetch(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()

	if seq != l.issued.Load() {
		logging.ForEntity(ctx, l.entity).Debug("discarding stale response",
			"seq", seq, "latest", l.issued.Load())
		if err != nil || l.stored > seq {
			return l.records, err
		}
		if recs == nil {
			recs = []Record{}
		}
		return recs, nil
	}

	if err != nil {
		l.lastErr = err
		logging.ForEntity(ctx, l.entity).Warn("fetch failed, keeping previous records",
			"error", err, "cached", len(l.records))
		return l.records, err
	}

	if recs == nil {
		recs = []Record{}
	}
	l.records = recs
	l.stored = seq
	l.loadedAt = time.Now()
	l.stale = false
	l.lastErr = nil
	return recs, nil
}

// Records returns the cached snapshot, loading first when the cache was
// never filled or has been invalidated.
func (l *Loader) Records(ctx context.Context) ([]Record, error) {
	l.mu.RLock()
	stale := l.stale
	recs := l.records
	l.mu.RUnlock()

	if stale {
		return l.Load(ctx)
	}
	return recs, nil
}

// Invalidate forces the next Records call to refetch.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	l.stale = true
	l.mu.Unlock()
}

// LoaderStatus describes the cached snapshot.
type LoaderStatus struct {
	Entity   string    `json:"entity"`
	Count    int       `json:"count"`
	LoadedAt time.Time `json:"loadedAt"`
	Stale    bool      `json:"stale"`
	Error    string    `json:"error,omitempty"`
}

// Status returns a snapshot description.
func (l *Loader) Status() LoaderStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()

	st := LoaderStatus{Entity: l.entity, Count: len(l.records), LoadedAt: l.loadedAt, Stale: l.stale}
	if l.lastErr != nil {
		st.Error = l.lastErr.Error()
	}
	return st
}

// Loaded reports whether a fetch has ever succeeded.
func (l *Loader) Loaded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return !l.loadedAt.IsZero()
}
