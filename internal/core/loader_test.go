package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// ============================================================================
// Loader Tests
// ============================================================================

func TestLoader_CachesUntilInvalidated(t *testing.T) {
	var calls atomic.Int32
	l := NewLoader("orders", func(ctx context.Context) ([]Record, error) {
		calls.Add(1)
		return []Record{{"_id": "o1"}}, nil
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := l.Records(ctx); err != nil {
			t.Fatalf("Records() error: %v", err)
		}
	}
	if calls.Load() != 1 {
		t.Errorf("fetches = %d, want 1", calls.Load())
	}

	l.Invalidate()
	if _, err := l.Records(ctx); err != nil {
		t.Fatalf("Records() error: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("fetches after invalidate = %d, want 2", calls.Load())
	}
	if !l.Loaded() {
		t.Error("Loaded() should be true after a successful fetch")
	}
}

func TestLoader_KeepsPreviousOnError(t *testing.T) {
	fail := false
	l := NewLoader("orders", func(ctx context.Context) ([]Record, error) {
		if fail {
			return nil, errors.New("upstream unavailable")
		}
		return []Record{{"_id": "o1"}, {"_id": "o2"}}, nil
	})

	ctx := context.Background()
	if _, err := l.Load(ctx); err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	fail = true
	recs, err := l.Load(ctx)
	if err == nil {
		t.Fatal("Load() should return the fetch error")
	}
	if len(recs) != 2 {
		t.Errorf("records after failure = %d, want previous 2", len(recs))
	}
	if st := l.Status(); st.Error == "" || st.Count != 2 {
		t.Errorf("Status() = %+v", st)
	}
}

func TestLoader_EmptyBeforeFirstSuccess(t *testing.T) {
	l := NewLoader("orders", func(ctx context.Context) ([]Record, error) {
		return nil, errors.New("connection refused")
	})

	recs, err := l.Load(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if recs == nil || len(recs) != 0 {
		t.Errorf("records = %v, want empty non-nil", recs)
	}
	if l.Loaded() {
		t.Error("Loaded() should be false")
	}
}

func TestLoader_LatestRequestWins(t *testing.T) {
	slow := make(chan struct{})
	var call atomic.Int32

	l := NewLoader("orders", func(ctx context.Context) ([]Record, error) {
		if call.Add(1) == 1 {
			<-slow
			return []Record{{"_id": "old"}}, nil
		}
		return []Record{{"_id": "new"}}, nil
	})

	ctx := context.Background()
	var wg sync.WaitGroup
	wg.Add(1)
	var oldResult []Record
	go func() {
		defer wg.Done()
		oldResult, _ = l.Load(ctx)
	}()

	// Wait for the slow fetch to be issued before starting the fast one.
	deadline := time.Now().Add(time.Second)
	for call.Load() < 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	recs, err := l.Load(ctx)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if recs[0].ID() != "new" {
		t.Fatalf("fast load = %s, want new", recs[0].ID())
	}

	close(slow)
	wg.Wait()

	if oldResult[0].ID() != "new" {
		t.Errorf("stale load returned %s, want current snapshot", oldResult[0].ID())
	}
	cur, _ := l.Records(ctx)
	if cur[0].ID() != "new" {
		t.Errorf("cached = %s, want new", cur[0].ID())
	}
}

func TestLoader_StaleResponseOnColdCache(t *testing.T) {
	secondIssued := make(chan struct{})
	releaseSecond := make(chan struct{})
	var call atomic.Int32

	l := NewLoader("orders", func(ctx context.Context) ([]Record, error) {
		if call.Add(1) == 1 {
			<-secondIssued
			return []Record{{"_id": "first"}}, nil
		}
		close(secondIssued)
		<-releaseSecond
		return []Record{{"_id": "second"}}, nil
	})

	ctx := context.Background()
	firstDone := make(chan []Record, 1)
	go func() {
		recs, _ := l.Load(ctx)
		firstDone <- recs
	}()

	deadline := time.Now().Add(time.Second)
	for call.Load() < 1 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	secondDone := make(chan []Record, 1)
	go func() {
		recs, _ := l.Load(ctx)
		secondDone <- recs
	}()

	first := <-firstDone
	if len(first) != 1 || first[0].ID() != "first" {
		t.Errorf("superseded load = %v, want its own records", first)
	}
	if l.Loaded() {
		t.Error("superseded response should not be stored")
	}

	close(releaseSecond)
	if second := <-secondDone; len(second) != 1 || second[0].ID() != "second" {
		t.Errorf("latest load = %v", second)
	}
	if cur, _ := l.Records(ctx); cur[0].ID() != "second" {
		t.Errorf("cached = %s, want second", cur[0].ID())
	}
}

// ============================================================================
// Debouncer Tests
// ============================================================================

func TestDebouncer_CoalescesBurst(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var runs atomic.Int32
	var last atomic.Int32

	for i := 1; i <= 5; i++ {
		n := int32(i)
		d.Trigger(func() {
			runs.Add(1)
			last.Store(n)
		})
		time.Sleep(2 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)
	if runs.Load() != 1 {
		t.Errorf("runs = %d, want 1", runs.Load())
	}
	if last.Load() != 5 {
		t.Errorf("ran trigger %d, want the last one", last.Load())
	}
	if d.Pending() {
		t.Error("nothing should be pending after firing")
	}
}

func TestDebouncer_Cancel(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var runs atomic.Int32

	d.Trigger(func() { runs.Add(1) })
	if !d.Pending() {
		t.Fatal("Pending() should be true after Trigger")
	}
	d.Cancel()

	time.Sleep(60 * time.Millisecond)
	if runs.Load() != 0 {
		t.Errorf("runs = %d, want 0 after cancel", runs.Load())
	}
}

// ============================================================================
// Shell Tests
// ============================================================================

func TestShell_DialogSelection(t *testing.T) {
	s := NewShell(0)
	rec := Record{"_id": "o1"}

	if s.PageSize != DefaultPageSize || s.Page != 1 {
		t.Errorf("NewShell(0) = page %d size %d", s.Page, s.PageSize)
	}

	steps := []struct {
		name  string
		do    func()
		modal Modal
		sel   bool
	}{
		{"open add", s.OpenAdd, ModalAdd, false},
		{"open edit", func() { s.OpenEdit(rec) }, ModalEdit, true},
		{"open view", func() { s.OpenView(rec) }, ModalView, true},
		{"open delete", func() { s.OpenDelete(rec) }, ModalDelete, true},
		{"edit nil closes", func() { s.OpenEdit(nil) }, ModalNone, false},
		{"close", s.Close, ModalNone, false},
	}
	for _, st := range steps {
		st.do()
		if s.Modal() != st.modal {
			t.Errorf("%s: Modal() = %q, want %q", st.name, s.Modal(), st.modal)
		}
		if (s.Selected() != nil) != st.sel {
			t.Errorf("%s: selected = %v, want %v", st.name, s.Selected() != nil, st.sel)
		}
		if !s.Consistent() {
			t.Errorf("%s: shell inconsistent", st.name)
		}
	}
}

func TestShell_Submit(t *testing.T) {
	s := NewShell(10)
	s.OpenEdit(Record{"_id": "o1"})

	if err := s.BeginSubmit(); err != nil {
		t.Fatalf("BeginSubmit() error: %v", err)
	}
	if err := s.BeginSubmit(); !errors.Is(err, ErrSubmitInProgress) {
		t.Errorf("second BeginSubmit() = %v, want ErrSubmitInProgress", err)
	}

	s.EndSubmit(false)
	if s.Submitting() || s.Modal() != ModalEdit {
		t.Error("failed submit should keep the dialog open")
	}

	_ = s.BeginSubmit()
	s.EndSubmit(true)
	if s.Modal() != ModalNone || s.Selected() != nil {
		t.Error("successful submit should close the dialog")
	}
}

func TestShell_ViewState(t *testing.T) {
	s := NewShell(5)
	s.Page = 3

	s.SetSearch("oro")
	if s.Page != 1 {
		t.Errorf("Page after new search = %d, want 1", s.Page)
	}
	s.Page = 2
	s.SetSearch("oro")
	if s.Page != 2 {
		t.Error("same query should keep the page")
	}

	s.ToggleSort("total")
	s.ToggleSort("total")
	if s.Sort != (SortState{Key: "total", Direction: Desc}) {
		t.Errorf("Sort = %+v", s.Sort)
	}

	req := s.Request()
	if req.Search != "oro" || req.Page != 2 || req.PageSize != 5 {
		t.Errorf("Request() = %+v", req)
	}

	s.Sync(ViewResult{Page: 1, PageSize: 5})
	if s.Page != 1 {
		t.Errorf("Sync() page = %d, want 1", s.Page)
	}

	s.Refresh()
	if s.Search != "" || s.Sort.Key != "" || s.Page != 1 {
		t.Errorf("Refresh() left %+v", s.Request())
	}
}
