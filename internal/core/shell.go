package core

import "errors"

// Modal is the dialog currently open over a table.
type Modal string

const (
	ModalNone   Modal = ""
	ModalAdd    Modal = "add"
	ModalEdit   Modal = "edit"
	ModalView   Modal = "view"
	ModalDelete Modal = "delete"
)

// ErrSubmitInProgress is returned when a second submit starts before
// the first one ended.
var ErrSubmitInProgress = errors.New("submit already in progress")

// Shell tracks the interactive state around one table: which dialog is
// open, the record it targets, the submitting flag and the local view
// state. A record is selected exactly when an edit, view or delete dialog
// is open. Shell is not safe for concurrent use.
type Shell struct {
	modal      Modal
	selected   Record
	submitting bool

	Search   string
	Sort     SortState
	Page     int
	PageSize int
}

// NewShell returns a shell on page 1 with the given page size.
func NewShell(pageSize int) *Shell {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Shell{Page: 1, PageSize: pageSize, Sort: SortState{Direction: Asc}}
}

// OpenAdd opens the add dialog. Add has no selection.
func (s *Shell) OpenAdd() { s.open(ModalAdd, nil) }

// OpenEdit opens the edit dialog on rec.
func (s *Shell) OpenEdit(rec Record) { s.open(ModalEdit, rec) }

// OpenView opens the detail dialog on rec.
func (s *Shell) OpenView(rec Record) { s.open(ModalView, rec) }

// OpenDelete opens the delete confirmation on rec.
func (s *Shell) OpenDelete(rec Record) { s.open(ModalDelete, rec) }

func (s *Shell) open(m Modal, rec Record) {
	if m != ModalAdd && rec == nil {
		s.Close()
		return
	}
	s.modal = m
	s.selected = rec
}

// Close closes any dialog and clears the selection.
func (s *Shell) Close() {
	s.modal = ModalNone
	s.selected = nil
	s.submitting = false
}

// Modal returns the open dialog.
func (s *Shell) Modal() Modal { return s.modal }

// Selected returns the targeted record, nil when none.
func (s *Shell) Selected() Record { return s.selected }

// Submitting reports whether a submit is in flight.
func (s *Shell) Submitting() bool { return s.submitting }

// BeginSubmit marks a submit in flight.
func (s *Shell) BeginSubmit() error {
	if s.submitting {
		return ErrSubmitInProgress
	}
	s.submitting = true
	return nil
}

// EndSubmit clears the flag; on success the dialog closes.
func (s *Shell) EndSubmit(ok bool) {
	s.submitting = false
	if ok {
		s.Close()
	}
}

// Refresh resets the local view state after a data reload.
func (s *Shell) Refresh() {
	s.Search = ""
	s.Sort = s.Sort.Reset()
	s.Page = 1
}

// SetSearch changes the query and returns to the first page.
func (s *Shell) SetSearch(q string) {
	if q != s.Search {
		s.Page = 1
	}
	s.Search = q
}

// ToggleSort applies a header click on key.
func (s *Shell) ToggleSort(key string) {
	s.Sort = s.Sort.Toggle(key)
}

// SetPageSize changes the page size; the page is clamped on the next view.
func (s *Shell) SetPageSize(n int) {
	if n > 0 {
		s.PageSize = n
	}
}

// Request returns the view request for the current state.
func (s *Shell) Request() ViewRequest {
	return ViewRequest{Search: s.Search, Sort: s.Sort, Page: s.Page, PageSize: s.PageSize}
}

// Sync stores the clamped page reported by a view.
func (s *Shell) Sync(res ViewResult) {
	s.Page = res.Page
	s.PageSize = res.PageSize
}

// Consistent reports whether selection and dialog agree.
func (s *Shell) Consistent() bool {
	switch s.modal {
	case ModalEdit, ModalView, ModalDelete:
		return s.selected != nil
	default:
		return s.selected == nil
	}
}
