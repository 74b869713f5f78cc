package core

import "sync"

// DefaultVisibility shows every column that is not hidden.
func DefaultVisibility(cols []ColumnDescriptor) VisibleColumns {
	m := make(VisibleColumns, len(cols))
	for _, c := range cols {
		m[c.Key] = !c.Hidden
	}
	return m
}

// ToggleColumn returns a copy of m with key flipped. Unknown keys are ignored.
func ToggleColumn(cols []ColumnDescriptor, m VisibleColumns, key string) VisibleColumns {
	out := normalize(cols, m)
	if _, ok := findColumn(cols, key); ok {
		out[key] = !out[key]
	}
	return out
}

// ShowAll makes every column visible.
func ShowAll(cols []ColumnDescriptor) VisibleColumns {
	m := make(VisibleColumns, len(cols))
	for _, c := range cols {
		m[c.Key] = true
	}
	return m
}

// ShowOnlyEssential keeps only priority 1 columns that are visible by default.
func ShowOnlyEssential(cols []ColumnDescriptor) VisibleColumns {
	m := make(VisibleColumns, len(cols))
	for _, c := range cols {
		m[c.Key] = !c.Hidden && c.EffectivePriority() == PriorityEssential
	}
	return m
}

// ResetToDefault is DefaultVisibility, named for the toolbar action.
func ResetToDefault(cols []ColumnDescriptor) VisibleColumns {
	return DefaultVisibility(cols)
}

// VisibleOnly returns the descriptors marked visible in m, in config order.
func VisibleOnly(cols []ColumnDescriptor, m VisibleColumns) []ColumnDescriptor {
	out := make([]ColumnDescriptor, 0, len(cols))
	for _, c := range cols {
		visible, ok := m[c.Key]
		if !ok {
			visible = !c.Hidden
		}
		if visible {
			out = append(out, c)
		}
	}
	return out
}

// normalize copies m restricted to known columns, defaulting missing keys.
func normalize(cols []ColumnDescriptor, m VisibleColumns) VisibleColumns {
	out := make(VisibleColumns, len(cols))
	for _, c := range cols {
		if v, ok := m[c.Key]; ok {
			out[c.Key] = v
		} else {
			out[c.Key] = !c.Hidden
		}
	}
	return out
}

// ColumnAction names a bulk visibility change.
type ColumnAction string

const (
	ColumnsAll       ColumnAction = "all"
	ColumnsEssential ColumnAction = "essential"
	ColumnsReset     ColumnAction = "reset"
	ColumnsToggle    ColumnAction = "toggle"
	ColumnsSave      ColumnAction = "save"
	ColumnsDiscard   ColumnAction = "discard"
)

// ColumnState holds the committed visibility map and the pending edit
// shown in the column picker. Edits apply to the pending map until Save.
type ColumnState struct {
	mu      sync.Mutex
	columns []ColumnDescriptor
	active  VisibleColumns
	temp    VisibleColumns
}

// NewColumnState starts both maps at the default visibility.
func NewColumnState(cols []ColumnDescriptor) *ColumnState {
	return &ColumnState{
		columns: cols,
		active:  DefaultVisibility(cols),
		temp:    DefaultVisibility(cols),
	}
}

// Apply runs action against the pending map. key is used by toggle only.
// It reports false for an unknown action.
func (s *ColumnState) Apply(action ColumnAction, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch action {
	case ColumnsToggle:
		s.temp = ToggleColumn(s.columns, s.temp, key)
	case ColumnsAll:
		s.temp = ShowAll(s.columns)
	case ColumnsEssential:
		s.temp = ShowOnlyEssential(s.columns)
	case ColumnsReset:
		s.temp = ResetToDefault(s.columns)
	case ColumnsSave:
		s.active = normalize(s.columns, s.temp)
	case ColumnsDiscard:
		s.temp = normalize(s.columns, s.active)
	default:
		return false
	}
	return true
}

// Set replaces the pending map. Keys missing from m take their default.
func (s *ColumnState) Set(m VisibleColumns) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.temp = normalize(s.columns, m)
}

// Save commits the pending map.
func (s *ColumnState) Save() { s.Apply(ColumnsSave, "") }

// Discard drops pending edits.
func (s *ColumnState) Discard() { s.Apply(ColumnsDiscard, "") }

// Active returns a copy of the committed map.
func (s *ColumnState) Active() VisibleColumns {
	s.mu.Lock()
	defer s.mu.Unlock()
	return normalize(s.columns, s.active)
}

// Pending returns a copy of the map being edited.
func (s *ColumnState) Pending() VisibleColumns {
	s.mu.Lock()
	defer s.mu.Unlock()
	return normalize(s.columns, s.temp)
}

// Visible returns the committed visible descriptors.
func (s *ColumnState) Visible() []ColumnDescriptor {
	return VisibleOnly(s.columns, s.Active())
}
