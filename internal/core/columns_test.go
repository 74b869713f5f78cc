package core

import (
	"reflect"
	"testing"
)

func keysOf(cols []ColumnDescriptor) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Key
	}
	return out
}

func TestDefaultVisibility(t *testing.T) {
	m := DefaultVisibility(orderColumns())

	if m["notes"] {
		t.Error("hidden column should start invisible")
	}
	if !m["orderCode"] || !m["items"] {
		t.Error("non-hidden columns should start visible")
	}
}

func TestShowAllThenResetRestoresDefault(t *testing.T) {
	cols := orderColumns()

	got := ResetToDefault(cols)
	if !reflect.DeepEqual(got, DefaultVisibility(cols)) {
		t.Errorf("ResetToDefault() = %v, want default", got)
	}

	all := ShowAll(cols)
	for _, c := range cols {
		if !all[c.Key] {
			t.Errorf("ShowAll() left %q hidden", c.Key)
		}
	}
}

func TestShowOnlyEssential_SubsetOfDefault(t *testing.T) {
	cols := orderColumns()
	essential := ShowOnlyEssential(cols)
	def := DefaultVisibility(cols)

	for k, v := range essential {
		if v && !def[k] {
			t.Errorf("essential column %q is not visible by default", k)
		}
	}

	got := keysOf(VisibleOnly(cols, essential))
	if want := []string{"orderCode", "customer", "status"}; !reflect.DeepEqual(got, want) {
		t.Errorf("essential = %v, want %v", got, want)
	}
}

func TestToggleColumn(t *testing.T) {
	cols := orderColumns()
	m := DefaultVisibility(cols)

	toggled := ToggleColumn(cols, m, "total")
	if toggled["total"] {
		t.Error("total should be hidden after toggle")
	}
	if !m["total"] {
		t.Error("ToggleColumn() must not modify its input")
	}

	back := ToggleColumn(cols, toggled, "total")
	if !reflect.DeepEqual(back, m) {
		t.Errorf("double toggle = %v, want %v", back, m)
	}

	unknown := ToggleColumn(cols, m, "nope")
	if _, ok := unknown["nope"]; ok {
		t.Error("unknown keys should be ignored")
	}
}

func TestVisibleOnly_KeepsConfigOrder(t *testing.T) {
	cols := orderColumns()
	m := VisibleColumns{"createdAt": true, "orderCode": true, "status": false}

	got := keysOf(VisibleOnly(cols, m))
	want := []string{"orderCode", "customer", "total", "items", "createdAt"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("VisibleOnly() = %v, want %v", got, want)
	}
}

// ============================================================================
// ColumnState Tests
// ============================================================================

func TestColumnState_SaveAndDiscard(t *testing.T) {
	cols := orderColumns()
	s := NewColumnState(cols)

	s.Apply(ColumnsToggle, "status")
	if !s.Active()["status"] {
		t.Fatal("pending edits must not change the active map")
	}
	if s.Pending()["status"] {
		t.Fatal("pending map should reflect the toggle")
	}

	s.Discard()
	if !s.Pending()["status"] {
		t.Error("Discard() should restore the pending map from active")
	}

	s.Apply(ColumnsEssential, "")
	s.Save()
	got := keysOf(s.Visible())
	if want := []string{"orderCode", "customer", "status"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Visible() after save = %v, want %v", got, want)
	}

	s.Apply(ColumnsAll, "")
	s.Save()
	if len(s.Visible()) != len(cols) {
		t.Errorf("Visible() after show all = %d columns, want %d", len(s.Visible()), len(cols))
	}

	s.Apply(ColumnsReset, "")
	s.Save()
	if !reflect.DeepEqual(s.Active(), DefaultVisibility(cols)) {
		t.Error("reset then save should restore the default visibility")
	}
}

func TestColumnState_UnknownAction(t *testing.T) {
	s := NewColumnState(orderColumns())
	if s.Apply("explode", "") {
		t.Error("Apply() should reject unknown actions")
	}
}

func TestColumnState_ReturnsCopies(t *testing.T) {
	s := NewColumnState(orderColumns())
	m := s.Active()
	m["orderCode"] = false

	if !s.Active()["orderCode"] {
		t.Error("Active() must return a copy")
	}
}

func TestColumnState_Set(t *testing.T) {
	cols := orderColumns()
	cs := NewColumnState(cols)

	cs.Set(VisibleColumns{"notes": true, "bogus": true})
	pending := cs.Pending()
	if !pending["notes"] {
		t.Error("notes should be pending visible")
	}
	if _, ok := pending["bogus"]; ok {
		t.Error("unknown keys should be dropped")
	}
	if !pending["orderCode"] {
		t.Error("missing keys should keep their default")
	}
	if cs.Active()["notes"] {
		t.Error("Set must not commit")
	}

	cs.Save()
	if !cs.Active()["notes"] {
		t.Error("notes should be active after Save")
	}
}
