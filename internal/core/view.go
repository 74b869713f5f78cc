package core

import (
	"sort"
	"strings"
)

// ViewRequest is one client query over a table's records.
type ViewRequest struct {
	Search   string
	Sort     SortState
	Page     int
	PageSize int
}

// ViewResult is the visible page plus the pre-pagination totals.
type ViewResult struct {
	Rows       []Record `json:"rows"`
	Total      int      `json:"total"`
	Page       int      `json:"page"`
	PageSize   int      `json:"pageSize"`
	TotalPages int      `json:"totalPages"`
}

// Pagination returns the clamped pagination of the result.
func (v ViewResult) Pagination() Pagination {
	return Pagination{Page: v.Page, PageSize: v.PageSize, Total: v.Total}
}

// View filters, sorts and paginates records. Neither the slice nor the
// records are modified. The requested page is clamped to the valid range.
func (e *Engine) View(records []Record, req ViewRequest, cols []ColumnDescriptor) ViewResult {
	rows := e.Arrange(records, req.Search, req.Sort, cols)

	size := req.PageSize
	if size <= 0 {
		size = e.DefaultPageSize
	}
	p := Pagination{Page: req.Page, PageSize: size, Total: len(rows)}.Clamp()
	start, end := p.Bounds()

	return ViewResult{
		Rows:       rows[start:end],
		Total:      p.Total,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: p.TotalPages(),
	}
}

// Arrange returns the filtered and sorted records without paginating.
// Exports consume this directly.
func (e *Engine) Arrange(records []Record, search string, s SortState, cols []ColumnDescriptor) []Record {
	rows := e.Filter(records, cols, search)
	if s.Key == "" {
		return rows
	}

	col, ok := findColumn(cols, s.Key)
	if !ok {
		col = ColumnDescriptor{Key: s.Key}
	}
	kind := col.EffectiveSort()
	if e.LegacyStringSort {
		kind = SortLexicographic
	}

	sort.SliceStable(rows, func(i, j int) bool {
		c := e.compare(sortValue(rows[i][s.Key]), sortValue(rows[j][s.Key]), kind)
		if s.Direction == Desc {
			return c > 0
		}
		return c < 0
	})
	return rows
}

func findColumn(cols []ColumnDescriptor, key string) (ColumnDescriptor, bool) {
	for _, c := range cols {
		if c.Key == key {
			return c, true
		}
	}
	return ColumnDescriptor{}, false
}

// sortValue reduces a cell to a comparable value: objects to a label,
// arrays to their length, nil to "".
func sortValue(v any) any {
	switch val := v.(type) {
	case nil:
		return ""
	case map[string]any:
		name := scalarString(val["name"])
		if last := scalarString(val["lastName"]); name != "" && last != "" {
			return name + " " + last
		}
		for _, k := range []string{"name", "contactPerson", "_id"} {
			if s := scalarString(val[k]); s != "" {
				return s
			}
		}
		return ""
	case []any:
		return float64(len(val))
	default:
		return v
	}
}

// compare orders two sort values. Values that parse for the kind rank
// before those that don't, so a mixed column still sorts totally.
func (e *Engine) compare(a, b any, kind SortKind) int {
	if e.LegacyStringSort {
		return compareStrings(a, b)
	}

	switch kind {
	case SortNumeric:
		fa, okA := toFloat(a)
		fb, okB := toFloat(b)
		if c, done := rankParsed(okA, okB); done {
			return c
		}
		if okA {
			return compareFloats(fa, fb)
		}
	case SortDate:
		ta, okA := ParseTime(a)
		tb, okB := ParseTime(b)
		if c, done := rankParsed(okA, okB); done {
			return c
		}
		if okA {
			return ta.Compare(tb)
		}
	default:
		fa, okA := numberValue(a)
		fb, okB := numberValue(b)
		if c, done := rankParsed(okA, okB); done {
			return c
		}
		if okA {
			return compareFloats(fa, fb)
		}
	}
	return compareStrings(a, b)
}

// rankParsed settles a comparison where only one side parsed.
func rankParsed(okA, okB bool) (int, bool) {
	switch {
	case okA && !okB:
		return -1, true
	case !okA && okB:
		return 1, true
	default:
		return 0, false
	}
}

// numberValue reports JSON numbers only; numeric strings stay text.
func numberValue(v any) (float64, bool) {
	if !isNumber(v) {
		return 0, false
	}
	return toFloat(v)
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareStrings(a, b any) int {
	return strings.Compare(strings.ToLower(scalarString(a)), strings.ToLower(scalarString(b)))
}
