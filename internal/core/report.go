package core

import (
	"io"
	"time"
)

// ReportOptions bounds the printable report.
type ReportOptions struct {
	Brand      string
	MaxRows    int
	MaxColumns int
}

func (o ReportOptions) withDefaults() ReportOptions {
	if o.Brand == "" {
		o.Brand = "Joyería"
	}
	if o.MaxRows <= 0 {
		o.MaxRows = 50
	}
	if o.MaxColumns <= 0 {
		o.MaxColumns = 6
	}
	return o
}

// reportColumnOrder lists the fields worth printing, most useful first.
var reportColumnOrder = []string{
	"orderCode", "code", "correlative", "name", "lastName", "customer",
	"product", "email", "category", "status", "paymentStatus", "quantity",
	"stock", "price", "amount", "total", "rating", "reason", "createdAt",
}

// ReportColumn is one printed column.
type ReportColumn struct {
	Key   string
	Label string
}

// Report is the data of a printable document.
type Report struct {
	Brand       string
	Title       string
	GeneratedAt string
	Total       int
	Columns     []ReportColumn
	Rows        [][]string
	Truncated   bool
}

// Shown is the number of rows printed.
func (r Report) Shown() int { return len(r.Rows) }

// ReportRenderer writes a Report as a printable document.
type ReportRenderer interface {
	RenderReport(w io.Writer, r Report) error
}

// BuildReport selects the printed columns and rows. Columns come from
// the preferred order intersected with the available keys, falling back
// to the first available keys when none match.
func (e *Engine) BuildReport(records []Record, opts ExportOptions) Report {
	ro := e.report
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	available := make([]string, 0)
	has := make(map[string]bool)
	for _, k := range ExportKeys(records, opts.Columns) {
		if k == "_id" {
			continue
		}
		available = append(available, k)
		has[k] = true
	}

	var keys []string
	for _, k := range reportColumnOrder {
		if len(keys) == ro.MaxColumns {
			break
		}
		if has[k] {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		keys = available
		if len(keys) > ro.MaxColumns {
			keys = keys[:ro.MaxColumns]
		}
	}

	cols := make([]ReportColumn, len(keys))
	for i, k := range keys {
		cols[i] = ReportColumn{Key: k, Label: FieldLabel(k, opts.Columns)}
	}

	shown := records
	if len(shown) > ro.MaxRows {
		shown = shown[:ro.MaxRows]
	}
	rows := make([][]string, len(shown))
	for i, r := range shown {
		rows[i] = e.FlattenRecord(r, keys)
	}

	return Report{
		Brand:       ro.Brand,
		Title:       opts.Title,
		GeneratedAt: e.Format.DateTime(now),
		Total:       len(records),
		Columns:     cols,
		Rows:        rows,
		Truncated:   len(records) > len(shown),
	}
}
