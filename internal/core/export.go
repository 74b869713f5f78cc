package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrNothingToExport is returned for an empty record set. No file is produced.
	ErrNothingToExport = errors.New("nothing to export")

	// ErrUnsupportedFormat is returned for an unknown export format.
	ErrUnsupportedFormat = errors.New("unsupported export format")
)

// ExportFormat identifies an export serializer.
type ExportFormat string

const (
	FormatCSV    ExportFormat = "csv"
	FormatExcel  ExportFormat = "excel"
	FormatCSVBOM ExportFormat = "csv-bom"
	FormatPDF    ExportFormat = "pdf"
)

// ParseExportFormat accepts the format names and the common extensions.
func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "excel", "xlsx":
		return FormatExcel, nil
	case "csv-bom", "excel-csv":
		return FormatCSVBOM, nil
	case "pdf", "print":
		return FormatPDF, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

// Extension is the file extension of the produced artifact.
func (f ExportFormat) Extension() string {
	switch f {
	case FormatExcel:
		return "xlsx"
	case FormatPDF:
		return "html"
	default:
		return "csv"
	}
}

// ContentType is the MIME type of the produced artifact.
func (f ExportFormat) ContentType() string {
	switch f {
	case FormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "text/html; charset=utf-8"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Inline reports whether the artifact is meant to open in the browser
// rather than download.
func (f ExportFormat) Inline() bool { return f == FormatPDF }

// ExportOptions describes the table being exported.
type ExportOptions struct {
	Title   string
	Columns []ColumnDescriptor
	Now     time.Time

	// Renderer writes the printable report. Required for FormatPDF.
	Renderer ReportRenderer
}

// Export serializes records in the given format. Records are written in
// the order given; callers pass the filtered and sorted set.
func (e *Engine) Export(w io.Writer, format ExportFormat, records []Record, opts ExportOptions) error {
	if len(records) == 0 {
		return ErrNothingToExport
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	keys := ExportKeys(records, opts.Columns)

	switch format {
	case FormatCSV:
		return e.writeCSV(w, keys, keys, records)
	case FormatCSVBOM:
		if _, err := io.WriteString(w, "\ufeff"); err != nil {
			return fmt.Errorf("write bom: %w", err)
		}
		return e.writeCSV(w, translate(keys, opts.Columns), keys, records)
	case FormatExcel:
		return e.writeXLSX(w, opts, keys, records)
	case FormatPDF:
		if opts.Renderer == nil {
			return fmt.Errorf("%w: no report renderer configured", ErrUnsupportedFormat)
		}
		return opts.Renderer.RenderReport(w, e.BuildReport(records, opts))
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// ExportKeys returns the columns of an export: "_id" first, then the
// configured column keys present in the data, then any other keys in
// sorted order. The "__v" version key is never exported.
func ExportKeys(records []Record, cols []ColumnDescriptor) []string {
	present := make(map[string]bool)
	for _, r := range records {
		for k := range r {
			if k != "__v" {
				present[k] = true
			}
		}
	}

	keys := make([]string, 0, len(present))
	used := make(map[string]bool, len(present))
	if present["_id"] {
		keys = append(keys, "_id")
		used["_id"] = true
	}
	for _, c := range cols {
		if present[c.Key] && !used[c.Key] {
			keys = append(keys, c.Key)
			used[c.Key] = true
		}
	}

	rest := make([]string, 0, len(present)-len(used))
	for k := range present {
		if !used[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

func translate(keys []string, cols []ColumnDescriptor) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = FieldLabel(k, cols)
	}
	return out
}

func (e *Engine) writeCSV(w io.Writer, header, keys []string, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range records {
		if err := cw.Write(e.FlattenRecord(r, keys)); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func (e *Engine) writeXLSX(w io.Writer, opts ExportOptions, keys []string, records []Record) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := SheetName(opts.Title)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"E5E7EB"}},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("stream writer: %w", err)
	}
	if err := sw.SetColWidth(1, len(keys), 20); err != nil {
		return fmt.Errorf("column width: %w", err)
	}

	header := make([]any, len(keys))
	for i, label := range translate(keys, opts.Columns) {
		header[i] = excelize.Cell{StyleID: bold, Value: label}
	}
	if err := sw.SetRow("A1", header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range records {
		row := make([]any, len(keys))
		for j, k := range keys {
			row[j] = e.spreadsheetValue(k, r[k])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// spreadsheetValue keeps numbers numeric so the sheet can sum them.
func (e *Engine) spreadsheetValue(key string, v any) any {
	if isNumber(v) {
		if f, ok := toFloat(v); ok {
			return f
		}
	}
	return e.FlattenValue(key, v)
}

// SheetName makes title a valid worksheet name.
func SheetName(title string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '-'
		}
		return r
	}, strings.TrimSpace(title))
	name = strings.Trim(name, "'")
	if runes := []rune(name); len(runes) > 31 {
		name = string(runes[:31])
	}
	if name == "" {
		return "Datos"
	}
	return name
}
