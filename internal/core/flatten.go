package core

import (
	"strconv"
	"strings"
)

// FlattenValue reduces a field to one string for export. Objects become
// labels, arrays are joined with " | ", booleans become Sí/No and
// date-like keys are formatted as date and time.
func (e *Engine) FlattenValue(key string, v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case bool:
		if val {
			return "Sí"
		}
		return "No"
	case map[string]any:
		if _, ok := val["itemId"]; ok {
			return itemLabel(val)
		}
		return ObjectLabel(val)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := e.FlattenValue(key, item); s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) == 0 {
			return strconv.Itoa(len(val)) + " elementos"
		}
		return strings.Join(parts, " | ")
	}

	if isDateKey(key) {
		if t, ok := ParseTime(v); ok {
			return e.Format.DateTime(t)
		}
	}
	return scalarString(v)
}

// FlattenRecord flattens every key in keys.
func (e *Engine) FlattenRecord(rec Record, keys []string) []string {
	row := make([]string, len(keys))
	for i, k := range keys {
		row[i] = e.FlattenValue(k, rec[k])
	}
	return row
}
