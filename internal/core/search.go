package core

import (
	"sort"
	"strings"
	"sync"
)

const (
	truthySynonyms = "sí yes true verificado activo disponible"
	falsySynonyms  = "no false no verificado inactivo no disponible"
)

// Extractor turns a nested object into searchable text.
type Extractor func(obj map[string]any) string

// ExtractorRegistry maps column keys to nested-object extractors.
// Keys without an entry use the default extractor.
type ExtractorRegistry struct {
	mu    sync.RWMutex
	byKey map[string]Extractor
	def   Extractor
}

// NewExtractorRegistry returns a registry preloaded with the extractors
// for customer, product, category, subcategory and collection references.
func NewExtractorRegistry() *ExtractorRegistry {
	r := &ExtractorRegistry{byKey: make(map[string]Extractor), def: joinValues}
	r.Register("customer", fieldsExtractor("name", "lastName", "email", "username"))
	r.Register("product", productExtractor)
	r.Register("category", fieldsExtractor("name", "description"))
	r.Register("subcategory", fieldsExtractor("name", "description"))
	r.Register("collection", fieldsExtractor("name", "description"))
	return r
}

// Register installs fn for column key, replacing any previous entry.
func (r *ExtractorRegistry) Register(key string, fn Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKey[key] = fn
}

// Lookup returns the extractor for key or the default one.
func (r *ExtractorRegistry) Lookup(key string) Extractor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if fn, ok := r.byKey[key]; ok {
		return fn
	}
	return r.def
}

var productExtractor = fieldsExtractor("name", "description", "code", "price")

func fieldsExtractor(fields ...string) Extractor {
	return func(obj map[string]any) string {
		parts := make([]string, 0, len(fields))
		for _, f := range fields {
			if s := scalarString(obj[f]); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	}
}

// joinValues concatenates the object's scalar values in key order.
func joinValues(obj map[string]any) string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		if s := scalarString(obj[k]); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// SearchText returns the lowercase searchable text of one cell.
func (e *Engine) SearchText(rec Record, col ColumnDescriptor) string {
	return strings.ToLower(e.searchValue(col.Key, rec[col.Key]))
}

func (e *Engine) searchValue(key string, v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case bool:
		if val {
			return truthySynonyms
		}
		return falsySynonyms
	case map[string]any:
		return e.Extractors.Lookup(key)(val)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			var s string
			switch it := item.(type) {
			case map[string]any:
				if ref, ok := it["itemId"].(map[string]any); ok {
					s = productExtractor(ref)
				} else {
					s = e.Extractors.Lookup(key)(it)
				}
			default:
				s = scalarString(it)
			}
			if s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	}

	s := scalarString(v)
	if isDateKey(key) {
		if t, ok := ParseTime(v); ok {
			return s + " " + e.Format.Date(t)
		}
	}
	return s
}

// Matches reports whether every whitespace-separated term of query is a
// substring of the record's searchable text. An empty query matches.
func (e *Engine) Matches(rec Record, cols []ColumnDescriptor, query string) bool {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return true
	}

	var b strings.Builder
	for _, c := range cols {
		if !c.IsSearchable() {
			continue
		}
		b.WriteString(e.SearchText(rec, c))
		b.WriteByte(' ')
	}
	haystack := b.String()

	for _, term := range terms {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}

// Filter returns the records matching query, in input order.
func (e *Engine) Filter(records []Record, cols []ColumnDescriptor, query string) []Record {
	if strings.TrimSpace(query) == "" {
		out := make([]Record, len(records))
		copy(out, records)
		return out
	}
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if e.Matches(r, cols, query) {
			out = append(out, r)
		}
	}
	return out
}
