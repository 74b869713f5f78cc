package core

import (
	"fmt"
	"strconv"
	"strings"
)

// DisplayKind is the shape of a rendered cell.
type DisplayKind string

const (
	KindText        DisplayKind = "text"
	KindBadge       DisplayKind = "badge"
	KindBadgeRow    DisplayKind = "badge-row"
	KindImage       DisplayKind = "image"
	KindGallery     DisplayKind = "gallery"
	KindPlaceholder DisplayKind = "placeholder"
)

// DisplayValue is a rendered cell: a value plus styling intent.
type DisplayValue struct {
	Kind     DisplayKind    `json:"kind"`
	Text     string         `json:"text,omitempty"`
	Tone     Tone           `json:"tone,omitempty"`
	Items    []DisplayValue `json:"items,omitempty"`
	Images   []string       `json:"images,omitempty"`
	Overflow int            `json:"overflow,omitempty"`
}

// String flattens the display value for plain-text surfaces.
func (d DisplayValue) String() string {
	var s string
	switch d.Kind {
	case KindBadgeRow:
		parts := make([]string, len(d.Items))
		for i, it := range d.Items {
			parts[i] = it.Text
		}
		s = strings.Join(parts, ", ")
	case KindImage, KindGallery:
		s = strings.Join(d.Images, " ")
	default:
		s = d.Text
	}
	if d.Overflow > 0 {
		s += " +" + strconv.Itoa(d.Overflow)
	}
	return s
}

func text(s string) DisplayValue { return DisplayValue{Kind: KindText, Text: s} }

func placeholder(s string) DisplayValue { return DisplayValue{Kind: KindPlaceholder, Text: s} }

func badge(s string, tone Tone) DisplayValue {
	return DisplayValue{Kind: KindBadge, Text: s, Tone: tone}
}

const (
	missingValue  = "-"
	noImage       = "Sin imagen"
	noItems       = "Sin elementos"
	itemFallback  = "Elemento"
	galleryLimit  = 3
	badgeRowLimit = 2
)

// CellKind is the renderer branch a column resolves to.
type CellKind int

const (
	CellDynamic CellKind = iota
	CellText
	CellBadge
	CellBoolean
	CellNumber
	CellCurrency
	CellPercentage
	CellDate
	CellImage
	CellGallery
	CellItemList
	CellReference
)

// ResolveCellKind maps a column's declared type to its renderer branch.
func ResolveCellKind(col ColumnDescriptor) CellKind {
	switch col.Type {
	case TypeText:
		return CellText
	case TypeBadge:
		return CellBadge
	case TypeBoolean:
		return CellBoolean
	case TypeNumber:
		return CellNumber
	case TypeCurrency:
		return CellCurrency
	case TypePercentage:
		return CellPercentage
	case TypeDate:
		return CellDate
	case TypeImage:
		return CellImage
	case TypeImageGallery:
		return CellGallery
	case TypeBadgeList:
		return CellItemList
	case TypeReference:
		return CellReference
	default:
		return CellDynamic
	}
}

// Render produces the display value of one cell. It never fails: missing
// or malformed input yields a placeholder.
func (e *Engine) Render(rec Record, col ColumnDescriptor) DisplayValue {
	return e.renderKind(ResolveCellKind(col), col.Key, rec[col.Key])
}

// RenderRow renders the given columns of rec keyed by column key.
func (e *Engine) RenderRow(rec Record, cols []ColumnDescriptor) map[string]DisplayValue {
	out := make(map[string]DisplayValue, len(cols))
	for _, c := range cols {
		out[c.Key] = e.Render(rec, c)
	}
	return out
}

func (e *Engine) renderKind(kind CellKind, key string, v any) DisplayValue {
	switch kind {
	case CellText:
		if _, composite := v.(map[string]any); composite {
			return e.renderDynamic(key, v)
		}
		if _, composite := v.([]any); composite {
			return e.renderDynamic(key, v)
		}
		if v == nil {
			return placeholder(missingValue)
		}
		return text(scalarString(v))

	case CellBadge:
		return renderBadge(v)

	case CellBoolean:
		if truthy(v) {
			return DisplayValue{Kind: KindText, Text: "Sí", Tone: ToneSuccess}
		}
		return DisplayValue{Kind: KindText, Text: "No", Tone: ToneDanger}

	case CellNumber:
		if f, ok := toFloat(v); ok {
			return text(e.Format.Number(f))
		}
		if v == nil {
			return placeholder(missingValue)
		}
		return text(scalarString(v))

	case CellCurrency:
		if f, ok := toFloat(v); ok {
			return text(fmt.Sprintf("$%.2f", f))
		}
		return placeholder(missingValue)

	case CellPercentage:
		if f, ok := toFloat(v); ok {
			return text(fmt.Sprintf("%.1f%%", f*100))
		}
		return placeholder(missingValue)

	case CellDate:
		if t, ok := ParseTime(v); ok {
			return text(e.Format.Date(t))
		}
		return placeholder(missingValue)

	case CellImage:
		if url := imageURL(v); url != "" {
			return DisplayValue{Kind: KindImage, Images: []string{url}}
		}
		return placeholder(noImage)

	case CellGallery:
		return renderGallery(v)

	case CellItemList:
		return renderItemList(v)

	case CellReference:
		if obj, ok := v.(map[string]any); ok {
			return text(referenceLabel(key, obj))
		}
		return e.renderDynamic(key, v)

	default:
		return e.renderDynamic(key, v)
	}
}

func renderBadge(v any) DisplayValue {
	switch val := v.(type) {
	case nil:
		return placeholder(missingValue)
	case bool:
		if val {
			return badge("Verificado", ToneSuccess)
		}
		return badge("No verificado", ToneDanger)
	case map[string]any:
		return badge(ObjectLabel(val), ToneNeutral)
	}
	s := scalarString(v)
	if s == "" {
		return placeholder(missingValue)
	}
	return badge(s, StatusTone(s))
}

func imageURL(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case map[string]any:
		for _, k := range []string{"url", "secure_url", "src"} {
			if s := scalarString(val[k]); s != "" {
				return s
			}
		}
	case []any:
		if len(val) > 0 {
			return imageURL(val[0])
		}
	}
	return ""
}

func renderGallery(v any) DisplayValue {
	arr, _ := v.([]any)
	urls := make([]string, 0, len(arr))
	for _, item := range arr {
		if u := imageURL(item); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		if s, ok := v.(string); ok && s != "" {
			return DisplayValue{Kind: KindGallery, Images: []string{s}}
		}
		return placeholder(noImage)
	}
	out := DisplayValue{Kind: KindGallery, Images: urls}
	if len(urls) > galleryLimit {
		out.Images = urls[:galleryLimit]
		out.Overflow = len(urls) - galleryLimit
	}
	return out
}

func renderItemList(v any) DisplayValue {
	arr, ok := v.([]any)
	if !ok || len(arr) == 0 {
		return placeholder(noItems)
	}
	items := make([]DisplayValue, 0, badgeRowLimit)
	for _, it := range arr {
		if len(items) == badgeRowLimit {
			break
		}
		switch val := it.(type) {
		case map[string]any:
			items = append(items, badge(itemLabel(val), ToneInfo))
		default:
			items = append(items, badge(scalarString(val), ToneInfo))
		}
	}
	return DisplayValue{Kind: KindBadgeRow, Items: items, Overflow: len(arr) - len(items)}
}

func (e *Engine) renderDynamic(key string, v any) DisplayValue {
	switch val := v.(type) {
	case nil:
		return placeholder(missingValue)
	case bool:
		if val {
			return DisplayValue{Kind: KindText, Text: "Sí", Tone: ToneSuccess}
		}
		return DisplayValue{Kind: KindText, Text: "No", Tone: ToneDanger}
	case map[string]any:
		return text(referenceLabel(key, val))
	case []any:
		return renderArray(val)
	case string:
		if isDateKey(key) {
			if t, ok := ParseTime(val); ok {
				return text(e.Format.DateTime(t))
			}
		}
		if val == "" {
			return placeholder(missingValue)
		}
		return text(val)
	default:
		return text(scalarString(v))
	}
}

func renderArray(arr []any) DisplayValue {
	if len(arr) == 0 {
		return placeholder(noItems)
	}

	allStrings := true
	for _, it := range arr {
		if _, ok := it.(string); !ok {
			allStrings = false
			break
		}
	}
	if allStrings {
		items := make([]DisplayValue, len(arr))
		for i, it := range arr {
			items[i] = badge(it.(string), ToneNeutral)
		}
		return DisplayValue{Kind: KindBadgeRow, Items: items}
	}

	items := make([]DisplayValue, 0, badgeRowLimit)
	for _, it := range arr {
		if len(items) == badgeRowLimit {
			break
		}
		items = append(items, badge(arrayElementLabel(it), ToneNeutral))
	}
	return DisplayValue{Kind: KindBadgeRow, Items: items, Overflow: len(arr) - len(items)}
}

// arrayElementLabel labels an element of an untyped array cell.
func arrayElementLabel(v any) string {
	obj, ok := v.(map[string]any)
	if !ok {
		if s := scalarString(v); s != "" {
			return s
		}
		return itemFallback
	}
	if ref, ok := obj["itemId"].(map[string]any); ok {
		return itemLabel(mergeItem(obj, ref))
	}

	name := scalarString(obj["name"])
	if name != "" && obj["price"] != nil {
		return name + " - " + money(obj["price"])
	}
	if name != "" {
		return name
	}
	for _, k := range []string{"code", "correlative", "username", "orderCode"} {
		if s := scalarString(obj[k]); s != "" {
			return s
		}
	}
	return itemFallback
}

func mergeItem(item, ref map[string]any) map[string]any {
	out := map[string]any{"itemId": ref}
	if q, ok := item["quantity"]; ok {
		out["quantity"] = q
	}
	return out
}

// referenceLabel labels a nested object according to the field it sits in.
// A priced object keeps the "name - $price" label exports use.
func referenceLabel(key string, obj map[string]any) string {
	if scalarString(obj["name"]) != "" && obj["price"] != nil {
		return ObjectLabel(obj)
	}
	switch key {
	case "customer", "user", "client":
		name := scalarString(obj["name"])
		last := scalarString(obj["lastName"])
		if full := strings.TrimSpace(name + " " + last); full != "" {
			return full
		}
	case "product", "item", "items":
		if name := scalarString(obj["name"]); name != "" {
			return name
		}
	case "provider", "supplier":
		for _, k := range []string{"name", "contactPerson"} {
			if s := scalarString(obj[k]); s != "" {
				return s
			}
		}
	case "category", "subcategory", "collection", "family":
		if s := scalarString(obj["name"]); s != "" {
			return s
		}
	}
	return ObjectLabel(obj)
}

// truthy follows JSON-ish truthiness: false, 0, "" and nil are false.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != "" && !strings.EqualFold(val, "false")
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	return true
}
