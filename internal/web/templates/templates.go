// Package templates holds the templ components of the admin UI. Markup
// lives in the .templ files; run `templ generate` after editing them.
package templates

import (
	"net/url"
	"strconv"

	"github.com/JonMunkholm/joyeria/internal/core"
)

const styles = `
body{font-family:system-ui,sans-serif;margin:0;background:#f8f7f4;color:#222}
header.bar{background:#1f2937;color:#fff;padding:.75rem 1.5rem}
header.bar a{color:#fde68a;text-decoration:none}
main{padding:1.5rem}
table{border-collapse:collapse;width:100%;background:#fff}
th,td{border-bottom:1px solid #e5e7eb;padding:.5rem;text-align:left;vertical-align:top}
th a{color:inherit;text-decoration:none}
.badge{display:inline-block;border-radius:9999px;padding:.1rem .5rem;font-size:.75rem;margin-right:.25rem}
.badge-gray{background:#f3f4f6;color:#374151}
.badge-green{background:#dcfce7;color:#166534}
.badge-yellow{background:#fef9c3;color:#854d0e}
.badge-red{background:#fee2e2;color:#991b1b}
.badge-blue{background:#dbeafe;color:#1e40af}
.badge-purple{background:#f3e8ff;color:#6b21a8}
.badge-orange{background:#ffedd5;color:#9a3412}
.placeholder{color:#9ca3af;font-style:italic}
.thumb{width:40px;height:40px;object-fit:cover;border-radius:4px;margin-right:2px}
.alert{border:1px solid #fca5a5;background:#fef2f2;color:#991b1b;padding:.75rem;border-radius:6px;margin-bottom:1rem}
.warning{border-color:#fde68a;background:#fffbeb;color:#92400e}
.toolbar{display:flex;gap:1rem;align-items:center;margin-bottom:1rem;flex-wrap:wrap}
.pager{display:flex;gap:.5rem;margin-top:1rem;align-items:center}
.columns label{margin-right:.75rem;font-size:.85rem}
`

// styleTag wraps constant CSS in a style element.
func styleTag(css string) string { return "<style>" + css + "</style>" }

// TableGroup is one dashboard section.
type TableGroup struct {
	Name   string
	Tables []core.TableConfig
}

// TableParams is everything the table fragment shows.
type TableParams struct {
	View *core.TableView
	// AllColumns feeds the column picker; Pending is its checked state.
	AllColumns []core.ColumnDescriptor
	Pending    core.VisibleColumns
}

func (p TableParams) base() string   { return "/table/" + p.View.Config.Key }
func (p TableParams) id() string     { return "table-" + p.View.Config.Key }
func (p TableParams) target() string { return "#" + p.id() }

func (p TableParams) label(key string) string {
	return core.FieldLabel(key, p.View.Config.Columns)
}

// query builds a link to the table with the current search and sort,
// overridden by extra.
func (p TableParams) query(extra url.Values) string {
	v := url.Values{}
	if p.View.Search != "" {
		v.Set("search", p.View.Search)
	}
	v.Set("pageSize", strconv.Itoa(p.View.Result.PageSize))
	for k, vals := range extra {
		v[k] = vals
	}
	return p.base() + "?" + v.Encode()
}

func (p TableParams) sortURL(key string) string { return p.query(url.Values{"sort": {key}}) }

func (p TableParams) pageURL(page int) string {
	return p.query(url.Values{"page": {strconv.Itoa(page)}})
}

// sortArrow marks the header of the active sort column.
func (p TableParams) sortArrow(key string) string {
	switch {
	case p.View.Sort.Key != key:
		return ""
	case p.View.Sort.Direction == core.Desc:
		return " ▼"
	default:
		return " ▲"
	}
}

func (p TableParams) colspan() string {
	return strconv.Itoa(max(1, len(p.View.Columns)))
}

type exportLink struct {
	Href  string
	Label string
}

// exportLinks carries the current search and sort into each download.
func (p TableParams) exportLinks() []exportLink {
	q := url.Values{}
	if p.View.Search != "" {
		q.Set("search", p.View.Search)
	}
	if p.View.Sort.Key != "" {
		q.Set("sort", p.View.Sort.Key)
		q.Set("dir", string(p.View.Sort.Direction))
	}

	var links []exportLink
	for _, f := range []struct{ format, label string }{
		{"csv", "CSV"}, {"excel", "Excel"}, {"pdf", "PDF"},
	} {
		href := "/api/export/" + p.View.Config.Key + "/" + f.format
		if len(q) > 0 {
			href += "?" + q.Encode()
		}
		links = append(links, exportLink{Href: href, Label: f.label})
	}
	return links
}

func (p TableParams) columnsURL(action string) string {
	return "/api/tables/" + p.View.Config.Key + "/columns/" + action
}

func (p TableParams) toggleURL(key string) string {
	return p.columnsURL("toggle") + "?key=" + url.QueryEscape(key)
}

// columnActions are the picker buttons, posted to /columns/{action}.
var columnActions = []struct{ Action, Label string }{
	{"all", "Mostrar todas"},
	{"essential", "Solo esenciales"},
	{"reset", "Restablecer"},
	{"save", "Guardar"},
	{"discard", "Descartar"},
}

func badgeClass(d core.DisplayValue) string {
	tone := d.Tone
	if tone == "" {
		tone = core.ToneNeutral
	}
	return "badge badge-" + string(tone)
}
