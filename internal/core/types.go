package core

import (
	"errors"
	"fmt"
	"strings"
)

// Record is one decoded JSON object returned by the upstream API.
// The engine never mutates a Record.
type Record map[string]any

// ID returns the record's upstream identifier, if any.
func (r Record) ID() string {
	switch v := r["_id"].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// ColumnType selects the renderer branch for a column.
type ColumnType string

const (
	TypeDefault      ColumnType = ""
	TypeText         ColumnType = "text"
	TypeBadge        ColumnType = "badge"
	TypeBoolean      ColumnType = "boolean"
	TypeNumber       ColumnType = "number"
	TypeCurrency     ColumnType = "currency"
	TypePercentage   ColumnType = "percentage"
	TypeDate         ColumnType = "date"
	TypeImage        ColumnType = "image"
	TypeImageGallery ColumnType = "image-gallery"
	TypeBadgeList    ColumnType = "badge-list"
	TypeReference    ColumnType = "reference"
	TypeArray        ColumnType = "array"
)

var knownColumnTypes = map[ColumnType]bool{
	TypeDefault: true, TypeText: true, TypeBadge: true, TypeBoolean: true,
	TypeNumber: true, TypeCurrency: true, TypePercentage: true, TypeDate: true,
	TypeImage: true, TypeImageGallery: true, TypeBadgeList: true,
	TypeReference: true, TypeArray: true,
}

// SortKind selects the comparator used when sorting by a column.
type SortKind string

const (
	SortLexicographic SortKind = "lexicographic"
	SortNumeric       SortKind = "numeric"
	SortDate          SortKind = "date"
)

// Priority tiers for default visibility on narrow screens.
const (
	PriorityEssential = 1
	PriorityMedium    = 2
	PriorityOptional  = 3
)

// ColumnDescriptor describes how one top-level field of a Record is
// searched, sorted, shown and prioritized.
type ColumnDescriptor struct {
	Key        string     `yaml:"key" json:"key"`
	Label      string     `yaml:"label" json:"label"`
	Type       ColumnType `yaml:"type,omitempty" json:"type,omitempty"`
	Sortable   *bool      `yaml:"sortable,omitempty" json:"sortable,omitempty"`
	Searchable *bool      `yaml:"searchable,omitempty" json:"searchable,omitempty"`
	Priority   int        `yaml:"priority,omitempty" json:"priority,omitempty"`
	Hidden     bool       `yaml:"hidden,omitempty" json:"hidden,omitempty"`
	Width      string     `yaml:"width,omitempty" json:"width,omitempty"`
	Sort       SortKind   `yaml:"sort,omitempty" json:"sort,omitempty"`
}

// IsSortable reports whether the column accepts sort requests (default true).
func (c ColumnDescriptor) IsSortable() bool {
	return c.Sortable == nil || *c.Sortable
}

// IsSearchable reports whether the column contributes to search (default true).
func (c ColumnDescriptor) IsSearchable() bool {
	return c.Searchable == nil || *c.Searchable
}

// EffectivePriority returns Priority, defaulting to PriorityMedium.
func (c ColumnDescriptor) EffectivePriority() int {
	if c.Priority == 0 {
		return PriorityMedium
	}
	return c.Priority
}

// EffectiveSort returns the declared sort kind or the one implied by Type.
func (c ColumnDescriptor) EffectiveSort() SortKind {
	if c.Sort != "" {
		return c.Sort
	}
	switch c.Type {
	case TypeNumber, TypeCurrency, TypePercentage,
		TypeBadgeList, TypeImageGallery, TypeArray:
		return SortNumeric
	case TypeDate:
		return SortDate
	default:
		return SortLexicographic
	}
}

// Actions gates the CRUD intents a table offers.
type Actions struct {
	CanAdd    bool `yaml:"canAdd" json:"canAdd"`
	CanEdit   bool `yaml:"canEdit" json:"canEdit"`
	CanDelete bool `yaml:"canDelete" json:"canDelete"`
	CanExport bool `yaml:"canExport" json:"canExport"`
	CanView   bool `yaml:"canView" json:"canView"`
}

// FormField is carried for callers that render add/edit forms.
type FormField struct {
	Key      string   `yaml:"key" json:"key"`
	Label    string   `yaml:"label" json:"label"`
	Type     string   `yaml:"type,omitempty" json:"type,omitempty"`
	Required bool     `yaml:"required,omitempty" json:"required,omitempty"`
	Options  []string `yaml:"options,omitempty" json:"options,omitempty"`
}

// TableConfig is the immutable declaration of one entity's table.
type TableConfig struct {
	Key        string             `yaml:"key" json:"key"`
	Title      string             `yaml:"title" json:"title"`
	Group      string             `yaml:"group" json:"group"`
	Columns    []ColumnDescriptor `yaml:"columns" json:"columns"`
	Actions    Actions            `yaml:"actions" json:"actions"`
	FormFields []FormField        `yaml:"formFields,omitempty" json:"formFields,omitempty"`
}

// ErrInvalidConfig wraps every TableConfig validation failure.
var ErrInvalidConfig = errors.New("invalid table config")

// Validate checks the structural invariants of a table declaration.
func (t TableConfig) Validate() error {
	var errs []string
	if t.Key == "" {
		errs = append(errs, "key is required")
	}
	if len(t.Columns) == 0 {
		errs = append(errs, "at least one column is required")
	}

	seen := make(map[string]bool, len(t.Columns))
	for i, c := range t.Columns {
		switch {
		case c.Key == "":
			errs = append(errs, fmt.Sprintf("column %d: key is required", i))
		case strings.Contains(c.Key, "."):
			errs = append(errs, fmt.Sprintf("column %q: nested paths are not supported", c.Key))
		case seen[c.Key]:
			errs = append(errs, fmt.Sprintf("column %q: duplicate key", c.Key))
		}
		seen[c.Key] = true

		if !knownColumnTypes[c.Type] {
			errs = append(errs, fmt.Sprintf("column %q: unknown type %q", c.Key, c.Type))
		}
		if p := c.EffectivePriority(); p < PriorityEssential || p > PriorityOptional {
			errs = append(errs, fmt.Sprintf("column %q: priority %d out of range 1-3", c.Key, c.Priority))
		}
		switch c.Sort {
		case "", SortLexicographic, SortNumeric, SortDate:
		default:
			errs = append(errs, fmt.Sprintf("column %q: unknown sort %q", c.Key, c.Sort))
		}
	}

	fields := make(map[string]bool, len(t.FormFields))
	for _, f := range t.FormFields {
		if fields[f.Key] {
			errs = append(errs, fmt.Sprintf("form field %q: duplicate key", f.Key))
		}
		fields[f.Key] = true
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w %q: %s", ErrInvalidConfig, t.Key, strings.Join(errs, "; "))
	}
	return nil
}

// Column returns the descriptor for key.
func (t TableConfig) Column(key string) (ColumnDescriptor, bool) {
	for _, c := range t.Columns {
		if c.Key == key {
			return c, true
		}
	}
	return ColumnDescriptor{}, false
}

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection maps anything other than "desc" to Asc.
func ParseDirection(s string) Direction {
	if strings.EqualFold(s, string(Desc)) {
		return Desc
	}
	return Asc
}

// SortState is the current sort column and direction. A zero Key means
// the records keep their upstream order.
type SortState struct {
	Key       string    `json:"key"`
	Direction Direction `json:"direction"`
}

// Toggle returns the state after a click on key: the same key flips the
// direction, a new key starts ascending.
func (s SortState) Toggle(key string) SortState {
	if s.Key == key {
		if s.Direction == Desc {
			return SortState{Key: key, Direction: Asc}
		}
		return SortState{Key: key, Direction: Desc}
	}
	return SortState{Key: key, Direction: Asc}
}

// Reset returns the state used after a data refresh.
func (s SortState) Reset() SortState {
	return SortState{Direction: Asc}
}

// DefaultPageSize is used when a view request carries no page size.
const DefaultPageSize = 10

// Pagination describes one page over a filtered and sorted record set.
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"pageSize"`
	Total    int `json:"total"`
}

// TotalPages returns ceil(Total/PageSize), at least 1.
func (p Pagination) TotalPages() int {
	size := p.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	pages := (p.Total + size - 1) / size
	if pages < 1 {
		return 1
	}
	return pages
}

// Clamp returns p with PageSize defaulted and Page inside [1, TotalPages].
func (p Pagination) Clamp() Pagination {
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.Page < 1 {
		p.Page = 1
	}
	if last := p.TotalPages(); p.Page > last {
		p.Page = last
	}
	return p
}

// Bounds returns the half-open slice range of the page.
func (p Pagination) Bounds() (start, end int) {
	start = (p.Page - 1) * p.PageSize
	if start > p.Total {
		start = p.Total
	}
	end = start + p.PageSize
	if end > p.Total {
		end = p.Total
	}
	return start, end
}

// VisibleColumns maps column keys to their visibility.
type VisibleColumns map[string]bool
