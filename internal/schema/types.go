// Package schema describes editable tables: their columns, cell types, key
// field, new-row template and feature flags. Definitions are loaded from YAML
// files and kept in a process-wide registry.
package schema

import (
	"github.com/JonMunkholm/editgrid/internal/table"
)

// CellType selects how a column is edited and how form input is coerced.
type CellType string

const (
	CellText     CellType = "text"
	CellNumber   CellType = "number"
	CellBoolean  CellType = "boolean"
	CellSelect   CellType = "select"
	CellCombobox CellType = "combobox" // searchable select
)

// Valid reports whether t is a known cell type. The empty type is treated as text.
func (t CellType) Valid() bool {
	switch t {
	case "", CellText, CellNumber, CellBoolean, CellSelect, CellCombobox:
		return true
	}
	return false
}

// Option is one choice of a select or combobox column.
type Option struct {
	Value string `yaml:"value" json:"value"`
	Label string `yaml:"label" json:"label"`
}

// Column defines a single table column.
type Column struct {
	ID       string   `yaml:"id" json:"id"`
	Header   string   `yaml:"header" json:"header"`
	Type     CellType `yaml:"type" json:"type"`
	DBColumn string   `yaml:"db_column" json:"-"` // defaults to ID
	Options  []Option `yaml:"options" json:"options,omitempty"`
	Required bool     `yaml:"required" json:"required,omitempty"`
	ReadOnly bool     `yaml:"read_only" json:"readOnly,omitempty"`
	Hidden   bool     `yaml:"hidden" json:"hidden,omitempty"` // initial visibility
	Sortable *bool    `yaml:"sortable" json:"-"`              // nil means sortable
}

// Column returns the database column name.
func (c Column) Column() string {
	if c.DBColumn != "" {
		return c.DBColumn
	}
	return c.ID
}

// IsSortable reports whether the view may sort by this column.
func (c Column) IsSortable() bool {
	return c.Sortable == nil || *c.Sortable
}

// Label returns the display text of value, using the option label for
// select and combobox columns.
func (c Column) Label(value any) string {
	s := Format(value)
	for _, o := range c.Options {
		if o.Value == s {
			if o.Label != "" {
				return o.Label
			}
			break
		}
	}
	return s
}

// Features mirrors the controller feature flags.
type Features struct {
	Editing          bool `yaml:"editing"`
	MultiRowEditing  bool `yaml:"multi_row_editing"`
	RowSelection     bool `yaml:"row_selection"`
	Pagination       bool `yaml:"pagination"`
	Sorting          bool `yaml:"sorting"`
	Filtering        bool `yaml:"filtering"`
	AddRow           bool `yaml:"add_row"`
	ManualPagination bool `yaml:"manual_pagination"`
}

// Definition contains everything needed to serve one editable table.
type Definition struct {
	Key      string `yaml:"key"`   // unique identifier, e.g. "products"
	Label    string `yaml:"label"` // display name
	Group    string `yaml:"group"`
	KeyField string `yaml:"key_field"`

	// Table is the backing database table for the postgres backend.
	Table string `yaml:"table"`
	// Sheet is the worksheet name for the xlsx backend.
	Sheet string `yaml:"sheet"`

	Columns   []Column  `yaml:"columns"`
	NewRow    table.Row `yaml:"new_row"`
	Features  Features  `yaml:"features"`
	PageSize  int       `yaml:"page_size"`
	PageSizes []int     `yaml:"page_sizes"`

	// Seed rows for the in-memory backend.
	Seed []table.Row `yaml:"seed"`
}

// Column looks up a column by id.
func (d Definition) Column(id string) (Column, bool) {
	for _, c := range d.Columns {
		if c.ID == id {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnIDs returns the column ids in display order.
func (d Definition) ColumnIDs() []string {
	ids := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		ids[i] = c.ID
	}
	return ids
}

// KeyFieldOrDefault returns the identity field name.
func (d Definition) KeyFieldOrDefault() string {
	if d.KeyField != "" {
		return d.KeyField
	}
	return table.DefaultKeyField
}

// TableOptions builds controller options from the definition. Gateway,
// callbacks and logger are left for the caller.
func (d Definition) TableOptions() table.Options {
	f := d.Features
	return table.Options{
		EnableEditing:         f.Editing,
		EnableMultiRowEditing: f.MultiRowEditing,
		EnableRowSelection:    f.RowSelection,
		EnablePagination:      f.Pagination,
		EnableSorting:         f.Sorting,
		EnableFiltering:       f.Filtering,
		EnableAddRow:          f.AddRow,
		ManualPagination:      f.ManualPagination,
		InitialPageSize:       d.PageSize,
		PageSizeOptions:       d.PageSizes,
		KeyField:              d.KeyFieldOrDefault(),
		NewRowTemplate:        d.NewRow,
	}
}
