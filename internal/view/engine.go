// Package view derives what a table shows from a row collection: global and
// column filtering (compiled to CEL), multi-column sorting, column visibility,
// row selection and client-side pagination.
//
// The engine never mutates rows. Every Item keeps the row's position in the
// input collection so cell edits can be routed back through table.CellMeta
// regardless of how the view was sorted or paged.
package view

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/editgrid/internal/schema"
	"github.com/JonMunkholm/editgrid/internal/table"
)

// Item is one row of a derived view.
type Item struct {
	Index int       `json:"index"` // position in the working collection
	Key   table.Key `json:"key"`
	Row   table.Row `json:"row"`
}

// Result is a computed view.
type Result struct {
	Items     []Item          `json:"items"`
	Total     int             `json:"total"` // rows left after filtering
	PageIndex int             `json:"pageIndex"`
	PageSize  int             `json:"pageSize"`
	PageCount int             `json:"pageCount"`
	Columns   []schema.Column `json:"columns"` // visible columns in order
}

// Engine computes views for one table definition. It is safe for concurrent use.
type Engine struct {
	def      schema.Definition
	programs *programCache
}

// NewEngine creates an engine for def.
func NewEngine(def schema.Definition) (*Engine, error) {
	programs, err := newProgramCache()
	if err != nil {
		return nil, err
	}
	return &Engine{def: def, programs: programs}, nil
}

// Definition returns the definition the engine was built for.
func (e *Engine) Definition() schema.Definition {
	return e.def
}

// Compute applies q to rows. Errors come only from invalid filters, unknown
// sort columns or a non-boolean expression.
func (e *Engine) Compute(rows []table.Row, q Query) (Result, error) {
	keyField := e.def.KeyFieldOrDefault()

	pred, err := e.buildPredicate(q.Filters, q.Expr)
	if err != nil {
		return Result{}, err
	}
	search := strings.ToLower(strings.TrimSpace(q.Search))

	items := make([]Item, 0, len(rows))
	for i, row := range rows {
		if search != "" && !e.matchesSearch(row, search) {
			continue
		}
		if pred != nil {
			ok, err := pred(row)
			if err != nil {
				return Result{}, err
			}
			if !ok {
				continue
			}
		}
		key, _ := table.KeyOf(row, keyField)
		items = append(items, Item{Index: i, Key: key, Row: row})
	}

	if err := e.sortItems(items, q.Sort); err != nil {
		return Result{}, err
	}

	res := Result{
		Total:   len(items),
		Columns: e.visibleColumns(q.Hidden),
	}

	if !q.Paginate {
		res.Items = items
		res.PageSize = len(items)
		if len(items) > 0 {
			res.PageCount = 1
		}
		return res, nil
	}

	size := q.PageSize
	if size <= 0 {
		size = table.DefaultPageSize
	}
	res.PageSize = size
	res.PageCount = (len(items) + size - 1) / size
	res.PageIndex = q.PageIndex
	if res.PageIndex >= res.PageCount && res.PageCount > 0 {
		res.PageIndex = res.PageCount - 1
	}
	if res.PageIndex < 0 {
		res.PageIndex = 0
	}

	start := res.PageIndex * size
	end := min(start+size, len(items))
	if start >= len(items) {
		res.Items = []Item{}
	} else {
		res.Items = items[start:end]
	}
	return res, nil
}

// matchesSearch reports whether any defined column contains needle,
// comparing both the raw value and the option label.
func (e *Engine) matchesSearch(row table.Row, needle string) bool {
	for _, col := range e.def.Columns {
		v, ok := row[col.ID]
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(schema.Format(v)), needle) {
			return true
		}
		if len(col.Options) > 0 && strings.Contains(strings.ToLower(col.Label(v)), needle) {
			return true
		}
	}
	return false
}

func (e *Engine) visibleColumns(hidden map[string]bool) []schema.Column {
	cols := make([]schema.Column, 0, len(e.def.Columns))
	for _, c := range e.def.Columns {
		hide := c.Hidden
		if h, ok := hidden[c.ID]; ok {
			hide = h
		}
		if !hide {
			cols = append(cols, c)
		}
	}
	return cols
}

func (e *Engine) sortItems(items []Item, specs []SortSpec) error {
	if len(specs) == 0 {
		return nil
	}
	for _, s := range specs {
		col, ok := e.def.Column(s.Column)
		if !ok {
			return fmt.Errorf("sort: %w: %s", ErrUnknownColumn, s.Column)
		}
		if !col.IsSortable() {
			return fmt.Errorf("sort: column %q is not sortable", s.Column)
		}
	}
	sortStable(items, specs)
	return nil
}
