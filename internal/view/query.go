package view

import (
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// MaxSortLevels caps multi-column sorting.
const MaxSortLevels = 3

// FilterOperator is a comparison used by column filters.
type FilterOperator string

const (
	OpContains   FilterOperator = "contains"
	OpEquals     FilterOperator = "eq"
	OpStartsWith FilterOperator = "starts"
	OpEndsWith   FilterOperator = "ends"
	OpGreaterEq  FilterOperator = "gte"
	OpLessEq     FilterOperator = "lte"
	OpGreater    FilterOperator = "gt"
	OpLess       FilterOperator = "lt"
	OpIn         FilterOperator = "in"
)

// ColumnFilter is a single condition on one column. Filters combine with AND.
type ColumnFilter struct {
	Column   string         `json:"column"`
	Operator FilterOperator `json:"operator"`
	Value    string         `json:"value"` // comma-separated for OpIn
}

// SortSpec is one sort level.
type SortSpec struct {
	Column string `json:"column"`
	Dir    string `json:"dir"` // "asc" or "desc"
}

// Desc reports whether the level sorts descending.
func (s SortSpec) Desc() bool {
	return s.Dir == "desc"
}

// Query describes one derived view of a row collection.
type Query struct {
	Search  string         `json:"search,omitempty"` // global text filter
	Filters []ColumnFilter `json:"filters,omitempty"`
	Expr    string         `json:"expr,omitempty"` // CEL over `row`
	Sort    []SortSpec     `json:"sort,omitempty"`

	// Hidden columns are left out of Result.Columns.
	Hidden map[string]bool `json:"hidden,omitempty"`

	// Paginate windows the result to PageIndex/PageSize. Leave it off when
	// the rows already are the server's page.
	Paginate  bool `json:"paginate"`
	PageIndex int  `json:"pageIndex"`
	PageSize  int  `json:"pageSize"`
}

// ParseQuery reads a query from URL parameters:
//
//	search=text
//	sort=price,name&dir=desc,asc
//	filter[price]=gte:100
//	expr=row.price > 10.0
//	hide=supplier&show=notes
//	page=2&size=20   (page is zero-based)
func ParseQuery(v url.Values) Query {
	q := Query{
		Search: strings.TrimSpace(v.Get("search")),
		Expr:   strings.TrimSpace(v.Get("expr")),
		Sort:   parseSorts(v.Get("sort"), v.Get("dir")),
	}

	for key, vals := range v {
		if !strings.HasPrefix(key, "filter[") || !strings.HasSuffix(key, "]") || len(vals) == 0 {
			continue
		}
		col := key[len("filter[") : len(key)-1]
		op, value, ok := strings.Cut(vals[0], ":")
		if col == "" || !ok || value == "" {
			continue
		}
		q.Filters = append(q.Filters, ColumnFilter{Column: col, Operator: FilterOperator(op), Value: value})
	}
	sortFilters(q.Filters)

	for param, hidden := range map[string]bool{"hide": true, "show": false} {
		for _, col := range strings.Split(v.Get(param), ",") {
			if col = strings.TrimSpace(col); col == "" {
				continue
			}
			if q.Hidden == nil {
				q.Hidden = make(map[string]bool)
			}
			q.Hidden[col] = hidden
		}
	}

	if n, err := strconv.Atoi(v.Get("page")); err == nil && n >= 0 {
		q.PageIndex = n
	}
	if n, err := strconv.Atoi(v.Get("size")); err == nil && n > 0 {
		q.PageSize = n
	}
	return q
}

func parseSorts(sortStr, dirStr string) []SortSpec {
	if sortStr == "" {
		return nil
	}

	cols := strings.Split(sortStr, ",")
	dirs := strings.Split(dirStr, ",")

	var sorts []SortSpec
	for i, col := range cols {
		col = strings.TrimSpace(col)
		if col == "" {
			continue
		}
		dir := "asc"
		if i < len(dirs) && strings.TrimSpace(dirs[i]) == "desc" {
			dir = "desc"
		}
		sorts = append(sorts, SortSpec{Column: col, Dir: dir})
		if len(sorts) >= MaxSortLevels {
			break
		}
	}
	return sorts
}

// sortFilters orders filters by column so map iteration never changes the
// compiled expression.
func sortFilters(f []ColumnFilter) {
	slices.SortFunc(f, func(a, b ColumnFilter) int {
		return strings.Compare(a.Column, b.Column)
	})
}
