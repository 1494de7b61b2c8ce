package view

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/editgrid/internal/schema"
	"github.com/JonMunkholm/editgrid/internal/table"
)

func testDefinition() schema.Definition {
	noSort := false
	return schema.Definition{
		Key: "products",
		Columns: []schema.Column{
			{ID: "id"},
			{ID: "name", Type: schema.CellText},
			{ID: "category", Type: schema.CellSelect, Options: []schema.Option{
				{Value: "hw", Label: "Hardware"},
				{Value: "sw", Label: "Software"},
			}},
			{ID: "price", Type: schema.CellNumber},
			{ID: "in_stock", Type: schema.CellBoolean},
			{ID: "notes", Hidden: true, Sortable: &noSort},
		},
	}
}

func testRows() []table.Row {
	return []table.Row{
		{"id": "1", "name": "Keyboard", "category": "hw", "price": 49.5, "in_stock": true},
		{"id": "2", "name": "monitor", "category": "hw", "price": 229, "in_stock": false},
		{"id": "3", "name": "Office", "category": "sw", "price": int64(99), "in_stock": true},
		{"id": "4", "name": "Antivirus", "category": "sw", "price": nil, "in_stock": false},
		{"id": "5", "name": "Mouse", "category": "hw", "price": 19.99, "in_stock": true},
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(testDefinition())
	require.NoError(t, err)
	return e
}

func keys(res Result) []table.Key {
	out := make([]table.Key, len(res.Items))
	for i, it := range res.Items {
		out[i] = it.Key
	}
	return out
}

func TestCompute_NoQuery(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Compute(testRows(), Query{})
	require.NoError(t, err)
	assert.Equal(t, []table.Key{"1", "2", "3", "4", "5"}, keys(res))
	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 1, res.PageCount)

	ids := make([]string, len(res.Columns))
	for i, c := range res.Columns {
		ids[i] = c.ID
	}
	assert.Equal(t, []string{"id", "name", "category", "price", "in_stock"}, ids)
}

func TestCompute_GlobalSearch(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Compute(testRows(), Query{Search: "MON"})
	require.NoError(t, err)
	assert.Equal(t, []table.Key{"2"}, keys(res))

	res, err = e.Compute(testRows(), Query{Search: "software"})
	require.NoError(t, err)
	assert.Equal(t, []table.Key{"3", "4"}, keys(res), "option labels are searchable")
}

func TestCompute_ColumnFilters(t *testing.T) {
	tests := []struct {
		name    string
		filters []ColumnFilter
		want    []table.Key
	}{
		{"contains", []ColumnFilter{{Column: "name", Operator: OpContains, Value: "o"}}, []table.Key{"1", "2", "3", "5"}},
		{"starts", []ColumnFilter{{Column: "name", Operator: OpStartsWith, Value: "m"}}, []table.Key{"2", "5"}},
		{"ends", []ColumnFilter{{Column: "name", Operator: OpEndsWith, Value: "RUS"}}, []table.Key{"4"}},
		{"equals text", []ColumnFilter{{Column: "name", Operator: OpEquals, Value: "mouse"}}, []table.Key{"5"}},
		{"equals number", []ColumnFilter{{Column: "price", Operator: OpEquals, Value: "99"}}, []table.Key{"3"}},
		{"equals bool", []ColumnFilter{{Column: "in_stock", Operator: OpEquals, Value: "yes"}}, []table.Key{"1", "3", "5"}},
		{"gte skips nil", []ColumnFilter{{Column: "price", Operator: OpGreaterEq, Value: "$99"}}, []table.Key{"2", "3"}},
		{"lt", []ColumnFilter{{Column: "price", Operator: OpLess, Value: "50"}}, []table.Key{"1", "5"}},
		{"in", []ColumnFilter{{Column: "category", Operator: OpIn, Value: "sw, xx"}}, []table.Key{"3", "4"}},
		{"combined", []ColumnFilter{
			{Column: "category", Operator: OpEquals, Value: "hw"},
			{Column: "price", Operator: OpGreater, Value: "20"},
		}, []table.Key{"1", "2"}},
		{"quote in value", []ColumnFilter{{Column: "name", Operator: OpContains, Value: "it's"}}, []table.Key{}},
	}
	e := newTestEngine(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Compute(testRows(), Query{Filters: tt.filters})
			require.NoError(t, err)
			assert.Equal(t, tt.want, keys(res))
		})
	}
}

func TestCompute_FilterErrors(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Compute(testRows(), Query{Filters: []ColumnFilter{{Column: "nope", Operator: OpEquals, Value: "x"}}})
	assert.ErrorIs(t, err, ErrUnknownColumn)

	_, err = e.Compute(testRows(), Query{Filters: []ColumnFilter{{Column: "name", Operator: "like", Value: "x"}}})
	assert.ErrorIs(t, err, ErrUnknownOperator)

	_, err = e.Compute(testRows(), Query{Filters: []ColumnFilter{{Column: "price", Operator: OpGreater, Value: "abc"}}})
	assert.ErrorIs(t, err, ErrInvalidValue)

	_, err = e.Compute(testRows(), Query{Expr: "row.price >"})
	assert.Error(t, err)

	_, err = e.Compute(testRows(), Query{Expr: "row.name"})
	assert.ErrorIs(t, err, ErrNotBoolean)
}

func TestCompute_Expression(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Compute(testRows(), Query{Expr: `row.category == 'hw' && row.in_stock`})
	require.NoError(t, err)
	assert.Equal(t, []table.Key{"1", "5"}, keys(res))

	// Cached program gives the same answer.
	res, err = e.Compute(testRows(), Query{Expr: `row.category == 'hw' && row.in_stock`})
	require.NoError(t, err)
	assert.Len(t, res.Items, 2)
}

func TestCompute_Sort(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Compute(testRows(), Query{Sort: []SortSpec{{Column: "price", Dir: "desc"}}})
	require.NoError(t, err)
	assert.Equal(t, []table.Key{"2", "3", "1", "5", "4"}, keys(res), "nil sorts last")

	res, err = e.Compute(testRows(), Query{Sort: []SortSpec{{Column: "name", Dir: "asc"}}})
	require.NoError(t, err)
	assert.Equal(t, []table.Key{"4", "1", "2", "5", "3"}, keys(res), "case-insensitive text")

	res, err = e.Compute(testRows(), Query{Sort: []SortSpec{
		{Column: "category", Dir: "desc"},
		{Column: "in_stock", Dir: "asc"},
	}})
	require.NoError(t, err)
	assert.Equal(t, []table.Key{"4", "3", "2", "1", "5"}, keys(res))

	// Index still points into the input collection.
	assert.Equal(t, 3, res.Items[0].Index)

	_, err = e.Compute(testRows(), Query{Sort: []SortSpec{{Column: "notes"}}})
	assert.Error(t, err)
}

func TestCompute_Paginate(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Compute(testRows(), Query{Paginate: true, PageIndex: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, []table.Key{"3", "4"}, keys(res))
	assert.Equal(t, 3, res.PageCount)
	assert.Equal(t, 5, res.Total)

	res, err = e.Compute(testRows(), Query{Paginate: true, PageIndex: 9, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, res.PageIndex, "index clamps to the last page")
	assert.Equal(t, []table.Key{"5"}, keys(res))

	res, err = e.Compute(nil, Query{Paginate: true})
	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Zero(t, res.PageCount)
	assert.Equal(t, table.DefaultPageSize, res.PageSize)
}

func TestCompute_Visibility(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Compute(testRows(), Query{Hidden: map[string]bool{"name": true, "notes": false}})
	require.NoError(t, err)

	ids := make([]string, len(res.Columns))
	for i, c := range res.Columns {
		ids[i] = c.ID
	}
	assert.Equal(t, []string{"id", "category", "price", "in_stock", "notes"}, ids)
}

func TestParseQuery(t *testing.T) {
	v := url.Values{}
	v.Set("search", " key ")
	v.Set("sort", "price,name,category,id")
	v.Set("dir", "desc")
	v.Set("filter[price]", "gte:10")
	v.Set("filter[category]", "in:hw,sw")
	v.Set("filter[bad]", "novalue")
	v.Set("hide", "notes")
	v.Set("show", "price")
	v.Set("page", "2")
	v.Set("size", "20")

	q := ParseQuery(v)
	assert.Equal(t, "key", q.Search)
	assert.Equal(t, []SortSpec{
		{Column: "price", Dir: "desc"},
		{Column: "name", Dir: "asc"},
		{Column: "category", Dir: "asc"},
	}, q.Sort)
	assert.Equal(t, []ColumnFilter{
		{Column: "category", Operator: OpIn, Value: "hw,sw"},
		{Column: "price", Operator: OpGreaterEq, Value: "10"},
	}, q.Filters)
	assert.Equal(t, map[string]bool{"notes": true, "price": false}, q.Hidden)
	assert.Equal(t, 2, q.PageIndex)
	assert.Equal(t, 20, q.PageSize)
}
