package pgstore

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/editgrid/internal/table"
	"github.com/JonMunkholm/editgrid/internal/view"
)

func storedRow(id, name string) []any {
	var price pgtype.Numeric
	_ = price.Scan("9.99")
	return []any{id, name, price, true, nil}
}

func TestSaveRow(t *testing.T) {
	db := &fakeDB{queryFn: func(string, []any) ([][]any, error) {
		return [][]any{storedRow("p1", "Widget (stored)")}, nil
	}}
	s := newTestStore(t, db)

	res, err := s.SaveRow(context.Background(), table.Row{"id": "p1", "name": "Widget"}, 0)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, table.Row{"id": "p1", "name": "Widget (stored)", "price": 9.99, "in_stock": true, "notes": nil}, res.Data)

	require.Len(t, db.queries, 1)
	assert.True(t, strings.HasPrefix(db.queries[0].sql, `UPDATE "products"`))
}

func TestSaveRow_Failures(t *testing.T) {
	tests := []struct {
		name      string
		row       table.Row
		queryErr  error
		noRows    bool
		wantError string // reported failure
		wantCode  string // unexpected error code
	}{
		{name: "missing key", row: table.Row{"name": "x"}, wantError: "A row is missing its key"},
		{name: "row gone", row: table.Row{"id": "p1"}, noRows: true, wantError: "This row no longer exists"},
		{
			name:      "unique violation",
			row:       table.Row{"id": "p1", "name": "x"},
			queryErr:  &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"},
			wantError: "A row with this key already exists",
		},
		{
			name:      "bad number",
			row:       table.Row{"id": "p1", "price": "lots"},
			wantError: "Invalid number format",
		},
		{
			name:     "connection refused",
			row:      table.Row{"id": "p1", "name": "x"},
			queryErr: errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"),
			wantCode: "DB006",
		},
		{
			name:     "server error",
			row:      table.Row{"id": "p1", "name": "x"},
			queryErr: &pgconn.PgError{Code: "42P01", Message: `relation "products" does not exist`},
			wantCode: "DB010",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &fakeDB{queryFn: func(string, []any) ([][]any, error) {
				if tt.noRows {
					return nil, nil
				}
				if tt.queryErr != nil {
					return nil, tt.queryErr
				}
				return [][]any{storedRow("p1", "x")}, nil
			}}
			s := newTestStore(t, db)

			res, err := s.SaveRow(context.Background(), tt.row, 0)
			assert.False(t, res.Success)
			if tt.wantCode != "" {
				require.Error(t, err)
				var reported interface{ UserMessage() string }
				require.ErrorAs(t, err, &reported)
				assert.Contains(t, reported.UserMessage(), tt.wantCode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantError, res.Error)
		})
	}
}

func TestSaveAll(t *testing.T) {
	db := &fakeDB{queryFn: func(_ string, args []any) ([][]any, error) {
		key := args[len(args)-1].(string)
		return [][]any{storedRow(key, "saved "+key)}, nil
	}}
	s := newTestStore(t, db)

	res, err := s.SaveAll(context.Background(), []table.Row{
		{"id": "a", "name": "A"},
		{"id": "b", "name": "B"},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, res.Data, 2)
	assert.Equal(t, "saved a", res.Data[0]["name"])
	assert.Equal(t, "saved b", res.Data[1]["name"])
	assert.True(t, db.committed)
}

func TestSaveAll_RollsBack(t *testing.T) {
	db := &fakeDB{queryFn: func(_ string, args []any) ([][]any, error) {
		if args[len(args)-1] == "b" {
			return nil, &pgconn.PgError{Code: "23502", Message: `null value in column "name" violates not-null constraint`}
		}
		return [][]any{storedRow("a", "A")}, nil
	}}
	s := newTestStore(t, db)

	res, err := s.SaveAll(context.Background(), []table.Row{
		{"id": "a", "name": "A"},
		{"id": "b", "name": nil},
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "A required field is empty", res.Error)
	assert.False(t, db.committed)
	assert.True(t, db.rolledBack)
}

func TestAddRow_AssignsKey(t *testing.T) {
	db := &fakeDB{queryFn: func(string, []any) ([][]any, error) {
		return [][]any{storedRow("new-1", "Fresh")}, nil
	}}
	s := newTestStore(t, db)

	res, err := s.AddRow(context.Background(), table.Row{"name": "Fresh", "price": nil})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "new-1", res.Data["id"])

	require.Len(t, db.queries, 1)
	assert.True(t, strings.HasPrefix(db.queries[0].sql, `INSERT INTO "products" ("id", "name")`))
	assert.Equal(t, pgtype.Text{String: "new-1", Valid: true}, db.queries[0].args[0])
}

func TestDeleteRow(t *testing.T) {
	affected := "DELETE 1"
	db := &fakeDB{execFn: func(string, []any) (pgconn.CommandTag, error) {
		return pgconn.NewCommandTag(affected), nil
	}}
	s := newTestStore(t, db)

	res, err := s.DeleteRow(context.Background(), table.Row{"id": "p1"}, 0)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []any{"p1"}, db.execs[0].args)

	affected = "DELETE 0"
	res, err = s.DeleteRow(context.Background(), table.Row{"id": "p1"}, 0)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "This row no longer exists", res.Error)
}

func TestPage(t *testing.T) {
	db := &fakeDB{
		count: 25,
		queryFn: func(string, []any) ([][]any, error) {
			return [][]any{storedRow("p21", "x"), storedRow("p22", "y")}, nil
		},
	}
	s := newTestStore(t, db)

	page, err := s.Page(context.Background(), PageRequest{
		PageIndex: 7,
		PageSize:  10,
		Filters:   []view.ColumnFilter{{Column: "in_stock", Operator: view.OpEquals, Value: "yes"}},
		Sort:      []view.SortSpec{{Column: "name", Dir: "desc"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, page.PageIndex, "index clamps to the last page")
	assert.Equal(t, 3, page.PageCount)
	assert.Equal(t, int64(25), page.Total)
	assert.Len(t, page.Rows, 2)

	require.Len(t, db.queries, 2)
	assert.Equal(t, `SELECT COUNT(*) FROM "products" WHERE "in_stock" = $1`, db.queries[0].sql)
	assert.Equal(t,
		`SELECT `+returning+` FROM "products" WHERE "in_stock" = $1 ORDER BY "name" desc NULLS LAST, "id" asc LIMIT $2 OFFSET $3`,
		db.queries[1].sql,
	)
	assert.Equal(t, []any{10, 20}, db.queries[1].args[1:])
}

func TestPage_Empty(t *testing.T) {
	s := newTestStore(t, &fakeDB{})

	page, err := s.Page(context.Background(), PageRequest{PageIndex: 3})
	require.NoError(t, err)
	assert.Zero(t, page.PageIndex)
	assert.Zero(t, page.PageCount)
	assert.Equal(t, table.DefaultPageSize, page.PageSize)
	assert.Empty(t, page.Rows)
}

func TestSeed(t *testing.T) {
	db := &fakeDB{count: 3}
	s := newTestStore(t, db)

	n, err := s.Seed(context.Background(), []table.Row{{"id": "a", "name": "A"}})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.False(t, db.began, "non-empty tables are left alone")

	db = &fakeDB{}
	s = newTestStore(t, db)
	n, err = s.Seed(context.Background(), []table.Row{{"id": "a", "name": "A"}, {"name": "B"}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, db.committed)
	require.Len(t, db.execs, 2)
	assert.Contains(t, db.execs[1].sql, "ON CONFLICT")
	assert.Equal(t, pgtype.Text{String: "new-1", Valid: true}, db.execs[1].args[0])
}

func TestGateway_DrivesController(t *testing.T) {
	db := &fakeDB{queryFn: func(string, []any) ([][]any, error) {
		return [][]any{storedRow("p1", "Stored")}, nil
	}}
	s := newTestStore(t, db)

	opts := s.Definition().TableOptions()
	opts.EnableEditing = true
	opts.Gateway = s.Gateway()
	ctrl, err := table.New([]table.Row{{"id": "p1", "name": "Local"}}, opts)
	require.NoError(t, err)

	require.NoError(t, ctrl.StartEditing("p1"))
	require.NoError(t, ctrl.UpdateField("p1", "name", "Edited"))
	require.NoError(t, ctrl.SaveRow(context.Background(), "p1"))

	assert.False(t, ctrl.IsEditing("p1"))
	assert.Equal(t, "Stored", ctrl.Rows()[0]["name"], "server data wins")
}
