package pgstore

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/editgrid/internal/schema"
)

type call struct {
	sql  string
	args []any
}

// fakeDB records statements and answers them from the configured hooks.
type fakeDB struct {
	count    int64
	countErr error
	queryFn  func(sql string, args []any) ([][]any, error)
	execFn   func(sql string, args []any) (pgconn.CommandTag, error)

	queries    []call
	execs      []call
	began      bool
	committed  bool
	rolledBack bool
}

func (d *fakeDB) Exec(_ context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	d.execs = append(d.execs, call{sql, args})
	if d.execFn != nil {
		return d.execFn(sql, args)
	}
	return pgconn.NewCommandTag("OK 1"), nil
}

func (d *fakeDB) Query(_ context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	d.queries = append(d.queries, call{sql, args})
	if d.queryFn == nil {
		return &fakeRows{}, nil
	}
	values, err := d.queryFn(sql, args)
	if err != nil {
		return nil, err
	}
	return &fakeRows{values: values}, nil
}

func (d *fakeDB) QueryRow(_ context.Context, sql string, args ...interface{}) pgx.Row {
	d.queries = append(d.queries, call{sql, args})
	return fakeRow{n: d.count, err: d.countErr}
}

func (d *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	d.began = true
	return &fakeTx{db: d}, nil
}

// fakeTx forwards statements to its fakeDB. Unused pgx.Tx methods panic.
type fakeTx struct {
	pgx.Tx
	db *fakeDB
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	return t.db.Exec(ctx, sql, args...)
}

func (t *fakeTx) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	return t.db.Query(ctx, sql, args...)
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	return t.db.QueryRow(ctx, sql, args...)
}

func (t *fakeTx) Commit(context.Context) error {
	t.db.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if !t.db.committed {
		t.db.rolledBack = true
	}
	return nil
}

type fakeRows struct {
	values [][]any
	pos    int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Scan(...any) error                            { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.values) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Values() ([]any, error) {
	return r.values[r.pos-1], nil
}

type fakeRow struct {
	n   int64
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*int64) = r.n
	return nil
}

func productsDefinition() schema.Definition {
	noSort := false
	return schema.Definition{
		Key:      "products",
		Table:    "products",
		KeyField: "id",
		Columns: []schema.Column{
			{ID: "id", Type: schema.CellText, ReadOnly: true},
			{ID: "name", Type: schema.CellText, Required: true},
			{ID: "price", Type: schema.CellNumber},
			{ID: "in_stock", Type: schema.CellBoolean},
			{ID: "notes", Type: schema.CellText, DBColumn: "note_body", Sortable: &noSort},
		},
	}
}

func newTestStore(t *testing.T, db *fakeDB) *Store {
	t.Helper()
	s, err := New(db, productsDefinition(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	s.newID = func() string { return "new-1" }
	return s
}
