// Package pgstore persists an editable table in PostgreSQL.
//
// A Store serves one schema.Definition. Its Gateway plugs into the table
// controller; Load and Page feed the controller its rows in client and server
// pagination mode respectively.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/editgrid/internal/schema"
	"github.com/JonMunkholm/editgrid/internal/table"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// DB is a DBTX that can open transactions. Satisfied by *pgxpool.Pool.
type DB interface {
	DBTX
	Begin(context.Context) (pgx.Tx, error)
}

// ErrNoTable is returned by New when the definition names no backing table.
var ErrNoTable = errors.New("definition has no database table")

// Store reads and writes the rows of one table.
type Store struct {
	db    DB
	def   schema.Definition
	log   *slog.Logger
	newID func() string

	table  string          // backing table
	keyCol schema.Column   // identity column
	cols   []schema.Column // every defined column, in order
}

// New creates a store for def. The definition must name a table and should
// already have passed schema.Validate.
func New(db DB, def schema.Definition, logger *slog.Logger) (*Store, error) {
	if def.Table == "" {
		return nil, fmt.Errorf("%s: %w", def.Key, ErrNoTable)
	}
	if logger == nil {
		logger = slog.Default()
	}

	keyField := def.KeyFieldOrDefault()
	keyCol, ok := def.Column(keyField)
	if !ok {
		keyCol = schema.Column{ID: keyField, Type: schema.CellText}
	}

	return &Store{
		db:     db,
		def:    def,
		log:    logger.With("table", def.Table),
		newID:  uuid.NewString,
		table:  def.Table,
		keyCol: keyCol,
		cols:   def.Columns,
	}, nil
}

// Definition returns the definition the store serves.
func (s *Store) Definition() schema.Definition {
	return s.def
}

// EnsureTable creates the backing table if it does not exist.
func (s *Store) EnsureTable(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, s.createTableSQL()); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Seed inserts rows when the table is empty. Existing keys are skipped.
// Returns the number of rows inserted.
func (s *Store) Seed(ctx context.Context, rows []table.Row) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := s.Count(ctx, "", nil)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for i, row := range rows {
		row = s.withKey(row)
		query, args, err := s.insertSQL(row, true)
		if err != nil {
			return 0, fmt.Errorf("seed row %d: %w", i, err)
		}
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("seed row %d: %w", i, err)
		}
		inserted += int(tag.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	s.log.Info("seeded table", "rows", inserted)
	return inserted, nil
}

// Load returns every row ordered by key.
func (s *Store) Load(ctx context.Context) ([]table.Row, error) {
	query := fmt.Sprintf("SELECT %s FROM %s ORDER BY %s asc",
		strings.Join(s.quotedColumns(), ", "),
		quoteIdentifier(s.table),
		quoteIdentifier(s.keyCol.Column()),
	)
	return s.queryRows(ctx, s.db, query)
}

// queryRows runs query and maps every result row by column id.
func (s *Store) queryRows(ctx context.Context, db DBTX, query string, args ...any) ([]table.Row, error) {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	defer rows.Close()

	out := []table.Row{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}
		out = append(out, s.scanRow(values))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// queryOne is queryRows for statements returning at most one row.
// Returns pgx.ErrNoRows when nothing matched.
func (s *Store) queryOne(ctx context.Context, db DBTX, query string, args ...any) (table.Row, error) {
	rows, err := s.queryRows(ctx, db, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, pgx.ErrNoRows
	}
	return rows[0], nil
}

func (s *Store) scanRow(values []any) table.Row {
	row := make(table.Row, len(s.cols))
	for i, col := range s.cols {
		if i < len(values) {
			row[col.ID] = fromDB(values[i])
		}
	}
	return row
}

// withKey returns row with a generated key when it has none.
func (s *Store) withKey(row table.Row) table.Row {
	if _, ok := table.KeyOf(row, s.keyCol.ID); ok {
		return row
	}
	row = row.Clone()
	if row == nil {
		row = table.Row{}
	}
	row[s.keyCol.ID] = s.newID()
	return row
}
