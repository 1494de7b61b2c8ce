package pgstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JonMunkholm/editgrid/internal/table"
	"github.com/JonMunkholm/editgrid/internal/usererr"
)

// Gateway returns the controller gateway backed by this store.
func (s *Store) Gateway() table.Gateway {
	return table.Gateway{
		SaveRow:   s.SaveRow,
		SaveAll:   s.SaveAll,
		AddRow:    s.AddRow,
		DeleteRow: s.DeleteRow,
	}
}

// SaveRow updates one row and returns it as stored.
func (s *Store) SaveRow(ctx context.Context, row table.Row, index int) (table.RowResult, error) {
	key, ok := table.KeyOf(row, s.keyCol.ID)
	if !ok {
		return rejected[table.Row](table.ErrMissingKey), nil
	}

	saved, err := s.update(ctx, s.db, key, row)
	if err != nil {
		return classify[table.Row](err)
	}
	s.log.Debug("row saved", "key", key, "index", index)
	return table.RowResult{Success: true, Data: saved}, nil
}

// SaveAll updates every row in one transaction. Nothing is written unless
// every row saves.
func (s *Store) SaveAll(ctx context.Context, rows []table.Row) (table.RowsResult, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return table.RowsResult{}, usererr.New(fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback(ctx)

	saved := make([]table.Row, 0, len(rows))
	for _, row := range rows {
		key, ok := table.KeyOf(row, s.keyCol.ID)
		if !ok {
			return rejected[[]table.Row](table.ErrMissingKey), nil
		}
		out, err := s.update(ctx, tx, key, row)
		if err != nil {
			return classify[[]table.Row](fmt.Errorf("row %s: %w", key, err))
		}
		saved = append(saved, out)
	}

	if err := tx.Commit(ctx); err != nil {
		return table.RowsResult{}, usererr.New(fmt.Errorf("commit transaction: %w", err))
	}
	s.log.Debug("rows saved", "count", len(saved))
	return table.RowsResult{Success: true, Data: saved}, nil
}

// AddRow inserts a draft, assigning a key when it has none.
func (s *Store) AddRow(ctx context.Context, draft table.Row) (table.RowResult, error) {
	row := s.withKey(draft)
	query, args, err := s.insertSQL(row, false)
	if err != nil {
		return rejected[table.Row](err), nil
	}

	added, err := s.queryOne(ctx, s.db, query, args...)
	if err != nil {
		return classify[table.Row](err)
	}
	s.log.Debug("row added", "key", added[s.keyCol.ID])
	return table.RowResult{Success: true, Data: added}, nil
}

// DeleteRow removes one row. A row that is already gone is a failure so the
// controller keeps it visible until the table is refreshed.
func (s *Store) DeleteRow(ctx context.Context, row table.Row, index int) (table.RowResult, error) {
	key, ok := table.KeyOf(row, s.keyCol.ID)
	if !ok {
		return rejected[table.Row](table.ErrMissingKey), nil
	}

	query, args := s.deleteSQL(key)
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return classify[table.Row](err)
	}
	if tag.RowsAffected() == 0 {
		return rejected[table.Row](table.ErrRowNotFound), nil
	}
	s.log.Debug("row deleted", "key", key, "index", index)
	return table.RowResult{Success: true}, nil
}

func (s *Store) update(ctx context.Context, db DBTX, key table.Key, row table.Row) (table.Row, error) {
	query, args, err := s.updateSQL(key, row)
	if err != nil {
		return nil, err
	}
	return s.queryOne(ctx, db, query, args...)
}

// classify splits failures the user can fix from unexpected ones. Missing
// rows, bad values and constraint violations are reported failures; anything
// else is returned as an error carrying a user message.
func classify[T any](err error) (table.Result[T], error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return rejected[T](table.ErrRowNotFound), nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 22 is data exceptions, class 23 integrity constraints.
		if strings.HasPrefix(pgErr.Code, "22") || strings.HasPrefix(pgErr.Code, "23") {
			return rejected[T](err), nil
		}
		return table.Result[T]{}, usererr.New(err)
	}

	if usererr.IsUserFacing(err) && !isConnectivity(err) {
		return rejected[T](err), nil
	}
	return table.Result[T]{}, usererr.New(err)
}

// rejected is a reported failure with the mapped user message.
func rejected[T any](err error) table.Result[T] {
	return table.Result[T]{Success: false, Error: usererr.MapError(err).Message}
}

func isConnectivity(err error) bool {
	switch usererr.MapError(err).Code {
	case "DB006", "DB007", "DB008", "REQ001", "REQ002":
		return true
	}
	return false
}
