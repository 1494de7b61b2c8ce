package xlsxstore

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/editgrid/internal/table"
	"github.com/JonMunkholm/editgrid/internal/usererr"
)

// Gateway returns the controller gateway backed by this workbook.
func (s *Store) Gateway() table.Gateway {
	return table.Gateway{
		SaveRow:   s.SaveRow,
		SaveAll:   s.SaveAll,
		AddRow:    s.AddRow,
		DeleteRow: s.DeleteRow,
	}
}

// SaveRow replaces the stored row with the same key. Read-only fields keep
// their stored values.
func (s *Store) SaveRow(ctx context.Context, row table.Row, index int) (table.RowResult, error) {
	var saved table.Row
	err := s.modify(ctx, func(rows []table.Row) ([]table.Row, error) {
		i, err := s.find(rows, row)
		if err != nil {
			return nil, err
		}
		rows[i] = s.merge(rows[i], row)
		saved = normalize(s.def, rows[i])
		return rows, nil
	})
	if err != nil {
		return result[table.Row](err)
	}
	s.log.Debug("row saved", "index", index)
	return table.RowResult{Success: true, Data: saved}, nil
}

// SaveAll applies every row in one write. Nothing is written unless every
// row is found.
func (s *Store) SaveAll(ctx context.Context, rows []table.Row) (table.RowsResult, error) {
	var saved []table.Row
	err := s.modify(ctx, func(stored []table.Row) ([]table.Row, error) {
		saved = make([]table.Row, 0, len(rows))
		for _, row := range rows {
			i, err := s.find(stored, row)
			if err != nil {
				return nil, err
			}
			stored[i] = s.merge(stored[i], row)
			saved = append(saved, normalize(s.def, stored[i]))
		}
		return stored, nil
	})
	if err != nil {
		return result[[]table.Row](err)
	}
	s.log.Debug("rows saved", "count", len(saved))
	return table.RowsResult{Success: true, Data: saved}, nil
}

// AddRow appends a draft, assigning a key when it has none.
func (s *Store) AddRow(ctx context.Context, draft table.Row) (table.RowResult, error) {
	row := s.withKey(draft)
	keyField := s.def.KeyFieldOrDefault()
	key, _ := table.KeyOf(row, keyField)

	err := s.modify(ctx, func(rows []table.Row) ([]table.Row, error) {
		for _, r := range rows {
			if k, ok := table.KeyOf(r, keyField); ok && k == key {
				return nil, fmt.Errorf("%w: %s", table.ErrDuplicateKey, key)
			}
		}
		return append(rows, row), nil
	})
	if err != nil {
		return result[table.Row](err)
	}
	s.log.Debug("row added", "key", key)
	return table.RowResult{Success: true, Data: normalize(s.def, row)}, nil
}

// DeleteRow removes the row with the same key.
func (s *Store) DeleteRow(ctx context.Context, row table.Row, index int) (table.RowResult, error) {
	err := s.modify(ctx, func(rows []table.Row) ([]table.Row, error) {
		i, err := s.find(rows, row)
		if err != nil {
			return nil, err
		}
		return append(rows[:i], rows[i+1:]...), nil
	})
	if err != nil {
		return result[table.Row](err)
	}
	s.log.Debug("row deleted", "index", index)
	return table.RowResult{Success: true}, nil
}

// modify loads the sheet, applies fn and saves the result, all under the
// store lock.
func (s *Store) modify(ctx context.Context, fn func([]table.Row) ([]table.Row, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.load(ctx)
	if err != nil {
		return err
	}
	rows, err = fn(rows)
	if err != nil {
		return err
	}
	return s.save(ctx, rows)
}

// find returns the position of the stored row with row's key.
func (s *Store) find(rows []table.Row, row table.Row) (int, error) {
	keyField := s.def.KeyFieldOrDefault()
	key, ok := table.KeyOf(row, keyField)
	if !ok {
		return -1, table.ErrMissingKey
	}
	for i, r := range rows {
		if k, ok := table.KeyOf(r, keyField); ok && k == key {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", table.ErrRowNotFound, key)
}

// merge overlays the editable fields of row on stored.
func (s *Store) merge(stored, row table.Row) table.Row {
	out := stored.Clone()
	for _, col := range s.def.Columns {
		if col.ReadOnly {
			continue
		}
		if v, ok := row[col.ID]; ok {
			out[col.ID] = v
		}
	}
	return out
}

// result turns an error into a gateway outcome. Row and key problems are
// reported failures; file problems are unexpected errors with a user message.
func result[T any](err error) (table.Result[T], error) {
	msg := usererr.MapError(err)
	switch msg.Code {
	case "ROW001", "ROW005", "ROW006":
		return table.Result[T]{Success: false, Error: msg.Message}, nil
	}
	return table.Result[T]{}, usererr.New(err)
}
