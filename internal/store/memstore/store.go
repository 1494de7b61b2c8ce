// Package memstore is an in-process gateway for demos and tests. It keeps
// rows in memory and can simulate network latency and random failures.
package memstore

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/editgrid/internal/schema"
	"github.com/JonMunkholm/editgrid/internal/table"
	"github.com/JonMunkholm/editgrid/internal/usererr"
)

// Messages reported when a simulated failure fires.
const (
	MsgSaveRejected    = "Server error: Could not update row"
	MsgSaveAllRejected = "Server error: Could not update multiple rows"
	MsgAddRejected     = "Server error: Could not create new row"
	MsgDeleteRejected  = "Server error: Could not delete row"
)

// Config controls the simulation.
type Config struct {
	Latency     time.Duration // delay before every call returns
	FailureRate float64       // probability in [0,1] that a call is rejected
}

// Store holds the rows of one table.
type Store struct {
	def    schema.Definition
	config Config
	log    *slog.Logger

	newID func() string
	roll  func() float64

	mu   sync.Mutex
	rows []table.Row
}

// New creates a store holding a copy of rows. Rows without a key get one.
func New(def schema.Definition, rows []table.Row, config Config, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		def:    def,
		config: config,
		log:    logger.With("table", def.Key, "backend", "memory"),
		newID:  uuid.NewString,
		roll:   rand.Float64,
	}
	s.rows = make([]table.Row, 0, len(rows))
	for _, r := range rows {
		s.rows = append(s.rows, s.withKey(r.Clone()))
	}
	return s
}

// Rows returns a copy of the stored rows.
func (s *Store) Rows() []table.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return table.CloneRows(s.rows)
}

// Gateway returns the controller gateway backed by this store.
func (s *Store) Gateway() table.Gateway {
	return table.Gateway{
		SaveRow:   s.SaveRow,
		SaveAll:   s.SaveAll,
		AddRow:    s.AddRow,
		DeleteRow: s.DeleteRow,
	}
}

// SaveRow replaces the editable fields of the stored row with the same key.
func (s *Store) SaveRow(ctx context.Context, row table.Row, index int) (table.RowResult, error) {
	if err := s.wait(ctx); err != nil {
		return table.RowResult{}, err
	}
	if s.rejected() {
		return table.RowResult{Error: MsgSaveRejected}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.find(row)
	if err != nil {
		return table.RowResult{Error: usererr.MapError(err).Message}, nil
	}
	s.rows[i] = s.merge(s.rows[i], row)
	s.log.Debug("row saved", "index", index)
	return table.RowResult{Success: true, Data: s.rows[i].Clone()}, nil
}

// SaveAll applies every row, or none when any key is unknown.
func (s *Store) SaveAll(ctx context.Context, rows []table.Row) (table.RowsResult, error) {
	if err := s.wait(ctx); err != nil {
		return table.RowsResult{}, err
	}
	if s.rejected() {
		return table.RowsResult{Error: MsgSaveAllRejected}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next := table.CloneRows(s.rows)
	saved := make([]table.Row, 0, len(rows))
	for _, row := range rows {
		i, err := s.find(row)
		if err != nil {
			return table.RowsResult{Error: usererr.MapError(err).Message}, nil
		}
		next[i] = s.merge(next[i], row)
		saved = append(saved, next[i].Clone())
	}
	s.rows = next
	s.log.Debug("rows saved", "count", len(saved))
	return table.RowsResult{Success: true, Data: saved}, nil
}

// AddRow appends a draft, assigning a key when it has none.
func (s *Store) AddRow(ctx context.Context, draft table.Row) (table.RowResult, error) {
	if err := s.wait(ctx); err != nil {
		return table.RowResult{}, err
	}
	if s.rejected() {
		return table.RowResult{Error: MsgAddRejected}, nil
	}

	row := s.withKey(draft.Clone())
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.find(row); err == nil {
		return table.RowResult{Error: usererr.MapError(table.ErrDuplicateKey).Message}, nil
	}
	s.rows = append(s.rows, row)
	s.log.Debug("row added", "key", row[s.def.KeyFieldOrDefault()])
	return table.RowResult{Success: true, Data: row.Clone()}, nil
}

// DeleteRow removes the stored row with the same key.
func (s *Store) DeleteRow(ctx context.Context, row table.Row, index int) (table.RowResult, error) {
	if err := s.wait(ctx); err != nil {
		return table.RowResult{}, err
	}
	if s.rejected() {
		return table.RowResult{Error: MsgDeleteRejected}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.find(row)
	if err != nil {
		return table.RowResult{Error: usererr.MapError(err).Message}, nil
	}
	s.rows = append(s.rows[:i], s.rows[i+1:]...)
	s.log.Debug("row deleted", "index", index)
	return table.RowResult{Success: true}, nil
}

// wait sleeps for the configured latency or until ctx is done.
func (s *Store) wait(ctx context.Context) error {
	if s.config.Latency <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.config.Latency)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Store) rejected() bool {
	return s.config.FailureRate > 0 && s.roll() < s.config.FailureRate
}

func (s *Store) find(row table.Row) (int, error) {
	keyField := s.def.KeyFieldOrDefault()
	key, ok := table.KeyOf(row, keyField)
	if !ok {
		return -1, table.ErrMissingKey
	}
	for i, r := range s.rows {
		if k, ok := table.KeyOf(r, keyField); ok && k == key {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %s", table.ErrRowNotFound, key)
}

// merge overlays the editable fields of row on stored. Fields outside the
// definition are kept as sent.
func (s *Store) merge(stored, row table.Row) table.Row {
	out := stored.Clone()
	for field, v := range row {
		if col, ok := s.def.Column(field); ok && col.ReadOnly {
			continue
		}
		out[field] = v
	}
	return out
}

func (s *Store) withKey(row table.Row) table.Row {
	if row == nil {
		row = table.Row{}
	}
	keyField := s.def.KeyFieldOrDefault()
	if _, ok := table.KeyOf(row, keyField); !ok {
		row[keyField] = s.newID()
	}
	return row
}
