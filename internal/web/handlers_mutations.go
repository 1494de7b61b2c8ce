package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/editgrid/internal/schema"
	"github.com/JonMunkholm/editgrid/internal/table"
	"github.com/JonMunkholm/editgrid/internal/view"
)

// errReadOnly rejects edits to read-only columns.
var errReadOnly = errors.New("column is read-only")

// OperationResponse reports one operation and the state it left behind.
// A failed gateway call answers 422 with Status.Error set.
type OperationResponse struct {
	Op     string       `json:"op"`
	Status table.Status `json:"status"`
	State  table.State  `json:"state"`
}

// fieldUpdate is the body of a cell or draft edit. Value may be a string,
// number, boolean or null; it is coerced to the column type.
type fieldUpdate struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

// respondOperation writes the outcome of op.
func respondOperation(w http.ResponseWriter, t *Table, op string) {
	ctrl := t.Controller()
	status := ctrl.Status(op)
	code := http.StatusOK
	if status.Error != "" {
		code = http.StatusUnprocessableEntity
	}
	writeJSONStatus(w, code, OperationResponse{Op: op, Status: status, State: ctrl.State()})
}

// coerceField validates u against the table definition.
func coerceField(def schema.Definition, u fieldUpdate) (any, error) {
	col, ok := def.Column(u.Field)
	if !ok {
		return nil, fmt.Errorf("%w: %s", view.ErrUnknownColumn, u.Field)
	}
	if col.ReadOnly {
		return nil, fmt.Errorf("%s: %w", col.ID, errReadOnly)
	}
	raw, ok := u.Value.(string)
	if !ok {
		raw = schema.Format(u.Value)
	}
	return schema.Coerce(col, raw)
}

// handleStartEditing opens an edit session for one row.
func (s *Server) handleStartEditing(w http.ResponseWriter, r *http.Request) {
	t := tableFrom(r.Context())
	key := rowKeyParam(r)
	if err := t.Controller().StartEditing(key); err != nil {
		respondError(w, r, err)
		return
	}
	respondOperation(w, t, table.RowOp(key))
}

// handleCancelEditing reverts one row and closes its session.
func (s *Server) handleCancelEditing(w http.ResponseWriter, r *http.Request) {
	t := tableFrom(r.Context())
	key := rowKeyParam(r)
	if err := t.Controller().CancelEditing(key); err != nil {
		respondError(w, r, err)
		return
	}
	respondOperation(w, t, table.RowOp(key))
}

// handleUpdateField records one cell edit.
func (s *Server) handleUpdateField(w http.ResponseWriter, r *http.Request) {
	t := tableFrom(r.Context())
	key := rowKeyParam(r)

	var req fieldUpdate
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	value, err := coerceField(t.Definition(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := t.Controller().UpdateField(key, req.Field, value); err != nil {
		respondError(w, r, err)
		return
	}
	respondOperation(w, t, table.RowOp(key))
}

// handleSaveRow commits one row through the gateway.
func (s *Server) handleSaveRow(w http.ResponseWriter, r *http.Request) {
	t := tableFrom(r.Context())
	key := rowKeyParam(r)

	ctx, cancel := t.operationContext(r.Context())
	defer cancel()
	if err := t.Controller().SaveRow(ctx, key); err != nil {
		respondError(w, r, err)
		return
	}
	respondOperation(w, t, table.RowOp(key))
}

// handleDeleteRow removes one row once the backend confirms.
func (s *Server) handleDeleteRow(w http.ResponseWriter, r *http.Request) {
	t := tableFrom(r.Context())
	key := rowKeyParam(r)

	ctx, cancel := t.operationContext(r.Context())
	defer cancel()
	if err := t.Controller().DeleteRow(ctx, key); err != nil {
		respondError(w, r, err)
		return
	}
	respondOperation(w, t, table.DeleteOp(key))
}

// handleEditAll opens a session for every row.
func (s *Server) handleEditAll(w http.ResponseWriter, r *http.Request) {
	t := tableFrom(r.Context())
	if err := t.Controller().StartEditingAll(); err != nil {
		respondError(w, r, err)
		return
	}
	respondOperation(w, t, table.OpAll)
}

// handleCancelAll reverts every edit.
func (s *Server) handleCancelAll(w http.ResponseWriter, r *http.Request) {
	t := tableFrom(r.Context())
	if err := t.Controller().CancelAll(); err != nil {
		respondError(w, r, err)
		return
	}
	respondOperation(w, t, table.OpAll)
}

// handleSaveAll commits the whole working collection.
func (s *Server) handleSaveAll(w http.ResponseWriter, r *http.Request) {
	t := tableFrom(r.Context())

	ctx, cancel := t.operationContext(r.Context())
	defer cancel()
	if err := t.Controller().SaveAll(ctx); err != nil {
		respondError(w, r, err)
		return
	}
	respondOperation(w, t, table.OpAll)
}

// handleStartAdd enters add mode.
func (s *Server) handleStartAdd(w http.ResponseWriter, r *http.Request) {
	t := tableFrom(r.Context())
	if err := t.Controller().StartAdd(); err != nil {
		respondError(w, r, err)
		return
	}
	respondOperation(w, t, table.OpNewRow)
}

// handleUpdateDraft sets one field of the new row.
func (s *Server) handleUpdateDraft(w http.ResponseWriter, r *http.Request) {
	t := tableFrom(r.Context())

	var req fieldUpdate
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	value, err := coerceField(t.Definition(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := t.Controller().UpdateDraftField(req.Field, value); err != nil {
		respondError(w, r, err)
		return
	}
	respondOperation(w, t, table.OpNewRow)
}

// handleCancelAdd discards the new row.
func (s *Server) handleCancelAdd(w http.ResponseWriter, r *http.Request) {
	t := tableFrom(r.Context())
	if err := t.Controller().CancelAdd(); err != nil {
		respondError(w, r, err)
		return
	}
	respondOperation(w, t, table.OpNewRow)
}

// handleCommitAdd sends the new row to the backend.
func (s *Server) handleCommitAdd(w http.ResponseWriter, r *http.Request) {
	t := tableFrom(r.Context())

	ctx, cancel := t.operationContext(r.Context())
	defer cancel()
	if err := t.Controller().CommitAdd(ctx); err != nil {
		respondError(w, r, err)
		return
	}
	respondOperation(w, t, table.OpNewRow)
}
