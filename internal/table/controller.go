package table

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Controller is the editable-table state machine.
//
// Per row: Viewing -> Editing -> Saving -> Viewing, or back to Editing with an
// error. Deleting either removes the row or leaves it with an error. The add
// flow moves Idle -> Drafting -> Committing -> Idle, or back to Drafting with
// an error.
type Controller struct {
	mu  sync.Mutex
	opt Options
	log *slog.Logger

	store      *RowStore
	sessions   *EditSessions
	ops        *OperationTracker
	pagination *Pagination

	adding bool
	draft  Row

	// generation increments on every reseed so in-flight results can tell
	// they belong to a collection that no longer exists.
	generation uint64
	closed     bool
}

// New creates a controller seeded with rows.
func New(rows []Row, opts Options) (*Controller, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}

	mode := ModeClient
	if opts.ManualPagination {
		mode = ModeServer
	}

	c := &Controller{
		opt:        opts,
		log:        opts.Logger,
		store:      NewRowStore(opts.KeyField),
		sessions:   NewEditSessions(),
		ops:        NewOperationTracker(),
		pagination: NewPagination(opts.InitialPageSize, mode),
	}
	if err := c.store.Replace(rows); err != nil {
		return nil, fmt.Errorf("seed rows: %w", err)
	}
	return c, nil
}

// Options returns the configuration the controller was built with.
// ManualPagination reports the current pagination mode.
func (c *Controller) Options() Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	opt := c.opt
	opt.ManualPagination = c.pagination.State().Mode == ModeServer
	return opt
}

// Replace reseeds the controller with a new authoritative collection.
// In-progress edits, sessions and operation statuses are discarded, and
// results of gateway calls still in flight will be ignored.
func (c *Controller) Replace(rows []Row) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if err := c.store.Replace(rows); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("replace rows: %w", err)
	}
	c.sessions.Clear()
	c.ops.Reset()
	c.generation++
	c.mu.Unlock()

	c.stateChanged()
	return nil
}

// Close tears the controller down. Later calls return ErrClosed and late
// gateway results are dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// StartEditing opens an edit session for key.
func (c *Controller) StartEditing(key Key) error {
	return c.mutate(func() error {
		if !c.opt.EnableEditing {
			return ErrEditingDisabled
		}
		if _, _, ok := c.store.Get(key); !ok {
			return fmt.Errorf("start editing %q: %w", key, ErrRowNotFound)
		}
		c.sessions.StartEditing(key, c.opt.EnableMultiRowEditing)
		return nil
	})
}

// StartEditingAll opens a session for every row, regardless of the
// multi-row policy.
func (c *Controller) StartEditingAll() error {
	return c.mutate(func() error {
		if !c.opt.EnableEditing {
			return ErrEditingDisabled
		}
		c.sessions.StartEditingAll(c.store.Keys())
		return nil
	})
}

// UpdateField records an in-progress edit in the working collection.
// Any value is accepted; validation belongs to the view layer.
func (c *Controller) UpdateField(key Key, field string, value any) error {
	return c.mutate(func() error {
		if !c.opt.EnableEditing {
			return ErrEditingDisabled
		}
		if !c.store.UpdateField(key, field, value) {
			return fmt.Errorf("update %q: %w", key, ErrRowNotFound)
		}
		return nil
	})
}

// CancelEditing reverts the row to its committed value, closes its session
// and clears its retained error.
func (c *Controller) CancelEditing(key Key) error {
	return c.mutate(func() error {
		if !c.store.RevertRow(key) {
			return fmt.Errorf("cancel %q: %w", key, ErrRowNotFound)
		}
		c.sessions.StopEditing(key)
		c.ops.Clear(RowOp(key))
		return nil
	})
}

// CancelAll reverts every uncommitted edit and closes every session.
func (c *Controller) CancelAll() error {
	return c.mutate(func() error {
		c.store.RevertAll()
		c.sessions.Clear()
		c.ops.Clear(OpAll)
		return nil
	})
}

// SaveRow commits the row with key.
//
// Without a SaveRow gateway the whole working collection is committed locally
// and the session closes synchronously. With a gateway the row is sent by key;
// its position is passed only as a hint. On success the server's row, when
// returned, replaces the local one. On failure the row stays in edit mode with
// the error recorded under RowOp(key).
func (c *Controller) SaveRow(ctx context.Context, key Key) error {
	if c.opt.Gateway.SaveRow == nil {
		return c.commitLocal(func() error {
			if _, _, ok := c.store.Get(key); !ok {
				return fmt.Errorf("save %q: %w", key, ErrRowNotFound)
			}
			c.sessions.StopEditing(key)
			c.ops.Clear(RowOp(key))
			return nil
		})
	}

	return runGateway(ctx, c, gatewayOp[Row]{
		id:       RowOp(key),
		fallback: MsgSaveFailed,
		prepare: func() (func(context.Context) (RowResult, error), error) {
			if !c.opt.EnableEditing {
				return nil, ErrEditingDisabled
			}
			row, index, ok := c.store.Get(key)
			if !ok {
				return nil, fmt.Errorf("save %q: %w", key, ErrRowNotFound)
			}
			save := c.opt.Gateway.SaveRow
			return func(ctx context.Context) (RowResult, error) {
				return save(ctx, row, index)
			}, nil
		},
		apply: func(res RowResult) (bool, string) {
			if err := c.store.CommitRow(key, res.Data); err != nil {
				if errors.Is(err, ErrRowNotFound) {
					// Removed while the save was in flight.
					c.sessions.StopEditing(key)
					return false, ""
				}
				c.log.Warn("save row returned unusable row", "error", err)
				return false, MsgSaveFailed
			}
			c.sessions.StopEditing(key)
			return true, ""
		},
	})
}

// SaveAll commits the whole working collection and closes every session.
// On failure every row stays in edit mode with the error under OpAll.
func (c *Controller) SaveAll(ctx context.Context) error {
	if c.opt.Gateway.SaveAll == nil {
		return c.commitLocal(func() error {
			c.sessions.Clear()
			c.ops.Clear(OpAll)
			return nil
		})
	}

	return runGateway(ctx, c, gatewayOp[[]Row]{
		id:       OpAll,
		fallback: MsgSaveAllFailed,
		prepare: func() (func(context.Context) (RowsResult, error), error) {
			if !c.opt.EnableEditing {
				return nil, ErrEditingDisabled
			}
			rows := c.store.Rows()
			save := c.opt.Gateway.SaveAll
			return func(ctx context.Context) (RowsResult, error) {
				return save(ctx, rows)
			}, nil
		},
		apply: func(res RowsResult) (bool, string) {
			if err := c.store.Commit(res.Data); err != nil {
				c.log.Warn("save all returned unusable rows", "error", err)
				return false, MsgSaveAllFailed
			}
			c.sessions.Clear()
			return true, ""
		},
	})
}

// StartAdd enters add mode with a draft seeded from NewRowTemplate.
func (c *Controller) StartAdd() error {
	return c.mutate(func() error {
		if !c.opt.EnableAddRow {
			return ErrAddDisabled
		}
		c.adding = true
		c.draft = c.newDraft()
		return nil
	})
}

// UpdateDraftField sets one field of the draft.
func (c *Controller) UpdateDraftField(field string, value any) error {
	return c.mutate(func() error {
		if !c.adding {
			return ErrNotDrafting
		}
		c.draft = c.draft.Clone()
		c.draft[field] = value
		return nil
	})
}

// CancelAdd discards the draft and clears its error.
func (c *Controller) CancelAdd() error {
	return c.mutate(func() error {
		c.adding = false
		c.draft = c.newDraft()
		c.ops.Clear(OpNewRow)
		return nil
	})
}

// CommitAdd sends the draft to the AddRow gateway. Without one it is a
// no-op: only a backend can assign the new row's identity. On success the
// returned row is appended and add mode ends; on failure the draft is kept
// and the error is recorded under OpNewRow.
func (c *Controller) CommitAdd(ctx context.Context) error {
	return runGateway(ctx, c, gatewayOp[Row]{
		id:       OpNewRow,
		fallback: MsgAddFailed,
		prepare: func() (func(context.Context) (RowResult, error), error) {
			if !c.opt.EnableAddRow {
				return nil, ErrAddDisabled
			}
			if !c.adding {
				return nil, ErrNotDrafting
			}
			add := c.opt.Gateway.AddRow
			if add == nil {
				c.log.Debug("add row ignored: no gateway")
				return nil, nil
			}
			draft := c.draft.Clone()
			return func(ctx context.Context) (RowResult, error) {
				return add(ctx, draft)
			}, nil
		},
		apply: func(res RowResult) (bool, string) {
			if res.Data == nil {
				return false, MsgAddFailed
			}
			if err := c.store.Append(res.Data); err != nil {
				c.log.Warn("add row returned unusable row", "error", err)
				return false, MsgAddFailed
			}
			c.adding = false
			c.draft = c.newDraft()
			return true, ""
		},
	})
}

// DeleteRow removes the row with key once the DeleteRow gateway confirms.
// Without a gateway it is a no-op. The row's edit session is cleared only
// after confirmation; on failure the row stays and the error is recorded
// under DeleteOp(key).
func (c *Controller) DeleteRow(ctx context.Context, key Key) error {
	return runGateway(ctx, c, gatewayOp[Row]{
		id:       DeleteOp(key),
		fallback: MsgDeleteFailed,
		prepare: func() (func(context.Context) (RowResult, error), error) {
			if !c.opt.EnableEditing {
				return nil, ErrEditingDisabled
			}
			row, index, ok := c.store.Get(key)
			if !ok {
				return nil, fmt.Errorf("delete %q: %w", key, ErrRowNotFound)
			}
			del := c.opt.Gateway.DeleteRow
			if del == nil {
				c.log.Debug("delete row ignored: no gateway", "key", key)
				return nil, nil
			}
			return func(ctx context.Context) (RowResult, error) {
				return del(ctx, row, index)
			}, nil
		},
		apply: func(RowResult) (bool, string) {
			removed := c.store.Remove(key)
			c.sessions.StopEditing(key)
			c.ops.Clear(RowOp(key))
			return removed, ""
		},
	})
}

// SetPage moves to pageIndex, notifying the host in server mode.
func (c *Controller) SetPage(pageIndex int) error {
	return c.paginate(func() (bool, error) {
		return c.pagination.SetPage(pageIndex), nil
	})
}

// SetPageSize changes the page size, notifying the host in server mode.
func (c *Controller) SetPageSize(pageSize int) error {
	return c.paginate(func() (bool, error) {
		return c.pagination.SetPageSize(pageSize)
	})
}

// SetManualPagination switches between server and client pagination.
// The page index resets to 0.
func (c *Controller) SetManualPagination(manual bool) error {
	if manual && c.opt.OnPaginationChange == nil {
		return ErrPaginationCallback
	}
	mode := ModeClient
	if manual {
		mode = ModeServer
	}
	return c.paginate(func() (bool, error) {
		return c.pagination.SetMode(mode), nil
	})
}

// SetPageCount records the host-supplied page count for server mode.
func (c *Controller) SetPageCount(n int) error {
	return c.mutate(func() error {
		c.pagination.SetPageCount(n)
		return nil
	})
}

// IsEditing reports whether key is in an edit session.
func (c *Controller) IsEditing(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions.IsEditing(key)
}

// Status returns the status of one operation id.
func (c *Controller) Status(op string) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ops.Status(op)
}

// Rows returns a copy of the working collection.
func (c *Controller) Rows() []Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Rows()
}

// Committed returns a copy of the last committed collection.
func (c *Controller) Committed() []Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Snapshot()
}

// Meta returns the capability handed to cell renderers.
func (c *Controller) Meta() CellMeta {
	return cellMeta{c: c}
}

// mutate runs a synchronous transition under the lock and reports it.
func (c *Controller) mutate(fn func() error) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if err := fn(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()
	c.stateChanged()
	return nil
}

// commitLocal promotes the working collection to the snapshot without a
// gateway round-trip, then notifies the host once.
func (c *Controller) commitLocal(fn func() error) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.opt.EnableEditing {
		c.mu.Unlock()
		return ErrEditingDisabled
	}
	if err := fn(); err != nil {
		c.mu.Unlock()
		return err
	}
	_ = c.store.Commit(nil)
	rows := c.store.Rows()
	c.mu.Unlock()

	c.dataChanged(rows)
	c.stateChanged()
	return nil
}

// paginate applies a pagination change and echoes it to the host when needed.
func (c *Controller) paginate(fn func() (bool, error)) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	notify, err := fn()
	st := c.pagination.State()
	c.mu.Unlock()
	if err != nil {
		return err
	}
	if notify && c.opt.OnPaginationChange != nil {
		c.opt.OnPaginationChange(st.PageIndex, st.PageSize)
	}
	c.stateChanged()
	return nil
}

func (c *Controller) newDraft() Row {
	d := c.opt.NewRowTemplate.Clone()
	if d == nil {
		d = Row{}
	}
	return d
}

func (c *Controller) dataChanged(rows []Row) {
	if c.opt.OnDataChange != nil {
		c.opt.OnDataChange(rows)
	}
}

func (c *Controller) stateChanged() {
	if c.opt.OnStateChange != nil {
		c.opt.OnStateChange()
	}
}
