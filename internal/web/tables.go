package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/JonMunkholm/editgrid/internal/schema"
	"github.com/JonMunkholm/editgrid/internal/store/pgstore"
	"github.com/JonMunkholm/editgrid/internal/table"
	"github.com/JonMunkholm/editgrid/internal/usererr"
	"github.com/JonMunkholm/editgrid/internal/view"
)

// ErrTableNotFound is returned for an unknown table key.
var ErrTableNotFound = errors.New("table not found")

// DefaultOperationTimeout bounds gateway calls when TableConfig leaves it unset.
const DefaultOperationTimeout = 30 * time.Second

// Pager fetches one filtered, sorted page. *pgstore.Store implements it.
type Pager interface {
	Page(ctx context.Context, req pgstore.PageRequest) (*pgstore.Page, error)
}

// TableConfig wires one definition to its data source.
type TableConfig struct {
	// Rows seeds the controller. Ignored when starting in manual mode.
	Rows []table.Row

	Gateway table.Gateway

	// Pager enables server-side pagination: in manual mode every page change
	// fetches the page and reseeds the controller.
	Pager Pager

	// Manual starts in server-side pagination. Requires Pager.
	Manual bool

	// Load re-reads the whole collection for reloads, exports and the switch
	// back to client pagination.
	Load func(ctx context.Context) ([]table.Row, error)

	OperationTimeout time.Duration
	Logger           *slog.Logger
}

// Table binds a controller to its definition, view engine, selection and
// change feed.
type Table struct {
	def     schema.Definition
	ctrl    *table.Controller
	engine  *view.Engine
	sel     *view.Selection
	hub     *Hub
	log     *slog.Logger
	pager   Pager
	load    func(ctx context.Context) ([]table.Row, error)
	timeout time.Duration

	mu        sync.Mutex
	query     view.Query // search, filters and sort of the fetched page
	total     int        // matching rows on the server
	pageError string
}

// NewTable builds the controller for def. hub may be nil.
func NewTable(def schema.Definition, cfg TableConfig, hub *Hub) (*Table, error) {
	engine, err := view.NewEngine(def)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", def.Key, err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.OperationTimeout
	if timeout <= 0 {
		timeout = DefaultOperationTimeout
	}

	t := &Table{
		def:     def,
		engine:  engine,
		sel:     view.NewSelection(),
		hub:     hub,
		log:     logger.With("table", def.Key),
		pager:   cfg.Pager,
		load:    cfg.Load,
		timeout: timeout,
	}

	opts := def.TableOptions()
	opts.Gateway = cfg.Gateway
	opts.Logger = t.log
	opts.OnDataChange = t.onDataChange
	opts.OnStateChange = t.onStateChange
	manual := cfg.Manual || def.Features.ManualPagination
	if manual && cfg.Pager == nil {
		t.log.Warn("manual pagination needs a paging backend, using client pagination")
		manual = false
	}
	opts.ManualPagination = manual
	if cfg.Pager != nil {
		opts.OnPaginationChange = t.onPaginationChange
	}

	rows := cfg.Rows
	if manual {
		rows = nil
	}
	ctrl, err := table.New(rows, opts)
	if err != nil {
		return nil, fmt.Errorf("table %s: %w", def.Key, err)
	}
	t.ctrl = ctrl
	return t, nil
}

// Key returns the table key.
func (t *Table) Key() string { return t.def.Key }

// Definition returns the table definition.
func (t *Table) Definition() schema.Definition { return t.def }

// Controller returns the table's controller.
func (t *Table) Controller() *table.Controller { return t.ctrl }

// Selection returns the row selection.
func (t *Table) Selection() *view.Selection { return t.sel }

// ServerPaged reports whether pages currently come from the backend.
func (t *Table) ServerPaged() bool {
	return t.pager != nil && t.ctrl.State().Pagination.Mode == table.ModeServer
}

// SetManual switches between server and client pagination. Leaving server
// mode loads the whole collection through Load.
func (t *Table) SetManual(ctx context.Context, manual bool) error {
	if manual == t.ServerPaged() {
		return nil
	}
	if manual {
		return t.ctrl.SetManualPagination(true)
	}
	if t.load == nil {
		return fmt.Errorf("table %s: client pagination needs a full load", t.def.Key)
	}
	rows, err := t.load(ctx)
	if err != nil {
		return err
	}
	if err := t.ctrl.SetManualPagination(false); err != nil {
		return err
	}
	return t.Replace(rows)
}

// Replace reseeds the controller, for example after the backing file changed.
func (t *Table) Replace(rows []table.Row) error {
	if err := t.ctrl.Replace(rows); err != nil {
		return err
	}
	t.retainSelection(rows)
	t.publish(Event{Type: EventReload})
	return nil
}

// Refresh re-reads the data source: the current page when server paged,
// otherwise the whole collection via Load.
func (t *Table) Refresh(ctx context.Context) error {
	if t.ServerPaged() {
		st := t.ctrl.State()
		return t.fetchPage(ctx, st.Pagination.PageIndex, st.Pagination.PageSize)
	}
	if t.load == nil {
		return nil
	}
	rows, err := t.load(ctx)
	if err != nil {
		return err
	}
	return t.Replace(rows)
}

// Close stops the controller. Late gateway results are dropped.
func (t *Table) Close() {
	t.ctrl.Close()
}

// Total returns the number of matching rows on the server. Server paged only.
func (t *Table) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// PageError returns the last page fetch failure, if any.
func (t *Table) PageError() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pageError
}

// operationContext bounds a gateway call.
func (t *Table) operationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, t.timeout)
}

// View computes what the table shows for q. Client paged tables page with
// the controller's pagination; server paged tables apply search, filters and
// sort on the backend and show the fetched page as is.
func (t *Table) View(ctx context.Context, q view.Query) (view.Result, table.State, error) {
	if t.ServerPaged() {
		if err := t.applyServerQuery(ctx, q); err != nil {
			return view.Result{}, table.State{}, err
		}
		st := t.ctrl.State()
		res, err := t.engine.Compute(st.Rows, view.Query{Hidden: q.Hidden})
		if err != nil {
			return view.Result{}, st, err
		}
		res.Total = t.Total()
		res.PageIndex = st.Pagination.PageIndex
		res.PageSize = st.Pagination.PageSize
		res.PageCount = st.PageCount
		return res, st, nil
	}

	st := t.ctrl.State()
	opts := t.ctrl.Options()
	if !opts.EnableFiltering {
		q.Search, q.Filters, q.Expr = "", nil, ""
	}
	if !opts.EnableSorting {
		q.Sort = nil
	}
	q.Paginate = opts.EnablePagination
	q.PageIndex = st.Pagination.PageIndex
	q.PageSize = st.Pagination.PageSize
	res, err := t.engine.Compute(st.Rows, q)
	return res, st, err
}

// Export returns the rows q selects, unpaginated, with the visible columns.
// Server paged tables read the whole collection through Load.
func (t *Table) Export(ctx context.Context, q view.Query) ([]schema.Column, []table.Row, error) {
	rows := t.ctrl.Rows()
	if t.ServerPaged() && t.load != nil {
		var err error
		if rows, err = t.load(ctx); err != nil {
			return nil, nil, err
		}
	}
	q.Paginate = false
	res, err := t.engine.Compute(rows, q)
	if err != nil {
		return nil, nil, err
	}
	out := make([]table.Row, len(res.Items))
	for i, item := range res.Items {
		out[i] = item.Row
	}
	return res.Columns, out, nil
}

// applyServerQuery refetches from page 0 when search, filters or sort changed.
func (t *Table) applyServerQuery(ctx context.Context, q view.Query) error {
	next := view.Query{Search: q.Search, Filters: q.Filters, Sort: q.Sort}
	t.mu.Lock()
	changed := !reflect.DeepEqual(t.query, next)
	if changed {
		t.query = next
	}
	t.mu.Unlock()
	if !changed {
		return nil
	}

	st := t.ctrl.State()
	if st.Pagination.PageIndex != 0 {
		return t.ctrl.SetPage(0)
	}
	return t.fetchPage(ctx, 0, st.Pagination.PageSize)
}

// onPaginationChange runs on every server-mode page change.
func (t *Table) onPaginationChange(pageIndex, pageSize int) {
	ctx, cancel := t.operationContext(context.Background())
	defer cancel()
	if err := t.fetchPage(ctx, pageIndex, pageSize); err != nil {
		t.log.Warn("page fetch failed", "page", pageIndex, "size", pageSize, "error", err)
	}
}

// fetchPage loads one page and reseeds the controller with it.
func (t *Table) fetchPage(ctx context.Context, pageIndex, pageSize int) error {
	t.mu.Lock()
	q := t.query
	t.mu.Unlock()

	page, err := t.pager.Page(ctx, pgstore.PageRequest{
		PageIndex: pageIndex,
		PageSize:  pageSize,
		Search:    q.Search,
		Filters:   q.Filters,
		Sort:      q.Sort,
	})
	if err != nil {
		t.mu.Lock()
		t.pageError = usererr.FormatUserError(err)
		t.mu.Unlock()
		t.publish(Event{Type: EventState, State: stateRef(t.ctrl.State())})
		return err
	}

	t.mu.Lock()
	t.total = int(page.Total)
	t.pageError = ""
	t.mu.Unlock()

	if err := t.ctrl.Replace(page.Rows); err != nil {
		return err
	}
	t.retainSelection(page.Rows)
	if err := t.ctrl.SetPageCount(page.PageCount); err != nil {
		return err
	}
	if page.PageIndex != pageIndex {
		// past the end: move to the page the backend served
		return t.ctrl.SetPage(page.PageIndex)
	}
	return nil
}

func (t *Table) onDataChange(rows []table.Row) {
	t.retainSelection(rows)
	t.publish(Event{Type: EventData})
}

func (t *Table) onStateChange() {
	if t.ctrl == nil {
		return
	}
	t.publish(Event{Type: EventState, State: stateRef(t.ctrl.State())})
}

func (t *Table) retainSelection(rows []table.Row) {
	t.sel.Retain(t.keys(rows))
}

// keys lists the keys of rows.
func (t *Table) keys(rows []table.Row) []table.Key {
	keyField := t.def.KeyFieldOrDefault()
	keys := make([]table.Key, 0, len(rows))
	for _, r := range rows {
		if k, ok := table.KeyOf(r, keyField); ok {
			keys = append(keys, k)
		}
	}
	return keys
}

func (t *Table) publish(e Event) {
	if t.hub == nil {
		return
	}
	e.Table = t.def.Key
	t.hub.Publish(e)
}

func stateRef(st table.State) *table.State { return &st }

// Tables is the set of tables the server exposes.
type Tables struct {
	mu     sync.RWMutex
	tables map[string]*Table
}

// NewTables creates an empty set.
func NewTables() *Tables {
	return &Tables{tables: make(map[string]*Table)}
}

// Add registers t. A second table with the same key is an error.
func (ts *Tables) Add(t *Table) error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if _, exists := ts.tables[t.Key()]; exists {
		return fmt.Errorf("table %s already registered", t.Key())
	}
	ts.tables[t.Key()] = t
	return nil
}

// Get returns the table with key.
func (ts *Tables) Get(key string) (*Table, error) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	t, ok := ts.tables[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, key)
	}
	return t, nil
}

// All returns every table ordered by group, then label.
func (ts *Tables) All() []*Table {
	ts.mu.RLock()
	out := make([]*Table, 0, len(ts.tables))
	for _, t := range ts.tables {
		out = append(out, t)
	}
	ts.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].def, out[j].def
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		if a.Label != b.Label {
			return a.Label < b.Label
		}
		return a.Key < b.Key
	})
	return out
}

// Close closes every controller.
func (ts *Tables) Close() {
	for _, t := range ts.All() {
		t.Close()
	}
}
