package web

import (
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/editgrid/internal/logging"
	"github.com/JonMunkholm/editgrid/internal/schema"
	"github.com/JonMunkholm/editgrid/internal/table"
	"github.com/JonMunkholm/editgrid/internal/view"
)

// errSelectionDisabled is returned when a table has row selection off.
var errSelectionDisabled = errors.New("row selection is disabled")

// FeaturesInfo is the JSON form of a table's feature flags.
type FeaturesInfo struct {
	Editing          bool `json:"editing"`
	MultiRowEditing  bool `json:"multiRowEditing"`
	RowSelection     bool `json:"rowSelection"`
	Pagination       bool `json:"pagination"`
	Sorting          bool `json:"sorting"`
	Filtering        bool `json:"filtering"`
	AddRow           bool `json:"addRow"`
	ManualPagination bool `json:"manualPagination"`
}

// TableInfo describes one table for listings and clients.
type TableInfo struct {
	Key       string          `json:"key"`
	Label     string          `json:"label"`
	Group     string          `json:"group,omitempty"`
	KeyField  string          `json:"keyField"`
	Columns   []schema.Column `json:"columns"`
	Features  FeaturesInfo    `json:"features"`
	PageSizes []int           `json:"pageSizes"`
	RowCount  int             `json:"rowCount"` // rows loaded in the controller
}

func tableInfo(t *Table) TableInfo {
	def := t.Definition()
	opts := t.Controller().Options()
	return TableInfo{
		Key:      def.Key,
		Label:    def.Label,
		Group:    def.Group,
		KeyField: def.KeyFieldOrDefault(),
		Columns:  def.Columns,
		Features: FeaturesInfo{
			Editing:          opts.EnableEditing,
			MultiRowEditing:  opts.EnableMultiRowEditing,
			RowSelection:     opts.EnableRowSelection,
			Pagination:       opts.EnablePagination,
			Sorting:          opts.EnableSorting,
			Filtering:        opts.EnableFiltering,
			AddRow:           opts.EnableAddRow,
			ManualPagination: t.ServerPaged(),
		},
		PageSizes: opts.PageSizeOptions,
		RowCount:  len(t.Controller().Rows()),
	}
}

// ViewResponse is a computed view plus what the page renders around it.
type ViewResponse struct {
	view.Result
	State     table.State `json:"state"`
	Selected  []table.Key `json:"selected"`
	PageError string      `json:"pageError,omitempty"`
}

// handleListTables returns every table ordered by group.
func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	all := s.tables.All()
	out := make([]TableInfo, len(all))
	for i, t := range all {
		out[i] = tableInfo(t)
	}
	writeJSON(w, out)
}

// handleDefinition returns one table's description.
func (s *Server) handleDefinition(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, tableInfo(tableFrom(r.Context())))
}

// handleState returns the controller snapshot.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, tableFrom(r.Context()).Controller().State())
}

// handleOperation returns the status of one operation id.
func (s *Server) handleOperation(w http.ResponseWriter, r *http.Request) {
	t := tableFrom(r.Context())
	op := chi.URLParam(r, "op")
	writeJSON(w, map[string]any{"op": op, "status": t.Controller().Status(op)})
}

// handleView computes the filtered, sorted page for the query string.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	t := tableFrom(r.Context())
	q := view.ParseQuery(r.URL.Query())

	res, st, err := t.View(r.Context(), q)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, ViewResponse{
		Result:    res,
		State:     st,
		Selected:  t.Selection().Keys(),
		PageError: t.PageError(),
	})
}

// handleReload re-reads the table from its data source.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	t := tableFrom(r.Context())

	ctx, cancel := t.operationContext(r.Context())
	defer cancel()
	if err := t.Refresh(ctx); err != nil {
		respondError(w, r, err)
		return
	}
	logging.WithFields(r.Context(), "table", t.Key()).Info("table reloaded")
	writeJSON(w, t.Controller().State())
}

// paginationRequest moves the page. Fields apply in order: manual, pageSize,
// then action or pageIndex.
type paginationRequest struct {
	PageIndex *int   `json:"pageIndex"`
	PageSize  *int   `json:"pageSize"`
	Manual    *bool  `json:"manual"`
	Action    string `json:"action"` // first, prev, next or last
}

// handlePagination applies a pagination change.
func (s *Server) handlePagination(w http.ResponseWriter, r *http.Request) {
	t := tableFrom(r.Context())
	ctrl := t.Controller()

	var req paginationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	if req.Manual != nil {
		ctx, cancel := t.operationContext(r.Context())
		err := t.SetManual(ctx, *req.Manual)
		cancel()
		if err != nil {
			respondError(w, r, err)
			return
		}
	}
	if req.PageSize != nil {
		if err := ctrl.SetPageSize(*req.PageSize); err != nil {
			respondError(w, r, err)
			return
		}
	}

	target, ok, err := pageTarget(ctrl.State(), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if ok {
		if err := ctrl.SetPage(target); err != nil {
			respondError(w, r, err)
			return
		}
	}
	writeJSON(w, ctrl.State())
}

// pageTarget resolves the requested page index against st.
func pageTarget(st table.State, req paginationRequest) (int, bool, error) {
	current := st.Pagination.PageIndex
	last := max(st.PageCount-1, 0)
	switch req.Action {
	case "":
		if req.PageIndex == nil {
			return 0, false, nil
		}
		return *req.PageIndex, true, nil
	case "first":
		return 0, true, nil
	case "prev":
		return max(current-1, 0), true, nil
	case "next":
		if !st.CanNext {
			return current, true, nil
		}
		return current + 1, true, nil
	case "last":
		return last, true, nil
	default:
		return 0, false, fmt.Errorf("%w: unknown page action %q", errBadBody, req.Action)
	}
}

// selectionRequest toggles one key, sets many, or clears everything.
type selectionRequest struct {
	Key      *table.Key  `json:"key"`
	Keys     []table.Key `json:"keys"`
	Selected bool        `json:"selected"`
	All      bool        `json:"all"` // every loaded row
	Clear    bool        `json:"clear"`
}

// SelectionResponse is the selection after a change.
type SelectionResponse struct {
	Selected []table.Key `json:"selected"`
	Count    int         `json:"count"`
}

// handleSelection changes the row selection.
func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	t := tableFrom(r.Context())
	if !t.Controller().Options().EnableRowSelection {
		respondError(w, r, errSelectionDisabled)
		return
	}

	var req selectionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	sel := t.Selection()
	switch {
	case req.Clear:
		sel.Clear()
	case req.Key != nil:
		sel.Toggle(*req.Key)
	case req.All:
		sel.SetAll(t.keys(t.Controller().Rows()), req.Selected)
	default:
		sel.SetAll(req.Keys, req.Selected)
	}
	writeJSON(w, SelectionResponse{Selected: sel.Keys(), Count: sel.Count()})
}

// handleExport downloads the filtered, sorted rows as xlsx (default) or csv.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	t := tableFrom(r.Context())
	q := view.ParseQuery(r.URL.Query())

	ctx, cancel := t.operationContext(r.Context())
	defer cancel()
	cols, rows, err := t.Export(ctx, q)
	if err != nil {
		respondError(w, r, err)
		return
	}

	base := fmt.Sprintf("%s_%s", t.Key(), time.Now().Format("20060102_150405"))
	switch r.URL.Query().Get("format") {
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, base))
		if err := writeCSV(w, cols, rows); err != nil {
			logging.FromContext(r.Context()).Error("csv export failed", "table", t.Key(), "error", err)
		}
	default:
		f, err := buildWorkbook(t.Definition(), cols, rows)
		if err != nil {
			respondError(w, r, err)
			return
		}
		defer f.Close()
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, base))
		if err := f.Write(w); err != nil {
			logging.FromContext(r.Context()).Error("xlsx export failed", "table", t.Key(), "error", err)
		}
	}
}

func headerOf(c schema.Column) string {
	if c.Header != "" {
		return c.Header
	}
	return c.ID
}

func writeCSV(w http.ResponseWriter, cols []schema.Column, rows []table.Row) error {
	cw := csv.NewWriter(w)
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = headerOf(c)
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	record := make([]string, len(cols))
	for _, row := range rows {
		for i, c := range cols {
			record[i] = c.Label(row[c.ID])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// buildWorkbook writes rows to a single sheet with a bold header row.
func buildWorkbook(def schema.Definition, cols []schema.Column, rows []table.Row) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := def.Sheet
	if sheet == "" {
		sheet = def.Key
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("name sheet: %w", err)
	}

	header := make([]any, len(cols))
	for i, c := range cols {
		header[i] = headerOf(c)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil && len(cols) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(cols), 1)
		_ = f.SetCellStyle(sheet, "A1", last, bold)
	}

	for i, row := range rows {
		values := make([]any, len(cols))
		for j, c := range cols {
			switch c.Type {
			case schema.CellNumber, schema.CellBoolean:
				values[j] = row[c.ID]
			default:
				values[j] = c.Label(row[c.ID])
			}
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			f.Close()
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	return f, nil
}
