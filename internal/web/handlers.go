package web

import (
	"net/http"

	"github.com/JonMunkholm/editgrid/internal/logging"
	"github.com/JonMunkholm/editgrid/internal/view"
)

// handleIndex renders the table listing.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	all := s.tables.All()
	infos := make([]TableInfo, len(all))
	for i, t := range all {
		infos[i] = tableInfo(t)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := Layout("Tables", IndexPage(infos)).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render index", "error", err)
	}
}

// handleTablePage renders one table for the query string.
func (s *Server) handleTablePage(w http.ResponseWriter, r *http.Request) {
	t := tableFrom(r.Context())
	params := r.URL.Query()

	res, st, err := t.View(r.Context(), view.ParseQuery(params))
	if err != nil {
		respondError(w, r, err)
		return
	}

	info := tableInfo(t)
	page := TablePage(TablePageData{
		Info:      info,
		View:      res,
		State:     st,
		Query:     params,
		Selected:  t.Selection().Keys(),
		PageError: t.PageError(),
		Realtime:  s.hub != nil,
	})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := Layout(info.Label, page).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render table", "table", t.Key(), "error", err)
	}
}
