package web

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/editgrid/internal/table"
)

type ctxKey int

const tableKey ctxKey = iota

// tableCtx resolves {tableKey} once per request.
func (s *Server) tableCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t, err := s.tables.Get(chi.URLParam(r, "tableKey"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tableKey, t)))
	})
}

// tableFrom returns the table tableCtx stored.
func tableFrom(ctx context.Context) *Table {
	t, _ := ctx.Value(tableKey).(*Table)
	return t
}

// rowKeyParam returns the decoded {rowKey}.
func rowKeyParam(r *http.Request) table.Key {
	raw := chi.URLParam(r, "rowKey")
	if k, err := url.PathUnescape(raw); err == nil {
		return table.Key(k)
	}
	return table.Key(raw)
}
