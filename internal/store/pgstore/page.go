package pgstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/editgrid/internal/table"
	"github.com/JonMunkholm/editgrid/internal/view"
)

// PageRequest selects one page of a filtered, sorted table.
type PageRequest struct {
	PageIndex int // zero-based
	PageSize  int
	Search    string
	Filters   []view.ColumnFilter
	Sort      []view.SortSpec
}

// Page is one page of rows plus the totals needed to render pagination.
type Page struct {
	Rows      []table.Row
	Total     int64
	PageIndex int // clamped to the last page
	PageSize  int
	PageCount int
}

// Count returns the number of rows matching search and filters.
func (s *Store) Count(ctx context.Context, search string, filters []view.ColumnFilter) (int64, error) {
	wb := newWhereBuilder()
	wb.addSearch(search, s.cols)
	if err := wb.addFilters(s.def, filters); err != nil {
		return 0, err
	}
	whereClause, args := wb.build()

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", quoteIdentifier(s.table), whereClause)
	var total int64
	if err := s.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return total, nil
}

// Page fetches one page. An index past the end returns the last page.
func (s *Store) Page(ctx context.Context, req PageRequest) (*Page, error) {
	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = table.DefaultPageSize
	}

	wb := newWhereBuilder()
	wb.addSearch(req.Search, s.cols)
	if err := wb.addFilters(s.def, req.Filters); err != nil {
		return nil, err
	}
	whereClause, queryArgs := wb.build()

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", quoteIdentifier(s.table), whereClause)
	var totalRows int64
	if err := s.db.QueryRow(ctx, countQuery, queryArgs...).Scan(&totalRows); err != nil {
		return nil, fmt.Errorf("count rows: %w", err)
	}

	pageCount := int((totalRows + int64(pageSize) - 1) / int64(pageSize))
	pageIndex := req.PageIndex
	if pageIndex >= pageCount {
		pageIndex = pageCount - 1
	}
	if pageIndex < 0 {
		pageIndex = 0
	}
	offset := pageIndex * pageSize

	argIndex := wb.nextArgIndex()
	query := fmt.Sprintf(
		"SELECT %s FROM %s%s ORDER BY %s LIMIT $%d OFFSET $%d",
		strings.Join(s.quotedColumns(), ", "),
		quoteIdentifier(s.table),
		whereClause,
		s.orderBy(req.Sort),
		argIndex,
		argIndex+1,
	)
	queryArgs = append(queryArgs, pageSize, offset)

	rows, err := s.queryRows(ctx, s.db, query, queryArgs...)
	if err != nil {
		return nil, err
	}

	return &Page{
		Rows:      rows,
		Total:     totalRows,
		PageIndex: pageIndex,
		PageSize:  pageSize,
		PageCount: pageCount,
	}, nil
}
