package pgstore

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/editgrid/internal/schema"
	"github.com/JonMunkholm/editgrid/internal/table"
	"github.com/JonMunkholm/editgrid/internal/view"
)

// quoteIdentifier quotes a SQL identifier to prevent injection.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (s *Store) quotedColumns() []string {
	quoted := make([]string, len(s.cols))
	for i, col := range s.cols {
		quoted[i] = quoteIdentifier(col.Column())
	}
	return quoted
}

// sqlType maps a cell type to its column type.
func sqlType(t schema.CellType) string {
	switch t {
	case schema.CellNumber:
		return "NUMERIC"
	case schema.CellBoolean:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

func (s *Store) createTableSQL() string {
	defs := make([]string, 0, len(s.cols)+1)
	hasKey := false
	for _, col := range s.cols {
		def := quoteIdentifier(col.Column()) + " " + sqlType(col.Type)
		switch {
		case col.ID == s.keyCol.ID:
			def += " PRIMARY KEY"
			hasKey = true
		case col.Required:
			def += " NOT NULL"
		}
		defs = append(defs, def)
	}
	if !hasKey {
		defs = append([]string{quoteIdentifier(s.keyCol.Column()) + " TEXT PRIMARY KEY"}, defs...)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
		quoteIdentifier(s.table), strings.Join(defs, ",\n\t"))
}

// insertSQL builds an INSERT of every non-nil defined field of row.
// Seeding skips conflicting keys instead of returning the stored row.
func (s *Store) insertSQL(row table.Row, seed bool) (string, []any, error) {
	var (
		names        []string
		placeholders []string
		args         []any
	)
	for _, col := range s.cols {
		v, ok := row[col.ID]
		if !ok || v == nil {
			continue
		}
		arg, err := toArg(col, v)
		if err != nil {
			return "", nil, err
		}
		args = append(args, arg)
		names = append(names, quoteIdentifier(col.Column()))
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}
	if len(args) == 0 {
		return "", nil, fmt.Errorf("insert: %w", table.ErrMissingKey)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdentifier(s.table),
		strings.Join(names, ", "),
		strings.Join(placeholders, ", "),
	)
	if seed {
		query += fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", quoteIdentifier(s.keyCol.Column()))
	} else {
		query += " RETURNING " + strings.Join(s.quotedColumns(), ", ")
	}
	return query, args, nil
}

// updateSQL builds an UPDATE of the editable fields present in row,
// returning the stored row. With nothing to set it reads the row back.
func (s *Store) updateSQL(key table.Key, row table.Row) (string, []any, error) {
	var (
		sets []string
		args []any
	)
	for _, col := range s.cols {
		if col.ID == s.keyCol.ID || col.ReadOnly {
			continue
		}
		v, ok := row[col.ID]
		if !ok {
			continue
		}
		arg, err := toArg(col, v)
		if err != nil {
			return "", nil, err
		}
		args = append(args, arg)
		sets = append(sets, fmt.Sprintf("%s = $%d", quoteIdentifier(col.Column()), len(args)))
	}
	args = append(args, string(key))
	returning := strings.Join(s.quotedColumns(), ", ")

	if len(sets) == 0 {
		return fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1",
			returning,
			quoteIdentifier(s.table),
			quoteIdentifier(s.keyCol.Column()),
		), args, nil
	}

	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d RETURNING %s",
		quoteIdentifier(s.table),
		strings.Join(sets, ", "),
		quoteIdentifier(s.keyCol.Column()),
		len(args),
		returning,
	), args, nil
}

func (s *Store) deleteSQL(key table.Key) (string, []any) {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = $1",
		quoteIdentifier(s.table),
		quoteIdentifier(s.keyCol.Column()),
	), []any{string(key)}
}

// whereBuilder accumulates WHERE conditions with numbered placeholders.
type whereBuilder struct {
	conds []string
	args  []any
}

func newWhereBuilder() *whereBuilder {
	return &whereBuilder{}
}

// nextArgIndex returns the placeholder number of the next argument.
func (w *whereBuilder) nextArgIndex() int {
	return len(w.args) + 1
}

// addSearch matches query against any column, case-insensitively.
func (w *whereBuilder) addSearch(query string, cols []schema.Column) {
	query = strings.TrimSpace(query)
	if query == "" || len(cols) == 0 {
		return
	}
	idx := w.nextArgIndex()
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = fmt.Sprintf("%s ILIKE $%d", textExpr(col), idx)
	}
	w.args = append(w.args, "%"+escapeLike(query)+"%")
	w.conds = append(w.conds, "("+strings.Join(parts, " OR ")+")")
}

// addFilters adds one condition per column filter.
func (w *whereBuilder) addFilters(def schema.Definition, filters []view.ColumnFilter) error {
	for _, f := range filters {
		col, ok := def.Column(f.Column)
		if !ok {
			return fmt.Errorf("%w: %s", view.ErrUnknownColumn, f.Column)
		}
		cond, args, err := buildSingleFilter(col, f, w.nextArgIndex())
		if err != nil {
			return err
		}
		w.conds = append(w.conds, cond)
		w.args = append(w.args, args...)
	}
	return nil
}

// build returns " WHERE ..." (or "") and the collected arguments.
func (w *whereBuilder) build() (string, []any) {
	if len(w.conds) == 0 {
		return "", w.args
	}
	return " WHERE " + strings.Join(w.conds, " AND "), w.args
}

// buildSingleFilter generates SQL for a single filter.
func buildSingleFilter(col schema.Column, f view.ColumnFilter, argIdx int) (string, []any, error) {
	quoted := quoteIdentifier(col.Column())
	value := strings.TrimSpace(f.Value)

	switch f.Operator {
	case view.OpContains:
		return fmt.Sprintf("%s ILIKE $%d", textExpr(col), argIdx),
			[]any{"%" + escapeLike(value) + "%"}, nil

	case view.OpStartsWith:
		return fmt.Sprintf("%s ILIKE $%d", textExpr(col), argIdx),
			[]any{escapeLike(value) + "%"}, nil

	case view.OpEndsWith:
		return fmt.Sprintf("%s ILIKE $%d", textExpr(col), argIdx),
			[]any{"%" + escapeLike(value)}, nil

	case view.OpEquals:
		switch col.Type {
		case schema.CellNumber, schema.CellBoolean:
			arg, err := toArg(col, value)
			if err != nil {
				return "", nil, fmt.Errorf("%w: %s", view.ErrInvalidValue, err)
			}
			return fmt.Sprintf("%s = $%d", quoted, argIdx), []any{arg}, nil
		default:
			return fmt.Sprintf("LOWER(%s) = LOWER($%d)", textExpr(col), argIdx),
				[]any{value}, nil
		}

	case view.OpGreaterEq, view.OpLessEq, view.OpGreater, view.OpLess:
		if col.Type != schema.CellNumber {
			return "", nil, fmt.Errorf("%w: %s is not a number column", view.ErrInvalidValue, col.ID)
		}
		arg, err := toArg(col, value)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %s", view.ErrInvalidValue, err)
		}
		return fmt.Sprintf("%s %s $%d", quoted, comparisonOps[f.Operator], argIdx), []any{arg}, nil

	case view.OpIn:
		var (
			placeholders []string
			args         []any
		)
		for _, v := range strings.Split(value, ",") {
			if v = strings.TrimSpace(v); v == "" {
				continue
			}
			args = append(args, v)
			placeholders = append(placeholders, fmt.Sprintf("$%d", argIdx+len(args)-1))
		}
		if len(args) == 0 {
			return "", nil, fmt.Errorf("%w: empty list", view.ErrInvalidValue)
		}
		return fmt.Sprintf("%s IN (%s)", textExpr(col), strings.Join(placeholders, ", ")), args, nil

	default:
		return "", nil, fmt.Errorf("%w: %s", view.ErrUnknownOperator, f.Operator)
	}
}

var comparisonOps = map[view.FilterOperator]string{
	view.OpGreaterEq: ">=",
	view.OpLessEq:    "<=",
	view.OpGreater:   ">",
	view.OpLess:      "<",
}

// textExpr renders a column as text for pattern matching.
func textExpr(col schema.Column) string {
	return fmt.Sprintf("CAST(%s AS TEXT)", quoteIdentifier(col.Column()))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike escapes LIKE wildcards in user input.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// orderBy builds an ORDER BY list from sorts, skipping unknown and unsortable
// columns. The key column always ends the list so paging is stable.
func (s *Store) orderBy(sorts []view.SortSpec) string {
	var parts []string
	keySorted := false
	for _, sort := range sorts {
		if len(parts) >= view.MaxSortLevels {
			break
		}
		col, ok := s.def.Column(sort.Column)
		if !ok || !col.IsSortable() {
			continue
		}
		dir := "asc"
		if sort.Desc() {
			dir = "desc"
		}
		parts = append(parts, fmt.Sprintf("%s %s NULLS LAST", quoteIdentifier(col.Column()), dir))
		if col.ID == s.keyCol.ID {
			keySorted = true
		}
	}
	if !keySorted {
		parts = append(parts, quoteIdentifier(s.keyCol.Column())+" asc")
	}
	return strings.Join(parts, ", ")
}
