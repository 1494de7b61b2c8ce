package xlsxstore

import (
	"github.com/JonMunkholm/editgrid/internal/schema"
	"github.com/JonMunkholm/editgrid/internal/table"
)

// parseCell converts the text of a cell to a row value for col. Empty cells
// are nil; numbers and booleans that do not parse are kept as text so that
// nothing typed into the sheet is lost.
func parseCell(col schema.Column, s string) any {
	s = schema.CleanInput(s)
	if s == "" {
		return nil
	}

	switch col.Type {
	case schema.CellNumber:
		if n, ok := schema.ParseNumber(s); ok {
			return n
		}
	case schema.CellBoolean:
		if b, ok := schema.ParseBool(s); ok {
			return b
		}
	}
	return s
}

// cellValue converts a row value to what excelize writes. Numbers and
// booleans keep their type so spreadsheets can compute with them.
func cellValue(v any) interface{} {
	switch v.(type) {
	case nil:
		return nil
	case bool, int, int32, int64, float32, float64:
		return v
	default:
		return schema.Format(v)
	}
}

// normalize returns row as it reads back after a save.
func normalize(def schema.Definition, row table.Row) table.Row {
	out := make(table.Row, len(def.Columns))
	for _, col := range def.Columns {
		out[col.ID] = parseCell(col, schema.Format(row[col.ID]))
	}
	return out
}
