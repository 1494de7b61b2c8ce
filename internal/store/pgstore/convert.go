package pgstore

// convert.go moves cell values between table rows and PostgreSQL.
//
// Outgoing values are typed per column: numbers become pgtype.Numeric,
// booleans pgtype.Bool and everything else pgtype.Text. Empty input is NULL.
// Incoming values are normalized to plain Go values (string, int64, float64,
// bool) so rows from every backend look the same to the view engine.

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/editgrid/internal/schema"
)

// toArg converts a cell value to a query argument for col.
func toArg(col schema.Column, v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch col.Type {
	case schema.CellNumber:
		return toPgNumeric(col, v)
	case schema.CellBoolean:
		return toPgBool(col, v)
	default:
		s := schema.Format(v)
		if strings.TrimSpace(s) == "" {
			return pgtype.Text{Valid: false}, nil
		}
		return pgtype.Text{String: s, Valid: true}, nil
	}
}

func toPgNumeric(col schema.Column, v any) (pgtype.Numeric, error) {
	s := schema.Format(v)
	if strings.TrimSpace(s) == "" {
		return pgtype.Numeric{Valid: false}, nil
	}
	parsed, ok := schema.ParseNumber(s)
	if !ok {
		return pgtype.Numeric{}, fmt.Errorf("column %q: invalid number %q", col.ID, s)
	}

	var n pgtype.Numeric
	if err := n.Scan(schema.Format(parsed)); err != nil {
		return pgtype.Numeric{}, fmt.Errorf("column %q: invalid number %q", col.ID, s)
	}
	return n, nil
}

func toPgBool(col schema.Column, v any) (pgtype.Bool, error) {
	if b, ok := v.(bool); ok {
		return pgtype.Bool{Bool: b, Valid: true}, nil
	}
	s := schema.Format(v)
	if strings.TrimSpace(s) == "" {
		return pgtype.Bool{Valid: false}, nil
	}
	b, ok := schema.ParseBool(s)
	if !ok {
		return pgtype.Bool{}, fmt.Errorf("column %q: value %q must be yes/no", col.ID, s)
	}
	return pgtype.Bool{Bool: b, Valid: true}, nil
}

// fromDB normalizes a value returned by pgx.Rows.Values.
func fromDB(v any) any {
	switch val := v.(type) {
	case nil:
		return nil

	case pgtype.Numeric:
		if !val.Valid {
			return nil
		}
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		if f.Float64 == float64(int64(f.Float64)) {
			return int64(f.Float64)
		}
		return f.Float64

	case pgtype.Text:
		if !val.Valid {
			return nil
		}
		return val.String

	case pgtype.Bool:
		if !val.Valid {
			return nil
		}
		return val.Bool

	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case float32:
		return float64(val)

	case [16]byte:
		return uuid.UUID(val).String()

	case time.Time:
		if val.IsZero() {
			return nil
		}
		return val.Format(time.RFC3339)

	default:
		return v
	}
}
