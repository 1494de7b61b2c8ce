package pgstore

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/editgrid/internal/schema"
)

func numeric(t *testing.T, s string) pgtype.Numeric {
	t.Helper()
	var n pgtype.Numeric
	require.NoError(t, n.Scan(s))
	return n
}

func TestToArg(t *testing.T) {
	number := schema.Column{ID: "price", Type: schema.CellNumber}
	boolean := schema.Column{ID: "in_stock", Type: schema.CellBoolean}
	text := schema.Column{ID: "name", Type: schema.CellText}

	v, err := toArg(number, "$1,200.50")
	require.NoError(t, err)
	f, err := v.(pgtype.Numeric).Float64Value()
	require.NoError(t, err)
	assert.Equal(t, 1200.5, f.Float64)

	v, err = toArg(number, int64(-3))
	require.NoError(t, err)
	assert.True(t, v.(pgtype.Numeric).Valid)

	v, err = toArg(number, "")
	require.NoError(t, err)
	assert.False(t, v.(pgtype.Numeric).Valid)

	_, err = toArg(number, "twelve")
	assert.ErrorContains(t, err, "invalid number")

	v, err = toArg(boolean, "Yes")
	require.NoError(t, err)
	assert.Equal(t, pgtype.Bool{Bool: true, Valid: true}, v)

	v, err = toArg(boolean, false)
	require.NoError(t, err)
	assert.Equal(t, pgtype.Bool{Bool: false, Valid: true}, v)

	_, err = toArg(boolean, "maybe")
	assert.ErrorContains(t, err, "must be yes/no")

	v, err = toArg(text, "  ")
	require.NoError(t, err)
	assert.Equal(t, pgtype.Text{Valid: false}, v)

	v, err = toArg(text, nil)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestFromDB(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"fractional numeric", numeric(t, "12.5"), 12.5},
		{"whole numeric", numeric(t, "42"), int64(42)},
		{"null numeric", pgtype.Numeric{}, nil},
		{"text", pgtype.Text{String: "x", Valid: true}, "x"},
		{"null bool", pgtype.Bool{}, nil},
		{"int32", int32(7), int64(7)},
		{"float32", float32(0.5), 0.5},
		{"uuid bytes", [16]byte(id), id.String()},
		{"time", ts, "2024-03-01T12:00:00Z"},
		{"string", "plain", "plain"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, fromDB(tt.in))
		})
	}
}
