package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/editgrid/internal/table"
)

func TestCoerce(t *testing.T) {
	selectCol := Column{ID: "role", Type: CellSelect, Options: []Option{{Value: "admin"}, {Value: "member"}}}

	tests := []struct {
		name    string
		col     Column
		raw     string
		want    any
		wantErr bool
	}{
		{"text trimmed", Column{ID: "n"}, "  Alice ", "Alice", false},
		{"text formula prefix", Column{ID: "n"}, `="00123"`, "00123", false},
		{"empty optional", Column{ID: "n"}, "  ", nil, false},
		{"empty required", Column{ID: "n", Required: true}, "", nil, true},
		{"integer", Column{ID: "p", Type: CellNumber}, "42", int64(42), false},
		{"decimal", Column{ID: "p", Type: CellNumber}, "49.50", 49.5, false},
		{"currency", Column{ID: "p", Type: CellNumber}, "$1,234.5", 1234.5, false},
		{"accounting negative", Column{ID: "p", Type: CellNumber}, "(12)", int64(-12), false},
		{"bad number", Column{ID: "p", Type: CellNumber}, "12abc", nil, true},
		{"bool yes", Column{ID: "b", Type: CellBoolean}, "Yes", true, false},
		{"bool checkbox", Column{ID: "b", Type: CellBoolean}, "on", true, false},
		{"bool empty", Column{ID: "b", Type: CellBoolean}, "", false, false},
		{"bool bad", Column{ID: "b", Type: CellBoolean}, "maybe", nil, true},
		{"select canonical", selectCol, "ADMIN", "admin", false},
		{"select unknown", selectCol, "guest", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.col, tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				var ve ValidationError
				assert.ErrorAs(t, err, &ve)
				assert.Equal(t, tt.col.ID, ve.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoerceRow(t *testing.T) {
	def := Definition{
		Key: "users",
		Columns: []Column{
			{ID: "id", ReadOnly: true},
			{ID: "name", Type: CellText, Required: true},
			{ID: "wealth", Type: CellNumber},
			{ID: "active", Type: CellBoolean},
		},
	}

	row, errs := CoerceRow(def, map[string]string{
		"id":     "ignored",
		"name":   "Bob",
		"wealth": "1,000",
		"extra":  "ignored",
	})
	assert.Empty(t, errs)
	assert.Equal(t, table.Row{"name": "Bob", "wealth": int64(1000)}, row)

	_, errs = CoerceRow(def, map[string]string{"name": "", "wealth": "lots"})
	require.Len(t, errs, 2)
	assert.Equal(t, "name", errs[0].Field)
	assert.Equal(t, "wealth: invalid number format", errs[1].Error())
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "", Format(nil))
	assert.Equal(t, "x", Format("x"))
	assert.Equal(t, "49.5", Format(49.5))
	assert.Equal(t, "229", Format(229.0))
	assert.Equal(t, "7", Format(int64(7)))
	assert.Equal(t, "true", Format(true))
}
