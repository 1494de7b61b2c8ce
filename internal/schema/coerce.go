package schema

// coerce.go turns raw form input into typed cell values.
//
// Browsers submit every field as a string. Numbers accept currency symbols,
// thousands separators and accounting negatives; booleans accept the usual
// yes/no spellings (plus "on" from checkboxes); select and combobox values
// must match an option, case-insensitively, and come back in canonical form.

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/JonMunkholm/editgrid/internal/table"
)

var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// ValidationError reports a single field that could not be coerced.
type ValidationError struct {
	Field   string `json:"field"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// Coerce converts raw input for col to its typed value.
// Empty input yields nil unless the column is required.
func Coerce(col Column, raw string) (any, error) {
	raw = CleanInput(raw)
	if raw == "" {
		if col.Type == CellBoolean {
			return false, nil
		}
		if col.Required {
			return nil, ValidationError{Field: col.ID, Message: "required field is empty"}
		}
		return nil, nil
	}

	switch col.Type {
	case CellNumber:
		n, ok := ParseNumber(raw)
		if !ok {
			return nil, ValidationError{Field: col.ID, Value: raw, Message: "invalid number format"}
		}
		return n, nil
	case CellBoolean:
		b, ok := ParseBool(raw)
		if !ok {
			return nil, ValidationError{Field: col.ID, Value: raw, Message: "must be yes/no, true/false, or 1/0"}
		}
		return b, nil
	case CellSelect, CellCombobox:
		for _, o := range col.Options {
			if strings.EqualFold(o.Value, raw) {
				return o.Value, nil
			}
		}
		values := make([]string, len(col.Options))
		for i, o := range col.Options {
			values[i] = o.Value
		}
		return nil, ValidationError{
			Field:   col.ID,
			Value:   raw,
			Message: "value must be one of: " + strings.Join(values, ", "),
		}
	default:
		return raw, nil
	}
}

// CoerceRow converts form input for every column present in values.
// Unknown fields and read-only columns are ignored. All errors are returned.
func CoerceRow(def Definition, values map[string]string) (table.Row, []ValidationError) {
	row := make(table.Row, len(values))
	var errs []ValidationError
	for _, col := range def.Columns {
		raw, ok := values[col.ID]
		if !ok || col.ReadOnly {
			continue
		}
		v, err := Coerce(col, raw)
		if err != nil {
			var ve ValidationError
			if !errors.As(err, &ve) {
				ve = ValidationError{Field: col.ID, Value: raw, Message: err.Error()}
			}
			errs = append(errs, ve)
			continue
		}
		row[col.ID] = v
	}
	return row, errs
}

// ParseNumber parses a number, tolerating currency symbols, thousands
// separators and "(123.45)" accounting negatives. Whole numbers come back as
// int64, everything else as float64.
func ParseNumber(s string) (any, bool) {
	s = strings.TrimSpace(s)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.NewReplacer("$", "", "€", "", "£", "", ",", "").Replace(s)
	s = strings.TrimSpace(s)
	if negative {
		s = "-" + s
	}
	if !numericRegex.MatchString(s) {
		return nil, false
	}

	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, false
	}
	return f, true
}

// ParseBool accepts true/false, yes/no, t/f, y/n, 1/0 and on/off.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1", "on":
		return true, true
	case "false", "f", "no", "n", "0", "off":
		return false, true
	}
	return false, false
}

// CleanInput trims whitespace and strips a spreadsheet formula prefix (="...").
func CleanInput(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}
	return s
}

// Format renders a cell value for display or for an input's value attribute.
func Format(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
