package schema

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

var (
	ErrEmptyKey            = errors.New("definition key cannot be empty")
	ErrNoColumns           = errors.New("definition must have at least one column")
	ErrEmptyColumnID       = errors.New("column id cannot be empty")
	ErrDuplicateColumn     = errors.New("duplicate column id")
	ErrUnknownCellType     = errors.New("unknown cell type")
	ErrMissingOptions      = errors.New("select column requires options")
	ErrInvalidIdentifier   = errors.New("invalid identifier")
	ErrInvalidPageSize     = errors.New("page size must be positive")
	ErrDuplicateDefinition = errors.New("definition already registered")
)

// identPattern restricts table and column names that end up in SQL.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// File is the on-disk layout of a definitions file.
type File struct {
	Tables []Definition `yaml:"tables"`
}

// LoadFile reads and validates every definition in a YAML file.
func LoadFile(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definitions file: %w", err)
	}
	return LoadBytes(data)
}

// LoadBytes parses definitions from YAML bytes.
func LoadBytes(data []byte) ([]Definition, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse definitions: %w", err)
	}

	seen := make(map[string]bool, len(f.Tables))
	for i := range f.Tables {
		def := &f.Tables[i]
		if err := Validate(def); err != nil {
			return nil, fmt.Errorf("definition %q: %w", def.Key, err)
		}
		if seen[def.Key] {
			return nil, fmt.Errorf("definition %q: %w", def.Key, ErrDuplicateDefinition)
		}
		seen[def.Key] = true
	}
	return f.Tables, nil
}

// Validate checks a definition and fills derived defaults in place.
func Validate(def *Definition) error {
	if def.Key == "" {
		return ErrEmptyKey
	}
	if len(def.Columns) == 0 {
		return ErrNoColumns
	}
	if def.Label == "" {
		def.Label = def.Key
	}
	if def.KeyField == "" {
		def.KeyField = def.KeyFieldOrDefault()
	}
	if def.Table != "" && !identPattern.MatchString(def.Table) {
		return fmt.Errorf("table %q: %w", def.Table, ErrInvalidIdentifier)
	}
	if def.PageSize < 0 {
		return ErrInvalidPageSize
	}
	for _, n := range def.PageSizes {
		if n <= 0 {
			return ErrInvalidPageSize
		}
	}

	ids := make(map[string]bool, len(def.Columns))
	for i := range def.Columns {
		col := &def.Columns[i]
		if col.ID == "" {
			return fmt.Errorf("column %d: %w", i, ErrEmptyColumnID)
		}
		if ids[col.ID] {
			return fmt.Errorf("column %q: %w", col.ID, ErrDuplicateColumn)
		}
		ids[col.ID] = true

		if !col.Type.Valid() {
			return fmt.Errorf("column %q: %w: %s", col.ID, ErrUnknownCellType, col.Type)
		}
		if col.Type == "" {
			col.Type = CellText
		}
		if (col.Type == CellSelect || col.Type == CellCombobox) && len(col.Options) == 0 {
			return fmt.Errorf("column %q: %w", col.ID, ErrMissingOptions)
		}
		if !identPattern.MatchString(col.Column()) {
			return fmt.Errorf("column %q: %w", col.ID, ErrInvalidIdentifier)
		}
		if col.Header == "" {
			col.Header = col.ID
		}
	}
	return nil
}
