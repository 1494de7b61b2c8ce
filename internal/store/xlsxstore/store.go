// Package xlsxstore persists an editable table in one worksheet of an Excel
// workbook. The first row holds column headers; every later row is a record.
//
// Writes rewrite the whole sheet. A Watcher picks up edits made to the
// workbook outside this process so the controller can be reseeded.
package xlsxstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/editgrid/internal/schema"
	"github.com/JonMunkholm/editgrid/internal/table"
)

var (
	// ErrMissingFilePath is returned when no workbook path is configured.
	ErrMissingFilePath = errors.New("file path is required")

	// ErrMissingSheetName is returned when neither the config nor the
	// definition names a sheet.
	ErrMissingSheetName = errors.New("sheet name is required")
)

// Config holds configuration for a Store.
type Config struct {
	FilePath  string // path to the .xlsx file
	SheetName string // defaults to the definition's sheet, then its key
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.FilePath == "" {
		return ErrMissingFilePath
	}
	if c.SheetName == "" {
		return ErrMissingSheetName
	}
	return nil
}

// fileStamp identifies one version of the workbook on disk.
type fileStamp struct {
	modTime time.Time
	size    int64
}

// Store reads and writes one worksheet. It is safe for concurrent use;
// every write is a read-modify-write under one lock.
type Store struct {
	config Config
	def    schema.Definition
	log    *slog.Logger
	newID  func() string

	mu sync.Mutex

	stampMu   sync.Mutex
	lastWrite fileStamp // what our own last save left on disk
}

// New creates a store for def.
func New(config Config, def schema.Definition, logger *slog.Logger) (*Store, error) {
	if config.SheetName == "" {
		config.SheetName = def.Sheet
	}
	if config.SheetName == "" {
		config.SheetName = def.Key
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		config: config,
		def:    def,
		log:    logger.With("workbook", filepath.Base(config.FilePath), "sheet", config.SheetName),
		newID:  uuid.NewString,
	}, nil
}

// Path returns the workbook path.
func (s *Store) Path() string {
	return s.config.FilePath
}

// Definition returns the definition the store serves.
func (s *Store) Definition() schema.Definition {
	return s.def
}

// Load returns every row of the sheet. A missing file or sheet is empty.
func (s *Store) Load(ctx context.Context) ([]table.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// Seed writes rows when the sheet is empty. Returns the number written.
func (s *Store) Seed(ctx context.Context, rows []table.Row) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 || len(rows) == 0 {
		return 0, nil
	}

	keyed := make([]table.Row, len(rows))
	for i, r := range rows {
		keyed[i] = s.withKey(r)
	}
	if err := s.save(ctx, keyed); err != nil {
		return 0, err
	}
	s.log.Info("seeded sheet", "rows", len(keyed))
	return len(keyed), nil
}

func (s *Store) load(ctx context.Context) ([]table.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(s.config.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []table.Row{}, nil
		}
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	idx, err := f.GetSheetIndex(s.config.SheetName)
	if err != nil {
		return nil, fmt.Errorf("get sheet index: %w", err)
	}
	if idx == -1 {
		return []table.Row{}, nil
	}

	cells, err := f.GetRows(s.config.SheetName)
	if err != nil {
		return nil, fmt.Errorf("get rows: %w", err)
	}
	if len(cells) == 0 {
		return []table.Row{}, nil
	}

	header := s.headerColumns(cells[0])
	rows := make([]table.Row, 0, len(cells)-1)
	for _, line := range cells[1:] {
		if isEmptyLine(line) {
			continue
		}
		row := make(table.Row, len(s.def.Columns))
		for j, col := range header {
			if col == nil {
				continue
			}
			value := ""
			if j < len(line) {
				value = line[j]
			}
			row[col.ID] = parseCell(*col, value)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// headerColumns maps each header cell to its column by id or header text,
// case-insensitively. Unknown headers map to nil.
func (s *Store) headerColumns(header []string) []*schema.Column {
	out := make([]*schema.Column, len(header))
	for j, h := range header {
		h = strings.TrimSpace(h)
		for i := range s.def.Columns {
			col := &s.def.Columns[i]
			if strings.EqualFold(h, col.ID) || strings.EqualFold(h, col.Header) {
				out[j] = col
				break
			}
		}
	}
	return out
}

// save replaces the sheet contents with rows, keeping other sheets.
func (s *Store) save(ctx context.Context, rows []table.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.config.FilePath), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	var f *excelize.File
	created := false
	if _, err := os.Stat(s.config.FilePath); err == nil {
		f, err = excelize.OpenFile(s.config.FilePath)
		if err != nil {
			return fmt.Errorf("open workbook: %w", err)
		}
	} else {
		f = excelize.NewFile()
		created = true
	}
	defer f.Close()

	sheet := s.config.SheetName
	idx, err := f.GetSheetIndex(sheet)
	if err != nil {
		return fmt.Errorf("get sheet index: %w", err)
	}
	if idx == -1 {
		index, err := f.NewSheet(sheet)
		if err != nil {
			return fmt.Errorf("create sheet: %w", err)
		}
		f.SetActiveSheet(index)
		if created {
			_ = f.DeleteSheet(f.GetSheetName(0))
		}
	} else if err := clearSheet(f, sheet); err != nil {
		return err
	}

	header := make([]interface{}, len(s.def.Columns))
	for i, col := range s.def.Columns {
		header[i] = col.Header
		if col.Header == "" {
			header[i] = col.ID
		}
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, row := range rows {
		values := make([]interface{}, len(s.def.Columns))
		for j, col := range s.def.Columns {
			values[j] = cellValue(row[col.ID])
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SaveAs(s.config.FilePath); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	s.recordWrite()
	return nil
}

// clearSheet removes every row of sheet, last first.
func clearSheet(f *excelize.File, sheet string) error {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("get rows: %w", err)
	}
	for n := len(rows); n >= 1; n-- {
		if err := f.RemoveRow(sheet, n); err != nil {
			return fmt.Errorf("clear row %d: %w", n, err)
		}
	}
	return nil
}

func (s *Store) recordWrite() {
	info, err := os.Stat(s.config.FilePath)
	if err != nil {
		return
	}
	s.stampMu.Lock()
	s.lastWrite = fileStamp{modTime: info.ModTime(), size: info.Size()}
	s.stampMu.Unlock()
}

// ownWrite reports whether the file on disk is still what this store wrote.
func (s *Store) ownWrite() bool {
	info, err := os.Stat(s.config.FilePath)
	if err != nil {
		return false
	}
	s.stampMu.Lock()
	defer s.stampMu.Unlock()
	return info.ModTime().Equal(s.lastWrite.modTime) && info.Size() == s.lastWrite.size
}

func (s *Store) withKey(row table.Row) table.Row {
	keyField := s.def.KeyFieldOrDefault()
	if _, ok := table.KeyOf(row, keyField); ok {
		return row
	}
	row = row.Clone()
	if row == nil {
		row = table.Row{}
	}
	row[keyField] = s.newID()
	return row
}

func isEmptyLine(line []string) bool {
	for _, c := range line {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
