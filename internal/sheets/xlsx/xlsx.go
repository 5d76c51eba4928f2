// Package xlsx stores tables as worksheets of a local Excel workbook, one
// sheet per table. It lets the dashboard run against a spreadsheet file
// without any Google account.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/xuri/excelize/v2"

	"kpiboard/internal/core"
	ports "kpiboard/internal/sheets"
)

const defaultSheet = "Sheet1"

var _ ports.TableStore = (*Store)(nil)

type Store struct {
	mu   sync.Mutex
	path string
}

func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the workbook location.
func (s *Store) Path() string { return s.path }

// Read loads the worksheet called name. A missing workbook or sheet is
// reported as *core.NotFoundError.
func (s *Store) Read(_ context.Context, name string) (core.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return core.Table{}, &core.NotFoundError{Table: name}
		}
		return core.Table{}, &core.ConnectionError{Op: "read", Table: name, Err: err}
	}
	defer f.Close()

	if idx, err := f.GetSheetIndex(name); err != nil || idx < 0 {
		return core.Table{}, &core.NotFoundError{Table: name}
	}
	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return core.Table{}, &core.ConnectionError{Op: "read", Table: name, Err: err}
	}
	return fromRows(name, rows), nil
}

// Write replaces the worksheet called name and saves the workbook, creating
// the file when it does not exist yet.
func (s *Store) Write(_ context.Context, name string, t core.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, created, err := s.open()
	if err != nil {
		return &core.ConnectionError{Op: "write", Table: name, Err: err}
	}
	defer f.Close()

	if err := replaceSheet(f, name, t); err != nil {
		return &core.ConnectionError{Op: "write", Table: name, Err: err}
	}
	if created && name != defaultSheet {
		if idx, _ := f.GetSheetIndex(defaultSheet); idx >= 0 {
			if err := f.DeleteSheet(defaultSheet); err != nil {
				return &core.ConnectionError{Op: "write", Table: name, Err: err}
			}
		}
	}
	if err := f.SaveAs(s.path); err != nil {
		return &core.ConnectionError{Op: "write", Table: name, Err: err}
	}
	return nil
}

func (s *Store) open() (*excelize.File, bool, error) {
	if _, err := os.Stat(s.path); errors.Is(err, fs.ErrNotExist) {
		return excelize.NewFile(), true, nil
	}
	f, err := excelize.OpenFile(s.path)
	return f, false, err
}

// replaceSheet swaps the sheet for a freshly written one so no stale cells
// survive. The old sheet is renamed first because a workbook must always
// keep at least one sheet.
func replaceSheet(f *excelize.File, name string, t core.Table) error {
	idx, err := f.GetSheetIndex(name)
	if err != nil {
		return err
	}
	old := ""
	if idx >= 0 {
		old = name + "~old"
		if err := f.SetSheetName(name, old); err != nil {
			return err
		}
	}
	idx, err = f.NewSheet(name)
	if err != nil {
		return err
	}
	if err := writeTable(f, name, t); err != nil {
		return err
	}
	if old != "" {
		if err := f.DeleteSheet(old); err != nil {
			return err
		}
		if idx, err = f.GetSheetIndex(name); err != nil {
			return err
		}
	}
	f.SetActiveSheet(idx)
	return nil
}

func writeTable(f *excelize.File, sheet string, t core.Table) error {
	header := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("header: %w", err)
	}
	for i, r := range t.Rows {
		row := append([]any(nil), r...)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	return nil
}

func columnName(cols []string, i int) string {
	if i < len(cols) {
		return cols[i]
	}
	return ""
}

// fromRows converts excelize text rows into a table. Trailing blank rows
// are dropped since the file format keeps empty rows around after edits.
func fromRows(name string, rows [][]string) core.Table {
	t := core.Table{Name: name}
	if len(rows) == 0 {
		return t
	}
	t.Columns = append([]string(nil), rows[0]...)
	for _, raw := range rows[1:] {
		row := make([]any, len(raw))
		for i, v := range raw {
			row[i] = core.ParseColumnCell(columnName(t.Columns, i), v)
		}
		t.Rows = append(t.Rows, row)
	}
	for len(t.Rows) > 0 && core.IsBlankRow(t.Rows[len(t.Rows)-1]) {
		t.Rows = t.Rows[:len(t.Rows)-1]
	}
	return t
}
