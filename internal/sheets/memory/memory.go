package memory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"kpiboard/internal/core"
	ports "kpiboard/internal/sheets"
)

var _ ports.TableStore = (*Store)(nil)

type Store struct {
	mu     sync.Mutex
	tables map[string]core.Table
}

// New returns a store holding clones of the given tables.
func New(tables ...core.Table) *Store {
	s := &Store{tables: make(map[string]core.Table, len(tables))}
	for _, t := range tables {
		s.tables[t.Name] = t.Clone()
	}
	return s
}

// NewFromFiles seeds the store from <base>/KPI_Config.csv and
// <base>/KPI_Actuals.csv. A missing or unreadable file falls back to the
// built-in sample for that table.
func NewFromFiles(base string) *Store {
	var tables []core.Table
	for _, name := range core.TableNames {
		t, err := ReadCSVFile(filepath.Join(base, name+".csv"), name)
		if err != nil || len(t.Columns) == 0 {
			t = Sample(name)
		}
		tables = append(tables, t)
	}
	return New(tables...)
}

// Read returns a copy of the named table.
func (s *Store) Read(_ context.Context, name string) (core.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return core.Table{}, &core.NotFoundError{Table: name}
	}
	return t.Clone(), nil
}

// Write replaces the named table, creating it if needed.
func (s *Store) Write(_ context.Context, name string, t core.Table) error {
	c := t.Clone()
	c.Name = name
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[name] = c
	return nil
}

// ReadCSVFile loads a table from a CSV file whose first record is the header.
func ReadCSVFile(path, name string) (core.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return core.Table{}, err
	}
	defer f.Close()
	return ReadCSV(f, name)
}

// ReadCSV parses CSV records into a table. Numeric text becomes float64
// outside the Category and Metric columns, and empty fields become nil.
func ReadCSV(r io.Reader, name string) (core.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	t := core.Table{Name: name}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return core.Table{}, fmt.Errorf("parse csv %s: %w", name, err)
		}
		if t.Columns == nil {
			t.Columns = rec
			continue
		}
		row := make([]any, len(rec))
		for i, v := range rec {
			col := ""
			if i < len(t.Columns) {
				col = t.Columns[i]
			}
			row[i] = core.ParseColumnCell(col, v)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

type sampleMetric struct {
	category string
	metric   string
	weight   float64
	target   float64
	actual   float64
}

var sampleMetrics = []sampleMetric{
	{"Marketing", "Leads", 50, 100, 80},
	{"Marketing", "Campaigns", 50, 4, 3},
	{"Sales", "Revenue", 60, 50000, 46000},
	{"Sales", "Deals", 40, 20, 22},
	{"Support", "Tickets Closed", 70, 300, 270},
	{"Support", "CSAT", 30, 90, 87},
}

// Sample returns a small demo table for name so the dashboard is usable
// without any data files.
func Sample(name string) core.Table {
	switch name {
	case core.ConfigTable:
		t := core.Table{Name: name, Columns: []string{core.ColCategory, core.ColMetric, core.ColWeight}}
		for _, p := range core.Periods {
			t.Columns = append(t.Columns, p.TargetColumn())
		}
		for _, m := range sampleMetrics {
			row := []any{m.category, m.metric, m.weight}
			for range core.Periods {
				row = append(row, m.target)
			}
			t.Rows = append(t.Rows, row)
		}
		return t
	case core.ActualsTable:
		t := core.Table{Name: name, Columns: []string{core.ColMetric}}
		for _, p := range core.Periods {
			t.Columns = append(t.Columns, p.ActualColumn())
		}
		for _, m := range sampleMetrics {
			row := []any{m.metric}
			for i := range core.Periods {
				// Vary the months a little so the period selector matters.
				row = append(row, m.actual*(1+float64(i%3-1)/10))
			}
			t.Rows = append(t.Rows, row)
		}
		return t
	default:
		return core.Table{Name: name}
	}
}
