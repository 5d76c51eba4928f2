package http

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"kpiboard/internal/core"
)

// Upper bounds for the editor form, well above any real scorecard.
const (
	maxFormColumns = 200
	maxFormRows    = 5000
)

// ParsePeriodParam reads the "period" parameter, defaulting to the month of
// now when it is absent.
func ParsePeriodParam(query url.Values, now time.Time) (core.Period, error) {
	v := strings.TrimSpace(query.Get("period"))
	if v == "" {
		return core.PeriodOf(now), nil
	}
	return core.ParsePeriod(v)
}

// ParseTableForm rebuilds a table from the editor form.
//
// The form carries cols/rows counts, header inputs col_<c>, cells
// cell_<r>_<c>, row deletion checkboxes delete_<r> and an optional
// new_column. A header left blank removes that column. Cell text is coerced
// with core.ParseColumnCell so numbers are stored as numbers while
// Category and Metric labels stay text.
func ParseTableForm(form url.Values) (core.Table, error) {
	cols, err := formCount(form, "cols", maxFormColumns)
	if err != nil {
		return core.Table{}, err
	}
	rows, err := formCount(form, "rows", maxFormRows)
	if err != nil {
		return core.Table{}, err
	}

	var (
		t    core.Table
		keep []int
	)
	for c := 0; c < cols; c++ {
		name := sanitizeInput(form.Get("col_" + strconv.Itoa(c)))
		if name == "" {
			continue
		}
		t.Columns = append(t.Columns, name)
		keep = append(keep, c)
	}
	if extra := sanitizeInput(form.Get("new_column")); extra != "" {
		t.Columns = append(t.Columns, extra)
	}

	for r := 0; r < rows; r++ {
		rs := strconv.Itoa(r)
		if form.Get("delete_"+rs) != "" {
			continue
		}
		row := make([]any, len(t.Columns))
		for i, c := range keep {
			row[i] = core.ParseColumnCell(t.Columns[i], sanitizeInput(form.Get("cell_"+rs+"_"+strconv.Itoa(c))))
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func formCount(form url.Values, key string, max int) (int, error) {
	v := strings.TrimSpace(form.Get(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative number", core.ErrInvalidTable, key)
	}
	if n > max {
		return 0, fmt.Errorf("%w: %s exceeds %d", core.ErrInvalidTable, key, max)
	}
	return n, nil
}
