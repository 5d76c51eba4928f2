package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"kpiboard/internal/core"
	"kpiboard/internal/log"
)

// tableView is the data behind table.html. Cells are pre-rendered strings
// and the last row is always blank so a new entry can be typed in.
type tableView struct {
	Name     string
	Columns  []string
	Rows     [][]string
	RowCount int
	Message  string
	Error    string
}

func newTableView(name string, t core.Table) tableView {
	v := tableView{Name: name, Columns: t.Columns, RowCount: len(t.Rows)}
	for i := range t.Rows {
		row := make([]string, len(t.Columns))
		for c := range t.Columns {
			row[c] = core.CellString(t.Cell(i, c))
		}
		v.Rows = append(v.Rows, row)
	}
	v.Rows = append(v.Rows, make([]string, len(t.Columns)))
	return v
}

func tableTarget(name string) string { return "#tab-" + name }

func (s *Server) handleTablePartial(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	t, err := s.tables.Load(ctx, name)
	switch {
	case errors.Is(err, core.ErrNotFound):
		// A missing table is shown empty so it can be created by adding columns.
		logActionError(ctx, "Table does not exist yet", err, log.OpRead, log.NewFields().WithTable(name, 0, 0))
		view := newTableView(name, core.Table{Name: name})
		view.Error = core.UserMessage(err)
		s.writeTable(w, r, view, NewHTMXResponse())
	case err != nil:
		logActionError(ctx, "Failed to load table", err, log.OpRead, log.NewFields().WithTable(name, 0, 0))
		InlineError(s.templates, err, r.URL.Path, tableTarget(name)).Write(w)
	default:
		s.writeTable(w, r, newTableView(name, t), NewHTMXResponse())
	}
}

func (s *Server) handleTableSave(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := r.ParseForm(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	edited, err := ParseTableForm(r.PostForm)
	if err != nil {
		logActionError(r.Context(), "Rejected table form", err, log.OpParse, log.NewFields().WithTable(name, 0, 0))
		InlineError(s.templates, err, "/ui/tables/"+name, tableTarget(name)).Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	saved, err := s.tables.Save(ctx, name, edited)
	if err != nil {
		logActionError(ctx, "Failed to save table", err, log.OpWrite,
			log.NewFields().WithTable(name, len(edited.Rows), len(edited.Columns)))
		// Keep the user's edits on screen so a retry does not lose them.
		view := newTableView(name, edited)
		view.Error = core.UserMessage(err)
		s.writeTable(w, r, view, NewHTMXResponse().TriggerErrorNotification(view.Error))
		return
	}

	view := newTableView(name, saved)
	view.Message = fmt.Sprintf("Saved %d rows to %s.", len(saved.Rows), name)
	s.writeTable(w, r, view, NewHTMXResponse().
		TriggerTableSaved(name, len(saved.Rows)).
		TriggerSuccessNotification(view.Message))
}

func (s *Server) writeTable(w http.ResponseWriter, r *http.Request, view tableView, b *HTMXResponseBuilder) {
	body, err := s.execute("table.html", view)
	if err != nil {
		logActionError(r.Context(), "Table template execution failed", err, log.OpRender, nil)
		InternalServerError("Could not render the table.").Write(w)
		return
	}
	b.BodyHTML(body).Write(w)
}
