package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"kpiboard/internal/core"
	"kpiboard/internal/log"
)

// tableRequest is the body of PUT /api/tables/{name}.
type tableRequest struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

func (t *tableRequest) Bind(r *http.Request) error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("%w: columns are required", core.ErrEmptyHeader)
	}
	return nil
}

type tableResponse struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

func newTableResponse(t core.Table) *tableResponse {
	resp := &tableResponse{Name: t.Name, Columns: t.Columns, Rows: t.Rows}
	if resp.Columns == nil {
		resp.Columns = []string{}
	}
	if resp.Rows == nil {
		resp.Rows = [][]any{}
	}
	return resp
}

func (t *tableResponse) Render(w http.ResponseWriter, r *http.Request) error { return nil }

// errResponse is the JSON error body: {"error": ..., "kind": ...}.
type errResponse struct {
	HTTPStatusCode int    `json:"-"`
	Message        string `json:"error"`
	Kind           string `json:"kind"`
}

func (e *errResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func errRender(err error) render.Renderer {
	return &errResponse{
		HTTPStatusCode: statusFor(err),
		Message:        core.UserMessage(err),
		Kind:           string(core.KindOf(err)),
	}
}

func errBadRequest(err error) render.Renderer {
	return &errResponse{
		HTTPStatusCode: http.StatusBadRequest,
		Message:        "Invalid request body: " + err.Error(),
		Kind:           string(core.KindInvalidInput),
	}
}

func (s *Server) handleAPIGetTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	t, err := s.tables.Load(ctx, name)
	if err != nil {
		logActionError(ctx, "Failed to load table", err, log.OpRead, log.NewFields().WithTable(name, 0, 0))
		_ = render.Render(w, r, errRender(err))
		return
	}
	_ = render.Render(w, r, newTableResponse(t))
}

func (s *Server) handleAPIPutTable(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req tableRequest
	if err := render.Bind(r, &req); err != nil {
		if core.KindOf(err) == core.KindInvalidInput {
			_ = render.Render(w, r, errRender(err))
		} else {
			_ = render.Render(w, r, errBadRequest(err))
		}
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	saved, err := s.tables.Save(ctx, name, core.Table{Name: name, Columns: req.Columns, Rows: req.Rows})
	if err != nil {
		logActionError(ctx, "Failed to save table", err, log.OpWrite,
			log.NewFields().WithTable(name, len(req.Rows), len(req.Columns)))
		_ = render.Render(w, r, errRender(err))
		return
	}
	_ = render.Render(w, r, newTableResponse(saved))
}

func (s *Server) handleAPIReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.computeReport(r)
	if err != nil {
		logActionError(r.Context(), "Failed to compute report", err, log.OpCompute,
			log.NewFields().WithPeriod(r.URL.Query().Get("period")))
		_ = render.Render(w, r, errRender(err))
		return
	}
	render.JSON(w, r, rep)
}
