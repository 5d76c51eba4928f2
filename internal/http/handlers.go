package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"kpiboard/internal/core"
)

type tabLink struct {
	Name  string
	Label string
}

var tabs = []tabLink{
	{Name: core.ConfigTable, Label: "Config"},
	{Name: core.ActualsTable, Label: "Actuals"},
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Tables  []tabLink
		Periods []core.Period
		Current core.Period
	}{
		Tables:  tabs,
		Periods: core.Periods,
		Current: core.PeriodOf(time.Now()),
	}
	body, err := s.execute("index.html", data)
	if err != nil {
		logActionError(r.Context(), "Index template execution failed", err, "render", nil)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	NewHTMXResponse().BodyHTML(body).Write(w)
}

// execute renders a named template into a string so that a failure never
// leaves a half-written response.
func (s *Server) execute(name string, data any) (string, error) {
	if s.templates == nil {
		return "", errors.New("templates not loaded")
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":              "ok",
		"timestamp":           time.Now().UTC().Format(time.RFC3339),
		"uptime":              time.Since(s.started).Round(time.Second).String(),
		"suspicious_requests": s.detector.SuspiciousCount(),
		"rate_limited_ips":    s.limiter.ActiveClients(),
	}
	if s.cache != nil {
		st := s.cache.Stats()
		resp["cache"] = map[string]int{"hits": st.Hits, "misses": st.Misses, "evictions": st.Evictions}
	}
	render.JSON(w, r, resp)
}

// handleReady reports 503 until every dependency answers. The table store
// counts as ready when it can answer a read, even with "not found".
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{}
	ready := true

	run := func(name string, check ReadyCheck) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if err := check(ctx); err != nil && !errors.Is(err, core.ErrNotFound) {
			checks[name] = err.Error()
			ready = false
			return
		}
		checks[name] = "ok"
	}

	if s.tables != nil {
		run("store", func(ctx context.Context) error {
			_, err := s.tables.Load(ctx, core.ConfigTable)
			return err
		})
	}
	for name, check := range s.readyChecks {
		run(name, check)
	}

	status := "ready"
	if !ready {
		status = "not ready"
		render.Status(r, http.StatusServiceUnavailable)
	}
	render.JSON(w, r, map[string]any{"status": status, "checks": checks})
}
