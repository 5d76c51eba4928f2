package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"kpiboard/internal/core"
	"kpiboard/internal/log"
	"kpiboard/internal/middleware/ratelimit"
	"kpiboard/internal/services"
	"kpiboard/internal/sheets"
	"kpiboard/internal/sheets/memory"
)

func testTables() (core.Table, core.Table) {
	config := core.Table{
		Name:    core.ConfigTable,
		Columns: []string{"Category", "Metric", "Weight", "Target_Jan"},
		Rows: [][]any{
			{"Sales", "Leads", 40.0, 100.0},
			{"Sales", "Revenue", 60.0, 0.0},
			{"Ops", "Calls", 100.0, 10.0},
		},
	}
	actuals := core.Table{
		Name:    core.ActualsTable,
		Columns: []string{"Metric", "Actual_Jan"},
		Rows: [][]any{
			{"Leads", 80.0},
			{"Revenue", 500.0},
		},
	}
	return config, actuals
}

func quietLogger() *log.Logger {
	return log.New(log.Config{Level: slog.LevelError, Component: log.ComponentHTTP, Output: io.Discard})
}

func newTestServer(t *testing.T, store sheets.TableStore) *Server {
	t.Helper()
	logger := quietLogger()
	s := NewServer(Options{
		Tables:    services.NewTableService(store, nil, logger),
		Reports:   services.NewReportService(store, logger),
		RateLimit: ratelimit.Config{RequestsPerMinute: 1000, Methods: []string{http.MethodPost, http.MethodPut}},
		Logger:    logger,
	})
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler.ServeHTTP(w, req)
	return w
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, want, w.Body.String())
	}
}

func expectBody(t *testing.T, w *httptest.ResponseRecorder, parts ...string) {
	t.Helper()
	body := w.Body.String()
	for _, p := range parts {
		if !strings.Contains(body, p) {
			t.Errorf("body missing %q", p)
		}
	}
}

// downStore fails every call the way an unreachable backend does.
type downStore struct{}

func (downStore) Read(_ context.Context, name string) (core.Table, error) {
	return core.Table{}, &core.ConnectionError{Op: "read", Table: name, Err: errors.New("connection refused")}
}

func (downStore) Write(_ context.Context, name string, _ core.Table) error {
	return &core.ConnectionError{Op: "write", Table: name, Err: errors.New("connection refused")}
}

func TestIndexPage(t *testing.T) {
	s := newTestServer(t, memory.New(testTables()))

	w := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))

	expectStatus(t, w, http.StatusOK)
	expectBody(t, w,
		`hx-get="/ui/tables/KPI_Config"`,
		`hx-get="/ui/tables/KPI_Actuals"`,
		`data-tab="tab-report"`,
		`<option value="Dec"`)
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if w.Header().Get("Content-Security-Policy") == "" {
		t.Errorf("missing Content-Security-Policy")
	}
}

func TestStaticAssets(t *testing.T) {
	s := newTestServer(t, memory.New())

	w := serve(s, httptest.NewRequest(http.MethodGet, "/static/app.css", nil))

	expectStatus(t, w, http.StatusOK)
	if cc := w.Header().Get("Cache-Control"); !strings.Contains(cc, "max-age=3600") {
		t.Errorf("Cache-Control = %q", cc)
	}
}

func TestTablePartial(t *testing.T) {
	s := newTestServer(t, memory.New(testTables()))

	w := serve(s, httptest.NewRequest(http.MethodGet, "/ui/tables/KPI_Config", nil))

	expectStatus(t, w, http.StatusOK)
	// Three rows plus one blank entry row.
	expectBody(t, w,
		`name="col_3" value="Target_Jan"`,
		`name="cell_0_1" value="Leads"`,
		`name="rows" value="4"`)
}

func TestTablePartial_Failures(t *testing.T) {
	t.Run("unreachable store renders inline error with retry", func(t *testing.T) {
		s := newTestServer(t, downStore{})

		w := serve(s, httptest.NewRequest(http.MethodGet, "/ui/tables/KPI_Config", nil))

		expectStatus(t, w, http.StatusOK)
		expectBody(t, w, `data-kind="connection"`, `hx-get="/ui/tables/KPI_Config"`)
	})

	t.Run("missing table renders an empty editor", func(t *testing.T) {
		s := newTestServer(t, memory.New())

		w := serve(s, httptest.NewRequest(http.MethodGet, "/ui/tables/KPI_Actuals", nil))

		expectStatus(t, w, http.StatusOK)
		expectBody(t, w, "does not exist", `name="new_column"`)
	})

	t.Run("unknown table", func(t *testing.T) {
		s := newTestServer(t, memory.New(testTables()))

		w := serve(s, httptest.NewRequest(http.MethodGet, "/ui/tables/Secrets", nil))

		expectStatus(t, w, http.StatusOK)
		expectBody(t, w, "Unknown table")
	})
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestTableSave(t *testing.T) {
	store := memory.New(testTables())
	s := newTestServer(t, store)

	form := url.Values{
		"cols":     {"2"},
		"rows":     {"4"},
		"col_0":    {"Metric"},
		"col_1":    {"Actual_Jan"},
		"cell_0_0": {"Leads"},
		"cell_0_1": {"90"},
		"cell_1_0": {"Revenue"},
		"cell_1_1": {"500"},
		"delete_1": {"on"},
		"cell_2_0": {"Calls"},
		"cell_2_1": {"5"},
		// row 3 is the blank entry row and is dropped
	}
	w := serve(s, postForm("/ui/tables/KPI_Actuals", form))

	expectStatus(t, w, http.StatusOK)
	trigger := w.Header().Get("HX-Trigger")
	if !strings.Contains(trigger, `"table:saved"`) || !strings.Contains(trigger, `"type":"success"`) {
		t.Errorf("HX-Trigger = %s", trigger)
	}
	expectBody(t, w, "Saved 2 rows to KPI_Actuals.")

	saved, err := store.Read(context.Background(), core.ActualsTable)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	want := [][]any{{"Leads", 90.0}, {"Calls", 5.0}}
	if !reflect.DeepEqual(saved.Rows, want) {
		t.Errorf("saved rows = %#v, want %#v", saved.Rows, want)
	}
}

func TestTableSave_KeepsEditsOnFailure(t *testing.T) {
	s := newTestServer(t, downStore{})

	form := url.Values{
		"cols":     {"1"},
		"rows":     {"1"},
		"col_0":    {"Metric"},
		"cell_0_0": {"Unsaved edit"},
	}
	w := serve(s, postForm("/ui/tables/KPI_Actuals", form))

	expectStatus(t, w, http.StatusOK)
	expectBody(t, w, "Unsaved edit", "could not be reached")
	trigger := w.Header().Get("HX-Trigger")
	if !strings.Contains(trigger, `"type":"error"`) || strings.Contains(trigger, "table:saved") {
		t.Errorf("HX-Trigger = %s", trigger)
	}
}

func TestTableSave_RejectsDuplicateColumns(t *testing.T) {
	store := memory.New(testTables())
	s := newTestServer(t, store)

	form := url.Values{"cols": {"2"}, "col_0": {"Metric"}, "col_1": {"Metric"}}
	w := serve(s, postForm("/ui/tables/KPI_Actuals", form))

	expectStatus(t, w, http.StatusOK)
	expectBody(t, w, "duplicate column")

	stored, err := store.Read(context.Background(), core.ActualsTable)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(stored.Rows) != 2 {
		t.Errorf("store must be untouched, got %d rows", len(stored.Rows))
	}
}

func TestReportPartial(t *testing.T) {
	s := newTestServer(t, memory.New(testTables()))

	w := serve(s, httptest.NewRequest(http.MethodGet, "/ui/report?period=Jan", nil))

	expectStatus(t, w, http.StatusOK)
	// 80.00 is the Leads achievement, 32.00 its weighted score.
	expectBody(t, w,
		"Performance for Jan",
		"80.00",
		"32.00",
		"Unmatched metrics (ignored): Calls",
		`href="/report.xlsx?period=Jan"`)
}

func TestReportPartial_Errors(t *testing.T) {
	t.Run("invalid period", func(t *testing.T) {
		s := newTestServer(t, memory.New(testTables()))
		w := serve(s, httptest.NewRequest(http.MethodGet, "/ui/report?period=January", nil))
		expectStatus(t, w, http.StatusOK)
		expectBody(t, w, "valid report month")
	})

	t.Run("missing column", func(t *testing.T) {
		s := newTestServer(t, memory.New(testTables()))
		w := serve(s, httptest.NewRequest(http.MethodGet, "/ui/report?period=Feb", nil))
		expectStatus(t, w, http.StatusOK)
		expectBody(t, w, `data-kind="schema"`, "Target_Feb")
	})

	t.Run("no matching metrics", func(t *testing.T) {
		config, _ := testTables()
		actuals := core.Table{Name: core.ActualsTable, Columns: []string{"Metric", "Actual_Jan"}}
		s := newTestServer(t, memory.New(config, actuals))
		w := serve(s, httptest.NewRequest(http.MethodGet, "/ui/report?period=Jan", nil))
		expectStatus(t, w, http.StatusOK)
		expectBody(t, w, "No metrics matched")
	})
}

func TestReportExport(t *testing.T) {
	s := newTestServer(t, memory.New(testTables()))

	w := serve(s, httptest.NewRequest(http.MethodGet, "/report.xlsx?period=Jan", nil))

	expectStatus(t, w, http.StatusOK)
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "kpi_report_Jan.xlsx") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Detail")
	if err != nil {
		t.Fatalf("detail rows: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("expected header plus Leads and Revenue, got %d rows", len(rows))
	}

	w = serve(s, httptest.NewRequest(http.MethodGet, "/report.xlsx?period=Smarch", nil))
	expectStatus(t, w, http.StatusUnprocessableEntity)
}

func TestAPITables(t *testing.T) {
	store := memory.New(testTables())
	s := newTestServer(t, store)

	w := serve(s, httptest.NewRequest(http.MethodGet, "/api/tables/KPI_Actuals", nil))
	expectStatus(t, w, http.StatusOK)
	var got tableResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Name != "KPI_Actuals" || !reflect.DeepEqual(got.Columns, []string{"Metric", "Actual_Jan"}) || len(got.Rows) != 2 {
		t.Errorf("unexpected table: %+v", got)
	}

	body := `{"columns":["Metric","Actual_Jan"],"rows":[["Leads",70],["",""]]}`
	req := httptest.NewRequest(http.MethodPut, "/api/tables/KPI_Actuals", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w = serve(s, req)
	expectStatus(t, w, http.StatusOK)

	saved, err := store.Read(context.Background(), core.ActualsTable)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if want := [][]any{{"Leads", 70.0}}; !reflect.DeepEqual(saved.Rows, want) {
		t.Errorf("blank rows should be dropped, got %#v", saved.Rows)
	}
}

func TestAPIErrors(t *testing.T) {
	tests := []struct {
		name     string
		store    sheets.TableStore
		method   string
		path     string
		body     string
		wantCode int
		wantKind string
	}{
		{"not found", memory.New(), http.MethodGet, "/api/tables/KPI_Config", "", 404, "not_found"},
		{"connection", downStore{}, http.MethodGet, "/api/tables/KPI_Config", "", 502, "connection"},
		{"schema", memory.New(testTables()), http.MethodGet, "/api/report?period=Mar", "", 422, "schema"},
		{"bad period", memory.New(testTables()), http.MethodGet, "/api/report?period=13", "", 422, "invalid_input"},
		{"no columns", memory.New(), http.MethodPut, "/api/tables/KPI_Config", `{"rows":[]}`, 422, "invalid_input"},
		{"malformed json", memory.New(), http.MethodPut, "/api/tables/KPI_Config", `{`, 400, "invalid_input"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.store)
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := serve(s, req)

			expectStatus(t, w, tt.wantCode)
			var resp map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp["kind"] != tt.wantKind {
				t.Errorf("kind = %q, want %q", resp["kind"], tt.wantKind)
			}
			if resp["error"] == "" {
				t.Errorf("missing error message")
			}
		})
	}
}

func TestAPIReport(t *testing.T) {
	s := newTestServer(t, memory.New(testTables()))

	w := serve(s, httptest.NewRequest(http.MethodGet, "/api/report?period=Jan", nil))

	expectStatus(t, w, http.StatusOK)
	var rep struct {
		Period string `json:"period"`
		Detail []struct {
			Metric        string  `json:"metric"`
			WeightedScore float64 `json:"weighted_score"`
		} `json:"detail"`
		Summary []struct {
			Category           string  `json:"category"`
			TotalWeightedScore float64 `json:"total_weighted_score"`
		} `json:"summary"`
		Unmatched []string `json:"unmatched"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &rep); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rep.Period != "Jan" {
		t.Errorf("period = %q", rep.Period)
	}
	if len(rep.Detail) != 2 {
		t.Fatalf("expected 2 detail rows, got %d", len(rep.Detail))
	}
	if math.Abs(rep.Detail[0].WeightedScore-32) > 1e-9 {
		t.Errorf("Leads weighted score = %v, want 32", rep.Detail[0].WeightedScore)
	}
	if rep.Detail[1].WeightedScore != 0 {
		t.Errorf("zero target should score zero, got %v", rep.Detail[1].WeightedScore)
	}
	if len(rep.Summary) != 1 || math.Abs(rep.Summary[0].TotalWeightedScore-32) > 1e-9 {
		t.Errorf("summary = %+v", rep.Summary)
	}
	if !reflect.DeepEqual(rep.Unmatched, []string{"Calls"}) {
		t.Errorf("unmatched = %v", rep.Unmatched)
	}
}

func TestAPICORS(t *testing.T) {
	s := newTestServer(t, memory.New(testTables()))

	req := httptest.NewRequest(http.MethodOptions, "/api/tables/KPI_Config", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPut)
	w := serve(s, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t, memory.New())

	w := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	expectStatus(t, w, http.StatusOK)
	expectBody(t, w, `"status":"ok"`)

	// A missing table still means the store answered.
	w = serve(s, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	expectStatus(t, w, http.StatusOK)

	down := newTestServer(t, downStore{})
	w = serve(down, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	expectStatus(t, w, http.StatusServiceUnavailable)
	expectBody(t, w, "not ready")
}

func TestRateLimitOnSaves(t *testing.T) {
	logger := quietLogger()
	store := memory.New(testTables())
	s := NewServer(Options{
		Tables:    services.NewTableService(store, nil, logger),
		Reports:   services.NewReportService(store, logger),
		RateLimit: ratelimit.Config{RequestsPerMinute: 1, Methods: []string{http.MethodPost}},
		Logger:    logger,
	})
	defer s.Shutdown(context.Background())

	form := url.Values{"cols": {"1"}, "col_0": {"Metric"}}
	first := serve(s, postForm("/ui/tables/KPI_Actuals", form))
	second := serve(s, postForm("/ui/tables/KPI_Actuals", form))

	expectStatus(t, first, http.StatusOK)
	expectStatus(t, second, http.StatusTooManyRequests)
	if got := second.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q", got)
	}

	// Reads are never limited.
	expectStatus(t, serve(s, httptest.NewRequest(http.MethodGet, "/ui/tables/KPI_Actuals", nil)), http.StatusOK)
}
