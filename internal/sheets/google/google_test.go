package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"strings"
	"sync"
	"testing"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"kpiboard/internal/core"
)

// fakeSheets emulates the subset of the Sheets values API the client uses.
type fakeSheets struct {
	mu      sync.Mutex
	sheets  map[string][][]any
	updates int
	fail    int // when non-zero, every request answers with this status
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail != 0 {
		writeAPIError(w, f.fail, "backend error")
		return
	}
	_, rng, ok := strings.Cut(r.URL.Path, "/values/")
	if !ok {
		writeAPIError(w, http.StatusNotFound, "unknown path")
		return
	}
	sheet, _, _ := strings.Cut(rng, "!")
	sheet = strings.ReplaceAll(strings.Trim(sheet, "'"), "''", "'")
	values, exists := f.sheets[sheet]
	if !exists {
		writeAPIError(w, http.StatusBadRequest, "Unable to parse range: "+rng)
		return
	}

	switch r.Method {
	case http.MethodGet:
		_ = json.NewEncoder(w).Encode(map[string]any{"range": rng, "majorDimension": "ROWS", "values": values})
	case http.MethodPut:
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			writeAPIError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.updates++
		f.sheets[sheet] = trimGrid(vr.Values)
		_ = json.NewEncoder(w).Encode(map[string]any{"updatedRange": rng})
	default:
		writeAPIError(w, http.StatusMethodNotAllowed, "method")
	}
}

// trimGrid drops trailing empty cells and rows like the real API does.
func trimGrid(in [][]any) [][]any {
	var out [][]any
	for _, r := range in {
		end := len(r)
		for end > 0 && r[end-1] == "" {
			end--
		}
		out = append(out, r[:end])
	}
	for len(out) > 0 && len(out[len(out)-1]) == 0 {
		out = out[:len(out)-1]
	}
	return out
}

func writeAPIError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"code":%d,"message":%q,"status":"ERR"}}`, code, msg)
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return New(svc, "sheet-id", map[string]string{core.ActualsTable: "Actuals 2025"})
}

func TestClientRead(t *testing.T) {
	fake := &fakeSheets{sheets: map[string][][]any{
		core.ConfigTable: {
			{"Category", "Metric", "Weight", "Target_Jan"},
			{"Marketing", "Leads", 50, 100},
		},
	}}
	c := newTestClient(t, fake)

	tbl, err := c.Read(context.Background(), core.ConfigTable)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	wantCols := []string{"Category", "Metric", "Weight", "Target_Jan"}
	if !reflect.DeepEqual(tbl.Columns, wantCols) {
		t.Errorf("Columns = %v, want %v", tbl.Columns, wantCols)
	}
	if len(tbl.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(tbl.Rows))
	}
	if tbl.Rows[0][2] != 50.0 {
		t.Errorf("Weight = %#v, want 50.0", tbl.Rows[0][2])
	}
}

func TestClientReadMissingSheetIsNotFound(t *testing.T) {
	c := newTestClient(t, &fakeSheets{sheets: map[string][][]any{}})

	_, err := c.Read(context.Background(), core.ConfigTable)
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClientReadBackendFailureIsConnectionError(t *testing.T) {
	c := newTestClient(t, &fakeSheets{fail: http.StatusForbidden})

	_, err := c.Read(context.Background(), core.ConfigTable)
	if !errors.Is(err, core.ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
	if kind := core.KindOf(err); kind != core.KindConnection {
		t.Errorf("KindOf() = %q, want %q", kind, core.KindConnection)
	}
}

func TestClientWriteReplacesSheet(t *testing.T) {
	fake := &fakeSheets{sheets: map[string][][]any{
		"Actuals 2025": {
			{"Metric", "Actual_Jan", "Actual_Feb"},
			{"Leads", 1, 2},
			{"Calls", 3, 4},
			{"Visits", 5, 6},
		},
	}}
	c := newTestClient(t, fake)
	ctx := context.Background()

	err := c.Write(ctx, core.ActualsTable, core.Table{
		Columns: []string{"Metric", "Actual_Jan"},
		Rows:    [][]any{{"Leads", 80.0}},
	})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if fake.updates != 1 {
		t.Errorf("write must be a single update, got %d", fake.updates)
	}

	tbl, err := c.Read(ctx, core.ActualsTable)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !reflect.DeepEqual(tbl.Columns, []string{"Metric", "Actual_Jan"}) {
		t.Errorf("Columns = %v", tbl.Columns)
	}
	if len(tbl.Rows) != 1 || !reflect.DeepEqual(tbl.Rows[0], []any{"Leads", 80.0}) {
		t.Errorf("Rows = %#v, want [[Leads 80]]", tbl.Rows)
	}
}

func TestClientWriteMissingSheet(t *testing.T) {
	c := newTestClient(t, &fakeSheets{sheets: map[string][][]any{}})
	err := c.Write(context.Background(), core.ConfigTable, core.Table{Columns: []string{"A"}})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClientWithoutService(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	_, err := c.Read(context.Background(), core.ConfigTable)
	if !errors.Is(err, core.ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
}

func TestSheetNameDefaultsToTable(t *testing.T) {
	c := New(nil, "id", map[string]string{core.ConfigTable: "Targets"})
	if got := c.SheetName(core.ConfigTable); got != "Targets" {
		t.Errorf("SheetName(config) = %q, want Targets", got)
	}
	if got := c.SheetName(core.ActualsTable); got != core.ActualsTable {
		t.Errorf("SheetName(actuals) = %q, want %q", got, core.ActualsTable)
	}
}

func TestNewFromEnv_MissingSpreadsheetID(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")
	os.Unsetenv("GOOGLE_SPREADSHEET_ID")

	_, err := NewFromEnv(context.Background())
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("expected missing spreadsheet error, got %v", err)
	}
}

func TestNewFromEnv_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "test-id")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := NewFromEnv(context.Background())
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected missing credentials error, got %v", err)
	}
}
