package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"kpiboard/internal/core"
	ports "kpiboard/internal/sheets"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// sheets maps table names to worksheet titles; unmapped tables use
	// their own name.
	sheets map[string]string
}

// Ensure interface conformance
var _ ports.TableStore = (*Client)(nil)

// New wraps an existing Sheets service.
func New(svc *gsheet.Service, spreadsheetID string, sheets map[string]string) *Client {
	if sheets == nil {
		sheets = map[string]string{}
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheets: sheets}
}

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Auth: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
// Optional sheet names: CONFIG_SHEET_NAME (default "KPI_Config"),
// ACTUALS_SHEET_NAME (default "KPI_Actuals").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	sheets := map[string]string{}
	if v := strings.TrimSpace(os.Getenv("CONFIG_SHEET_NAME")); v != "" {
		sheets[core.ConfigTable] = v
	}
	if v := strings.TrimSpace(os.Getenv("ACTUALS_SHEET_NAME")); v != "" {
		sheets[core.ActualsTable] = v
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return New(svc, spreadsheetID, sheets), nil
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		slog.DebugContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.DebugContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created")
	return service, nil
}

// SheetName returns the worksheet title backing a table.
func (c *Client) SheetName(table string) string {
	if s, ok := c.sheets[table]; ok && s != "" {
		return s
	}
	return table
}

// Read loads the whole worksheet; the first row is the header.
func (c *Client) Read(ctx context.Context, name string) (core.Table, error) {
	if c.svc == nil {
		return core.Table{}, &core.ConnectionError{Op: "read", Table: name, Err: errors.New("sheets service not initialized")}
	}
	values, err := c.values(ctx, name)
	if err != nil {
		return core.Table{}, classify("read", name, err)
	}
	return fromValues(name, values), nil
}

// Write replaces the worksheet contents with t in a single update. Cells
// outside the new grid but inside the previous extent are blanked.
func (c *Client) Write(ctx context.Context, name string, t core.Table) error {
	if c.svc == nil {
		return &core.ConnectionError{Op: "write", Table: name, Err: errors.New("sheets service not initialized")}
	}
	current, err := c.values(ctx, name)
	if err != nil {
		return classify("write", name, err)
	}
	oldRows, oldCols := extent(current)
	grid := toValues(t, oldRows, oldCols)
	if len(grid) == 0 {
		return nil
	}

	rng := fmt.Sprintf("%s!A1:%s%d", quoteSheet(c.SheetName(name)), columnLetter(len(grid[0])), len(grid))
	vr := &gsheet.ValueRange{Values: grid}
	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return classify("write", name, err)
	}
	return nil
}

func (c *Client) values(ctx context.Context, name string) ([][]any, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, quoteSheet(c.SheetName(name))).
		ValueRenderOption("UNFORMATTED_VALUE").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

// classify maps Sheets API failures onto the domain error types. A missing
// worksheet surfaces as 404 or as a 400 about an unparsable range.
func classify(op, table string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusNotFound ||
			(gerr.Code == http.StatusBadRequest && strings.Contains(gerr.Message, "Unable to parse range")) {
			return &core.NotFoundError{Table: table}
		}
	}
	return &core.ConnectionError{Op: op, Table: table, Err: err}
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// columnLetter converts a 1-based column number to A1 notation.
func columnLetter(n int) string {
	if n < 1 {
		n = 1
	}
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}
