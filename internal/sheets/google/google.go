// Package google exports recurring series to a Google Sheets spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"bankcal/internal/recurrence"
	ports "bankcal/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	// Base tab name; each month gets "<base> YYYY-MM".
	sheetBase string
}

var _ ports.SeriesExporter = (*Client)(nil)

// New builds a client from explicit service options. Used by NewWithCredentials
// and by tests that point the service at a local endpoint.
func New(ctx context.Context, spreadsheetID, sheetBase string, opts ...goption.ClientOption) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetBase = strings.TrimSpace(sheetBase)
	if sheetBase == "" {
		sheetBase = "Recurring"
	}

	svc, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetBase: sheetBase}, nil
}

// NewWithCredentials authenticates with a service account taken from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS, in that order.
func NewWithCredentials(ctx context.Context, spreadsheetID, sheetBase string) (*Client, error) {
	credentialsJSON, err := loadCredentials(ctx)
	if err != nil {
		return nil, err
	}
	return New(ctx, spreadsheetID, sheetBase,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
}

func loadCredentials(ctx context.Context) ([]byte, error) {
	if inline := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); inline != "" {
		slog.InfoContext(ctx, "Using inline service account credentials")
		return []byte(inline), nil
	}

	path := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Reading credentials from file", "path", path)
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

// ExportSeries replaces the contents of the month's tab with one row per
// series, creating the tab if needed.
func (c *Client) ExportSeries(ctx context.Context, year int, month int, series []recurrence.Series) (int, error) {
	if c.svc == nil {
		return 0, errors.New("sheets service not initialized")
	}
	if month < 1 || month > 12 {
		return 0, fmt.Errorf("invalid month %d", month)
	}

	sheet := monthSheetName(c.sheetBase, year, month)
	if err := c.ensureSheet(ctx, sheet); err != nil {
		return 0, err
	}

	rng := fmt.Sprintf("'%s'!A:J", sheet)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return 0, fmt.Errorf("clear %s: %w", sheet, err)
	}

	rows := seriesRows(series)
	vr := &gsheet.ValueRange{Values: rows}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, fmt.Sprintf("'%s'!A1", sheet), vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do(); err != nil {
		return 0, fmt.Errorf("write %s: %w", sheet, err)
	}

	slog.InfoContext(ctx, "Exported series to Google Sheets",
		"sheet", sheet,
		"series", len(series))
	return len(series), nil
}

func (c *Client) ensureSheet(ctx context.Context, name string) error {
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("get spreadsheet: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == name {
			return nil
		}
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: name}},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", name, err)
	}
	slog.InfoContext(ctx, "Created sheet", "sheet", name)
	return nil
}

// monthSheetName returns "<base> YYYY-MM".
func monthSheetName(base string, year, month int) string {
	return fmt.Sprintf("%s %04d-%02d", base, year, month)
}
