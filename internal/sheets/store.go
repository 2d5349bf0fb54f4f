// Package sheets implements the ledger store on top of the Google Sheets
// API. Each logical table is one sheet with a fixed header row; rows are
// only ever appended.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Store holds a shared Sheets service and the spreadsheet it operates on.
type Store struct {
	svc           *sheets.Service
	spreadsheetID string
}

// NewStore creates a Store authenticated from the given service account
// credentials file. An empty credentialsFile falls back to application
// default credentials.
func NewStore(ctx context.Context, spreadsheetID, credentialsFile string) (*Store, error) {
	opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewStore: creating sheets service: %w", err)
	}

	return &Store{
		svc:           svc,
		spreadsheetID: spreadsheetID,
	}, nil
}

// NewStoreWithService wraps an existing Sheets service, primarily for
// callers that configure the client themselves.
func NewStoreWithService(svc *sheets.Service, spreadsheetID string) *Store {
	return &Store{
		svc:           svc,
		spreadsheetID: spreadsheetID,
	}
}

// SpreadsheetURL returns the browser URL of the backing spreadsheet.
func (s *Store) SpreadsheetURL() string {
	return "https://docs.google.com/spreadsheets/d/" + s.spreadsheetID
}

// EnsureSchema makes sure the named table exists with its header row. It is
// idempotent: an existing table is left untouched, and a table created
// out-of-band between the metadata read and the create call is not an
// error.
func (s *Store) EnsureSchema(ctx context.Context, table string, header []string) error {
	meta, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("EnsureSchema: reading spreadsheet metadata: %w", err)
	}

	for _, sheet := range meta.Sheets {
		if sheet.Properties != nil && sheet.Properties.Title == table {
			return nil
		}
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: table},
			},
		}},
	}
	if _, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		if isAlreadyExists(err) {
			// Someone else created it; make sure the header is right.
			return s.VerifySchema(ctx, table, header)
		}
		return fmt.Errorf("EnsureSchema: creating sheet %q: %w", table, err)
	}

	return s.writeHeader(ctx, table, header)
}

// VerifySchema reads the first row of the table and rewrites the header
// when it is absent or does not match.
func (s *Store) VerifySchema(ctx context.Context, table string, header []string) error {
	rng := headerRange(table, len(header))

	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("VerifySchema: reading header of %q: %w", table, err)
	}

	if len(resp.Values) > 0 && headerMatches(resp.Values[0], header) {
		return nil
	}

	return s.writeHeader(ctx, table, header)
}

// Append appends one row after the last occupied row of the table. The
// insertion point is determined by the backing store, not computed here.
func (s *Store) Append(ctx context.Context, table string, row []interface{}) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{row}}

	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, table, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("Append: appending to %q: %w", table, err)
	}

	return nil
}

// ReadAll returns every data row of the table, excluding the header row.
// Empty or header-only tables yield an empty slice.
func (s *Store) ReadAll(ctx context.Context, table, columnRange string) ([][]interface{}, error) {
	rng := fmt.Sprintf("%s!%s", table, columnRange)

	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("ReadAll: reading %q: %w", rng, err)
	}

	return rowsAfterHeader(resp.Values), nil
}

// ClearRange clears the cells in the given A1 range.
func (s *Store) ClearRange(ctx context.Context, a1Range string) error {
	_, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, a1Range, &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("ClearRange: clearing %q: %w", a1Range, err)
	}
	return nil
}

// CheckAccess verifies write access by appending a marker row to the table
// and clearing exactly the range the append reported back.
func (s *Store) CheckAccess(ctx context.Context, table string, columns int) error {
	marker := make([]interface{}, columns)
	for i := range marker {
		marker[i] = "TEST"
	}
	vr := &sheets.ValueRange{Values: [][]interface{}{marker}}

	resp, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, table, vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("CheckAccess: test append to %q: %w", table, err)
	}

	if resp.Updates == nil || resp.Updates.UpdatedRange == "" {
		return fmt.Errorf("CheckAccess: append to %q reported no updated range", table)
	}

	if err := s.ClearRange(ctx, resp.Updates.UpdatedRange); err != nil {
		return fmt.Errorf("CheckAccess: %w", err)
	}

	return nil
}

func (s *Store) writeHeader(ctx context.Context, table string, header []string) error {
	row := make([]interface{}, len(header))
	for i, h := range header {
		row[i] = h
	}
	vr := &sheets.ValueRange{Values: [][]interface{}{row}}

	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, headerRange(table, len(header)), vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("writeHeader: writing header of %q: %w", table, err)
	}

	return nil
}

// headerRange builds the A1 range of the header row, e.g. "Expenses!A1:F1"
// for a six-column table.
func headerRange(table string, columns int) string {
	return fmt.Sprintf("%s!A1:%s1", table, columnLetter(columns-1))
}

// columnLetter maps a zero-based column index to its letter. Ledger tables
// stay well within a single letter.
func columnLetter(index int) string {
	return string(rune('A' + index))
}

// headerMatches compares a raw header row against the expected names.
func headerMatches(got []interface{}, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i, cell := range got {
		s, ok := cell.(string)
		if !ok {
			s = fmt.Sprint(cell)
		}
		if strings.TrimSpace(s) != want[i] {
			return false
		}
	}
	return true
}

// rowsAfterHeader drops the header row, returning an empty (non-nil) slice
// for header-only or empty tables.
func rowsAfterHeader(values [][]interface{}) [][]interface{} {
	if len(values) <= 1 {
		return [][]interface{}{}
	}
	return values[1:]
}

// isAlreadyExists reports whether the API rejected a sheet creation because
// a sheet with that title already exists.
func isAlreadyExists(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 400 && strings.Contains(apiErr.Message, "already exists")
	}
	return false
}
