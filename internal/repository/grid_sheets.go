package repository

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsConfig identifies a worksheet and the service account used to reach it.
type SheetsConfig struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsFile string
	CredentialsJSON string // takes precedence over CredentialsFile
}

// SheetsGridStore implements GridStore on a Google Sheets worksheet.
type SheetsGridStore struct {
	values        *sheets.SpreadsheetsValuesService
	spreadsheetID string
	sheetName     string
	log           *zap.Logger
}

// NewSheetsGridStore authenticates with a service account and opens the worksheet.
// extra options are appended after the credential options.
func NewSheetsGridStore(ctx context.Context, cfg SheetsConfig, log *zap.Logger, extra ...option.ClientOption) (*SheetsGridStore, error) {
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}

	opts := []option.ClientOption{option.WithScopes(sheets.SpreadsheetsScope)}
	switch {
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	opts = append(opts, extra...)

	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets client: %w", err)
	}

	// Fail early if the spreadsheet cannot be opened.
	if _, err := srv.Spreadsheets.Get(cfg.SpreadsheetID).Fields("spreadsheetId").Context(ctx).Do(); err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}

	log.Info("sheets grid store initialized",
		zap.String("spreadsheet", cfg.SpreadsheetID),
		zap.String("sheet", cfg.SheetName))

	return &SheetsGridStore{
		values:        srv.Spreadsheets.Values,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
		log:           log,
	}, nil
}

// ReadColumn reads one whole column. The API omits trailing empty cells.
func (s *SheetsGridStore) ReadColumn(ctx context.Context, column int) ([]string, error) {
	letter := ColumnLetter(column)
	rng := fmt.Sprintf("%s!%s:%s", quoteSheetName(s.sheetName), letter, letter)

	resp, err := s.values.Get(s.spreadsheetID, rng).
		MajorDimension("COLUMNS").
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to read column %s: %w", letter, err)
	}
	if len(resp.Values) == 0 {
		return []string{}, nil
	}

	cells := resp.Values[0]
	out := make([]string, len(cells))
	for i, cell := range cells {
		if cell != nil {
			out[i] = fmt.Sprint(cell)
		}
	}
	return out, nil
}

// WriteCell writes value as entered text (no formula parsing).
func (s *SheetsGridStore) WriteCell(ctx context.Context, row, column int, value string) error {
	rng := fmt.Sprintf("%s!%s%d", quoteSheetName(s.sheetName), ColumnLetter(column), row)
	body := &sheets.ValueRange{Values: [][]interface{}{{value}}}

	_, err := s.values.Update(s.spreadsheetID, rng, body).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to write cell %s: %w", rng, err)
	}
	return nil
}

// quoteSheetName quotes a sheet name for A1 notation so spaces and '!'
// survive. Embedded quotes are doubled.
func quoteSheetName(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// Close is a no-op; the HTTP client needs no teardown.
func (s *SheetsGridStore) Close() error {
	return nil
}

// ColumnLetter converts a 1-based column index to A1 notation (1 -> A, 27 -> AA).
func ColumnLetter(column int) string {
	if column < 1 {
		return ""
	}
	var buf []byte
	for column > 0 {
		column--
		buf = append([]byte{byte('A' + column%26)}, buf...)
		column /= 26
	}
	return string(buf)
}

// Ensure SheetsGridStore implements GridStore
var _ GridStore = (*SheetsGridStore)(nil)
