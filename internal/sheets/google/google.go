// Package google mirrors expenses into a Google Sheet, one row per expense
// keyed by expense ID in column A.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const valueInputOption = "USER_ENTERED"

// Config selects the spreadsheet and credentials. One of ServiceAccountJSON
// or ServiceAccountFile must be set, otherwise GOOGLE_APPLICATION_CREDENTIALS
// is consulted.
type Config struct {
	SpreadsheetID      string
	SheetName          string
	ServiceAccountJSON string
	ServiceAccountFile string
}

// valuesAPI is the subset of the Sheets API the mirror needs.
type valuesAPI interface {
	Get(ctx context.Context, spreadsheetID, rng string) ([][]any, error)
	Update(ctx context.Context, spreadsheetID, rng string, row []any) error
	Append(ctx context.Context, spreadsheetID, rng string, row []any) error
	// DeleteRow removes the zero-based row index from the named sheet.
	DeleteRow(ctx context.Context, spreadsheetID, sheetName string, index int) error
}

type Client struct {
	api           valuesAPI
	spreadsheetID string
	sheetName     string
	logger        *log.Logger

	// Serializes find-then-write so concurrent upserts cannot append twice.
	mu sync.Mutex
}

// New creates a Sheets client authenticated with a service account.
func New(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	if strings.TrimSpace(cfg.SheetName) == "" {
		cfg.SheetName = "Expenses"
	}
	svc, err := newSheetsService(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(&serviceAPI{svc: svc}, cfg, logger), nil
}

func newClient(api valuesAPI, cfg Config, logger *log.Logger) *Client {
	return &Client{
		api:           api,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     cfg.SheetName,
		logger:        logger.WithComponent(log.ComponentSheets),
	}
}

func newSheetsService(ctx context.Context, cfg Config, logger *log.Logger) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(cfg.ServiceAccountFile)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	logger.InfoContext(ctx, "Creating Google Sheets service with service account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// Upsert writes e into the row holding its ID, appending a row when the
// expense is not mirrored yet. The header row is written on first use.
func (c *Client) Upsert(ctx context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if e.ID == "" {
		return errors.New("expense has no ID")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	keys, err := c.api.Get(ctx, c.spreadsheetID, c.rng("A:A"))
	if err != nil {
		return fmt.Errorf("read keys of %s: %w", c.sheetName, err)
	}
	if len(keys) == 0 {
		if err := c.api.Update(ctx, c.spreadsheetID, c.rng("A1:G1"), sheets.Header); err != nil {
			return fmt.Errorf("write header of %s: %w", c.sheetName, err)
		}
	}

	if i := sheets.FindRow(keys, e.ID); i > 0 {
		n := i + 1
		rng := c.rng(fmt.Sprintf("A%d:G%d", n, n))
		if err := c.api.Update(ctx, c.spreadsheetID, rng, sheets.Row(e)); err != nil {
			return fmt.Errorf("update %s: %w", rng, err)
		}
		c.logger.InfoContext(ctx, "Updated mirrored expense",
			log.NewFields().WithExpense(e).WithOperation(log.OpSync).ToSlice()...)
		return nil
	}

	if err := c.api.Append(ctx, c.spreadsheetID, c.rng(sheets.Columns), sheets.Row(e)); err != nil {
		return fmt.Errorf("append to %s: %w", c.sheetName, err)
	}
	c.logger.InfoContext(ctx, "Appended mirrored expense",
		log.NewFields().WithExpense(e).WithOperation(log.OpSync).ToSlice()...)
	return nil
}

// Delete removes the row holding expenseID. A missing row is not an error,
// so redelivered delete events are harmless.
func (c *Client) Delete(ctx context.Context, userID, expenseID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys, err := c.api.Get(ctx, c.spreadsheetID, c.rng("A:A"))
	if err != nil {
		return fmt.Errorf("read keys of %s: %w", c.sheetName, err)
	}
	i := sheets.FindRow(keys, expenseID)
	if i <= 0 {
		c.logger.DebugContext(ctx, "Expense not mirrored, nothing to delete",
			log.FieldExpenseID, expenseID, log.FieldUserID, userID)
		return nil
	}
	if err := c.api.DeleteRow(ctx, c.spreadsheetID, c.sheetName, i); err != nil {
		return fmt.Errorf("delete row %d of %s: %w", i+1, c.sheetName, err)
	}
	c.logger.InfoContext(ctx, "Deleted mirrored expense",
		log.FieldExpenseID, expenseID, log.FieldUserID, userID)
	return nil
}

func (c *Client) rng(cells string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(c.sheetName, "'", "''"), cells)
}

// serviceAPI adapts *gsheet.Service to valuesAPI.
type serviceAPI struct {
	svc *gsheet.Service
}

func (s *serviceAPI) Get(ctx context.Context, spreadsheetID, rng string) ([][]any, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (s *serviceAPI) Update(ctx context.Context, spreadsheetID, rng string, row []any) error {
	vr := &gsheet.ValueRange{Values: [][]any{row}}
	_, err := s.svc.Spreadsheets.Values.Update(spreadsheetID, rng, vr).
		ValueInputOption(valueInputOption).Context(ctx).Do()
	return err
}

func (s *serviceAPI) Append(ctx context.Context, spreadsheetID, rng string, row []any) error {
	vr := &gsheet.ValueRange{Values: [][]any{row}}
	_, err := s.svc.Spreadsheets.Values.Append(spreadsheetID, rng, vr).
		ValueInputOption(valueInputOption).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	return err
}

func (s *serviceAPI) DeleteRow(ctx context.Context, spreadsheetID, sheetName string, index int) error {
	sheetID, err := s.sheetID(ctx, spreadsheetID, sheetName)
	if err != nil {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:         sheetID,
					Dimension:       "ROWS",
					StartIndex:      int64(index),
					EndIndex:        int64(index) + 1,
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}},
	}
	_, err = s.svc.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do()
	return err
}

func (s *serviceAPI) sheetID(ctx context.Context, spreadsheetID, sheetName string) (int64, error) {
	ss, err := s.svc.Spreadsheets.Get(spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read spreadsheet properties: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == sheetName {
			return sh.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found", sheetName)
}
