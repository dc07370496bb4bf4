package sheet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/homefleet/shoplist/internal/config"
)

// OAuth scopes required to read and write the shared worksheet and to
// resolve the book by name.
var scopes = []string{
	"https://www.googleapis.com/auth/spreadsheets",
	"https://www.googleapis.com/auth/drive",
}

// Worksheet is the narrow surface the order repository needs from the
// backing spreadsheet. *Client implements it against Google Sheets.
type Worksheet interface {
	// ColumnValues returns every non-empty cell of the given column
	// (1 = column A), top to bottom.
	ColumnValues(ctx context.Context, column int) ([]string, error)
	// Rows returns the full used range of the worksheet, row-major.
	Rows(ctx context.Context) ([][]string, error)
	// AppendRow adds one row after the current used range.
	AppendRow(ctx context.Context, row []any) error
	// UpdateCell overwrites a single cell addressed in A1 notation
	// (worksheet-local, e.g. "E4").
	UpdateCell(ctx context.Context, cell string, value any) error
}

// Module registers the worksheet client with Fx.
var Module = fx.Provide(New)

// Client talks to one worksheet of one spreadsheet, located by book title.
type Client struct {
	sheets    *sheets.Service
	drive     *drive.Service
	book      string
	worksheet string
	timeout   time.Duration

	mu            sync.Mutex
	spreadsheetID string
}

// New builds the Sheets/Drive services from the configured service-account
// credentials and resolves the book on startup so bad credentials fail fast.
func New(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*Client, error) {
	if len(cfg.Sheet.Credentials) == 0 {
		return nil, errors.New("missing GOOGLE_SHEETS_CREDENTIALS")
	}

	ctx := context.Background()
	creds, err := google.CredentialsFromJSON(ctx, cfg.Sheet.Credentials, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}

	sheetsSvc, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("init sheets service: %w", err)
	}
	driveSvc, err := drive.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("init drive service: %w", err)
	}

	client := &Client{
		sheets:    sheetsSvc,
		drive:     driveSvc,
		book:      cfg.Sheet.Book,
		worksheet: cfg.Sheet.Worksheet,
		timeout:   cfg.Sheet.CallTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			id, err := client.resolveSpreadsheetID(ctx)
			if err != nil {
				return fmt.Errorf("resolve book %q: %w", cfg.Sheet.Book, err)
			}
			logger.Info("worksheet connected",
				zap.String("book", cfg.Sheet.Book),
				zap.String("worksheet", cfg.Sheet.Worksheet),
				zap.String("spreadsheet_id", id),
			)
			return nil
		},
	})

	return client, nil
}

// resolveSpreadsheetID finds the spreadsheet by its title via Drive and
// memoizes the id for subsequent range calls.
func (c *Client) resolveSpreadsheetID(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.spreadsheetID != "" {
		return c.spreadsheetID, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	query := fmt.Sprintf("name = '%s' and mimeType = 'application/vnd.google-apps.spreadsheet' and trashed = false", c.book)
	list, err := c.drive.Files.List().
		Q(query).
		Fields("files(id, name)").
		PageSize(1).
		Context(ctx).
		Do()
	if err != nil {
		return "", err
	}
	if len(list.Files) == 0 {
		return "", fmt.Errorf("no spreadsheet named %q visible to the service account", c.book)
	}

	c.spreadsheetID = list.Files[0].Id
	return c.spreadsheetID, nil
}

func (c *Client) rangeName(ref string) string {
	return fmt.Sprintf("%s!%s", c.worksheet, ref)
}

// ColumnValues implements Worksheet.
func (c *Client) ColumnValues(ctx context.Context, column int) ([]string, error) {
	if column < 1 || column > 26 {
		return nil, fmt.Errorf("column %d out of range", column)
	}
	letter := string(rune('A' + column - 1))

	id, err := c.resolveSpreadsheetID(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.sheets.Spreadsheets.Values.
		Get(id, c.rangeName(letter+":"+letter)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}

	values := make([]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		if len(row) == 0 {
			values = append(values, "")
			continue
		}
		values = append(values, fmt.Sprint(row[0]))
	}
	return values, nil
}

// Rows implements Worksheet.
func (c *Client) Rows(ctx context.Context) ([][]string, error) {
	id, err := c.resolveSpreadsheetID(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.sheets.Spreadsheets.Values.
		Get(id, c.rangeName("A:F")).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, len(raw))
		for i, cell := range raw {
			row[i] = fmt.Sprint(cell)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// AppendRow implements Worksheet.
func (c *Client) AppendRow(ctx context.Context, row []any) error {
	id, err := c.resolveSpreadsheetID(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err = c.sheets.Spreadsheets.Values.
		Append(id, c.rangeName("A:F"), &sheets.ValueRange{Values: [][]any{row}}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

// UpdateCell implements Worksheet.
func (c *Client) UpdateCell(ctx context.Context, cell string, value any) error {
	id, err := c.resolveSpreadsheetID(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err = c.sheets.Spreadsheets.Values.
		Update(id, c.rangeName(cell), &sheets.ValueRange{Values: [][]any{{value}}}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	return err
}
