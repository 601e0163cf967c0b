// Package sheetsync pushes resolved scans to a Google Sheets spreadsheet
// and serves the reference roster from it.
//
// The client authenticates with a cached OAuth2 token, falling back to an
// interactive loopback flow when no usable token exists. Connect verifies
// the spreadsheet, creates the scan and roster sheets when missing, and
// repairs the scan sheet header. Upsert is idempotent per id: an id already
// present in the scan sheet is never appended again, and concurrent
// upserts of the same id are serialized.
package sheetsync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// scanHeader is the expected header row of the scan sheet.
var scanHeader = []string{"ID Number", "Date", "Time In", "Status"}

// Config controls a Client. Zero values take defaults; SpreadsheetID is
// required.
type Config struct {
	// SpreadsheetID identifies the target spreadsheet document.
	SpreadsheetID string
	// ScanSheet is the sheet scans are appended to. Default "QR_Scans".
	ScanSheet string
	// RosterSheet is the sheet the roster is read from. Default "MasterList".
	RosterSheet string
	// CredentialsFile is the OAuth2 client credentials JSON path.
	// Default "credentials.json".
	CredentialsFile string
	// TokenFile is where the user token is cached. Default "token.json".
	TokenFile string
	// Status is the value written to the status column. Default "Present".
	Status string
	// MaxRetries caps retries per remote call. Default 3.
	MaxRetries int
	// RetryBackoff is the base backoff, doubled each attempt. Default 500ms.
	RetryBackoff time.Duration
	// CallTimeout bounds each individual remote call. Default 30s.
	CallTimeout time.Duration
	// OnAuthURL, when set, receives the authorization URL during the
	// interactive flow so a UI can present it.
	OnAuthURL func(url string)

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.ScanSheet == "" {
		c.ScanSheet = "QR_Scans"
	}
	if c.RosterSheet == "" {
		c.RosterSheet = "MasterList"
	}
	if c.CredentialsFile == "" {
		c.CredentialsFile = "credentials.json"
	}
	if c.TokenFile == "" {
		c.TokenFile = "token.json"
	}
	if c.Status == "" {
		c.Status = "Present"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 500 * time.Millisecond
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Client is a connected spreadsheet backend. Safe for concurrent use.
type Client struct {
	cfg    Config
	logger *slog.Logger

	mu    sync.RWMutex
	api   API
	title string

	locks *keyedMutex
}

// New returns an unconnected Client. Call Connect before Upsert or
// MasterList.
func New(cfg Config) *Client {
	cfg.defaults()
	return &Client{cfg: cfg, logger: cfg.Logger, locks: newKeyedMutex()}
}

// NewWithAPI wires a pre-built backend, bypassing the OAuth flow. Used by
// tests and by callers that bring their own transport.
func NewWithAPI(cfg Config, api API) *Client {
	c := New(cfg)
	c.api = api
	return c
}

// Connect authenticates, verifies the spreadsheet, and bootstraps the scan
// and roster sheets. It returns the spreadsheet title. Safe to call again
// after a failure; a successful Connect replaces the previous session.
func (c *Client) Connect(ctx context.Context) (string, error) {
	c.mu.RLock()
	api := c.api
	c.mu.RUnlock()

	if api == nil {
		ts, err := c.tokenSource(ctx)
		if err != nil {
			return "", err
		}
		svc, err := sheets.NewService(ctx, option.WithTokenSource(ts))
		if err != nil {
			return "", &RemoteError{Op: "build sheets service", Cause: err}
		}
		api = newGoogleAPI(svc, c.cfg.SpreadsheetID)
	}

	var title string
	err := c.call(ctx, "get spreadsheet", func(ctx context.Context) error {
		t, err := api.Title(ctx)
		title = t
		return err
	})
	if err != nil {
		return "", err
	}

	if err := c.ensureSheets(ctx, api); err != nil {
		return "", err
	}
	if err := c.ensureScanHeader(ctx, api); err != nil {
		return "", err
	}

	c.mu.Lock()
	c.api = api
	c.title = title
	c.mu.Unlock()

	c.logger.Info("sheetsync: connected", "title", title)
	return title, nil
}

// IsConnected reports whether Connect has succeeded.
func (c *Client) IsConnected() bool {
	return c.currentAPI() != nil
}

// Title returns the spreadsheet title from the last successful Connect.
func (c *Client) Title() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.title
}

// Close drops the session. Subsequent remote operations return
// ErrNotConnected until Connect succeeds again.
func (c *Client) Close() {
	c.mu.Lock()
	c.api = nil
	c.title = ""
	c.mu.Unlock()
}

// MasterList reads the full roster range (header row included).
func (c *Client) MasterList(ctx context.Context) ([][]string, error) {
	api := c.currentAPI()
	if api == nil {
		return nil, ErrNotConnected
	}
	var rows [][]string
	err := c.call(ctx, "read roster", func(ctx context.Context) error {
		r, err := api.Get(ctx, c.cfg.RosterSheet+"!A:Z")
		rows = r
		return err
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) currentAPI() API {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.api
}

// call wraps a remote call with the per-call timeout and retry policy.
func (c *Client) call(ctx context.Context, op string, fn func(context.Context) error) error {
	wrapped := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()
		return fn(ctx)
	}
	return withRetry(ctx, c.logger, c.cfg.MaxRetries, c.cfg.RetryBackoff, op, wrapped)
}

// ensureSheets creates the scan and roster sheets when the document does
// not have them yet.
func (c *Client) ensureSheets(ctx context.Context, api API) error {
	var titles []string
	err := c.call(ctx, "list sheets", func(ctx context.Context) error {
		t, err := api.SheetTitles(ctx)
		titles = t
		return err
	})
	if err != nil {
		return err
	}

	have := make(map[string]bool, len(titles))
	for _, t := range titles {
		have[t] = true
	}
	for _, want := range []string{c.cfg.ScanSheet, c.cfg.RosterSheet} {
		if have[want] {
			continue
		}
		c.logger.Info("sheetsync: creating missing sheet", "sheet", want)
		if err := c.call(ctx, "add sheet", func(ctx context.Context) error {
			return api.AddSheet(ctx, want)
		}); err != nil {
			return err
		}
	}
	return nil
}

// ensureScanHeader rewrites the scan sheet header when it is missing or
// does not start with the expected id column.
func (c *Client) ensureScanHeader(ctx context.Context, api API) error {
	var rows [][]string
	err := c.call(ctx, "read scan header", func(ctx context.Context) error {
		r, err := api.Get(ctx, c.cfg.ScanSheet+"!A1:D1")
		rows = r
		return err
	})
	if err != nil {
		return err
	}

	if len(rows) > 0 && len(rows[0]) >= len(scanHeader) && rows[0][0] == scanHeader[0] {
		return nil
	}
	c.logger.Info("sheetsync: repairing scan sheet header", "sheet", c.cfg.ScanSheet)
	return c.call(ctx, "write scan header", func(ctx context.Context) error {
		return api.Update(ctx, c.cfg.ScanSheet+"!A1:D1", [][]string{scanHeader})
	})
}
