package sheetsync

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/sheets/v4"
)

// API is the narrow remote surface the client needs from a spreadsheet
// backend. Ranges use A1 notation ("Sheet!A:D"). Production wires the
// Google Sheets adapter; tests supply fakes.
type API interface {
	// Title returns the spreadsheet document title.
	Title(ctx context.Context) (string, error)
	// SheetTitles lists the titles of all sheets in the document.
	SheetTitles(ctx context.Context) ([]string, error)
	// AddSheet creates an empty sheet with the given title.
	AddSheet(ctx context.Context, title string) error
	// Get reads a range as rows of strings. Trailing empty cells may be
	// omitted per row.
	Get(ctx context.Context, rng string) ([][]string, error)
	// Update overwrites a range with the given rows.
	Update(ctx context.Context, rng string, values [][]string) error
	// Append appends rows after the last data row of the range's table.
	Append(ctx context.Context, rng string, values [][]string) error
}

// googleAPI adapts the Sheets v4 service to the API interface. All values
// travel as RAW strings; the sheet is the system of record for formatting.
type googleAPI struct {
	svc           *sheets.Service
	spreadsheetID string
}

func newGoogleAPI(svc *sheets.Service, spreadsheetID string) *googleAPI {
	return &googleAPI{svc: svc, spreadsheetID: spreadsheetID}
}

func (g *googleAPI) Title(ctx context.Context) (string, error) {
	ss, err := g.svc.Spreadsheets.Get(g.spreadsheetID).
		Fields("properties.title").Context(ctx).Do()
	if err != nil {
		return "", remoteErr("get spreadsheet", err)
	}
	if ss.Properties == nil {
		return "", nil
	}
	return ss.Properties.Title, nil
}

func (g *googleAPI) SheetTitles(ctx context.Context) ([]string, error) {
	ss, err := g.svc.Spreadsheets.Get(g.spreadsheetID).
		Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, remoteErr("list sheets", err)
	}
	titles := make([]string, 0, len(ss.Sheets))
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			titles = append(titles, s.Properties.Title)
		}
	}
	return titles, nil
}

func (g *googleAPI) AddSheet(ctx context.Context, title string) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{
				Properties: &sheets.SheetProperties{Title: title},
			},
		}},
	}
	_, err := g.svc.Spreadsheets.BatchUpdate(g.spreadsheetID, req).Context(ctx).Do()
	if err != nil {
		return remoteErr("add sheet "+title, err)
	}
	return nil
}

func (g *googleAPI) Get(ctx context.Context, rng string) ([][]string, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, remoteErr("get "+rng, err)
	}
	rows := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		cells := make([]string, 0, len(row))
		for _, cell := range row {
			cells = append(cells, fmt.Sprint(cell))
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func (g *googleAPI) Update(ctx context.Context, rng string, values [][]string) error {
	vr := &sheets.ValueRange{Values: toAny(values)}
	_, err := g.svc.Spreadsheets.Values.Update(g.spreadsheetID, rng, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return remoteErr("update "+rng, err)
	}
	return nil
}

func (g *googleAPI) Append(ctx context.Context, rng string, values [][]string) error {
	vr := &sheets.ValueRange{Values: toAny(values)}
	_, err := g.svc.Spreadsheets.Values.Append(g.spreadsheetID, rng, vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return remoteErr("append "+rng, err)
	}
	return nil
}

func toAny(values [][]string) [][]any {
	out := make([][]any, len(values))
	for i, row := range values {
		cells := make([]any, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		out[i] = cells
	}
	return out
}

// remoteErr maps a Sheets call failure into the package error taxonomy.
// 401 means the token is no longer usable and a new interactive flow is
// needed; everything else keeps its status for retry classification.
func remoteErr(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusUnauthorized {
			return &AuthError{Op: op, Cause: err}
		}
		return &RemoteError{Op: op, Status: gerr.Code, Cause: err}
	}
	return &RemoteError{Op: op, Cause: err}
}
