package source

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"tenderdash/internal/config"
	"tenderdash/internal/dataprocessing"
	apierrors "tenderdash/internal/errors"
)

const sampleCSV = "id,number,city\nT1,101,Haifa\n"

func newTestFetcher(opts Options) *Fetcher {
	opts.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewFetcher(opts)
}

type fakeSheets struct {
	rows     [][]interface{}
	err      error
	gotID    string
	gotRange string
}

func (f *fakeSheets) Values(_ context.Context, id, rng string) ([][]interface{}, error) {
	f.gotID, f.gotRange = id, rng
	return f.rows, f.err
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		location string
		want     Kind
	}{
		{"data/tenders.csv", KindFile},
		{"/abs/path.csv", KindFile},
		{"https://example.com/x.csv", KindHTTP},
		{"HTTP://example.com/x.csv", KindHTTP},
		{"sheets://abc123/Results!A:X", KindSheets},
		{"ftp://example.com/x.csv", KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.location))
		})
	}
}

func TestFetch_File(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "plain.csv")
	withBOM := filepath.Join(dir, "bom.csv")
	require.NoError(t, os.WriteFile(plain, []byte(sampleCSV), 0o644))
	require.NoError(t, os.WriteFile(withBOM, []byte("\ufeff"+sampleCSV), 0o644))

	f := newTestFetcher(Options{})

	tests := []struct {
		name     string
		location string
		want     string
		wantErr  bool
	}{
		{name: "plain file", location: plain, want: sampleCSV},
		{name: "bom stripped", location: withBOM, want: sampleCSV},
		{name: "missing file", location: filepath.Join(dir, "nope.csv"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.Fetch(context.Background(), tt.location)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apierrors.IsType(err, apierrors.ErrTypeLoad))
				assert.True(t, errors.Is(err, os.ErrNotExist))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFetch_FileTooLarge(t *testing.T) {
	path := filepath.Join(t.TempDir(), "big.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", 11)), 0o644))

	_, err := newTestFetcher(Options{MaxBytes: 10}).Fetch(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds 10 bytes")
}

func TestFetch_HTTP(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		switch r.URL.Path {
		case "/ok.csv":
			_, _ = w.Write([]byte("\ufeff" + sampleCSV))
		case "/missing.csv":
			http.NotFound(w, r)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	t.Cleanup(srv.Close)

	f := newTestFetcher(Options{HTTPClient: srv.Client()})

	text, err := f.Fetch(context.Background(), srv.URL+"/ok.csv")
	require.NoError(t, err)
	assert.Equal(t, sampleCSV, text)
	assert.Equal(t, config.UserAgent, gotUA)

	for _, path := range []string{"/missing.csv", "/broken.csv"} {
		_, err := f.Fetch(context.Background(), srv.URL+path)
		require.Error(t, err, path)
		assert.True(t, apierrors.IsType(err, apierrors.ErrTypeLoad))
		assert.Contains(t, err.Error(), "unexpected status")
	}
}

func TestFetch_HTTPHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher(Options{HTTPClient: srv.Client()}).Fetch(ctx, srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetch_Sheets(t *testing.T) {
	sheets := &fakeSheets{rows: [][]interface{}{
		{"id", "number", "city"},
		{"T1", "101", "Tel Aviv, South"},
	}}
	f := newTestFetcher(Options{Sheets: sheets})

	text, err := f.Fetch(context.Background(), "sheets://sheet-1/Results!A1:X")
	require.NoError(t, err)
	assert.Equal(t, "sheet-1", sheets.gotID)
	assert.Equal(t, "Results!A1:X", sheets.gotRange)
	assert.Equal(t, "id,number,city\nT1,101,\"Tel Aviv, South\"\n", text)

	sheets.err = errors.New("quota exceeded")
	_, err = f.Fetch(context.Background(), "sheets://sheet-1")
	require.Error(t, err)
	assert.Equal(t, DefaultSheetsRange, sheets.gotRange)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestFetch_SheetsNotConfigured(t *testing.T) {
	_, err := newTestFetcher(Options{}).Fetch(context.Background(), "sheets://abc/A:Z")
	require.Error(t, err)
	assert.True(t, apierrors.IsType(err, apierrors.ErrTypeLoad))
}

func TestFetch_UnknownScheme(t *testing.T) {
	_, err := newTestFetcher(Options{}).Fetch(context.Background(), "ftp://example.com/x.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported location scheme")
}

func TestParseSheetsLocation(t *testing.T) {
	tests := []struct {
		location  string
		wantID    string
		wantRange string
		wantErr   bool
	}{
		{location: "sheets://abc/Sheet1!A:X", wantID: "abc", wantRange: "Sheet1!A:X"},
		{location: "SHEETS://abc/My Sheet/2024!A:X", wantID: "abc", wantRange: "My Sheet/2024!A:X"},
		{location: "sheets://abc", wantID: "abc", wantRange: DefaultSheetsRange},
		{location: "sheets:///A:X", wantErr: true},
		{location: "https://abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			id, rng, err := ParseSheetsLocation(tt.location)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantRange, rng)
		})
	}
}

func TestEncodeRows(t *testing.T) {
	tests := []struct {
		name string
		rows [][]interface{}
		want string
	}{
		{name: "mixed cells", rows: [][]interface{}{{"a", 1, 2.5}, {"multi\nline", "plain"}}, want: "a,1,2.5\nmulti line,plain\n"},
		{name: "large float", rows: [][]interface{}{{1500000.0}}, want: "1500000\n"},
		{name: "fractional float", rows: [][]interface{}{{1234567.25}}, want: "1234567.25\n"},
		{name: "empty and bool", rows: [][]interface{}{{nil, true, "x"}}, want: ",true,x\n"},
		{name: "no rows", rows: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := EncodeRows(tt.rows)
			require.NoError(t, err)
			assert.Equal(t, tt.want, text)
		})
	}
}

// sheetRow builds a full-width tender row as the Sheets API returns it.
func sheetRow(winning, appraisal interface{}) []interface{} {
	row := make([]interface{}, dataprocessing.MinFieldCount)
	for i := range row {
		row[i] = ""
	}
	row[0], row[1], row[2] = "T1", "101", "Haifa"
	row[12] = "Acme Ltd"
	row[13], row[14] = winning, appraisal
	row[20] = 3.0
	return row
}

func TestFetch_SheetsNumericCells(t *testing.T) {
	header := make([]interface{}, dataprocessing.MinFieldCount)
	for i := range header {
		header[i] = "h"
	}
	sheets := &fakeSheets{rows: [][]interface{}{
		header,
		sheetRow(1500000.0, 1200000.0),
		sheetRow(2.5e7, float64(9000000)),
	}}

	text, err := newTestFetcher(Options{Sheets: sheets}).Fetch(context.Background(), "sheets://sheet-1")
	require.NoError(t, err)

	records := dataprocessing.Parse(text)
	require.Len(t, records, 2)
	assert.Equal(t, int64(1500000), records[0].WinningPrice)
	assert.Equal(t, int64(1200000), records[0].AppraisalPrice)
	assert.Equal(t, 3, records[0].BidCount)
	assert.Equal(t, int64(25000000), records[1].WinningPrice)
	assert.Equal(t, int64(9000000), records[1].AppraisalPrice)
}

func TestSheetsReader_RequestsUnformattedValues(t *testing.T) {
	var query map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"range":"A1:B2","values":[["price"],[1500000]]}`)
	}))
	defer srv.Close()

	svc, err := sheets.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	rows, err := (&sheetsAPI{svc: svc}).Values(context.Background(), "sheet-1", "A1:B2")
	require.NoError(t, err)
	assert.Equal(t, []string{"UNFORMATTED_VALUE"}, query["valueRenderOption"])
	assert.Equal(t, []string{"FORMATTED_STRING"}, query["dateTimeRenderOption"])

	text, err := EncodeRows(rows)
	require.NoError(t, err)
	assert.Equal(t, "price\n1500000\n", text)
}

func TestNewSheetsReader_Unconfigured(t *testing.T) {
	reader, err := NewSheetsReader(context.Background(), config.SheetsConfig{})
	require.NoError(t, err)
	assert.Nil(t, reader)

	_, err = NewSheetsReader(context.Background(), config.SheetsConfig{CredentialsFile: filepath.Join(t.TempDir(), "missing.json")})
	assert.Error(t, err)
}
