package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"tenderdash/internal/config"
)

// DefaultSheetsRange covers every positional column of the export.
const DefaultSheetsRange = "A:Z"

// SheetsReader returns the cell values of a spreadsheet range.
type SheetsReader interface {
	Values(ctx context.Context, spreadsheetID, readRange string) ([][]interface{}, error)
}

type sheetsAPI struct {
	svc *sheets.Service
}

// NewSheetsReader builds a Sheets API client from an API key or a service
// account credentials file. It returns nil, nil when neither is configured.
func NewSheetsReader(ctx context.Context, cfg config.SheetsConfig) (SheetsReader, error) {
	var opts []option.ClientOption
	switch {
	case cfg.CredentialsFile != "":
		credentialsJSON, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read sheets credentials: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON(credentialsJSON), option.WithScopes(sheets.SpreadsheetsReadonlyScope))
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	default:
		return nil, nil
	}
	opts = append(opts, option.WithUserAgent(config.UserAgent))

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &sheetsAPI{svc: svc}, nil
}

func (s *sheetsAPI) Values(ctx context.Context, spreadsheetID, readRange string) ([][]interface{}, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(spreadsheetID, readRange).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

// ParseSheetsLocation splits sheets://<spreadsheet-id>/<range>. The range may
// contain slashes and spaces; an empty range reads DefaultSheetsRange.
func ParseSheetsLocation(location string) (id, readRange string, err error) {
	rest := strings.TrimSpace(location)
	if len(rest) < len(sheetsScheme) || !strings.EqualFold(rest[:len(sheetsScheme)], sheetsScheme) {
		return "", "", fmt.Errorf("not a sheets location: %q", location)
	}
	rest = rest[len(sheetsScheme):]

	id, readRange, _ = strings.Cut(rest, "/")
	if id == "" {
		return "", "", fmt.Errorf("sheets location %q has no spreadsheet id", location)
	}
	if readRange == "" {
		readRange = DefaultSheetsRange
	}
	return id, readRange, nil
}

var cellBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// cellText renders an unformatted cell value. Numbers are written in plain
// decimal notation so grouping separators, currency signs and exponents never
// reach the integer columns.
func cellText(cell interface{}) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// EncodeRows renders sheet rows as CSV text so the regular parser applies.
// Line breaks inside cells become spaces because the parser splits records on
// every newline.
func EncodeRows(rows [][]interface{}) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	for _, row := range rows {
		record := make([]string, len(row))
		for i, cell := range row {
			record[i] = cellBreaks.Replace(cellText(cell))
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
