// Package source fetches the raw tender export text from a file, an HTTP URL
// or a Google Sheets range. Every location is read with a single request and
// no retry.
package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"tenderdash/internal/config"
	apierrors "tenderdash/internal/errors"
)

// Kind identifies how a location is read.
type Kind string

const (
	KindFile    Kind = "file"
	KindHTTP    Kind = "http"
	KindSheets  Kind = "sheets"
	KindUnknown Kind = "unknown"
)

const sheetsScheme = "sheets://"

const utf8BOM = "\ufeff"

// KindOf classifies a dataset location. Anything without a scheme is a file path.
func KindOf(location string) Kind {
	lower := strings.ToLower(strings.TrimSpace(location))
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return KindHTTP
	case strings.HasPrefix(lower, sheetsScheme):
		return KindSheets
	case strings.Contains(lower, "://"):
		return KindUnknown
	default:
		return KindFile
	}
}

// Options configures a Fetcher.
type Options struct {
	HTTPClient *http.Client
	Sheets     SheetsReader
	MaxBytes   int64
	Timeout    time.Duration
	Logger     *slog.Logger
}

// Fetcher reads dataset text from any supported location.
type Fetcher struct {
	client   *http.Client
	sheets   SheetsReader
	maxBytes int64
	timeout  time.Duration
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewFetcher creates a Fetcher. A nil Sheets reader makes sheets:// locations fail.
func NewFetcher(opts Options) *Fetcher {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 64 << 20
	}

	return &Fetcher{
		client:   opts.HTTPClient,
		sheets:   opts.Sheets,
		maxBytes: opts.MaxBytes,
		timeout:  opts.Timeout,
		logger:   opts.Logger.With(slog.String("component", "source")),
		tracer:   otel.Tracer("tenderdash/source"),
	}
}

// NewConfiguredFetcher builds the Fetcher for cfg.Source. A Sheets client is
// created only when the source is a sheets:// location.
func NewConfiguredFetcher(ctx context.Context, cfg config.DataConfig, logger *slog.Logger) (*Fetcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var sheetsReader SheetsReader
	if KindOf(cfg.Source) == KindSheets {
		reader, err := NewSheetsReader(ctx, cfg.Sheets)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
		}
		if reader == nil {
			logger.Warn("sheets source configured without credentials", slog.String("source", cfg.Source))
		}
		sheetsReader = reader
	}

	return NewFetcher(Options{
		Sheets:   sheetsReader,
		MaxBytes: cfg.MaxBytes,
		Timeout:  cfg.FetchTimeout,
		Logger:   logger,
	}), nil
}

// Fetch returns the full text at location with any UTF-8 BOM removed.
// Failures are LOAD AppErrors.
func (f *Fetcher) Fetch(ctx context.Context, location string) (string, error) {
	kind := KindOf(location)

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	ctx, span := f.tracer.Start(ctx, "source.fetch",
		trace.WithAttributes(attribute.String("source.kind", string(kind))))
	defer span.End()

	start := time.Now()
	var (
		text string
		err  error
	)
	switch kind {
	case KindFile:
		text, err = f.fetchFile(location)
	case KindHTTP:
		text, err = f.fetchHTTP(ctx, location)
	case KindSheets:
		text, err = f.fetchSheets(ctx, location)
	default:
		err = fmt.Errorf("unsupported location scheme")
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		f.logger.WarnContext(ctx, "dataset fetch failed",
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()))
		return "", apierrors.NewLoadError(location, err).WithContext("kind", string(kind))
	}

	text = strings.TrimPrefix(text, utf8BOM)
	span.SetAttributes(attribute.Int("source.bytes", len(text)))
	f.logger.DebugContext(ctx, "dataset fetched",
		slog.String("kind", string(kind)),
		slog.Int("bytes", len(text)),
		slog.Duration("duration", time.Since(start)))
	return text, nil
}

func (f *Fetcher) fetchFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	return f.readLimited(file)
}

func (f *Fetcher) fetchHTTP(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", config.UserAgent)
	req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return f.readLimited(resp.Body)
}

func (f *Fetcher) fetchSheets(ctx context.Context, location string) (string, error) {
	if f.sheets == nil {
		return "", fmt.Errorf("google sheets access is not configured")
	}
	id, rng, err := ParseSheetsLocation(location)
	if err != nil {
		return "", err
	}

	rows, err := f.sheets.Values(ctx, id, rng)
	if err != nil {
		return "", fmt.Errorf("read sheet values: %w", err)
	}
	return EncodeRows(rows)
}

func (f *Fetcher) readLimited(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, f.maxBytes+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > f.maxBytes {
		return "", fmt.Errorf("dataset exceeds %d bytes", f.maxBytes)
	}
	return string(data), nil
}
