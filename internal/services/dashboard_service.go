package services

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"

	"tenderdash/internal/dataprocessing"
	apierrors "tenderdash/internal/errors"
	"tenderdash/internal/exporter"
	"tenderdash/internal/infrastructure"
	"tenderdash/internal/source"
	"tenderdash/pkg/contracts/domain"
	"tenderdash/pkg/contracts/events"
)

// Fetcher reads the raw dataset text.
type Fetcher interface {
	Fetch(ctx context.Context, location string) (string, error)
}

// WebSocketHub broadcasts events to connected dashboard clients.
type WebSocketHub interface {
	Broadcast(messageType string, data interface{})
}

// Dataset is one immutable snapshot: the parsed records and everything
// derived from them.
type Dataset struct {
	Records     []domain.TenderRecord
	Stats       domain.AggregatedStats
	Insights    domain.Insights
	Options     domain.FilterOptions
	Fingerprint string
	LoadedAt    time.Time
	Source      string
	Report      dataprocessing.ParseReport
}

// ETag returns the quoted fingerprint for HTTP caching.
func (d *Dataset) ETag() string {
	return `"` + d.Fingerprint + `"`
}

// LoadResult summarizes a completed load.
type LoadResult struct {
	Source      string                     `json:"source"`
	Fingerprint string                     `json:"fingerprint"`
	LoadedAt    time.Time                  `json:"loaded_at"`
	Report      dataprocessing.ParseReport `json:"report"`
	Duration    string                     `json:"duration"`
	Changed     bool                       `json:"changed"`
}

// FilterResult echoes a filter selection next to the unfiltered snapshot.
type FilterResult struct {
	Filters     domain.FilterState     `json:"filters"`
	Applied     bool                   `json:"applied"`
	Fingerprint string                 `json:"fingerprint"`
	Stats       domain.AggregatedStats `json:"stats"`
}

// CityTendersResult is the city drill-down.
type CityTendersResult struct {
	City    string             `json:"city"`
	Count   int                `json:"count"`
	Tenders []domain.TenderRow `json:"tenders"`
}

// DeveloperTendersResult is the developer drill-down.
type DeveloperTendersResult struct {
	Summary domain.DeveloperSummary `json:"summary"`
	Tenders []domain.TenderRow      `json:"tenders"`
}

// DashboardOptions configures a DashboardService.
type DashboardOptions struct {
	Source     string
	Fetcher    Fetcher
	Aggregator *dataprocessing.Aggregator
	Exporter   *exporter.WorkbookExporter
	Hub        WebSocketHub
	Metrics    *infrastructure.PipelineMetrics
	Logger     *slog.Logger
	Now        func() time.Time
}

// DashboardService owns the current dataset snapshot. Loads replace the
// snapshot atomically; readers never see a partially built one.
type DashboardService struct {
	source     string
	fetcher    Fetcher
	aggregator *dataprocessing.Aggregator
	exporter   *exporter.WorkbookExporter
	hub        WebSocketHub
	metrics    *infrastructure.PipelineMetrics
	logger     *slog.Logger
	tracer     trace.Tracer
	now        func() time.Time

	loads singleflight.Group

	mu      sync.RWMutex
	current *Dataset
}

// NewDashboardService creates the service. It holds no data until Load succeeds.
func NewDashboardService(opts DashboardOptions) (*DashboardService, error) {
	if opts.Fetcher == nil {
		return nil, apierrors.NewConfigError("dashboard service requires a fetcher", nil)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Aggregator == nil {
		opts.Aggregator = dataprocessing.NewAggregator(opts.Logger, dataprocessing.AggregatorConfig{})
	}
	if opts.Exporter == nil {
		opts.Exporter = exporter.NewWorkbookExporter(opts.Logger)
	}
	if opts.Metrics == nil {
		opts.Metrics = infrastructure.NoopPipelineMetrics()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	logger := opts.Logger.With(slog.String("component", "dashboard_service"))
	logger.Info("DashboardService initialized",
		slog.String("source", opts.Source),
		slog.String("source_kind", string(source.KindOf(opts.Source))))

	return &DashboardService{
		source:     opts.Source,
		fetcher:    opts.Fetcher,
		aggregator: opts.Aggregator,
		exporter:   opts.Exporter,
		hub:        opts.Hub,
		metrics:    opts.Metrics,
		logger:     logger,
		tracer:     otel.Tracer("tenderdash/services"),
		now:        opts.Now,
	}, nil
}

// Source returns the configured dataset location.
func (s *DashboardService) Source() string {
	return s.source
}

// Load fetches, parses and aggregates the dataset and swaps it in. Calls that
// overlap an in-flight load share its result. On failure the previous
// snapshot stays in place.
func (s *DashboardService) Load(ctx context.Context) (LoadResult, error) {
	v, err, shared := s.loads.Do(s.source, func() (interface{}, error) {
		return s.load(context.WithoutCancel(ctx))
	})
	if shared {
		s.logger.DebugContext(ctx, "joined in-flight dataset load")
	}
	if err != nil {
		return LoadResult{}, err
	}
	return v.(LoadResult), nil
}

func (s *DashboardService) load(ctx context.Context) (LoadResult, error) {
	start := time.Now()
	kind := string(source.KindOf(s.source))

	ctx, span := s.tracer.Start(ctx, "dataset.load",
		trace.WithAttributes(
			attribute.String("dataset.source", s.source),
			attribute.String("dataset.source_kind", kind),
		))
	defer span.End()

	text, err := s.fetcher.Fetch(ctx, s.source)
	if err != nil {
		if !apierrors.IsType(err, apierrors.ErrTypeLoad) {
			err = apierrors.NewLoadError(s.source, err)
		}
		s.metrics.RecordLoad(ctx, kind, 0, 0, 0, time.Since(start), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		s.logger.ErrorContext(ctx, "dataset load failed",
			slog.String("source", s.source),
			slog.String("error", err.Error()))
		return LoadResult{}, err
	}

	_, parseSpan := s.tracer.Start(ctx, "dataset.parse")
	records, report := dataprocessing.ParseWithReport(text)
	parseSpan.SetAttributes(
		attribute.Int("parse.lines", report.Lines),
		attribute.Int("parse.accepted", report.Accepted),
		attribute.Int("parse.dropped", report.Dropped))
	parseSpan.End()

	aggCtx, aggSpan := s.tracer.Start(ctx, "dataset.aggregate")
	stats := s.aggregator.Aggregate(aggCtx, records)
	insights := s.aggregator.Insights(records, stats)
	options := dataprocessing.Options(records)
	aggSpan.End()

	fingerprint, err := Fingerprint(stats)
	if err != nil {
		s.metrics.RecordLoad(ctx, kind, report.Lines, report.Accepted, report.Dropped, time.Since(start), err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "fingerprint failed")
		return LoadResult{}, apierrors.NewLoadError(s.source, err)
	}

	ds := &Dataset{
		Records:     records,
		Stats:       stats,
		Insights:    insights,
		Options:     options,
		Fingerprint: fingerprint,
		LoadedAt:    s.now(),
		Source:      s.source,
		Report:      report,
	}

	s.mu.Lock()
	changed := s.current == nil || s.current.Fingerprint != fingerprint
	s.current = ds
	s.mu.Unlock()

	duration := time.Since(start)
	s.metrics.RecordLoad(ctx, kind, report.Lines, report.Accepted, report.Dropped, duration, nil)
	span.SetAttributes(
		attribute.Int("dataset.records", len(records)),
		attribute.String("dataset.fingerprint", fingerprint))

	s.logger.InfoContext(ctx, "dataset loaded",
		slog.String("source", s.source),
		slog.Int("lines", report.Lines),
		slog.Int("accepted", report.Accepted),
		slog.Int("dropped", report.Dropped),
		slog.Int("valid_tenders", stats.TotalTenders),
		slog.String("fingerprint", fingerprint),
		slog.Bool("changed", changed),
		slog.Duration("duration", duration))

	if s.hub != nil {
		s.hub.Broadcast(events.TypeDatasetReloaded, events.DatasetReloaded{
			Fingerprint:  fingerprint,
			LoadedAt:     ds.LoadedAt,
			TotalRecords: stats.TotalRecords,
			TotalTenders: stats.TotalTenders,
			Changed:      changed,
		})
	}

	return LoadResult{
		Source:      s.source,
		Fingerprint: fingerprint,
		LoadedAt:    ds.LoadedAt,
		Report:      report,
		Duration:    duration.String(),
		Changed:     changed,
	}, nil
}

// Fingerprint is the hex BLAKE2b-256 digest of the snapshot's JSON encoding.
func Fingerprint(stats domain.AggregatedStats) (string, error) {
	body, err := json.Marshal(stats)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	sum := blake2b.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

// Current returns the loaded snapshot or ErrDatasetUnavailable.
func (s *DashboardService) Current() (*Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, apierrors.ErrDatasetUnavailable
	}
	return s.current, nil
}

// Loaded reports whether a snapshot is available.
func (s *DashboardService) Loaded() bool {
	_, err := s.Current()
	return err == nil
}

// Stats returns the current snapshot.
func (s *DashboardService) Stats(ctx context.Context) (*Dataset, error) {
	return s.Current()
}

// CityTenders returns the priced tenders of one canonical city.
func (s *DashboardService) CityTenders(ctx context.Context, city string) (CityTendersResult, error) {
	ds, err := s.Current()
	if err != nil {
		return CityTendersResult{}, err
	}
	rows := dataprocessing.CityTenders(ds.Records, city)
	return CityTendersResult{City: city, Count: len(rows), Tenders: rows}, nil
}

// DeveloperTenders returns a developer's wins and their summary. An unknown
// developer is a NOT_FOUND error.
func (s *DashboardService) DeveloperTenders(ctx context.Context, name string) (DeveloperTendersResult, error) {
	ds, err := s.Current()
	if err != nil {
		return DeveloperTendersResult{}, err
	}
	rows, summary := s.aggregator.DeveloperTenders(ds.Records, name)
	if len(rows) == 0 {
		return DeveloperTendersResult{}, apierrors.NewNotFoundError("developer").WithContext("name", name)
	}
	return DeveloperTendersResult{Summary: summary, Tenders: rows}, nil
}

// FilterOptions returns the values each filter can take.
func (s *DashboardService) FilterOptions(ctx context.Context) (domain.FilterOptions, error) {
	ds, err := s.Current()
	if err != nil {
		return domain.FilterOptions{}, err
	}
	return ds.Options, nil
}

// ApplyFilters checks that every range in f is ordered and echoes f with the
// unfiltered snapshot. Filters are not applied to the data.
func (s *DashboardService) ApplyFilters(ctx context.Context, f domain.FilterState) (FilterResult, error) {
	if err := validateRanges(f); err != nil {
		return FilterResult{}, err
	}
	ds, err := s.Current()
	if err != nil {
		return FilterResult{}, err
	}
	if f.Cities == nil {
		f.Cities = []string{}
	}
	if f.TenderNumbers == nil {
		f.TenderNumbers = []string{}
	}
	return FilterResult{Filters: f, Applied: false, Fingerprint: ds.Fingerprint, Stats: ds.Stats}, nil
}

func validateRanges(f domain.FilterState) error {
	var errs []apierrors.ValidationError
	if f.PriceMin != nil && f.PriceMax != nil && *f.PriceMin > *f.PriceMax {
		errs = append(errs, apierrors.ValidationError{Field: "price_min", Message: "must not exceed price_max"})
	}
	if f.DiscrepancyMin != nil && f.DiscrepancyMax != nil && *f.DiscrepancyMin > *f.DiscrepancyMax {
		errs = append(errs, apierrors.ValidationError{Field: "discrepancy_min", Message: "must not exceed discrepancy_max"})
	}
	if f.BidCountMin != nil && f.BidCountMax != nil && *f.BidCountMin > *f.BidCountMax {
		errs = append(errs, apierrors.ValidationError{Field: "bid_count_min", Message: "must not exceed bid_count_max"})
	}
	if len(errs) > 0 {
		return apierrors.NewValidationErrors(errs)
	}
	return nil
}

// Export writes the current snapshot as an xlsx workbook.
func (s *DashboardService) Export(ctx context.Context, w io.Writer) error {
	ds, err := s.Current()
	if err != nil {
		return err
	}

	ctx, span := s.tracer.Start(ctx, "dataset.export")
	defer span.End()

	meta := exporter.Meta{Source: ds.Source, LoadedAt: ds.LoadedAt, Fingerprint: ds.Fingerprint}
	if err := s.exporter.Write(w, ds.Stats, ds.Insights, meta); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "export failed")
		s.metrics.ExportsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "failure")))
		return apierrors.NewExportError("workbook export failed", err)
	}

	s.metrics.ExportsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "success")))
	s.logger.InfoContext(ctx, "workbook exported", slog.String("fingerprint", ds.Fingerprint))
	return nil
}
