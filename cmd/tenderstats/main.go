// Command tenderstats loads a tender export once and prints the aggregated
// snapshot as JSON, or writes it to a .json or .xlsx file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"tenderdash/internal/config"
	"tenderdash/internal/dataprocessing"
	"tenderdash/internal/exporter"
	"tenderdash/internal/infrastructure"
	"tenderdash/internal/services"
	"tenderdash/internal/source"
	"tenderdash/internal/validation"
	"tenderdash/pkg/contracts/domain"
)

// Snapshot is the JSON document written by tenderstats.
type Snapshot struct {
	Source      string                     `json:"source"`
	Fingerprint string                     `json:"fingerprint"`
	LoadedAt    time.Time                  `json:"loaded_at"`
	Report      dataprocessing.ParseReport `json:"report"`
	Stats       domain.AggregatedStats     `json:"stats"`
	Insights    domain.Insights            `json:"insights"`
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "tenderstats:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("tenderstats", flag.ContinueOnError)
	fs.SetOutput(stderr)
	in := fs.String("in", "", "dataset location: file path, http(s) URL or sheets://<id>/<range> (defaults to the configured source)")
	out := fs.String("out", "", "output file; .json or .xlsx (defaults to JSON on stdout)")
	verbose := fs.Bool("v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger := infrastructure.NewLoggerWithWriter(stderr, level)

	cfg, err := config.Load()
	if err != nil {
		logger.Warn("Failed to load config, using defaults", slog.String("error", err.Error()))
		cfg = config.Default()
	}
	if *in != "" {
		cfg.Data.Source = *in
	}

	files := validation.NewFileValidator(logger)
	format, err := files.ResolveOutput(*out)
	if err != nil {
		return err
	}
	if source.KindOf(cfg.Data.Source) == source.KindFile {
		if err := files.ValidateSourceFile(cfg.Data.Source, cfg.Data.MaxBytes); err != nil {
			return err
		}
	}

	snap, err := load(ctx, cfg, logger)
	if err != nil {
		return err
	}

	switch {
	case format == validation.FormatXLSX:
		meta := exporter.Meta{Source: snap.Source, LoadedAt: snap.LoadedAt, Fingerprint: snap.Fingerprint}
		if err := exporter.NewWorkbookExporter(logger).SaveAs(*out, snap.Stats, snap.Insights, meta); err != nil {
			return err
		}
	case *out != "":
		f, err := os.Create(*out)
		if err != nil {
			return fmt.Errorf("create %s: %w", *out, err)
		}
		if err := writeJSON(f, snap); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	default:
		return writeJSON(stdout, snap)
	}

	logger.Info("snapshot written", slog.String("out", *out), slog.String("format", string(format)))
	return nil
}

// load runs the same pipeline as the server: one DashboardService load, then
// the resulting snapshot.
func load(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Snapshot, error) {
	fetcher, err := source.NewConfiguredFetcher(ctx, cfg.Data, logger)
	if err != nil {
		return nil, err
	}

	svc, err := services.NewDashboardService(services.DashboardOptions{
		Source:  cfg.Data.Source,
		Fetcher: fetcher,
		Aggregator: dataprocessing.NewAggregator(logger, dataprocessing.AggregatorConfig{
			Markers: dataprocessing.WinnerMarkers{
				NoBids:      cfg.Data.NoBidsMarkers,
				InvalidBids: cfg.Data.InvalidBidsMarkers,
				Placeholder: cfg.Data.PlaceholderMarkers,
			},
		}),
		Logger: logger,
		Now:    func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	if _, err := svc.Load(ctx); err != nil {
		return nil, err
	}
	ds, err := svc.Current()
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Source:      ds.Source,
		Fingerprint: ds.Fingerprint,
		LoadedAt:    ds.LoadedAt,
		Report:      ds.Report,
		Stats:       ds.Stats,
		Insights:    ds.Insights,
	}, nil
}

func writeJSON(w io.Writer, snap *Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(snap)
}
