package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apierrors "tenderdash/internal/errors"
	"tenderdash/internal/exporter"
	"tenderdash/internal/shared/testutil"
	"tenderdash/pkg/contracts/domain"
	"tenderdash/pkg/contracts/events"
)

const testHeader = "id,number,city,neighborhood,total_units,publish,open,close,committee,compound,units,area,winner,winning,appraisal,dev,r16,r17,r18,r19,bid_count,all_bids"

// tenderLine builds a 22-field export row.
func tenderLine(id, city, winner string, winning, appraisal int64, bids int, allBids string) string {
	f := make([]string, 22)
	f[0] = id
	f[1] = "N" + id
	f[2] = city
	f[3] = "Center"
	f[7] = "2023-05-01"
	f[10] = "10"
	f[11] = "1000"
	f[12] = winner
	f[13] = strconv.FormatInt(winning, 10)
	f[14] = strconv.FormatInt(appraisal, 10)
	f[20] = strconv.Itoa(bids)
	f[21] = allBids
	return strings.Join(f, ",")
}

func testCSV() string {
	return strings.Join([]string{
		testHeader,
		tenderLine("1", "Haifa", "Acme", 2_000_000, 1_000_000, 2, "2000000;1500000"),
		tenderLine("2", "Haifa", "Beta", 900_000, 1_000_000, 1, "900000"),
		tenderLine("3", "Eilat", "Acme", 3_000_000, 2_500_000, 3, "3000000;2000000;1000000"),
		"short,row",
	}, "\n")
}

type fakeFetcher struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int32
	gate  chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, location string) (string, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text, f.err
}

func (f *fakeFetcher) set(text string, err error) {
	f.mu.Lock()
	f.text, f.err = text, err
	f.mu.Unlock()
}

type recordingHub struct {
	mu   sync.Mutex
	sent []string
	data []interface{}
}

func (h *recordingHub) Broadcast(messageType string, data interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, messageType)
	h.data = append(h.data, data)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestService(t *testing.T, fetcher Fetcher, hub WebSocketHub) *DashboardService {
	t.Helper()
	svc, err := NewDashboardService(DashboardOptions{
		Source:  "data/tenders.csv",
		Fetcher: fetcher,
		Hub:     hub,
		Logger:  discardLogger(),
		Now:     func() time.Time { return time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return svc
}

func TestNewDashboardService_RequiresFetcher(t *testing.T) {
	_, err := NewDashboardService(DashboardOptions{Logger: discardLogger()})
	require.Error(t, err)
	assert.True(t, apierrors.IsType(err, apierrors.ErrTypeConfig))
}

func TestDashboardService_UnavailableBeforeLoad(t *testing.T) {
	svc := newTestService(t, &fakeFetcher{text: testCSV()}, nil)
	ctx := context.Background()

	assert.False(t, svc.Loaded())

	_, err := svc.Stats(ctx)
	assert.ErrorIs(t, err, apierrors.ErrDatasetUnavailable)
	_, err = svc.CityTenders(ctx, "Haifa")
	assert.ErrorIs(t, err, apierrors.ErrDatasetUnavailable)
	_, err = svc.DeveloperTenders(ctx, "Acme")
	assert.ErrorIs(t, err, apierrors.ErrDatasetUnavailable)
	_, err = svc.FilterOptions(ctx)
	assert.ErrorIs(t, err, apierrors.ErrDatasetUnavailable)
	_, err = svc.ApplyFilters(ctx, domain.FilterState{})
	assert.ErrorIs(t, err, apierrors.ErrDatasetUnavailable)
	assert.ErrorIs(t, svc.Export(ctx, io.Discard), apierrors.ErrDatasetUnavailable)
}

func TestDashboardService_Load(t *testing.T) {
	hub := &recordingHub{}
	svc := newTestService(t, &fakeFetcher{text: testCSV()}, hub)
	ctx := context.Background()

	res, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "data/tenders.csv", res.Source)
	assert.Equal(t, 4, res.Report.Lines)
	assert.Equal(t, 3, res.Report.Accepted)
	assert.Equal(t, 1, res.Report.Dropped)
	assert.Len(t, res.Fingerprint, 64)
	assert.True(t, res.Changed)

	ds, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, ds.Stats.TotalRecords)
	assert.Equal(t, 3, ds.Stats.TotalTenders)
	assert.Equal(t, int64(5_900_000), ds.Stats.TotalRevenue)
	assert.Equal(t, `"`+res.Fingerprint+`"`, ds.ETag())
	assert.Equal(t, time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC), ds.LoadedAt)

	require.Equal(t, []string{events.TypeDatasetReloaded}, hub.sent)
	event, ok := hub.data[0].(events.DatasetReloaded)
	require.True(t, ok)
	assert.Equal(t, res.Fingerprint, event.Fingerprint)
	assert.Equal(t, 3, event.TotalTenders)
	assert.True(t, event.Changed)

	again, err := svc.Load(ctx)
	require.NoError(t, err)
	assert.False(t, again.Changed)
	assert.Equal(t, res.Fingerprint, again.Fingerprint)
	assert.Len(t, hub.sent, 2)
}

func TestDashboardService_FailedReloadKeepsSnapshot(t *testing.T) {
	fetcher := &fakeFetcher{text: testCSV()}
	hub := &recordingHub{}
	logger, logs := testutil.NewTestLogger(t)
	svc, err := NewDashboardService(DashboardOptions{
		Source:  "data/tenders.csv",
		Fetcher: fetcher,
		Hub:     hub,
		Logger:  logger,
	})
	require.NoError(t, err)
	ctx := context.Background()

	first, err := svc.Load(ctx)
	require.NoError(t, err)

	loadErr := apierrors.NewLoadError("data/tenders.csv", errors.New("connection refused"))
	fetcher.set("", loadErr)

	_, err = svc.Load(ctx)
	require.Error(t, err)
	assert.True(t, apierrors.IsType(err, apierrors.ErrTypeLoad))

	ds, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.Fingerprint, ds.Fingerprint)
	assert.Len(t, hub.sent, 1, "no broadcast for a failed load")

	testutil.AssertLogContains(t, logs, "dataset load failed")
	testutil.AssertLogAttr(t, logs, "component", "dashboard_service")
	testutil.AssertLogAttr(t, logs, "source", "data/tenders.csv")
}

func TestDashboardService_FetchErrorBecomesLoadError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantSource string
	}{
		{name: "plain error", err: errors.New("dial tcp: connection refused"), wantSource: "data/tenders.csv"},
		{name: "load error kept", err: apierrors.NewLoadError("mirror.csv", errors.New("status 502")), wantSource: "mirror.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, &fakeFetcher{err: tt.err}, nil)

			_, err := svc.Load(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			require.True(t, apierrors.IsType(err, apierrors.ErrTypeLoad))

			var appErr *apierrors.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.wantSource, appErr.Context["source"])
		})
	}
}

func TestDashboardService_ConcurrentLoadsShareFetch(t *testing.T) {
	fetcher := &fakeFetcher{text: testCSV(), gate: make(chan struct{})}
	svc := newTestService(t, fetcher, nil)

	var wg sync.WaitGroup
	results := make([]LoadResult, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.Load(context.Background())
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}

	require.Eventually(t, func() bool { return atomic.LoadInt32(&fetcher.calls) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(fetcher.gate)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&fetcher.calls))
	for _, r := range results {
		assert.Equal(t, results[0].Fingerprint, r.Fingerprint)
	}
}

func TestDashboardService_EmptyDataset(t *testing.T) {
	svc := newTestService(t, &fakeFetcher{text: testHeader}, nil)

	res, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Report.Accepted)

	ds, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, ds.Stats.TotalRecords)
	assert.Equal(t, domain.NotAvailable, ds.Stats.MostPopularNeighborhood)
}

func TestDashboardService_DrillDowns(t *testing.T) {
	svc := newTestService(t, &fakeFetcher{text: testCSV()}, nil)
	ctx := context.Background()
	_, err := svc.Load(ctx)
	require.NoError(t, err)

	t.Run("city", func(t *testing.T) {
		res, err := svc.CityTenders(ctx, "Haifa")
		require.NoError(t, err)
		assert.Equal(t, 2, res.Count)
		require.Len(t, res.Tenders, 2)
		assert.Equal(t, "1", res.Tenders[0].TenderID)
		assert.InDelta(t, 100, res.Tenders[0].DiscrepancyPercent, 1e-9)
		assert.InDelta(t, 2000, res.Tenders[0].PricePerSqm, 1e-9)
	})

	t.Run("unknown city is empty", func(t *testing.T) {
		res, err := svc.CityTenders(ctx, "Atlantis")
		require.NoError(t, err)
		assert.Zero(t, res.Count)
		assert.NotNil(t, res.Tenders)
	})

	t.Run("developer", func(t *testing.T) {
		res, err := svc.DeveloperTenders(ctx, "Acme")
		require.NoError(t, err)
		assert.Equal(t, 2, res.Summary.Wins)
		assert.Equal(t, int64(5_000_000), res.Summary.Revenue)
		assert.Len(t, res.Tenders, 2)
	})

	t.Run("unknown developer", func(t *testing.T) {
		_, err := svc.DeveloperTenders(ctx, "Nobody")
		require.Error(t, err)
		assert.True(t, apierrors.IsType(err, apierrors.ErrTypeNotFound))
	})

	t.Run("filter options", func(t *testing.T) {
		opts, err := svc.FilterOptions(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Eilat", "Haifa"}, opts.Cities)
		assert.Equal(t, int64(900_000), opts.PriceMin)
		assert.Equal(t, int64(3_000_000), opts.PriceMax)
		assert.Equal(t, 1, opts.BidCountMin)
		assert.Equal(t, 3, opts.BidCountMax)
	})
}

func TestDashboardService_ApplyFilters(t *testing.T) {
	svc := newTestService(t, &fakeFetcher{text: testCSV()}, nil)
	ctx := context.Background()
	_, err := svc.Load(ctx)
	require.NoError(t, err)

	i64 := func(v int64) *int64 { return &v }
	f64 := func(v float64) *float64 { return &v }
	in := func(v int) *int { return &v }

	tests := []struct {
		name      string
		filters   domain.FilterState
		wantField string
	}{
		{name: "empty selection", filters: domain.FilterState{}},
		{name: "ordered ranges", filters: domain.FilterState{Cities: []string{"Haifa"}, PriceMin: i64(1), PriceMax: i64(2)}},
		{name: "equal bounds", filters: domain.FilterState{BidCountMin: in(2), BidCountMax: in(2)}},
		{name: "price inverted", filters: domain.FilterState{PriceMin: i64(5), PriceMax: i64(1)}, wantField: "price_min"},
		{name: "discrepancy inverted", filters: domain.FilterState{DiscrepancyMin: f64(10), DiscrepancyMax: f64(-10)}, wantField: "discrepancy_min"},
		{name: "bid count inverted", filters: domain.FilterState{BidCountMin: in(4), BidCountMax: in(1)}, wantField: "bid_count_min"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := svc.ApplyFilters(ctx, tt.filters)
			if tt.wantField != "" {
				var apiErr *apierrors.APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, "VALIDATION_FAILED", apiErr.ErrorCode)
				details, ok := apiErr.Details.(apierrors.ValidationErrors)
				require.True(t, ok)
				assert.Equal(t, tt.wantField, details.Errors[0].Field)
				return
			}
			require.NoError(t, err)
			assert.False(t, res.Applied)
			assert.NotNil(t, res.Filters.Cities)
			assert.NotNil(t, res.Filters.TenderNumbers)
			assert.Equal(t, 3, res.Stats.TotalTenders, "snapshot is not refiltered")
		})
	}
}

func TestDashboardService_Export(t *testing.T) {
	svc := newTestService(t, &fakeFetcher{text: testCSV()}, nil)
	ctx := context.Background()
	_, err := svc.Load(ctx)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, svc.Export(ctx, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, exporter.SheetNames, f.GetSheetList())
	city, err := f.GetCellValue(exporter.SheetCities, "A2")
	require.NoError(t, err)
	assert.Equal(t, "Eilat", city)
}

func TestFingerprint_Deterministic(t *testing.T) {
	a, err := Fingerprint(domain.AggregatedStats{TotalRevenue: 10})
	require.NoError(t, err)
	b, err := Fingerprint(domain.AggregatedStats{TotalRevenue: 10})
	require.NoError(t, err)
	c, err := Fingerprint(domain.AggregatedStats{TotalRevenue: 11})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
