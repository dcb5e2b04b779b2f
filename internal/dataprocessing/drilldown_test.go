package dataprocessing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenderdash/pkg/contracts/domain"
)

func TestCityTenders(t *testing.T) {
	records := sampleRecords()

	tests := []struct {
		name    string
		city    string
		wantIDs []string
	}{
		{name: "canonical city matches suffixed cells", city: "Tel Aviv", wantIDs: []string{"T1", "T3"}},
		{name: "request is canonicalized too", city: "Tel Aviv, South", wantIDs: []string{"T1", "T3"}},
		{name: "unpriced rows excluded", city: "Eilat", wantIDs: []string{"T5"}},
		{name: "unknown city", city: "Nowhere", wantIDs: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := CityTenders(records, tt.city)
			ids := make([]string, 0, len(rows))
			for _, r := range rows {
				ids = append(ids, r.TenderID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestCityTenders_RowMetrics(t *testing.T) {
	rows := CityTenders(sampleRecords(), "Tel Aviv")
	require.Len(t, rows, 2)
	assert.InDelta(t, 100, rows[0].DiscrepancyPercent, 1e-9)
	assert.InDelta(t, 2000, rows[0].PricePerSqm, 1e-9)

	haifa := CityTenders(sampleRecords(), "Haifa")
	require.Len(t, haifa, 1)
	assert.Zero(t, haifa[0].PricePerSqm)
}

func TestAggregator_DeveloperTenders(t *testing.T) {
	a := NewAggregator(nil, AggregatorConfig{})

	rows, summary := a.DeveloperTenders(sampleRecords(), "Acme")
	require.Len(t, rows, 2)
	assert.Equal(t, "T1", rows[0].TenderID)
	assert.Equal(t, domain.DeveloperSummary{
		Name: "Acme", Wins: 2, Revenue: 14_000_000, Units: 20, AvgDiscrepancy: 60,
	}, summary)

	rows, summary = a.DeveloperTenders(sampleRecords(), "Gamma")
	assert.Empty(t, rows, "records with no winning price are not wins")
	assert.Zero(t, summary.Wins)
}

func TestAggregator_Insights(t *testing.T) {
	a := NewAggregator(nil, AggregatorConfig{})
	records := sampleRecords()
	in := a.Insights(records, a.Aggregate(context.Background(), records))

	assert.InDelta(t, 40, in.NoBidsRate, 1e-9)
	assert.InDelta(t, 40, in.CompetitiveRate, 1e-9)
	assert.InDelta(t, 60, in.ValidShare, 1e-9)
	assert.Equal(t, 1, in.AnomaliesAbove)
	assert.Equal(t, 1, in.AnomaliesBelow)
	assert.InDelta(t, 2_500_000.0/12_000_000*100, in.RevenueVsAppraisal, 1e-9)

	empty := a.Insights(nil, Aggregate(nil))
	assert.Equal(t, domain.Insights{}, empty)
}

func TestOptions(t *testing.T) {
	opts := Options(sampleRecords())

	assert.Equal(t, []string{"Eilat", "Haifa", "Tel Aviv"}, opts.Cities)
	assert.Equal(t, []string{"101", "102", "103", "104", "105"}, opts.TenderNumbers)
	assert.Equal(t, int64(500_000), opts.PriceMin)
	assert.Equal(t, int64(12_000_000), opts.PriceMax)
	assert.InDelta(t, -50, opts.DiscrepancyMin, 1e-9)
	assert.InDelta(t, 100, opts.DiscrepancyMax, 1e-9)
	assert.Equal(t, 0, opts.BidCountMin)
	assert.Equal(t, 3, opts.BidCountMax)

	empty := Options(nil)
	assert.Empty(t, empty.Cities)
	assert.NotNil(t, empty.Cities)
	assert.Zero(t, empty.PriceMax)
}
