package dataprocessing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenderdash/pkg/contracts/domain"
)

func sampleRecords() []domain.TenderRecord {
	return []domain.TenderRecord{
		{
			TenderID: "T1", TenderNumber: "101", City: "Tel Aviv, North", Neighborhood: "Ramat Aviv",
			Units: 10, AreaSqm: 1000, WinnerName: "Acme", WinningPrice: 2_000_000, AppraisalPrice: 1_000_000,
			DevelopmentCosts: 100, BidCount: 3, AllBids: "2,000,000;1,500,000;1,000,000", CloseDate: "2023-03-15",
		},
		{
			TenderID: "T2", TenderNumber: "102", City: "Haifa", Neighborhood: "",
			Units: 5, AreaSqm: 0, WinnerName: "Beta", WinningPrice: 500_000, AppraisalPrice: 1_000_000,
			DevelopmentCosts: 300, BidCount: 1, AllBids: "500,000", CloseDate: "2023-01-10",
		},
		{
			TenderID: "T3", TenderNumber: "103", City: "Tel Aviv", Neighborhood: "Ramat Aviv",
			Units: 10, AreaSqm: 2000, WinnerName: "Acme", WinningPrice: 12_000_000, AppraisalPrice: 10_000_000,
			DevelopmentCosts: 200, BidCount: 2, AllBids: "12,000,000;11,000,000", CloseDate: "2023-03-01",
		},
		{
			TenderID: "T4", TenderNumber: "104", City: "Eilat", WinnerName: "Gamma", WinningPrice: 0, BidCount: 0,
		},
		{
			TenderID: "T5", TenderNumber: "105", City: "Eilat", WinnerName: "אין הצעות", WinningPrice: 1_000_000, BidCount: 0,
		},
	}
}

func TestNewAggregator(t *testing.T) {
	tests := []struct {
		name   string
		logger *slog.Logger
		cfg    AggregatorConfig
		want   RankingLimits
	}{
		{name: "defaults", logger: slog.Default(), want: DefaultRankingLimits()},
		{name: "nil logger", logger: nil, want: DefaultRankingLimits()},
		{
			name: "partial override",
			cfg:  AggregatorConfig{Limits: RankingLimits{Cities: 3}},
			want: RankingLimits{Cities: 3, Anomalies: 10, MoneyLeft: 10, Neighborhoods: 10, Developers: 10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAggregator(tt.logger, tt.cfg)
			require.NotNil(t, a)
			assert.NotNil(t, a.logger)
			assert.NotNil(t, a.classifier)
			assert.Equal(t, tt.want, a.limits)
		})
	}
}

func TestAggregate_Sample(t *testing.T) {
	stats := Aggregate(sampleRecords())

	t.Run("totals", func(t *testing.T) {
		assert.Equal(t, 3, stats.TotalTenders)
		assert.Equal(t, 5, stats.TotalRecords)
		assert.Equal(t, int64(14_500_000), stats.TotalRevenue)
		assert.Equal(t, int64(25), stats.TotalUnits)
		assert.Equal(t, int64(3000), stats.TotalArea)
		assert.Equal(t, int64(600), stats.TotalDevelopmentCosts)
		assert.InDelta(t, 200, stats.AvgDevelopmentCosts, 1e-9)
	})

	t.Run("winning prices", func(t *testing.T) {
		assert.InDelta(t, 14_500_000.0/3, stats.AvgWinningPrice, 1e-6)
		assert.Equal(t, 2_000_000.0, stats.MedianWinningPrice)
		assert.Equal(t, int64(500_000), stats.MinWinningPrice)
		assert.Equal(t, int64(12_000_000), stats.MaxWinningPrice)
		assert.InDelta(t, 4000, stats.AvgPricePerSqm, 1e-9)
		assert.InDelta(t, 4000, stats.MedianPricePerSqm, 1e-9)
	})

	t.Run("discrepancies", func(t *testing.T) {
		assert.InDelta(t, 70.0/3, stats.AvgDiscrepancy, 1e-9)
		assert.InDelta(t, 20, stats.MedianDiscrepancy, 1e-9)
		assert.InDelta(t, -15, stats.DiscrepancyP25, 1e-9)
		assert.InDelta(t, 60, stats.DiscrepancyP75, 1e-9)
	})

	t.Run("bid counts use all records", func(t *testing.T) {
		assert.InDelta(t, 1.2, stats.AvgBidCount, 1e-9)
		assert.Equal(t, 1.0, stats.MedianBidCount)
		assert.Equal(t, 3, stats.MaxBidCount)
		assert.Equal(t, 2, stats.TendersWithNoBids)
		assert.Equal(t, 1, stats.TendersWithOneBid)
	})

	t.Run("bid spread", func(t *testing.T) {
		want := (50 + 100.0/12) / 2
		assert.InDelta(t, want, stats.AvgBidSpread, 1e-9)
		assert.InDelta(t, want, stats.MedianBidSpread, 1e-9)
	})

	t.Run("cities", func(t *testing.T) {
		require.Len(t, stats.CityStats, 2)
		assert.Equal(t, domain.CityStats{
			City: "Tel Aviv", Tenders: 2, Revenue: 14_000_000, AvgPrice: 7_000_000,
			MedianPrice: 7_000_000, AvgBidCount: 2.5, Units: 20,
		}, stats.CityStats[0])
		assert.Equal(t, "Haifa", stats.CityStats[1].City)
	})

	t.Run("months ascending", func(t *testing.T) {
		require.Len(t, stats.MonthlyRevenue, 2)
		assert.Equal(t, domain.MonthlyData{Month: "2023-01", Revenue: 500_000, Tenders: 1, AvgPrice: 500_000}, stats.MonthlyRevenue[0])
		assert.Equal(t, domain.MonthlyData{Month: "2023-03", Revenue: 14_000_000, Tenders: 2, AvgPrice: 7_000_000}, stats.MonthlyRevenue[1])
	})

	t.Run("price distribution", func(t *testing.T) {
		require.Len(t, stats.PriceDistribution, 6)
		counts := make([]int, 0, 6)
		for i, pr := range stats.PriceDistribution {
			assert.Equal(t, PriceBuckets[i].Label, pr.Range)
			counts = append(counts, pr.Count)
		}
		assert.Equal(t, []int{1, 1, 1, 0, 0, 0}, counts)
		assert.InDelta(t, 100.0/3, stats.PriceDistribution[0].Percentage, 1e-9)
	})

	t.Run("anomalies", func(t *testing.T) {
		require.Len(t, stats.Anomalies, 2)
		assert.Equal(t, "T1", stats.Anomalies[0].TenderID)
		assert.Equal(t, int64(1_000_000), stats.Anomalies[0].Discrepancy)
		assert.InDelta(t, 100, stats.Anomalies[0].DiscrepancyPercent, 1e-9)
		assert.Equal(t, "T2", stats.Anomalies[1].TenderID)
		assert.Equal(t, int64(-500_000), stats.Anomalies[1].Discrepancy)
	})

	t.Run("money left on table", func(t *testing.T) {
		require.Len(t, stats.MoneyLeftOnTable, 2)
		assert.Equal(t, "T3", stats.MoneyLeftOnTable[0].TenderID)
		assert.Equal(t, 1_000_000.0, stats.MoneyLeftOnTable[0].Gap)
		assert.Equal(t, 11_000_000.0, stats.MoneyLeftOnTable[0].SecondBid)
		assert.Equal(t, "T1", stats.MoneyLeftOnTable[1].TenderID)
		assert.InDelta(t, 25, stats.MoneyLeftOnTable[1].GapPercent, 1e-9)
	})

	t.Run("neighborhoods", func(t *testing.T) {
		require.Len(t, stats.NeighborhoodDemand, 2)
		assert.Equal(t, domain.NeighborhoodStats{
			Neighborhood: "Ramat Aviv", City: "Tel Aviv, North", BidCount: 5, Units: 20,
			DemandPerUnit: 0.25, AvgPrice: 7_000_000, Tenders: 2,
		}, stats.NeighborhoodDemand[0])
		assert.Equal(t, "Haifa", stats.NeighborhoodDemand[1].Neighborhood)
		assert.InDelta(t, 0.2, stats.NeighborhoodDemand[1].DemandPerUnit, 1e-9)
		assert.Equal(t, "Ramat Aviv", stats.MostPopularNeighborhood)
	})

	t.Run("developers", func(t *testing.T) {
		require.Len(t, stats.TopDevelopers, 2)
		assert.Equal(t, domain.DeveloperStats{
			Name: "Acme", Wins: 2, TotalRevenue: 14_000_000, AvgDiscrepancy: 60, AvgPrice: 7_000_000, TotalUnits: 20,
		}, stats.TopDevelopers[0])
		assert.Equal(t, "Beta", stats.TopDevelopers[1].Name)
		assert.InDelta(t, -50, stats.TopDevelopers[1].AvgDiscrepancy, 1e-9)
	})
}

func TestAggregate_Empty(t *testing.T) {
	for _, records := range [][]domain.TenderRecord{nil, {}} {
		stats := Aggregate(records)

		assert.Zero(t, stats.TotalRevenue)
		assert.Zero(t, stats.TotalRecords)
		assert.Zero(t, stats.MinWinningPrice)
		assert.Zero(t, stats.MaxWinningPrice)
		assert.Zero(t, stats.AvgDiscrepancy)
		assert.Zero(t, stats.MaxBidCount)
		assert.Empty(t, stats.CityStats)
		assert.Empty(t, stats.Anomalies)
		assert.Equal(t, domain.NotAvailable, stats.MostPopularNeighborhood)
		require.Len(t, stats.PriceDistribution, 6)
		for _, pr := range stats.PriceDistribution {
			assert.Zero(t, pr.Count)
			assert.Zero(t, pr.Percentage)
		}

		body, err := json.Marshal(stats)
		require.NoError(t, err, "snapshot must be JSON encodable (no NaN or Inf)")
		assert.NotContains(t, string(body), "null")
	}
}

func TestAggregate_InvalidRecordCountsOnlyForBids(t *testing.T) {
	records := []domain.TenderRecord{
		{TenderID: "zero", WinnerName: "Acme", WinningPrice: 0, BidCount: 0},
		{TenderID: "ok", WinnerName: "Beta", WinningPrice: 100, BidCount: 2},
	}
	stats := Aggregate(records)

	assert.Equal(t, int64(100), stats.TotalRevenue)
	require.Len(t, stats.TopDevelopers, 1)
	assert.Equal(t, "Beta", stats.TopDevelopers[0].Name)
	assert.Equal(t, 1, stats.TendersWithNoBids)
	assert.Equal(t, 2, stats.TotalRecords)
}

func TestAggregate_NoAppraisals(t *testing.T) {
	records := []domain.TenderRecord{
		{WinnerName: "Acme", WinningPrice: 100},
		{WinnerName: "Beta", WinningPrice: 200},
	}
	stats := Aggregate(records)

	assert.Empty(t, stats.Anomalies)
	assert.Zero(t, stats.AvgDiscrepancy)
	assert.False(t, math.IsNaN(stats.DiscrepancyP25))
	for _, d := range stats.TopDevelopers {
		assert.Zero(t, d.AvgDiscrepancy)
	}
}

func TestAggregate_MoneyLeftWithTiedRunnerUp(t *testing.T) {
	records := []domain.TenderRecord{
		{TenderID: "T", WinnerName: "Acme", WinningPrice: 10_000, AllBids: "10,000;8,000;8,000"},
	}
	stats := Aggregate(records)

	require.Len(t, stats.MoneyLeftOnTable, 1)
	assert.Equal(t, 2000.0, stats.MoneyLeftOnTable[0].Gap)
	assert.InDelta(t, 20.0, stats.MoneyLeftOnTable[0].GapPercent, 1e-9)
	assert.Equal(t, 8000.0, stats.MoneyLeftOnTable[0].SecondBid)
}

func TestAggregate_TopLimits(t *testing.T) {
	var records []domain.TenderRecord
	for i := 0; i < 20; i++ {
		records = append(records, domain.TenderRecord{
			TenderID:       fmt.Sprintf("T%d", i),
			City:           fmt.Sprintf("City %02d, District", i),
			Neighborhood:   fmt.Sprintf("N%d", i),
			Units:          1 + i,
			WinnerName:     fmt.Sprintf("Dev %d", i),
			WinningPrice:   int64(1_000_000 + i*1000),
			AppraisalPrice: 500_000,
			BidCount:       3,
			AllBids:        fmt.Sprintf("%d;%d", 1_000_000+i*1000, 900_000),
		})
	}
	stats := Aggregate(records)

	require.Len(t, stats.CityStats, 15)
	for i := 1; i < len(stats.CityStats); i++ {
		assert.Greater(t, stats.CityStats[i-1].Revenue, stats.CityStats[i].Revenue)
	}
	assert.Equal(t, "City 19", stats.CityStats[0].City)
	assert.Len(t, stats.TopDevelopers, 10)
	assert.Len(t, stats.NeighborhoodDemand, 10)
	assert.Len(t, stats.MoneyLeftOnTable, 10)
	assert.Len(t, stats.Anomalies, 10)
}

func TestAggregate_TiesKeepInputOrder(t *testing.T) {
	records := []domain.TenderRecord{
		{City: "B", WinnerName: "X", WinningPrice: 100},
		{City: "A", WinnerName: "Y", WinningPrice: 100},
		{City: "C", WinnerName: "Z", WinningPrice: 100},
	}
	stats := Aggregate(records)

	require.Len(t, stats.CityStats, 3)
	assert.Equal(t, []string{"B", "A", "C"}, []string{stats.CityStats[0].City, stats.CityStats[1].City, stats.CityStats[2].City})
}

func TestAggregate_Deterministic(t *testing.T) {
	a := NewAggregator(slog.Default(), AggregatorConfig{})
	records := sampleRecords()

	first, err := json.Marshal(a.Aggregate(context.Background(), records))
	require.NoError(t, err)
	second, err := json.Marshal(a.Aggregate(context.Background(), records))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestAggregate_CustomMarkers(t *testing.T) {
	a := NewAggregator(nil, AggregatorConfig{Markers: WinnerMarkers{Placeholder: []string{"Acme"}}})
	stats := a.Aggregate(context.Background(), sampleRecords())

	assert.Equal(t, 1, stats.TotalTenders)
	assert.Equal(t, int64(500_000), stats.TotalRevenue)
}

func TestCanonicalCity(t *testing.T) {
	assert.Equal(t, "Tel Aviv", CanonicalCity("Tel Aviv, North"))
	assert.Equal(t, "Haifa", CanonicalCity("  Haifa "))
	assert.Equal(t, "", CanonicalCity(", x"))
}
