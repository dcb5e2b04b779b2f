package dataprocessing

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"

	"tenderdash/pkg/contracts/domain"
)

// Discrepancy bounds, in percent.
const (
	// Discrepancies at or beyond this magnitude are treated as data errors.
	discrepancyOutlier = 1000
	// Anomalies lie strictly between these magnitudes.
	anomalyMinPercent = 20
	anomalyMaxPercent = 500
	// Developer averages ignore discrepancies at or beyond this magnitude.
	developerDiscrepancyCap = 500
)

// RankingLimits caps the length of each ranked list in the snapshot.
type RankingLimits struct {
	Cities        int
	Anomalies     int
	MoneyLeft     int
	Neighborhoods int
	Developers    int
}

// DefaultRankingLimits returns the dashboard's list sizes.
func DefaultRankingLimits() RankingLimits {
	return RankingLimits{
		Cities:        15,
		Anomalies:     10,
		MoneyLeft:     10,
		Neighborhoods: 10,
		Developers:    10,
	}
}

// AggregatorConfig holds configuration options for the Aggregator.
type AggregatorConfig struct {
	Markers WinnerMarkers
	Limits  RankingLimits
}

// Aggregator turns tender records into an AggregatedStats snapshot.
// It holds no state between calls and is safe for concurrent use.
type Aggregator struct {
	logger     *slog.Logger
	classifier *WinnerClassifier
	limits     RankingLimits
}

// NewAggregator creates an aggregator. Zero limits fall back to the defaults.
func NewAggregator(logger *slog.Logger, cfg AggregatorConfig) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}

	defaults := DefaultRankingLimits()
	limits := cfg.Limits
	if limits.Cities <= 0 {
		limits.Cities = defaults.Cities
	}
	if limits.Anomalies <= 0 {
		limits.Anomalies = defaults.Anomalies
	}
	if limits.MoneyLeft <= 0 {
		limits.MoneyLeft = defaults.MoneyLeft
	}
	if limits.Neighborhoods <= 0 {
		limits.Neighborhoods = defaults.Neighborhoods
	}
	if limits.Developers <= 0 {
		limits.Developers = defaults.Developers
	}

	return &Aggregator{
		logger:     logger.With(slog.String("component", "aggregator")),
		classifier: NewWinnerClassifier(cfg.Markers),
		limits:     limits,
	}
}

var defaultAggregator = NewAggregator(nil, AggregatorConfig{})

// Aggregate computes the snapshot with the built-in winner markers and limits.
func Aggregate(records []domain.TenderRecord) domain.AggregatedStats {
	return defaultAggregator.Aggregate(context.Background(), records)
}

// IsValid reports whether r has a real winner and a positive winning price.
func (a *Aggregator) IsValid(r domain.TenderRecord) bool {
	return r.WinningPrice > 0 && a.classifier.Classify(r.WinnerName).IsAward()
}

// ValidRecords keeps the valid records in input order.
func (a *Aggregator) ValidRecords(records []domain.TenderRecord) []domain.TenderRecord {
	valid := make([]domain.TenderRecord, 0, len(records))
	for _, r := range records {
		if a.IsValid(r) {
			valid = append(valid, r)
		}
	}
	return valid
}

// Aggregate computes every dashboard metric from records. The result depends
// only on records and their order; an empty input yields zero values and
// empty lists.
func (a *Aggregator) Aggregate(ctx context.Context, records []domain.TenderRecord) domain.AggregatedStats {
	valid := a.ValidRecords(records)

	stats := domain.AggregatedStats{
		TotalTenders: len(valid),
		TotalRecords: len(records),
	}

	fillTotals(&stats, valid)
	fillWinningPrices(&stats, valid)
	fillDiscrepancies(&stats, valid)
	fillBidCounts(&stats, records)
	fillBidSpread(&stats, valid)

	stats.CityStats = cityRollup(valid, a.limits.Cities)
	stats.MonthlyRevenue = monthlyRollup(valid)
	stats.PriceDistribution = priceDistribution(valid)
	stats.Anomalies = anomalies(valid, a.limits.Anomalies)
	stats.MoneyLeftOnTable = moneyLeftOnTable(valid, a.limits.MoneyLeft)
	stats.NeighborhoodDemand = neighborhoodDemand(valid, a.limits.Neighborhoods)
	stats.MostPopularNeighborhood = domain.NotAvailable
	if len(stats.NeighborhoodDemand) > 0 {
		stats.MostPopularNeighborhood = stats.NeighborhoodDemand[0].Neighborhood
	}
	stats.TopDevelopers = developerRollup(valid, a.limits.Developers)

	a.logger.DebugContext(ctx, "aggregated tender records",
		slog.Int("records", len(records)),
		slog.Int("valid", len(valid)),
		slog.Int("cities", len(stats.CityStats)),
		slog.Int("anomalies", len(stats.Anomalies)))

	return stats
}

// CanonicalCity is the part of a city cell before the first comma, trimmed.
func CanonicalCity(city string) string {
	if i := strings.IndexByte(city, ','); i >= 0 {
		city = city[:i]
	}
	return strings.TrimSpace(city)
}

func fillTotals(stats *domain.AggregatedStats, valid []domain.TenderRecord) {
	devCosts := make([]float64, 0, len(valid))
	for _, r := range valid {
		stats.TotalRevenue += r.WinningPrice
		stats.TotalUnits += int64(r.Units)
		stats.TotalArea += int64(r.AreaSqm)
		stats.TotalDevelopmentCosts += r.DevelopmentCosts
		devCosts = append(devCosts, float64(r.DevelopmentCosts))
	}
	stats.AvgDevelopmentCosts = Average(devCosts)
}

func fillWinningPrices(stats *domain.AggregatedStats, valid []domain.TenderRecord) {
	prices := make([]float64, 0, len(valid))
	perSqm := make([]float64, 0, len(valid))
	for i, r := range valid {
		prices = append(prices, float64(r.WinningPrice))
		if i == 0 || r.WinningPrice < stats.MinWinningPrice {
			stats.MinWinningPrice = r.WinningPrice
		}
		if i == 0 || r.WinningPrice > stats.MaxWinningPrice {
			stats.MaxWinningPrice = r.WinningPrice
		}
		if r.AreaSqm > 0 {
			perSqm = append(perSqm, r.PricePerSqm())
		}
	}
	stats.AvgWinningPrice = Average(prices)
	stats.MedianWinningPrice = Median(prices)
	stats.AvgPricePerSqm = Average(perSqm)
	stats.MedianPricePerSqm = Median(perSqm)
}

func fillDiscrepancies(stats *domain.AggregatedStats, valid []domain.TenderRecord) {
	var ds []float64
	for _, r := range valid {
		if !r.HasAppraisal() {
			continue
		}
		if d := r.DiscrepancyPercent(); math.Abs(d) < discrepancyOutlier {
			ds = append(ds, d)
		}
	}
	stats.AvgDiscrepancy = Average(ds)
	stats.MedianDiscrepancy = Median(ds)
	stats.DiscrepancyP25 = Percentile(ds, 25)
	stats.DiscrepancyP75 = Percentile(ds, 75)
}

// fillBidCounts covers all records, not only valid ones.
func fillBidCounts(stats *domain.AggregatedStats, records []domain.TenderRecord) {
	counts := make([]float64, 0, len(records))
	for _, r := range records {
		counts = append(counts, float64(r.BidCount))
		if r.BidCount > stats.MaxBidCount {
			stats.MaxBidCount = r.BidCount
		}
		switch r.BidCount {
		case 0:
			stats.TendersWithNoBids++
		case 1:
			stats.TendersWithOneBid++
		}
	}
	stats.AvgBidCount = Average(counts)
	stats.MedianBidCount = Median(counts)
}

func fillBidSpread(stats *domain.AggregatedStats, valid []domain.TenderRecord) {
	var spreads []float64
	for _, r := range valid {
		bids := ParseBids(r.AllBids)
		if len(bids) < 2 {
			continue
		}
		spreads = append(spreads, (bids[0]-bids[len(bids)-1])/bids[0]*100)
	}
	stats.AvgBidSpread = Average(spreads)
	stats.MedianBidSpread = Median(spreads)
}

type cityGroup struct {
	city      string
	revenue   int64
	units     int64
	prices    []float64
	bidCounts []float64
}

func cityRollup(valid []domain.TenderRecord, limit int) []domain.CityStats {
	var groups []*cityGroup
	index := make(map[string]*cityGroup)
	for _, r := range valid {
		city := CanonicalCity(r.City)
		g, ok := index[city]
		if !ok {
			g = &cityGroup{city: city}
			index[city] = g
			groups = append(groups, g)
		}
		g.revenue += r.WinningPrice
		g.units += int64(r.Units)
		g.prices = append(g.prices, float64(r.WinningPrice))
		g.bidCounts = append(g.bidCounts, float64(r.BidCount))
	}

	out := make([]domain.CityStats, 0, len(groups))
	for _, g := range groups {
		out = append(out, domain.CityStats{
			City:        g.city,
			Tenders:     len(g.prices),
			Revenue:     g.revenue,
			AvgPrice:    Average(g.prices),
			MedianPrice: Median(g.prices),
			AvgBidCount: Average(g.bidCounts),
			Units:       g.units,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Revenue > out[j].Revenue })
	return truncate(out, limit)
}

func monthlyRollup(valid []domain.TenderRecord) []domain.MonthlyData {
	type monthGroup struct {
		month   string
		revenue int64
		prices  []float64
	}
	var groups []*monthGroup
	index := make(map[string]*monthGroup)
	for _, r := range valid {
		if r.CloseDate == "" {
			continue
		}
		month := prefix(r.CloseDate, 7)
		g, ok := index[month]
		if !ok {
			g = &monthGroup{month: month}
			index[month] = g
			groups = append(groups, g)
		}
		g.revenue += r.WinningPrice
		g.prices = append(g.prices, float64(r.WinningPrice))
	}

	out := make([]domain.MonthlyData, 0, len(groups))
	for _, g := range groups {
		out = append(out, domain.MonthlyData{
			Month:    g.month,
			Revenue:  g.revenue,
			Tenders:  len(g.prices),
			AvgPrice: Average(g.prices),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// PriceBucket is a half-open winning-price range [Min, Max). Max 0 means unbounded.
type PriceBucket struct {
	Min   int64
	Max   int64
	Label string
}

// PriceBuckets are the fixed histogram ranges, in order.
var PriceBuckets = []PriceBucket{
	{Min: 0, Max: 1_000_000, Label: "עד 1M"},
	{Min: 1_000_000, Max: 10_000_000, Label: "1M-10M"},
	{Min: 10_000_000, Max: 50_000_000, Label: "10M-50M"},
	{Min: 50_000_000, Max: 100_000_000, Label: "50M-100M"},
	{Min: 100_000_000, Max: 500_000_000, Label: "100M-500M"},
	{Min: 500_000_000, Max: 0, Label: "מעל 500M"},
}

// Contains reports whether price falls in the bucket.
func (b PriceBucket) Contains(price int64) bool {
	return price >= b.Min && (b.Max == 0 || price < b.Max)
}

func priceDistribution(valid []domain.TenderRecord) []domain.PriceRange {
	out := make([]domain.PriceRange, 0, len(PriceBuckets))
	for _, b := range PriceBuckets {
		count := 0
		for _, r := range valid {
			if b.Contains(r.WinningPrice) {
				count++
			}
		}
		out = append(out, domain.PriceRange{
			Range:      b.Label,
			Count:      count,
			Percentage: percentOf(float64(count), float64(len(valid))),
		})
	}
	return out
}

func anomalies(valid []domain.TenderRecord, limit int) []domain.AnomalyRecord {
	out := make([]domain.AnomalyRecord, 0)
	for _, r := range valid {
		if !r.HasAppraisal() {
			continue
		}
		d := r.DiscrepancyPercent()
		if abs := math.Abs(d); abs <= anomalyMinPercent || abs >= anomalyMaxPercent {
			continue
		}
		out = append(out, domain.AnomalyRecord{
			TenderID:           r.TenderID,
			City:               r.City,
			Neighborhood:       r.Neighborhood,
			WinningPrice:       r.WinningPrice,
			AppraisalPrice:     r.AppraisalPrice,
			Discrepancy:        r.WinningPrice - r.AppraisalPrice,
			DiscrepancyPercent: d,
			WinnerName:         r.WinnerName,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].DiscrepancyPercent) > math.Abs(out[j].DiscrepancyPercent)
	})
	return truncate(out, limit)
}

func moneyLeftOnTable(valid []domain.TenderRecord, limit int) []domain.MoneyLeftRecord {
	out := make([]domain.MoneyLeftRecord, 0)
	for _, r := range valid {
		bids := ParseBids(r.AllBids)
		if len(bids) < 2 {
			continue
		}
		gap := bids[0] - bids[1]
		if gap <= 0 {
			continue
		}
		out = append(out, domain.MoneyLeftRecord{
			TenderID:     r.TenderID,
			City:         r.City,
			Neighborhood: r.Neighborhood,
			WinnerName:   r.WinnerName,
			WinningPrice: r.WinningPrice,
			SecondBid:    bids[1],
			Gap:          gap,
			GapPercent:   gap / bids[0] * 100,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Gap > out[j].Gap })
	return truncate(out, limit)
}

type neighborhoodGroup struct {
	key      string
	city     string
	bidCount int64
	units    int64
	prices   []float64
}

// neighborhoodDemand groups by neighborhood, falling back to the raw city
// cell, and keeps the city of the first record seen for each group.
func neighborhoodDemand(valid []domain.TenderRecord, limit int) []domain.NeighborhoodStats {
	var groups []*neighborhoodGroup
	index := make(map[string]*neighborhoodGroup)
	for _, r := range valid {
		key := r.Neighborhood
		if key == "" {
			key = r.City
		}
		g, ok := index[key]
		if !ok {
			g = &neighborhoodGroup{key: key, city: r.City}
			index[key] = g
			groups = append(groups, g)
		}
		g.bidCount += int64(r.BidCount)
		g.units += int64(r.Units)
		g.prices = append(g.prices, float64(r.WinningPrice))
	}

	out := make([]domain.NeighborhoodStats, 0, len(groups))
	for _, g := range groups {
		if g.units <= 0 {
			continue
		}
		out = append(out, domain.NeighborhoodStats{
			Neighborhood:  g.key,
			City:          g.city,
			BidCount:      g.bidCount,
			Units:         g.units,
			DemandPerUnit: float64(g.bidCount) / float64(g.units),
			AvgPrice:      Average(g.prices),
			Tenders:       len(g.prices),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DemandPerUnit > out[j].DemandPerUnit })
	return truncate(out, limit)
}

type developerGroup struct {
	name          string
	revenue       int64
	units         int64
	prices        []float64
	discrepancies []float64
}

func developerRollup(valid []domain.TenderRecord, limit int) []domain.DeveloperStats {
	var groups []*developerGroup
	index := make(map[string]*developerGroup)
	for _, r := range valid {
		g, ok := index[r.WinnerName]
		if !ok {
			g = &developerGroup{name: r.WinnerName}
			index[r.WinnerName] = g
			groups = append(groups, g)
		}
		g.revenue += r.WinningPrice
		g.units += int64(r.Units)
		g.prices = append(g.prices, float64(r.WinningPrice))
		if d := r.DiscrepancyPercent(); d != 0 && math.Abs(d) < developerDiscrepancyCap {
			g.discrepancies = append(g.discrepancies, d)
		}
	}

	out := make([]domain.DeveloperStats, 0, len(groups))
	for _, g := range groups {
		out = append(out, domain.DeveloperStats{
			Name:           g.name,
			Wins:           len(g.prices),
			TotalRevenue:   g.revenue,
			AvgDiscrepancy: Average(g.discrepancies),
			AvgPrice:       Average(g.prices),
			TotalUnits:     g.units,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalRevenue > out[j].TotalRevenue })
	return truncate(out, limit)
}

func truncate[T any](s []T, n int) []T {
	if n >= 0 && len(s) > n {
		return s[:n]
	}
	return s
}

// prefix returns the first n characters of s.
func prefix(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
