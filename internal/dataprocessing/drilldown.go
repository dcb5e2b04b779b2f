package dataprocessing

import (
	"math"
	"sort"

	"tenderdash/pkg/contracts/domain"
)

// CityTenders lists the priced tenders of one canonical city, in input order.
func CityTenders(records []domain.TenderRecord, city string) []domain.TenderRow {
	want := CanonicalCity(city)
	rows := make([]domain.TenderRow, 0)
	for _, r := range records {
		if r.WinningPrice > 0 && CanonicalCity(r.City) == want {
			rows = append(rows, domain.NewTenderRow(r))
		}
	}
	return rows
}

// DeveloperTenders lists the valid tenders won by name, in input order, with a summary.
func (a *Aggregator) DeveloperTenders(records []domain.TenderRecord, name string) ([]domain.TenderRow, domain.DeveloperSummary) {
	summary := domain.DeveloperSummary{Name: name}
	rows := make([]domain.TenderRow, 0)
	var discrepancies []float64

	for _, r := range records {
		if r.WinnerName != name || !a.IsValid(r) {
			continue
		}
		row := domain.NewTenderRow(r)
		rows = append(rows, row)

		summary.Wins++
		summary.Revenue += r.WinningPrice
		summary.Units += int64(r.Units)
		if r.HasAppraisal() {
			discrepancies = append(discrepancies, row.DiscrepancyPercent)
		}
	}
	summary.AvgDiscrepancy = Average(discrepancies)
	return rows, summary
}

// Insights derives the headline ratios shown above the charts.
func (a *Aggregator) Insights(records []domain.TenderRecord, stats domain.AggregatedStats) domain.Insights {
	total := float64(stats.TotalRecords)
	in := domain.Insights{
		NoBidsRate:      percentOf(float64(stats.TendersWithNoBids), total),
		CompetitiveRate: percentOf(float64(stats.TotalRecords-stats.TendersWithNoBids-stats.TendersWithOneBid), total),
		ValidShare:      percentOf(float64(stats.TotalTenders), total),
	}

	for _, an := range stats.Anomalies {
		if an.Discrepancy > 0 {
			in.AnomaliesAbove++
		} else if an.Discrepancy < 0 {
			in.AnomaliesBelow++
		}
	}

	var won, appraised int64
	for _, r := range records {
		if r.HasAppraisal() && a.IsValid(r) {
			won += r.WinningPrice
			appraised += r.AppraisalPrice
		}
	}
	in.RevenueVsAppraisal = percentOf(float64(won-appraised), float64(appraised))

	return in
}

// Options lists the values the dashboard filters can take.
func Options(records []domain.TenderRecord) domain.FilterOptions {
	opts := domain.FilterOptions{
		Cities:        make([]string, 0),
		TenderNumbers: make([]string, 0),
	}

	cities := make(map[string]struct{})
	numbers := make(map[string]struct{})
	firstPrice, firstDisc := true, true

	for i, r := range records {
		if city := CanonicalCity(r.City); city != "" {
			if _, seen := cities[city]; !seen {
				cities[city] = struct{}{}
				opts.Cities = append(opts.Cities, city)
			}
		}
		if r.TenderNumber != "" {
			if _, seen := numbers[r.TenderNumber]; !seen {
				numbers[r.TenderNumber] = struct{}{}
				opts.TenderNumbers = append(opts.TenderNumbers, r.TenderNumber)
			}
		}

		if r.WinningPrice > 0 {
			if firstPrice || r.WinningPrice < opts.PriceMin {
				opts.PriceMin = r.WinningPrice
			}
			if firstPrice || r.WinningPrice > opts.PriceMax {
				opts.PriceMax = r.WinningPrice
			}
			firstPrice = false
		}

		if r.HasAppraisal() {
			if d := r.DiscrepancyPercent(); math.Abs(d) < discrepancyOutlier {
				if firstDisc || d < opts.DiscrepancyMin {
					opts.DiscrepancyMin = d
				}
				if firstDisc || d > opts.DiscrepancyMax {
					opts.DiscrepancyMax = d
				}
				firstDisc = false
			}
		}

		if i == 0 || r.BidCount < opts.BidCountMin {
			opts.BidCountMin = r.BidCount
		}
		if i == 0 || r.BidCount > opts.BidCountMax {
			opts.BidCountMax = r.BidCount
		}
	}

	sort.Strings(opts.Cities)
	sort.Strings(opts.TenderNumbers)
	return opts
}
