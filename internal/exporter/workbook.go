package exporter

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"tenderdash/internal/format"
	"tenderdash/pkg/contracts/domain"
)

// Sheet names in workbook order.
const (
	SheetSummary       = "Summary"
	SheetCities        = "Cities"
	SheetMonthly       = "Monthly"
	SheetPrices        = "Prices"
	SheetAnomalies     = "Anomalies"
	SheetMoneyLeft     = "MoneyLeft"
	SheetNeighborhoods = "Neighborhoods"
	SheetDevelopers    = "Developers"
)

// SheetNames lists every sheet the workbook contains.
var SheetNames = []string{
	SheetSummary, SheetCities, SheetMonthly, SheetPrices,
	SheetAnomalies, SheetMoneyLeft, SheetNeighborhoods, SheetDevelopers,
}

// ContentType is the MIME type of the written workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Meta describes the snapshot being exported.
type Meta struct {
	Source      string
	LoadedAt    time.Time
	Fingerprint string
}

// WorkbookExporter renders a snapshot as an xlsx workbook, one sheet per
// dashboard section.
type WorkbookExporter struct {
	logger *slog.Logger
	format *format.Formatter
}

// NewWorkbookExporter creates an exporter.
func NewWorkbookExporter(logger *slog.Logger) *WorkbookExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookExporter{
		logger: logger.With(slog.String("component", "exporter")),
		format: format.New(format.DefaultLocale),
	}
}

// Write builds the workbook and streams it to w.
func (e *WorkbookExporter) Write(w io.Writer, stats domain.AggregatedStats, insights domain.Insights, meta Meta) error {
	f, err := e.Build(stats, insights, meta)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// SaveAs builds the workbook and writes it to path.
func (e *WorkbookExporter) SaveAs(path string, stats domain.AggregatedStats, insights domain.Insights, meta Meta) error {
	f, err := e.Build(stats, insights, meta)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook %s: %w", path, err)
	}
	e.logger.Info("workbook saved", slog.String("path", path))
	return nil
}

// Build returns the populated workbook. The caller closes it.
func (e *WorkbookExporter) Build(stats domain.AggregatedStats, insights domain.Insights, meta Meta) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName(f.GetSheetName(0), SheetSummary); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename first sheet: %w", err)
	}
	for _, name := range SheetNames[1:] {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#DCE6F1"}},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("header style: %w", err)
	}

	tw := &tableWriter{file: f, headerStyle: headerStyle, rightToLeft: e.format.RightToLeft()}
	e.writeSummary(tw, stats, insights, meta)
	writeCities(tw, stats.CityStats)
	writeMonthly(tw, stats.MonthlyRevenue)
	writePrices(tw, stats.PriceDistribution)
	writeAnomalies(tw, stats.Anomalies)
	writeMoneyLeft(tw, stats.MoneyLeftOnTable)
	writeNeighborhoods(tw, stats.NeighborhoodDemand)
	writeDevelopers(tw, stats.TopDevelopers)

	if tw.err != nil {
		f.Close()
		return nil, tw.err
	}
	f.SetActiveSheet(0)

	e.logger.Debug("workbook built",
		slog.Int("cities", len(stats.CityStats)),
		slog.Int("months", len(stats.MonthlyRevenue)),
		slog.Int("developers", len(stats.TopDevelopers)))
	return f, nil
}

func (e *WorkbookExporter) writeSummary(tw *tableWriter, s domain.AggregatedStats, in domain.Insights, meta Meta) {
	loaded := ""
	if !meta.LoadedAt.IsZero() {
		loaded = meta.LoadedAt.UTC().Format(time.RFC3339)
	}
	money := func(v float64) string { return e.format.Currency(v) }
	count := func(v float64) string { return e.format.Number(v) }
	pct := func(v float64) string { return e.format.Percent(v) }

	rows := [][]interface{}{
		{"Source", meta.Source, ""},
		{"Loaded at", loaded, ""},
		{"Fingerprint", meta.Fingerprint, ""},
		{"Total records", s.TotalRecords, count(float64(s.TotalRecords))},
		{"Valid tenders", s.TotalTenders, count(float64(s.TotalTenders))},
		{"Total revenue", s.TotalRevenue, money(float64(s.TotalRevenue))},
		{"Total units", s.TotalUnits, count(float64(s.TotalUnits))},
		{"Total area (sqm)", s.TotalArea, count(float64(s.TotalArea))},
		{"Average winning price", s.AvgWinningPrice, money(s.AvgWinningPrice)},
		{"Median winning price", s.MedianWinningPrice, money(s.MedianWinningPrice)},
		{"Min winning price", s.MinWinningPrice, money(float64(s.MinWinningPrice))},
		{"Max winning price", s.MaxWinningPrice, money(float64(s.MaxWinningPrice))},
		{"Average price per sqm", s.AvgPricePerSqm, money(s.AvgPricePerSqm)},
		{"Median price per sqm", s.MedianPricePerSqm, money(s.MedianPricePerSqm)},
		{"Average discrepancy %", s.AvgDiscrepancy, pct(s.AvgDiscrepancy)},
		{"Median discrepancy %", s.MedianDiscrepancy, pct(s.MedianDiscrepancy)},
		{"Discrepancy P25 %", s.DiscrepancyP25, pct(s.DiscrepancyP25)},
		{"Discrepancy P75 %", s.DiscrepancyP75, pct(s.DiscrepancyP75)},
		{"Average bid count", s.AvgBidCount, ""},
		{"Median bid count", s.MedianBidCount, ""},
		{"Max bid count", s.MaxBidCount, ""},
		{"Tenders with no bids", s.TendersWithNoBids, ""},
		{"Tenders with one bid", s.TendersWithOneBid, ""},
		{"Average bid spread %", s.AvgBidSpread, ""},
		{"Median bid spread %", s.MedianBidSpread, ""},
		{"Total development costs", s.TotalDevelopmentCosts, money(float64(s.TotalDevelopmentCosts))},
		{"Average development costs", s.AvgDevelopmentCosts, money(s.AvgDevelopmentCosts)},
		{"Most popular neighborhood", s.MostPopularNeighborhood, ""},
		{"No bids rate %", in.NoBidsRate, ""},
		{"Competitive rate %", in.CompetitiveRate, ""},
		{"Anomalies above appraisal", in.AnomaliesAbove, ""},
		{"Anomalies below appraisal", in.AnomaliesBelow, ""},
	}
	tw.table(SheetSummary, []string{"Metric", "Value", "Display"}, rows, []float64{30, 24, 18})
}

func writeCities(tw *tableWriter, cities []domain.CityStats) {
	rows := make([][]interface{}, 0, len(cities))
	for _, c := range cities {
		rows = append(rows, []interface{}{c.City, c.Tenders, c.Revenue, c.AvgPrice, c.MedianPrice, c.AvgBidCount, c.Units})
	}
	tw.table(SheetCities,
		[]string{"City", "Tenders", "Revenue", "Avg price", "Median price", "Avg bid count", "Units"},
		rows, []float64{20, 10, 16, 16, 16, 14, 10})
}

func writeMonthly(tw *tableWriter, months []domain.MonthlyData) {
	rows := make([][]interface{}, 0, len(months))
	for _, m := range months {
		rows = append(rows, []interface{}{m.Month, m.Tenders, m.Revenue, m.AvgPrice})
	}
	tw.table(SheetMonthly, []string{"Month", "Tenders", "Revenue", "Avg price"}, rows, []float64{10, 10, 16, 16})
}

func writePrices(tw *tableWriter, buckets []domain.PriceRange) {
	rows := make([][]interface{}, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, []interface{}{b.Range, b.Count, b.Percentage})
	}
	tw.table(SheetPrices, []string{"Range", "Count", "Percentage"}, rows, []float64{14, 10, 12})
}

func writeAnomalies(tw *tableWriter, anomalies []domain.AnomalyRecord) {
	rows := make([][]interface{}, 0, len(anomalies))
	for _, a := range anomalies {
		rows = append(rows, []interface{}{
			a.TenderID, a.City, a.Neighborhood, a.WinnerName,
			a.WinningPrice, a.AppraisalPrice, a.Discrepancy, a.DiscrepancyPercent,
		})
	}
	tw.table(SheetAnomalies,
		[]string{"Tender", "City", "Neighborhood", "Winner", "Winning price", "Appraisal", "Discrepancy", "Discrepancy %"},
		rows, []float64{12, 18, 18, 22, 16, 16, 16, 14})
}

func writeMoneyLeft(tw *tableWriter, records []domain.MoneyLeftRecord) {
	rows := make([][]interface{}, 0, len(records))
	for _, m := range records {
		rows = append(rows, []interface{}{
			m.TenderID, m.City, m.Neighborhood, m.WinnerName,
			m.WinningPrice, m.SecondBid, m.Gap, m.GapPercent,
		})
	}
	tw.table(SheetMoneyLeft,
		[]string{"Tender", "City", "Neighborhood", "Winner", "Winning price", "Second bid", "Gap", "Gap %"},
		rows, []float64{12, 18, 18, 22, 16, 16, 16, 10})
}

func writeNeighborhoods(tw *tableWriter, hoods []domain.NeighborhoodStats) {
	rows := make([][]interface{}, 0, len(hoods))
	for _, n := range hoods {
		rows = append(rows, []interface{}{n.Neighborhood, n.City, n.Tenders, n.BidCount, n.Units, n.DemandPerUnit, n.AvgPrice})
	}
	tw.table(SheetNeighborhoods,
		[]string{"Neighborhood", "City", "Tenders", "Bids", "Units", "Demand per unit", "Avg price"},
		rows, []float64{20, 18, 10, 10, 10, 16, 16})
}

func writeDevelopers(tw *tableWriter, devs []domain.DeveloperStats) {
	rows := make([][]interface{}, 0, len(devs))
	for _, d := range devs {
		rows = append(rows, []interface{}{d.Name, d.Wins, d.TotalRevenue, d.AvgPrice, d.AvgDiscrepancy, d.TotalUnits})
	}
	tw.table(SheetDevelopers,
		[]string{"Developer", "Wins", "Revenue", "Avg price", "Avg discrepancy %", "Units"},
		rows, []float64{26, 8, 16, 16, 16, 10})
}

// tableWriter writes header-plus-rows tables and keeps the first error.
type tableWriter struct {
	file        *excelize.File
	headerStyle int
	rightToLeft bool
	err         error
}

func (tw *tableWriter) table(sheet string, headers []string, rows [][]interface{}, widths []float64) {
	if tw.err != nil {
		return
	}

	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := tw.file.SetSheetRow(sheet, "A1", &header); err != nil {
		tw.err = fmt.Errorf("%s header: %w", sheet, err)
		return
	}

	last, _ := excelize.ColumnNumberToName(len(headers))
	if err := tw.file.SetCellStyle(sheet, "A1", last+"1", tw.headerStyle); err != nil {
		tw.err = fmt.Errorf("%s header style: %w", sheet, err)
		return
	}

	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := row
		if err := tw.file.SetSheetRow(sheet, cell, &row); err != nil {
			tw.err = fmt.Errorf("%s row %d: %w", sheet, i+1, err)
			return
		}
	}

	for i, width := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := tw.file.SetColWidth(sheet, col, col, width); err != nil {
			tw.err = fmt.Errorf("%s column width: %w", sheet, err)
			return
		}
	}

	// Header row stays visible while scrolling.
	if err := tw.file.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		tw.err = fmt.Errorf("%s panes: %w", sheet, err)
		return
	}

	if err := tw.file.SetSheetView(sheet, 0, &excelize.ViewOptions{RightToLeft: &tw.rightToLeft}); err != nil {
		tw.err = fmt.Errorf("%s sheet view: %w", sheet, err)
	}
}
