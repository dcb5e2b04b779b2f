package domain

// TenderRecord is one row of the land-tender export.
//
// Field names follow the export's column meaning, not its position. Integer
// columns that fail to parse are stored as 0; text columns are stored trimmed.
// Dates are kept as the source text (YYYY-MM-DD when well formed).
type TenderRecord struct {
	TenderID       string `json:"tender_id" csv:"tender_id"`
	TenderNumber   string `json:"tender_number" csv:"tender_number"`
	City           string `json:"city" csv:"city"`
	Neighborhood   string `json:"neighborhood" csv:"neighborhood"`
	TotalUnits     int    `json:"total_units" csv:"total_units"`
	PublishDate    string `json:"publish_date" csv:"publish_date"`
	OpenDate       string `json:"open_date" csv:"open_date"`
	CloseDate      string `json:"close_date" csv:"close_date"`
	CommitteeDate  string `json:"committee_date" csv:"committee_date"`
	CompoundNumber string `json:"compound_number" csv:"compound_number"`
	Units          int    `json:"units" csv:"units"`
	AreaSqm        int    `json:"area_sqm" csv:"area_sqm"`
	WinnerName     string `json:"winner_name" csv:"winner_name"`

	// Money columns are whole shekels.
	WinningPrice     int64 `json:"winning_price" csv:"winning_price"`
	AppraisalPrice   int64 `json:"appraisal_price" csv:"appraisal_price"`
	DevelopmentCosts int64 `json:"development_costs" csv:"development_costs"`

	BidCount int `json:"bid_count" csv:"bid_count"`
	// AllBids is the raw ";"-separated bid list; see dataprocessing.ParseBids.
	AllBids string `json:"all_bids" csv:"all_bids"`
	// MinPrice is empty when the export has no minimum-price column.
	MinPrice string `json:"min_price" csv:"min_price"`
}

// HasAppraisal reports whether the record carries an appraisal to compare against.
func (r TenderRecord) HasAppraisal() bool {
	return r.AppraisalPrice > 0
}

// DiscrepancyPercent is (winning - appraisal) / appraisal * 100, or 0 without an appraisal.
func (r TenderRecord) DiscrepancyPercent() float64 {
	if r.AppraisalPrice <= 0 {
		return 0
	}
	return float64(r.WinningPrice-r.AppraisalPrice) / float64(r.AppraisalPrice) * 100
}

// PricePerSqm is winning price over area, or 0 when the area is unknown.
func (r TenderRecord) PricePerSqm() float64 {
	if r.AreaSqm <= 0 {
		return 0
	}
	return float64(r.WinningPrice) / float64(r.AreaSqm)
}

// TenderRow is a drill-down row: the record plus its derived per-row metrics.
type TenderRow struct {
	TenderRecord
	DiscrepancyPercent float64 `json:"discrepancy_percent"`
	PricePerSqm        float64 `json:"price_per_sqm"`
}

// NewTenderRow derives the per-row metrics for r.
func NewTenderRow(r TenderRecord) TenderRow {
	return TenderRow{
		TenderRecord:       r,
		DiscrepancyPercent: r.DiscrepancyPercent(),
		PricePerSqm:        r.PricePerSqm(),
	}
}
