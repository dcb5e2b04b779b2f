package domain

// NotAvailable is reported as the most popular neighborhood when no
// neighborhood has any units.
const NotAvailable = "לא זמין"

// AggregatedStats is the full dashboard snapshot computed from a record set.
//
// JSON names are the dashboard's wire contract and must not change. Every
// numeric field is final; consumers only format it.
type AggregatedStats struct {
	// Totals over valid records, except TotalRecords.
	TotalRevenue int64 `json:"totalRevenue"`
	TotalTenders int   `json:"totalTenders"`
	TotalRecords int   `json:"totalRecords"`
	TotalUnits   int64 `json:"totalUnits"`
	TotalArea    int64 `json:"totalArea"`

	// Percent deviation of winning price from appraisal.
	AvgDiscrepancy    float64 `json:"avgDiscrepancy"`
	MedianDiscrepancy float64 `json:"medianDiscrepancy"`
	DiscrepancyP25    float64 `json:"discrepancyP25"`
	DiscrepancyP75    float64 `json:"discrepancyP75"`

	AvgWinningPrice    float64 `json:"avgWinningPrice"`
	MedianWinningPrice float64 `json:"medianWinningPrice"`
	MinWinningPrice    int64   `json:"minWinningPrice"`
	MaxWinningPrice    int64   `json:"maxWinningPrice"`

	AvgPricePerSqm    float64 `json:"avgPricePerSqm"`
	MedianPricePerSqm float64 `json:"medianPricePerSqm"`

	// Bid counts cover every record, valid or not.
	AvgBidCount       float64 `json:"avgBidCount"`
	MedianBidCount    float64 `json:"medianBidCount"`
	MaxBidCount       int     `json:"maxBidCount"`
	TendersWithNoBids int     `json:"tendersWithNoBids"`
	TendersWithOneBid int     `json:"tendersWithOneBid"`

	AvgBidSpread    float64 `json:"avgBidSpread"`
	MedianBidSpread float64 `json:"medianBidSpread"`

	TotalDevelopmentCosts int64   `json:"totalDevelopmentCosts"`
	AvgDevelopmentCosts   float64 `json:"avgDevelopmentCosts"`

	CityStats               []CityStats         `json:"cityStats"`
	MostPopularNeighborhood string              `json:"mostPopularNeighborhood"`
	TopDevelopers           []DeveloperStats    `json:"topDevelopers"`
	NeighborhoodDemand      []NeighborhoodStats `json:"neighborhoodDemand"`
	Anomalies               []AnomalyRecord     `json:"anomalies"`
	MoneyLeftOnTable        []MoneyLeftRecord   `json:"moneyLeftOnTable"`
	MonthlyRevenue          []MonthlyData       `json:"monthlyRevenue"`
	PriceDistribution       []PriceRange        `json:"priceDistribution"`
}

// CityStats is one row of the city rollup, keyed by canonical city.
type CityStats struct {
	City        string  `json:"city"`
	Tenders     int     `json:"tenders"`
	Revenue     int64   `json:"revenue"`
	AvgPrice    float64 `json:"avgPrice"`
	MedianPrice float64 `json:"medianPrice"`
	AvgBidCount float64 `json:"avgBidCount"`
	Units       int64   `json:"units"`
}

// MonthlyData is one YYYY-MM bucket keyed by close date.
type MonthlyData struct {
	Month    string  `json:"month"`
	Revenue  int64   `json:"revenue"`
	Tenders  int     `json:"tenders"`
	AvgPrice float64 `json:"avgPrice"`
}

// PriceRange is one bucket of the winning-price histogram.
type PriceRange struct {
	Range      string  `json:"range"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// DeveloperStats is one row of the developer (winner) rollup.
type DeveloperStats struct {
	Name           string  `json:"name"`
	Wins           int     `json:"wins"`
	TotalRevenue   int64   `json:"totalRevenue"`
	AvgDiscrepancy float64 `json:"avgDiscrepancy"`
	AvgPrice       float64 `json:"avgPrice"`
	TotalUnits     int64   `json:"totalUnits"`
}

// NeighborhoodStats is one row of the neighborhood demand ranking.
type NeighborhoodStats struct {
	Neighborhood  string  `json:"neighborhood"`
	City          string  `json:"city"`
	BidCount      int64   `json:"bidCount"`
	Units         int64   `json:"units"`
	DemandPerUnit float64 `json:"demandPerUnit"`
	AvgPrice      float64 `json:"avgPrice"`
	Tenders       int     `json:"tenders"`
}

// AnomalyRecord is a tender whose price deviates strongly from its appraisal.
type AnomalyRecord struct {
	TenderID           string  `json:"tender_id"`
	City               string  `json:"city"`
	Neighborhood       string  `json:"neighborhood"`
	WinningPrice       int64   `json:"winning_price"`
	AppraisalPrice     int64   `json:"appraisal_price"`
	Discrepancy        int64   `json:"discrepancy"`
	DiscrepancyPercent float64 `json:"discrepancyPercent"`
	WinnerName         string  `json:"winner_name"`
}

// MoneyLeftRecord is the gap between the winning bid and the runner-up.
type MoneyLeftRecord struct {
	TenderID     string  `json:"tender_id"`
	City         string  `json:"city"`
	Neighborhood string  `json:"neighborhood"`
	WinnerName   string  `json:"winner_name"`
	WinningPrice int64   `json:"winning_price"`
	SecondBid    float64 `json:"second_bid"`
	Gap          float64 `json:"gap"`
	GapPercent   float64 `json:"gapPercent"`
}

// Insights are headline ratios derived from a snapshot.
type Insights struct {
	NoBidsRate         float64 `json:"no_bids_rate"`
	CompetitiveRate    float64 `json:"competitive_rate"`
	AnomaliesAbove     int     `json:"anomalies_above_appraisal"`
	AnomaliesBelow     int     `json:"anomalies_below_appraisal"`
	RevenueVsAppraisal float64 `json:"revenue_vs_appraisal_percent"`
	ValidShare         float64 `json:"valid_share_percent"`
}

// DeveloperSummary totals one developer's wins for the drill-down view.
type DeveloperSummary struct {
	Name           string  `json:"name"`
	Wins           int     `json:"wins"`
	Revenue        int64   `json:"revenue"`
	Units          int64   `json:"units"`
	AvgDiscrepancy float64 `json:"avg_discrepancy"`
}

// FilterOptions lists the values a dashboard filter can take.
type FilterOptions struct {
	Cities         []string `json:"cities"`
	TenderNumbers  []string `json:"tender_numbers"`
	PriceMin       int64    `json:"price_min"`
	PriceMax       int64    `json:"price_max"`
	DiscrepancyMin float64  `json:"discrepancy_min"`
	DiscrepancyMax float64  `json:"discrepancy_max"`
	BidCountMin    int      `json:"bid_count_min"`
	BidCountMax    int      `json:"bid_count_max"`
}

// FilterState is a dashboard filter selection.
type FilterState struct {
	Cities         []string `json:"cities" validate:"omitempty,dive,required,max=200"`
	TenderNumbers  []string `json:"tender_numbers" validate:"omitempty,dive,required,max=100"`
	PriceMin       *int64   `json:"price_min,omitempty" validate:"omitempty,gte=0"`
	PriceMax       *int64   `json:"price_max,omitempty" validate:"omitempty,gte=0"`
	DiscrepancyMin *float64 `json:"discrepancy_min,omitempty"`
	DiscrepancyMax *float64 `json:"discrepancy_max,omitempty"`
	BidCountMin    *int     `json:"bid_count_min,omitempty" validate:"omitempty,gte=0"`
	BidCountMax    *int     `json:"bid_count_max,omitempty" validate:"omitempty,gte=0"`
}
