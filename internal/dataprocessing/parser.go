package dataprocessing

import (
	"strings"

	"tenderdash/pkg/contracts/domain"
)

// Column positions in the tender export. 16-19 and 22 are not read.
const (
	colTenderID         = 0
	colTenderNumber     = 1
	colCity             = 2
	colNeighborhood     = 3
	colTotalUnits       = 4
	colPublishDate      = 5
	colOpenDate         = 6
	colCloseDate        = 7
	colCommitteeDate    = 8
	colCompoundNumber   = 9
	colUnits            = 10
	colAreaSqm          = 11
	colWinnerName       = 12
	colWinningPrice     = 13
	colAppraisalPrice   = 14
	colDevelopmentCosts = 15
	colBidCount         = 20
	colAllBids          = 21
	colMinPrice         = 23

	// MinFieldCount is the smallest field count an accepted row may have.
	MinFieldCount = 22
)

// ParseReport describes what Parse did with the input lines.
type ParseReport struct {
	Lines    int `json:"lines"`
	Accepted int `json:"accepted"`
	Dropped  int `json:"dropped"`
}

// Parse converts the export text into tender records.
//
// The first line is always treated as a header. Rows with fewer than
// MinFieldCount fields are skipped. Parse never fails.
func Parse(text string) []domain.TenderRecord {
	records, _ := ParseWithReport(text)
	return records
}

// ParseWithReport is Parse plus line accounting for logs and metrics.
func ParseWithReport(text string) ([]domain.TenderRecord, ParseReport) {
	var report ParseReport

	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) < 2 {
		return []domain.TenderRecord{}, report
	}

	records := make([]domain.TenderRecord, 0, len(lines)-1)
	for _, line := range lines[1:] {
		report.Lines++
		fields := SplitLine(line)
		if len(fields) < MinFieldCount {
			report.Dropped++
			continue
		}
		records = append(records, recordFromFields(fields))
		report.Accepted++
	}

	return records, report
}

// SplitLine splits one row on commas outside double quotes.
// Quotes only toggle quoting and are never kept; "" is not an escape.
// Every field is trimmed.
func SplitLine(line string) []string {
	fields := make([]string, 0, 24)
	var current strings.Builder
	inQuotes := false

	for _, ch := range line {
		switch {
		case ch == '"':
			inQuotes = !inQuotes
		case ch == ',' && !inQuotes:
			fields = append(fields, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteRune(ch)
		}
	}
	return append(fields, strings.TrimSpace(current.String()))
}

func recordFromFields(fields []string) domain.TenderRecord {
	r := domain.TenderRecord{
		TenderID:         fields[colTenderID],
		TenderNumber:     fields[colTenderNumber],
		City:             fields[colCity],
		Neighborhood:     fields[colNeighborhood],
		TotalUnits:       int(parseInt(fields[colTotalUnits])),
		PublishDate:      fields[colPublishDate],
		OpenDate:         fields[colOpenDate],
		CloseDate:        fields[colCloseDate],
		CommitteeDate:    fields[colCommitteeDate],
		CompoundNumber:   fields[colCompoundNumber],
		Units:            int(parseInt(fields[colUnits])),
		AreaSqm:          int(parseInt(fields[colAreaSqm])),
		WinnerName:       fields[colWinnerName],
		WinningPrice:     parseInt(fields[colWinningPrice]),
		AppraisalPrice:   parseInt(fields[colAppraisalPrice]),
		DevelopmentCosts: parseInt(fields[colDevelopmentCosts]),
		BidCount:         int(parseInt(fields[colBidCount])),
		AllBids:          fields[colAllBids],
	}
	if len(fields) > colMinPrice {
		r.MinPrice = fields[colMinPrice]
	}
	return r
}

// parseInt reads the leading integer of s ("12abc" is 12, "1,500" is 1).
// Anything without a leading digit, or out of range, is 0.
func parseInt(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	var n int64
	digits := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		d := int64(c - '0')
		if n > (1<<63-1-d)/10 {
			return 0
		}
		n = n*10 + d
		digits++
	}
	if digits == 0 {
		return 0
	}
	if neg {
		return -n
	}
	return n
}
