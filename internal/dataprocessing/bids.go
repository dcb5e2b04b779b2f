package dataprocessing

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// leadingFloat matches the numeric prefix of a bid ("8000.5 NIS" reads as 8000.5).
var leadingFloat = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// ParseBids reads a ";"-separated bid list, highest bid first.
//
// Thousands separators are removed before parsing. Entries that are empty,
// unparsable or not positive are dropped, so a blank list yields no bids.
func ParseBids(allBids string) []float64 {
	if strings.TrimSpace(allBids) == "" {
		return nil
	}

	parts := strings.Split(allBids, ";")
	bids := make([]float64, 0, len(parts))
	for _, part := range parts {
		cleaned := strings.ReplaceAll(strings.TrimSpace(part), ",", "")
		if v := parseFloat(cleaned); v > 0 {
			bids = append(bids, v)
		}
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(bids)))
	return bids
}

func parseFloat(s string) float64 {
	m := leadingFloat.FindString(s)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return v
}
