package dataprocessing

import (
	"strings"
)

// WinnerClass says what a winner_name cell actually means.
type WinnerClass int

const (
	// WinnerNamed is a real winning bidder.
	WinnerNamed WinnerClass = iota
	// WinnerMissing is an empty cell.
	WinnerMissing
	// WinnerNoBids marks a tender that received no bids.
	WinnerNoBids
	// WinnerInvalidBids marks a tender whose bids were all rejected.
	WinnerInvalidBids
	// WinnerPlaceholder is filler text standing in for a name.
	WinnerPlaceholder
)

func (c WinnerClass) String() string {
	switch c {
	case WinnerNamed:
		return "named"
	case WinnerMissing:
		return "missing"
	case WinnerNoBids:
		return "no_bids"
	case WinnerInvalidBids:
		return "invalid_bids"
	case WinnerPlaceholder:
		return "placeholder"
	default:
		return "unknown"
	}
}

// IsAward reports whether the class names an actual winner.
func (c WinnerClass) IsAward() bool {
	return c == WinnerNamed
}

// Built-in markers found in the export, with English equivalents.
var (
	DefaultNoBidsMarkers      = []string{"אין הצעות", "no bids"}
	DefaultInvalidBidsMarkers = []string{"הצעות לא תקינות", "invalid bids"}
	DefaultPlaceholderMarkers = []string{"המציע זכה", "bidder won"}
)

// WinnerMarkers lists the winner_name values of each non-award class.
// A nil list uses the built-in markers for that class.
type WinnerMarkers struct {
	NoBids      []string
	InvalidBids []string
	Placeholder []string
}

// WinnerClassifier maps winner names to a WinnerClass by exact match after
// whitespace and case normalization.
type WinnerClassifier struct {
	markers map[string]WinnerClass
}

// NewWinnerClassifier builds a classifier from m.
func NewWinnerClassifier(m WinnerMarkers) *WinnerClassifier {
	c := &WinnerClassifier{markers: make(map[string]WinnerClass)}
	c.add(WinnerNoBids, orDefault(m.NoBids, DefaultNoBidsMarkers))
	c.add(WinnerInvalidBids, orDefault(m.InvalidBids, DefaultInvalidBidsMarkers))
	c.add(WinnerPlaceholder, orDefault(m.Placeholder, DefaultPlaceholderMarkers))
	return c
}

func (c *WinnerClassifier) add(class WinnerClass, names []string) {
	for _, name := range names {
		if key := normalizeName(name); key != "" {
			c.markers[key] = class
		}
	}
}

// Classify returns the class of a winner_name value.
func (c *WinnerClassifier) Classify(name string) WinnerClass {
	key := normalizeName(name)
	if key == "" {
		return WinnerMissing
	}
	if class, ok := c.markers[key]; ok {
		return class
	}
	return WinnerNamed
}

func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func orDefault(list, fallback []string) []string {
	if len(list) == 0 {
		return fallback
	}
	return list
}
