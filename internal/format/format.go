// Package format renders dashboard figures for display: shekel amounts,
// grouped counts and signed percentages.
package format

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// CurrencySymbol is appended to every amount.
const CurrencySymbol = "₪"

// Formatter formats numbers with the digit grouping of one locale.
type Formatter struct {
	printer *message.Printer
	rtl     bool
}

// New creates a Formatter for tag.
func New(tag language.Tag) *Formatter {
	script, _ := tag.Script()
	return &Formatter{printer: message.NewPrinter(tag), rtl: rtlScripts[script.String()]}
}

var rtlScripts = map[string]bool{"Hebr": true, "Arab": true, "Syrc": true, "Thaa": true}

// RightToLeft reports whether the locale's script is written right to left.
func (f *Formatter) RightToLeft() bool {
	return f.rtl
}

// DefaultLocale is the dashboard's display locale.
var DefaultLocale = language.Hebrew

var hebrew = New(DefaultLocale)

// Currency abbreviates billions and millions to one decimal and prints smaller
// amounts as whole grouped shekels.
func (f *Formatter) Currency(value float64) string {
	switch {
	case value >= 1e9:
		return fmt.Sprintf("%.1fB %s", value/1e9, CurrencySymbol)
	case value >= 1e6:
		return fmt.Sprintf("%.1fM %s", value/1e6, CurrencySymbol)
	default:
		return f.Number(value) + " " + CurrencySymbol
	}
}

// Number rounds value and groups its digits. The sign is always an ASCII
// hyphen so right-to-left locales do not add direction marks.
func (f *Formatter) Number(value float64) string {
	n := int64(math.Round(value))
	if n < 0 {
		return "-" + f.printer.Sprintf("%d", -n)
	}
	return f.printer.Sprintf("%d", n)
}

// Percent prints value with one decimal and an explicit sign for non-negative values.
func (f *Formatter) Percent(value float64) string {
	if value >= 0 {
		return fmt.Sprintf("+%.1f%%", value)
	}
	return fmt.Sprintf("%.1f%%", value)
}

// Currency formats with the default Hebrew locale.
func Currency(value float64) string { return hebrew.Currency(value) }

// Number formats with the default Hebrew locale.
func Number(value float64) string { return hebrew.Number(value) }

// Percent formats a signed percentage.
func Percent(value float64) string { return hebrew.Percent(value) }
