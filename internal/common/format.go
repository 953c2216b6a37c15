package common

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// reportWidth is the width of the banners rentalctl prints around reports.
const reportWidth = 80

// Money renders an amount with exactly two decimals.
func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func banner(text string) {
	rule := strings.Repeat("=", reportWidth)
	fmt.Println(rule)
	fmt.Println(text)
	fmt.Println(rule)
}

// PrintHeader opens a report section.
func PrintHeader(title string) {
	fmt.Println()
	banner(title)
}

// PrintFooter closes a report with a one-line summary.
func PrintFooter(summary string) {
	fmt.Println()
	banner(summary)
	fmt.Println()
}

// BoxPrefix returns the tree prefix for one row of a per-user listing.
func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "├  "
}

// BoxDetailPrefix indents detail lines under a BoxPrefix row.
func BoxDetailPrefix(isLast bool) string {
	if isLast {
		return "   "
	}
	return "│  "
}
