package models

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// FormatAmount rounds to two decimal places and adds thousands separators,
// e.g. 1234.5 -> "1,234.50".
func FormatAmount(d decimal.Decimal) string {
	fixed := d.StringFixed(2)
	neg := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")

	intPart, frac, _ := strings.Cut(fixed, ".")
	n := decimal.RequireFromString(intPart)
	out := humanize.BigComma(n.BigInt()) + "." + frac
	if neg {
		return "-" + out
	}
	return out
}
