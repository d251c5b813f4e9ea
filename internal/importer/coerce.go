package importer

import (
	"strings"

	"github.com/shopspring/decimal"
)

var amountReplacer = strings.NewReplacer(
	"£", "",
	"$", "",
	"€", "",
	",", "",
	" ", "",
	"\u00a0", "",
)

// ParseAmount converts strings like "1,234.56" or "-£12" to a float64.
// ok is false when nothing numeric is left after stripping currency symbols
// and thousands separators.
func ParseAmount(s string) (float64, bool) {
	s = amountReplacer.Replace(strings.TrimSpace(s))
	if s == "" || s == "-" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	return d.InexactFloat64(), true
}

// ParseBool accepts 1/0, true/false, yes/no and y/n in any case.
// Anything else is false.
func ParseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "t":
		return true
	}
	return false
}
