package domain

import (
	"strings"
	"time"
)

// Budget caps spend (or income) for one category.
type Budget struct {
	ID        string
	Category  string
	Amount    float64 // exposed as "budget"; negatives are kept as-is
	Type      TransactionType
	ValidTill *string // ISO-8601; nil means it never expires
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// EffectiveType returns the type, treating an unset value as an expense.
func (b *Budget) EffectiveType() TransactionType {
	if b.Type == "" {
		return TypeExpense
	}
	return b.Type
}

// BudgetView is a stored budget plus the figures derived at read time.
type BudgetView struct {
	ID        string          `json:"_id"`
	Category  string          `json:"category"`
	Budget    float64         `json:"budget"`
	Type      TransactionType `json:"type"`
	Spent     float64         `json:"spent"`
	ValidTill *string         `json:"validTill"`
	Expired   bool            `json:"expired"`
}

// isoLayouts are the shapes accepted for ISO-8601 timestamps, most specific
// first. Layouts without a zone are read as UTC.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseISOTime parses the ISO-8601 forms clients send for dates and validity
// windows.
func ParseISOTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
