// Package budget computes spend and expiry for budgets at read time.
package budget

import (
	"time"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/shopspring/decimal"
)

// matchKey is the loose association between budgets and transactions.
type matchKey struct {
	category string
	kind     domain.TransactionType
}

// Evaluate builds a view for every budget. spent is the sum of amounts over
// transactions with the same category and type; expired is true only when
// validTill parses and is strictly before now.
func Evaluate(budgets []*domain.Budget, txns []*domain.Transaction, now time.Time) []domain.BudgetView {
	totals := make(map[matchKey]decimal.Decimal)
	for _, t := range txns {
		key := matchKey{category: t.Category, kind: t.EffectiveType()}
		totals[key] = totals[key].Add(decimal.NewFromFloat(t.Amount))
	}

	views := make([]domain.BudgetView, 0, len(budgets))
	for _, b := range budgets {
		key := matchKey{category: b.Category, kind: b.EffectiveType()}
		views = append(views, domain.BudgetView{
			ID:        b.ID,
			Category:  b.Category,
			Budget:    b.Amount,
			Type:      b.EffectiveType(),
			Spent:     totals[key].InexactFloat64(),
			ValidTill: b.ValidTill,
			Expired:   Expired(b.ValidTill, now),
		})
	}
	return views
}

// Expired reports whether validTill is set, parses, and lies before now.
func Expired(validTill *string, now time.Time) bool {
	if validTill == nil {
		return false
	}
	t, ok := domain.ParseISOTime(*validTill)
	if !ok {
		return false
	}
	return t.Before(now.UTC())
}
