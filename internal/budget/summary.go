package budget

import (
	"sort"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/shopspring/decimal"
)

// MonthlyTotal is the summed amount for one calendar month (YYYY-MM).
type MonthlyTotal struct {
	Month  string  `json:"month"`
	Amount float64 `json:"amount"`
}

// CategoryTotal is the summed expense for one category.
type CategoryTotal struct {
	Category string  `json:"name"`
	Amount   float64 `json:"value"`
}

// Summary holds the dashboard aggregates.
type Summary struct {
	TotalIncome  float64         `json:"totalIncome"`
	TotalExpense float64         `json:"totalExpense"`
	Savings      float64         `json:"savings"`
	Monthly      []MonthlyTotal  `json:"monthly"`
	Categories   []CategoryTotal `json:"categories"`
	Count        int             `json:"count"`
}

// SummarizeTransactions totals income and expense, buckets all amounts by
// month, and splits expenses by category. Transactions whose date does not
// parse are left out of the monthly trend only.
func SummarizeTransactions(txns []*domain.Transaction) Summary {
	var income, expense decimal.Decimal
	months := make(map[string]decimal.Decimal)
	categories := make(map[string]decimal.Decimal)

	for _, t := range txns {
		amount := decimal.NewFromFloat(t.Amount)

		if t.EffectiveType() == domain.TypeIncome {
			income = income.Add(amount)
		} else {
			expense = expense.Add(amount)
			categories[t.Category] = categories[t.Category].Add(amount)
		}

		if ts, ok := domain.ParseISOTime(t.Date); ok {
			key := ts.Format("2006-01")
			months[key] = months[key].Add(amount)
		}
	}

	s := Summary{
		TotalIncome:  income.InexactFloat64(),
		TotalExpense: expense.InexactFloat64(),
		Savings:      income.Sub(expense).InexactFloat64(),
		Monthly:      make([]MonthlyTotal, 0, len(months)),
		Categories:   make([]CategoryTotal, 0, len(categories)),
		Count:        len(txns),
	}

	for month, amount := range months {
		s.Monthly = append(s.Monthly, MonthlyTotal{Month: month, Amount: amount.InexactFloat64()})
	}
	sort.Slice(s.Monthly, func(i, j int) bool { return s.Monthly[i].Month < s.Monthly[j].Month })

	for category, amount := range categories {
		s.Categories = append(s.Categories, CategoryTotal{Category: category, Amount: amount.InexactFloat64()})
	}
	sort.Slice(s.Categories, func(i, j int) bool {
		if s.Categories[i].Amount != s.Categories[j].Amount {
			return s.Categories[i].Amount > s.Categories[j].Amount
		}
		return s.Categories[i].Category < s.Categories[j].Category
	})

	return s
}
