package domain

import (
	"math"
	"strings"
	"time"
)

// TransactionType is the direction of a transaction. The amount itself is
// always stored non-negative; direction lives only here.
type TransactionType string

const (
	TypeIncome  TransactionType = "income"
	TypeExpense TransactionType = "expense"
)

// DefaultCategory is used when a transaction arrives without a category.
const DefaultCategory = "Unknown"

// incomeCategories drives type inference on import.
var incomeCategories = map[string]bool{
	"salary":    true,
	"freelance": true,
	"bonus":     true,
	"income":    true,
}

// ParseTransactionType maps free text onto a TransactionType. Anything that
// is not "income" (case-insensitive) is an expense.
func ParseTransactionType(s string) TransactionType {
	if strings.EqualFold(strings.TrimSpace(s), string(TypeIncome)) {
		return TypeIncome
	}
	return TypeExpense
}

// InferTransactionType applies the category allow-list rule used by the CSV
// importer: salary, freelance, bonus and income are income, everything else
// is an expense.
func InferTransactionType(category string) TransactionType {
	if incomeCategories[strings.ToLower(strings.TrimSpace(category))] {
		return TypeIncome
	}
	return TypeExpense
}

// Transaction is one ledger entry.
type Transaction struct {
	ID            string
	Date          string // ISO-8601 if provided, otherwise the server time at upload
	Category      string
	Description   string
	PaymentMethod string
	Amount        float64 // always >= 0
	Type          TransactionType
	IsFestival    bool
}

// Normalize applies the field defaults every write path shares. now is used
// when Date is blank.
func (t *Transaction) Normalize(now time.Time) {
	t.Category = strings.TrimSpace(t.Category)
	if t.Category == "" {
		t.Category = DefaultCategory
	}
	if strings.TrimSpace(t.Date) == "" {
		t.Date = now.UTC().Format(time.RFC3339)
	}
	if math.IsNaN(t.Amount) || math.IsInf(t.Amount, 0) {
		t.Amount = 0
	}
	t.Amount = math.Abs(t.Amount)
	if t.Type != TypeIncome {
		t.Type = TypeExpense
	}
}

// EffectiveType returns the type, treating an unset value as an expense.
func (t *Transaction) EffectiveType() TransactionType {
	if t.Type == "" {
		return TypeExpense
	}
	return t.Type
}
