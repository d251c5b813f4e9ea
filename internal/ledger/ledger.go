// Package ledger is the write and read path for transactions and budgets.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/budget-tracker/internal/budget"
	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/store"
	"github.com/rs/zerolog"
)

// Contract selects how transaction identifiers appear in listings.
type Contract string

const (
	// ContractV1 omits identifiers, matching the original listing.
	ContractV1 Contract = "v1"
	// ContractV2 includes every identifier as a string under "_id".
	ContractV2 Contract = "v2"
)

// ParseContract maps a query value onto a Contract. Blank means ContractV2.
func ParseContract(s string) (Contract, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ContractV2):
		return ContractV2, nil
	case string(ContractV1):
		return ContractV1, nil
	default:
		return "", &domain.ValidationError{Field: "contract", Reason: "must be v1 or v2"}
	}
}

// TransactionView is the JSON form of a transaction.
type TransactionView struct {
	ID            string                 `json:"_id,omitempty"`
	Date          string                 `json:"date"`
	Category      string                 `json:"category"`
	Description   string                 `json:"description"`
	PaymentMethod string                 `json:"paymentMethod"`
	Amount        float64                `json:"amount"`
	Type          domain.TransactionType `json:"type"`
	IsFestival    bool                   `json:"isFestival"`
}

// Ledger applies field rules before every store write.
type Ledger struct {
	store store.Store
	log   zerolog.Logger
	now   func() time.Time
}

// New creates a Ledger over s.
func New(s store.Store, log zerolog.Logger) *Ledger {
	return &Ledger{
		store: s,
		log:   log,
		now:   time.Now,
	}
}

// transactionFromFields applies the manual-entry defaults.
func (l *Ledger) transactionFromFields(f Fields) *domain.Transaction {
	txn := &domain.Transaction{}
	txn.Date, _ = f.String("date")
	txn.Category, _ = f.String("category")
	txn.Description, _ = f.String("description")
	txn.PaymentMethod, _ = f.String("paymentMethod")
	txn.Amount, _ = f.Number("amount")
	typ, _ := f.String("type")
	txn.Type = domain.ParseTransactionType(typ)
	txn.IsFestival = f.Bool("isFestival") || f.Bool("is_festival")
	txn.Normalize(l.now())
	return txn
}

// AddTransaction inserts one transaction and returns it with its new id.
func (l *Ledger) AddTransaction(ctx context.Context, f Fields) (*domain.Transaction, error) {
	txn := l.transactionFromFields(f)
	if err := l.store.InsertTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("AddTransaction: %w", err)
	}
	return txn, nil
}

// UpdateTransaction replaces the transaction named by f["_id"]. The other
// fields get the same defaults as an insert.
func (l *Ledger) UpdateTransaction(ctx context.Context, f Fields) (*domain.Transaction, error) {
	id, ok := f.String("_id")
	if !ok || strings.TrimSpace(id) == "" {
		return nil, domain.Required("_id")
	}

	txn := l.transactionFromFields(f)
	if err := l.store.UpdateTransaction(ctx, strings.TrimSpace(id), txn); err != nil {
		return nil, fmt.Errorf("UpdateTransaction: %w", err)
	}
	return txn, nil
}

// DeleteTransaction removes a transaction. An unknown id is logged, not returned.
func (l *Ledger) DeleteTransaction(ctx context.Context, id string) error {
	err := l.store.DeleteTransaction(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		l.log.Info().Str("transaction_id", id).Msg("Delete of unknown transaction ignored")
		return nil
	}
	if err != nil {
		return fmt.Errorf("DeleteTransaction: %w", err)
	}
	return nil
}

// ListTransactions returns every transaction in the shape c asks for.
func (l *Ledger) ListTransactions(ctx context.Context, c Contract) ([]TransactionView, error) {
	txns, err := l.store.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}

	views := make([]TransactionView, 0, len(txns))
	for _, t := range txns {
		v := TransactionView{
			Date:          t.Date,
			Category:      t.Category,
			Description:   t.Description,
			PaymentMethod: t.PaymentMethod,
			Amount:        t.Amount,
			Type:          t.EffectiveType(),
			IsFestival:    t.IsFestival,
		}
		if c != ContractV1 {
			v.ID = t.ID
		}
		views = append(views, v)
	}
	return views, nil
}

// budgetFromFields enforces the required budget fields.
func budgetFromFields(f Fields) (*domain.Budget, error) {
	category, ok := f.String("category")
	if !ok || strings.TrimSpace(category) == "" {
		return nil, domain.Required("category")
	}
	if !f.Has("budget") {
		return nil, domain.Required("budget")
	}
	amount, ok := f.Number("budget")
	if !ok {
		return nil, &domain.ValidationError{Field: "budget", Reason: "must be a number"}
	}

	typ, _ := f.String("type")
	return &domain.Budget{
		Category:  strings.TrimSpace(category),
		Amount:    amount,
		Type:      domain.ParseTransactionType(typ),
		ValidTill: f.OptionalString("validTill"),
	}, nil
}

// AddBudget inserts a budget. category and budget are required.
func (l *Ledger) AddBudget(ctx context.Context, f Fields) (*domain.Budget, error) {
	b, err := budgetFromFields(f)
	if err != nil {
		return nil, err
	}
	b.CreatedAt = l.now().UTC()

	if err := l.store.InsertBudget(ctx, b); err != nil {
		return nil, fmt.Errorf("AddBudget: %w", err)
	}
	return b, nil
}

// UpdateBudget replaces the budget named by f["_id"].
func (l *Ledger) UpdateBudget(ctx context.Context, f Fields) (*domain.Budget, error) {
	id, ok := f.String("_id")
	if !ok || strings.TrimSpace(id) == "" {
		return nil, domain.Required("_id")
	}
	b, err := budgetFromFields(f)
	if err != nil {
		return nil, err
	}
	updated := l.now().UTC()
	b.UpdatedAt = &updated

	if err := l.store.UpdateBudget(ctx, strings.TrimSpace(id), b); err != nil {
		return nil, fmt.Errorf("UpdateBudget: %w", err)
	}
	return b, nil
}

// DeleteBudget removes a budget. Transactions are untouched.
func (l *Ledger) DeleteBudget(ctx context.Context, id string) error {
	err := l.store.DeleteBudget(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		l.log.Info().Str("budget_id", id).Msg("Delete of unknown budget ignored")
		return nil
	}
	if err != nil {
		return fmt.Errorf("DeleteBudget: %w", err)
	}
	return nil
}

// ListBudgets loads budgets and transactions once and evaluates every budget.
func (l *Ledger) ListBudgets(ctx context.Context) ([]domain.BudgetView, error) {
	budgets, err := l.store.ListBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListBudgets: budgets: %w", err)
	}
	txns, err := l.store.ListTransactions(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListBudgets: transactions: %w", err)
	}
	return budget.Evaluate(budgets, txns, l.now()), nil
}

// Summary returns the dashboard aggregates over every transaction.
func (l *Ledger) Summary(ctx context.Context) (budget.Summary, error) {
	txns, err := l.store.ListTransactions(ctx)
	if err != nil {
		return budget.Summary{}, fmt.Errorf("Summary: %w", err)
	}
	return budget.SummarizeTransactions(txns), nil
}
