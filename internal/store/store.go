package store

import (
	"context"

	"github.com/dvloznov/budget-tracker/internal/domain"
)

// TransactionRepository persists transactions.
// Inserts assign an identifier and write it back into the entity.
// Update and delete of an unknown id return domain.ErrNotFound, and ids in
// the wrong format return domain.ErrInvalidID.
type TransactionRepository interface {
	// InsertTransactions writes the whole batch in one call.
	InsertTransactions(ctx context.Context, txns []*domain.Transaction) error

	// InsertTransaction writes a single transaction.
	InsertTransaction(ctx context.Context, txn *domain.Transaction) error

	// ListTransactions returns every stored transaction.
	ListTransactions(ctx context.Context) ([]*domain.Transaction, error)

	// UpdateTransaction replaces the stored record with the given id.
	UpdateTransaction(ctx context.Context, id string, txn *domain.Transaction) error

	// DeleteTransaction removes the record with the given id.
	DeleteTransaction(ctx context.Context, id string) error
}

// BudgetRepository persists budgets.
type BudgetRepository interface {
	InsertBudget(ctx context.Context, b *domain.Budget) error
	ListBudgets(ctx context.Context) ([]*domain.Budget, error)
	UpdateBudget(ctx context.Context, id string, b *domain.Budget) error
	DeleteBudget(ctx context.Context, id string) error
}

// Store is a complete Record Store backend.
type Store interface {
	TransactionRepository
	BudgetRepository

	// Migrate prepares indexes or tables. It is safe to run repeatedly.
	Migrate(ctx context.Context) error

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}
