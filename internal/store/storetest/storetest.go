// Package storetest holds behaviour checks shared by every store.Store backend.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/store"
	"github.com/stretchr/testify/require"
)

// Run exercises a backend. newStore must return an empty store for each call.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("transactions lifecycle", func(t *testing.T) {
		testTransactionLifecycle(t, newStore(t))
	})
	t.Run("bulk insert assigns ids", func(t *testing.T) {
		testBulkInsert(t, newStore(t))
	})
	t.Run("unknown ids", func(t *testing.T) {
		testUnknownIDs(t, newStore(t), invalidID)
	})
	t.Run("budgets lifecycle", func(t *testing.T) {
		testBudgetLifecycle(t, newStore(t))
	})
}

const invalidID = "not-an-id"

func testTransactionLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()

	txn := &domain.Transaction{
		Date:          "2024-02-01T10:00:00Z",
		Category:      "Food",
		Description:   "groceries",
		PaymentMethod: "card",
		Amount:        12.5,
		Type:          domain.TypeExpense,
	}
	require.NoError(t, s.InsertTransaction(ctx, txn))
	require.NotEmpty(t, txn.ID)

	list, err := s.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, txn.ID, list[0].ID)
	require.Equal(t, "groceries", list[0].Description)
	require.Equal(t, 12.5, list[0].Amount)

	updated := *txn
	updated.Amount = 20
	updated.Category = "Dining"
	require.NoError(t, s.UpdateTransaction(ctx, txn.ID, &updated))

	list, err = s.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "Dining", list[0].Category)
	require.Equal(t, 20.0, list[0].Amount)

	require.NoError(t, s.DeleteTransaction(ctx, txn.ID))

	list, err = s.ListTransactions(ctx)
	require.NoError(t, err)
	require.Empty(t, list)

	require.ErrorIs(t, s.DeleteTransaction(ctx, txn.ID), domain.ErrNotFound)
}

func testBulkInsert(t *testing.T, s store.Store) {
	ctx := context.Background()

	batch := []*domain.Transaction{
		{Date: "2024-01-01", Category: "Food", Amount: 40, Type: domain.TypeExpense},
		{Date: "2024-01-02", Category: "Food", Amount: 10, Type: domain.TypeExpense},
		{Date: "2024-01-03", Category: "Salary", Amount: 1000, Type: domain.TypeIncome, IsFestival: true},
	}
	require.NoError(t, s.InsertTransactions(ctx, batch))

	seen := map[string]bool{}
	for _, txn := range batch {
		require.NotEmpty(t, txn.ID)
		require.False(t, seen[txn.ID], "duplicate id %s", txn.ID)
		seen[txn.ID] = true
	}

	list, err := s.ListTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)

	var festival int
	for _, txn := range list {
		if txn.IsFestival {
			festival++
			require.Equal(t, domain.TypeIncome, txn.Type)
		}
	}
	require.Equal(t, 1, festival)
}

func testUnknownIDs(t *testing.T, s store.Store, bad string) {
	ctx := context.Background()

	missing := &domain.Transaction{Category: "Food"}
	require.NoError(t, s.InsertTransaction(ctx, missing))
	require.NoError(t, s.DeleteTransaction(ctx, missing.ID))

	require.ErrorIs(t, s.UpdateTransaction(ctx, missing.ID, &domain.Transaction{}), domain.ErrNotFound)
	require.ErrorIs(t, s.DeleteTransaction(ctx, missing.ID), domain.ErrNotFound)
	require.ErrorIs(t, s.UpdateTransaction(ctx, bad, &domain.Transaction{}), domain.ErrInvalidID)
	require.ErrorIs(t, s.DeleteTransaction(ctx, bad), domain.ErrInvalidID)
	require.ErrorIs(t, s.UpdateBudget(ctx, bad, &domain.Budget{}), domain.ErrInvalidID)
	require.ErrorIs(t, s.DeleteBudget(ctx, bad), domain.ErrInvalidID)
}

func testBudgetLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()

	validTill := "2030-01-01"
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := &domain.Budget{
		Category:  "Food",
		Amount:    100,
		Type:      domain.TypeExpense,
		ValidTill: &validTill,
		CreatedAt: created,
	}
	require.NoError(t, s.InsertBudget(ctx, b))
	require.NotEmpty(t, b.ID)

	list, err := s.ListBudgets(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, b.ID, list[0].ID)
	require.NotNil(t, list[0].ValidTill)
	require.Equal(t, validTill, *list[0].ValidTill)
	require.True(t, created.Equal(list[0].CreatedAt))

	updatedAt := created.Add(time.Hour)
	update := &domain.Budget{Category: "Food", Amount: -5, Type: domain.TypeIncome, UpdatedAt: &updatedAt}
	require.NoError(t, s.UpdateBudget(ctx, b.ID, update))

	list, err = s.ListBudgets(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, -5.0, list[0].Amount)
	require.Equal(t, domain.TypeIncome, list[0].Type)
	require.Nil(t, list[0].ValidTill)
	require.NotNil(t, list[0].UpdatedAt)

	require.NoError(t, s.DeleteBudget(ctx, b.ID))
	list, err = s.ListBudgets(ctx)
	require.NoError(t, err)
	require.Empty(t, list)

	require.ErrorIs(t, s.UpdateBudget(ctx, b.ID, update), domain.ErrNotFound)
}
