package store_test

import (
	"context"
	"testing"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/store"
	"github.com/dvloznov/budget-tracker/internal/store/storetest"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return store.NewMemoryStore()
	})
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	txn := &domain.Transaction{Category: "Food", Amount: 10}
	require.NoError(t, s.InsertTransaction(ctx, txn))

	txn.Amount = 999
	list, err := s.ListTransactions(ctx)
	require.NoError(t, err)
	require.Equal(t, 10.0, list[0].Amount)

	list[0].Category = "Changed"
	again, err := s.ListTransactions(ctx)
	require.NoError(t, err)
	require.Equal(t, "Food", again[0].Category)
}

func TestMemoryStore_ListsInInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	for _, c := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.InsertTransaction(ctx, &domain.Transaction{Category: c}))
	}

	list, err := s.ListTransactions(ctx)
	require.NoError(t, err)
	got := make([]string, len(list))
	for i, txn := range list {
		got[i] = txn.Category
	}
	require.Equal(t, []string{"a", "b", "c", "d"}, got)
}
