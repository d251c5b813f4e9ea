package store

import (
	"context"
	"sort"
	"sync"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore is an in-process Store. Identifiers are ObjectID hex strings so
// clients see the same id shape as with the Mongo backend.
// Records are copied on the way in and out.
type MemoryStore struct {
	mu           sync.RWMutex
	transactions map[string]*domain.Transaction
	budgets      map[string]*domain.Budget
	order        map[string]int
	seq          int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transactions: make(map[string]*domain.Transaction),
		budgets:      make(map[string]*domain.Budget),
		order:        make(map[string]int),
	}
}

func (s *MemoryStore) nextID() string {
	id := primitive.NewObjectID().Hex()
	s.seq++
	s.order[id] = s.seq
	return id
}

func checkID(id string) error {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return domain.ErrInvalidID
	}
	return nil
}

// InsertTransactions implements TransactionRepository.
func (s *MemoryStore) InsertTransactions(ctx context.Context, txns []*domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, txn := range txns {
		txn.ID = s.nextID()
		c := *txn
		s.transactions[txn.ID] = &c
	}
	return nil
}

// InsertTransaction implements TransactionRepository.
func (s *MemoryStore) InsertTransaction(ctx context.Context, txn *domain.Transaction) error {
	return s.InsertTransactions(ctx, []*domain.Transaction{txn})
}

// ListTransactions implements TransactionRepository. Results are in insertion order.
func (s *MemoryStore) ListTransactions(ctx context.Context) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Transaction, 0, len(s.transactions))
	for _, txn := range s.transactions {
		c := *txn
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool {
		return s.order[result[i].ID] < s.order[result[j].ID]
	})
	return result, nil
}

// UpdateTransaction implements TransactionRepository.
func (s *MemoryStore) UpdateTransaction(ctx context.Context, id string, txn *domain.Transaction) error {
	if err := checkID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transactions[id]; !ok {
		return domain.ErrNotFound
	}
	c := *txn
	c.ID = id
	s.transactions[id] = &c
	txn.ID = id
	return nil
}

// DeleteTransaction implements TransactionRepository.
func (s *MemoryStore) DeleteTransaction(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.transactions[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.transactions, id)
	delete(s.order, id)
	return nil
}

// InsertBudget implements BudgetRepository.
func (s *MemoryStore) InsertBudget(ctx context.Context, b *domain.Budget) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b.ID = s.nextID()
	s.budgets[b.ID] = copyBudget(b)
	return nil
}

// ListBudgets implements BudgetRepository. Results are in insertion order.
func (s *MemoryStore) ListBudgets(ctx context.Context) ([]*domain.Budget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Budget, 0, len(s.budgets))
	for _, b := range s.budgets {
		result = append(result, copyBudget(b))
	}
	sort.Slice(result, func(i, j int) bool {
		return s.order[result[i].ID] < s.order[result[j].ID]
	})
	return result, nil
}

// UpdateBudget implements BudgetRepository. CreatedAt is preserved.
func (s *MemoryStore) UpdateBudget(ctx context.Context, id string, b *domain.Budget) error {
	if err := checkID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.budgets[id]
	if !ok {
		return domain.ErrNotFound
	}
	c := copyBudget(b)
	c.ID = id
	c.CreatedAt = existing.CreatedAt
	s.budgets[id] = c
	b.ID = id
	return nil
}

// DeleteBudget implements BudgetRepository.
func (s *MemoryStore) DeleteBudget(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.budgets[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.budgets, id)
	delete(s.order, id)
	return nil
}

// Migrate is a no-op for the memory store.
func (s *MemoryStore) Migrate(ctx context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *MemoryStore) Close(ctx context.Context) error { return nil }

func copyBudget(b *domain.Budget) *domain.Budget {
	c := *b
	if b.ValidTill != nil {
		v := *b.ValidTill
		c.ValidTill = &v
	}
	if b.UpdatedAt != nil {
		u := *b.UpdatedAt
		c.UpdatedAt = &u
	}
	return &c
}

var _ Store = (*MemoryStore)(nil)
