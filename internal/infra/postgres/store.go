// Package postgres is the SQL Record Store backend, built on gorm.
package postgres

import (
	"context"
	"fmt"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/store"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store keeps transactions and budgets in two tables keyed by UUID.
type Store struct {
	db *gorm.DB
}

// Open connects using a postgres:// DSN.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("Open: connect: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("Open: sql handle: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("Open: ping: %w", err)
	}
	return New(db), nil
}

// New wraps an open gorm handle.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func parseID(id string) (uuid.UUID, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, domain.ErrInvalidID
	}
	return uid, nil
}

// InsertTransactions implements store.TransactionRepository in one INSERT.
func (s *Store) InsertTransactions(ctx context.Context, txns []*domain.Transaction) error {
	if len(txns) == 0 {
		return nil
	}

	rows := make([]transactionRow, len(txns))
	for i, t := range txns {
		rows[i] = toTransactionRow(t)
		rows[i].ID = uuid.New()
	}
	if err := s.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("InsertTransactions: create: %w", err)
	}
	for i, t := range txns {
		t.ID = rows[i].ID.String()
	}
	return nil
}

// InsertTransaction implements store.TransactionRepository.
func (s *Store) InsertTransaction(ctx context.Context, txn *domain.Transaction) error {
	row := toTransactionRow(txn)
	row.ID = uuid.New()
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("InsertTransaction: create: %w", err)
	}
	txn.ID = row.ID.String()
	return nil
}

// ListTransactions implements store.TransactionRepository.
func (s *Store) ListTransactions(ctx context.Context) ([]*domain.Transaction, error) {
	var rows []transactionRow
	if err := s.db.WithContext(ctx).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("ListTransactions: find: %w", err)
	}

	result := make([]*domain.Transaction, 0, len(rows))
	for _, r := range rows {
		result = append(result, r.toDomain())
	}
	return result, nil
}

// UpdateTransaction implements store.TransactionRepository.
func (s *Store) UpdateTransaction(ctx context.Context, id string, txn *domain.Transaction) error {
	uid, err := parseID(id)
	if err != nil {
		return err
	}

	row := toTransactionRow(txn)
	res := s.db.WithContext(ctx).Model(&transactionRow{}).
		Where("id = ?", uid).
		Select("date", "category", "description", "payment_method", "amount", "type", "is_festival").
		Updates(&row)
	if res.Error != nil {
		return fmt.Errorf("UpdateTransaction: update: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	txn.ID = id
	return nil
}

// DeleteTransaction implements store.TransactionRepository.
func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	return s.deleteByID(ctx, &transactionRow{}, id)
}

// InsertBudget implements store.BudgetRepository.
func (s *Store) InsertBudget(ctx context.Context, b *domain.Budget) error {
	row := toBudgetRow(b)
	row.ID = uuid.New()
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("InsertBudget: create: %w", err)
	}
	b.ID = row.ID.String()
	return nil
}

// ListBudgets implements store.BudgetRepository.
func (s *Store) ListBudgets(ctx context.Context) ([]*domain.Budget, error) {
	var rows []budgetRow
	if err := s.db.WithContext(ctx).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("ListBudgets: find: %w", err)
	}

	result := make([]*domain.Budget, 0, len(rows))
	for _, r := range rows {
		result = append(result, r.toDomain())
	}
	return result, nil
}

// UpdateBudget implements store.BudgetRepository. created_at is left untouched.
func (s *Store) UpdateBudget(ctx context.Context, id string, b *domain.Budget) error {
	uid, err := parseID(id)
	if err != nil {
		return err
	}

	row := toBudgetRow(b)
	res := s.db.WithContext(ctx).Model(&budgetRow{}).
		Where("id = ?", uid).
		Select("category", "budget", "type", "valid_till", "updated_at").
		Updates(&row)
	if res.Error != nil {
		return fmt.Errorf("UpdateBudget: update: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	b.ID = id
	return nil
}

// DeleteBudget implements store.BudgetRepository.
func (s *Store) DeleteBudget(ctx context.Context, id string) error {
	return s.deleteByID(ctx, &budgetRow{}, id)
}

func (s *Store) deleteByID(ctx context.Context, model interface{}, id string) error {
	uid, err := parseID(id)
	if err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Where("id = ?", uid).Delete(model)
	if res.Error != nil {
		return fmt.Errorf("delete: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Migrate creates or alters both tables.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&transactionRow{}, &budgetRow{}); err != nil {
		return fmt.Errorf("Migrate: auto migrate: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("Close: sql handle: %w", err)
	}
	return sqlDB.Close()
}

var _ store.Store = (*Store)(nil)
