package postgres

import (
	"time"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// transactionRow maps to the transactions table.
type transactionRow struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Date          string          `gorm:"not null"`
	Category      string          `gorm:"not null;index:idx_transactions_category_type"`
	Description   string          `gorm:"not null;default:''"`
	PaymentMethod string          `gorm:"column:payment_method;not null;default:''"`
	Amount        decimal.Decimal `gorm:"type:DECIMAL(20,8);not null"`
	Type          string          `gorm:"size:16;not null;index:idx_transactions_category_type"`
	IsFestival    bool            `gorm:"not null;default:false"`
	CreatedAt     time.Time
}

func (transactionRow) TableName() string { return "transactions" }

// budgetRow maps to the budgets table.
type budgetRow struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Category  string          `gorm:"not null;index:idx_budgets_category_type"`
	Budget    decimal.Decimal `gorm:"type:DECIMAL(20,8);not null"`
	Type      string          `gorm:"size:16;not null;index:idx_budgets_category_type"`
	ValidTill *string
	CreatedAt time.Time
	UpdatedAt *time.Time `gorm:"autoUpdateTime:false"`
}

func (budgetRow) TableName() string { return "budgets" }

func toTransactionRow(t *domain.Transaction) transactionRow {
	return transactionRow{
		Date:          t.Date,
		Category:      t.Category,
		Description:   t.Description,
		PaymentMethod: t.PaymentMethod,
		Amount:        decimal.NewFromFloat(t.Amount),
		Type:          string(t.Type),
		IsFestival:    t.IsFestival,
	}
}

func (r transactionRow) toDomain() *domain.Transaction {
	return &domain.Transaction{
		ID:            r.ID.String(),
		Date:          r.Date,
		Category:      r.Category,
		Description:   r.Description,
		PaymentMethod: r.PaymentMethod,
		Amount:        r.Amount.InexactFloat64(),
		Type:          domain.TransactionType(r.Type),
		IsFestival:    r.IsFestival,
	}
}

func toBudgetRow(b *domain.Budget) budgetRow {
	return budgetRow{
		Category:  b.Category,
		Budget:    decimal.NewFromFloat(b.Amount),
		Type:      string(b.Type),
		ValidTill: b.ValidTill,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
}

func (r budgetRow) toDomain() *domain.Budget {
	return &domain.Budget{
		ID:        r.ID.String(),
		Category:  r.Category,
		Amount:    r.Budget.InexactFloat64(),
		Type:      domain.TransactionType(r.Type),
		ValidTill: r.ValidTill,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt,
	}
}
