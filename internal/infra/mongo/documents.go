package mongo

import (
	"time"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// transactionDoc is the BSON shape of a document in the transactions collection.
type transactionDoc struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	Date          text               `bson:"date"`
	Category      text               `bson:"category"`
	Description   text               `bson:"description"`
	PaymentMethod text               `bson:"paymentMethod"`
	Amount        number             `bson:"amount"`
	Type          text               `bson:"type"`
	IsFestival    flag               `bson:"isFestival,omitempty"`
}

// budgetDoc is the BSON shape of a document in the budgets collection.
// Timestamps are naive UTC ISO strings.
type budgetDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Category  text               `bson:"category"`
	Budget    number             `bson:"budget"`
	Type      text               `bson:"type"`
	ValidTill *text              `bson:"validTill"`
	CreatedAt isoTime            `bson:"createdAt"`
	UpdatedAt *isoTime           `bson:"updatedAt,omitempty"`
}

func toTransactionDoc(t *domain.Transaction) transactionDoc {
	return transactionDoc{
		Date:          text(t.Date),
		Category:      text(t.Category),
		Description:   text(t.Description),
		PaymentMethod: text(t.PaymentMethod),
		Amount:        number(t.Amount),
		Type:          text(t.Type),
		IsFestival:    flag(t.IsFestival),
	}
}

func (d transactionDoc) toDomain() *domain.Transaction {
	txn := &domain.Transaction{
		ID:            d.ID.Hex(),
		Date:          string(d.Date),
		Category:      string(d.Category),
		Description:   string(d.Description),
		PaymentMethod: string(d.PaymentMethod),
		Amount:        float64(d.Amount),
		Type:          domain.TransactionType(d.Type),
		IsFestival:    bool(d.IsFestival),
	}
	if txn.Category == "" {
		txn.Category = domain.DefaultCategory
	}
	return txn
}

func toBudgetDoc(b *domain.Budget) budgetDoc {
	doc := budgetDoc{
		Category:  text(b.Category),
		Budget:    number(b.Amount),
		Type:      text(b.Type),
		CreatedAt: isoTime(b.CreatedAt),
		UpdatedAt: toISOTime(b.UpdatedAt),
	}
	if b.ValidTill != nil {
		v := text(*b.ValidTill)
		doc.ValidTill = &v
	}
	return doc
}

func (d budgetDoc) toDomain() *domain.Budget {
	b := &domain.Budget{
		ID:        d.ID.Hex(),
		Category:  string(d.Category),
		Amount:    float64(d.Budget),
		Type:      domain.TransactionType(d.Type),
		CreatedAt: time.Time(d.CreatedAt).UTC(),
	}
	if d.ValidTill != nil {
		v := string(*d.ValidTill)
		b.ValidTill = &v
	}
	if d.UpdatedAt != nil {
		t := time.Time(*d.UpdatedAt).UTC()
		b.UpdatedAt = &t
	}
	return b
}

func toISOTime(t *time.Time) *isoTime {
	if t == nil {
		return nil
	}
	v := isoTime(*t)
	return &v
}
