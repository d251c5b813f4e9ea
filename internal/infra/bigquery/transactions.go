// Package bigquery exports ledger transactions to a BigQuery table for analysis.
package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/budget-tracker/internal/domain"
)

// TransactionRow is one exported transaction.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED

	TransactionDate bigquery.NullDate `bigquery:"transaction_date"` // NULLABLE, unparseable dates export as NULL
	RawDate         string            `bigquery:"raw_date"`

	Amount *big.Rat `bigquery:"amount"` // NUMERIC
	Type   string   `bigquery:"type"`

	Category      string              `bigquery:"category"`
	Description   bigquery.NullString `bigquery:"description"`
	PaymentMethod bigquery.NullString `bigquery:"payment_method"`
	IsFestival    bool                `bigquery:"is_festival"`

	ExportedTS time.Time `bigquery:"exported_ts"`
}

// ToRow converts a stored transaction. exportedAt stamps the row.
func ToRow(t *domain.Transaction, exportedAt time.Time) *TransactionRow {
	row := &TransactionRow{
		TransactionID: t.ID,
		RawDate:       t.Date,
		Amount:        decimal.NewFromFloat(t.Amount).Rat(),
		Type:          string(t.EffectiveType()),
		Category:      t.Category,
		Description:   nullString(t.Description),
		PaymentMethod: nullString(t.PaymentMethod),
		IsFestival:    t.IsFestival,
		ExportedTS:    exportedAt.UTC(),
	}
	if ts, ok := domain.ParseISOTime(t.Date); ok {
		row.TransactionDate = bigquery.NullDate{Date: civil.DateOf(ts), Valid: true}
	}
	return row
}

// Save implements bigquery.ValueSaver. The transaction id doubles as the
// streaming insert id so retried batches are deduplicated.
func (r *TransactionRow) Save() (map[string]bigquery.Value, string, error) {
	return map[string]bigquery.Value{
		"transaction_id":   r.TransactionID,
		"transaction_date": r.TransactionDate,
		"raw_date":         r.RawDate,
		"amount":           r.Amount,
		"type":             r.Type,
		"category":         r.Category,
		"description":      r.Description,
		"payment_method":   r.PaymentMethod,
		"is_festival":      r.IsFestival,
		"exported_ts":      r.ExportedTS,
	}, r.TransactionID, nil
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

var _ bigquery.ValueSaver = (*TransactionRow)(nil)
