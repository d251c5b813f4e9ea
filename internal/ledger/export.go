package ledger

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// ExportHeader is the column order written by ExportCSV. The importer reads
// every one of these columns.
var ExportHeader = []string{"date", "category", "description", "paymentMethod", "amount", "type", "isFestival"}

// ExportCSV writes all transactions as CSV and returns the row count.
func (l *Ledger) ExportCSV(ctx context.Context, out io.Writer) (int, error) {
	txns, err := l.store.ListTransactions(ctx)
	if err != nil {
		return 0, fmt.Errorf("ExportCSV: %w", err)
	}

	w := csv.NewWriter(out)
	if err := w.Write(ExportHeader); err != nil {
		return 0, fmt.Errorf("ExportCSV: header: %w", err)
	}
	for _, t := range txns {
		row := []string{
			t.Date,
			t.Category,
			t.Description,
			t.PaymentMethod,
			strconv.FormatFloat(t.Amount, 'f', -1, 64),
			string(t.EffectiveType()),
			strconv.FormatBool(t.IsFestival),
		}
		if err := w.Write(row); err != nil {
			return 0, fmt.Errorf("ExportCSV: row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("ExportCSV: flush: %w", err)
	}
	return len(txns), nil
}
