// Package importer turns uploaded CSV files into stored transactions.
package importer

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/store"
	"github.com/rs/zerolog"
)

// ErrMalformedCSV is returned when the upload cannot be read as CSV at all.
// Bad cell values never produce an error.
var ErrMalformedCSV = errors.New("malformed csv")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Column names recognised in the header row. Lookups are case-insensitive.
var columnAliases = map[string][]string{
	"date":          {"date"},
	"category":      {"category"},
	"description":   {"description"},
	"paymentMethod": {"paymentmethod", "payment_method"},
	"amount":        {"amount"},
	"isFestival":    {"isfestival", "is_festival"},
	"type":          {"type"},
}

// Row is one CSV data row keyed by header name. Missing trailing cells are
// absent from the map.
type Row map[string]string

// get returns the first non-blank value among the aliases of field.
func (r Row) get(field string) (string, bool) {
	for _, alias := range columnAliases[field] {
		if v, ok := r[alias]; ok && strings.TrimSpace(v) != "" {
			return v, true
		}
	}
	return "", false
}

// ImportResult reports how many rows were converted and handed to the store.
type ImportResult struct {
	Inserted int `json:"inserted"`
}

// Importer converts CSV uploads into transactions.
type Importer struct {
	repo store.TransactionRepository
	log  zerolog.Logger
	now  func() time.Time
}

// New creates an Importer writing to repo.
func New(repo store.TransactionRepository, log zerolog.Logger) *Importer {
	return &Importer{
		repo: repo,
		log:  log,
		now:  time.Now,
	}
}

// Import reads every row of r and inserts the batch with a single call.
// An empty file inserts nothing and does not touch the store.
func (i *Importer) Import(ctx context.Context, r io.Reader) (ImportResult, error) {
	rows, err := ReadRows(r)
	if err != nil {
		return ImportResult{}, err
	}

	uploadedAt := i.now()
	txns := make([]*domain.Transaction, 0, len(rows))
	for _, row := range rows {
		txns = append(txns, ToTransaction(row, uploadedAt))
	}

	if len(txns) == 0 {
		i.log.Info().Msg("CSV upload had no data rows")
		return ImportResult{}, nil
	}

	if err := i.repo.InsertTransactions(ctx, txns); err != nil {
		return ImportResult{}, fmt.Errorf("Import: insert: %w", err)
	}

	i.log.Info().Int("inserted", len(txns)).Msg("CSV transactions imported")
	return ImportResult{Inserted: len(txns)}, nil
}

// ReadRows parses CSV with a header row. Header names are trimmed and lowercased.
func ReadRows(r io.Reader) ([]Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("ReadRows: read: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrMalformedCSV, err)
	}
	for k := range header {
		header[k] = strings.ToLower(strings.TrimSpace(header[k]))
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
		}

		row := make(Row, len(header))
		for k, name := range header {
			if k >= len(record) || name == "" {
				continue
			}
			row[name] = record[k]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ToTransaction applies the import defaults to one row. uploadedAt fills a
// missing date. Unparsable amounts become 0. An income or expense type cell
// wins over the category rule.
func ToTransaction(row Row, uploadedAt time.Time) *domain.Transaction {
	txn := &domain.Transaction{}

	if v, ok := row.get("date"); ok {
		txn.Date = strings.TrimSpace(v)
	}
	if v, ok := row.get("category"); ok {
		txn.Category = v
	}
	if v, ok := row.get("description"); ok {
		txn.Description = v
	}
	if v, ok := row.get("paymentMethod"); ok {
		txn.PaymentMethod = v
	}
	if v, ok := row.get("amount"); ok {
		txn.Amount, _ = ParseAmount(v)
	}
	if v, ok := row.get("isFestival"); ok {
		txn.IsFestival = ParseBool(v)
	}

	txn.Type = domain.InferTransactionType(txn.Category)
	if v, ok := row.get("type"); ok {
		switch t := domain.TransactionType(strings.ToLower(strings.TrimSpace(v))); t {
		case domain.TypeIncome, domain.TypeExpense:
			txn.Type = t
		}
	}
	txn.Normalize(uploadedAt)
	return txn
}
