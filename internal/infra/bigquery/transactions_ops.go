package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/budget-tracker/internal/domain"
)

// insertBatchSize bounds a single streaming insert request.
const insertBatchSize = 500

// ExportResult reports what an export run did.
type ExportResult struct {
	Exported int `json:"exported"`
	Skipped  int `json:"skipped"`
}

// Exporter streams transactions into one table. Rows already present are skipped.
type Exporter struct {
	client  *bigquery.Client
	project string
	dataset string
	table   string
	log     zerolog.Logger
	now     func() time.Time
}

// NewExporter opens a BigQuery client for project.
func NewExporter(ctx context.Context, project, dataset, table string, log zerolog.Logger) (*Exporter, error) {
	if project == "" {
		return nil, errors.New("NewExporter: project is required")
	}
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("NewExporter: bigquery client: %w", err)
	}
	return NewExporterWithClient(client, dataset, table, log), nil
}

// NewExporterWithClient uses an existing client.
func NewExporterWithClient(client *bigquery.Client, dataset, table string, log zerolog.Logger) *Exporter {
	return &Exporter{
		client:  client,
		project: client.Project(),
		dataset: dataset,
		table:   table,
		log:     log,
		now:     time.Now,
	}
}

// Close closes the BigQuery client connection.
func (e *Exporter) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}

// EnsureTable creates the table from TransactionRow's schema if it does not exist.
func (e *Exporter) EnsureTable(ctx context.Context) error {
	t := e.client.DatasetInProject(e.project, e.dataset).Table(e.table)
	_, err := t.Metadata(ctx)
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("EnsureTable: metadata: %w", err)
	}

	schema, err := bigquery.InferSchema(TransactionRow{})
	if err != nil {
		return fmt.Errorf("EnsureTable: infer schema: %w", err)
	}
	meta := &bigquery.TableMetadata{
		Schema: schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.MonthPartitioningType,
			Field: "transaction_date",
		},
	}
	if err := t.Create(ctx, meta); err != nil {
		return fmt.Errorf("EnsureTable: create: %w", err)
	}
	e.log.Info().Str("table", e.qualifiedTable()).Msg("Created BigQuery table")
	return nil
}

// Export inserts every transaction whose id is not yet in the table.
func (e *Exporter) Export(ctx context.Context, txns []*domain.Transaction) (ExportResult, error) {
	if err := e.EnsureTable(ctx); err != nil {
		return ExportResult{}, err
	}

	existing, err := e.exportedIDs(ctx)
	if err != nil {
		return ExportResult{}, err
	}

	rows, skipped := pendingRows(txns, existing, e.now())
	inserter := e.client.DatasetInProject(e.project, e.dataset).Table(e.table).Inserter()
	for start := 0; start < len(rows); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := inserter.Put(ctx, rows[start:end]); err != nil {
			return ExportResult{Exported: start, Skipped: skipped}, fmt.Errorf("Export: inserting rows: %w", err)
		}
	}

	res := ExportResult{Exported: len(rows), Skipped: skipped}
	e.log.Info().
		Str("table", e.qualifiedTable()).
		Int("exported", res.Exported).
		Int("skipped", res.Skipped).
		Msg("Transactions exported to BigQuery")
	return res, nil
}

func (e *Exporter) exportedIDs(ctx context.Context) (map[string]bool, error) {
	q := e.client.Query("SELECT transaction_id FROM `" + e.qualifiedTable() + "`")
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("exportedIDs: query read: %w", err)
	}

	ids := make(map[string]bool)
	for {
		var r struct {
			TransactionID string `bigquery:"transaction_id"`
		}
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("exportedIDs: iter next: %w", err)
		}
		ids[r.TransactionID] = true
	}
	return ids, nil
}

func (e *Exporter) qualifiedTable() string {
	return e.project + "." + e.dataset + "." + e.table
}

// pendingRows converts the transactions not in existing. Transactions without
// an id cannot be deduplicated and are skipped too.
func pendingRows(txns []*domain.Transaction, existing map[string]bool, exportedAt time.Time) ([]*TransactionRow, int) {
	rows := make([]*TransactionRow, 0, len(txns))
	skipped := 0
	for _, t := range txns {
		if t.ID == "" || existing[t.ID] {
			skipped++
			continue
		}
		rows = append(rows, ToRow(t, exportedAt))
	}
	return rows, skipped
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}
