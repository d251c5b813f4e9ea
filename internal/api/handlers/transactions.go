package handlers

import (
	"bytes"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/api/middleware"
	"github.com/dvloznov/budget-tracker/internal/importer"
	"github.com/dvloznov/budget-tracker/internal/jobs"
	"github.com/dvloznov/budget-tracker/internal/ledger"
)

// TransactionsHandler handles transaction endpoints and the CSV upload.
type TransactionsHandler struct {
	ledger    *ledger.Ledger
	importer  *importer.Importer
	publisher jobs.Publisher
	retrain   bool
	log       zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler. When retrain is
// set and publisher is non-nil, every upload that inserts rows enqueues a
// training job.
func NewTransactionsHandler(l *ledger.Ledger, imp *importer.Importer, publisher jobs.Publisher, retrain bool, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		ledger:    l,
		importer:  imp,
		publisher: publisher,
		retrain:   retrain,
		log:       log,
	}
}

// Upload handles POST /upload-transactions
func (h *TransactionsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r, h.log)
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "CSV file is required")
		return
	}
	defer file.Close()

	res, err := h.importer.Import(r.Context(), file)
	if err != nil {
		writeServiceError(w, log, err, "Transaction")
		return
	}
	log.Info().Str("filename", header.Filename).Int("inserted", res.Inserted).Msg("CSV uploaded")

	if h.retrain && h.publisher != nil && res.Inserted > 0 {
		job := &jobs.TrainModelJob{Trigger: jobs.TriggerUpload}
		if err := h.publisher.PublishTrainModel(r.Context(), job); err != nil {
			log.Error().Err(err).Msg("Failed to enqueue retrain after upload")
		} else {
			log.Info().Str("job_id", job.JobID).Msg("Retrain enqueued after upload")
		}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]int{"inserted": res.Inserted})
}

// List handles GET /transactions
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	contract, err := ledger.ParseContract(r.URL.Query().Get("contract"))
	if err != nil {
		writeServiceError(w, requestLogger(r, h.log), err, "Transaction")
		return
	}

	views, err := h.ledger.ListTransactions(r.Context(), contract)
	if err != nil {
		writeServiceError(w, requestLogger(r, h.log), err, "Transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, views)
}

// Export handles GET /transactions/export
func (h *TransactionsHandler) Export(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if _, err := h.ledger.ExportCSV(r.Context(), &buf); err != nil {
		writeServiceError(w, requestLogger(r, h.log), err, "Transaction")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="transactions.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Add handles POST /add-transaction
func (h *TransactionsHandler) Add(w http.ResponseWriter, r *http.Request) {
	f, ok := decodeFields(w, r)
	if !ok {
		return
	}
	if _, err := h.ledger.AddTransaction(r.Context(), f); err != nil {
		writeServiceError(w, requestLogger(r, h.log), err, "Transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// Update handles PUT /update-transaction
func (h *TransactionsHandler) Update(w http.ResponseWriter, r *http.Request) {
	f, ok := decodeFields(w, r)
	if !ok {
		return
	}
	if _, err := h.ledger.UpdateTransaction(r.Context(), f); err != nil {
		writeServiceError(w, requestLogger(r, h.log), err, "Transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// Delete handles DELETE /delete-transaction/{id}
func (h *TransactionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.ledger.DeleteTransaction(r.Context(), id); err != nil {
		writeServiceError(w, requestLogger(r, h.log), err, "Transaction")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Summary handles GET /summary
func (h *TransactionsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.ledger.Summary(r.Context())
	if err != nil {
		writeServiceError(w, requestLogger(r, h.log), err, "Summary")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, sum)
}
