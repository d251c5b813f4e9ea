// Package api assembles the HTTP router.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/api/handlers"
	"github.com/dvloznov/budget-tracker/internal/api/middleware"
	"github.com/dvloznov/budget-tracker/internal/importer"
	"github.com/dvloznov/budget-tracker/internal/jobs"
	"github.com/dvloznov/budget-tracker/internal/ledger"
	"github.com/dvloznov/budget-tracker/internal/predictor"
)

// Deps are the services behind the router. Publisher and JobStore may be nil,
// which disables async training and the job endpoints.
type Deps struct {
	Ledger      *ledger.Ledger
	Importer    *importer.Importer
	Predictor   *predictor.Predictor
	Publisher   jobs.Publisher
	JobStore    jobs.JobStore
	AutoRetrain bool
	Log         zerolog.Logger
}

// NewRouter returns the API handler with the middleware chain applied.
func NewRouter(d Deps) http.Handler {
	health := handlers.NewHealthHandler()
	txns := handlers.NewTransactionsHandler(d.Ledger, d.Importer, d.Publisher, d.AutoRetrain, d.Log)
	budgets := handlers.NewBudgetsHandler(d.Ledger, d.Log)
	model := handlers.NewModelHandler(d.Predictor, d.Publisher, d.Log)

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.HandleFunc("/", health.Root).Methods(http.MethodGet)
	r.HandleFunc("/health", health.Health).Methods(http.MethodGet)

	r.HandleFunc("/upload-transactions", txns.Upload).Methods(http.MethodPost)
	r.HandleFunc("/transactions", txns.List).Methods(http.MethodGet)
	r.HandleFunc("/transactions/export", txns.Export).Methods(http.MethodGet)
	r.HandleFunc("/add-transaction", txns.Add).Methods(http.MethodPost)
	r.HandleFunc("/update-transaction", txns.Update).Methods(http.MethodPut)
	r.HandleFunc("/delete-transaction/{id}", txns.Delete).Methods(http.MethodDelete)
	r.HandleFunc("/summary", txns.Summary).Methods(http.MethodGet)

	r.HandleFunc("/budgets", budgets.List).Methods(http.MethodGet)
	r.HandleFunc("/add-budget", budgets.Add).Methods(http.MethodPost)
	r.HandleFunc("/update-budget", budgets.Update).Methods(http.MethodPut)
	r.HandleFunc("/delete-budget/{id}", budgets.Delete).Methods(http.MethodDelete)

	r.HandleFunc("/train-model", model.Train).Methods(http.MethodPost)
	r.HandleFunc("/predict", model.Predict).Methods(http.MethodPost)

	if d.JobStore != nil {
		jobsHandler := handlers.NewJobsHandler(d.JobStore, d.Log)
		r.HandleFunc("/jobs", jobsHandler.ListJobs).Methods(http.MethodGet)
		r.HandleFunc("/jobs/{id}", jobsHandler.GetJob).Methods(http.MethodGet)
	}

	return middleware.Recovery(d.Log)(
		middleware.RequestID(
			middleware.Logger(d.Log)(
				middleware.CORS(r),
			),
		),
	)
}
