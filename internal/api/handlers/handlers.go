// Package handlers implements the JSON endpoints of the budget tracker API.
package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/api/middleware"
	"github.com/dvloznov/budget-tracker/internal/domain"
	"github.com/dvloznov/budget-tracker/internal/importer"
	"github.com/dvloznov/budget-tracker/internal/jobs"
	"github.com/dvloznov/budget-tracker/internal/ledger"
	"github.com/dvloznov/budget-tracker/internal/logger"
	"github.com/dvloznov/budget-tracker/internal/predictor"
)

// maxBodyBytes caps JSON bodies and CSV uploads.
const maxBodyBytes = 32 << 20

// requestLogger prefers the request-scoped logger set by middleware.Logger.
func requestLogger(r *http.Request, fallback zerolog.Logger) zerolog.Logger {
	if l := logger.FromContext(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return fallback
}

// decodeFields reads a JSON object body.
func decodeFields(w http.ResponseWriter, r *http.Request) (ledger.Fields, bool) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	f, err := ledger.DecodeFields(data)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return nil, false
	}
	return f, true
}

// writeServiceError maps service errors onto HTTP statuses. entity names the
// record kind in client-facing messages.
func writeServiceError(w http.ResponseWriter, log zerolog.Logger, err error, entity string) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		if verr.Field == "_id" && verr.Reason == "" {
			middleware.WriteError(w, http.StatusBadRequest, entity+" ID required")
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, domain.ErrInvalidID):
		middleware.WriteError(w, http.StatusBadRequest, "Invalid "+entity+" ID")
	case errors.Is(err, domain.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, entity+" not found")
	case errors.Is(err, importer.ErrMalformedCSV):
		middleware.WriteError(w, http.StatusBadRequest, "Malformed CSV file")
	case errors.Is(err, predictor.ErrArtifactNotFound):
		middleware.WriteError(w, http.StatusNotFound, "Model not trained")
	case errors.Is(err, predictor.ErrUnknownCategory):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, jobs.ErrJobNotFound):
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
	default:
		log.Error().Err(err).Str("entity", entity).Msg("Request failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// HealthHandler serves the liveness endpoints.
type HealthHandler struct {
	now func() time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{now: time.Now}
}

// Root handles GET /
func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "Backend running"})
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   h.now().UTC().Format(time.RFC3339),
	})
}

