package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/api/middleware"
	"github.com/dvloznov/budget-tracker/internal/importer"
	"github.com/dvloznov/budget-tracker/internal/jobs"
	"github.com/dvloznov/budget-tracker/internal/predictor"
)

// ModelHandler serves training and prediction.
type ModelHandler struct {
	predictor *predictor.Predictor
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewModelHandler creates a new model handler. publisher may be nil, in
// which case async training requests run synchronously.
func NewModelHandler(p *predictor.Predictor, publisher jobs.Publisher, log zerolog.Logger) *ModelHandler {
	return &ModelHandler{predictor: p, publisher: publisher, log: log}
}

// Train handles POST /train-model
func (h *ModelHandler) Train(w http.ResponseWriter, r *http.Request) {
	log := requestLogger(r, h.log)

	if importer.ParseBool(r.URL.Query().Get("async")) && h.publisher != nil {
		job := &jobs.TrainModelJob{Trigger: jobs.TriggerAPI}
		if err := h.publisher.PublishTrainModel(r.Context(), job); err != nil {
			log.Error().Err(err).Msg("Failed to enqueue train job")
			middleware.WriteError(w, http.StatusServiceUnavailable, "Failed to enqueue training job")
			return
		}
		middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
			"job_id": job.JobID,
			"status": string(job.Status),
		})
		return
	}

	_, err := h.predictor.Train(r.Context())
	if errors.Is(err, predictor.ErrNoData) {
		// Legacy clients expect 200 here.
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"error": "No data in database"})
		return
	}
	if err != nil {
		writeServiceError(w, log, err, "Model")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"message": "Model trained successfully!"})
}

// Predict handles POST /predict
func (h *ModelHandler) Predict(w http.ResponseWriter, r *http.Request) {
	f, err := parseFeatures(r.URL.Query())
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	amount, err := h.predictor.Predict(r.Context(), f)
	if err != nil {
		writeServiceError(w, requestLogger(r, h.log), err, "Model")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]float64{"predicted_amount": amount})
}

// parseFeatures reads the predict query. category is accepted as an alias of
// category_type. is_weekend defaults to what day_of_week implies.
func parseFeatures(q url.Values) (predictor.Features, error) {
	category := strings.TrimSpace(q.Get("category_type"))
	if category == "" {
		category = strings.TrimSpace(q.Get("category"))
	}
	if category == "" {
		return predictor.Features{}, errors.New("category_type is required")
	}

	dow, err := intParam(q, "day_of_week", 0, 6)
	if err != nil {
		return predictor.Features{}, err
	}
	month, err := intParam(q, "month", 1, 12)
	if err != nil {
		return predictor.Features{}, err
	}

	f := predictor.Features{
		Category:   category,
		DayOfWeek:  dow,
		Month:      month,
		IsWeekend:  dow >= 5,
		IsFestival: importer.ParseBool(q.Get("is_festival")),
	}
	if q.Has("is_weekend") {
		f.IsWeekend = importer.ParseBool(q.Get("is_weekend"))
	}
	return f, nil
}

func intParam(q url.Values, name string, min, max int) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min || n > max {
		return 0, fmt.Errorf("%s must be an integer between %d and %d", name, min, max)
	}
	return n, nil
}
