package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/dvloznov/budget-tracker/internal/api/middleware"
	"github.com/dvloznov/budget-tracker/internal/ledger"
)

// BudgetsHandler handles budget endpoints.
type BudgetsHandler struct {
	ledger *ledger.Ledger
	log    zerolog.Logger
}

// NewBudgetsHandler creates a new budgets handler.
func NewBudgetsHandler(l *ledger.Ledger, log zerolog.Logger) *BudgetsHandler {
	return &BudgetsHandler{ledger: l, log: log}
}

// List handles GET /budgets
func (h *BudgetsHandler) List(w http.ResponseWriter, r *http.Request) {
	views, err := h.ledger.ListBudgets(r.Context())
	if err != nil {
		writeServiceError(w, requestLogger(r, h.log), err, "Budget")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, views)
}

// Add handles POST /add-budget
func (h *BudgetsHandler) Add(w http.ResponseWriter, r *http.Request) {
	f, ok := decodeFields(w, r)
	if !ok {
		return
	}
	if _, err := h.ledger.AddBudget(r.Context(), f); err != nil {
		writeServiceError(w, requestLogger(r, h.log), err, "Budget")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// Update handles PUT /update-budget
func (h *BudgetsHandler) Update(w http.ResponseWriter, r *http.Request) {
	f, ok := decodeFields(w, r)
	if !ok {
		return
	}
	if _, err := h.ledger.UpdateBudget(r.Context(), f); err != nil {
		writeServiceError(w, requestLogger(r, h.log), err, "Budget")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// Delete handles DELETE /delete-budget/{id}
func (h *BudgetsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.DeleteBudget(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeServiceError(w, requestLogger(r, h.log), err, "Budget")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
