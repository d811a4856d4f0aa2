package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Salon-Boss/malia-pro-access/internal/domain"
	"github.com/Salon-Boss/malia-pro-access/internal/policy"
	"github.com/Salon-Boss/malia-pro-access/internal/server/service"
	"github.com/go-chi/chi/v5"
)

type OverrideHandler struct {
	service *service.PolicyService
}

func NewOverrideHandler(s *service.PolicyService) *OverrideHandler {
	return &OverrideHandler{service: s}
}

// List возвращает все override'ы арендатора.
// GET /v1/policies/{tenant}/overrides
func (h *OverrideHandler) List(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")
	overrides, err := h.service.ListOverrides(r.Context(), tenant)
	if err != nil {
		http.Error(w, "Failed to fetch overrides", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(overrides)
}

// Upsert идемпотентно выставляет требование ступени для товара.
// Повторный PUT с другим значением оставляет одну запись с последним значением.
// PUT /v1/policies/{tenant}/overrides/{itemID}
func (h *OverrideHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TierName string `json:"tier_name"`
		Message  string `json:"message,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.TierName == "" {
		http.Error(w, "tier_name is required", http.StatusBadRequest)
		return
	}

	o := domain.ItemOverride{
		TenantID: chi.URLParam(r, "tenant"),
		ItemID:   chi.URLParam(r, "itemID"),
		TierName: body.TierName,
		Message:  body.Message,
	}

	if err := h.service.UpsertOverride(r.Context(), &o); err != nil {
		if errors.Is(err, policy.ErrMisconfigured) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete снимает override — товар возвращается под правила коллекций/дефолт.
// DELETE /v1/policies/{tenant}/overrides/{itemID}
func (h *OverrideHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")
	itemID := chi.URLParam(r, "itemID")

	if err := h.service.DeleteOverride(r.Context(), tenant, itemID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
