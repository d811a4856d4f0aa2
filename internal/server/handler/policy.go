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

type PolicyHandler struct {
	service *service.PolicyService
}

func NewPolicyHandler(s *service.PolicyService) *PolicyHandler {
	return &PolicyHandler{service: s}
}

// Get возвращает полный документ политики арендатора.
// GET /v1/policies/{tenant}
func (h *PolicyHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")
	if tenant == "" {
		http.Error(w, "Tenant is required", http.StatusBadRequest)
		return
	}

	pol, err := h.service.GetPolicy(r.Context(), tenant)
	if err != nil {
		http.Error(w, "Failed to retrieve policy: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(pol); err != nil {
		http.Error(w, "Encoding error", http.StatusInternalServerError)
	}
}

// Update подменяет документ политики целиком (ступени, правила, дефолт).
// PUT /v1/policies/{tenant}
func (h *PolicyHandler) Update(w http.ResponseWriter, r *http.Request) {
	tenant := chi.URLParam(r, "tenant")
	var p domain.TenantPolicy
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	p.TenantID = tenant

	if err := h.service.ReplacePolicy(r.Context(), &p); err != nil {
		// Дефект конфигурации поднимаем как 422, а не глотаем дефолтом
		if errors.Is(err, policy.ErrMisconfigured) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
