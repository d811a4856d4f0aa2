package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/Salon-Boss/malia-pro-access/internal/server/service"
)

type AnalyticsHandler struct {
	service *service.AnalyticsService
}

func NewAnalyticsHandler(s *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{service: s}
}

// ReasonCounts — агрегаты решений по кодам причин.
// GET /v1/analytics?tenant=...&days=7
func (h *AnalyticsHandler) ReasonCounts(w http.ResponseWriter, r *http.Request) {
	tenant := r.URL.Query().Get("tenant")
	if tenant == "" {
		http.Error(w, "tenant is required", http.StatusBadRequest)
		return
	}

	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	if days == 0 {
		days = 7
	}

	counts, err := h.service.ReasonCounts(r.Context(), tenant, days)
	if err != nil {
		http.Error(w, "Failed to fetch analytics", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(counts)
}
