package handler

import (
	"encoding/json"
	"net/http"

	"github.com/Salon-Boss/malia-pro-access/internal/domain"
	"github.com/Salon-Boss/malia-pro-access/internal/server/service"
)

type EventsHandler struct {
	service *service.EventService
}

func NewEventsHandler(s *service.EventService) *EventsHandler {
	return &EventsHandler{service: s}
}

// Ingest принимает уведомление апстрима об изменении каталога
// и транслирует его всем инстансам для инвалидации кэша.
// POST /v1/events/catalog
func (h *EventsHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var ev domain.ChangeEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.Publish(r.Context(), ev); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
