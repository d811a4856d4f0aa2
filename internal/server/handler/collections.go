package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Salon-Boss/malia-pro-access/internal/catalog"
)

// TokenSource выдает тенантский токен апстрима (реализуется policy.Store).
type TokenSource interface {
	CatalogToken(tenantID string) (string, error)
}

// CollectionsHandler отдает консоли справочник коллекций апстрима —
// оператору нужно видеть, на что ссылаться в правилах.
type CollectionsHandler struct {
	provider catalog.Provider
	tokens   TokenSource
}

func NewCollectionsHandler(provider catalog.Provider, tokens TokenSource) *CollectionsHandler {
	return &CollectionsHandler{provider: provider, tokens: tokens}
}

// List — коллекции каталога арендатора.
// GET /v1/catalog/collections?tenant=...
func (h *CollectionsHandler) List(w http.ResponseWriter, r *http.Request) {
	tenant := r.URL.Query().Get("tenant")
	if tenant == "" {
		http.Error(w, "tenant is required", http.StatusBadRequest)
		return
	}

	token, err := h.tokens.CatalogToken(tenant)
	if err != nil {
		http.Error(w, "Unknown tenant", http.StatusNotFound)
		return
	}

	cols, err := h.provider.FetchCollections(r.Context(), token)
	if err != nil {
		if errors.Is(err, catalog.ErrUnauthorized) {
			http.Error(w, "Catalog credentials rejected", http.StatusBadGateway)
			return
		}
		http.Error(w, "Catalog unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cols)
}
