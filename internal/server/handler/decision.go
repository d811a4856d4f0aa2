package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Salon-Boss/malia-pro-access/internal/domain"
	"github.com/Salon-Boss/malia-pro-access/internal/engine"
	"github.com/Salon-Boss/malia-pro-access/internal/policy"
)

// DecisionHandler обслуживает горячий путь: чекаут, корзину и витрину.
type DecisionHandler struct {
	core     *engine.Core
	resolver *policy.Resolver
	store    *policy.Store
}

func NewDecisionHandler(core *engine.Core, resolver *policy.Resolver, store *policy.Store) *DecisionHandler {
	return &DecisionHandler{core: core, resolver: resolver, store: store}
}

type cartRequest struct {
	Tenant     string   `json:"tenant"`
	CustomerID string   `json:"customer_id,omitempty"`
	Tags       []string `json:"tags"`
	Items      []struct {
		ItemID string `json:"item_id"`
		Qty    int    `json:"qty"`
	} `json:"items"`
}

type deniedItem struct {
	ItemID  string        `json:"item_id"`
	Reason  domain.Reason `json:"reason"`
	Message string        `json:"message,omitempty"`
}

type cartResponse struct {
	Allowed     bool         `json:"allowed"`
	DeniedItems []deniedItem `json:"denied_items"`
}

// DecideCart проверяет корзину целиком.
// POST /v1/decisions/cart
func (h *DecisionHandler) DecideCart(w http.ResponseWriter, r *http.Request) {
	var req cartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Tenant == "" || len(req.Items) == 0 {
		http.Error(w, "tenant and items are required", http.StatusBadRequest)
		return
	}

	itemIDs := make([]string, 0, len(req.Items))
	for _, it := range req.Items {
		if it.ItemID == "" {
			http.Error(w, "item_id must not be empty", http.StatusBadRequest)
			return
		}
		itemIDs = append(itemIDs, it.ItemID)
	}

	batch := h.core.DecideBatch(r.Context(), req.Tenant, req.CustomerID, req.Tags, itemIDs)

	resp := cartResponse{Allowed: batch.Allowed, DeniedItems: []deniedItem{}}
	for _, d := range batch.DeniedItems() {
		resp.DeniedItems = append(resp.DeniedItems, deniedItem{
			ItemID:  d.ItemID,
			Reason:  d.Reason,
			Message: d.Message,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// ItemStatus отдает витрине требуемую ступень товара (без вердикта).
// GET /v1/items/status?tenant=...&item_id=...
func (h *DecisionHandler) ItemStatus(w http.ResponseWriter, r *http.Request) {
	tenant := r.URL.Query().Get("tenant")
	itemID := r.URL.Query().Get("item_id")
	if tenant == "" || itemID == "" {
		http.Error(w, "tenant and item_id are required", http.StatusBadRequest)
		return
	}

	req, err := h.resolver.RequiredTier(r.Context(), tenant, itemID)
	if err != nil {
		switch {
		case errors.Is(err, policy.ErrItemNotFound):
			http.Error(w, "Item not found", http.StatusNotFound)
		case errors.Is(err, policy.ErrTenantUnknown):
			http.Error(w, "Unknown tenant", http.StatusNotFound)
		default:
			http.Error(w, "Catalog unavailable", http.StatusServiceUnavailable)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"required_tier": req.Tier,
		"source":        string(req.Source),
	})
}

// CustomerTier классифицирует покупателя по тегам.
// GET /v1/customers/tier?tenant=...&customer_id=...&tags=a,b,c
func (h *DecisionHandler) CustomerTier(w http.ResponseWriter, r *http.Request) {
	tenant := r.URL.Query().Get("tenant")
	if tenant == "" {
		http.Error(w, "tenant is required", http.StatusBadRequest)
		return
	}

	var tags []string
	if raw := r.URL.Query().Get("tags"); raw != "" {
		tags = strings.Split(raw, ",")
	}

	pol, err := h.store.Get(tenant)
	if err != nil {
		http.Error(w, "Unknown tenant", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"tier": policy.HeldTier(pol, tags),
	})
}
