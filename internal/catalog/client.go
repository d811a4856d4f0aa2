package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Salon-Boss/malia-pro-access/internal/domain"
	"go.uber.org/zap"
)

// Provider — граница апстрим-каталога (источник правды о товарах и коллекциях).
// creds — токен конкретного арендатора: апстрим мультитенантный, общих ключей нет.
type Provider interface {
	FetchItem(ctx context.Context, creds, itemID string) (*domain.CatalogFact, error)
	FetchCollections(ctx context.Context, creds string) ([]domain.Collection, error)
}

// HTTPProvider ходит в REST API каталога магазина.
type HTTPProvider struct {
	baseURL string
	hc      *http.Client
	logger  *zap.Logger
}

func NewHTTPProvider(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: timeout},
		logger:  logger.Named("catalog-client"),
	}
}

func (p *HTTPProvider) FetchItem(ctx context.Context, creds, itemID string) (*domain.CatalogFact, error) {
	var payload struct {
		CollectionIDs []string `json:"collection_ids"`
		ProductType   string   `json:"product_type"`
	}

	url := fmt.Sprintf("%s/items/%s", p.baseURL, itemID)
	if err := p.getJSON(ctx, creds, url, &payload); err != nil {
		return nil, err
	}

	return &domain.CatalogFact{
		ItemID:        itemID,
		CollectionIDs: payload.CollectionIDs,
		ProductType:   payload.ProductType,
		FetchedAt:     time.Now(),
	}, nil
}

func (p *HTTPProvider) FetchCollections(ctx context.Context, creds string) ([]domain.Collection, error) {
	var payload struct {
		Collections []domain.Collection `json:"collections"`
	}

	url := p.baseURL + "/collections"
	if err := p.getJSON(ctx, creds, url, &payload); err != nil {
		return nil, err
	}
	return payload.Collections, nil
}

func (p *HTTPProvider) getJSON(ctx context.Context, creds, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("catalog: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds)
	req.Header.Set("Accept", "application/json")

	resp, err := p.hc.Do(req)
	if err != nil {
		// Сетевой сбой или дедлайн — для вызывающего это Unavailable
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// ниже
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return &ThrottleError{
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Cause:      ErrUnavailable,
		}
	default:
		p.logger.Warn("unexpected upstream status", zap.Int("status", resp.StatusCode), zap.String("url", url))
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	return nil
}

func parseRetryAfter(h string) time.Duration {
	if sec, err := strconv.Atoi(h); err == nil && sec > 0 {
		return time.Duration(sec) * time.Second
	}
	return 2 * time.Second // Разумный дефолт, если заголовка нет
}
