package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHTTPProvider_FetchItem(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer shpat_test", r.Header.Get("Authorization"))
		assert.Equal(t, "/items/item-1", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"collection_ids": ["members-only", "new-arrivals"], "product_type": "apparel"}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, time.Second, zap.NewNop())
	fact, err := p.FetchItem(context.Background(), "shpat_test", "item-1")
	require.NoError(t, err)

	assert.Equal(t, "item-1", fact.ItemID)
	assert.Equal(t, []string{"members-only", "new-arrivals"}, fact.CollectionIDs)
	assert.Equal(t, "apparel", fact.ProductType)
	assert.False(t, fact.FetchedAt.IsZero())
}

func TestHTTPProvider_StatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"404 maps to not found", http.StatusNotFound, ErrNotFound},
		{"401 maps to unauthorized", http.StatusUnauthorized, ErrUnauthorized},
		{"403 maps to unauthorized", http.StatusForbidden, ErrUnauthorized},
		{"500 maps to unavailable", http.StatusInternalServerError, ErrUnavailable},
		{"502 maps to unavailable", http.StatusBadGateway, ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			p := NewHTTPProvider(srv.URL, time.Second, zap.NewNop())
			_, err := p.FetchItem(context.Background(), "shpat_test", "item-1")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHTTPProvider_ThrottleCarriesRetryAfter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, time.Second, zap.NewNop())
	_, err := p.FetchItem(context.Background(), "shpat_test", "item-1")

	var throttle *ThrottleError
	require.True(t, errors.As(err, &throttle))
	assert.Equal(t, 7*time.Second, throttle.RetryAfter)
}

func TestHTTPProvider_NetworkFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // Сервер уже мертв

	p := NewHTTPProvider(srv.URL, time.Second, zap.NewNop())
	_, err := p.FetchItem(context.Background(), "shpat_test", "item-1")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPProvider_FetchCollections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections", r.URL.Path)
		w.Write([]byte(`{"collections": [{"id": "c1", "handle": "members-only", "title": "Members Only"}]}`))
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, time.Second, zap.NewNop())
	cols, err := p.FetchCollections(context.Background(), "shpat_test")
	require.NoError(t, err)
	require.Len(t, cols, 1)
	assert.Equal(t, "members-only", cols[0].Handle)
}
