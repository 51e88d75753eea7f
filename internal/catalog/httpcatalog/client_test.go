package httpcatalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/timmy/dropcart/internal/catalog"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/products", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "bad key"})
			return
		}
		q := r.URL.Query()
		if q.Get("keyword") == "broken" {
			writeJSON(w, http.StatusBadGateway, map[string]any{"success": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"items": []map[string]any{
					{"id": "p1", "name": "Hoodie " + q.Get("keyword") + q.Get("category_id"), "sell_price": 12.5},
					{"id": "", "name": "missing id"},
					{"id": "p2", "name": "Cap", "sell_price": 4},
				},
			},
		})
	})
	mux.HandleFunc("/products/p1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"id":           "p1",
				"name":         "Hoodie",
				"category":     "apparel",
				"sell_price":   12.5,
				"weight_grams": 450,
				"variants": []map[string]any{
					{"vid": "v1", "sku": "HD-BLK-XL", "variant_key": "Black-XL", "sell_price": 13, "inventory": 7},
					{"vid": "v2", "sku": "HD-RED-M", "variant_key": "Red-M", "inventory": 2},
				},
			},
		})
	})
	mux.HandleFunc("/products/missing", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "not found"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_ListPage(t *testing.T) {
	srv := newTestServer(t)
	c := New(Options{BaseURL: srv.URL, APIKey: "secret", Timeout: 5 * time.Second})

	got, err := c.ListPage(context.Background(), catalog.Unit{Kind: catalog.UnitKeyword, Value: "fleece"}, 1, 20)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].SupplierID)
	assert.Equal(t, "Hoodie fleece", got[0].Title)
	assert.Equal(t, 12.5, got[0].Cost)

	got, err = c.ListPage(context.Background(), catalog.Unit{Kind: catalog.UnitCategory, Value: "c-9"}, 2, 20)
	require.NoError(t, err)
	assert.Equal(t, "Hoodie c-9", got[0].Title)
}

func TestClient_ListPageErrors(t *testing.T) {
	srv := newTestServer(t)

	c := New(Options{BaseURL: srv.URL, APIKey: "wrong"})
	_, err := c.ListPage(context.Background(), catalog.Unit{Kind: catalog.UnitKeyword, Value: "x"}, 1, 20)
	assert.Error(t, err)

	c = New(Options{BaseURL: srv.URL, APIKey: "secret"})
	_, err = c.ListPage(context.Background(), catalog.Unit{Kind: catalog.UnitKeyword, Value: "broken"}, 1, 20)
	assert.Error(t, err)

	_, err = c.ListPage(context.Background(), catalog.Unit{Kind: "brand", Value: "x"}, 1, 20)
	assert.Error(t, err)
}

func TestClient_FetchDetail(t *testing.T) {
	srv := newTestServer(t)
	c := New(Options{BaseURL: srv.URL, APIKey: "secret"})

	p, err := c.FetchDetail(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "USD", p.Currency)
	assert.Nil(t, p.Shipping)
	assert.Equal(t, 450.0, p.Parcel.WeightGrams)
	require.Len(t, p.Variants, 2)
	assert.Equal(t, 13.0, p.Variants[0].Cost)
	// variants without their own price inherit the product price
	assert.Equal(t, 12.5, p.Variants[1].Cost)
	assert.Equal(t, "Red-M", p.MatcherVariants()[1].Key)

	_, err = c.FetchDetail(context.Background(), "missing")
	assert.True(t, errors.Is(err, catalog.ErrNotFound))
}

func TestClient_LimiterHonoursContext(t *testing.T) {
	srv := newTestServer(t)
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	c := New(Options{BaseURL: srv.URL, APIKey: "secret", Limiter: limiter})

	_, err := c.ListPage(context.Background(), catalog.Unit{Kind: catalog.UnitKeyword, Value: "a"}, 1, 20)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.ListPage(ctx, catalog.Unit{Kind: catalog.UnitKeyword, Value: "a"}, 2, 20)
	assert.Error(t, err)
}

func TestNewLimiter(t *testing.T) {
	assert.Equal(t, rate.Inf, NewLimiter(0, 0).Limit())
	l := NewLimiter(60, 0)
	assert.Equal(t, 1, l.Burst())
	assert.InDelta(t, 1.0, float64(l.Limit()), 1e-9)
}
