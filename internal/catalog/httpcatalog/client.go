package httpcatalog

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/timmy/dropcart/internal/catalog"
	"github.com/timmy/dropcart/internal/pricing"
)

// Options configures the supplier catalog client.
type Options struct {
	BaseURL  string
	APIKey   string
	Currency string
	Timeout  time.Duration
	// Limiter paces every upstream call. Nil means unlimited.
	Limiter *rate.Limiter
}

// Client talks to the supplier's REST catalog.
type Client struct {
	client   *resty.Client
	limiter  *rate.Limiter
	currency string
}

// NewLimiter builds a token bucket allowing perMinute calls with the given burst.
func NewLimiter(perMinute, burst int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
}

// New creates a catalog client.
// Parameters:
//   - opts: base URL, API key, request timeout and pacing.
//
// Returns:
//   - *Client: initialized client.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	currency := opts.Currency
	if currency == "" {
		currency = "USD"
	}

	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	if opts.APIKey != "" {
		client.SetAuthToken(opts.APIKey)
	}

	return &Client{
		client:   client,
		limiter:  opts.Limiter,
		currency: currency,
	}
}

type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type listData struct {
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
	Total    int          `json:"total"`
	Items    []listingDTO `json:"items"`
}

type listingDTO struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Price    float64 `json:"sell_price"`
}

type productDTO struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Category      string       `json:"category"`
	Currency      string       `json:"currency"`
	Price         float64      `json:"sell_price"`
	ShippingPrice *float64     `json:"shipping_price"`
	WeightGrams   float64      `json:"weight_grams"`
	LengthCm      float64      `json:"length_cm"`
	WidthCm       float64      `json:"width_cm"`
	HeightCm      float64      `json:"height_cm"`
	Variants      []variantDTO `json:"variants"`
}

type variantDTO struct {
	ID        string  `json:"vid"`
	SKU       string  `json:"sku"`
	Key       string  `json:"variant_key"`
	Name      string  `json:"variant_name"`
	Size      string  `json:"size"`
	Color     string  `json:"color"`
	Price     float64 `json:"sell_price"`
	Inventory int     `json:"inventory"`
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	return nil
}

// ListPage fetches one search page for a keyword or category.
// Parameters:
//   - ctx: context for cancellation and deadlines.
//   - unit: keyword or category being paged.
//   - page: 1-based page number.
//   - pageSize: requested page size.
//
// Returns:
//   - []catalog.Listing: listings on the page (may be shorter than pageSize).
//   - error: non-nil on transport failure or a non-2xx response.
func (c *Client) ListPage(ctx context.Context, unit catalog.Unit, page, pageSize int) ([]catalog.Listing, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	params := map[string]string{
		"page":      strconv.Itoa(page),
		"page_size": strconv.Itoa(pageSize),
	}
	switch unit.Kind {
	case catalog.UnitKeyword:
		params["keyword"] = unit.Value
	case catalog.UnitCategory:
		params["category_id"] = unit.Value
	default:
		return nil, fmt.Errorf("unsupported unit kind %q", unit.Kind)
	}

	var resp envelope[listData]
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&resp).
		Get("/products")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s page %d: %w", unit, page, err)
	}
	if httpResp.IsError() {
		return nil, fmt.Errorf("catalog list returned HTTP %d: %s", httpResp.StatusCode(), string(httpResp.Body()))
	}
	if !resp.Success {
		return nil, fmt.Errorf("catalog list failed: %s", resp.Message)
	}

	listings := make([]catalog.Listing, 0, len(resp.Data.Items))
	for _, it := range resp.Data.Items {
		if it.ID == "" {
			continue
		}
		listings = append(listings, catalog.Listing{
			SupplierID: it.ID,
			Title:      it.Name,
			Category:   it.Category,
			Cost:       it.Price,
		})
	}
	return listings, nil
}

// FetchDetail fetches a product with its variants.
func (c *Client) FetchDetail(ctx context.Context, supplierID string) (*catalog.Product, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	var resp envelope[productDTO]
	httpResp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", supplierID).
		SetResult(&resp).
		Get("/products/{id}")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch product %s: %w", supplierID, err)
	}
	if httpResp.StatusCode() == http.StatusNotFound {
		return nil, catalog.ErrNotFound
	}
	if httpResp.IsError() {
		return nil, fmt.Errorf("catalog detail returned HTTP %d: %s", httpResp.StatusCode(), string(httpResp.Body()))
	}
	if !resp.Success {
		return nil, fmt.Errorf("catalog detail failed: %s", resp.Message)
	}

	return c.toProduct(resp.Data), nil
}

func (c *Client) toProduct(d productDTO) *catalog.Product {
	currency := d.Currency
	if currency == "" {
		currency = c.currency
	}
	p := &catalog.Product{
		SupplierID: d.ID,
		Title:      d.Name,
		Category:   d.Category,
		Currency:   currency,
		Cost:       d.Price,
		Shipping:   d.ShippingPrice,
		Parcel: pricing.Parcel{
			WeightGrams: d.WeightGrams,
			LengthCm:    d.LengthCm,
			WidthCm:     d.WidthCm,
			HeightCm:    d.HeightCm,
		},
		Variants: make([]catalog.Variant, 0, len(d.Variants)),
	}
	for _, v := range d.Variants {
		cost := v.Price
		if cost <= 0 {
			cost = d.Price
		}
		p.Variants = append(p.Variants, catalog.Variant{
			ID:          v.ID,
			SKU:         v.SKU,
			Key:         v.Key,
			DisplayName: v.Name,
			Size:        v.Size,
			Color:       v.Color,
			Cost:        cost,
			Stock:       v.Inventory,
		})
	}
	return p
}
