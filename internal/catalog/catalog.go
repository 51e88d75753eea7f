package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmy/dropcart/internal/matcher"
	"github.com/timmy/dropcart/internal/pricing"
)

// ErrNotFound is returned by FetchDetail when the supplier has no such product.
var ErrNotFound = errors.New("catalog product not found")

// UnitKind says how a unit of work queries the catalog.
type UnitKind string

const (
	UnitKeyword  UnitKind = "keyword"
	UnitCategory UnitKind = "category"
)

// Unit is one keyword or category a job pages through.
type Unit struct {
	Kind  UnitKind `json:"kind"`
	Value string   `json:"value"`
}

func (u Unit) String() string {
	return fmt.Sprintf("%s:%s", u.Kind, u.Value)
}

// Listing is a search-result row. It carries just enough to deduplicate before the
// detail fetch.
type Listing struct {
	SupplierID string  `json:"supplier_id"`
	Title      string  `json:"title"`
	Category   string  `json:"category,omitempty"`
	Cost       float64 `json:"cost"`
}

// Variant is one purchasable option of a supplier product.
type Variant struct {
	ID          string  `json:"id"`
	SKU         string  `json:"sku,omitempty"`
	Key         string  `json:"key,omitempty"`
	DisplayName string  `json:"display_name,omitempty"`
	Size        string  `json:"size,omitempty"`
	Color       string  `json:"color,omitempty"`
	Cost        float64 `json:"cost"`
	Stock       int     `json:"stock"`
}

// Product is the full supplier detail. Shipping is nil when the supplier quotes none;
// Parcel may still allow an estimate.
type Product struct {
	SupplierID string         `json:"supplier_id"`
	Title      string         `json:"title"`
	Category   string         `json:"category,omitempty"`
	Currency   string         `json:"currency,omitempty"`
	Cost       float64        `json:"cost"`
	Shipping   *float64       `json:"shipping,omitempty"`
	Parcel     pricing.Parcel `json:"parcel"`
	Variants   []Variant      `json:"variants"`
}

// MatcherVariants converts the product variants into the matcher's input shape.
func (p *Product) MatcherVariants() []matcher.Variant {
	out := make([]matcher.Variant, len(p.Variants))
	for i, v := range p.Variants {
		out[i] = matcher.Variant{
			ID:          v.ID,
			SKU:         v.SKU,
			Key:         v.Key,
			DisplayName: v.DisplayName,
			Size:        v.Size,
			Color:       v.Color,
		}
	}
	return out
}

// Catalog is the supplier catalog collaborator. Implementations may fail, throttle and paginate;
// callers treat errors from ListPage as an empty page.
type Catalog interface {
	// ListPage returns one page of search results for unit. Pages are 1-based.
	ListPage(ctx context.Context, unit Unit, page, pageSize int) ([]Listing, error)

	// FetchDetail returns the full product, or ErrNotFound.
	FetchDetail(ctx context.Context, supplierID string) (*Product, error)
}
