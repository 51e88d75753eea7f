package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/timmy/dropcart/internal/catalog"
	"github.com/timmy/dropcart/internal/logger"
	"github.com/timmy/dropcart/internal/matcher"
)

// StrategySingleVariant marks a product with one variant, resolved without matching.
const StrategySingleVariant matcher.Strategy = "single-variant"

// ErrNoVariants is returned when the supplier lists no purchasable variant.
var ErrNoVariants = errors.New("supplier product has no variants")

// Resolution is the supplier variant to order for a customer selection.
type Resolution struct {
	SupplierID string           `json:"supplier_id"`
	VariantID  string           `json:"variant_id"`
	SKU        string           `json:"sku,omitempty"`
	Strategy   matcher.Strategy `json:"strategy"`
}

// FulfillmentResolver maps a stored customer variant label to the supplier's live variant.
type FulfillmentResolver struct {
	catalog catalog.Catalog
	logger  *logger.Logger
}

// NewFulfillmentResolver creates a new FulfillmentResolver.
func NewFulfillmentResolver(cat catalog.Catalog, log *logger.Logger) *FulfillmentResolver {
	if log == nil {
		log = logger.GetDefault()
	}
	return &FulfillmentResolver{catalog: cat, logger: log}
}

// Resolve fetches the live variant list and picks the one matching label.
// A product with a single variant resolves to it directly since there is nothing to confuse
// it with. Otherwise the matcher decides, and an unconfident result is returned as a
// *matcher.UnresolvedError that must stop the order.
func (r *FulfillmentResolver) Resolve(ctx context.Context, supplierProductID, label string) (Resolution, error) {
	log := logger.FromContextOr(ctx, r.logger).WithField(logger.FieldSupplierID, supplierProductID)

	product, err := r.catalog.FetchDetail(ctx, supplierProductID)
	if err != nil {
		return Resolution{}, fmt.Errorf("failed to fetch supplier product %s: %w", supplierProductID, err)
	}

	switch len(product.Variants) {
	case 0:
		return Resolution{}, fmt.Errorf("%s: %w", supplierProductID, ErrNoVariants)
	case 1:
		v := product.Variants[0]
		return Resolution{
			SupplierID: supplierProductID,
			VariantID:  v.ID,
			SKU:        v.SKU,
			Strategy:   StrategySingleVariant,
		}, nil
	}

	res, err := matcher.Match(label, product.MatcherVariants())
	if err != nil {
		log.WithField("label", label).WithError(err).Warn("Variant unresolved, manual review required")
		return Resolution{}, err
	}
	log.WithFields(logger.Fields{
		"label":      label,
		"variant_id": res.VariantID,
		"strategy":   string(res.Strategy),
	}).Debug("Variant resolved")

	return Resolution{
		SupplierID: supplierProductID,
		VariantID:  res.VariantID,
		SKU:        res.SKU,
		Strategy:   res.Strategy,
	}, nil
}
