package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/dropcart/internal/domain"
	"github.com/timmy/dropcart/internal/pricing"
	"github.com/timmy/dropcart/internal/repository"
)

// PricingHandler quotes retail prices and manages pricing rules.
type PricingHandler struct {
	rules  *repository.PricingRuleRepository
	engine *pricing.Engine
}

// NewPricingHandler creates a new pricing handler.
// Parameters:
//   - rules: pricing rule repository.
//   - engine: pricing engine; nil uses pricing.DefaultEngine.
// Returns:
//   - *PricingHandler: initialized handler.
func NewPricingHandler(rules *repository.PricingRuleRepository, engine *pricing.Engine) *PricingHandler {
	if engine == nil {
		engine = pricing.DefaultEngine()
	}
	return &PricingHandler{rules: rules, engine: engine}
}

// QuoteRequest is the body of POST /api/v1/pricing/quote.
// Shipping wins over Parcel; with neither the engine default applies.
type QuoteRequest struct {
	Cost     float64         `json:"cost" binding:"gte=0"`
	Shipping *float64        `json:"shipping" binding:"omitempty,gte=0"`
	Category string          `json:"category"`
	Parcel   *pricing.Parcel `json:"parcel"`
}

// QuoteResponse wraps a quote with the shipping actually charged.
type QuoteResponse struct {
	pricing.Quote
	ShippingForeign float64 `json:"shipping_foreign"`
	Warning         string  `json:"warning,omitempty"`
}

// Quote handles POST /api/v1/pricing/quote.
func (h *PricingHandler) Quote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	rules, err := h.rules.RuleSet(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	shipping := req.Shipping
	if shipping == nil && req.Parcel != nil {
		if est, ok := h.engine.EstimateShipping(*req.Parcel); ok {
			shipping = &est
		}
	}
	charged := h.engine.DefaultShipping
	if shipping != nil {
		charged = *shipping
	}

	q, err := h.engine.ComputeRetail(req.Cost, shipping, req.Category, rules)
	resp := QuoteResponse{Quote: q, ShippingForeign: charged}
	if errors.Is(err, pricing.ErrFloorUnreachable) {
		resp.Warning = err.Error()
		c.JSON(http.StatusUnprocessableEntity, resp)
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListRules handles GET /api/v1/pricing/rules.
func (h *PricingHandler) ListRules(c *gin.Context) {
	rules, err := h.rules.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules, "builtin": pricing.BuiltinRule})
}

// UpsertRule handles PUT /api/v1/pricing/rules.
func (h *PricingHandler) UpsertRule(c *gin.Context) {
	var rule domain.PricingRule
	if err := c.ShouldBindJSON(&rule); err != nil {
		badRequest(c, err)
		return
	}
	if rule.Scope != domain.RuleScopeCategory && rule.Scope != domain.RuleScopeDefault {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scope must be category or default"})
		return
	}
	if rule.Scope == domain.RuleScopeCategory && rule.Category == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "category rule requires a category"})
		return
	}
	rule.ID = 0
	if err := h.rules.Upsert(c.Request.Context(), &rule); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}
