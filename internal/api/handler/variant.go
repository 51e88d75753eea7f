package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/dropcart/internal/matcher"
	"github.com/timmy/dropcart/internal/service"
)

// VariantHandler serves variant matching for checkout and fulfillment.
type VariantHandler struct {
	resolver *service.FulfillmentResolver
}

// NewVariantHandler creates a new variant handler.
func NewVariantHandler(resolver *service.FulfillmentResolver) *VariantHandler {
	return &VariantHandler{resolver: resolver}
}

// MatchRequest is the body of POST /api/v1/variants/match.
type MatchRequest struct {
	Label    string            `json:"label" binding:"required"`
	Variants []matcher.Variant `json:"variants" binding:"required,min=1"`
}

// ResolveRequest is the body of POST /api/v1/fulfillment/resolve.
type ResolveRequest struct {
	SupplierProductID string `json:"supplier_product_id" binding:"required"`
	Label             string `json:"label"`
}

// Match handles POST /api/v1/variants/match against a caller-supplied variant list.
func (h *VariantHandler) Match(c *gin.Context) {
	var req MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := matcher.Match(req.Label, req.Variants)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Resolve handles POST /api/v1/fulfillment/resolve against the live supplier variants.
func (h *VariantHandler) Resolve(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := h.resolver.Resolve(c.Request.Context(), req.SupplierProductID, req.Label)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
