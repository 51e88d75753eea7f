package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/dropcart/internal/api/middleware"
	"github.com/timmy/dropcart/internal/catalog"
	"github.com/timmy/dropcart/internal/domain"
	"github.com/timmy/dropcart/internal/matcher"
	"github.com/timmy/dropcart/internal/repository"
	"github.com/timmy/dropcart/internal/service"
)

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrJobNotFound), errors.Is(err, catalog.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidJob):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrJobTerminal),
		errors.Is(err, service.ErrStepInProgress),
		errors.Is(err, repository.ErrVersionConflict):
		return http.StatusConflict
	case errors.Is(err, matcher.ErrNoMatch), errors.Is(err, service.ErrNoVariants):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error": ...}. Unresolved variant matches also carry the
// details a reviewer needs.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}

	var unresolved *matcher.UnresolvedError
	if errors.As(err, &unresolved) {
		body["unresolved"] = gin.H{
			"label":      unresolved.Label,
			"size":       unresolved.Attributes.Size,
			"color":      unresolved.Attributes.Color,
			"candidates": unresolved.Candidates,
			"reason":     unresolved.Reason,
		}
	}
	if status >= http.StatusInternalServerError {
		middleware.GetLogger(c).WithError(err).Error("Request failed")
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
}
