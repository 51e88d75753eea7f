package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/timmy/dropcart/internal/config"
)

const (
	corsAllowHeaders = "Content-Type, Content-Length, Accept-Encoding, Authorization, Accept, Origin, Cache-Control, X-Requested-With, X-Request-ID"
	corsAllowMethods = "GET, POST, PUT, DELETE, OPTIONS"
)

// CORS returns a middleware that handles Cross-Origin Resource Sharing.
// With AllowAllOrigins every origin gets "*" and no credentials; otherwise only listed
// origins receive CORS headers.
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		switch {
		case cfg.AllowAllOrigins:
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && IsOriginAllowed(origin, cfg):
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Credentials", "true")
			c.Header("Vary", "Origin")
		default:
			c.Next()
			return
		}

		c.Header("Access-Control-Allow-Headers", corsAllowHeaders)
		c.Header("Access-Control-Allow-Methods", corsAllowMethods)
		c.Header("Access-Control-Expose-Headers", "Content-Length, "+RequestIDHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// IsOriginAllowed checks if an origin is allowed based on the configuration
func IsOriginAllowed(origin string, cfg config.CORSConfig) bool {
	if cfg.AllowAllOrigins {
		return true
	}
	for _, allowed := range cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(origin, allowed) {
			return true
		}
	}
	return false
}
