package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orienta-app/orienta/internal/services/payment"
)

// CORS applies permissive cross-origin headers and answers preflight
// requests with 200. The payment provider sends a preflight before the
// signed webhook delivery, so the signature header must be allowed.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+payment.SignatureHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}
