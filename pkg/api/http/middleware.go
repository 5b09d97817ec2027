package http

import (
	"github.com/gin-gonic/gin"
)

// userIDHeader is set by the authenticating proxy in front of this service
const userIDHeader = "X-User-ID"

// userID extracts the caller identity for token scoping. The service sits
// behind an authenticating edge; absent the header, callers share the
// anonymous identity.
func userID(c *gin.Context) string {
	if id := c.GetHeader(userIDHeader); id != "" {
		return id
	}
	return "anonymous"
}

// corsMiddleware allows browser clients on other origins to reach the API
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, X-User-ID, Cache-Control")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
