package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/osick/knowledge-mcp/internal/pkg/errcode"
	"github.com/osick/knowledge-mcp/internal/pkg/response"
)

const apiKeyHeader = "X-API-Key"

// APIKeyAuth rejects requests whose X-API-Key header does not match
// the configured key. An empty configured key disables the check.
func APIKeyAuth(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" {
			c.Next()
			return
		}
		got := c.GetHeader(apiKeyHeader)
		if got == "" {
			response.Fail(c, http.StatusUnauthorized, errcode.ErrUnauthorized, "unauthorized", "missing api key")
			c.Abort()
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
			response.Fail(c, http.StatusUnauthorized, errcode.ErrUnauthorized, "unauthorized", "invalid api key")
			c.Abort()
			return
		}
		c.Next()
	}
}
