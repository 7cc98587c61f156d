package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/posekit/posestream/internal/shared/id"
)

// RequestIDKey is the gin context key holding the request identifier.
const RequestIDKey = "request_id"

// RequestIDHeader is the response header carrying the request identifier.
const RequestIDHeader = "X-Request-ID"

// RequestID assigns each request a ULID-based identifier, exposed both to
// downstream handlers and to the client for log correlation.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := string(id.NewRequestID())
		c.Set(RequestIDKey, rid)
		c.Header(RequestIDHeader, rid)
		c.Next()
	}
}
