package response

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// ContextKeyRequestID is the Gin context key for the request ID.
	ContextKeyRequestID = "request_id"
	// HeaderRequestID carries the request ID in both directions.
	HeaderRequestID = "X-Request-ID"
)

// RequestIDMiddleware tags every request with an ID that ends up in the
// response envelope, the response header and the request log line. An ID sent
// by a proxy is kept only when it is a UUID, so log lines never carry
// arbitrary client text.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := uuid.NewString()
		if given, err := uuid.Parse(c.GetHeader(HeaderRequestID)); err == nil {
			reqID = given.String()
		}
		c.Set(ContextKeyRequestID, reqID)
		c.Header(HeaderRequestID, reqID)
		c.Next()
	}
}

// GetRequestID returns the ID of the current request, or "" outside
// RequestIDMiddleware.
func GetRequestID(c *gin.Context) string {
	return c.GetString(ContextKeyRequestID)
}
