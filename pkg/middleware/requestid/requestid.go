package requestid

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Header carries the request id in both directions.
const Header = "X-Request-ID"

const (
	ginKey   = "request_id"
	maxInput = 64
)

type ctxKey struct{}

// Middleware reuses a well-formed inbound X-Request-ID or mints a UUID, and echoes it back.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(Header)
		if !acceptable(id) {
			id = uuid.NewString()
		}
		c.Set(ginKey, id)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), ctxKey{}, id))
		c.Writer.Header().Set(Header, id)
		c.Next()
	}
}

// Value returns the id assigned to the current gin request.
func Value(c *gin.Context) string {
	return c.GetString(ginKey)
}

// FromContext returns the id carried by a request context.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func acceptable(id string) bool {
	if id == "" || len(id) > maxInput {
		return false
	}
	for _, r := range id {
		if r < '!' || r > '~' {
			return false
		}
	}
	return true
}
