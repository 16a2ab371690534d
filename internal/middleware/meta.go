package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	metaKey      = "response_meta"
	metaStartKey = "response_meta_start"
)

// WithResponseMeta stamps the request start so handlers can report processing_time_ms.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(metaStartKey, time.Now())
		c.Set(metaKey, map[string]interface{}{})
		c.Next()
	}
}

// SetMeta stores one entry of the response meta block.
func SetMeta(c *gin.Context, key string, value interface{}) {
	metaOf(c)[key] = value
}

// SetCacheHit records whether the payload was served from cache.
func SetCacheHit(c *gin.Context, hit bool) {
	SetMeta(c, "cache_hit", hit)
}

// ResponseMeta returns the collected meta. processing_time_ms is measured from WithResponseMeta
// and omitted when the middleware did not run.
func ResponseMeta(c *gin.Context) map[string]interface{} {
	meta := metaOf(c)
	if raw, ok := c.Get(metaStartKey); ok {
		if start, ok := raw.(time.Time); ok {
			meta["processing_time_ms"] = time.Since(start).Milliseconds()
		}
	}
	return meta
}

func metaOf(c *gin.Context) map[string]interface{} {
	if raw, ok := c.Get(metaKey); ok {
		if meta, ok := raw.(map[string]interface{}); ok {
			return meta
		}
	}
	meta := map[string]interface{}{}
	c.Set(metaKey, meta)
	return meta
}
