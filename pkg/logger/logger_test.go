package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/scolarite-api/pkg/middleware/requestid"
)

func TestFromContextFallbacks(t *testing.T) {
	fallback := zap.NewExample()
	assert.Same(t, fallback, FromContext(context.Background(), fallback))
	assert.NotNil(t, FromContext(context.Background(), nil))

	scoped := zap.NewNop().With(zap.String("k", "v"))
	ctx := WithContext(context.Background(), scoped)
	assert.Same(t, scoped, FromContext(ctx, fallback))
}

func TestGinMiddlewareInjectsRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	r := gin.New()
	r.Use(requestid.Middleware())
	r.Use(GinMiddleware(base))
	r.GET("/ping", func(c *gin.Context) {
		FromContext(c.Request.Context(), nil).Info("handler reached")
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "req-42")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "handler reached", entries[0].Message)
	assert.Equal(t, "req-42", entries[0].ContextMap()["request_id"])
	assert.Equal(t, "http_request", entries[1].Message)
	assert.Equal(t, int64(http.StatusNoContent), entries[1].ContextMap()["status"])
}
