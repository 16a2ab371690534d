package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func serve(allowed []string, method, origin string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(allowed))
	r.GET("/requests/unified/export", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(method, "/requests/unified/export", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAllowedOriginGetsCredentials(t *testing.T) {
	rec := serve([]string{"https://scolarite.ecole.com/"}, http.MethodGet, "https://Scolarite.ecole.com")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://Scolarite.ecole.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
}

func TestUnknownOriginIsNotEchoed(t *testing.T) {
	rec := serve([]string{"https://scolarite.ecole.com"}, http.MethodGet, "https://evil.example")

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestOpenModeNeverSendsCredentials(t *testing.T) {
	rec := serve(nil, http.MethodGet, "https://anything.example")

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestPreflightShortCircuits(t *testing.T) {
	rec := serve(nil, http.MethodOptions, "https://anything.example")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "GET, POST, PATCH, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
}
