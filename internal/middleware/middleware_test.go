package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/scolarite-api/internal/models"
	appErrors "github.com/noah-isme/scolarite-api/pkg/errors"
)

type stubValidator struct {
	claims *models.JWTClaims
	seen   string
}

func (s *stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	s.seen = token
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return s.claims, nil
}

func newRouter(validator TokenValidator, roles ...models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(WithResponseMeta())
	r.GET("/protected", JWT(validator), RequireRoles(roles...), func(c *gin.Context) {
		SetCacheHit(c, true)
		c.JSON(http.StatusOK, gin.H{"meta": ResponseMeta(c)})
	})
	return r
}

func serve(r *gin.Engine, header string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	r.ServeHTTP(rec, req)
	return rec
}

func TestJWTRejectsMissingOrMalformedHeader(t *testing.T) {
	validator := &stubValidator{}
	r := newRouter(validator, models.RoleStaff)

	assert.Equal(t, http.StatusUnauthorized, serve(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Token good").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Bearer bad").Code)
	assert.Equal(t, "bad", validator.seen)
}

func TestRequireRolesChecksRole(t *testing.T) {
	validator := &stubValidator{claims: &models.JWTClaims{UserID: "u1", Role: models.RoleStudent}}

	rec := serve(newRouter(validator, models.RoleStaff), "Bearer good")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(newRouter(validator, models.RoleStudent, models.RoleStaff), "bearer good")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body.Meta["cache_hit"])
	assert.Contains(t, body.Meta, "processing_time_ms")
}

func TestResponseMetaWithoutMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	SetMeta(c, "source", "db")
	meta := ResponseMeta(c)
	assert.Equal(t, map[string]interface{}{"source": "db"}, meta)
}

func TestOptionalJWTNeverBlocks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	validator := &stubValidator{claims: &models.JWTClaims{UserID: "u1", Role: models.RoleStaff}}
	r := gin.New()
	r.GET("/open", OptionalJWT(validator), func(c *gin.Context) {
		_, attached := c.Get(ContextUserKey)
		c.JSON(http.StatusOK, gin.H{"attached": attached})
	})

	for header, want := range map[string]string{"": `{"attached":false}`, "Bearer bad": `{"attached":false}`, "Bearer good": `{"attached":true}`} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/open", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, want, rec.Body.String())
	}
}

type recordingObserver struct {
	routes   []string
	statuses []int
}

func (r *recordingObserver) ObserveHTTPRequest(_ string, path string, status int, _ time.Duration) {
	r.routes = append(r.routes, path)
	r.statuses = append(r.statuses, status)
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &recordingObserver{}
	r := gin.New()
	r.Use(Metrics(observer))
	r.GET("/requests/:type/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/requests/releve/12", "/nope"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	assert.Equal(t, []string{"/requests/:type/:id", "unmatched"}, observer.routes)
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNotFound}, observer.statuses)
}
