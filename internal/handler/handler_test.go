package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/scolarite-api/internal/dto"
	"github.com/noah-isme/scolarite-api/internal/middleware"
	"github.com/noah-isme/scolarite-api/internal/models"
	"github.com/noah-isme/scolarite-api/internal/service"
	appErrors "github.com/noah-isme/scolarite-api/pkg/errors"
)

type responseEnvelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *appErrors.Error       `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) responseEnvelope {
	t.Helper()
	var env responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func newContext(method, target, body string, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	c.Request = httptest.NewRequest(method, target, reader)
	c.Request.Header.Set("Content-Type", "application/json")
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, rec
}

type fakeRequestSrv struct {
	transcript  dto.CreateTranscriptRequest
	attestation dto.CreateAttestationRequest
	kind        string
	id          int64
	err         error
}

func (f *fakeRequestSrv) CreateTranscript(_ context.Context, _ *models.JWTClaims, req dto.CreateTranscriptRequest) (*models.UnifiedRecord, error) {
	f.transcript = req
	return &models.UnifiedRecord{Number: "R-0001", Kind: models.KindTranscript}, f.err
}

func (f *fakeRequestSrv) CreateCertificate(context.Context, *models.JWTClaims, dto.CreateCertificateRequest) (*models.UnifiedRecord, error) {
	return &models.UnifiedRecord{Number: "CERT-0001"}, f.err
}

func (f *fakeRequestSrv) CreateAttestation(_ context.Context, _ *models.JWTClaims, req dto.CreateAttestationRequest) (*models.UnifiedRecord, error) {
	f.attestation = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.UnifiedRecord{Number: "A-0001"}, nil
}

func (f *fakeRequestSrv) ListMine(_ context.Context, _ *models.JWTClaims, kind string) ([]models.UnifiedRecord, error) {
	f.kind = kind
	return []models.UnifiedRecord{{Number: "R-0002"}, {Number: "R-0001"}}, f.err
}

func (f *fakeRequestSrv) Get(_ context.Context, _ *models.JWTClaims, kind string, id int64) (*models.RequestDetail, error) {
	f.kind, f.id = kind, id
	if f.err != nil {
		return nil, f.err
	}
	return &models.RequestDetail{UnifiedRecord: models.UnifiedRecord{ID: id, Number: "CERT-0003"}}, nil
}

func TestRequestHandlerCreateTranscript(t *testing.T) {
	srv := &fakeRequestSrv{}
	h := NewRequestHandler(srv)
	c, rec := newContext(http.MethodPost, "/requests/releve", `{"demandes":[{"niveau":"l1","quantite":"2"}],"annee_universitaire":[{"2024":""}]}`, &models.JWTClaims{Role: models.RoleStudent})
	c.Params = gin.Params{{Key: "type", Value: "releve"}}

	h.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 2, srv.transcript.Levels[0].Quantity.Value)
	assert.Equal(t, "2024", srv.transcript.Years[0].Value)
	assert.Contains(t, string(decode(t, rec).Data), `"numero":"R-0001"`)
}

func TestRequestHandlerCreateErrors(t *testing.T) {
	h := NewRequestHandler(&fakeRequestSrv{})
	c, rec := newContext(http.MethodPost, "/requests/diplome", `{}`, nil)
	c.Params = gin.Params{{Key: "type", Value: "diplome"}}
	h.Create(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec).Error.Fields, "type")

	c, rec = newContext(http.MethodPost, "/requests/attestation", `{"type_attestation":`, nil)
	c.Params = gin.Params{{Key: "type", Value: "attestation"}}
	h.Create(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	srv := &fakeRequestSrv{err: appErrors.WithFields("invalid attestation request", map[string]string{"annee_scolaire": "academic year is not allowed"})}
	h = NewRequestHandler(srv)
	c, rec = newContext(http.MethodPost, "/requests/attestation", `{"type_attestation":"langue","annee_scolaire":"2023-2024"}`, nil)
	c.Params = gin.Params{{Key: "type", Value: "attestation"}}
	h.Create(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "langue", srv.attestation.Type)
	assert.Contains(t, decode(t, rec).Error.Fields, "annee_scolaire")
}

func TestRequestHandlerGetParsesID(t *testing.T) {
	srv := &fakeRequestSrv{}
	h := NewRequestHandler(srv)

	c, rec := newContext(http.MethodGet, "/requests/certificat/abc", "", nil)
	c.Params = gin.Params{{Key: "type", Value: "certificat"}, {Key: "id", Value: "abc"}}
	h.Get(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newContext(http.MethodGet, "/requests/certificat/3", "", nil)
	c.Params = gin.Params{{Key: "type", Value: "certificat"}, {Key: "id", Value: "3"}}
	h.Get(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(3), srv.id)

	srv.err = appErrors.Clone(appErrors.ErrForbidden, "this request belongs to another student")
	c, rec = newContext(http.MethodGet, "/requests/certificat/3", "", nil)
	c.Params = gin.Params{{Key: "type", Value: "certificat"}, {Key: "id", Value: "3"}}
	h.Get(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequestHandlerMine(t *testing.T) {
	srv := &fakeRequestSrv{}
	h := NewRequestHandler(srv)
	c, rec := newContext(http.MethodGet, "/requests/attestation/mine", "", nil)
	c.Params = gin.Params{{Key: "type", Value: "attestation"}}

	h.Mine(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "attestation", srv.kind)
	var records []models.UnifiedRecord
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &records))
	assert.Len(t, records, 2)
}

type fakeUnifiedSrv struct {
	query   dto.UnifiedQuery
	listing *models.UnifiedListing
	search  string
	err     error
}

func (f *fakeUnifiedSrv) List(_ context.Context, query dto.UnifiedQuery) (*models.UnifiedListing, error) {
	f.query = query
	return f.listing, f.err
}

func (f *fakeUnifiedSrv) SearchByNumber(_ context.Context, number string) (*models.SearchResult, error) {
	f.search = number
	if f.err != nil {
		return nil, f.err
	}
	return &models.SearchResult{Query: number, Total: 1}, nil
}

type fakeTransitionSrv struct {
	req   dto.ChangeStatusRequest
	actor *models.JWTClaims
	err   error
}

func (f *fakeTransitionSrv) ChangeStatus(_ context.Context, req dto.ChangeStatusRequest, actor *models.JWTClaims) (*dto.ChangeStatusResult, error) {
	f.req, f.actor = req, actor
	if f.err != nil {
		return nil, f.err
	}
	return &dto.ChangeStatusResult{Number: "R-0001", NewStatusCode: "pret", EmailSent: true}, nil
}

type fakeStatsSrv struct{ hit bool }

func (f *fakeStatsSrv) Compute(context.Context) (*models.StatisticsReport, bool, error) {
	return &models.StatisticsReport{Totals: models.StatisticsTotals{TotalRequests: 10}}, f.hit, nil
}

type fakeExportSrv struct {
	format string
	query  dto.UnifiedQuery
}

func (f *fakeExportSrv) Export(_ context.Context, query dto.UnifiedQuery, format string) (*service.ExportResult, error) {
	f.format, f.query = format, query
	return &service.ExportResult{Filename: "demandes_20250312_140509.csv", ContentType: "text/csv; charset=utf-8", Body: []byte("a;b\n")}, nil
}

func TestUnifiedHandlerListAcceptsAliases(t *testing.T) {
	srv := &fakeUnifiedSrv{listing: &models.UnifiedListing{
		Records:    []models.UnifiedRecord{},
		Pagination: &models.Pagination{Page: 2, PageSize: 10, TotalCount: 14},
	}}
	h := NewUnifiedHandler(srv, nil, nil, nil)
	c, rec := newContext(http.MethodGet, "/requests/unified?status=pending&date_from=2025-03-01&date_fin=2025-03-10&type=releve&page=2&page_size=10", "", nil)

	h.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, dto.UnifiedQuery{Status: "pending", Type: "releve", DateFrom: "2025-03-01", DateTo: "2025-03-10", Page: 2, PageSize: 10}, srv.query)
	assert.Equal(t, 14, decode(t, rec).Pagination.TotalCount)
}

func TestUnifiedHandlerListRejectsBadPage(t *testing.T) {
	h := NewUnifiedHandler(&fakeUnifiedSrv{}, nil, nil, nil)
	c, rec := newContext(http.MethodGet, "/requests/unified?page=zero", "", nil)

	h.List(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec).Error.Fields, "page")
}

func TestUnifiedHandlerChangeStatus(t *testing.T) {
	srv := &fakeTransitionSrv{}
	h := NewUnifiedHandler(nil, srv, nil, nil)
	staff := &models.JWTClaims{UserID: "staff-1", Role: models.RoleStaff}
	c, rec := newContext(http.MethodPost, "/requests/unified/status", `{"type_demande":"releve","id":1,"nouveau_statut":"pret"}`, staff)

	h.ChangeStatus(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), srv.req.ID)
	assert.Same(t, staff, srv.actor)
	assert.Contains(t, string(decode(t, rec).Data), `"email_envoye":true`)

	srv.err = appErrors.Clone(appErrors.ErrConflict, "request R-0001 is already Retiré")
	c, rec = newContext(http.MethodPost, "/requests/unified/status", `{"type_demande":"releve","id":1,"nouveau_statut":"pret"}`, staff)
	h.ChangeStatus(c)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUnifiedHandlerSearchNotFound(t *testing.T) {
	srv := &fakeUnifiedSrv{err: appErrors.Clone(appErrors.ErrNotFound, "no request matches X")}
	h := NewUnifiedHandler(srv, nil, nil, nil)
	c, rec := newContext(http.MethodGet, "/requests/unified/search?numero=X", "", nil)

	h.Search(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "X", srv.search)
}

func TestUnifiedHandlerStatsReportsCacheHit(t *testing.T) {
	h := NewUnifiedHandler(nil, nil, &fakeStatsSrv{hit: true}, nil)
	c, rec := newContext(http.MethodGet, "/requests/unified/stats", "", nil)
	middleware.WithResponseMeta()(c)

	h.Stats(c)

	require.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, true, env.Meta["cache_hit"])
	assert.Contains(t, env.Meta, "processing_time_ms")
	assert.Contains(t, string(env.Data), `"total_demandes":10`)
}

func TestUnifiedHandlerExportStreamsFile(t *testing.T) {
	srv := &fakeExportSrv{}
	h := NewUnifiedHandler(nil, nil, nil, srv)
	c, rec := newContext(http.MethodGet, "/requests/unified/export?format=csv&statut=pret", "", nil)

	h.Export(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "csv", srv.format)
	assert.Equal(t, "pret", srv.query.Status)
	assert.Equal(t, `attachment; filename="demandes_20250312_140509.csv"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/csv"))
	assert.Equal(t, "a;b\n", rec.Body.String())
}

type fakeAuthSrv struct{}

func (fakeAuthSrv) Login(_ context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if req.Password != "secret123" {
		return nil, appErrors.ErrInvalidCredentials
	}
	return &models.LoginResponse{AccessToken: "token", ExpiresIn: 3600, IssuedAt: time.Now()}, nil
}

func (fakeAuthSrv) Me(_ context.Context, claims *models.JWTClaims) (*models.UserInfo, error) {
	return &models.UserInfo{ID: claims.UserID, Role: claims.Role}, nil
}

func TestAuthHandler(t *testing.T) {
	h := NewAuthHandler(fakeAuthSrv{})

	c, rec := newContext(http.MethodPost, "/auth/login", `{"email":"a@b.com","password":"nope"}`, nil)
	h.Login(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c, rec = newContext(http.MethodPost, "/auth/login", `{"email":"a@b.com","password":"secret123"}`, nil)
	h.Login(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = newContext(http.MethodGet, "/auth/me", "", nil)
	h.Me(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	c, rec = newContext(http.MethodGet, "/auth/me", "", &models.JWTClaims{UserID: "u1", Role: models.RoleStaff})
	h.Me(c)
	assert.Equal(t, http.StatusOK, rec.Code)
}

type failingPinger struct{ err error }

func (p failingPinger) PingContext(context.Context) error { return p.err }

func TestMetricsHandlerReady(t *testing.T) {
	h := NewMetricsHandler(service.NewMetricsService(), failingPinger{err: assert.AnError})
	c, rec := newContext(http.MethodGet, "/ready", "", nil)
	h.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	h = NewMetricsHandler(service.NewMetricsService(), failingPinger{})
	c, rec = newContext(http.MethodGet, "/ready", "", nil)
	h.Ready(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	c, rec = newContext(http.MethodGet, "/metrics", "", nil)
	h.Prometheus(c)
	assert.Equal(t, http.StatusOK, rec.Code)
}
