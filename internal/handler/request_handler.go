package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/scolarite-api/internal/dto"
	"github.com/noah-isme/scolarite-api/internal/models"
	appErrors "github.com/noah-isme/scolarite-api/pkg/errors"
	"github.com/noah-isme/scolarite-api/pkg/response"
)

type requestService interface {
	CreateTranscript(ctx context.Context, claims *models.JWTClaims, req dto.CreateTranscriptRequest) (*models.UnifiedRecord, error)
	CreateCertificate(ctx context.Context, claims *models.JWTClaims, req dto.CreateCertificateRequest) (*models.UnifiedRecord, error)
	CreateAttestation(ctx context.Context, claims *models.JWTClaims, req dto.CreateAttestationRequest) (*models.UnifiedRecord, error)
	ListMine(ctx context.Context, claims *models.JWTClaims, kind string) ([]models.UnifiedRecord, error)
	Get(ctx context.Context, claims *models.JWTClaims, kind string, id int64) (*models.RequestDetail, error)
}

// RequestHandler exposes the student side of the document workflow.
type RequestHandler struct {
	service requestService
}

// NewRequestHandler constructs a RequestHandler.
func NewRequestHandler(service requestService) *RequestHandler {
	return &RequestHandler{service: service}
}

// Create godoc
// @Summary File a document request
// @Description type is one of releve, certificat, attestation. The body shape depends on the type.
// @Tags Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param type path string true "Request type"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /requests/{type} [post]
func (h *RequestHandler) Create(c *gin.Context) {
	kind, ok := models.ParseRequestKind(c.Param("type"))
	if !ok {
		response.Error(c, appErrors.WithFields("unknown request type", map[string]string{"type": "must be one of releve, certificat, attestation"}))
		return
	}
	claims := claimsFromContext(c)
	ctx := c.Request.Context()

	var (
		record *models.UnifiedRecord
		err    error
	)
	switch kind {
	case models.KindTranscript:
		var req dto.CreateTranscriptRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, bindError(err, "invalid transcript payload"))
			return
		}
		record, err = h.service.CreateTranscript(ctx, claims, req)
	case models.KindCertificate:
		var req dto.CreateCertificateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, bindError(err, "invalid certificate payload"))
			return
		}
		record, err = h.service.CreateCertificate(ctx, claims, req)
	case models.KindAttestation:
		var req dto.CreateAttestationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, bindError(err, "invalid attestation payload"))
			return
		}
		record, err = h.service.CreateAttestation(ctx, claims, req)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Mine godoc
// @Summary List the caller's requests of one type
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Param type path string true "Request type"
// @Success 200 {object} response.Envelope
// @Router /requests/{type}/mine [get]
func (h *RequestHandler) Mine(c *gin.Context) {
	records, err := h.service.ListMine(c.Request.Context(), claimsFromContext(c), c.Param("type"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}

// Get godoc
// @Summary Request detail with status history
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Param type path string true "Request type"
// @Param id path int true "Request id"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/{type}/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErrors.WithFields("invalid request id", map[string]string{"id": "must be a positive integer"}))
		return
	}
	detail, err := h.service.Get(c.Request.Context(), claimsFromContext(c), c.Param("type"), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}
