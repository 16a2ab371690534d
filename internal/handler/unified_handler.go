package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/scolarite-api/internal/dto"
	"github.com/noah-isme/scolarite-api/internal/middleware"
	"github.com/noah-isme/scolarite-api/internal/models"
	"github.com/noah-isme/scolarite-api/internal/service"
	appErrors "github.com/noah-isme/scolarite-api/pkg/errors"
	"github.com/noah-isme/scolarite-api/pkg/response"
)

type unifiedService interface {
	List(ctx context.Context, query dto.UnifiedQuery) (*models.UnifiedListing, error)
	SearchByNumber(ctx context.Context, number string) (*models.SearchResult, error)
}

type transitionService interface {
	ChangeStatus(ctx context.Context, req dto.ChangeStatusRequest, actor *models.JWTClaims) (*dto.ChangeStatusResult, error)
}

type statisticsService interface {
	Compute(ctx context.Context) (*models.StatisticsReport, bool, error)
}

type exportService interface {
	Export(ctx context.Context, query dto.UnifiedQuery, format string) (*service.ExportResult, error)
}

// UnifiedHandler serves the office dashboard.
type UnifiedHandler struct {
	unified     unifiedService
	transitions transitionService
	stats       statisticsService
	exports     exportService
}

// NewUnifiedHandler constructs a UnifiedHandler.
func NewUnifiedHandler(unified unifiedService, transitions transitionService, stats statisticsService, exports exportService) *UnifiedHandler {
	return &UnifiedHandler{unified: unified, transitions: transitions, stats: stats, exports: exports}
}

// parseUnifiedQuery reads the dashboard filters, accepting the English aliases.
func parseUnifiedQuery(c *gin.Context) (dto.UnifiedQuery, error) {
	fields := map[string]string{}
	query := dto.UnifiedQuery{
		Status:   firstQuery(c, "statut", "status"),
		Type:     firstQuery(c, "type"),
		DateFrom: firstQuery(c, "date_debut", "date_from"),
		DateTo:   firstQuery(c, "date_fin", "date_to"),
		Page:     intQuery(c, "page", fields),
		PageSize: intQuery(c, "page_size", fields),
	}
	if len(fields) > 0 {
		return query, appErrors.WithFields("invalid pagination", fields)
	}
	return query, nil
}

// List godoc
// @Summary Unified request listing
// @Description Merges transcripts, certificates and attestations newest first.
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Param statut query string false "Status code"
// @Param type query string false "Request type"
// @Param date_debut query string false "Start date (YYYY-MM-DD)"
// @Param date_fin query string false "End date (YYYY-MM-DD), inclusive"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /requests/unified [get]
func (h *UnifiedHandler) List(c *gin.Context) {
	query, err := parseUnifiedQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	listing, err := h.unified.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, listing, listing.Pagination)
}

// ChangeStatus godoc
// @Summary Move a request to a new status
// @Tags Dashboard
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.ChangeStatusRequest true "Status change"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests/unified/status [post]
func (h *UnifiedHandler) ChangeStatus(c *gin.Context) {
	var req dto.ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid status change payload"))
		return
	}
	result, err := h.transitions.ChangeStatus(c.Request.Context(), req, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Search godoc
// @Summary Find requests by public number
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Param numero query string true "Public number, case-insensitive"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/unified/search [get]
func (h *UnifiedHandler) Search(c *gin.Context) {
	result, err := h.unified.SearchByNumber(c.Request.Context(), c.Query("numero"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Stats godoc
// @Summary Office statistics
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /requests/unified/stats [get]
func (h *UnifiedHandler) Stats(c *gin.Context) {
	report, cacheHit, err := h.stats.Compute(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, report, nil, middleware.ResponseMeta(c))
}

// Export godoc
// @Summary Export the filtered listing
// @Tags Dashboard
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /requests/unified/export [get]
func (h *UnifiedHandler) Export(c *gin.Context) {
	query, err := parseUnifiedQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.exports.Export(c.Request.Context(), query, c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Body)
}
