package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/scolarite-api/internal/dto"
	"github.com/noah-isme/scolarite-api/internal/models"
	appErrors "github.com/noah-isme/scolarite-api/pkg/errors"
)

const (
	dateOnlyLayout     = "2006-01-02"
	maxUnifiedPageSize = 200
	defaultUnifiedPage = 50
)

// UnifiedService merges the three request tables into one staff view.
type UnifiedService struct {
	sources  RequestSources
	identity ownerResolver
	metrics  *MetricsService
	logger   *zap.Logger
	location *time.Location
}

// NewUnifiedService constructs a UnifiedService.
func NewUnifiedService(sources RequestSources, identity ownerResolver, metrics *MetricsService, location *time.Location, logger *zap.Logger) *UnifiedService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	return &UnifiedService{sources: sources, identity: identity, metrics: metrics, logger: logger, location: location}
}

// ParseFilter validates raw dashboard parameters.
func (s *UnifiedService) ParseFilter(query dto.UnifiedQuery) (models.UnifiedFilter, error) {
	fields := fieldErrors{}
	var filter models.UnifiedFilter

	if raw := strings.TrimSpace(query.Status); raw != "" {
		status, ok := models.ParseRequestStatus(raw)
		if ok {
			filter.Status = &status
		} else {
			fields.add("statut", "unknown status %q", raw)
		}
	}
	if raw := strings.TrimSpace(query.Type); raw != "" {
		kind, ok := models.ParseRequestKind(raw)
		if ok {
			filter.Kind = &kind
		} else {
			fields.add("type", "unknown request type %q", raw)
		}
	}
	if raw := strings.TrimSpace(query.DateFrom); raw != "" {
		from, err := time.ParseInLocation(dateOnlyLayout, raw, s.location)
		if err != nil {
			fields.add("date_debut", "date must use YYYY-MM-DD")
		} else {
			filter.DateFrom = &from
		}
	}
	if raw := strings.TrimSpace(query.DateTo); raw != "" {
		to, err := time.ParseInLocation(dateOnlyLayout, raw, s.location)
		if err != nil {
			fields.add("date_fin", "date must use YYYY-MM-DD")
		} else {
			filter.DateTo = &to
		}
	}
	if filter.DateFrom != nil && filter.DateTo != nil && filter.DateFrom.After(*filter.DateTo) {
		fields.add("date_debut", "date_debut must not be after date_fin")
	}

	if query.Page < 0 || query.PageSize < 0 {
		fields.add("page", "pagination values must be positive")
	}
	if query.Page > 0 || query.PageSize > 0 {
		filter.Page = query.Page
		if filter.Page == 0 {
			filter.Page = 1
		}
		filter.PageSize = query.PageSize
		if filter.PageSize == 0 {
			filter.PageSize = defaultUnifiedPage
		}
		if filter.PageSize > maxUnifiedPageSize {
			filter.PageSize = maxUnifiedPageSize
		}
	}

	if err := fields.err("invalid dashboard filter"); err != nil {
		return models.UnifiedFilter{}, err
	}
	return filter, nil
}

// List returns the merged dashboard listing.
func (s *UnifiedService) List(ctx context.Context, query dto.UnifiedQuery) (*models.UnifiedListing, error) {
	filter, err := s.ParseFilter(query)
	if err != nil {
		return nil, err
	}
	records, err := s.collect(ctx, filter)
	if err != nil {
		return nil, err
	}

	listing := &models.UnifiedListing{
		Stats:          models.SummariseUnified(records),
		AppliedFilters: filter.Applied(),
	}
	if filter.PageSize > 0 {
		listing.Pagination = &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: len(records)}
		start := (filter.Page - 1) * filter.PageSize
		if start > len(records) {
			start = len(records)
		}
		end := start + filter.PageSize
		if end > len(records) {
			end = len(records)
		}
		records = records[start:end]
	}
	listing.Records = records
	return listing, nil
}

// Collect returns every filtered record, sorted, without pagination.
func (s *UnifiedService) Collect(ctx context.Context, query dto.UnifiedQuery) ([]models.UnifiedRecord, models.UnifiedFilter, error) {
	filter, err := s.ParseFilter(query)
	if err != nil {
		return nil, filter, err
	}
	records, err := s.collect(ctx, filter)
	return records, filter, err
}

func (s *UnifiedService) collect(ctx context.Context, filter models.UnifiedFilter) ([]models.UnifiedRecord, error) {
	perTable := models.RequestFilter{Status: filter.Status, From: filter.DateFrom}
	if filter.DateTo != nil {
		end := filter.DateTo.AddDate(0, 0, 1)
		perTable.To = &end
	}

	var merged []models.RequestRecord
	for _, source := range s.sources {
		start := time.Now()
		records, err := source.List(ctx, perTable)
		s.metrics.ObserveDBQuery("list_"+string(source.Kind()), time.Since(start))
		if err != nil {
			return nil, storageError(err, "requests not found", "failed to list requests")
		}
		merged = append(merged, records...)
	}

	projected, err := projectAll(ctx, s.identity, merged)
	if err != nil {
		return nil, err
	}
	if filter.Kind != nil {
		kept := projected[:0]
		for _, record := range projected {
			if record.Kind == *filter.Kind {
				kept = append(kept, record)
			}
		}
		projected = kept
	}
	models.SortUnified(projected)
	return projected, nil
}

// SearchByNumber finds every request whose public number matches, ignoring case.
func (s *UnifiedService) SearchByNumber(ctx context.Context, raw string) (*models.SearchResult, error) {
	number := models.NormaliseNumber(raw)
	if number == "" {
		return nil, appErrors.WithFields("search number is required", map[string]string{"numero": "required"})
	}

	var matches []models.RequestRecord
	for _, source := range s.sources {
		start := time.Now()
		records, err := source.FindByNumber(ctx, number)
		s.metrics.ObserveDBQuery("search_"+string(source.Kind()), time.Since(start))
		if err != nil {
			return nil, storageError(err, "request not found", "failed to search requests")
		}
		matches = append(matches, records...)
	}
	if len(matches) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no request matches "+number)
	}

	projected, err := projectAll(ctx, s.identity, matches)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(projected, func(i, j int) bool { return projected[i].Number < projected[j].Number })
	return &models.SearchResult{Query: number, Results: projected, Total: len(projected)}, nil
}
