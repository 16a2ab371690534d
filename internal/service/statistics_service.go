package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/scolarite-api/internal/models"
	"github.com/noah-isme/scolarite-api/pkg/logger"
)

const weeklyHistory = 4

// StatisticsServiceConfig tunes the statistics report.
type StatisticsServiceConfig struct {
	CacheTTL time.Duration
	Location *time.Location
}

// StatisticsService builds the staff statistics report.
type StatisticsService struct {
	sources RequestSources
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	cfg     StatisticsServiceConfig
	now     func() time.Time
}

// NewStatisticsService constructs a StatisticsService.
func NewStatisticsService(sources RequestSources, cache *CacheService, metrics *MetricsService, cfg StatisticsServiceConfig, logger *zap.Logger) *StatisticsService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatisticsService{sources: sources, cache: cache, metrics: metrics, logger: logger, cfg: cfg, now: time.Now}
}

// Compute returns the report and whether it was served from cache.
func (s *StatisticsService) Compute(ctx context.Context) (*models.StatisticsReport, bool, error) {
	if report, hit := s.tryCache(ctx); hit {
		return report, true, nil
	}

	report, err := s.build(ctx)
	if err != nil {
		return nil, false, err
	}
	s.persistCache(ctx, report)
	return report, false, nil
}

func (s *StatisticsService) build(ctx context.Context) (*models.StatisticsReport, error) {
	now := s.now().In(s.cfg.Location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.cfg.Location)
	tomorrow := today.AddDate(0, 0, 1)
	weekStart := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, s.cfg.Location)

	totals := models.StatisticsTotals{ByStatus: models.NewStatusCounts()}
	for _, source := range s.sources {
		start := time.Now()
		counts, err := source.CountByStatus(ctx)
		s.metrics.ObserveDBQuery("count_status_"+string(source.Kind()), time.Since(start))
		if err != nil {
			return nil, storageError(err, "requests not found", "failed to count requests")
		}
		for status, n := range counts {
			totals.ByStatus[status] += n
			totals.ByKind.Add(source.Kind(), n)
		}
	}
	totals.TotalRequests = totals.ByKind.Total()

	var err error
	if totals.Recent.Today, err = s.countBetween(ctx, today, tomorrow); err != nil {
		return nil, err
	}
	if totals.Recent.ThisWeek, err = s.countBetween(ctx, weekStart, tomorrow); err != nil {
		return nil, err
	}
	if totals.Recent.ThisMonth, err = s.countBetween(ctx, monthStart, tomorrow); err != nil {
		return nil, err
	}
	totals.StatusPercentages = models.StatusPercentages(totals.ByStatus, totals.TotalRequests)

	weekly := make([]models.WeeklyCount, 0, weeklyHistory)
	for i := weeklyHistory - 1; i >= 0; i-- {
		from := weekStart.AddDate(0, 0, -7*i)
		to := from.AddDate(0, 0, 7)
		total, err := s.countBetween(ctx, from, to)
		if err != nil {
			return nil, err
		}
		weekly = append(weekly, models.WeeklyCount{
			Label: fmt.Sprintf("Sem %d", weeklyHistory-i),
			Start: from.Format("02/01"),
			End:   to.AddDate(0, 0, -1).Format("02/01"),
			Total: total,
		})
	}

	return &models.StatisticsReport{
		Totals: totals,
		Weekly: weekly,
		Period: models.StatisticsPeriod{
			Today:      today.Format("02/01/2006"),
			WeekStart:  weekStart.Format("02/01/2006"),
			MonthStart: monthStart.Format("02/01/2006"),
		},
	}, nil
}

func (s *StatisticsService) countBetween(ctx context.Context, from, to time.Time) (int, error) {
	total := 0
	for _, source := range s.sources {
		n, err := source.CountRequestedBetween(ctx, from, to)
		if err != nil {
			return 0, storageError(err, "requests not found", "failed to count recent requests")
		}
		total += n
	}
	return total, nil
}

func (s *StatisticsService) tryCache(ctx context.Context) (*models.StatisticsReport, bool) {
	if s.cache == nil {
		return nil, false
	}
	var cached models.StatisticsReport
	hit, err := s.cache.Get(ctx, statsCacheKey, &cached)
	if err != nil || !hit {
		return nil, false
	}
	return &cached, true
}

func (s *StatisticsService) persistCache(ctx context.Context, report *models.StatisticsReport) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, statsCacheKey, report, s.cfg.CacheTTL); err != nil {
		logger.FromContext(ctx, s.logger).Warn("statistics cache write failed", zap.Error(err))
	}
}
