package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/scolarite-api/internal/models"
)

func newStatisticsFixture(cache *CacheService) (*StatisticsService, RequestSources) {
	sources := RequestSources{
		&fakeSource{kind: models.KindTranscript, records: []models.RequestRecord{
			transcriptRecord(1, "student-1", models.StatusPending, time.Date(2025, 3, 12, 8, 0, 0, 0, time.UTC)),
			transcriptRecord(2, "student-1", models.StatusPending, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)),
		}},
		&fakeSource{kind: models.KindCertificate, records: []models.RequestRecord{
			certificateRecord(1, "student-2", models.StatusProcessing, time.Date(2025, 3, 5, 9, 0, 0, 0, time.UTC)),
		}},
		&fakeSource{kind: models.KindAttestation, records: []models.RequestRecord{
			attestationRecord(1, "student-2", models.StatusReady, time.Date(2025, 2, 20, 9, 0, 0, 0, time.UTC)),
			attestationRecord(2, "student-1", models.StatusRejected, time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)),
		}},
	}
	svc := NewStatisticsService(sources, cache, nil, StatisticsServiceConfig{CacheTTL: time.Minute, Location: time.UTC}, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC) }
	return svc, sources
}

func TestStatisticsCompute(t *testing.T) {
	svc, _ := newStatisticsFixture(nil)

	report, hit, err := svc.Compute(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)

	totals := report.Totals
	assert.Equal(t, 5, totals.TotalRequests)
	assert.Equal(t, models.KindCounts{Transcripts: 2, Certificates: 1, Attestations: 2}, totals.ByKind)
	assert.Equal(t, 2, totals.ByStatus[models.StatusPending])
	assert.Equal(t, 0, totals.ByStatus[models.StatusWithdrawn])
	assert.Equal(t, models.RecentCounts{Today: 1, ThisWeek: 2, ThisMonth: 3}, totals.Recent)
	assert.Equal(t, 40.0, totals.StatusPercentages[models.StatusPending])
	assert.Equal(t, 20.0, totals.StatusPercentages[models.StatusRejected])
	assert.Equal(t, 0.0, totals.StatusPercentages[models.StatusWithdrawn])

	assert.Equal(t, []models.WeeklyCount{
		{Label: "Sem 1", Start: "17/02", End: "23/02", Total: 1},
		{Label: "Sem 2", Start: "24/02", End: "02/03", Total: 0},
		{Label: "Sem 3", Start: "03/03", End: "09/03", Total: 1},
		{Label: "Sem 4", Start: "10/03", End: "16/03", Total: 2},
	}, report.Weekly)
	assert.Equal(t, models.StatisticsPeriod{Today: "12/03/2025", WeekStart: "10/03/2025", MonthStart: "01/03/2025"}, report.Period)
}

func TestStatisticsEmptyHasNoPercentages(t *testing.T) {
	svc := NewStatisticsService(RequestSources{&fakeSource{kind: models.KindTranscript}}, nil, nil, StatisticsServiceConfig{}, nil)

	report, _, err := svc.Compute(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Totals.TotalRequests)
	assert.Nil(t, report.Totals.StatusPercentages)
	assert.Len(t, report.Weekly, weeklyHistory)
}

func TestStatisticsServedFromCacheUntilInvalidated(t *testing.T) {
	store := newMemoryCache()
	cache := NewCacheService(store, nil, time.Minute, zap.NewNop(), true)
	svc, sources := newStatisticsFixture(cache)

	_, hit, err := svc.Compute(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Contains(t, store.entries, statsCacheKey)

	transcripts := sources[0].(*fakeSource)
	transcripts.records = append(transcripts.records, transcriptRecord(3, "student-2", models.StatusPending, time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)))

	report, hit, err := svc.Compute(context.Background())
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 5, report.Totals.TotalRequests)

	require.NoError(t, cache.InvalidateStats(context.Background()))
	report, hit, err = svc.Compute(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 6, report.Totals.TotalRequests)
}

func TestStatisticsRebuildsWhenCacheFails(t *testing.T) {
	store := newMemoryCache()
	store.getErr = errBoom
	svc, _ := newStatisticsFixture(NewCacheService(store, nil, time.Minute, zap.NewNop(), true))

	report, hit, err := svc.Compute(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 5, report.Totals.TotalRequests)
}

func TestStatisticsPercentagesFromGroupedCounts(t *testing.T) {
	counts := models.NewStatusCounts()
	counts[models.StatusPending] = 4
	counts[models.StatusProcessing] = 3
	counts[models.StatusReady] = 3
	svc := NewStatisticsService(RequestSources{&fakeSource{kind: models.KindAttestation, counts: counts}}, nil, nil, StatisticsServiceConfig{}, nil)

	report, _, err := svc.Compute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, report.Totals.TotalRequests)
	assert.Equal(t, 10, report.Totals.ByKind.Attestations)
	assert.Equal(t, map[models.RequestStatus]float64{
		models.StatusPending:    40.0,
		models.StatusProcessing: 30.0,
		models.StatusReady:      30.0,
		models.StatusWithdrawn:  0,
		models.StatusRejected:   0,
	}, report.Totals.StatusPercentages)
}
