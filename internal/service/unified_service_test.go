package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/scolarite-api/internal/dto"
	"github.com/noah-isme/scolarite-api/internal/models"
	appErrors "github.com/noah-isme/scolarite-api/pkg/errors"
)

type unifiedFixture struct {
	svc          *UnifiedService
	transcripts  *fakeSource
	certificates *fakeSource
	attestations *fakeSource
	identity     *fakeIdentity
}

func at(day, hour int) time.Time {
	return time.Date(2025, 3, day, hour, 0, 0, 0, time.UTC)
}

func newUnifiedFixture() *unifiedFixture {
	f := &unifiedFixture{
		transcripts: &fakeSource{kind: models.KindTranscript, records: []models.RequestRecord{
			transcriptRecord(1, "student-1", models.StatusPending, at(3, 9)),
			transcriptRecord(2, "student-2", models.StatusReady, at(10, 23)),
		}},
		certificates: &fakeSource{kind: models.KindCertificate, records: []models.RequestRecord{
			certificateRecord(1, "student-1", models.StatusProcessing, at(5, 8)),
		}},
		attestations: &fakeSource{kind: models.KindAttestation, records: []models.RequestRecord{
			attestationRecord(1, "student-2", models.StatusPending, at(11, 0)),
			attestationRecord(2, "student-1", models.StatusRejected, at(1, 12)),
		}},
		identity: newFakeIdentity(),
	}
	f.svc = NewUnifiedService(RequestSources{f.transcripts, f.certificates, f.attestations}, f.identity, nil, time.UTC, zap.NewNop())
	return f
}

func numbers(records []models.UnifiedRecord) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		out = append(out, r.Number)
	}
	return out
}

func TestUnifiedListMergesAndSorts(t *testing.T) {
	f := newUnifiedFixture()

	listing, err := f.svc.List(context.Background(), dto.UnifiedQuery{})
	require.NoError(t, err)

	assert.Equal(t, []string{"A-0001", "R-0002", "CERT-0001", "R-0001", "A-0002"}, numbers(listing.Records))
	assert.Equal(t, 5, listing.Stats.Total)
	assert.Equal(t, models.KindCounts{Transcripts: 2, Certificates: 1, Attestations: 2}, listing.Stats.ByKind)
	assert.Equal(t, 2, listing.Stats.ByStatus[models.StatusPending])
	assert.Equal(t, 0, listing.Stats.ByStatus[models.StatusWithdrawn])
	assert.Empty(t, listing.AppliedFilters)
	assert.Nil(t, listing.Pagination)

	assert.Equal(t, "RASOA Marie", listing.Records[0].Student.FullName)
	require.Len(t, f.identity.ownerCalls, 1)
}

func TestUnifiedListFiltersByTypeAndStatus(t *testing.T) {
	f := newUnifiedFixture()

	listing, err := f.svc.List(context.Background(), dto.UnifiedQuery{Type: "attestation", Status: "pending"})
	require.NoError(t, err)

	assert.Equal(t, []string{"A-0001"}, numbers(listing.Records))
	assert.Equal(t, map[string]string{"type": "attestation", "statut": "en_attente"}, listing.AppliedFilters)
	assert.Equal(t, models.KindCounts{Attestations: 1}, listing.Stats.ByKind)
	for _, source := range []*fakeSource{f.transcripts, f.certificates, f.attestations} {
		require.Len(t, source.filters, 1)
		assert.Equal(t, models.StatusPending, *source.filters[0].Status)
	}
}

func TestUnifiedListTypeFilterRunsAfterMerge(t *testing.T) {
	f := newUnifiedFixture()
	f.transcripts.listErr = errBoom

	_, err := f.svc.List(context.Background(), dto.UnifiedQuery{Type: "certificat"})
	assert.ErrorIs(t, err, appErrors.ErrInternal)

	f.transcripts.listErr = nil
	listing, err := f.svc.List(context.Background(), dto.UnifiedQuery{Type: "certificat"})
	require.NoError(t, err)
	assert.Equal(t, []string{"CERT-0001"}, numbers(listing.Records))
	assert.Equal(t, 1, listing.Stats.Total)
	assert.Equal(t, 1, listing.Stats.ByStatus[models.StatusProcessing])
	assert.Zero(t, listing.Stats.ByStatus[models.StatusPending])
}

func TestUnifiedListDateRangeIncludesWholeEndDay(t *testing.T) {
	f := newUnifiedFixture()

	listing, err := f.svc.List(context.Background(), dto.UnifiedQuery{DateFrom: "2025-03-03", DateTo: "2025-03-10"})
	require.NoError(t, err)

	assert.Equal(t, []string{"R-0002", "CERT-0001", "R-0001"}, numbers(listing.Records))
	filter := f.transcripts.filters[0]
	require.NotNil(t, filter.To)
	assert.True(t, filter.To.Equal(at(11, 0)))
	assert.Equal(t, "2025-03-10", listing.AppliedFilters["date_fin"])
}

func TestUnifiedListRejectsBadFilters(t *testing.T) {
	f := newUnifiedFixture()

	_, err := f.svc.List(context.Background(), dto.UnifiedQuery{DateFrom: "03/03/2025"})
	require.Error(t, err)
	assert.Contains(t, appError(err).Fields, "date_debut")

	_, err = f.svc.List(context.Background(), dto.UnifiedQuery{DateFrom: "2025-03-10", DateTo: "2025-03-01"})
	require.Error(t, err)
	assert.Contains(t, appError(err).Fields, "date_debut")

	_, err = f.svc.List(context.Background(), dto.UnifiedQuery{Status: "archive", Type: "diplome"})
	require.Error(t, err)
	fields := appError(err).Fields
	assert.Contains(t, fields, "statut")
	assert.Contains(t, fields, "type")
}

func TestUnifiedListPaginatesAfterStats(t *testing.T) {
	f := newUnifiedFixture()

	listing, err := f.svc.List(context.Background(), dto.UnifiedQuery{Page: 2, PageSize: 2})
	require.NoError(t, err)

	assert.Equal(t, []string{"CERT-0001", "R-0001"}, numbers(listing.Records))
	assert.Equal(t, 5, listing.Stats.Total)
	require.NotNil(t, listing.Pagination)
	assert.Equal(t, 5, listing.Pagination.TotalCount)

	listing, err = f.svc.List(context.Background(), dto.UnifiedQuery{Page: 9, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, listing.Records)

	filter, err := f.svc.ParseFilter(dto.UnifiedQuery{PageSize: 1000})
	require.NoError(t, err)
	assert.Equal(t, 1, filter.Page)
	assert.Equal(t, maxUnifiedPageSize, filter.PageSize)
}

func TestUnifiedListStorageFailure(t *testing.T) {
	f := newUnifiedFixture()
	f.certificates.listErr = errBoom

	_, err := f.svc.List(context.Background(), dto.UnifiedQuery{})
	assert.ErrorIs(t, err, appErrors.ErrInternal)
}

func TestSearchByNumberIgnoresCase(t *testing.T) {
	f := newUnifiedFixture()

	result, err := f.svc.SearchByNumber(context.Background(), "  a-0001 ")
	require.NoError(t, err)
	assert.Equal(t, "a-0001", result.Query)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, "A-0001", result.Results[0].Number)
	assert.Equal(t, models.KindAttestation, result.Results[0].Kind)
	assert.Equal(t, []string{"a-0001"}, f.transcripts.numbers)
}

func TestSearchByNumberErrors(t *testing.T) {
	f := newUnifiedFixture()

	_, err := f.svc.SearchByNumber(context.Background(), "   ")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.SearchByNumber(context.Background(), "R-9999")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
