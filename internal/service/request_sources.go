package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/noah-isme/scolarite-api/internal/models"
	appErrors "github.com/noah-isme/scolarite-api/pkg/errors"
)

// RequestSource is the read and transition surface each request table exposes.
type RequestSource interface {
	Kind() models.RequestKind
	List(ctx context.Context, filter models.RequestFilter) ([]models.RequestRecord, error)
	FindRecord(ctx context.Context, id int64) (models.RequestRecord, error)
	FindByNumber(ctx context.Context, number string) ([]models.RequestRecord, error)
	Transition(ctx context.Context, id int64, change models.StatusChange) (models.Lifecycle, models.Lifecycle, error)
	History(ctx context.Context, id int64) ([]models.StatusHistory, error)
	CountByStatus(ctx context.Context) (models.StatusCounts, error)
	CountRequestedBetween(ctx context.Context, from, to time.Time) (int, error)
}

// RequestSources indexes sources by kind.
type RequestSources []RequestSource

func (s RequestSources) lookup(kind models.RequestKind) (RequestSource, error) {
	for _, source := range s {
		if source.Kind() == kind {
			return source, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrValidation, "unknown request type")
}

func (s RequestSources) parse(raw string) (RequestSource, error) {
	kind, ok := models.ParseRequestKind(raw)
	if !ok {
		return nil, appErrors.WithFields("unknown request type", map[string]string{"type_demande": "must be one of releve, certificat, attestation"})
	}
	return s.lookup(kind)
}

type ownerResolver interface {
	StudentForUser(ctx context.Context, userID string) (*models.StudentProfile, error)
	Owners(ctx context.Context, studentIDs []string) (map[string]models.StudentSummary, error)
}

// projectAll resolves owners once per distinct student and projects every record.
func projectAll(ctx context.Context, owners ownerResolver, records []models.RequestRecord) ([]models.UnifiedRecord, error) {
	ids := make([]string, 0, len(records))
	for _, record := range records {
		ids = append(ids, record.Envelope().StudentID)
	}
	resolved, err := owners.Owners(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]models.UnifiedRecord, 0, len(records))
	for _, record := range records {
		owner, ok := resolved[record.Envelope().StudentID]
		if !ok {
			owner = models.StudentSummary{StudentID: record.Envelope().StudentID}
		}
		out = append(out, models.Project(record, owner))
	}
	return out, nil
}

func storageError(err error, notFound, action string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, action)
}
