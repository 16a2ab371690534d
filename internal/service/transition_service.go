package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/scolarite-api/internal/dto"
	"github.com/noah-isme/scolarite-api/internal/models"
	appErrors "github.com/noah-isme/scolarite-api/pkg/errors"
	"github.com/noah-isme/scolarite-api/pkg/logger"
)

type statusNotifier interface {
	NotifyStatusChange(ctx context.Context, request models.RequestSummary, student models.StudentSummary, event models.StatusEvent) bool
}

type statsInvalidator interface {
	InvalidateStats(ctx context.Context) error
}

// TransitionService applies staff status changes.
type TransitionService struct {
	sources  RequestSources
	identity ownerResolver
	notifier statusNotifier
	cache    statsInvalidator
	metrics  *MetricsService
	logger   *zap.Logger
	now      func() time.Time
}

// NewTransitionService constructs a TransitionService.
func NewTransitionService(sources RequestSources, identity ownerResolver, notifier statusNotifier, cache statsInvalidator, metrics *MetricsService, logger *zap.Logger) *TransitionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransitionService{
		sources:  sources,
		identity: identity,
		notifier: notifier,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
}

// ChangeStatus validates, commits and then notifies. Notification failures only clear email_envoye.
func (s *TransitionService) ChangeStatus(ctx context.Context, req dto.ChangeStatusRequest, actor *models.JWTClaims) (*dto.ChangeStatusResult, error) {
	fields := fieldErrors{}
	kind, ok := models.ParseRequestKind(req.Kind)
	if !ok {
		fields.add("type_demande", "must be one of releve, certificat, attestation")
	}
	next, ok := models.ParseRequestStatus(req.NewStatus)
	if !ok {
		fields.add("nouveau_statut", "unknown status %q", req.NewStatus)
	}
	if req.ID <= 0 {
		fields.add("id", "must be a positive integer")
	}
	reason := strings.TrimSpace(req.Reason)
	if next == models.StatusRejected && reason == "" {
		fields.add("motif", "reason required")
	}
	if err := fields.err("invalid status change"); err != nil {
		return nil, err
	}

	source, err := s.sources.lookup(kind)
	if err != nil {
		return nil, err
	}

	change := models.StatusChange{Next: next, Reason: reason, At: s.now().UTC()}
	if actor != nil {
		change.ActorID = actor.UserID
	}
	before, after, err := source.Transition(ctx, req.ID, change)
	if err != nil {
		return nil, transitionError(err)
	}

	log := logger.FromContext(ctx, s.logger)
	log.Info("request status changed",
		zap.String("type", string(kind)),
		zap.String("numero", after.PublicNumber),
		zap.String("from", string(before.Status)),
		zap.String("to", string(after.Status)),
		zap.String("actor_id", change.ActorID),
	)
	s.metrics.RecordTransition(kind, before.Status, after.Status)
	if s.cache != nil {
		_ = s.cache.InvalidateStats(ctx)
	}

	sent := s.notify(ctx, log, source, after, models.StatusEvent{Previous: before.Status, Current: after.Status, Reason: reason, At: change.At})

	return &dto.ChangeStatusResult{
		Kind:           string(kind),
		ID:             after.ID,
		Number:         after.PublicNumber,
		PreviousStatus: before.Status.Label(),
		NewStatus:      after.Status.Label(),
		NewStatusCode:  string(after.Status),
		EmailSent:      sent,
	}, nil
}

func (s *TransitionService) notify(ctx context.Context, log *zap.Logger, source RequestSource, after models.Lifecycle, event models.StatusEvent) bool {
	if s.notifier == nil {
		return false
	}
	record, err := source.FindRecord(ctx, after.ID)
	if err != nil {
		log.Warn("notification skipped, request reload failed", zap.Int64("id", after.ID), zap.Error(err))
		return false
	}
	owners, err := s.identity.Owners(ctx, []string{after.StudentID})
	if err != nil {
		log.Warn("notification skipped, owner lookup failed", zap.String("student_id", after.StudentID), zap.Error(err))
		return false
	}
	owner, ok := owners[after.StudentID]
	if !ok {
		log.Warn("notification skipped, owner not found", zap.String("student_id", after.StudentID))
		return false
	}
	return s.notifier.NotifyStatusChange(ctx, models.SummariseRequest(record), owner, event)
}

func transitionError(err error) error {
	var transitionErr *models.TransitionError
	if errors.As(err, &transitionErr) {
		if transitionErr.Conflict {
			return appErrors.Clone(appErrors.ErrConflict, transitionErr.Reason)
		}
		return appErrors.Clone(appErrors.ErrValidation, transitionErr.Reason)
	}
	return storageError(err, "request not found", "failed to change request status")
}
