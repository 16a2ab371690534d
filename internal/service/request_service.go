package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/scolarite-api/internal/dto"
	"github.com/noah-isme/scolarite-api/internal/models"
	"github.com/noah-isme/scolarite-api/internal/repository"
	appErrors "github.com/noah-isme/scolarite-api/pkg/errors"
	"github.com/noah-isme/scolarite-api/pkg/jobs"
	"github.com/noah-isme/scolarite-api/pkg/logger"
)

type transcriptCreator interface {
	Create(ctx context.Context, transcript *models.Transcript) error
}

type certificateCreator interface {
	Create(ctx context.Context, certificate *models.Certificate) error
}

type attestationCreator interface {
	Create(ctx context.Context, attestation *models.Attestation) error
}

// CreationHook runs synchronously after a request is committed. Hooks cannot fail the request.
type CreationHook func(ctx context.Context, record models.RequestRecord, owner models.StudentSummary)

// NotifyOnCreate sends the confirmation email.
func NotifyOnCreate(notifications *NotificationService) CreationHook {
	return func(ctx context.Context, record models.RequestRecord, owner models.StudentSummary) {
		notifications.NotifyCreated(ctx, models.SummariseRequest(record), owner)
	}
}

// JobEnqueuer accepts background jobs.
type JobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// QueueNotifyOnCreate hands the confirmation email to a background queue.
// When the queue refuses the job the email is sent inline.
func QueueNotifyOnCreate(queue JobEnqueuer, notifications *NotificationService) CreationHook {
	return func(ctx context.Context, record models.RequestRecord, owner models.StudentSummary) {
		summary := models.SummariseRequest(record)
		job := jobs.Job{ID: summary.Number, Kind: CreatedNotificationJob, Payload: CreatedNotification{Request: summary, Student: owner}}
		if err := queue.Enqueue(job); err != nil {
			logger.FromContext(ctx, notifications.logger).Warn("notification queue unavailable, sending inline", zap.String("numero", summary.Number), zap.Error(err))
			notifications.NotifyCreated(ctx, summary, owner)
		}
	}
}

// InvalidateStatsOnCreate drops the cached statistics report.
func InvalidateStatsOnCreate(cache *CacheService) CreationHook {
	return func(ctx context.Context, _ models.RequestRecord, _ models.StudentSummary) {
		_ = cache.InvalidateStats(ctx)
	}
}

// CountOnCreate increments requests_created_total.
func CountOnCreate(metrics *MetricsService) CreationHook {
	return func(_ context.Context, record models.RequestRecord, _ models.StudentSummary) {
		metrics.RecordRequestCreated(record.Kind())
	}
}

// RequestServiceConfig tunes request intake.
type RequestServiceConfig struct {
	AttestationUnitPrice decimal.Decimal
	Location             *time.Location
}

// RequestServiceParams groups constructor dependencies.
type RequestServiceParams struct {
	Transcripts  transcriptCreator
	Certificates certificateCreator
	Attestations attestationCreator
	Sources      RequestSources
	Identity     ownerResolver
	Hooks        []CreationHook
	Validator    *validator.Validate
	Logger       *zap.Logger
	Config       RequestServiceConfig
}

// RequestService implements the student side of the workflow.
type RequestService struct {
	transcripts  transcriptCreator
	certificates certificateCreator
	attestations attestationCreator
	sources      RequestSources
	identity     ownerResolver
	hooks        []CreationHook
	validator    *validator.Validate
	logger       *zap.Logger
	cfg          RequestServiceConfig
	now          func() time.Time
}

// NewRequestService constructs a RequestService.
func NewRequestService(params RequestServiceParams) *RequestService {
	cfg := params.Config
	if !cfg.AttestationUnitPrice.IsPositive() {
		cfg.AttestationUnitPrice = models.DefaultAttestationUnitPrice
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	validate := params.Validator
	if validate == nil {
		validate = validator.New()
	}
	log := params.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &RequestService{
		transcripts:  params.Transcripts,
		certificates: params.Certificates,
		attestations: params.Attestations,
		sources:      params.Sources,
		identity:     params.Identity,
		hooks:        params.Hooks,
		validator:    validate,
		logger:       log,
		cfg:          cfg,
		now:          time.Now,
	}
}

// CreateTranscript files a transcript request for the calling student.
func (s *RequestService) CreateTranscript(ctx context.Context, claims *models.JWTClaims, req dto.CreateTranscriptRequest) (*models.UnifiedRecord, error) {
	profile, err := s.requireStudent(ctx, claims)
	if err != nil {
		return nil, err
	}
	levels, years, err := normaliseTranscript(req)
	if err != nil {
		return nil, err
	}
	transcript := &models.Transcript{Lifecycle: s.pending(profile.ID), Levels: levels, AcademicYears: years}
	if err := s.transcripts.Create(ctx, transcript); err != nil {
		return nil, createError(err)
	}
	return s.created(ctx, *transcript, profile), nil
}

// CreateCertificate files a school certificate request for the calling student.
func (s *RequestService) CreateCertificate(ctx context.Context, claims *models.JWTClaims, req dto.CreateCertificateRequest) (*models.UnifiedRecord, error) {
	profile, err := s.requireStudent(ctx, claims)
	if err != nil {
		return nil, err
	}
	if err := validatePayload(s.validator, req, "invalid certificate request"); err != nil {
		return nil, err
	}
	certificate, err := normaliseCertificate(req, s.now().In(s.cfg.Location))
	if err != nil {
		return nil, err
	}
	certificate.Lifecycle = s.pending(profile.ID)
	if err := s.certificates.Create(ctx, certificate); err != nil {
		return nil, createError(err)
	}
	return s.created(ctx, *certificate, profile), nil
}

// CreateAttestation files an attestation request priced at the configured unit price.
func (s *RequestService) CreateAttestation(ctx context.Context, claims *models.JWTClaims, req dto.CreateAttestationRequest) (*models.UnifiedRecord, error) {
	profile, err := s.requireStudent(ctx, claims)
	if err != nil {
		return nil, err
	}
	if err := validatePayload(s.validator, req, "invalid attestation request"); err != nil {
		return nil, err
	}
	attestation, err := normaliseAttestation(req)
	if err != nil {
		return nil, err
	}
	attestation.Lifecycle = s.pending(profile.ID)
	attestation.UnitPrice = s.cfg.AttestationUnitPrice
	attestation.Recompute()
	if err := s.attestations.Create(ctx, attestation); err != nil {
		return nil, createError(err)
	}
	return s.created(ctx, *attestation, profile), nil
}

// ListMine returns the caller's requests of one kind, newest first.
func (s *RequestService) ListMine(ctx context.Context, claims *models.JWTClaims, kind string) ([]models.UnifiedRecord, error) {
	profile, err := s.requireStudent(ctx, claims)
	if err != nil {
		return nil, err
	}
	source, err := s.sources.parse(kind)
	if err != nil {
		return nil, err
	}
	records, err := source.List(ctx, models.RequestFilter{StudentID: profile.ID})
	if err != nil {
		return nil, storageError(err, "requests not found", "failed to list requests")
	}
	owner := profile.Summary()
	out := make([]models.UnifiedRecord, 0, len(records))
	for _, record := range records {
		out = append(out, models.Project(record, owner))
	}
	models.SortUnified(out)
	return out, nil
}

// Get returns one request with its history. Students only see their own requests.
func (s *RequestService) Get(ctx context.Context, claims *models.JWTClaims, kind string, id int64) (*models.RequestDetail, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if id <= 0 {
		return nil, appErrors.WithFields("invalid request id", map[string]string{"id": "must be a positive integer"})
	}
	source, err := s.sources.parse(kind)
	if err != nil {
		return nil, err
	}
	record, err := source.FindRecord(ctx, id)
	if err != nil {
		return nil, storageError(err, "request not found", "failed to load request")
	}

	if !claims.IsStaff() {
		profile, err := s.requireStudent(ctx, claims)
		if err != nil {
			return nil, err
		}
		if profile.ID != record.Envelope().StudentID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "this request belongs to another student")
		}
	}

	projected, err := projectAll(ctx, s.identity, []models.RequestRecord{record})
	if err != nil {
		return nil, err
	}
	history, err := source.History(ctx, id)
	if err != nil {
		return nil, storageError(err, "request not found", "failed to load request history")
	}
	if history == nil {
		history = []models.StatusHistory{}
	}
	return &models.RequestDetail{UnifiedRecord: projected[0], History: history}, nil
}

func (s *RequestService) requireStudent(ctx context.Context, claims *models.JWTClaims) (*models.StudentProfile, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if claims.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can file requests")
	}
	return s.identity.StudentForUser(ctx, claims.UserID)
}

func (s *RequestService) pending(studentID string) models.Lifecycle {
	return models.Lifecycle{StudentID: studentID, Status: models.StatusPending, RequestedAt: s.now().UTC()}
}

func (s *RequestService) created(ctx context.Context, record models.RequestRecord, profile *models.StudentProfile) *models.UnifiedRecord {
	owner := profile.Summary()
	log := logger.FromContext(ctx, s.logger)
	log.Info("request created", zap.String("type", string(record.Kind())), zap.String("numero", record.Number()), zap.String("student_id", profile.ID))
	for _, hook := range s.hooks {
		s.runHook(ctx, log, hook, record, owner)
	}
	projected := models.Project(record, owner)
	return &projected
}

func (s *RequestService) runHook(ctx context.Context, log *zap.Logger, hook CreationHook, record models.RequestRecord, owner models.StudentSummary) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("post-creation hook panicked", zap.String("numero", record.Number()), zap.Any("panic", r))
		}
	}()
	hook(ctx, record, owner)
}

func createError(err error) error {
	if errors.Is(err, repository.ErrDuplicateNumber) {
		return appErrors.Clone(appErrors.ErrConflict, "request number already taken, please retry")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save request")
}
