package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/scolarite-api/internal/models"
	appErrors "github.com/noah-isme/scolarite-api/pkg/errors"
	"github.com/noah-isme/scolarite-api/pkg/jobs"
	"github.com/noah-isme/scolarite-api/pkg/logger"
	"github.com/noah-isme/scolarite-api/pkg/mail"
)

const (
	createdTemplate = "created"
	notifyDateFmt   = "02/01/2006 à 15:04"

	// CreatedNotificationJob is the job kind carrying a creation confirmation.
	CreatedNotificationJob = "notification.created"
)

var errNotificationSkipped = errors.New("notification skipped")

// CreatedNotification is the payload of a CreatedNotificationJob.
type CreatedNotification struct {
	Request models.RequestSummary
	Student models.StudentSummary
}

type notificationData struct {
	Name           string
	KindLabel      string
	Number         string
	Date           string
	Reason         string
	PreviousStatus string
	CurrentStatus  string
	Quantity       int
}

// NotificationService emails students about their requests. It never fails its caller.
type NotificationService struct {
	mailer   mail.Mailer
	catalog  *mail.Catalog
	metrics  *MetricsService
	logger   *zap.Logger
	location *time.Location
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(mailer mail.Mailer, catalog *mail.Catalog, metrics *MetricsService, location *time.Location, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if location == nil {
		location = time.UTC
	}
	return &NotificationService{mailer: mailer, catalog: catalog, metrics: metrics, logger: logger, location: location}
}

// NotifyStatusChange tells the student their request moved and reports whether the mail went out.
func (s *NotificationService) NotifyStatusChange(ctx context.Context, request models.RequestSummary, student models.StudentSummary, event models.StatusEvent) bool {
	at := event.At
	if at.IsZero() {
		at = time.Now()
	}
	data := notificationData{
		Name:           student.FullName,
		KindLabel:      request.Kind.Label(),
		Number:         request.Number,
		Date:           at.In(s.location).Format(notifyDateFmt),
		Reason:         event.Reason,
		PreviousStatus: event.Previous.Label(),
		CurrentStatus:  event.Current.Label(),
		Quantity:       request.Quantity,
	}
	return s.dispatch(ctx, string(event.Current), student, data)
}

// NotifyCreated confirms a newly filed request.
func (s *NotificationService) NotifyCreated(ctx context.Context, request models.RequestSummary, student models.StudentSummary) bool {
	return s.dispatch(ctx, createdTemplate, student, s.createdData(request, student))
}

// HandleJob delivers a queued creation confirmation. Only transport failures are worth a retry.
func (s *NotificationService) HandleJob(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(CreatedNotification)
	if !ok || job.Kind != CreatedNotificationJob {
		return jobs.Permanent(fmt.Errorf("unexpected job %s (%T)", job.Kind, job.Payload))
	}
	err := s.send(ctx, createdTemplate, payload.Student, s.createdData(payload.Request, payload.Student))
	if errors.Is(err, errNotificationSkipped) {
		return jobs.Permanent(err)
	}
	return err
}

func (s *NotificationService) createdData(request models.RequestSummary, student models.StudentSummary) notificationData {
	return notificationData{
		Name:          student.FullName,
		KindLabel:     request.Kind.Label(),
		Number:        request.Number,
		Date:          request.RequestedAt.In(s.location).Format(notifyDateFmt),
		CurrentStatus: models.StatusPending.Label(),
		Quantity:      request.Quantity,
	}
}

func (s *NotificationService) dispatch(ctx context.Context, template string, student models.StudentSummary, data notificationData) bool {
	return s.send(ctx, template, student, data) == nil
}

func (s *NotificationService) send(ctx context.Context, template string, student models.StudentSummary, data notificationData) (err error) {
	if s.catalog != nil && !s.catalog.Has(template) {
		template = mail.DefaultTemplate
	}
	log := logger.FromContext(ctx, s.logger).With(zap.String("numero", data.Number), zap.String("template", template))

	defer func() {
		if r := recover(); r != nil {
			log.Error("notification panicked", zap.Any("panic", r))
			err = fmt.Errorf("%w: transport panicked", errNotificationSkipped)
		}
		s.metrics.RecordNotification(template, err == nil)
	}()

	if strings.TrimSpace(student.Email) == "" {
		log.Warn("notification skipped, student has no email")
		return errNotificationSkipped
	}
	if s.mailer == nil || s.catalog == nil {
		log.Warn("notification skipped, mail is not configured")
		return errNotificationSkipped
	}

	subject, body, err := s.catalog.Render(template, data)
	if err != nil {
		s.logFailure(log, err)
		return fmt.Errorf("%w: %v", errNotificationSkipped, err)
	}
	if err := s.mailer.Send(ctx, mail.Message{To: student.Email, ToName: student.FullName, Subject: subject, Text: body}); err != nil {
		return s.logFailure(log, err)
	}
	log.Info("notification sent", zap.String("to", student.Email))
	return nil
}

func (s *NotificationService) logFailure(log *zap.Logger, err error) error {
	dispatchErr := appErrors.Wrap(err, appErrors.ErrDispatch.Code, appErrors.ErrDispatch.Status, "failed to send notification")
	log.Error("notification failed", zap.String("code", dispatchErr.Code), zap.Error(dispatchErr))
	return dispatchErr
}
