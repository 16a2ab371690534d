package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/scolarite-api/internal/models"
	appErrors "github.com/noah-isme/scolarite-api/pkg/errors"
	"github.com/noah-isme/scolarite-api/pkg/mail"
)

type fakeSource struct {
	kind       models.RequestKind
	records    []models.RequestRecord
	counts     models.StatusCounts
	between    func(from, to time.Time) int
	history    []models.StatusHistory
	listErr    error
	filters    []models.RequestFilter
	changes    []models.StatusChange
	numbers    []string
	betweenLog [][2]time.Time
}

func (f *fakeSource) Kind() models.RequestKind { return f.kind }

func (f *fakeSource) List(_ context.Context, filter models.RequestFilter) ([]models.RequestRecord, error) {
	f.filters = append(f.filters, filter)
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.RequestRecord
	for _, r := range f.records {
		env := r.Envelope()
		if filter.StudentID != "" && env.StudentID != filter.StudentID {
			continue
		}
		if filter.Status != nil && env.Status != *filter.Status {
			continue
		}
		if filter.From != nil && env.RequestedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !env.RequestedAt.Before(*filter.To) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeSource) FindRecord(_ context.Context, id int64) (models.RequestRecord, error) {
	for _, r := range f.records {
		if r.Envelope().ID == id {
			return r, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSource) FindByNumber(_ context.Context, number string) ([]models.RequestRecord, error) {
	f.numbers = append(f.numbers, number)
	var out []models.RequestRecord
	for _, r := range f.records {
		if strings.EqualFold(r.Number(), number) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeSource) Transition(_ context.Context, id int64, change models.StatusChange) (models.Lifecycle, models.Lifecycle, error) {
	f.changes = append(f.changes, change)
	for i, r := range f.records {
		before := r.Envelope()
		if before.ID != id {
			continue
		}
		after, err := before.Apply(change.Next, change.Reason, change.At)
		if err != nil {
			return before, after, err
		}
		f.records[i] = withLifecycle(r, after)
		return before, after, nil
	}
	return models.Lifecycle{}, models.Lifecycle{}, sql.ErrNoRows
}

func (f *fakeSource) History(context.Context, int64) ([]models.StatusHistory, error) {
	return f.history, nil
}

func (f *fakeSource) CountByStatus(context.Context) (models.StatusCounts, error) {
	if f.counts != nil {
		return f.counts, nil
	}
	counts := models.NewStatusCounts()
	for _, r := range f.records {
		counts[r.CurrentStatus()]++
	}
	return counts, nil
}

func (f *fakeSource) CountRequestedBetween(_ context.Context, from, to time.Time) (int, error) {
	f.betweenLog = append(f.betweenLog, [2]time.Time{from, to})
	if f.between != nil {
		return f.between(from, to), nil
	}
	total := 0
	for _, r := range f.records {
		at := r.Envelope().RequestedAt
		if !at.Before(from) && at.Before(to) {
			total++
		}
	}
	return total, nil
}

func withLifecycle(record models.RequestRecord, l models.Lifecycle) models.RequestRecord {
	switch r := record.(type) {
	case models.Transcript:
		r.Lifecycle = l
		return r
	case models.Certificate:
		r.Lifecycle = l
		return r
	case models.Attestation:
		r.Lifecycle = l
		return r
	}
	return record
}

type fakeIdentity struct {
	profiles   map[string]models.StudentProfile // by user id
	ownerCalls [][]string
	ownersErr  error
}

func (f *fakeIdentity) StudentForUser(_ context.Context, userID string) (*models.StudentProfile, error) {
	profile, ok := f.profiles[userID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "no student profile is attached to this account")
	}
	return &profile, nil
}

func (f *fakeIdentity) Owners(_ context.Context, ids []string) (map[string]models.StudentSummary, error) {
	f.ownerCalls = append(f.ownerCalls, ids)
	if f.ownersErr != nil {
		return nil, f.ownersErr
	}
	out := map[string]models.StudentSummary{}
	for _, p := range f.profiles {
		for _, id := range ids {
			if p.ID == id {
				out[id] = p.Summary()
			}
		}
	}
	return out, nil
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{profiles: map[string]models.StudentProfile{
		"user-1": {ID: "student-1", UserID: "user-1", Registration: "2024-001", Email: "rakoto@ecole.com", LastName: "RAKOTO", FirstNames: "Jean"},
		"user-2": {ID: "student-2", UserID: "user-2", Registration: "2024-002", Email: "rasoa@ecole.com", LastName: "RASOA", FirstNames: "Marie"},
	}}
}

type fakeMailer struct {
	mu    sync.Mutex
	sent  []mail.Message
	err   error
	panic bool
}

func (f *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	if f.panic {
		panic("smtp exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

type memoryCache struct {
	entries map[string][]byte
	getErr  error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (m *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *memoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	for key := range m.entries {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.entries, key)
		}
	}
	return nil
}

var errBoom = errors.New("boom")

func studentClaims(userID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID, Role: models.RoleStudent}
}

func staffClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "staff-1", Role: models.RoleStaff}
}

func transcriptRecord(id int64, studentID string, status models.RequestStatus, requested time.Time) models.Transcript {
	return models.Transcript{
		Lifecycle:     models.Lifecycle{ID: id, PublicNumber: models.FormatPublicNumber(models.KindTranscript, id), StudentID: studentID, Status: status, RequestedAt: requested},
		Levels:        models.LevelQuantities{{Level: "L1", Quantity: 1}},
		AcademicYears: []int64{2024},
	}
}

func certificateRecord(id int64, studentID string, status models.RequestStatus, requested time.Time) models.Certificate {
	return models.Certificate{
		Lifecycle:  models.Lifecycle{ID: id, PublicNumber: models.FormatPublicNumber(models.KindCertificate, id), StudentID: studentID, Status: status, RequestedAt: requested},
		FatherName: "Rabe",
		MotherName: "Rasoa",
		Quantity:   1,
	}
}

func attestationRecord(id int64, studentID string, status models.RequestStatus, requested time.Time) models.Attestation {
	a := models.Attestation{
		Lifecycle: models.Lifecycle{ID: id, PublicNumber: models.FormatPublicNumber(models.KindAttestation, id), StudentID: studentID, Status: status, RequestedAt: requested},
		Type:      models.AttestationSuccess,
		Quantity:  1,
		UnitPrice: models.DefaultAttestationUnitPrice,
	}
	a.Recompute()
	return a
}

func appError(err error) *appErrors.Error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}
