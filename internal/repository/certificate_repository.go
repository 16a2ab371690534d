package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/scolarite-api/internal/models"
)

// CertificateRepository persists school certificate requests.
type CertificateRepository struct {
	lifecycleTable
	seq *SequenceGenerator
}

// NewCertificateRepository constructs a CertificateRepository.
func NewCertificateRepository(db *sqlx.DB, seq *SequenceGenerator) *CertificateRepository {
	return &CertificateRepository{
		lifecycleTable: newLifecycleTable(db, models.KindCertificate, "father_name, mother_name, birth_date, birth_place, quantity"),
		seq:            seq,
	}
}

// Create assigns the next number to certificate and inserts it.
func (r *CertificateRepository) Create(ctx context.Context, certificate *models.Certificate) error {
	const query = `INSERT INTO certificate_requests (id, public_number, student_id, status, father_name, mother_name, birth_date, birth_place, quantity, requested_at)
        VALUES (:id, :public_number, :student_id, :status, :father_name, :mother_name, :birth_date, :birth_place, :quantity, :requested_at)`
	return r.insert(ctx, r.seq, func(id int64, number string) interface{} {
		certificate.ID = id
		certificate.PublicNumber = number
		return certificate
	}, query)
}

// FindByID returns one certificate request.
func (r *CertificateRepository) FindByID(ctx context.Context, id int64) (*models.Certificate, error) {
	var certificate models.Certificate
	if err := r.db.GetContext(ctx, &certificate, r.byIDQuery(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find certificate request: %w", err)
	}
	return &certificate, nil
}

// FindRecord returns one certificate as a RequestRecord.
func (r *CertificateRepository) FindRecord(ctx context.Context, id int64) (models.RequestRecord, error) {
	certificate, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return *certificate, nil
}

// List returns certificates matching filter, newest first.
func (r *CertificateRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.RequestRecord, error) {
	query, args := r.listQuery(filter)
	records, err := selectRecords[models.Certificate](ctx, r.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list certificate requests: %w", err)
	}
	return records, nil
}

// FindByNumber matches the public number case-insensitively.
func (r *CertificateRepository) FindByNumber(ctx context.Context, number string) ([]models.RequestRecord, error) {
	records, err := selectRecords[models.Certificate](ctx, r.db, r.byNumberQuery(), number)
	if err != nil {
		return nil, fmt.Errorf("find certificate by number: %w", err)
	}
	return records, nil
}
