package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/scolarite-api/internal/models"
)

// AttestationRepository persists attestation requests.
type AttestationRepository struct {
	lifecycleTable
	seq *SequenceGenerator
}

// NewAttestationRepository constructs an AttestationRepository.
func NewAttestationRepository(db *sqlx.DB, seq *SequenceGenerator) *AttestationRepository {
	return &AttestationRepository{
		lifecycleTable: newLifecycleTable(db, models.KindAttestation, "attestation_type, academic_year, quantity, unit_price, total_paid"),
		seq:            seq,
	}
}

// Create assigns the next number to attestation and inserts it.
func (r *AttestationRepository) Create(ctx context.Context, attestation *models.Attestation) error {
	const query = `INSERT INTO attestation_requests (id, public_number, student_id, status, attestation_type, academic_year, quantity, unit_price, total_paid, requested_at)
        VALUES (:id, :public_number, :student_id, :status, :attestation_type, :academic_year, :quantity, :unit_price, :total_paid, :requested_at)`
	return r.insert(ctx, r.seq, func(id int64, number string) interface{} {
		attestation.ID = id
		attestation.PublicNumber = number
		return attestation
	}, query)
}

// FindByID returns one attestation request.
func (r *AttestationRepository) FindByID(ctx context.Context, id int64) (*models.Attestation, error) {
	var attestation models.Attestation
	if err := r.db.GetContext(ctx, &attestation, r.byIDQuery(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find attestation request: %w", err)
	}
	return &attestation, nil
}

// FindRecord returns one attestation as a RequestRecord.
func (r *AttestationRepository) FindRecord(ctx context.Context, id int64) (models.RequestRecord, error) {
	attestation, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return *attestation, nil
}

// List returns attestations matching filter, newest first.
func (r *AttestationRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.RequestRecord, error) {
	query, args := r.listQuery(filter)
	records, err := selectRecords[models.Attestation](ctx, r.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attestation requests: %w", err)
	}
	return records, nil
}

// FindByNumber matches the public number case-insensitively.
func (r *AttestationRepository) FindByNumber(ctx context.Context, number string) ([]models.RequestRecord, error) {
	records, err := selectRecords[models.Attestation](ctx, r.db, r.byNumberQuery(), number)
	if err != nil {
		return nil, fmt.Errorf("find attestation by number: %w", err)
	}
	return records, nil
}
