package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/scolarite-api/internal/models"
)

// TranscriptRepository persists transcript requests.
type TranscriptRepository struct {
	lifecycleTable
	seq *SequenceGenerator
}

// NewTranscriptRepository constructs a TranscriptRepository.
func NewTranscriptRepository(db *sqlx.DB, seq *SequenceGenerator) *TranscriptRepository {
	return &TranscriptRepository{lifecycleTable: newLifecycleTable(db, models.KindTranscript, "levels, academic_years"), seq: seq}
}

// Create assigns the next number to transcript and inserts it.
func (r *TranscriptRepository) Create(ctx context.Context, transcript *models.Transcript) error {
	const query = `INSERT INTO transcript_requests (id, public_number, student_id, status, levels, academic_years, requested_at)
        VALUES (:id, :public_number, :student_id, :status, :levels, :academic_years, :requested_at)`
	return r.insert(ctx, r.seq, func(id int64, number string) interface{} {
		transcript.ID = id
		transcript.PublicNumber = number
		return transcript
	}, query)
}

// FindByID returns one transcript request.
func (r *TranscriptRepository) FindByID(ctx context.Context, id int64) (*models.Transcript, error) {
	var transcript models.Transcript
	if err := r.db.GetContext(ctx, &transcript, r.byIDQuery(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find transcript request: %w", err)
	}
	return &transcript, nil
}

// FindRecord returns one transcript as a RequestRecord.
func (r *TranscriptRepository) FindRecord(ctx context.Context, id int64) (models.RequestRecord, error) {
	transcript, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return *transcript, nil
}

// List returns transcripts matching filter, newest first.
func (r *TranscriptRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.RequestRecord, error) {
	query, args := r.listQuery(filter)
	records, err := selectRecords[models.Transcript](ctx, r.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transcript requests: %w", err)
	}
	return records, nil
}

// FindByNumber matches the public number case-insensitively.
func (r *TranscriptRepository) FindByNumber(ctx context.Context, number string) ([]models.RequestRecord, error) {
	records, err := selectRecords[models.Transcript](ctx, r.db, r.byNumberQuery(), number)
	if err != nil {
		return nil, fmt.Errorf("find transcript by number: %w", err)
	}
	return records, nil
}
