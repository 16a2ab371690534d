package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/scolarite-api/internal/models"
)

const studentProfileSelect = `SELECT s.id, s.user_id, s.registration_number, s.contact, u.email, u.last_name, u.first_names
        FROM students s JOIN users u ON u.id = s.user_id`

// UserRepository reads accounts and the student profiles attached to them.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address, ignoring case.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	const query = `SELECT id, email, password_hash, last_name, first_names, role, active, created_at, updated_at FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	const query = `SELECT id, email, password_hash, last_name, first_names, role, active, created_at, updated_at FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// FindStudentByUserID returns the student profile owned by a user account.
func (r *UserRepository) FindStudentByUserID(ctx context.Context, userID string) (*models.StudentProfile, error) {
	query := studentProfileSelect + ` WHERE s.user_id = $1 LIMIT 1`
	var profile models.StudentProfile
	if err := r.db.GetContext(ctx, &profile, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find student by user: %w", err)
	}
	return &profile, nil
}

// FindStudentsByIDs loads the profiles for ids in one query.
func (r *UserRepository) FindStudentsByIDs(ctx context.Context, ids []string) (map[string]models.StudentProfile, error) {
	result := make(map[string]models.StudentProfile, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	query, args, err := sqlx.In(studentProfileSelect+` WHERE s.id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build student lookup: %w", err)
	}
	query = r.db.Rebind(query)

	var profiles []models.StudentProfile
	if err := r.db.SelectContext(ctx, &profiles, query, args...); err != nil {
		return nil, fmt.Errorf("find students: %w", err)
	}
	for _, profile := range profiles {
		result[profile.ID] = profile
	}
	return result, nil
}
