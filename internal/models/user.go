package models

import (
	"strings"
	"time"
)

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleStudent UserRole = "etudiant"
	RoleStaff   UserRole = "scolarite"
)

// User represents an application user stored in the users table.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	LastName     string    `db:"last_name" json:"nom"`
	FirstNames   string    `db:"first_names" json:"prenoms"`
	Role         UserRole  `db:"role" json:"role"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// FullName joins last name and first names the way official documents print them.
func (u User) FullName() string {
	return strings.TrimSpace(u.LastName + " " + u.FirstNames)
}

// StudentProfile joins a student row with its user.
type StudentProfile struct {
	ID           string `db:"id" json:"id"`
	UserID       string `db:"user_id" json:"user_id"`
	Registration string `db:"registration_number" json:"immatricule"`
	Contact      string `db:"contact" json:"contact"`
	Email        string `db:"email" json:"email"`
	LastName     string `db:"last_name" json:"nom"`
	FirstNames   string `db:"first_names" json:"prenoms"`
}

// Summary converts the profile into the owner block used in listings.
func (p StudentProfile) Summary() StudentSummary {
	return StudentSummary{
		StudentID:    p.ID,
		UserID:       p.UserID,
		Registration: p.Registration,
		FullName:     strings.TrimSpace(p.LastName + " " + p.FirstNames),
		Email:        p.Email,
		Contact:      p.Contact,
	}
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
