package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/scolarite-api/internal/models"
	appErrors "github.com/noah-isme/scolarite-api/pkg/errors"
)

type identityRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindStudentByUserID(ctx context.Context, userID string) (*models.StudentProfile, error)
	FindStudentsByIDs(ctx context.Context, ids []string) (map[string]models.StudentProfile, error)
}

// IdentityConfig defines token issuance settings.
type IdentityConfig struct {
	Secret string
	Expiry time.Duration
	Issuer string
}

// IdentityService authenticates accounts and resolves student owners.
type IdentityService struct {
	repo      identityRepository
	validator *validator.Validate
	logger    *zap.Logger
	config    IdentityConfig
	now       func() time.Time
}

// NewIdentityService constructs an IdentityService instance.
func NewIdentityService(repo identityRepository, validate *validator.Validate, logger *zap.Logger, config IdentityConfig) *IdentityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.Expiry <= 0 {
		config.Expiry = 24 * time.Hour
	}
	return &IdentityService{repo: repo, validator: validate, logger: logger, config: config, now: time.Now}
}

// Login checks credentials and issues an access token.
func (s *IdentityService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.repo.FindByEmail(ctx, strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}
	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "invalid email or password")
	}

	token, issuedAt, err := s.issueToken(user)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	info, err := s.userInfo(ctx, user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user logged in", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))

	return &models.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.config.Expiry.Seconds()),
		User:        *info,
		IssuedAt:    issuedAt,
	}, nil
}

// Me returns the account behind claims with its student block when applicable.
func (s *IdentityService) Me(ctx context.Context, claims *models.JWTClaims) (*models.UserInfo, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	user, err := s.repo.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return s.userInfo(ctx, user)
}

// ValidateToken parses and validates an access token returning the claims.
func (s *IdentityService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// StudentForUser resolves the student profile of the calling account.
func (s *IdentityService) StudentForUser(ctx context.Context, userID string) (*models.StudentProfile, error) {
	profile, err := s.repo.FindStudentByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "no student profile is attached to this account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student profile")
	}
	return profile, nil
}

// Owners resolves each distinct student id once. Unknown ids are omitted.
func (s *IdentityService) Owners(ctx context.Context, studentIDs []string) (map[string]models.StudentSummary, error) {
	seen := make(map[string]struct{}, len(studentIDs))
	unique := make([]string, 0, len(studentIDs))
	for _, id := range studentIDs {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	profiles, err := s.repo.FindStudentsByIDs(ctx, unique)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	owners := make(map[string]models.StudentSummary, len(profiles))
	for id, profile := range profiles {
		owners[id] = profile.Summary()
	}
	return owners, nil
}

func (s *IdentityService) userInfo(ctx context.Context, user *models.User) (*models.UserInfo, error) {
	info := &models.UserInfo{ID: user.ID, Email: user.Email, FullName: user.FullName(), Role: user.Role}
	if user.Role != models.RoleStudent {
		return info, nil
	}
	profile, err := s.repo.FindStudentByUserID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return info, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student profile")
	}
	summary := profile.Summary()
	info.Student = &summary
	return info, nil
}

func (s *IdentityService) issueToken(user *models.User) (string, time.Time, error) {
	issuedAt := s.now().UTC()
	claims := &models.JWTClaims{
		UserID:   user.ID,
		Role:     user.Role,
		Email:    user.Email,
		FullName: user.FullName(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.Expiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, issuedAt, nil
}
