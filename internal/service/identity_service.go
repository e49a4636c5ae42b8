package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-service/internal/auth"
	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/repository"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

// Profile is the public view of a user exposed to peer services.
// It never carries the digest or the role.
type Profile struct {
	ID    string
	Name  string
	Email string
}

// IdentityService owns the credential lifecycle: registration, login and
// lookup by id. Token encode/decode lives in the TokenManager it holds.
type IdentityService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	profiles   *ProfileCache
	bcryptCost int
	logger     *zap.Logger
}

// IdentityDependencies bundles collaborators for the service.
type IdentityDependencies struct {
	UserRepo     repository.UserRepository
	ProfileCache *ProfileCache
	Logger       *zap.Logger
}

// NewIdentityService builds the service.
func NewIdentityService(cfg config.Config, deps IdentityDependencies) *IdentityService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityService{
		users:      deps.UserRepo,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		profiles:   deps.ProfileCache,
		bcryptCost: cfg.Auth.BcryptCost,
		logger:     logger,
	}
}

// Register creates a new identity. Duplicate emails fail with a conflict
// and leave the store untouched; a registration that fails never issues
// a token.
func (s *IdentityService) Register(ctx context.Context, name, email, password, role string) (*domain.User, string, time.Time, error) {
	parsedRole, ok := domain.ParseRole(role)
	if !ok {
		return nil, "", time.Time{}, apperrors.NewValidationError("unknown role", map[string]any{"role": role})
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, "", time.Time{}, apperrors.NewConflict("user already exists with the given email", nil)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, "", time.Time{}, apperrors.NewStoreUnavailable(err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         parsedRole,
	}
	if err := s.users.Create(ctx, user); err != nil {
		// The store's uniqueness constraint is the final authority; a
		// racing duplicate surfaces here as the same conflict.
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, "", time.Time{}, apperrors.NewConflict("user already exists with the given email", nil)
		}
		return nil, "", time.Time{}, apperrors.NewStoreUnavailable(err)
	}

	token, exp, err := s.tokenMgr.Generate(user)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, token, exp, nil
}

// Login authenticates an identity by email and secret. Unknown email and
// wrong secret produce the identical unauthorized failure so callers
// cannot enumerate accounts. Login never mutates the store.
func (s *IdentityService) Login(ctx context.Context, email, password string) (*domain.User, string, time.Time, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, apperrors.NewStoreUnavailable(err)
	}

	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}

	token, exp, err := s.tokenMgr.Generate(user)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return user, token, exp, nil
}

// GetUserByID resolves a user id to its public profile. Peer services
// call this to attach display data to a token subject. Reads through the
// profile cache when one is configured; the store stays authoritative.
func (s *IdentityService) GetUserByID(ctx context.Context, id string) (*Profile, error) {
	if profile, ok := s.profiles.Get(ctx, id); ok {
		return profile, nil
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
		}
		return nil, apperrors.NewStoreUnavailable(err)
	}

	profile := &Profile{ID: user.ID, Name: user.Name, Email: user.Email}
	s.profiles.Set(ctx, profile)
	return profile, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *IdentityService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
