package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/auth-service/internal/config"
	"github.com/spec-kit/auth-service/internal/domain"
	"github.com/spec-kit/auth-service/internal/repository"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

// fakeUserRepo is an in-memory stand-in for the credential store. It
// enforces the email uniqueness constraint the way the database does.
type fakeUserRepo struct {
	byID    map[string]*domain.User
	byEmail map[string]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byID:    make(map[string]*domain.User),
		byEmail: make(map[string]*domain.User),
	}
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	if _, exists := r.byEmail[user.Email]; exists {
		return repository.ErrDuplicateEmail
	}
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now()
	stored := *user
	r.byID[user.ID] = &stored
	r.byEmail[user.Email] = &stored
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	user, ok := r.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

// failingUserRepo simulates an unreachable store.
type failingUserRepo struct {
	err error
}

func (r *failingUserRepo) Create(context.Context, *domain.User) error { return r.err }
func (r *failingUserRepo) GetByID(context.Context, string) (*domain.User, error) {
	return nil, r.err
}
func (r *failingUserRepo) GetByEmail(context.Context, string) (*domain.User, error) {
	return nil, r.err
}

func testConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{
			JWTSecret:             "test-secret",
			AccessTokenTTLMinutes: 60,
			BcryptCost:            bcrypt.MinCost,
		},
	}
}

func newTestService(repo repository.UserRepository) *IdentityService {
	return NewIdentityService(testConfig(), IdentityDependencies{UserRepo: repo})
}

func domainCode(t *testing.T, err error) *apperrors.DomainError {
	t.Helper()
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	return domainErr
}

func TestRegister_Success(t *testing.T) {
	t.Parallel()

	repo := newFakeUserRepo()
	svc := newTestService(repo)

	user, token, exp, err := svc.Register(context.Background(), "Test User", "test@example.com", "password123", "")
	require.NoError(t, err)
	require.NotEmpty(t, user.ID)
	require.Equal(t, domain.RoleUser, user.Role)
	require.True(t, exp.After(time.Now()))
	require.Len(t, repo.byEmail, 1)

	// The freshly issued token must verify and carry the identity.
	claims, err := svc.TokenManager().Parse(token)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.Subject)
	require.Equal(t, domain.RoleUser, claims.Role)
	require.Equal(t, "test@example.com", claims.Email)

	// The digest is never the plaintext.
	stored := repo.byEmail["test@example.com"]
	require.NotEqual(t, "password123", stored.PasswordHash)
}

func TestRegister_ExplicitAdminRole(t *testing.T) {
	t.Parallel()

	svc := newTestService(newFakeUserRepo())

	user, _, _, err := svc.Register(context.Background(), "Admin", "admin@example.com", "password123", "ADMIN")
	require.NoError(t, err)
	require.Equal(t, domain.RoleAdmin, user.Role)
}

func TestRegister_UnknownRole(t *testing.T) {
	t.Parallel()

	repo := newFakeUserRepo()
	svc := newTestService(repo)

	_, _, _, err := svc.Register(context.Background(), "X", "x@example.com", "password123", "SUPERUSER")
	require.Equal(t, "VALIDATION_FAILED", domainCode(t, err).Code)
	require.Empty(t, repo.byEmail)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	t.Parallel()

	repo := newFakeUserRepo()
	svc := newTestService(repo)

	_, _, _, err := svc.Register(context.Background(), "Test User", "test@example.com", "password123", "")
	require.NoError(t, err)

	_, token, _, err := svc.Register(context.Background(), "Other", "test@example.com", "different", "")
	require.Equal(t, "CONFLICT", domainCode(t, err).Code)
	require.Empty(t, token)
	require.Len(t, repo.byEmail, 1)
}

func TestRegister_RacingDuplicateSurfacesAsConflict(t *testing.T) {
	t.Parallel()

	// The existence check misses but the insert hits the constraint, as
	// happens when two registrations race.
	repo := &racingRepo{fakeUserRepo: newFakeUserRepo()}
	svc := newTestService(repo)

	_, _, _, err := svc.Register(context.Background(), "Test User", "test@example.com", "password123", "")
	require.Equal(t, "CONFLICT", domainCode(t, err).Code)
}

type racingRepo struct {
	*fakeUserRepo
}

func (r *racingRepo) GetByEmail(context.Context, string) (*domain.User, error) {
	return nil, repository.ErrNotFound
}

func (r *racingRepo) Create(context.Context, *domain.User) error {
	return repository.ErrDuplicateEmail
}

func TestRegister_StoreUnavailable(t *testing.T) {
	t.Parallel()

	svc := newTestService(&failingUserRepo{err: errors.New("connection refused")})

	_, _, _, err := svc.Register(context.Background(), "Test User", "test@example.com", "password123", "")
	require.Equal(t, "STORE_UNAVAILABLE", domainCode(t, err).Code)
}

func TestLogin_Success(t *testing.T) {
	t.Parallel()

	repo := newFakeUserRepo()
	svc := newTestService(repo)

	registered, _, _, err := svc.Register(context.Background(), "Test User", "test@example.com", "password123", "")
	require.NoError(t, err)

	user, token, _, err := svc.Login(context.Background(), "test@example.com", "password123")
	require.NoError(t, err)
	require.Equal(t, registered.ID, user.ID)

	claims, err := svc.TokenManager().Parse(token)
	require.NoError(t, err)
	require.Equal(t, registered.ID, claims.Subject)
}

func TestLogin_UnknownEmailAndWrongPasswordAreIndistinguishable(t *testing.T) {
	t.Parallel()

	repo := newFakeUserRepo()
	svc := newTestService(repo)

	_, _, _, err := svc.Register(context.Background(), "Test User", "test@example.com", "password123", "")
	require.NoError(t, err)

	_, _, _, unknownErr := svc.Login(context.Background(), "nobody@example.com", "password123")
	_, _, _, wrongErr := svc.Login(context.Background(), "test@example.com", "wrong")

	unknown := domainCode(t, unknownErr)
	wrong := domainCode(t, wrongErr)
	require.Equal(t, "UNAUTHORIZED", unknown.Code)
	require.Equal(t, unknown.Code, wrong.Code)
	require.Equal(t, unknown.Message, wrong.Message)
	require.Equal(t, unknown.HTTPStatus, wrong.HTTPStatus)
}

func TestLogin_StoreUnavailableIsNotUnauthorized(t *testing.T) {
	t.Parallel()

	svc := newTestService(&failingUserRepo{err: errors.New("connection refused")})

	_, _, _, err := svc.Login(context.Background(), "test@example.com", "password123")
	require.Equal(t, "STORE_UNAVAILABLE", domainCode(t, err).Code)
}

func TestGetUserByID(t *testing.T) {
	t.Parallel()

	repo := newFakeUserRepo()
	svc := newTestService(repo)

	user, _, _, err := svc.Register(context.Background(), "Test User", "test@example.com", "password123", "")
	require.NoError(t, err)

	profile, err := svc.GetUserByID(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, &Profile{ID: user.ID, Name: "Test User", Email: "test@example.com"}, profile)

	_, err = svc.GetUserByID(context.Background(), "missing-id")
	require.Equal(t, "NOT_FOUND", domainCode(t, err).Code)
}

func TestGetUserByID_StoreUnavailable(t *testing.T) {
	t.Parallel()

	svc := newTestService(&failingUserRepo{err: errors.New("connection refused")})

	_, err := svc.GetUserByID(context.Background(), "any-id")
	require.Equal(t, "STORE_UNAVAILABLE", domainCode(t, err).Code)
}

// TestCredentialLifecycle walks the full register, conflict, login and
// lookup sequence end to end.
func TestCredentialLifecycle(t *testing.T) {
	t.Parallel()

	repo := newFakeUserRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	user, token, _, err := svc.Register(ctx, "Test User", "test@example.com", "password123", "")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, domain.RoleUser, user.Role)
	require.Len(t, repo.byEmail, 1)

	_, _, _, err = svc.Register(ctx, "Test User", "test@example.com", "password123", "")
	require.Equal(t, "CONFLICT", domainCode(t, err).Code)
	require.Len(t, repo.byEmail, 1)

	_, token, _, err = svc.Login(ctx, "test@example.com", "password123")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	_, _, _, err = svc.Login(ctx, "test@example.com", "wrong")
	require.Equal(t, "UNAUTHORIZED", domainCode(t, err).Code)

	profile, err := svc.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "Test User", profile.Name)
	require.Equal(t, "test@example.com", profile.Email)
}
