package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/auth-service/internal/domain"
	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

func newProtectedApp(t *testing.T, tm *TokenManager, roles ...domain.Role) *fiber.App {
	t.Helper()

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{"code": domainErr.Code})
		},
	})

	mw := NewMiddleware(tm)
	handlers := []fiber.Handler{mw.Handle}
	if len(roles) > 0 {
		handlers = append(handlers, RequireRole(roles...))
	}
	handlers = append(handlers, func(c *fiber.Ctx) error {
		claims, ok := ClaimsFromContext(c)
		require.True(t, ok)
		return c.SendString(claims.Subject)
	})

	app.Get("/protected", handlers...)
	return app
}

func doProtected(t *testing.T, app *fiber.App, authHeader string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func TestMiddleware_ValidToken(t *testing.T) {
	t.Parallel()

	tm := NewTokenManager("super-secret", 60)
	token, _, err := tm.Generate(testUser())
	require.NoError(t, err)

	resp := doProtected(t, newProtectedApp(t, tm), "Bearer "+token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMiddleware_MissingHeader(t *testing.T) {
	t.Parallel()

	tm := NewTokenManager("super-secret", 60)

	resp := doProtected(t, newProtectedApp(t, tm), "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMiddleware_ForeignKeyToken(t *testing.T) {
	t.Parallel()

	tm := NewTokenManager("super-secret", 60)
	foreign := NewTokenManager("other-secret", 60)
	token, _, err := foreign.Generate(testUser())
	require.NoError(t, err)

	resp := doProtected(t, newProtectedApp(t, tm), "Bearer "+token)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRequireRole(t *testing.T) {
	t.Parallel()

	tm := NewTokenManager("super-secret", 60)
	token, _, err := tm.Generate(testUser())
	require.NoError(t, err)

	adminOnly := newProtectedApp(t, tm, domain.RoleAdmin)
	resp := doProtected(t, adminOnly, "Bearer "+token)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	userAllowed := newProtectedApp(t, tm, domain.RoleUser, domain.RoleAdmin)
	resp = doProtected(t, userAllowed, "Bearer "+token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
