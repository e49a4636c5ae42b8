package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/auth-service/internal/api/dto"
	"github.com/spec-kit/auth-service/internal/service"
)

// UsersHandler exposes the internal user lookup consumed by peer services.
type UsersHandler struct {
	identity *service.IdentityService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(identity *service.IdentityService) *UsersHandler {
	return &UsersHandler{identity: identity}
}

// GetByID handles GET /api/users/:userId.
func (h *UsersHandler) GetByID(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if userID == "" {
		return fiber.NewError(http.StatusBadRequest, "user id required")
	}

	profile, err := h.identity.GetUserByID(c.UserContext(), userID)
	if err != nil {
		return err
	}

	return c.JSON(dto.ProfileResponse{
		ID:       profile.ID,
		Username: profile.Name,
		Email:    profile.Email,
	})
}
