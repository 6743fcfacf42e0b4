package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/credential-service/internal/domain"
	"github.com/spec-kit/credential-service/internal/service"
)

// UsersHandler exposes the user listing endpoint.
type UsersHandler struct {
	auth *service.AuthService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(authService *service.AuthService) *UsersHandler {
	return &UsersHandler{auth: authService}
}

// List handles GET /users. Bearer-gated at the router.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	users, err := h.auth.ListUsers(c.Context())
	if err != nil {
		return err
	}

	views := make([]domain.PublicUser, 0, len(users))
	for _, user := range users {
		views = append(views, user.Public())
	}
	return c.JSON(views)
}
