package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/courier/pkg/account"
)

// UserResponse is the public view of a user.
type UserResponse struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func newUserResponse(u *account.User) UserResponse {
	return UserResponse{
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleHello greets the caller.
func (s *Server) handleHello(c *fiber.Ctx) error {
	return detail(c, fiber.StatusOK, "Hello world!")
}
