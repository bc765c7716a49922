package api

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/courier/pkg/account"
	"github.com/papercomputeco/courier/pkg/storage"
)

const (
	// SessionCookie carries the session token for browser clients.
	SessionCookie = "courier_session"

	localUser  = "courier.user"
	localToken = "courier.token"
)

// authenticate resolves the request's session, if any, and stores the
// caller on the context. Anonymous requests pass through.
func (s *Server) authenticate(c *fiber.Ctx) error {
	token := sessionToken(c)
	if token == "" {
		return c.Next()
	}

	ctx := c.UserContext()
	sess, err := s.driver.GetSession(ctx, token)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return c.Next()
	case err != nil:
		return s.writeError(c, err)
	}

	if sess.Expired(time.Now()) {
		if err := s.driver.DeleteSession(ctx, token); err != nil {
			s.logger.Warn("failed to delete expired session", "error", err)
		}
		return c.Next()
	}

	user, err := s.driver.GetUser(ctx, sess.Username)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return c.Next()
	case err != nil:
		return s.writeError(c, err)
	}

	c.Locals(localUser, user)
	c.Locals(localToken, token)
	return c.Next()
}

// requireUser rejects anonymous requests with 401.
func (s *Server) requireUser(c *fiber.Ctx) error {
	if currentUser(c) == nil {
		return detail(c, fiber.StatusUnauthorized, detailUnauthenticated)
	}
	return c.Next()
}

func currentUser(c *fiber.Ctx) *account.User {
	u, _ := c.Locals(localUser).(*account.User)
	return u
}

func sessionToken(c *fiber.Ctx) string {
	if token, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return c.Cookies(SessionCookie)
}
