package api

import (
	"errors"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/courier/pkg/account"
	"github.com/papercomputeco/courier/pkg/search"
	"github.com/papercomputeco/courier/pkg/storage"
)

// LoginResponse is returned by a successful login. The token is also set as
// the session cookie.
type LoginResponse struct {
	Detail    string    `json:"detail"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleRegister handles POST /register.
func (s *Server) handleRegister(c *fiber.Ctx) error {
	if currentUser(c) != nil {
		return detail(c, fiber.StatusBadRequest, detailAlreadyLoggedIn)
	}

	var reg account.Registration
	if err := c.BodyParser(&reg); err != nil {
		return detail(c, fiber.StatusBadRequest, detailMalformed)
	}

	user, err := account.NewUser(reg)
	if err != nil {
		return s.writeError(c, err)
	}

	err = s.driver.CreateUser(c.UserContext(), user)
	if errors.Is(err, storage.ErrAlreadyExists) {
		return s.writeError(c, account.ValidationErrors{
			"username": {"A user with that username already exists."},
		})
	}
	if err != nil {
		return s.writeError(c, err)
	}

	s.logger.Info("user registered", "username", user.Username)
	return detail(c, fiber.StatusOK, detailSuccess)
}

// handleLogin handles POST /login.
func (s *Server) handleLogin(c *fiber.Ctx) error {
	if currentUser(c) != nil {
		return detail(c, fiber.StatusBadRequest, detailAlreadyLoggedIn)
	}

	var creds account.Credentials
	if err := c.BodyParser(&creds); err != nil {
		return detail(c, fiber.StatusBadRequest, detailMalformed)
	}
	if err := creds.Validate(); err != nil {
		return s.writeError(c, err)
	}

	ctx := c.UserContext()
	user, err := s.driver.GetUser(ctx, creds.Username)
	if errors.Is(err, storage.ErrNotFound) {
		return s.writeError(c, account.ErrInvalidCredentials)
	}
	if err != nil {
		return s.writeError(c, err)
	}
	if !user.CheckPassword(creds.Password) {
		return s.writeError(c, account.ErrInvalidCredentials)
	}

	sess := account.NewSession(user.Username, s.config.SessionTTL)
	if err := s.driver.CreateSession(ctx, sess); err != nil {
		return s.writeError(c, err)
	}

	c.Cookie(&fiber.Cookie{
		Name:     SessionCookie,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})

	return c.JSON(LoginResponse{
		Detail:    detailSuccess,
		Token:     sess.Token,
		ExpiresAt: sess.ExpiresAt,
	})
}

// handleLogout handles POST /logout.
func (s *Server) handleLogout(c *fiber.Ctx) error {
	if token, ok := c.Locals(localToken).(string); ok {
		if err := s.driver.DeleteSession(c.UserContext(), token); err != nil {
			return s.writeError(c, err)
		}
	}
	c.ClearCookie(SessionCookie)
	return detail(c, fiber.StatusOK, detailSuccess)
}

// handleMe handles GET /users/me.
func (s *Server) handleMe(c *fiber.Ctx) error {
	return c.JSON(newUserResponse(currentUser(c)))
}

// handleGetUser handles GET /users/:username.
func (s *Server) handleGetUser(c *fiber.Ctx) error {
	user, err := s.driver.GetUser(c.UserContext(), c.Params("username"))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(newUserResponse(user))
}

// handleSuggest handles GET /users/suggest/:query. Users are ranked by the
// earliest position of the query in their username or names.
func (s *Server) handleSuggest(c *fiber.Ctx) error {
	req, err := s.parsePage(c)
	if err != nil {
		return err
	}

	query, err := url.PathUnescape(c.Params("query"))
	if err != nil {
		return detail(c, fiber.StatusBadRequest, detailMalformed)
	}

	ctx := c.UserContext()
	users, err := s.driver.ListUsers(ctx)
	if err != nil {
		return s.writeError(c, err)
	}

	byName := make(map[string]*account.User, len(users))
	candidates := make([]search.Candidate, len(users))
	for i, u := range users {
		byName[u.Username] = u
		candidates[i] = u.Candidate()
	}

	matches, err := search.SearchContext(ctx, query, candidates, search.DefaultSchema)
	if err != nil {
		return s.writeError(c, err)
	}

	results := make([]UserResponse, len(matches))
	for i, m := range matches {
		results[i] = newUserResponse(byName[m.Candidate.Key])
	}

	page, err := paginate(c, req, results)
	if err != nil {
		return err
	}
	return c.JSON(page)
}
