package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/courier/pkg/account"
	"github.com/papercomputeco/courier/pkg/dialogue"
	"github.com/papercomputeco/courier/pkg/picture"
	"github.com/papercomputeco/courier/pkg/storage"
)

// DetailResponse is the body of every plain status or error response.
type DetailResponse struct {
	Detail string `json:"detail"`
}

const (
	detailSuccess         = "Success"
	detailAlreadyLoggedIn = "User has already logged in"
	detailInvalidCreds    = "Invalid credentials"
	detailUnauthenticated = "Authentication credentials were not provided."
	detailNotFound        = "Not found."
	detailInvalidPage     = "Invalid page."
	detailThrottled       = "Request was throttled."
	detailMalformed       = "Malformed request."
)

func detail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(DetailResponse{Detail: msg})
}

// writeError maps a domain error onto its HTTP status.
func (s *Server) writeError(c *fiber.Ctx, err error) error {
	var verr account.ValidationErrors
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(verr)
	case errors.Is(err, picture.ErrNotAnImage):
		return detail(c, fiber.StatusBadRequest, "Upload a valid image. The file you uploaded was either not an image or a corrupted image.")
	case errors.Is(err, picture.ErrPayloadTooLarge):
		return detail(c, fiber.StatusRequestEntityTooLarge, "Picture is too large.")
	case errors.Is(err, picture.ErrStoreUnavailable):
		s.logger.Warn("picture store unavailable",
			"path", c.Path(),
			"error", err,
		)
		return detail(c, fiber.StatusServiceUnavailable, "Picture store is temporarily unavailable, retry later.")
	case errors.Is(err, dialogue.ErrSelfDialogue):
		return detail(c, fiber.StatusBadRequest, "Cannot open a dialogue with yourself.")
	case errors.Is(err, account.ErrInvalidCredentials):
		return detail(c, fiber.StatusBadRequest, detailInvalidCreds)
	case errors.Is(err, picture.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return detail(c, fiber.StatusNotFound, detailNotFound)
	default:
		s.logger.Error("request failed",
			"method", c.Method(),
			"path", c.Path(),
			"error", err,
		)
		return detail(c, fiber.StatusInternalServerError, "Internal server error.")
	}
}

// handleError is the fiber error handler. It renders framework errors such
// as an oversized body or an unknown route in the same shape as handler
// errors.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		msg := ferr.Message
		if ferr.Code == fiber.StatusNotFound && ferr != errInvalidPage {
			msg = detailNotFound
		}
		return detail(c, ferr.Code, msg)
	}
	return s.writeError(c, err)
}
