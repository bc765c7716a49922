package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/courier/pkg/picture"
)

// handleGetPicture handles GET /pictures/:id. No session is required.
func (s *Server) handleGetPicture(c *fiber.Ctx) error {
	rec, err := s.pictures.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return s.writeError(c, err)
	}

	c.Set(fiber.HeaderContentType, picture.ContentType)
	c.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
	c.Set(fiber.HeaderETag, `"`+rec.Digest+`"`)
	return c.Send(rec.Data)
}
