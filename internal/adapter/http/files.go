package http

import (
	"errors"

	"cv-generator/pkg/storage"

	"github.com/gofiber/fiber/v2"
)

// ServeFile returns a stored artifact for a signed token.
func (h *Handler) ServeFile(c *fiber.Ctx) error {
	if h.files == nil || h.verifier == nil {
		return c.Status(fiber.StatusNotFound).JSON(errorBody("NOT_FOUND", "file serving is disabled"))
	}
	path, err := h.verifier.Verify(c.Params("token"))
	switch {
	case errors.Is(err, storage.ErrTokenExpired):
		return c.Status(fiber.StatusGone).JSON(errorBody("LINK_EXPIRED", "download link expired"))
	case err != nil:
		return c.Status(fiber.StatusForbidden).JSON(errorBody("PERMISSION_DENIED", "invalid download link"))
	}

	data, contentType, err := h.files.Open(c.UserContext(), path)
	if err != nil {
		h.logger.Warn("signed file missing", "path", path, "error", err)
		return c.Status(fiber.StatusNotFound).JSON(errorBody("NOT_FOUND", "file not found"))
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderCacheControl, "private, max-age=300")
	return c.Send(data)
}
