package http

import (
	"cv-generator/internal/domain"

	"github.com/gofiber/fiber/v2"
)

const codeUnauthenticated = "UNAUTHENTICATED"

func statusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation:
		return fiber.StatusBadRequest
	case domain.KindAuthorization:
		return fiber.StatusForbidden
	case domain.KindNotFound:
		return fiber.StatusNotFound
	}
	return fiber.StatusInternalServerError
}

func errorBody(code, message string) fiber.Map {
	return fiber.Map{"success": false, "error": fiber.Map{"code": code, "message": message}}
}

func (h *Handler) fail(c *fiber.Ctx, err error) error {
	kind := domain.KindOf(err)
	status := statusFor(kind)
	if status >= fiber.StatusInternalServerError {
		h.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(errorBody(kind.Code(), err.Error()))
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(errorBody(domain.KindValidation.Code(), msg))
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(errorBody(codeUnauthenticated, msg))
}
