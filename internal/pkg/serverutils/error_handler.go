package serverutils

import (
	"errors"

	"smart-supermarket/internal/apperr"

	"github.com/gofiber/fiber/v2"
)

// StatusFor maps an error kind onto the HTTP status the UI branches on.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return fiber.StatusBadRequest
	case apperr.KindPermissionDenied:
		return fiber.StatusForbidden
	case apperr.KindNotReady, apperr.KindRequestInFlight:
		return fiber.StatusConflict
	case apperr.KindAmbiguousIdentity:
		return fiber.StatusUnprocessableEntity
	case apperr.KindEmptyResult:
		return fiber.StatusNotFound
	case apperr.KindTransport:
		return fiber.StatusBadGateway
	case apperr.KindStale:
		return fiber.StatusGone
	}
	return fiber.StatusInternalServerError
}

// ErrorHandlerMiddleware turns errors returned by handlers into the JSON envelope.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if err == nil {
			return nil
		}

		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(ErrorResponse(fe.Code, fe.Message))
		}

		kind := apperr.KindOf(err)
		if kind == "" {
			return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse(fiber.StatusInternalServerError, "Internal server error"))
		}

		status := StatusFor(kind)
		resp := ErrorResponse(status, apperr.Message(err))
		resp.Kind = string(kind)
		return c.Status(status).JSON(resp)
	}
}
