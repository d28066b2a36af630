package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/ironsheep/inverif/internal/catalog"
	"github.com/ironsheep/inverif/internal/intake"
	"github.com/ironsheep/inverif/internal/logger"
)

// StatusFor maps a service error to an HTTP status code.
func StatusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, intake.ErrFormNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, catalog.ErrUnknownSupplierType),
		errors.Is(err, intake.ErrUnknownDocument):
		return fiber.StatusBadRequest
	case errors.Is(err, catalog.ErrUnsupportedFileType):
		return fiber.StatusUnsupportedMediaType
	case errors.Is(err, catalog.ErrFileTooLarge),
		errors.Is(err, catalog.ErrEmptyFile):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, intake.ErrNotSubmittable),
		errors.Is(err, intake.ErrSubmitInProgress):
		return fiber.StatusConflict
	case errors.Is(err, context.Canceled):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func messageFor(err error, status int) string {
	switch {
	case errors.Is(err, intake.ErrNotSubmittable):
		return intake.MsgSubmitRefused
	case status == fiber.StatusInternalServerError:
		return "internal server error"
	default:
		return err.Error()
	}
}

// ErrorHandler renders handler errors in the response envelope.
func ErrorHandler(log logger.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := StatusFor(err)
		details := map[string]interface{}{
			"method": c.Method(),
			"path":   c.Path(),
			"status": status,
			"error":  err.Error(),
		}
		if status >= fiber.StatusInternalServerError {
			log.Error("api", "request failed", details)
		} else {
			log.Debug("api", "request rejected", details)
		}
		return c.Status(status).JSON(FailedResponse(messageFor(err, status)))
	}
}
