package adminapi

import (
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/keygate/keygate/service"
	"github.com/keygate/keygate/storage/model"
)

// Response is the envelope of every admin API response; endpoint specific
// payloads embed it.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func ok(message string) Response {
	return Response{
		Success: true,
		Message: message,
	}
}

func failed(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(
		Response{
			Success: false,
			Error:   msg,
		},
	)
}

func badBody(c *fiber.Ctx) error {
	return failed(c, fiber.StatusBadRequest, "invalid request body")
}

// writeError maps service and storage errors to status codes. Unexpected
// errors are logged and answered with a generic message.
func writeError(c *fiber.Ctx, err error) error {
	switch {
	case service.IsValidationError(err):
		return failed(c, fiber.StatusBadRequest, err.Error())
	case model.IsNotFound(err):
		return failed(c, fiber.StatusNotFound, err.Error())
	case model.IsAlreadyExists(err):
		return failed(c, fiber.StatusConflict, err.Error())
	}
	log.WithError(err).WithFields(
		log.Fields{
			"method": c.Method(),
			"path":   c.Path(),
		},
	).Error("admin request failed")
	return failed(c, fiber.StatusInternalServerError, "internal error")
}

// parseOptionalBody decodes the request body into v; an empty body leaves v
// untouched
func parseOptionalBody(c *fiber.Ctx, v any) error {
	if len(c.Body()) == 0 {
		return nil
	}
	return c.BodyParser(v)
}
