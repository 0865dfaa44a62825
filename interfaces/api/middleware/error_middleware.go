package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/RCXD/Bros-back/pkg/logger"
	"github.com/RCXD/Bros-back/pkg/utils"
)

// ErrorHandler renders errors that escaped the handlers, including fiber's
// own (unknown route, body limit) in the standard envelope.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		errCode := utils.ErrCodeInternalError
		message := "Internal server error"

		var e *fiber.Error
		if errors.As(err, &e) {
			code = e.Code
			message = e.Message
			switch code {
			case fiber.StatusBadRequest:
				errCode = utils.ErrCodeBadRequest
			case fiber.StatusUnauthorized:
				errCode = utils.ErrCodeUnauthorized
			case fiber.StatusForbidden:
				errCode = utils.ErrCodeForbidden
			case fiber.StatusNotFound:
				errCode = utils.ErrCodeNotFound
			case fiber.StatusConflict:
				errCode = utils.ErrCodeConflict
			case fiber.StatusRequestEntityTooLarge:
				errCode = utils.ErrCodePayloadTooLarge
			}
		}

		if code >= 500 {
			logger.ErrorContext(c.UserContext(), "Unhandled error", "path", c.Path(), "error", err)
		} else {
			logger.WarnContext(c.UserContext(), "Request error", "path", c.Path(), "status", code, "error", err)
		}

		return utils.ErrorResponse(c, code, errCode, message, nil)
	}
}
