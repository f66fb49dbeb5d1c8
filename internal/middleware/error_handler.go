package middleware

import (
	"loanchain-backend/internal/pkg/apperr"
	"loanchain-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// ErrorHandler is the global error handler. It maps application errors to
// their status codes and renders the standard error body.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Server error"

	if e := apperr.As(err); e != nil {
		code = e.StatusCode()
		message = e.Msg
		if e.Err != nil {
			log.Error().Str("trace_id", GetTraceID(c)).Err(e.Err).Msg(e.Msg)
		}
	} else if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	} else {
		log.Error().Str("trace_id", GetTraceID(c)).Err(err).Msg("unhandled error")
	}

	return response.Error(c, message, code)
}
