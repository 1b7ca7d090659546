package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/linkpulse/internal/app/apperror"
)

// Error codes returned in the "code" field of error bodies.
const (
	CodeInvalidURL          = "INVALID_URL"
	CodeInvalidSlug         = "INVALID_SLUG"
	CodeInvalidInput        = "INVALID_INPUT"
	CodeSlugTaken           = "SLUG_TAKEN"
	CodeAllocationExhausted = "ALLOCATION_EXHAUSTED"
	CodeLinkNotFound        = "LINK_NOT_FOUND"
	CodeLinkDisabled        = "LINK_DISABLED"
	CodeLinkExpired         = "LINK_EXPIRED"
	CodeForbidden           = "FORBIDDEN"
	CodeInternal            = "INTERNAL"
)

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusFor maps an engine error onto an HTTP status, a code and a client safe message.
func statusFor(err error) (int, ErrorResponse) {
	var ve *apperror.ValidationError
	if errors.As(err, &ve) {
		code := CodeInvalidInput
		switch {
		case errors.Is(err, apperror.ErrInvalidURL):
			code = CodeInvalidURL
		case errors.Is(err, apperror.ErrInvalidSlug):
			code = CodeInvalidSlug
		}
		return fiber.StatusBadRequest, ErrorResponse{Error: ve.Error(), Code: code}
	}

	switch {
	case errors.Is(err, apperror.ErrSlugTaken):
		return fiber.StatusConflict, ErrorResponse{Error: "slug already taken", Code: CodeSlugTaken}
	case errors.Is(err, apperror.ErrAllocationExhausted):
		return fiber.StatusServiceUnavailable, ErrorResponse{Error: "could not allocate a slug, try again", Code: CodeAllocationExhausted}
	case errors.Is(err, apperror.ErrLinkNotFound):
		return fiber.StatusNotFound, ErrorResponse{Error: "link not found", Code: CodeLinkNotFound}
	case errors.Is(err, apperror.ErrForbidden):
		return fiber.StatusForbidden, ErrorResponse{Error: "link belongs to another owner", Code: CodeForbidden}
	case errors.Is(err, apperror.ErrLinkDisabled):
		return fiber.StatusGone, ErrorResponse{Error: "link is disabled", Code: CodeLinkDisabled}
	case errors.Is(err, apperror.ErrLinkExpired):
		return fiber.StatusGone, ErrorResponse{Error: "link has expired", Code: CodeLinkExpired}
	default:
		return fiber.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: CodeInternal}
	}
}

func writeError(c *fiber.Ctx, err error) error {
	status, body := statusFor(err)
	return c.Status(status).JSON(body)
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: message, Code: CodeInvalidInput})
}
