package utils

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
)

// Pointer returns a pointer to the given value
func Pointer[T any](v T) *T {
	return &v
}

// ParseUint safely parses a string to uint
func ParseUint(s string) uint {
	i, _ := strconv.ParseUint(s, 10, 32)
	return uint(i)
}

// FirstName returns the first whitespace-separated word of a full name, or
// the fallback when the name is empty.
func FirstName(name, fallback string) string {
	fields := strings.Fields(strings.TrimSpace(name))
	if len(fields) == 0 {
		return fallback
	}
	return fields[0]
}

// ErrorResponse creates a standardized error response. Unexpected server
// errors are forwarded to Sentry; the client only sees the message.
func ErrorResponse(c *fiber.Ctx, status int, message string, err error) error {
	response := fiber.Map{
		"success": false,
		"error":   message,
	}
	if err != nil {
		response["details"] = err.Error()
		if status >= fiber.StatusInternalServerError {
			sentry.CaptureException(fmt.Errorf("%s: %w", message, err))
		}
	}
	return c.Status(status).JSON(response)
}

// SuccessResponse creates a standardized success response
func SuccessResponse(data interface{}) fiber.Map {
	return fiber.Map{
		"success": true,
		"data":    data,
	}
}

// PaginatedResponse structure for paginated results
type PaginatedResponse struct {
	Data  interface{} `json:"data"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
}
