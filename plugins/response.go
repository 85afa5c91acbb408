package plugins

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
)

// APIResponse is the JSON envelope of every plugin endpoint
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// SendSuccess sends a successful response
func SendSuccess(c *fiber.Ctx, data interface{}, message string) error {
	return c.JSON(APIResponse{Success: true, Data: data, Message: message})
}

// SendError sends err as an error response. Server side failures are logged as well.
func SendError(c *fiber.Ctx, status int, err error) error {
	if status >= fiber.StatusInternalServerError {
		slog.Error("Request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return SendErrorMessage(c, status, err.Error())
}

// SendErrorMessage sends an error response with a custom message
func SendErrorMessage(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(APIResponse{Success: false, Error: message})
}
