package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// ErrorHandler is a custom error handler for Fiber
func ErrorHandler(c *fiber.Ctx, err error) error {
	// Default to 500
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	// Check if it's a Fiber error
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": message,
	})
}

// ScanFailure answers a scan request that could not be processed. The scan
// API reports every failure (missing input, extraction, upstream) through
// the success flag with HTTP 200; 4xx/5xx never carry processing errors.
func ScanFailure(c *fiber.Ctx, message string) error {
	return c.JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}
