package response

import (
	"github.com/gofiber/fiber/v2"
)

// messageBody is the standard error (and simple message) JSON shape.
type messageBody struct {
	Message string `json:"message"`
}

// JSON sends a 200 OK response with the given payload.
func JSON(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusOK).JSON(data)
}

// Created sends a 201 Created response with the given payload.
func Created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(data)
}

// Message sends a 200 OK response with a plain message body.
func Message(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusOK).JSON(messageBody{Message: message})
}

// Error sends an error response with the standard message body.
func Error(c *fiber.Ctx, message string, statusCode int) error {
	return c.Status(statusCode).JSON(messageBody{Message: message})
}
