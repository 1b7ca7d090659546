package middleware

import (
	"github.com/gofiber/fiber/v2"
	infraPrometheus "github.com/sifan077/linkpulse/internal/infra/prometheus"
)

// Metrics counts every request by method and final status.
func Metrics(m *infraPrometheus.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = errorStatus(err)
		}
		m.HTTPRequest(c.Method(), status)
		return err
	}
}
