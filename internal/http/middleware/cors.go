package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// CORS allows browser dashboards on other origins to call the API.
func CORS() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
		c.Set(fiber.HeaderAccessControlAllowMethods, "GET, POST, PATCH, DELETE, OPTIONS")
		c.Set(fiber.HeaderAccessControlAllowHeaders, "Origin, Content-Type, Accept, "+OwnerIDHeader+", "+RequestIDHeader)
		c.Set(fiber.HeaderAccessControlExposeHeaders, "Content-Length, Content-Type, "+RequestIDHeader)
		c.Set(fiber.HeaderAccessControlMaxAge, "86400")

		if c.Method() == fiber.MethodOptions {
			return c.SendStatus(fiber.StatusNoContent)
		}

		return c.Next()
	}
}
