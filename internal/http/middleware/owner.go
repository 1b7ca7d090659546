package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

const (
	OwnerIDHeader = "X-Owner-ID"
	ownerIDKey    = "owner_id"
)

// Owner requires the X-Owner-ID header set by the upstream auth proxy.
func Owner() fiber.Handler {
	return func(c *fiber.Ctx) error {
		owner := strings.TrimSpace(c.Get(OwnerIDHeader))
		if owner == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing " + OwnerIDHeader + " header",
				"code":  "UNAUTHORIZED",
			})
		}
		c.Locals(ownerIDKey, utils.CopyString(owner))
		return c.Next()
	}
}

// OwnerID returns the owner stored by Owner, or "".
func OwnerID(c *fiber.Ctx) string {
	owner, _ := c.Locals(ownerIDKey).(string)
	return owner
}
