package auth

import (
	"github.com/gofiber/fiber/v2"
)

const localsKey = "auth_context"

// Context is the authenticated identity attached to a request.
type Context struct {
	UserID   string
	Provider string
}

// SetContext attaches the authenticated identity to the request.
func SetContext(c *fiber.Ctx, authCtx *Context) {
	c.Locals(localsKey, authCtx)
}

// GetContext returns the request's authenticated identity, if any.
func GetContext(c *fiber.Ctx) *Context {
	authCtx, ok := c.Locals(localsKey).(*Context)
	if !ok {
		return nil
	}
	return authCtx
}

// GetUserID returns the authenticated user id for the request.
func GetUserID(c *fiber.Ctx) (string, bool) {
	authCtx := GetContext(c)
	if authCtx == nil || authCtx.UserID == "" {
		return "", false
	}
	return authCtx.UserID, true
}
