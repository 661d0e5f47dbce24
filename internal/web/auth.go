package web

import (
	"github.com/gofiber/fiber/v2"

	"github.com/dirgate/dirgate/internal/web/handler"
	"github.com/dirgate/dirgate/internal/web/session"
)

// SessionMiddleware is a Fiber middleware that resolves the session cookie
// into a principal and stores it in fiber.Locals for downstream handlers. A
// request without a valid session passes through without a principal;
// protected handlers decide themselves whether to reject it.
func SessionMiddleware(c *fiber.Ctx) error {
	loginCookie := c.Cookies(handler.SessionCookie)
	if loginCookie == "" {
		return c.Next()
	}

	sessData := new(session.Data)
	if err := sessData.Read(loginCookie); err != nil {
		return c.Next()
	}

	if sessData.Principal.Username != "" {
		c.Locals(handler.PrincipalLocal, &sessData.Principal)
	}

	return c.Next()
}
