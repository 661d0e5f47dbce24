// Package whoami returns the authenticated principal of the current session.
package whoami

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/dirgate/dirgate/internal/auth"
	"github.com/dirgate/dirgate/internal/web/handler"
)

// Path is the path to the whoami endpoint.
const Path = "/whoami"

// Service is the whoami handler service.
type Service struct{}

// Handler is the whoami handler.
var Handler = Service{}

// Init initializes the whoami handler.
func (s *Service) Init(app *fiber.App) {
	if app == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	app.Get(Path, s.Get)
}

// Get returns the principal stored by the session middleware, or 401 when
// the request carries no valid session.
func (s *Service) Get(c *fiber.Ctx) error {
	principal, ok := c.Locals(handler.PrincipalLocal).(*auth.Principal)
	if !ok || principal == nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	return c.JSON(fiber.Map{
		"username":    principal.Username,
		"dn":          principal.DN,
		"authorities": principal.Authorities,
	})
}
