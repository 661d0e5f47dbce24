package login

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/dirgate/dirgate/internal/auth"
	"github.com/dirgate/dirgate/internal/config"
	"github.com/dirgate/dirgate/internal/db/models"
	"github.com/dirgate/dirgate/internal/web/handler"
	"github.com/dirgate/dirgate/internal/web/session"
)

const (
	// Path is the path to the login endpoint.
	Path = "/login"
)

// Request is the JSON login request body.
type Request struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Response is the JSON body returned on successful login.
type Response struct {
	Username    string   `json:"username"`
	Authorities []string `json:"authorities"`
}

// Service is the login handler service.
type Service struct {
	cfg      *config.Config
	manager  *auth.Manager
	users    *auth.Service
	validate *validator.Validate
}

// Handler is the login handler.
var Handler = Service{}

// Init initializes the login handler. The users service is optional; when
// present every successful login is mirrored into the local database.
func (s *Service) Init(app *fiber.App, cfg *config.Config, manager *auth.Manager, users *auth.Service) error {
	if app == nil || cfg == nil || manager == nil {
		return errors.New(handler.ErrNilACDFatalLogMsg)
	}

	s.cfg = cfg
	s.manager = manager
	s.users = users
	s.validate = validator.New()

	app.Post(Path, s.Post)

	return nil
}

// Post handles the JSON login request.
func (s *Service) Post(c *fiber.Ctx) error {
	req := new(Request)

	if err := c.BodyParser(req); err != nil {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": ErrInvalidFormData.Error()})
	}

	if err := s.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"error": ErrInvalidFormData.Error()})
	}

	principal, err := s.manager.Authenticate(c.Context(), req.Username, req.Password)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).
			JSON(fiber.Map{"error": ErrInvalidCredentials.Error()})
	}

	// mirror directory identities into the local store; local accounts
	// (no DN) already live there
	if s.users != nil && principal.DN != "" {
		if _, err = s.users.UpsertPrincipal(principal, models.AuthSourceLDAP); err != nil {
			log.Error().Err(err).Str("username", principal.Username).Msg("failed to sync user")
		}
	}

	sessionID, err := session.GenerateSessionID()
	if err != nil {
		log.Error().Err(err).Msg("failed to generate session ID")

		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": ErrInternalServerError.Error()})
	}

	userSession := &session.Data{
		Principal: *principal,
	}

	if err = userSession.Write(sessionID, s.cfg.Webserver.Session.ExpiryTime); err != nil {
		log.Error().Err(err).Msg("failed to write session")

		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": ErrInternalServerError.Error()})
	}

	cookieSettings := &fiber.Cookie{
		Name:     handler.SessionCookie,
		Value:    sessionID,
		MaxAge:   int(s.cfg.Webserver.Session.ExpiryTime.Seconds()),
		Secure:   true,
		HTTPOnly: true,
		SameSite: "Lax",
	}

	if s.cfg.DevMode {
		cookieSettings.Secure = false
	}

	c.Cookie(cookieSettings)

	log.Info().Str("username", principal.Username).Msg("user logged in")

	return c.JSON(Response{
		Username:    principal.Username,
		Authorities: principal.Authorities,
	})
}
