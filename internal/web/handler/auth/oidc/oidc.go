package oidc

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/dirgate/dirgate/internal/auth"
	authoidc "github.com/dirgate/dirgate/internal/auth/oidc"
	"github.com/dirgate/dirgate/internal/config"
	"github.com/dirgate/dirgate/internal/db/models"
	"github.com/dirgate/dirgate/internal/web/handler"
	"github.com/dirgate/dirgate/internal/web/session"
)

const (
	// LoginPath is the path to initiate OIDC login.
	LoginPath = handler.RootPath + "auth/oidc/login"

	// CallbackPath is the path for OIDC callback.
	CallbackPath = handler.RootPath + "auth/oidc/callback"

	// LogoutPath is the path for OIDC logout.
	LogoutPath = handler.RootPath + "auth/oidc/logout"
)

// stateTTL bounds how long an issued state token stays valid.
const stateTTL = 5 * time.Minute

// Service is the OIDC handler service.
type Service struct {
	cfg      *config.Config
	provider *authoidc.Provider
	users    *auth.Service

	// stateMu guards stateStore; fiber serves handlers from multiple
	// goroutines and the cleanup goroutine ranges the map concurrently.
	stateMu     sync.Mutex
	stateStore  map[string]time.Time // in-memory state store (use Redis in production)
	stopCleanup chan struct{}
}

// Handler is the OIDC handler.
var Handler = Service{
	stateStore: make(map[string]time.Time),
}

// Init initializes the OIDC handler. A nil provider leaves the routes
// unregistered, which is how a disabled OIDC configuration presents itself.
func (s *Service) Init(app *fiber.App, cfg *config.Config, provider *authoidc.Provider, users *auth.Service) {
	if app == nil || cfg == nil {
		log.Fatal().Msg(handler.ErrNilACDFatalLogMsg)
		return
	}

	if provider == nil {
		log.Info().Msg("OIDC authentication is disabled by configuration")
		return
	}

	s.cfg = cfg
	s.provider = provider
	s.users = users

	app.Get(LoginPath, s.Login)
	app.Get(CallbackPath, s.Callback)
	app.Get(LogoutPath, s.Logout)

	// Start state cleanup goroutine
	s.stopCleanup = make(chan struct{})
	go s.cleanupStates()

	log.Info().Msg("OIDC authentication provider initialized")
}

// Login initiates the OIDC login flow.
func (s *Service) Login(c *fiber.Ctx) error {
	// Generate state token for CSRF protection
	state, err := authoidc.GenerateStateToken()
	if err != nil {
		log.Error().Err(err).Msg("Failed to generate state token")
		return c.Status(fiber.StatusInternalServerError).SendString("Internal server error")
	}

	s.storeState(state)

	return c.Redirect(s.provider.AuthCodeURL(state))
}

// Callback handles the OIDC callback.
func (s *Service) Callback(c *fiber.Ctx) error {
	code := c.Query("code")
	state := c.Query("state")

	if code == "" || state == "" {
		log.Error().Msg("Missing code or state in OIDC callback")
		return c.Status(fiber.StatusBadRequest).SendString("Invalid callback parameters")
	}

	expiration, exists := s.takeState(state)
	if !exists {
		log.Error().Str("state", state).Msg("Invalid state token")
		return c.Status(fiber.StatusBadRequest).SendString("Invalid state token")
	}

	if time.Now().After(expiration) {
		log.Error().Str("state", state).Msg("Expired state token")
		return c.Status(fiber.StatusBadRequest).SendString("Expired state token")
	}

	principal, err := s.provider.HandleCallback(c.Context(), code)
	if err != nil {
		log.Error().Err(err).Msg("OIDC authentication failed")
		return c.Status(fiber.StatusUnauthorized).SendString("Authentication failed")
	}

	// mirror the federated identity into the local store
	if s.users != nil {
		if _, err = s.users.UpsertPrincipal(principal, models.AuthSourceOIDC); err != nil {
			log.Error().Err(err).Str("username", principal.Username).Msg("Failed to sync OIDC user")
		}
	}

	if err = writeSession(c, s.cfg, principal); err != nil {
		log.Error().Err(err).Msg("Failed to write session")
		return c.Status(fiber.StatusInternalServerError).SendString("Internal server error")
	}

	log.Info().Str("username", principal.Username).Msg("User logged in successfully via OIDC")

	return c.JSON(fiber.Map{
		"username":    principal.Username,
		"authorities": principal.Authorities,
	})
}

// Logout handles OIDC logout.
func (s *Service) Logout(c *fiber.Ctx) error {
	c.ClearCookie(handler.SessionCookie)

	// Note: storing the ID token in the session would allow a full
	// end-session hint here.
	postLogoutRedirectURI := s.cfg.Webserver.URL
	if logoutURL := s.provider.LogoutURL("", postLogoutRedirectURI); logoutURL != "" {
		return c.Redirect(logoutURL)
	}

	return c.Redirect("/login")
}

// writeSession stores the principal in the session store and sets the login
// cookie.
func writeSession(c *fiber.Ctx, cfg *config.Config, principal *auth.Principal) error {
	sessionID, err := session.GenerateSessionID()
	if err != nil {
		return err
	}

	userSession := &session.Data{
		Principal: *principal,
	}

	if err = userSession.Write(sessionID, cfg.Webserver.Session.ExpiryTime); err != nil {
		return err
	}

	cookieSettings := &fiber.Cookie{
		Name:     handler.SessionCookie,
		Value:    sessionID,
		MaxAge:   int(cfg.Webserver.Session.ExpiryTime.Seconds()),
		Secure:   true,
		HTTPOnly: true,
		SameSite: "Lax",
	}

	if cfg.DevMode {
		cookieSettings.Secure = false
	}

	c.Cookie(cookieSettings)

	return nil
}

// storeState records a freshly issued state token with its expiry.
func (s *Service) storeState(state string) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	s.stateStore[state] = time.Now().Add(stateTTL)
}

// takeState removes the state token and returns its expiry. A token is
// single-use, so it is consumed whether or not it turns out to be expired.
func (s *Service) takeState(state string) (time.Time, bool) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	expiration, exists := s.stateStore[state]
	if exists {
		delete(s.stateStore, state)
	}

	return expiration, exists
}

// expireStates drops every state token whose expiry lies before now.
func (s *Service) expireStates(now time.Time) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	for state, expiration := range s.stateStore {
		if now.After(expiration) {
			delete(s.stateStore, state)
		}
	}
}

// cleanupStates periodically removes expired state tokens until Shutdown.
func (s *Service) cleanupStates() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCleanup:
			return
		case <-ticker.C:
			s.expireStates(time.Now())
		}
	}
}

// Shutdown stops the state cleanup goroutine. Safe to call on a handler that
// was never initialized.
func (s *Service) Shutdown() {
	if s.stopCleanup == nil {
		return
	}

	close(s.stopCleanup)
	s.stopCleanup = nil
}
