package web

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/dirgate/dirgate/internal/auth"
	authoidc "github.com/dirgate/dirgate/internal/auth/oidc"
	"github.com/dirgate/dirgate/internal/config"
	loggeradapter "github.com/dirgate/dirgate/internal/logger/adapter/fiber"
	oidchandler "github.com/dirgate/dirgate/internal/web/handler/auth/oidc"
	"github.com/dirgate/dirgate/internal/web/handler/login"
	"github.com/dirgate/dirgate/internal/web/handler/logout"
	"github.com/dirgate/dirgate/internal/web/handler/whoami"
	"github.com/dirgate/dirgate/internal/web/session"
)

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
}

// Start starts the web service on the given address.
func (s *Service) Start(addr string) error {
	var doneFiber = make(chan bool)

	go func() {
		if err := s.App.Listen(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("fiber listen error: %v", err)
		}

		doneFiber <- true
	}()

	<-doneFiber // wait for fiber to stop

	return nil
}

// WaitShutdown waits for graceful shutdown of the webserver.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	// Graceful shutdown for reverse proxies: set status to fail, so healthz returns fail.
	if !s.fastShutDown {
		log.Info().Msgf(
			"graceful shutdown: return 503 while %d seconds to let LB to remove this pod from active targets",
			s.cfg.Webserver.ShutDownTime,
		)

		s.alive.Store(false)
		time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)
	}

	// stop fiber http server
	serverShutdown := make(chan struct{})

	go func() {
		log.Info().Msg("stopping http server ...")

		err := s.App.Shutdown()
		if err != nil {
			log.Error().Err(err).Msg("")
		}

		serverShutdown <- struct{}{}
	}()

	<-serverShutdown
	oidchandler.Handler.Shutdown()
	log.Info().Msg("http server was stopped ... good bye...")
}

// New creates a new web service wired to the authentication manager. The
// oidcProvider and users service may be nil when the matching feature is
// disabled.
func New(cfg *config.Config, manager *auth.Manager, oidcProvider *authoidc.Provider, users *auth.Service) *Service {
	if cfg == nil {
		panic("config cannot be nil")
	}

	if manager == nil {
		panic("manager cannot be nil")
	}

	app := fiber.New(
		fiber.Config{
			ReadBufferSize: 8192,
			AppName:        "dirgate",
			CaseSensitive:  true,
			Prefork:        false,
			Immutable:      true,
		},
	)

	// access logging
	app.Use(loggeradapter.New(loggeradapter.Config{
		Config:        cfg.Log,
		CheckAliveURI: "/healthz",
	}))

	// session store and cookie resolution
	session.Init()
	app.Use(SessionMiddleware)

	service := &Service{
		cfg: cfg,
		App: app,
	}

	service.alive.Store(true)

	// init handlers
	if err := login.Handler.Init(app, cfg, manager, users); err != nil {
		log.Fatal().Err(err).Msg("failed to init login handler")
	}

	oidchandler.Handler.Init(app, cfg, oidcProvider, users)
	logout.Handler.Init(app, cfg)
	whoami.Handler.Init(app)

	// operational endpoints
	app.Get("/healthz", func(c *fiber.Ctx) error {
		if !service.alive.Load() {
			return c.SendStatus(fiber.StatusServiceUnavailable)
		}

		return c.SendString("ok")
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	return service
}
