package daemon

import (
	"context"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/dirgate/dirgate/internal/auth"
	ldapauth "github.com/dirgate/dirgate/internal/auth/ldap"
	oidcauth "github.com/dirgate/dirgate/internal/auth/oidc"
	"github.com/dirgate/dirgate/internal/config"
	"github.com/dirgate/dirgate/internal/db/models"
	"github.com/dirgate/dirgate/internal/dirserver"
	"github.com/dirgate/dirgate/internal/web"
)

// Daemon represents the main application daemon.
type Daemon struct {
	webService web.Service
	dirServer  *dirserver.Server
}

// Start starts the Daemon's web service.
func (d *Daemon) Start(addr string) error {
	return d.webService.Start(addr)
}

// WaitShutdown blocks until a termination signal, then stops the web service
// and the embedded directory server if one was started.
func (d *Daemon) WaitShutdown() {
	d.webService.WaitShutdown()

	if d.dirServer != nil {
		d.dirServer.Stop()
	}
}

// New creates a new Daemon instance with the provided configuration.
func New(cfg *config.Config) *Daemon {
	if cfg == nil {
		log.Fatal().Msg("config is nil")
		return nil
	}

	db, err := gorm.Open(sqlite.Open(cfg.DB.Path), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DB.Path).Msg("failed to open database")
		return nil
	}

	if err = db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.UserGroup{},
	); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
		return nil
	}

	seed(cfg, db)

	builder := auth.NewManagerBuilder().
		AuthenticationProvider(auth.NewLocalProvider(db))

	ldapConfigurer := newLdapConfigurer(cfg)
	if ldapConfigurer != nil {
		builder.Apply(ldapConfigurer)
	}

	var oidcProvider *oidcauth.Provider

	if cfg.OIDC.Enabled {
		oidcProvider = registerOidc(cfg, builder)
	}

	manager, err := builder.Build()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build authentication manager")
		return nil
	}

	d := &Daemon{
		webService: *web.New(cfg, manager, oidcProvider, auth.NewService(db)),
	}

	if ldapConfigurer != nil {
		d.dirServer = ldapConfigurer.EmbeddedServer()
	}

	return d
}

// newLdapConfigurer translates the LDAP config section into a directory
// authentication configurer, or nil when directory auth is disabled.
func newLdapConfigurer(cfg *config.Config) *ldapauth.Configurer {
	if !cfg.LDAP.Enabled {
		return nil
	}

	c := ldapauth.NewConfigurer()

	source := c.ContextSource()

	if cfg.LDAP.URL != "" {
		source.URL(cfg.LDAP.URL)
	}

	if cfg.LDAP.Embedded.Port != 0 {
		source.Port(cfg.LDAP.Embedded.Port)
	}

	if cfg.LDAP.Embedded.Root != "" {
		source.Root(cfg.LDAP.Embedded.Root)
	}

	if cfg.LDAP.Embedded.Ldif != "" {
		source.Ldif(cfg.LDAP.Embedded.Ldif)
	}

	if cfg.LDAP.ManagerDn != "" {
		source.ManagerDn(cfg.LDAP.ManagerDn).
			ManagerPassword(cfg.LDAP.ManagerPassword)
	}

	if len(cfg.LDAP.UserDnPatterns) > 0 {
		c.UserDnPatterns(cfg.LDAP.UserDnPatterns...)
	}

	if cfg.LDAP.UserSearchFilter != "" {
		c.UserSearchBase(cfg.LDAP.UserSearchBase).
			UserSearchFilter(cfg.LDAP.UserSearchFilter)
	}

	if cfg.LDAP.GroupSearchBase != "" {
		c.GroupSearchBase(cfg.LDAP.GroupSearchBase)
	}

	if cfg.LDAP.GroupSearchFilter != "" {
		c.GroupSearchFilter(cfg.LDAP.GroupSearchFilter)
	}

	if cfg.LDAP.GroupRoleAttribute != "" {
		c.GroupRoleAttribute(cfg.LDAP.GroupRoleAttribute)
	}

	if cfg.LDAP.RolePrefix != "" {
		c.RolePrefix(cfg.LDAP.RolePrefix)
	}

	if cfg.LDAP.PasswordCompare {
		pc := c.PasswordCompare()
		if cfg.LDAP.PasswordAttribute != "" {
			pc.PasswordAttribute(cfg.LDAP.PasswordAttribute)
		}
	}

	return c
}

// registerOidc builds the relying party and registers it on the manager as a
// token provider, so bearer ID tokens authenticate alongside the web login
// flow. Returns nil when discovery fails; OIDC is then disabled.
func registerOidc(cfg *config.Config, builder *auth.ManagerBuilder) *oidcauth.Provider {
	provider, err := newOidcConfigurer(cfg).Build(context.Background())
	if err != nil {
		log.Warn().Err(err).Msg("failed to initialize OIDC provider - OIDC authentication will be disabled")
		return nil
	}

	builder.TokenAuthenticationProvider(provider)

	return provider
}

// newOidcConfigurer translates the OIDC config section into a relying-party
// configurer.
func newOidcConfigurer(cfg *config.Config) *oidcauth.Configurer {
	c := oidcauth.NewConfigurer().
		ProviderURL(cfg.OIDC.ProviderURL).
		ClientID(cfg.OIDC.ClientID).
		ClientSecret(cfg.OIDC.ClientSecret).
		RedirectURL(cfg.OIDC.RedirectURL)

	if len(cfg.OIDC.Scopes) > 0 {
		c.Scopes(cfg.OIDC.Scopes...)
	}

	if cfg.OIDC.GroupsClaim != "" {
		c.GroupsClaim(cfg.OIDC.GroupsClaim)
	}

	return c
}
