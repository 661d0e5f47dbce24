package config

import (
	"time"

	"github.com/dirgate/dirgate/internal/logger"
)

// Session settings.
type Session struct {
	ExpiryTime time.Duration
}

// Config overall data structure.
type Config struct {
	DevMode   bool // enable dev mode for development
	DB        DB
	Log       logger.Log
	Title     string
	Webserver Webserver
	LDAP      LDAP
	OIDC      OIDC
}

// Webserver implement webserver settings.
type Webserver struct {
	DisableRecover bool    // disable recover middleware
	Domain         string  // domain name for the webserver
	Port           int     // listening port for the webserver
	ShutDownTime   int     // wait time for shutdown
	URL            string  // base url for the webserver
	Session        Session // session settings
}

// Embedded holds the in-process directory server settings used when no
// external LDAP URL is configured.
type Embedded struct {
	Port int    // listening port, 0 = library default
	Root string // root suffix, "" = library default
	Ldif string // seed-data glob pattern, "" = library default
}

// LDAP holds the directory authentication settings.
type LDAP struct {
	Enabled            bool
	URL                string // external server URL; empty starts the embedded server
	Embedded           Embedded
	ManagerDn          string
	ManagerPassword    string
	UserDnPatterns     []string
	UserSearchBase     string
	UserSearchFilter   string
	GroupSearchBase    string
	GroupSearchFilter  string
	GroupRoleAttribute string
	RolePrefix         string
	PasswordCompare    bool   // compare stored passwords instead of binding as the user
	PasswordAttribute  string // attribute holding the stored password
}

// OIDC holds the federated identity settings.
type OIDC struct {
	Enabled      bool
	ProviderURL  string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	GroupsClaim  string
}
