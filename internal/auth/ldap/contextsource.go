package ldap

import (
	"fmt"
	"net/url"
	"strings"

	goldap "github.com/go-ldap/ldap/v3"

	"github.com/dirgate/dirgate/internal/auth"
)

// ContextSource describes how to reach the directory: the provider URL
// (including the base DN as the URL path) and an optional manager identity
// used for searches. It is created once per configuration pass and shared by
// the authenticator and the authorities populator.
type ContextSource struct {
	providerURL string
	host        string // scheme://host:port, without the base DN path
	baseDN      string
	userDN      string
	password    string
}

// NewContextSource parses a provider URL of the form
// "ldap://host:port/base-dn" (or ldaps).
func NewContextSource(providerURL string) (*ContextSource, error) {
	u, err := url.Parse(providerURL)
	if err != nil {
		return nil, auth.WrapConfigurationError("invalid provider URL "+providerURL, err)
	}

	if u.Scheme != "ldap" && u.Scheme != "ldaps" {
		return nil, auth.NewConfigurationError("provider URL scheme must be ldap or ldaps, got " + providerURL)
	}

	if u.Host == "" {
		return nil, auth.NewConfigurationError("provider URL is missing a host: " + providerURL)
	}

	return &ContextSource{
		providerURL: providerURL,
		host:        u.Scheme + "://" + u.Host,
		baseDN:      strings.TrimPrefix(u.Path, "/"),
	}, nil
}

// SetAuthentication sets the manager identity used for searches. Without it
// the context source binds anonymously.
func (cs *ContextSource) SetAuthentication(userDN, password string) {
	cs.userDN = userDN
	cs.password = password
}

// ProviderURL returns the URL the context source was created from.
func (cs *ContextSource) ProviderURL() string {
	return cs.providerURL
}

// BaseDN returns the base DN all relative names are resolved against.
func (cs *ContextSource) BaseDN() string {
	return cs.baseDN
}

// UserDN returns the configured manager DN, if any.
func (cs *ContextSource) UserDN() string {
	return cs.userDN
}

// Connect dials the directory without binding. Callers own the connection.
func (cs *ContextSource) Connect() (*goldap.Conn, error) {
	conn, err := goldap.DialURL(cs.host)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", auth.ErrDirectoryUnavailable, cs.host, err)
	}

	return conn, nil
}

// ConnectManager dials the directory and binds with the manager identity
// when one is configured; otherwise the connection stays anonymous.
func (cs *ContextSource) ConnectManager() (*goldap.Conn, error) {
	conn, err := cs.Connect()
	if err != nil {
		return nil, err
	}

	if cs.userDN != "" {
		if err := conn.Bind(cs.userDN, cs.password); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to bind with manager identity: %w", err)
		}
	}

	return conn, nil
}

// FullDN resolves a name relative to the base DN, mirroring how directory
// contexts rooted at a base path treat relative names. Already-absolute
// names (ending in the base DN) pass through unchanged.
func (cs *ContextSource) FullDN(relative string) string {
	switch {
	case relative == "":
		return cs.baseDN
	case cs.baseDN == "":
		return relative
	case strings.HasSuffix(strings.ToLower(relative), strings.ToLower(cs.baseDN)):
		return relative
	default:
		return relative + "," + cs.baseDN
	}
}

// substitute replaces the {0} placeholder in a pattern or filter template.
// The optional second argument replaces {1}.
func substitute(template, zero string, extra ...string) string {
	out := strings.ReplaceAll(template, "{0}", zero)
	if len(extra) > 0 {
		out = strings.ReplaceAll(out, "{1}", extra[0])
	}

	return out
}
