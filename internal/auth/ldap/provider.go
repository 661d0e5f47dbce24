package ldap

import (
	"context"
	"errors"

	goldap "github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog/log"

	"github.com/dirgate/dirgate/internal/auth"
)

// UserDetailsMapper turns an authenticated directory entry into a Principal.
// A custom mapper can be supplied through the configurer to control which
// entry attributes end up on the principal.
type UserDetailsMapper func(entry *goldap.Entry, username string, authorities []string) *auth.Principal

// defaultUserDetailsMapper copies every entry attribute onto the principal.
func defaultUserDetailsMapper(entry *goldap.Entry, username string, authorities []string) *auth.Principal {
	attributes := make(map[string][]string, len(entry.Attributes))
	for _, attr := range entry.Attributes {
		attributes[attr.Name] = attr.Values
	}

	return &auth.Principal{
		Username:    username,
		DN:          entry.DN,
		Authorities: authorities,
		Attributes:  attributes,
	}
}

// Provider is the assembled directory authentication provider: an
// authenticator strategy plus an authorities populator and the authority
// prefix mapper. It is immutable after assembly and safe for concurrent use
// by request-handling goroutines.
type Provider struct {
	authenticator Authenticator
	populator     AuthoritiesPopulator
	mapper        *AuthorityMapper
	detailsMapper UserDetailsMapper
}

// NewProvider assembles a provider from an authenticator and a populator.
func NewProvider(authenticator Authenticator, populator AuthoritiesPopulator) *Provider {
	return &Provider{
		authenticator: authenticator,
		populator:     populator,
		detailsMapper: defaultUserDetailsMapper,
	}
}

// SetAuthorityMapper sets the authority prefix mapper.
func (p *Provider) SetAuthorityMapper(mapper *AuthorityMapper) {
	p.mapper = mapper
}

// SetUserDetailsMapper replaces the default entry-to-principal mapping.
func (p *Provider) SetUserDetailsMapper(mapper UserDetailsMapper) {
	if mapper != nil {
		p.detailsMapper = mapper
	}
}

// Authenticate implements auth.Provider. User-not-found and
// credential-mismatch conditions are logged and collapsed into
// ErrAuthenticationFailed; directory connectivity failures propagate as
// ErrDirectoryUnavailable.
func (p *Provider) Authenticate(ctx context.Context, username, pass string) (*auth.Principal, error) {
	entry, err := p.authenticator.Authenticate(ctx, username, pass)
	if err != nil {
		return nil, mapAuthenticationError(err, username)
	}

	var raw []string
	if p.populator != nil {
		raw, err = p.populator.Authorities(entry.DN, username)
		if err != nil {
			return nil, mapAuthenticationError(err, username)
		}
	}

	authorities := raw
	if p.mapper != nil {
		authorities = p.mapper.Map(raw)
	}

	return p.detailsMapper(entry, username, authorities), nil
}

// mapAuthenticationError collapses the differentiated authentication-time
// failures into the generic failure, keeping the detail in the debug log
// only. Connectivity failures pass through for the manager to log louder.
func mapAuthenticationError(err error, username string) error {
	if errors.Is(err, auth.ErrDirectoryUnavailable) {
		return err
	}

	log.Debug().Err(err).Str("username", username).Msg("directory authentication failed")

	return auth.ErrAuthenticationFailed
}
