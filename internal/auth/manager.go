package auth

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
)

// Provider authenticates a username/password pair against one identity
// source and returns the resulting principal. Implementations must be safe
// for concurrent use once constructed.
type Provider interface {
	Authenticate(ctx context.Context, username, password string) (*Principal, error)
}

// TokenProvider authenticates a bearer credential (e.g. an OIDC ID token)
// and returns the resulting principal.
type TokenProvider interface {
	AuthenticateToken(ctx context.Context, rawToken string) (*Principal, error)
}

// Configurer contributes providers to a ManagerBuilder during its build
// phase. Provider configurers (LDAP, OIDC) implement this interface.
type Configurer interface {
	Configure(b *ManagerBuilder) error
}

// ManagerBuilder assembles an authentication Manager. Configuration calls
// accumulate intent; Build performs all resolution. The builder has no
// internal locking: one configuration pass on one thread, which is how
// daemon initialization runs.
type ManagerBuilder struct {
	providers      []Provider
	tokenProviders []TokenProvider
	configurers    []Configurer
	postProcessor  ObjectPostProcessor
}

// NewManagerBuilder creates an empty ManagerBuilder with a no-op object
// post-processor.
func NewManagerBuilder() *ManagerBuilder {
	return &ManagerBuilder{
		postProcessor: NopPostProcessor(),
	}
}

// ObjectPostProcessor sets the hook applied to every object constructed by
// the applied configurers.
func (b *ManagerBuilder) ObjectPostProcessor(pp ObjectPostProcessor) *ManagerBuilder {
	if pp != nil {
		b.postProcessor = pp
	}

	return b
}

// PostProcessor returns the configured object post-processor. Used by
// configurers during their build phase.
func (b *ManagerBuilder) PostProcessor() ObjectPostProcessor {
	return b.postProcessor
}

// AuthenticationProvider registers a credential provider. Providers are
// tried in registration order during authentication.
func (b *ManagerBuilder) AuthenticationProvider(p Provider) *ManagerBuilder {
	if p != nil {
		b.providers = append(b.providers, p)
	}

	return b
}

// TokenAuthenticationProvider registers a bearer-credential provider.
func (b *ManagerBuilder) TokenAuthenticationProvider(p TokenProvider) *ManagerBuilder {
	if p != nil {
		b.tokenProviders = append(b.tokenProviders, p)
	}

	return b
}

// Apply registers a configurer to run during Build. This is how the LDAP
// and OIDC configurers attach themselves to the manager assembly phase.
func (b *ManagerBuilder) Apply(c Configurer) *ManagerBuilder {
	if c != nil {
		b.configurers = append(b.configurers, c)
	}

	return b
}

// Build runs all applied configurers and returns an immutable Manager.
// A ConfigurationError from any configurer aborts the pass.
func (b *ManagerBuilder) Build() (*Manager, error) {
	for _, c := range b.configurers {
		if err := c.Configure(b); err != nil {
			return nil, err
		}
	}

	if len(b.providers) == 0 && len(b.tokenProviders) == 0 {
		return nil, ErrNoProviders
	}

	m := &Manager{
		providers:      append([]Provider(nil), b.providers...),
		tokenProviders: append([]TokenProvider(nil), b.tokenProviders...),
	}

	return m, nil
}

// Manager authenticates credentials against its registered providers. It is
// immutable after Build and safe for concurrent use by request handlers.
type Manager struct {
	providers      []Provider
	tokenProviders []TokenProvider
}

// Authenticate tries each registered provider in order and returns the
// first successful principal. Every failure condition maps to
// ErrAuthenticationFailed; the distinguishing detail is only logged.
func (m *Manager) Authenticate(ctx context.Context, username, password string) (*Principal, error) {
	for _, p := range m.providers {
		principal, err := p.Authenticate(ctx, username, password)
		if err == nil {
			observeAuthentication(outcomeSuccess)
			return principal, nil
		}

		if errors.Is(err, ErrDirectoryUnavailable) {
			log.Error().Err(err).Str("username", username).Msg("identity source unavailable")
		} else {
			log.Debug().Err(err).Str("username", username).Msg("provider rejected credentials")
		}
	}

	observeAuthentication(outcomeFailure)

	return nil, ErrAuthenticationFailed
}

// AuthenticateToken verifies a bearer credential against the registered
// token providers.
func (m *Manager) AuthenticateToken(ctx context.Context, rawToken string) (*Principal, error) {
	for _, p := range m.tokenProviders {
		principal, err := p.AuthenticateToken(ctx, rawToken)
		if err == nil {
			observeAuthentication(outcomeSuccess)
			return principal, nil
		}

		log.Debug().Err(err).Msg("token provider rejected credential")
	}

	observeAuthentication(outcomeFailure)

	return nil, ErrAuthenticationFailed
}
