// Package auth provides the authentication manager and its configuration
// surface.
//
// A ManagerBuilder accumulates authentication providers — either directly
// via AuthenticationProvider, or through Configurer implementations applied
// with Apply — and assembles them into an immutable Manager with Build. The
// Manager tries providers in registration order and collapses every failure
// into ErrAuthenticationFailed so callers cannot distinguish unknown users
// from wrong passwords.
//
// Provider implementations live in sub-packages:
//
//   - ldap: directory-backed authentication with bind or password-compare
//     strategies, built through a fluent configurer that can bootstrap an
//     embedded directory server for test and demo environments.
//   - oidc: federated identity via OpenID Connect, registered as a
//     token-verifying provider.
//
// LocalProvider in this package authenticates database accounts with
// Argon2id hashes.
//
// Every object constructed during a configuration pass is routed through an
// ObjectPostProcessor, the extension point through which the embedding
// application can decorate authenticators, context sources, embedded
// servers, and providers without the configurers knowing about it.
//
// Example:
//
//	builder := auth.NewManagerBuilder()
//	builder.Apply(ldap.NewConfigurer().
//	    UserDnPatterns("uid={0},ou=people").
//	    GroupSearchBase("ou=groups"))
//	manager, err := builder.Build()
//	principal, err := manager.Authenticate(ctx, "ben", "benspassword")
package auth
