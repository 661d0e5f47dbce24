package ldap

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dirgate/dirgate/internal/auth"
	"github.com/dirgate/dirgate/internal/dirserver"
	"github.com/dirgate/dirgate/internal/password"
)

// Defaults applied by NewConfigurer and the embedded context-source builder.
const (
	DefaultGroupRoleAttribute = "cn"
	DefaultGroupSearchFilter  = "(uniqueMember={0})"
	DefaultRolePrefix         = "ROLE_"
	DefaultPort               = 33389
	DefaultRoot               = "dc=springframework,dc=org"
	DefaultLdifPattern        = "*.ldif"

	// defaultPasswordAttribute is seeded only by the PasswordCompare
	// shortcut. Configuring an encoder directly via PasswordEncoder leaves
	// the attribute unset and Build rejects it — the inconsistent defaulting
	// is deliberate and mirrors the configuration surface this was modeled
	// on.
	defaultPasswordAttribute = "userPassword"
)

// buildPhase tracks the linear build state machine so resolution order and
// one-time side effects are auditable.
type buildPhase int

const (
	phaseUnbuilt buildPhase = iota
	phaseConnectionResolved
	phaseAuthenticatorCreated
	phaseAuthoritiesConfigured
	phaseProviderAssembled
)

// Configurer is the fluent configuration surface for the directory
// authentication provider. Configuration calls accumulate intent without
// side effects; Build performs all resolution in a fixed order: connection,
// authenticator, authorities populator and mapper, provider assembly.
//
// The configurer is single-writer: one configuration pass on one goroutine.
type Configurer struct {
	groupRoleAttribute string
	groupSearchBase    string
	groupSearchFilter  string
	rolePrefix         string
	userSearchBase     string
	userSearchFilter   string
	userDnPatterns     []string
	external           *ContextSource
	sourceBuilder      *ContextSourceBuilder
	detailsMapper      UserDetailsMapper
	encoder            password.Encoder
	passwordAttribute  string
	postProcessor      auth.ObjectPostProcessor

	phase    buildPhase
	resolved *ContextSource
	server   *dirserver.Server
}

// NewConfigurer creates a configurer with the documented defaults.
func NewConfigurer() *Configurer {
	c := &Configurer{
		groupRoleAttribute: DefaultGroupRoleAttribute,
		groupSearchFilter:  DefaultGroupSearchFilter,
		rolePrefix:         DefaultRolePrefix,
	}

	c.sourceBuilder = &ContextSourceBuilder{
		configurer: c,
		ldif:       DefaultLdifPattern,
		port:       DefaultPort,
		root:       DefaultRoot,
	}

	return c
}

// ContextSource returns the nested builder for the directory connection,
// which can bootstrap an embedded server when no external URL is given.
func (c *Configurer) ContextSource() *ContextSourceBuilder {
	return c.sourceBuilder
}

// UseContextSource supplies a pre-built context source. Explicit
// configuration always wins: the embedded builder is never invoked when an
// external source is set.
func (c *Configurer) UseContextSource(source *ContextSource) *Configurer {
	c.external = source
	return c
}

// UserDnPatterns sets DN templates ({0} placeholder) mapping a login name
// directly to an entry, for users at a fixed location in the directory.
func (c *Configurer) UserDnPatterns(patterns ...string) *Configurer {
	c.userDnPatterns = patterns
	return c
}

// UserSearchBase sets the search base for user searches. Defaults to "".
// Only used together with UserSearchFilter.
func (c *Configurer) UserSearchBase(base string) *Configurer {
	c.userSearchBase = base
	return c
}

// UserSearchFilter sets the filter used to search for users, e.g.
// "(uid={0})". The substituted parameter is the login name. Leaving the
// filter empty disables the search component entirely.
func (c *Configurer) UserSearchFilter(filter string) *Configurer {
	c.userSearchFilter = filter
	return c
}

// GroupSearchBase sets the search base for group membership searches.
// Defaults to "".
func (c *Configurer) GroupSearchBase(base string) *Configurer {
	c.groupSearchBase = base
	return c
}

// GroupSearchFilter sets the membership filter; {0} is substituted with the
// user's DN. Defaults to "(uniqueMember={0})".
func (c *Configurer) GroupSearchFilter(filter string) *Configurer {
	c.groupSearchFilter = filter
	return c
}

// GroupRoleAttribute sets the attribute containing the role name. Defaults
// to "cn".
func (c *Configurer) GroupRoleAttribute(attribute string) *Configurer {
	c.groupRoleAttribute = attribute
	return c
}

// RolePrefix sets the non-empty prefix added to every resolved authority.
// Defaults to "ROLE_".
func (c *Configurer) RolePrefix(prefix string) *Configurer {
	c.rolePrefix = prefix
	return c
}

// UserDetailsMapper customizes how the authenticated entry becomes a
// principal.
func (c *Configurer) UserDetailsMapper(mapper UserDetailsMapper) *Configurer {
	c.detailsMapper = mapper
	return c
}

// PasswordEncoder configures an encoder, which switches the authenticator
// strategy from bind to password comparison. Note that this path does not
// default the password attribute; set it through PasswordCompare or the
// nested PasswordAttribute call.
func (c *Configurer) PasswordEncoder(encoder password.Encoder) *Configurer {
	c.encoder = encoder
	return c
}

// ObjectPostProcessor sets the hook run over every constructed sub-object.
func (c *Configurer) ObjectPostProcessor(pp auth.ObjectPostProcessor) *Configurer {
	c.postProcessor = pp
	return c
}

// PasswordCompare switches to password-comparison authentication with the
// plaintext encoder and the "userPassword" attribute, returning the nested
// configurer for overriding either.
func (c *Configurer) PasswordCompare() *PasswordCompareConfigurer {
	pc := &PasswordCompareConfigurer{configurer: c}

	return pc.
		PasswordAttribute(defaultPasswordAttribute).
		PasswordEncoder(password.Plaintext{})
}

// EmbeddedServer returns the embedded directory server started by the last
// build, or nil when an external URL or context source was used. Exposed for
// lifecycle management and tests.
func (c *Configurer) EmbeddedServer() *dirserver.Server {
	return c.server
}

// Build resolves the configuration into a provider. Resolution order is
// fixed: context source, authenticator, authorities populator and mapper,
// provider assembly. Build may be called again: the provider is assembled
// anew each time, while the resolved context source (and any embedded server
// start) is memoized within this configurer, so repeated builds share one
// directory handle instead of re-bootstrapping.
func (c *Configurer) Build() (*Provider, error) {
	c.phase = phaseUnbuilt
	pp := c.effectivePostProcessor()

	source, err := c.resolveContextSource(pp)
	if err != nil {
		return nil, err
	}

	c.phase = phaseConnectionResolved

	authenticator, err := c.createAuthenticator(source, pp)
	if err != nil {
		return nil, err
	}

	c.phase = phaseAuthenticatorCreated

	populator, err := c.createAuthoritiesPopulator(source, pp)
	if err != nil {
		return nil, err
	}

	mapper, err := NewAuthorityMapper(c.rolePrefix)
	if err != nil {
		return nil, err
	}

	mapper, ok := pp.PostProcess(mapper).(*AuthorityMapper)
	if !ok {
		return nil, auth.NewConfigurationError("post-processor returned a foreign mapper type")
	}

	c.phase = phaseAuthoritiesConfigured

	provider := NewProvider(authenticator, populator)
	provider.SetAuthorityMapper(mapper)

	if c.detailsMapper != nil {
		provider.SetUserDetailsMapper(c.detailsMapper)
	}

	provider, ok = pp.PostProcess(provider).(*Provider)
	if !ok {
		return nil, auth.NewConfigurationError("post-processor returned a foreign provider type")
	}

	c.phase = phaseProviderAssembled

	log.Debug().Str("url", source.ProviderURL()).Msg("directory authentication provider assembled")

	return provider, nil
}

// Configure implements auth.Configurer: it builds the provider, runs it
// through the manager's post-processor, and registers it.
func (c *Configurer) Configure(b *auth.ManagerBuilder) error {
	if c.postProcessor == nil {
		c.postProcessor = b.PostProcessor()
	}

	provider, err := c.Build()
	if err != nil {
		return err
	}

	provider, ok := c.effectivePostProcessor().PostProcess(provider).(*Provider)
	if !ok {
		return auth.NewConfigurationError("post-processor returned a foreign provider type")
	}

	b.AuthenticationProvider(provider)

	return nil
}

func (c *Configurer) effectivePostProcessor() auth.ObjectPostProcessor {
	if c.postProcessor != nil {
		return c.postProcessor
	}

	return auth.NopPostProcessor()
}

// resolveContextSource resolves the directory connection at most once per
// configurer. An externally supplied source short-circuits the embedded
// builder entirely.
func (c *Configurer) resolveContextSource(pp auth.ObjectPostProcessor) (*ContextSource, error) {
	if c.external != nil {
		return c.external, nil
	}

	if c.resolved != nil {
		return c.resolved, nil
	}

	source, server, err := c.sourceBuilder.build(pp)
	if err != nil {
		return nil, err
	}

	c.resolved = source
	c.server = server

	return source, nil
}

// createAuthenticator selects the strategy: password comparison iff an
// encoder was configured, bind otherwise. The user search and DN patterns
// are attached to either strategy, and the result is post-processed.
func (c *Configurer) createAuthenticator(source *ContextSource, pp auth.ObjectPostProcessor) (Authenticator, error) {
	var authenticator Authenticator

	if c.encoder != nil {
		if c.passwordAttribute == "" {
			return nil, auth.NewConfigurationError(
				"passwordAttribute must be set when using password comparison")
		}

		authenticator = NewPasswordCompareAuthenticator(source, c.passwordAttribute, c.encoder)
	} else {
		authenticator = NewBindAuthenticator(source)
	}

	type resolvable interface {
		SetUserSearch(search *FilterUserSearch)
		SetUserDnPatterns(patterns []string)
	}

	res, ok := authenticator.(resolvable)
	if !ok {
		return nil, auth.NewConfigurationError(
			fmt.Sprintf("authenticator %T does not accept user resolution settings", authenticator))
	}

	if c.userSearchFilter != "" {
		res.SetUserSearch(NewFilterUserSearch(c.userSearchBase, c.userSearchFilter, source))
	}

	if len(c.userDnPatterns) > 0 {
		res.SetUserDnPatterns(c.userDnPatterns)
	}

	authenticator, ok = pp.PostProcess(authenticator).(Authenticator)
	if !ok {
		return nil, auth.NewConfigurationError("post-processor returned a foreign authenticator type")
	}

	return authenticator, nil
}

// createAuthoritiesPopulator configures the group-membership populator and
// post-processes it.
func (c *Configurer) createAuthoritiesPopulator(source *ContextSource, pp auth.ObjectPostProcessor) (*DefaultAuthoritiesPopulator, error) {
	populator := NewDefaultAuthoritiesPopulator(source, c.groupSearchBase)
	populator.SetGroupRoleAttribute(c.groupRoleAttribute)
	populator.SetGroupSearchFilter(c.groupSearchFilter)

	populator, ok := pp.PostProcess(populator).(*DefaultAuthoritiesPopulator)
	if !ok {
		return nil, auth.NewConfigurationError("post-processor returned a foreign populator type")
	}

	return populator, nil
}

// PasswordCompareConfigurer tunes password-comparison authentication. And
// returns to the parent configurer.
type PasswordCompareConfigurer struct {
	configurer *Configurer // non-owning back-reference, only for And
}

// PasswordEncoder sets the encoder used for comparison. The default from the
// PasswordCompare shortcut is the plaintext encoder.
func (pc *PasswordCompareConfigurer) PasswordEncoder(encoder password.Encoder) *PasswordCompareConfigurer {
	pc.configurer.encoder = encoder
	return pc
}

// PasswordAttribute sets the directory attribute containing the stored
// password. The shortcut default is "userPassword".
func (pc *PasswordCompareConfigurer) PasswordAttribute(attribute string) *PasswordCompareConfigurer {
	pc.configurer.passwordAttribute = attribute
	return pc
}

// And returns the parent configurer for further customization.
func (pc *PasswordCompareConfigurer) And() *Configurer {
	return pc.configurer
}

// ContextSourceBuilder configures the directory connection and optionally
// bootstraps an embedded directory server. And returns to the parent
// configurer.
type ContextSourceBuilder struct {
	configurer *Configurer // non-owning back-reference, only for And

	ldif            string
	managerDN       string
	managerPassword string
	port            int
	root            string
	url             string
}

// Ldif sets the seed-data glob pattern loaded at startup by the embedded
// server. Only used when an embedded instance is started. A pattern
// matching zero files is not an error. Defaults to "*.ldif".
func (b *ContextSourceBuilder) Ldif(pattern string) *ContextSourceBuilder {
	b.ldif = pattern
	return b
}

// ManagerDn sets the DN of the manager identity used to authenticate
// searches. When omitted, anonymous access is used.
func (b *ContextSourceBuilder) ManagerDn(dn string) *ContextSourceBuilder {
	b.managerDN = dn
	return b
}

// ManagerPassword sets the password for the manager DN. Required whenever
// ManagerDn is set.
func (b *ContextSourceBuilder) ManagerPassword(pw string) *ContextSourceBuilder {
	b.managerPassword = pw
	return b
}

// Port sets the port the embedded server listens on and the client connects
// to. Defaults to 33389.
func (b *ContextSourceBuilder) Port(port int) *ContextSourceBuilder {
	b.port = port
	return b
}

// Root sets the root suffix for the embedded server. Defaults to
// "dc=springframework,dc=org".
func (b *ContextSourceBuilder) Root(root string) *ContextSourceBuilder {
	b.root = root
	return b
}

// URL points the context source at an external directory server, e.g.
// "ldaps://ldap.example.com:636/dc=example,dc=com". When set, no embedded
// server is started.
func (b *ContextSourceBuilder) URL(url string) *ContextSourceBuilder {
	b.url = url
	return b
}

// And returns the parent configurer for further customization.
func (b *ContextSourceBuilder) And() *Configurer {
	return b.configurer
}

func (b *ContextSourceBuilder) providerURL() string {
	if b.url != "" {
		return b.url
	}

	return fmt.Sprintf("ldap://127.0.0.1:%d/%s", b.port, b.root)
}

// build validates the configuration, constructs the context source, and —
// only when no external URL is set — starts the embedded server. Validation
// runs before the server start so a malformed manager configuration fails
// fast without leaking a running server.
func (b *ContextSourceBuilder) build(pp auth.ObjectPostProcessor) (*ContextSource, *dirserver.Server, error) {
	if b.managerDN != "" && b.managerPassword == "" {
		return nil, nil, auth.NewConfigurationError("managerPassword is required if managerDn is supplied")
	}

	source, err := NewContextSource(b.providerURL())
	if err != nil {
		return nil, nil, err
	}

	if b.managerDN != "" {
		source.SetAuthentication(b.managerDN, b.managerPassword)
	}

	source, ok := pp.PostProcess(source).(*ContextSource)
	if !ok {
		return nil, nil, auth.NewConfigurationError("post-processor returned a foreign context source type")
	}

	if b.url != "" {
		return source, nil, nil
	}

	server := dirserver.New(b.root, b.port, b.ldif)
	if b.managerDN != "" {
		server.WithManager(b.managerDN, b.managerPassword)
	}

	server, ok = pp.PostProcess(server).(*dirserver.Server)
	if !ok {
		return nil, nil, auth.NewConfigurationError("post-processor returned a foreign server type")
	}

	if err := server.Start(); err != nil {
		return nil, nil, auth.WrapConfigurationError("embedded directory server bootstrap failed", err)
	}

	return source, server, nil
}
