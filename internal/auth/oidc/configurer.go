package oidc

import (
	"context"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/dirgate/dirgate/internal/auth"
)

// ClaimMapping copies one ID-token claim onto a principal attribute. A
// required mapping whose claim is absent fails the authentication.
type ClaimMapping struct {
	Claim     string
	Attribute string
	Required  bool
}

// Configurer is the fluent configuration surface for the OIDC relying
// party. Like its directory counterpart, configuration calls accumulate
// intent and Build performs discovery and assembly.
type Configurer struct {
	providerURL   string
	clientID      string
	clientSecret  string
	redirectURL   string
	scopes        []string
	groupsClaim   string
	claimMap      []ClaimMapping
	postProcessor auth.ObjectPostProcessor
}

// NewConfigurer creates a configurer with the default groups claim
// ("groups") and default scopes (openid, profile, email).
func NewConfigurer() *Configurer {
	return &Configurer{
		groupsClaim: defaultGroupsClaim,
	}
}

// ProviderURL sets the issuer URL used for OIDC discovery, e.g.
// "https://accounts.google.com".
func (c *Configurer) ProviderURL(url string) *Configurer {
	c.providerURL = url
	return c
}

// ClientID sets the OAuth2 client identifier.
func (c *Configurer) ClientID(id string) *Configurer {
	c.clientID = id
	return c
}

// ClientSecret sets the OAuth2 client secret.
func (c *Configurer) ClientSecret(secret string) *Configurer {
	c.clientSecret = secret
	return c
}

// RedirectURL sets the callback URL the provider redirects to after
// authentication.
func (c *Configurer) RedirectURL(url string) *Configurer {
	c.redirectURL = url
	return c
}

// Scopes overrides the requested OAuth2 scopes.
func (c *Configurer) Scopes(scopes ...string) *Configurer {
	c.scopes = scopes
	return c
}

// GroupsClaim sets the ID-token claim read for group membership. Defaults
// to "groups".
func (c *Configurer) GroupsClaim(claim string) *Configurer {
	c.groupsClaim = claim
	return c
}

// MapClaim adds a claim-to-attribute mapping applied to every authenticated
// principal.
func (c *Configurer) MapClaim(claim, attribute string, required bool) *Configurer {
	c.claimMap = append(c.claimMap, ClaimMapping{
		Claim:     claim,
		Attribute: attribute,
		Required:  required,
	})

	return c
}

// ObjectPostProcessor sets the hook run over the assembled provider.
func (c *Configurer) ObjectPostProcessor(pp auth.ObjectPostProcessor) *Configurer {
	c.postProcessor = pp
	return c
}

// Build performs provider discovery and assembles the relying party. The
// context bounds the discovery request.
func (c *Configurer) Build(ctx context.Context) (*Provider, error) {
	if c.providerURL == "" {
		return nil, auth.NewConfigurationError("providerUrl is required")
	}

	if c.clientID == "" {
		return nil, auth.NewConfigurationError("clientId is required")
	}

	discovered, err := gooidc.NewProvider(ctx, c.providerURL)
	if err != nil {
		return nil, auth.WrapConfigurationError("oidc provider discovery failed", err)
	}

	scopes := c.scopes
	if len(scopes) == 0 {
		scopes = []string{gooidc.ScopeOpenID, "profile", "email"}
	}

	provider := &Provider{
		provider: discovered,
		verifier: discovered.Verifier(&gooidc.Config{ClientID: c.clientID}),
		oauth2: oauth2.Config{
			ClientID:     c.clientID,
			ClientSecret: c.clientSecret,
			RedirectURL:  c.redirectURL,
			Endpoint:     discovered.Endpoint(),
			Scopes:       scopes,
		},
		groupsClaim: c.groupsClaim,
		claimMap:    append([]ClaimMapping(nil), c.claimMap...),
	}

	pp := c.postProcessor
	if pp == nil {
		pp = auth.NopPostProcessor()
	}

	provider, ok := pp.PostProcess(provider).(*Provider)
	if !ok {
		return nil, auth.NewConfigurationError("post-processor returned a foreign provider type")
	}

	return provider, nil
}

// Configure implements auth.Configurer: it builds the relying party and
// registers it as a token provider.
func (c *Configurer) Configure(b *auth.ManagerBuilder) error {
	if c.postProcessor == nil {
		c.postProcessor = b.PostProcessor()
	}

	provider, err := c.Build(context.Background())
	if err != nil {
		return err
	}

	b.TokenAuthenticationProvider(provider)

	return nil
}
