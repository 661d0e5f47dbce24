package oidc

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/dirgate/dirgate/internal/auth"
)

// ErrNoIDToken is returned when the token exchange response carries no ID
// token.
var ErrNoIDToken = errors.New("no id_token in token response")

// defaultGroupsClaim is the ID-token claim read for group membership when no
// custom claim is configured.
const defaultGroupsClaim = "groups"

// GenerateStateToken generates a random state token for CSRF protection of
// the authorization-code flow.
func GenerateStateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return base64.URLEncoding.EncodeToString(b), nil
}

// Provider is the assembled relying party: discovery metadata, ID-token
// verifier, and the OAuth2 exchange configuration. It implements
// auth.TokenProvider and is safe for concurrent use after assembly.
type Provider struct {
	provider    *gooidc.Provider
	verifier    *gooidc.IDTokenVerifier
	oauth2      oauth2.Config
	groupsClaim string
	claimMap    []ClaimMapping
}

// AuthCodeURL returns the provider's authorization URL carrying the state
// token.
func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth2.AuthCodeURL(state)
}

// HandleCallback exchanges the authorization code, verifies the resulting ID
// token, and maps it into a principal.
func (p *Provider) HandleCallback(ctx context.Context, code string) (*auth.Principal, error) {
	token, err := p.oauth2.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, ErrNoIDToken
	}

	return p.AuthenticateToken(ctx, rawIDToken)
}

// VerifyToken verifies the signature and standard claims of a raw ID token.
func (p *Provider) VerifyToken(ctx context.Context, rawToken string) (*gooidc.IDToken, error) {
	return p.verifier.Verify(ctx, rawToken)
}

// AuthenticateToken implements auth.TokenProvider: it verifies the raw ID
// token and maps its claims into a principal.
func (p *Provider) AuthenticateToken(ctx context.Context, rawToken string) (*auth.Principal, error) {
	idToken, err := p.verifier.Verify(ctx, rawToken)
	if err != nil {
		log.Debug().Err(err).Msg("id token verification failed")
		return nil, auth.ErrAuthenticationFailed
	}

	return p.principalFromToken(idToken)
}

// RefreshToken obtains a fresh token set from a refresh token, extending the
// session without re-authentication.
func (p *Provider) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	source := p.oauth2.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	return source.Token()
}

// UserInfo fetches claims from the provider's UserInfo endpoint for an
// access token, covering claims the ID token does not carry.
func (p *Provider) UserInfo(ctx context.Context, accessToken string) (map[string]any, error) {
	info, err := p.provider.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
	}))
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}

	var claims map[string]any
	if err := info.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse userinfo claims: %w", err)
	}

	return claims, nil
}

// LogoutURL constructs the provider's end-session URL with the ID token hint
// and post-logout redirect, or "" when the provider advertises no
// end_session_endpoint.
func (p *Provider) LogoutURL(idTokenHint, postLogoutRedirectURI string) string {
	var meta struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}

	if err := p.provider.Claims(&meta); err != nil || meta.EndSessionEndpoint == "" {
		return ""
	}

	return fmt.Sprintf("%s?id_token_hint=%s&post_logout_redirect_uri=%s",
		meta.EndSessionEndpoint, idTokenHint, postLogoutRedirectURI)
}

// principalFromToken maps a verified ID token into a principal: the username
// from preferred_username/email/sub in that order, authorities from the
// groups claim, and attributes per the configured claim map.
func (p *Provider) principalFromToken(idToken *gooidc.IDToken) (*auth.Principal, error) {
	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}

	attributes := map[string][]string{
		"sub": {idToken.Subject},
	}

	for _, mapping := range p.claimMap {
		values := claimStrings(claims[mapping.Claim])
		if len(values) == 0 {
			if mapping.Required {
				return nil, fmt.Errorf("%w: required claim %q absent",
					auth.ErrAuthenticationFailed, mapping.Claim)
			}

			continue
		}

		attributes[mapping.Attribute] = values
	}

	username := idToken.Subject
	for _, claim := range []string{"preferred_username", "email"} {
		if v := claimStrings(claims[claim]); len(v) > 0 && v[0] != "" {
			username = v[0]
			break
		}
	}

	return &auth.Principal{
		Username:    username,
		Authorities: claimStrings(claims[p.groupsClaim]),
		Attributes:  attributes,
	}, nil
}

// claimStrings normalizes a claim value into a string slice. Non-string
// values are dropped.
func claimStrings(v any) []string {
	switch vv := v.(type) {
	case string:
		return []string{vv}
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}

		return out
	default:
		return nil
	}
}
