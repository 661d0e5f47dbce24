package oidc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dirgate/dirgate/internal/auth"
)

// startDiscoveryServer serves a minimal OIDC discovery document whose issuer
// matches the server's own URL, which is all go-oidc needs for assembly.
func startDiscoveryServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"issuer":                 srv.URL,
			"authorization_endpoint": srv.URL + "/authorize",
			"token_endpoint":         srv.URL + "/token",
			"jwks_uri":               srv.URL + "/keys",
			"end_session_endpoint":   srv.URL + "/logout",
		})
	})

	return srv
}

func TestBuildRequiresProviderURL(t *testing.T) {
	_, err := NewConfigurer().
		ClientID("dirgate").
		Build(context.Background())

	require.Error(t, err)
	assert.True(t, auth.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "providerUrl")
}

func TestBuildRequiresClientID(t *testing.T) {
	_, err := NewConfigurer().
		ProviderURL("https://accounts.example.com").
		Build(context.Background())

	require.Error(t, err)
	assert.True(t, auth.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "clientId")
}

func TestBuildWrapsDiscoveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	_, err := NewConfigurer().
		ProviderURL(srv.URL).
		ClientID("dirgate").
		Build(context.Background())

	require.Error(t, err)
	assert.True(t, auth.IsConfigurationError(err))
}

func TestBuildAssemblesRelyingParty(t *testing.T) {
	srv := startDiscoveryServer(t)

	provider, err := NewConfigurer().
		ProviderURL(srv.URL).
		ClientID("dirgate").
		ClientSecret("s3cret").
		RedirectURL("http://127.0.0.1:8080/auth/oidc/callback").
		Build(context.Background())
	require.NoError(t, err)

	authURL := provider.AuthCodeURL("state-123")
	assert.Contains(t, authURL, srv.URL+"/authorize")
	assert.Contains(t, authURL, "client_id=dirgate")
	assert.Contains(t, authURL, "state=state-123")
	assert.Contains(t, authURL, "scope=openid+profile+email")
}

func TestScopesOverrideReplacesDefaults(t *testing.T) {
	srv := startDiscoveryServer(t)

	provider, err := NewConfigurer().
		ProviderURL(srv.URL).
		ClientID("dirgate").
		Scopes("openid", "groups").
		Build(context.Background())
	require.NoError(t, err)

	authURL := provider.AuthCodeURL("s")
	assert.Contains(t, authURL, "scope=openid+groups")
	assert.NotContains(t, authURL, "profile")
}

func TestLogoutURLUsesEndSessionEndpoint(t *testing.T) {
	srv := startDiscoveryServer(t)

	provider, err := NewConfigurer().
		ProviderURL(srv.URL).
		ClientID("dirgate").
		Build(context.Background())
	require.NoError(t, err)

	logout := provider.LogoutURL("hint", "http://127.0.0.1:8080/login")
	assert.Contains(t, logout, srv.URL+"/logout")
	assert.Contains(t, logout, "id_token_hint=hint")
	assert.Contains(t, logout, "post_logout_redirect_uri=http://127.0.0.1:8080/login")
}

func TestBuildAppliesPostProcessor(t *testing.T) {
	srv := startDiscoveryServer(t)

	var seen []any
	pp := postProcessorFunc(func(o any) any {
		seen = append(seen, o)
		return o
	})

	provider, err := NewConfigurer().
		ProviderURL(srv.URL).
		ClientID("dirgate").
		ObjectPostProcessor(pp).
		Build(context.Background())
	require.NoError(t, err)

	assert.Contains(t, seen, provider)
}

type postProcessorFunc func(o any) any

func (f postProcessorFunc) PostProcess(o any) any {
	return f(o)
}

func TestGenerateStateToken(t *testing.T) {
	first, err := GenerateStateToken()
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := GenerateStateToken()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestClaimStrings(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []string
	}{
		{"single string", "admin", []string{"admin"}},
		{"string slice", []string{"a", "b"}, []string{"a", "b"}},
		{"any slice", []any{"a", 42, "b"}, []string{"a", "b"}},
		{"nil", nil, nil},
		{"number", 7, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, claimStrings(tt.in))
		})
	}
}
