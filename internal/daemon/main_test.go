package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dirgate/dirgate/internal/auth"
	"github.com/dirgate/dirgate/internal/config"
)

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
		})
	})

	return srv
}

func TestRegisterOidcWiresTokenProvider(t *testing.T) {
	srv := startDiscoveryServer(t)

	cfg := &config.Config{}
	cfg.OIDC.Enabled = true
	cfg.OIDC.ProviderURL = srv.URL
	cfg.OIDC.ClientID = "dirgate"

	builder := auth.NewManagerBuilder()

	provider := registerOidc(cfg, builder)
	require.NotNil(t, provider)

	// the provider alone must satisfy the manager
	manager, err := builder.Build()
	require.NoError(t, err)

	_, err = manager.AuthenticateToken(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, auth.ErrAuthenticationFailed)
}

func TestRegisterOidcDisablesOnDiscoveryFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.OIDC.Enabled = true
	cfg.OIDC.ProviderURL = srv.URL
	cfg.OIDC.ClientID = "dirgate"

	builder := auth.NewManagerBuilder()

	assert.Nil(t, registerOidc(cfg, builder))

	// nothing was registered
	_, err := builder.Build()
	assert.ErrorIs(t, err, auth.ErrNoProviders)
}
