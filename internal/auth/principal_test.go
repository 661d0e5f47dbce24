package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrincipalAuthorityChecks(t *testing.T) {
	p := &Principal{
		Username:    "ben",
		Authorities: []string{"ROLE_developers", "ROLE_managers"},
	}

	assert.True(t, p.HasAuthority("ROLE_developers"))
	assert.False(t, p.HasAuthority("ROLE_admins"))

	assert.True(t, p.HasAnyAuthority("ROLE_admins", "ROLE_managers"))
	assert.False(t, p.HasAnyAuthority("ROLE_admins", "ROLE_operators"))

	assert.True(t, p.HasAllAuthorities("ROLE_developers", "ROLE_managers"))
	assert.False(t, p.HasAllAuthorities("ROLE_developers", "ROLE_admins"))
}

func TestPrincipalAttribute(t *testing.T) {
	p := &Principal{
		Username: "ben",
		Attributes: map[string][]string{
			"mail": {"ben@example.com", "ben@backup.example.com"},
		},
	}

	assert.Equal(t, "ben@example.com", p.Attribute("mail"))
	assert.Equal(t, "", p.Attribute("missing"))
}

func TestConfigurationError(t *testing.T) {
	err := NewConfigurationError("role prefix must not be empty")
	assert.True(t, IsConfigurationError(err))
	assert.Contains(t, err.Error(), "role prefix")

	wrapped := WrapConfigurationError("embedded directory server bootstrap failed", ErrDirectoryUnavailable)
	assert.True(t, IsConfigurationError(wrapped))
	assert.ErrorIs(t, wrapped, ErrDirectoryUnavailable)

	assert.False(t, IsConfigurationError(ErrAuthenticationFailed))
}
