package models

import (
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/rs/zerolog/log"
)

// AuthSource represents the authentication source for a user account.
type AuthSource string

const (
	// AuthSourceLocal indicates the user authenticates with a local database password.
	AuthSourceLocal AuthSource = "local"
	// AuthSourceLDAP indicates the user authenticates against a directory server.
	AuthSourceLDAP AuthSource = "ldap"
	// AuthSourceOIDC indicates the user authenticates via a federated OIDC provider.
	AuthSourceOIDC AuthSource = "oidc"
)

// User represents a user account known to dirgate. Directory and federated
// users are created on first login and refreshed on every authentication;
// local users carry an Argon2id password hash.
type User struct {
	// ID is the unique identifier for the user.
	ID uint64 `gorm:"primaryKey"`
	// Active indicates whether the account may log in.
	Active bool
	// Username is the unique login name.
	Username string `gorm:"uniqueIndex:idx_username_source;size:100;not null"`
	// Email is the user's email address.
	Email string `gorm:"size:255"`
	// Password is the Argon2id hash, set only for local accounts.
	Password string `gorm:"size:255"`
	// DisplayName is the human-readable name taken from the identity source.
	DisplayName string `gorm:"size:255"`
	// AuthSource indicates how this user authenticates.
	AuthSource AuthSource `gorm:"type:varchar(20);not null;default:'local';uniqueIndex:idx_username_source"`
	// ExternalID is the identifier at the identity source: the directory DN
	// for LDAP users, the sub claim for OIDC users.
	ExternalID string `gorm:"size:255"`
	// CreatedAt is managed by GORM.
	CreatedAt time.Time
	// UpdatedAt is managed by GORM.
	UpdatedAt time.Time
}

// HashPassword hashes a plaintext password using the Argon2id algorithm.
func HashPassword(password string) string {
	hashedPassword, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		log.Fatal().Msgf("failed to hash password: %v", err)
	}

	return hashedPassword
}

// VerifyPassword verifies a plaintext password against the user's stored
// hash using constant-time comparison.
func (u *User) VerifyPassword(password string) bool {
	match, err := argon2id.ComparePasswordAndHash(password, u.Password)
	if err != nil {
		log.Error().Msgf("failed to verify password: %v", err)
		return false
	}

	return match
}
