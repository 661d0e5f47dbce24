// Package password provides pluggable password encoders used by the
// password-comparison authentication strategy and by local user accounts.
package password

import (
	"crypto/subtle"
	"errors"

	"github.com/alexedwards/argon2id"
	"golang.org/x/crypto/bcrypt"
)

// Encoder encodes raw passwords and verifies raw passwords against an
// encoded representation.
type Encoder interface {
	// Encode returns the encoded form of the raw password.
	Encode(raw string) (string, error)
	// Matches reports whether the raw password matches the encoded one.
	Matches(raw, encoded string) (bool, error)
}

// Plaintext is a reversible no-op encoder. It is the default for the
// password-compare shortcut and is only suitable for test directories.
type Plaintext struct{}

// Encode returns the raw password unchanged.
func (Plaintext) Encode(raw string) (string, error) {
	return raw, nil
}

// Matches compares raw and encoded in constant time.
func (Plaintext) Matches(raw, encoded string) (bool, error) {
	return subtle.ConstantTimeCompare([]byte(raw), []byte(encoded)) == 1, nil
}

// Argon2id encodes passwords with the Argon2id KDF.
type Argon2id struct {
	// Params overrides the argon2id defaults when set.
	Params *argon2id.Params
}

// Encode hashes the raw password with Argon2id.
func (e Argon2id) Encode(raw string) (string, error) {
	params := e.Params
	if params == nil {
		params = argon2id.DefaultParams
	}

	return argon2id.CreateHash(raw, params) //nolint:wrapcheck
}

// Matches verifies the raw password against an Argon2id hash.
func (e Argon2id) Matches(raw, encoded string) (bool, error) {
	return argon2id.ComparePasswordAndHash(raw, encoded) //nolint:wrapcheck
}

// Bcrypt encodes passwords with the bcrypt KDF.
type Bcrypt struct {
	// Cost is the bcrypt cost factor. Zero means bcrypt.DefaultCost.
	Cost int
}

// Encode hashes the raw password with bcrypt.
func (e Bcrypt) Encode(raw string) (string, error) {
	cost := e.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	out, err := bcrypt.GenerateFromPassword([]byte(raw), cost)
	if err != nil {
		return "", err //nolint:wrapcheck
	}

	return string(out), nil
}

// Matches verifies the raw password against a bcrypt hash.
func (e Bcrypt) Matches(raw, encoded string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encoded), []byte(raw))
	if err == nil {
		return true, nil
	}

	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}

	return false, err //nolint:wrapcheck
}
