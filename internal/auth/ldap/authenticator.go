package ldap

import (
	"context"
	"fmt"

	goldap "github.com/go-ldap/ldap/v3"
	"github.com/rs/zerolog/log"

	"github.com/dirgate/dirgate/internal/auth"
	"github.com/dirgate/dirgate/internal/password"
)

// Authenticator verifies a username/password pair against the directory and
// returns the user's entry on success. Implementations are constructed once
// at configuration time and used concurrently at request time.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (*goldap.Entry, error)
}

// authenticatorBase carries the user-resolution machinery shared by both
// authentication strategies: DN-pattern templates tried as a fast path and
// an optional filter search used as a fallback.
type authenticatorBase struct {
	source     *ContextSource
	dnPatterns []string
	userSearch *FilterUserSearch
}

// SetUserDnPatterns sets the DN templates ({0} placeholder) used to derive
// candidate user DNs without a directory search.
func (a *authenticatorBase) SetUserDnPatterns(patterns []string) {
	a.dnPatterns = patterns
}

// SetUserSearch attaches a filter-based user search used when no DN pattern
// resolves the user.
func (a *authenticatorBase) SetUserSearch(search *FilterUserSearch) {
	a.userSearch = search
}

// UserDnPatterns returns the configured DN templates.
func (a *authenticatorBase) UserDnPatterns() []string {
	return a.dnPatterns
}

// UserSearch returns the attached user search, or nil.
func (a *authenticatorBase) UserSearch() *FilterUserSearch {
	return a.userSearch
}

// candidateDNs substitutes the login name into every DN pattern and resolves
// the result against the context-source base.
func (a *authenticatorBase) candidateDNs(username string) []string {
	dns := make([]string, 0, len(a.dnPatterns))
	for _, pattern := range a.dnPatterns {
		dns = append(dns, a.source.FullDN(substitute(pattern, username)))
	}

	return dns
}

// fetchEntry reads a single entry at the given DN with all user attributes.
func fetchEntry(conn *goldap.Conn, dn string) (*goldap.Entry, error) {
	req := goldap.NewSearchRequest(
		dn,
		goldap.ScopeBaseObject,
		goldap.NeverDerefAliases,
		1,
		searchTimeLimit,
		false,
		"(objectClass=*)",
		[]string{"*"},
		nil,
	)

	result, err := conn.Search(req)
	if err != nil {
		return nil, fmt.Errorf("failed to read entry %s: %w", dn, err)
	}

	if len(result.Entries) == 0 {
		return nil, auth.ErrUserNotFound
	}

	return result.Entries[0], nil
}

// BindAuthenticator verifies credentials by binding to the directory as the
// user. Candidate DNs from the patterns are tried first; the user search, if
// attached, resolves the entry when no pattern binds.
type BindAuthenticator struct {
	authenticatorBase
}

// NewBindAuthenticator creates a bind authenticator on the context source.
func NewBindAuthenticator(source *ContextSource) *BindAuthenticator {
	return &BindAuthenticator{authenticatorBase{source: source}}
}

// Authenticate implements Authenticator.
func (a *BindAuthenticator) Authenticate(_ context.Context, username, pass string) (*goldap.Entry, error) {
	// an empty password would be an unauthenticated bind, which directories
	// treat as anonymous success
	if pass == "" {
		return nil, auth.ErrCredentialMismatch
	}

	conn, err := a.source.Connect()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	for _, dn := range a.candidateDNs(username) {
		if err := conn.Bind(dn, pass); err != nil {
			log.Trace().Str("dn", dn).Msg("bind attempt via dn pattern failed")
			continue
		}

		return fetchEntry(conn, dn)
	}

	if a.userSearch == nil {
		if len(a.dnPatterns) > 0 {
			return nil, auth.ErrCredentialMismatch
		}

		return nil, auth.ErrUserNotFound
	}

	entry, err := a.searchAndBind(conn, username, pass)
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// searchAndBind resolves the user entry through the attached search (with
// the manager identity) and then binds as the resolved DN.
func (a *BindAuthenticator) searchAndBind(conn *goldap.Conn, username, pass string) (*goldap.Entry, error) {
	searchConn, err := a.source.ConnectManager()
	if err != nil {
		return nil, err
	}
	defer searchConn.Close()

	entry, err := a.userSearch.Search(searchConn, username)
	if err != nil {
		return nil, err
	}

	if err := conn.Bind(entry.DN, pass); err != nil {
		return nil, auth.ErrCredentialMismatch
	}

	return entry, nil
}

// PasswordCompareAuthenticator verifies credentials by reading the stored
// password attribute and comparing it against the supplied password via the
// configured encoder, without ever binding as the user.
type PasswordCompareAuthenticator struct {
	authenticatorBase

	passwordAttribute string
	encoder           password.Encoder
}

// NewPasswordCompareAuthenticator creates a password-comparison
// authenticator bound to (source, attribute, encoder).
func NewPasswordCompareAuthenticator(source *ContextSource, attribute string, encoder password.Encoder) *PasswordCompareAuthenticator {
	return &PasswordCompareAuthenticator{
		authenticatorBase: authenticatorBase{source: source},
		passwordAttribute: attribute,
		encoder:           encoder,
	}
}

// PasswordAttribute returns the attribute holding the stored password.
func (a *PasswordCompareAuthenticator) PasswordAttribute() string {
	return a.passwordAttribute
}

// Encoder returns the configured password encoder.
func (a *PasswordCompareAuthenticator) Encoder() password.Encoder {
	return a.encoder
}

// Authenticate implements Authenticator.
func (a *PasswordCompareAuthenticator) Authenticate(_ context.Context, username, pass string) (*goldap.Entry, error) {
	if pass == "" {
		return nil, auth.ErrCredentialMismatch
	}

	conn, err := a.source.ConnectManager()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	entry, err := a.locateUser(conn, username)
	if err != nil {
		return nil, err
	}

	stored := entry.GetAttributeValues(a.passwordAttribute)
	if len(stored) == 0 {
		return nil, auth.ErrCredentialMismatch
	}

	for _, candidate := range stored {
		match, err := a.encoder.Matches(pass, candidate)
		if err != nil {
			log.Debug().Err(err).Str("username", username).Msg("password comparison errored")
			continue
		}

		if match {
			return entry, nil
		}
	}

	return nil, auth.ErrCredentialMismatch
}

// locateUser resolves the user entry via DN patterns first, then the
// attached search.
func (a *PasswordCompareAuthenticator) locateUser(conn *goldap.Conn, username string) (*goldap.Entry, error) {
	for _, dn := range a.candidateDNs(username) {
		entry, err := fetchEntry(conn, dn)
		if err == nil {
			return entry, nil
		}
	}

	if a.userSearch != nil {
		return a.userSearch.Search(conn, username)
	}

	return nil, auth.ErrUserNotFound
}
