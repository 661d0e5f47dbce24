package ldap

import (
	"fmt"

	goldap "github.com/go-ldap/ldap/v3"

	"github.com/dirgate/dirgate/internal/auth"
)

// searchTimeLimit bounds directory searches, in seconds.
const searchTimeLimit = 10

// FilterUserSearch locates a user's directory entry with a filter-based
// subtree search. The filter contains a {0} placeholder substituted with the
// escaped login name; the base is resolved relative to the context source.
type FilterUserSearch struct {
	base   string
	filter string
	source *ContextSource
}

// NewFilterUserSearch creates a user search scoped to (base, filter, source).
func NewFilterUserSearch(base, filter string, source *ContextSource) *FilterUserSearch {
	return &FilterUserSearch{
		base:   base,
		filter: filter,
		source: source,
	}
}

// Search runs the user search on the given connection and returns exactly
// one entry. Zero matches yields ErrUserNotFound, several yield
// ErrMultipleUsersFound.
func (s *FilterUserSearch) Search(conn *goldap.Conn, username string) (*goldap.Entry, error) {
	filter := substitute(s.filter, goldap.EscapeFilter(username))

	req := goldap.NewSearchRequest(
		s.source.FullDN(s.base),
		goldap.ScopeWholeSubtree,
		goldap.NeverDerefAliases,
		0,
		searchTimeLimit,
		false,
		filter,
		[]string{"*"},
		nil,
	)

	result, err := conn.Search(req)
	if err != nil {
		return nil, fmt.Errorf("user search failed: %w", err)
	}

	switch len(result.Entries) {
	case 0:
		return nil, auth.ErrUserNotFound
	case 1:
		return result.Entries[0], nil
	default:
		return nil, auth.ErrMultipleUsersFound
	}
}
