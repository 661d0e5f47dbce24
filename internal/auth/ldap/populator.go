package ldap

import (
	"fmt"
	"strings"

	goldap "github.com/go-ldap/ldap/v3"

	"github.com/dirgate/dirgate/internal/auth"
)

// AuthoritiesPopulator derives a principal's granted authorities from the
// directory after successful authentication.
type AuthoritiesPopulator interface {
	Authorities(userDN, username string) ([]string, error)
}

// DefaultAuthoritiesPopulator derives authorities from group membership: it
// searches groupSearchBase with groupSearchFilter ({0} is the user's DN,
// {1} the login name) and collects the groupRoleAttribute of every match.
type DefaultAuthoritiesPopulator struct {
	source             *ContextSource
	groupSearchBase    string
	groupRoleAttribute string
	groupSearchFilter  string
}

// NewDefaultAuthoritiesPopulator creates a populator on the context source
// with the default role attribute "cn" and filter "(uniqueMember={0})".
func NewDefaultAuthoritiesPopulator(source *ContextSource, groupSearchBase string) *DefaultAuthoritiesPopulator {
	return &DefaultAuthoritiesPopulator{
		source:             source,
		groupSearchBase:    groupSearchBase,
		groupRoleAttribute: DefaultGroupRoleAttribute,
		groupSearchFilter:  DefaultGroupSearchFilter,
	}
}

// SetGroupRoleAttribute sets the attribute whose value becomes the authority
// name.
func (p *DefaultAuthoritiesPopulator) SetGroupRoleAttribute(attribute string) {
	p.groupRoleAttribute = attribute
}

// SetGroupSearchFilter sets the membership filter template.
func (p *DefaultAuthoritiesPopulator) SetGroupSearchFilter(filter string) {
	p.groupSearchFilter = filter
}

// GroupSearchBase returns the configured search base.
func (p *DefaultAuthoritiesPopulator) GroupSearchBase() string {
	return p.groupSearchBase
}

// GroupRoleAttribute returns the configured role attribute.
func (p *DefaultAuthoritiesPopulator) GroupRoleAttribute() string {
	return p.groupRoleAttribute
}

// GroupSearchFilter returns the configured filter template.
func (p *DefaultAuthoritiesPopulator) GroupSearchFilter() string {
	return p.groupSearchFilter
}

// Authorities implements AuthoritiesPopulator. The search runs with the
// manager identity on a fresh connection.
func (p *DefaultAuthoritiesPopulator) Authorities(userDN, username string) ([]string, error) {
	conn, err := p.source.ConnectManager()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	filter := substitute(p.groupSearchFilter,
		goldap.EscapeFilter(userDN),
		goldap.EscapeFilter(username),
	)

	req := goldap.NewSearchRequest(
		p.source.FullDN(p.groupSearchBase),
		goldap.ScopeWholeSubtree,
		goldap.NeverDerefAliases,
		0,
		searchTimeLimit,
		false,
		filter,
		[]string{p.groupRoleAttribute},
		nil,
	)

	result, err := conn.Search(req)
	if err != nil {
		return nil, fmt.Errorf("group search failed: %w", err)
	}

	var authorities []string

	for _, entry := range result.Entries {
		authorities = append(authorities, entry.GetAttributeValues(p.groupRoleAttribute)...)
	}

	return authorities, nil
}

// AuthorityMapper applies the role-name prefix transform to raw authority
// names resolved from the directory.
type AuthorityMapper struct {
	prefix string
}

// NewAuthorityMapper creates a mapper with the given prefix. An empty prefix
// is a configuration error, detected at build time rather than on the first
// authentication.
func NewAuthorityMapper(prefix string) (*AuthorityMapper, error) {
	if prefix == "" {
		return nil, auth.NewConfigurationError("role prefix must not be empty")
	}

	return &AuthorityMapper{prefix: prefix}, nil
}

// Prefix returns the configured prefix.
func (m *AuthorityMapper) Prefix() string {
	return m.prefix
}

// Map prefixes every raw authority name, skipping names already carrying the
// prefix and dropping empty ones.
func (m *AuthorityMapper) Map(raw []string) []string {
	mapped := make([]string, 0, len(raw))

	for _, authority := range raw {
		if authority == "" {
			continue
		}

		if strings.HasPrefix(authority, m.prefix) {
			mapped = append(mapped, authority)
			continue
		}

		mapped = append(mapped, m.prefix+authority)
	}

	return mapped
}
