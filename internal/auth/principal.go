package auth

// Principal is an authenticated identity together with its granted
// authorities. It is immutable once returned from an authentication attempt
// and safe for concurrent read-only use.
type Principal struct {
	// Username is the login name the principal authenticated with.
	Username string
	// DN is the directory distinguished name, when the principal was
	// authenticated against a directory. Empty for other sources.
	DN string
	// Authorities are the granted authority names, already run through the
	// configured authority mapper (e.g. "ROLE_developers").
	Authorities []string
	// Attributes carries additional attributes from the identity source:
	// directory entry attributes or federated identity claims.
	Attributes map[string][]string
}

// HasAuthority reports whether the principal holds the given authority.
func (p *Principal) HasAuthority(authority string) bool {
	for _, a := range p.Authorities {
		if a == authority {
			return true
		}
	}

	return false
}

// HasAnyAuthority reports whether the principal holds at least one of the
// given authorities. An empty list yields false.
func (p *Principal) HasAnyAuthority(authorities ...string) bool {
	for _, a := range authorities {
		if p.HasAuthority(a) {
			return true
		}
	}

	return false
}

// HasAllAuthorities reports whether the principal holds all of the given
// authorities. An empty list yields true.
func (p *Principal) HasAllAuthorities(authorities ...string) bool {
	for _, a := range authorities {
		if !p.HasAuthority(a) {
			return false
		}
	}

	return true
}

// Attribute returns the first value of the named attribute, or "".
func (p *Principal) Attribute(name string) string {
	values := p.Attributes[name]
	if len(values) == 0 {
		return ""
	}

	return values[0]
}
