// Package dirserver implements an in-process LDAP server for test and demo
// environments, seeded from LDIF files. It supports simple bind against the
// userPassword attribute (plus an optional manager identity) and subtree
// search; everything else a production directory does is out of scope.
package dirserver

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	goldap "github.com/go-ldap/ldap/v3"
	"github.com/go-ldap/ldif"
	"github.com/nmcclain/ldap"
	"github.com/rs/zerolog/log"
)

// Server is an embedded LDAP server bound to 127.0.0.1.
type Server struct {
	root       string
	port       int
	ldifGlob   string
	managerDN  string
	managerPW  string
	entries    []*ldap.Entry
	byDN       map[string]*ldap.Entry
	srv        *ldap.Server
	running    bool
}

// New creates an embedded server for the given root suffix, listening port,
// and LDIF seed glob pattern. The server is not started until Start.
func New(root string, port int, ldifGlob string) *Server {
	return &Server{
		root:     root,
		port:     port,
		ldifGlob: ldifGlob,
		byDN:     map[string]*ldap.Entry{},
	}
}

// WithManager sets a manager identity accepted for simple bind in addition
// to the seeded entries.
func (s *Server) WithManager(dn, password string) *Server {
	s.managerDN = dn
	s.managerPW = password

	return s
}

// Addr returns the address clients should dial.
func (s *Server) Addr() string {
	return fmt.Sprintf("127.0.0.1:%d", s.port)
}

// Root returns the root suffix the server was created with.
func (s *Server) Root() string {
	return s.root
}

// Start loads the seed data, binds the listener, and begins serving. A seed
// pattern matching zero files is not an error; a port already in use is.
func (s *Server) Start() error {
	if s.running {
		return fmt.Errorf("embedded directory server already running on %s", s.Addr())
	}

	if err := s.loadSeeds(); err != nil {
		return err
	}

	s.ensureRootEntry()

	srv := ldap.NewServer()
	srv.EnforceLDAP = true // let the library apply filter, scope and attribute selection
	srv.BindFunc("", s)
	srv.SearchFunc("", s)
	s.srv = srv

	// acquire the port here so an occupied port fails Start instead of a
	// foreign listener passing for the embedded server
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("embedded directory server failed to start: %w", err)
	}

	go func() {
		if err := srv.Serve(ln); err != nil {
			log.Error().Err(err).Str("addr", s.Addr()).Msg("embedded directory server terminated")
		}
	}()

	s.running = true
	log.Info().Str("addr", s.Addr()).Str("root", s.root).Int("entries", len(s.entries)).
		Msg("embedded directory server started")

	return nil
}

// Stop shuts the server down. Safe to call on a server that never started.
func (s *Server) Stop() {
	if !s.running || s.srv == nil {
		return
	}

	s.srv.Quit <- true
	s.running = false

	log.Info().Str("addr", s.Addr()).Msg("embedded directory server stopped")
}

// loadSeeds parses every LDIF file matching the glob pattern into the
// in-memory entry set.
func (s *Server) loadSeeds() error {
	if s.ldifGlob == "" {
		return nil
	}

	matches, err := filepath.Glob(s.ldifGlob)
	if err != nil {
		return fmt.Errorf("invalid ldif pattern %q: %w", s.ldifGlob, err)
	}

	for _, match := range matches {
		data, err := os.ReadFile(match) //nolint:gosec // operator-supplied seed path
		if err != nil {
			return fmt.Errorf("failed to read ldif file %s: %w", match, err)
		}

		parsed, err := ldif.Parse(string(data))
		if err != nil {
			return fmt.Errorf("malformed ldif file %s: %w", match, err)
		}

		for _, entry := range parsed.AllEntries() {
			s.addEntry(convertEntry(entry))
		}

		log.Debug().Str("file", match).Msg("loaded ldif seed file")
	}

	return nil
}

// ensureRootEntry synthesizes the root suffix entry when no seed supplied it,
// so that searches scoped at the root always have a base object.
func (s *Server) ensureRootEntry() {
	if s.root == "" || s.byDN[normalizeDN(s.root)] != nil {
		return
	}

	rdn := strings.SplitN(s.root, ",", 2)[0]
	parts := strings.SplitN(rdn, "=", 2)

	attrs := []*ldap.EntryAttribute{
		{Name: "objectClass", Values: []string{"top", "domain"}},
	}
	if len(parts) == 2 {
		attrs = append(attrs, &ldap.EntryAttribute{Name: parts[0], Values: []string{parts[1]}})
	}

	s.addEntry(&ldap.Entry{DN: s.root, Attributes: attrs})
}

func (s *Server) addEntry(entry *ldap.Entry) {
	key := normalizeDN(entry.DN)
	if existing, ok := s.byDN[key]; ok {
		existing.Attributes = entry.Attributes
		return
	}

	s.entries = append(s.entries, entry)
	s.byDN[key] = entry
}

// Bind implements the nmcclain/ldap Binder interface.
func (s *Server) Bind(bindDN, bindSimplePw string, _ net.Conn) (ldap.LDAPResultCode, error) {
	// anonymous bind, used for searches when no manager identity is set
	if bindDN == "" && bindSimplePw == "" {
		return ldap.LDAPResultSuccess, nil
	}

	if s.managerDN != "" && normalizeDN(bindDN) == normalizeDN(s.managerDN) {
		if bindSimplePw == s.managerPW {
			return ldap.LDAPResultSuccess, nil
		}

		return ldap.LDAPResultInvalidCredentials, nil
	}

	entry, ok := s.byDN[normalizeDN(bindDN)]
	if !ok {
		return ldap.LDAPResultInvalidCredentials, nil
	}

	// unauthenticated binds are always rejected
	if bindSimplePw == "" {
		return ldap.LDAPResultInvalidCredentials, nil
	}

	for _, attr := range entry.Attributes {
		if !strings.EqualFold(attr.Name, "userPassword") {
			continue
		}

		for _, v := range attr.Values {
			if v == bindSimplePw {
				return ldap.LDAPResultSuccess, nil
			}
		}
	}

	return ldap.LDAPResultInvalidCredentials, nil
}

// Search implements the nmcclain/ldap Searcher interface. Entries are
// pre-filtered by base DN; filter, scope and attribute selection are applied
// by the library via EnforceLDAP.
func (s *Server) Search(_ string, req ldap.SearchRequest, _ net.Conn) (ldap.ServerSearchResult, error) {
	base := normalizeDN(req.BaseDN)

	var matched []*ldap.Entry

	for _, entry := range s.entries {
		dn := normalizeDN(entry.DN)
		if dn == base || strings.HasSuffix(dn, ","+base) || base == "" {
			matched = append(matched, entry)
		}
	}

	return ldap.ServerSearchResult{
		Entries:    matched,
		Referrals:  []string{},
		Controls:   []ldap.Control{},
		ResultCode: ldap.LDAPResultSuccess,
	}, nil
}

// convertEntry converts a go-ldap entry parsed from LDIF into the server
// library's entry type.
func convertEntry(in *goldap.Entry) *ldap.Entry {
	out := &ldap.Entry{DN: in.DN}

	for _, attr := range in.Attributes {
		out.Attributes = append(out.Attributes, &ldap.EntryAttribute{
			Name:   attr.Name,
			Values: attr.Values,
		})
	}

	return out
}

// normalizeDN lowercases a DN and strips whitespace around RDN separators so
// lookups are insensitive to formatting differences between seeds, binds and
// searches.
func normalizeDN(dn string) string {
	parts := strings.Split(strings.ToLower(dn), ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}

	return strings.Join(parts, ",")
}
