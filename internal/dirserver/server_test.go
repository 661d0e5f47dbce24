package dirserver

import (
	"fmt"
	"net"
	"testing"

	goldap "github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T, port int, ldifGlob string) *Server {
	t.Helper()

	s := New("dc=example,dc=com", port, ldifGlob)
	require.NoError(t, s.Start())

	t.Cleanup(s.Stop)

	return s
}

func dial(t *testing.T, s *Server) *goldap.Conn {
	t.Helper()

	conn, err := goldap.DialURL("ldap://" + s.Addr())
	require.NoError(t, err)

	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func TestStartAndStop(t *testing.T) {
	s := startTestServer(t, 18910, "testdata/seed.ldif")

	assert.Equal(t, "127.0.0.1:18910", s.Addr())
	assert.Equal(t, "dc=example,dc=com", s.Root())
}

func TestStartTwiceFails(t *testing.T) {
	s := startTestServer(t, 18911, "")

	assert.Error(t, s.Start())
}

func TestPortConflictSurfacesAsError(t *testing.T) {
	startTestServer(t, 18912, "")

	other := New("dc=example,dc=com", 18912, "")
	assert.Error(t, other.Start())
}

func TestForeignListenerOnPortSurfacesAsError(t *testing.T) {
	// a plain TCP listener already holds the port; Start must not mistake
	// it for its own listener
	ln, err := net.Listen("tcp", "127.0.0.1:18918")
	require.NoError(t, err)

	t.Cleanup(func() { _ = ln.Close() })

	s := New("dc=example,dc=com", 18918, "")
	assert.Error(t, s.Start())
}

func TestZeroSeedMatchesIsNotAnError(t *testing.T) {
	s := startTestServer(t, 18913, "testdata/no-such-*.ldif")

	// the synthesized root entry is still searchable
	conn := dial(t, s)

	result, err := conn.Search(goldap.NewSearchRequest(
		"dc=example,dc=com",
		goldap.ScopeBaseObject,
		goldap.NeverDerefAliases,
		0, 5, false,
		"(objectClass=*)",
		nil,
		nil,
	))
	require.NoError(t, err)
	assert.Len(t, result.Entries, 1)
}

func TestBind(t *testing.T) {
	s := New("dc=example,dc=com", 18914, "testdata/seed.ldif").
		WithManager("uid=admin,ou=system", "secret")
	require.NoError(t, s.Start())

	t.Cleanup(s.Stop)

	tests := []struct {
		name    string
		dn      string
		pw      string
		wantErr bool
	}{
		{"seeded user with correct password", "uid=jdoe,ou=people,dc=example,dc=com", "jdoespassword", false},
		{"seeded user with wrong password", "uid=jdoe,ou=people,dc=example,dc=com", "wrong", true},
		{"seeded user with empty password", "uid=jdoe,ou=people,dc=example,dc=com", "", true},
		{"dn formatting is normalized", "UID=jdoe, OU=people, DC=example, DC=com", "jdoespassword", false},
		{"manager identity", "uid=admin,ou=system", "secret", false},
		{"manager with wrong password", "uid=admin,ou=system", "nope", true},
		{"unknown dn", "uid=ghost,ou=people,dc=example,dc=com", "whatever", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := dial(t, s)

			err := conn.Bind(tt.dn, tt.pw)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSubtreeSearchWithFilter(t *testing.T) {
	s := startTestServer(t, 18915, "testdata/seed.ldif")
	conn := dial(t, s)

	result, err := conn.Search(goldap.NewSearchRequest(
		"dc=example,dc=com",
		goldap.ScopeWholeSubtree,
		goldap.NeverDerefAliases,
		0, 5, false,
		"(uid=jdoe)",
		[]string{"cn"},
		nil,
	))
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)

	entry := result.Entries[0]
	assert.Equal(t, "uid=jdoe,ou=people,dc=example,dc=com", entry.DN)
	assert.Equal(t, "John Doe", entry.GetAttributeValue("cn"))
}

func TestSearchByMembershipValue(t *testing.T) {
	s := startTestServer(t, 18916, "testdata/seed.ldif")
	conn := dial(t, s)

	filter := fmt.Sprintf("(uniqueMember=%s)", goldap.EscapeFilter("uid=jdoe,ou=people,dc=example,dc=com"))

	result, err := conn.Search(goldap.NewSearchRequest(
		"dc=example,dc=com",
		goldap.ScopeWholeSubtree,
		goldap.NeverDerefAliases,
		0, 5, false,
		filter,
		[]string{"cn"},
		nil,
	))
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, "staff", result.Entries[0].GetAttributeValue("cn"))
}

func TestSearchOutsideBaseReturnsNothing(t *testing.T) {
	s := startTestServer(t, 18917, "testdata/seed.ldif")
	conn := dial(t, s)

	result, err := conn.Search(goldap.NewSearchRequest(
		"ou=missing,dc=example,dc=com",
		goldap.ScopeWholeSubtree,
		goldap.NeverDerefAliases,
		0, 5, false,
		"(objectClass=*)",
		nil,
		nil,
	))
	require.NoError(t, err)
	assert.Empty(t, result.Entries)
}
