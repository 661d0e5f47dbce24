// Package main provides the entry point for the dirgate authentication
// gateway. It initializes and runs a web server using the Fiber framework
// that authenticates users against local accounts, LDAP directories (with an
// optional embedded server for test and demo setups), and federated OIDC
// providers. The application uses gorm for mirroring authenticated
// identities and their group memberships into a local database.
package main
