// Package handler holds shared constants for the web handlers.
package handler

const (
	// RootPath is the root path the route group.
	RootPath = "/"

	// SessionCookie is the name of the login session cookie.
	SessionCookie = "session"

	// PrincipalLocal is the fiber.Locals key holding the authenticated
	// principal of the current request.
	PrincipalLocal = "principal"

	// ErrNilACDFatalLogMsg is used if app or cfg or manager var pointer is nil.
	ErrNilACDFatalLogMsg = "app, cfg or manager is nil"
)
