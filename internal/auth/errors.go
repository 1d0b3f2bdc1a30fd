package auth

import "errors"

// Failure taxonomy for the authentication pipeline. Client-facing handlers
// map these to responses without leaking which branch was taken; server
// faults are logged with full context and surface as opaque 500s.
var (
	// ErrNoCredential indicates the request carried neither a token cookie
	// nor an Authorization header.
	ErrNoCredential = errors.New("auth: no credential presented")
	// ErrMalformedCredential indicates a credential was presented but could
	// not be parsed (wrong scheme, missing token).
	ErrMalformedCredential = errors.New("auth: malformed credential")
	// ErrInvalidToken indicates a bad signature, malformed structure, or an
	// expired token.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrUnknownPrincipal indicates a valid token whose backing account no
	// longer exists. Treated as a server-side inconsistency, not a client
	// error.
	ErrUnknownPrincipal = errors.New("auth: token subject has no backing account")
	// ErrInvalidCredentials indicates a login failure. Covers both a wrong
	// password and a malformed stored hash so callers cannot tell which
	// occurred.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrHashing indicates the password hasher failed on entropy, encoding,
	// or a malformed stored hash. Never raised for password content.
	ErrHashing = errors.New("auth: password hashing failed")
	// ErrSigning indicates token serialization or signing failed. A server
	// fault, not a client fault.
	ErrSigning = errors.New("auth: token signing failed")
)
