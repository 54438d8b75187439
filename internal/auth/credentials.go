// Package auth provides credential checking, cookie sessions, and request
// middleware for the panel.
package auth

import "crypto/subtle"

// Identity describes an authenticated user.
type Identity struct {
	Username string
	Admin    bool
}

// CredentialProvider validates a username/password pair. Implementations
// decide where accounts live; the server only sees this interface.
type CredentialProvider interface {
	Authenticate(username, password string) (Identity, bool)
}

// StaticCredentials is a single-account provider backed by configuration.
// The one account it knows is the admin.
type StaticCredentials struct {
	Username string
	Password string
}

// Authenticate checks the pair against the configured account in constant
// time. An empty configured password disables login entirely.
func (c StaticCredentials) Authenticate(username, password string) (Identity, bool) {
	if c.Password == "" {
		return Identity{}, false
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(c.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(c.Password)) == 1
	if !userOK || !passOK {
		return Identity{}, false
	}

	return Identity{Username: c.Username, Admin: true}, true
}
