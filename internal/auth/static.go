// Package auth provides the authentication collaborator. The core only
// needs credentials resolved to a Principal; credential storage and
// hashing live outside this service.
package auth

import (
	"context"
	"fmt"

	"medreport/internal/domain"
)

// User is one configured credential entry.
type User struct {
	Username string      `yaml:"username"`
	Password string      `yaml:"password"`
	Role     domain.Role `yaml:"role"`
}

// StaticAuthenticator resolves credentials against a fixed user list
// loaded from configuration.
type StaticAuthenticator struct {
	users map[string]User
}

func NewStaticAuthenticator(users []User) *StaticAuthenticator {
	m := make(map[string]User, len(users))
	for _, u := range users {
		m[u.Username] = u
	}
	return &StaticAuthenticator{users: m}
}

// Authenticate returns the Principal for matching credentials. Unknown
// users and wrong passwords are indistinguishable to the caller.
func (a *StaticAuthenticator) Authenticate(_ context.Context, username, password string) (domain.Principal, error) {
	u, ok := a.users[username]
	if !ok || u.Password != password {
		return domain.Principal{}, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthenticated)
	}
	return domain.Principal{Username: u.Username, Role: u.Role}, nil
}

var _ domain.Authenticator = (*StaticAuthenticator)(nil)
