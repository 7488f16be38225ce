package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medreport/internal/domain"
)

func TestAuthenticate(t *testing.T) {
	a := NewStaticAuthenticator([]User{
		{Username: "alice", Password: "secret", Role: domain.RolePatient},
		{Username: "drsmith", Password: "stetho", Role: domain.RoleDoctor},
	})
	ctx := context.Background()

	p, err := a.Authenticate(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, domain.Principal{Username: "alice", Role: domain.RolePatient}, p)

	_, err = a.Authenticate(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = a.Authenticate(ctx, "mallory", "secret")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}
