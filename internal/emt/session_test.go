package emt

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticateStoresToken(t *testing.T) {
	fake := newFakeEMT(t)
	fake.handle(http.MethodGet, loginPath, loginOK)
	session := NewSession(fake.client(), "user@example.com", "secret")

	require.NoError(t, session.Authenticate(context.Background()))

	assert.Equal(t, "T", session.Token())
	assert.True(t, session.Valid())
	assert.Equal(t, "user@example.com", fake.header(http.MethodGet, loginPath, "email"))
	assert.Equal(t, "secret", fake.header(http.MethodGet, loginPath, "password"))
}

func TestAuthenticateRejectedCredentials(t *testing.T) {
	for _, body := range []string{
		loginRejected,
		`{"code":"00","data":[{"accessToken":"ignored"}]}`,
		`{"code":"02"}`,
	} {
		fake := newFakeEMT(t)
		fake.handle(http.MethodGet, loginPath, body)
		session := NewSession(fake.client(), "user@example.com", "wrong")

		require.NoError(t, session.Authenticate(context.Background()))

		assert.Equal(t, InvalidToken, session.Token())
		assert.False(t, session.Valid())
	}
}

func TestAuthenticateMalformedResponse(t *testing.T) {
	cases := map[string]string{
		"no data":         `{"code":"01"}`,
		"empty data":      `{"code":"01","data":[]}`,
		"no access token": `{"code":"01","data":[{"user":"someone"}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			fake := newFakeEMT(t)
			fake.handle(http.MethodGet, loginPath, body)
			session := NewSession(fake.client(), "user@example.com", "secret")

			err := session.Authenticate(context.Background())

			var parseErr *ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.ErrorIs(t, err, ErrMissingField)
			assert.Empty(t, session.Token())
		})
	}
}

func TestAuthenticateTransportFailure(t *testing.T) {
	fake := newFakeEMT(t)
	fake.failWith = http.StatusInternalServerError
	session := NewSession(fake.client(), "user@example.com", "secret")

	err := session.Authenticate(context.Background())

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Empty(t, session.Token())
}
