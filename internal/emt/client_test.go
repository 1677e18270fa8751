package emt

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestRejectsUnsupportedMethod(t *testing.T) {
	fake := newFakeEMT(t)

	_, err := fake.client().Request(context.Background(), http.MethodDelete, "anything", nil, nil)

	require.ErrorIs(t, err, ErrInvalidMethod)
	var transportErr *TransportError
	assert.False(t, errors.As(err, &transportErr))
	assert.Zero(t, fake.totalHits())
}

func TestRequestDecodesEnvelope(t *testing.T) {
	fake := newFakeEMT(t)
	fake.handle(http.MethodGet, "/v3/ping/", `{"code":"00","description":"ok","data":[1,2]}`)

	resp, err := fake.client().Request(context.Background(), http.MethodGet, "v3/ping/", map[string]string{"accessToken": "T"}, nil)

	require.NoError(t, err)
	assert.Equal(t, "00", resp.Code)
	assert.JSONEq(t, `[1,2]`, string(resp.Data))
	assert.Equal(t, "T", fake.header(http.MethodGet, "/v3/ping/", "accessToken"))
	assert.Equal(t, "emt-madrid/1.0", fake.header(http.MethodGet, "/v3/ping/", "User-Agent"))
}

func TestRequestPostSendsJSONBody(t *testing.T) {
	fake := newFakeEMT(t)
	fake.handle(http.MethodPost, "/v3/echo/", `{"code":"00","data":[]}`)

	_, err := fake.client().Request(context.Background(), http.MethodPost, "/v3/echo/", nil, map[string]string{"stopId": "72"})

	require.NoError(t, err)
	assert.JSONEq(t, `{"stopId":"72"}`, fake.body(http.MethodPost, "/v3/echo/"))
	assert.Equal(t, "application/json", fake.header(http.MethodPost, "/v3/echo/", "Content-Type"))
}

func TestRequestWrapsNon2xx(t *testing.T) {
	fake := newFakeEMT(t)
	fake.failWith = http.StatusServiceUnavailable

	_, err := fake.client().Request(context.Background(), http.MethodGet, "v3/ping/", nil, nil)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, http.StatusServiceUnavailable, transportErr.StatusCode)
	assert.Equal(t, http.MethodGet, transportErr.Method)
	assert.Error(t, transportErr.Unwrap())
}

func TestRequestWrapsInvalidJSON(t *testing.T) {
	fake := newFakeEMT(t)
	fake.handle(http.MethodGet, "/v3/ping/", `<html>maintenance</html>`)

	_, err := fake.client().Request(context.Background(), http.MethodGet, "v3/ping/", nil, nil)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, http.StatusOK, transportErr.StatusCode)
}

func TestRequestWrapsConnectionFailure(t *testing.T) {
	fake := newFakeEMT(t)
	client := fake.client()
	fake.server.Close()

	_, err := client.Request(context.Background(), http.MethodGet, "v3/ping/", nil, nil)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Zero(t, transportErr.StatusCode)
}

func TestNewClientWithBaseURLAddsTrailingSlash(t *testing.T) {
	assert.Equal(t, "http://example.test/", NewClientWithBaseURL("http://example.test").BaseURL())
	assert.Equal(t, DefaultBaseURL, NewClient().BaseURL())
}
