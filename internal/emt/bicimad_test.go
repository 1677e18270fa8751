package emt

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthenticatedStationClient(t *testing.T, fake *fakeEMT) *StationClient {
	t.Helper()
	fake.handle(http.MethodGet, loginPath, loginOK)
	client := NewStationClient(fake.client(), "user@example.com", "secret", "1")
	require.NoError(t, client.Authenticate(context.Background()))
	return client
}

func TestUpdateStation(t *testing.T) {
	fake := newFakeEMT(t)
	fake.handle(http.MethodGet, stationPath, stationOK)
	client := newAuthenticatedStationClient(t, fake)

	require.NoError(t, client.UpdateStation(context.Background(), "1"))

	info := client.StationInfo()
	assert.Equal(t, "1", info.StationID)
	assert.Equal(t, "1a", info.Number)
	assert.Equal(t, "Puerta del Sol A", info.Name)
	assert.Equal(t, "Puerta del Sol nº 1", info.Address)
	assert.Equal(t, &Coordinates{Lon: -3.7024255, Lat: 40.4168961}, info.Coordinates)
	assert.Equal(t, intPtr(12), client.DockedBikes())
	assert.Equal(t, intPtr(9), client.FreeBases())
	assert.Equal(t, "T", fake.header(http.MethodGet, stationPath, "accessToken"))
}

func TestUpdateStationMissingOptionalFields(t *testing.T) {
	fake := newFakeEMT(t)
	fake.handle(http.MethodGet, stationPath, `{"code":"00","data":[{"number":7}]}`)
	client := newAuthenticatedStationClient(t, fake)

	require.NoError(t, client.UpdateStation(context.Background(), "1"))

	info := client.StationInfo()
	assert.Equal(t, "7", info.Number)
	assert.Equal(t, "7", info.Name)
	assert.Nil(t, info.Coordinates)
	assert.Nil(t, client.DockedBikes())
	assert.Nil(t, client.FreeBases())
}

func TestUpdateStationDegradedFetchesAgain(t *testing.T) {
	fake := newFakeEMT(t)
	fake.handle(http.MethodGet, stationPath, `{"code":"81","data":[]}`)
	client := newAuthenticatedStationClient(t, fake)

	var parseErr *ParseError
	require.ErrorAs(t, client.UpdateStation(context.Background(), "1"), &parseErr)
	assert.Equal(t, 2, fake.hitCount(http.MethodGet, stationPath))
}

func TestUpdateStationRejections(t *testing.T) {
	for _, code := range []string{"90", "80", "98"} {
		t.Run(code, func(t *testing.T) {
			fake := newFakeEMT(t)
			fake.handle(http.MethodGet, stationPath, stationOK)
			client := newAuthenticatedStationClient(t, fake)
			require.NoError(t, client.UpdateStation(context.Background(), "1"))

			fake.handle(http.MethodGet, stationPath, `{"code":"`+code+`"}`)
			require.NoError(t, client.UpdateStation(context.Background(), "1"))

			assert.Equal(t, intPtr(12), client.DockedBikes())
			assert.Equal(t, 2, fake.hitCount(http.MethodGet, stationPath))
		})
	}
}

func TestUpdateStationMalformedRaises(t *testing.T) {
	fake := newFakeEMT(t)
	fake.handle(http.MethodGet, stationPath, `{"code":"00","data":[]}`)
	client := newAuthenticatedStationClient(t, fake)

	err := client.UpdateStation(context.Background(), "1")

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.ErrorIs(t, err, ErrMissingField)
	assert.Contains(t, err.Error(), "Bicimad station information")
}

func TestStationClientInvalidToken(t *testing.T) {
	fake := newFakeEMT(t)
	fake.handle(http.MethodGet, loginPath, loginRejected)
	fake.handle(http.MethodGet, stationPath, stationOK)
	client := NewStationClient(fake.client(), "user@example.com", "wrong", "1")
	require.NoError(t, client.Authenticate(context.Background()))

	require.NoError(t, client.UpdateStation(context.Background(), "1"))

	assert.Zero(t, fake.hitCount(http.MethodGet, stationPath))
	assert.Nil(t, client.DockedBikes())
}
