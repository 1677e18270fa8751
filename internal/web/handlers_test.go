package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emt-madrid/internal/sensor"
	"emt-madrid/internal/storage"
)

func intPtr(n int) *int {
	return &n
}

var snapshotTime = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

// latestOnly implements storage.DataStore but not storage.SnapshotStore.
type latestOnly struct {
	readings []sensor.Reading
	err      error
}

func (s *latestOnly) ReadLatest(context.Context) ([]sensor.Reading, time.Time, error) {
	if s.err != nil {
		return nil, time.Time{}, s.err
	}
	return s.readings, snapshotTime, nil
}

func (s *latestOnly) ListAvailableTimestamps(context.Context) ([]time.Time, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []time.Time{snapshotTime}, nil
}

type snapshots struct {
	latestOnly
	lookups int
}

func (s *snapshots) GetSnapshotByTimestamp(context.Context, time.Time) ([]sensor.Reading, time.Time, error) {
	s.lookups++
	return s.readings, snapshotTime, nil
}

type liveReadings []sensor.Reading

func (l liveReadings) Readings() ([]sensor.Reading, time.Time) {
	return l, snapshotTime.Add(time.Minute)
}

func stored() []sensor.Reading {
	return []sensor.Reading{
		{Kind: sensor.KindBus, SourceID: "72", Entity: "Bus 27 - Cibeles", Line: "27", State: intPtr(2), Secondary: intPtr(11), Distance: intPtr(640)},
		{Kind: sensor.KindBicimad, SourceID: "1", Entity: "Bicimad - Sol", State: intPtr(12), Secondary: intPtr(9)},
	}
}

func newServer(t *testing.T, store storage.DataStore, live LiveSource) *http.ServeMux {
	t.Helper()
	handler, err := NewHandler(store, live)
	require.NoError(t, err)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	return mux
}

func get(mux *http.ServeMux, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decodeSensors(t *testing.T, rec *httptest.ResponseRecorder) SensorsResponse {
	t.Helper()
	var response SensorsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	return response
}

func TestSensorsFromStore(t *testing.T) {
	mux := newServer(t, &latestOnly{readings: stored()}, nil)

	rec := get(mux, "/api/sensors")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	response := decodeSensors(t, rec)
	assert.Equal(t, "2024-05-01T08:00:00Z", response.Timestamp)
	assert.False(t, response.Live)
	require.Len(t, response.Sensors, 2)
	assert.Equal(t, "27", response.Sensors[0].Line)
	assert.Equal(t, intPtr(640), response.Sensors[0].Distance)
	assert.Nil(t, response.Sensors[1].Distance)
}

func TestSensorsFallsBackToLive(t *testing.T) {
	live := liveReadings{{Kind: sensor.KindBus, SourceID: "72", Entity: "Bus 5 - Cibeles", Line: "5"}}
	mux := newServer(t, &latestOnly{err: storage.ErrNoSnapshots}, live)

	rec := get(mux, "/api/sensors")

	require.Equal(t, http.StatusOK, rec.Code)
	response := decodeSensors(t, rec)
	assert.True(t, response.Live)
	assert.Equal(t, "2024-05-01T08:01:00Z", response.Timestamp)
	require.Len(t, response.Sensors, 1)
	assert.Nil(t, response.Sensors[0].State)
}

func TestSensorsWithoutStoreOrLive(t *testing.T) {
	mux := newServer(t, &latestOnly{err: errors.New("unavailable")}, nil)

	rec := get(mux, "/api/sensors")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSensorsStoreFailureIsNotMaskedByLive(t *testing.T) {
	live := liveReadings{{Kind: sensor.KindBus, SourceID: "72", Entity: "Bus 5 - Cibeles", Line: "5"}}
	mux := newServer(t, &latestOnly{err: errors.New("connection refused")}, live)

	rec := get(mux, "/api/sensors")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestTimestamps(t *testing.T) {
	mux := newServer(t, &latestOnly{}, nil)

	rec := get(mux, "/api/timestamps")

	require.Equal(t, http.StatusOK, rec.Code)
	var response TimestampsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&response))
	assert.Equal(t, []string{"2024-05-01T08:00:00Z"}, response.Timestamps)
}

func TestHistorySnapshotCached(t *testing.T) {
	store := &snapshots{latestOnly: latestOnly{readings: stored()}}
	mux := newServer(t, store, nil)

	for i := 0; i < 2; i++ {
		rec := get(mux, "/api/history/snapshot?timestamp=2024-05-01T08:00:30Z")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Cache-Control"), "immutable")
		assert.Len(t, decodeSensors(t, rec).Sensors, 2)
	}

	assert.Equal(t, 1, store.lookups)
}

func TestHistorySnapshotErrors(t *testing.T) {
	mux := newServer(t, &latestOnly{}, nil)

	assert.Equal(t, http.StatusBadRequest, get(mux, "/api/history/snapshot").Code)
	assert.Equal(t, http.StatusBadRequest, get(mux, "/api/history/snapshot?timestamp=yesterday").Code)
	assert.Equal(t, http.StatusNotImplemented, get(mux, "/api/history/snapshot?timestamp=2024-05-01T08:00:00Z").Code)
}

func TestStatusPage(t *testing.T) {
	mux := newServer(t, &latestOnly{}, nil)

	rec := get(mux, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), sensor.Attribution)

	assert.Equal(t, http.StatusNotFound, get(mux, "/missing").Code)
}
