package emt

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// fakeEMT serves canned bodies keyed by "METHOD /path" and records every request it sees.
type fakeEMT struct {
	mu       sync.Mutex
	routes   map[string]string
	hits     map[string]int
	headers  map[string]http.Header
	bodies   map[string]string
	server   *httptest.Server
	failWith int
}

func newFakeEMT(t *testing.T) *fakeEMT {
	t.Helper()
	f := &fakeEMT{
		routes:  map[string]string{},
		hits:    map[string]int{},
		headers: map[string]http.Header{},
		bodies:  map[string]string{},
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeEMT) serve(w http.ResponseWriter, r *http.Request) {
	key := r.Method + " " + r.URL.Path
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.hits[key]++
	f.headers[key] = r.Header.Clone()
	f.bodies[key] = string(body)
	response, ok := f.routes[key]
	failWith := f.failWith
	f.mu.Unlock()

	if failWith != 0 {
		http.Error(w, "upstream failure", failWith)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, response)
}

func (f *fakeEMT) handle(method, path, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[method+" "+path] = body
}

func (f *fakeEMT) hitCount(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[method+" "+path]
}

func (f *fakeEMT) header(method, path, name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.headers[method+" "+path].Get(name)
}

func (f *fakeEMT) body(method, path string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[method+" "+path]
}

func (f *fakeEMT) totalHits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.hits {
		total += n
	}
	return total
}

func (f *fakeEMT) client() *Client {
	return NewClientWithBaseURL(f.server.URL)
}

const (
	loginPath       = "/v3/mobilitylabs/user/login/"
	loginOK         = `{"code":"01","description":"Token extended","data":[{"accessToken":"T"}]}`
	loginRejected   = `{"code":"89","description":"Invalid credentials","data":[]}`
	stopDetailPath  = "/v3/transport/busemtmad/stops/72/detail/"
	arroundStopPath = "/v3/transport/busemtmad/stops/arroundstop/72/0/"
	arrivalsPath    = "/v3/transport/busemtmad/stops/72/arrives/"
	stationPath     = "/v3/transport/bicimad/stations/1"
)

const stopDetailOK = `{
  "code": "00",
  "description": "Data recovered OK",
  "data": [{
    "stops": [{
      "stop": "72",
      "name": "Cibeles-Casa de América",
      "postalAddress": "Pº de Recoletos, 2",
      "geometry": {"type": "Point", "coordinates": [-3.69214, 40.41995]},
      "dataLine": [
        {"line": "005", "label": "5", "direction": "A", "headerA": "SOL/SEVILLA", "headerB": "CHAMARTIN",
         "startTime": "07:00", "stopTime": "23:30", "minFreq": "4", "maxFreq": "15", "dayType": "LA"},
        {"line": "027", "label": "27", "direction": "B", "headerA": "EMBAJADORES", "headerB": "PLAZA CASTILLA",
         "startTime": "06:00", "stopTime": "23:45", "minFreq": "3", "maxFreq": "12", "dayType": "LA"}
      ]
    }]
  }]
}`

const arroundStopOK = `{
  "code": "00",
  "description": "Data recovered OK",
  "data": [{
    "stopId": 72,
    "stopName": "Cibeles-Casa de América",
    "address": "Pº de Recoletos, 2",
    "geometry": {"type": "Point", "coordinates": [-3.69214, 40.41995]},
    "lines": [
      {"line": "005", "label": "5", "nameA": "SOL/SEVILLA", "nameB": "CHAMARTIN", "to": "B"},
      {"line": "027", "label": "27", "nameA": "EMBAJADORES", "nameB": "PLAZA CASTILLA", "to": "A"}
    ]
  }]
}`

const arrivalsOK = `{
  "code": "00",
  "description": "Data recovered OK",
  "data": [{
    "Arrive": [
      {"line": "27", "stop": "72", "estimateArrive": 125, "DistanceBus": 640},
      {"line": "5", "stop": "72", "estimateArrive": 2765, "DistanceBus": 9001},
      {"line": "27", "stop": "72", "estimateArrive": 719, "DistanceBus": 3200},
      {"line": "N26", "stop": "72", "estimateArrive": 60, "DistanceBus": 100}
    ]
  }]
}`

const stationOK = `{
  "code": "00",
  "description": "Data recovered OK",
  "data": [{
    "id": 1,
    "number": "1a",
    "name": "Puerta del Sol A",
    "address": "Puerta del Sol nº 1",
    "geometry": {"type": "Point", "coordinates": [-3.7024255, 40.4168961]},
    "dock_bikes": 12,
    "free_bases": 9
  }]
}`
