package web

import (
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"emt-madrid/internal/sensor"
	"emt-madrid/internal/storage"
)

const timestampLayout = "2006-01-02T15:04:05Z"

//go:embed templates/*
var templatesFS embed.FS

// LiveSource provides the readings of the last poll, used when the store has nothing yet.
type LiveSource interface {
	Readings() ([]sensor.Reading, time.Time)
}

// SensorResponse is the JSON response format for a single sensor reading.
type SensorResponse struct {
	Kind      string `json:"kind"`
	SourceID  string `json:"sourceId"`
	Entity    string `json:"entity"`
	Line      string `json:"line,omitempty"`
	State     *int   `json:"state"`
	Secondary *int   `json:"secondary"`
	Distance  *int   `json:"distance,omitempty"`
}

// SensorsResponse is the JSON response for the sensors API.
type SensorsResponse struct {
	Timestamp string           `json:"timestamp"`
	Live      bool             `json:"live"`
	Sensors   []SensorResponse `json:"sensors"`
}

// TimestampsResponse lists the stored snapshot times.
type TimestampsResponse struct {
	Timestamps []string `json:"timestamps"`
}

// Handler provides HTTP handlers for the web interface.
type Handler struct {
	store     storage.DataStore
	live      LiveSource
	templates *template.Template

	// Snapshots are immutable, no TTL needed
	snapshotCache   map[string][]sensor.Reading
	snapshotCacheMu sync.RWMutex
}

// NewHandler creates a new web handler. live may be nil when no collector runs in-process.
func NewHandler(store storage.DataStore, live LiveSource) (*Handler, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	return &Handler{
		store:         store,
		live:          live,
		templates:     tmpl,
		snapshotCache: make(map[string][]sensor.Reading),
	}, nil
}

// RegisterRoutes registers all HTTP routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", h.handleStatus)
	mux.HandleFunc("/api/sensors", h.handleSensors)
	mux.HandleFunc("/api/timestamps", h.handleTimestamps)
	mux.HandleFunc("/api/history/snapshot", h.handleHistorySnapshot)
}

// handleStatus serves the status page.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	data := struct{ Attribution string }{sensor.Attribution}
	if err := h.templates.ExecuteTemplate(w, "status.html", data); err != nil {
		log.Error().Err(err).Msg("Template error")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// handleSensors serves the latest readings. Live readings are only used while the store is empty.
func (h *Handler) handleSensors(w http.ResponseWriter, r *http.Request) {
	readings, timestamp, err := h.store.ReadLatest(r.Context())
	live := false
	if err != nil {
		if h.live == nil || !errors.Is(err, storage.ErrNoSnapshots) {
			log.Error().Err(err).Msg("Failed to read latest readings")
			http.Error(w, "Failed to fetch sensor data", http.StatusInternalServerError)
			return
		}
		log.Debug().Err(err).Msg("No stored data, serving live readings")
		readings, timestamp = h.live.Readings()
		live = true
	}

	writeJSON(w, "no-store", SensorsResponse{
		Timestamp: timestamp.UTC().Format(timestampLayout),
		Live:      live,
		Sensors:   toSensorResponses(readings),
	})
}

// handleTimestamps lists the stored snapshot times, newest first.
func (h *Handler) handleTimestamps(w http.ResponseWriter, r *http.Request) {
	timestamps, err := h.store.ListAvailableTimestamps(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list timestamps")
		http.Error(w, "Failed to list timestamps", http.StatusInternalServerError)
		return
	}

	response := TimestampsResponse{Timestamps: make([]string, len(timestamps))}
	for i, ts := range timestamps {
		response.Timestamps[i] = ts.UTC().Format(timestampLayout)
	}

	writeJSON(w, "no-store", response)
}

// handleHistorySnapshot serves the readings stored closest to a given timestamp.
func (h *Handler) handleHistorySnapshot(w http.ResponseWriter, r *http.Request) {
	timestampStr := r.URL.Query().Get("timestamp")
	if timestampStr == "" {
		http.Error(w, "Missing timestamp parameter", http.StatusBadRequest)
		return
	}

	targetTime, err := time.Parse(time.RFC3339, timestampStr)
	if err != nil {
		http.Error(w, "Invalid timestamp format", http.StatusBadRequest)
		return
	}

	cacheKey := targetTime.UTC().Format(time.RFC3339)

	h.snapshotCacheMu.RLock()
	if readings, ok := h.snapshotCache[cacheKey]; ok {
		h.snapshotCacheMu.RUnlock()
		log.Debug().Str("timestamp", cacheKey).Int("readings", len(readings)).Msg("Snapshot cache hit")
		h.writeSnapshotResponse(w, targetTime, readings)
		return
	}
	h.snapshotCacheMu.RUnlock()

	snapshots, ok := h.store.(storage.SnapshotStore)
	if !ok {
		http.Error(w, "Historical snapshot data not available with current storage backend", http.StatusNotImplemented)
		return
	}

	readings, _, err := snapshots.GetSnapshotByTimestamp(r.Context(), targetTime)
	if err != nil {
		log.Error().Err(err).Str("timestamp", timestampStr).Msg("Failed to get snapshot")
		http.Error(w, "Failed to fetch snapshot data", http.StatusInternalServerError)
		return
	}

	h.snapshotCacheMu.Lock()
	h.snapshotCache[cacheKey] = readings
	h.snapshotCacheMu.Unlock()
	log.Debug().Str("timestamp", cacheKey).Int("readings", len(readings)).Msg("Snapshot cache updated")

	h.writeSnapshotResponse(w, targetTime, readings)
}

func (h *Handler) writeSnapshotResponse(w http.ResponseWriter, timestamp time.Time, readings []sensor.Reading) {
	// Cache for 1 week, snapshots never change
	writeJSON(w, "public, max-age=604800, immutable", SensorsResponse{
		Timestamp: timestamp.UTC().Format(timestampLayout),
		Sensors:   toSensorResponses(readings),
	})
}

func toSensorResponses(readings []sensor.Reading) []SensorResponse {
	sensors := make([]SensorResponse, len(readings))
	for i, r := range readings {
		sensors[i] = SensorResponse{
			Kind:      r.Kind,
			SourceID:  r.SourceID,
			Entity:    r.Entity,
			Line:      r.Line,
			State:     r.State,
			Secondary: r.Secondary,
			Distance:  r.Distance,
		}
	}
	return sensors
}

func writeJSON(w http.ResponseWriter, cacheControl string, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", cacheControl)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("JSON encoding error")
	}
}
