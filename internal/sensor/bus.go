package sensor

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"emt-madrid/internal/config"
	"emt-madrid/internal/emt"
)

// BusLineSensor reports the next arrival of one line at one stop.
type BusLineSensor struct {
	client *emt.BusClient
	stopID string
	line   string
	name   string
	icon   string
}

// NewBusLineSensor wraps a bus client for a single line.
func NewBusLineSensor(client *emt.BusClient, stopID, line, name, icon string) *BusLineSensor {
	return &BusLineSensor{
		client: client,
		stopID: stopID,
		line:   line,
		name:   name,
		icon:   icon,
	}
}

func (s *BusLineSensor) Name() string   { return s.name }
func (s *BusLineSensor) Icon() string   { return s.icon }
func (s *BusLineSensor) Unit() string   { return "min" }
func (s *BusLineSensor) Line() string   { return s.line }

// Source is keyed on the client, so a stop configured twice still gets both clients refreshed.
func (s *BusLineSensor) Source() string {
	return fmt.Sprintf("%s:%s:%p", KindBus, s.stopID, s.client)
}

// State is the number of minutes until the next bus.
func (s *BusLineSensor) State() *int {
	return s.client.ArrivalTime(s.line)[0]
}

// Attributes mirror the entity attributes exposed for a bus line.
func (s *BusLineSensor) Attributes() map[string]any {
	arrivals := s.client.ArrivalTime(s.line)
	stop := s.client.StopInfo()
	line := s.client.LineInfo(s.line)

	return map[string]any{
		"next_bus":      arrivals[1],
		"line":          s.line,
		"distance":      line.Distance[0],
		"destination":   line.Destination,
		"origin":        line.Origin,
		"start_time":    line.StartTime,
		"end_time":      line.EndTime,
		"max_frequency": line.MaxFrequency,
		"min_frequency": line.MinFrequency,
		"stop_id":       s.stopID,
		"stop_name":     stop.Name,
		"stop_address":  stop.Address,
		"attribution":   Attribution,
	}
}

// Update refreshes the arrival estimates of the whole stop.
func (s *BusLineSensor) Update(ctx context.Context) error {
	return s.client.UpdateArrivals(ctx, s.stopID)
}

func (s *BusLineSensor) Reading(at time.Time) Reading {
	arrivals := s.client.ArrivalTime(s.line)
	return Reading{
		Timestamp: at,
		Kind:      KindBus,
		SourceID:  s.stopID,
		Entity:    s.name,
		Line:      s.line,
		State:     arrivals[0],
		Secondary: arrivals[1],
		Distance:  s.client.LineInfo(s.line).Distance[0],
	}
}

// SetupBusStop authenticates, loads the stop detail and builds one sensor per requested line.
// Lines not served at the stop are logged and skipped.
func SetupBusStop(ctx context.Context, client *emt.Client, cfg *config.Config, stop config.StopConfig) ([]*BusLineSensor, error) {
	busClient := emt.NewBusClient(client, cfg.Email, cfg.Password, stop.ID)
	if err := busClient.Authenticate(ctx); err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	if err := busClient.UpdateDetail(ctx, stop.ID); err != nil {
		return nil, fmt.Errorf("failed to load stop %s: %w", stop.ID, err)
	}

	served := busClient.Lines()
	lines := stop.Lines
	if len(lines) == 0 {
		lines = served
	}

	stopName := busClient.StopInfo().Name
	var sensors []*BusLineSensor
	for _, line := range lines {
		if !slices.Contains(served, line) {
			log.Error().
				Str("stop", stop.ID).
				Str("line", line).
				Msg("Sensor setup failed, line not serviced at this stop")
			continue
		}
		sensors = append(sensors, NewBusLineSensor(busClient, stop.ID, line, fmt.Sprintf("Bus %s - %s", line, stopName), stop.Icon))
	}

	// All lines share the stop's arrivals, one refresh serves every sensor.
	if len(sensors) > 0 {
		if err := busClient.UpdateArrivals(ctx, stop.ID); err != nil {
			return nil, fmt.Errorf("failed to load arrivals for stop %s: %w", stop.ID, err)
		}
	}

	log.Info().Str("stop", stop.ID).Str("name", stopName).Int("sensors", len(sensors)).Msg("Registered bus stop")
	return sensors, nil
}
