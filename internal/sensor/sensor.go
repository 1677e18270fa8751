// Package sensor turns EMT stop and station clients into polled entities with a state and a
// set of attributes, the way a home-automation platform consumes them.
package sensor

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"emt-madrid/internal/config"
	"emt-madrid/internal/emt"
)

const Attribution = "Data provided by EMT Madrid MobilityLabs"

// Kinds of sensor.
const (
	KindBus     = "bus"
	KindBicimad = "bicimad"
)

// Sensor is a single polled entity.
type Sensor interface {
	Name() string
	Icon() string
	Unit() string
	// State is nil while unknown.
	State() *int
	Attributes() map[string]any
	// Update refreshes the client behind the sensor, which may serve other sensors too.
	Update(ctx context.Context) error
	// Source identifies the client backing the sensor. Sensors with the same source must not
	// be updated concurrently.
	Source() string
	Reading(at time.Time) Reading
}

// Reading is a flat snapshot of a sensor, suitable for storage.
type Reading struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      string    `json:"kind"`
	SourceID  string    `json:"source_id"`
	Entity    string    `json:"entity"`
	Line      string    `json:"line,omitempty"`
	// State is the next bus in minutes or the docked bikes.
	State *int `json:"state"`
	// Secondary is the bus after next or the free bases.
	Secondary *int `json:"secondary"`
	Distance  *int `json:"distance"`
}

// Setup builds every sensor in cfg. A stop or station that fails to load is logged and left out.
func Setup(ctx context.Context, client *emt.Client, cfg *config.Config) []Sensor {
	var sensors []Sensor
	for _, stop := range cfg.Stops {
		lines, err := SetupBusStop(ctx, client, cfg, stop)
		if err != nil {
			log.Error().Err(err).Str("stop", stop.ID).Msg("Failed setting up bus stop")
			continue
		}
		for _, line := range lines {
			sensors = append(sensors, line)
		}
	}
	for _, station := range cfg.Stations {
		sensor, err := SetupStation(ctx, client, cfg, station)
		if err != nil {
			log.Error().Err(err).Str("station", station.ID).Msg("Failed setting up Bicimad station")
			continue
		}
		sensors = append(sensors, sensor)
	}
	return sensors
}
