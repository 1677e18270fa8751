package sensor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"emt-madrid/internal/config"
	"emt-madrid/internal/emt"
)

// StationSensor reports the docked bikes at a BiciMAD station.
type StationSensor struct {
	client    *emt.StationClient
	stationID string
	name      string
	icon      string
}

func NewStationSensor(client *emt.StationClient, stationID, name, icon string) *StationSensor {
	return &StationSensor{
		client:    client,
		stationID: stationID,
		name:      name,
		icon:      icon,
	}
}

func (s *StationSensor) Name() string   { return s.name }
func (s *StationSensor) Icon() string   { return s.icon }
func (s *StationSensor) Unit() string   { return "bikes" }

func (s *StationSensor) Source() string {
	return fmt.Sprintf("%s:%s:%p", KindBicimad, s.stationID, s.client)
}

func (s *StationSensor) State() *int {
	return s.client.DockedBikes()
}

func (s *StationSensor) Attributes() map[string]any {
	station := s.client.StationInfo()

	return map[string]any{
		"station_id":          s.stationID,
		"station_number":      station.Number,
		"station_name":        station.Name,
		"station_coordinates": station.Coordinates,
		"station_address":     station.Address,
		"free_bases":          station.FreeBases,
		"bikes":               station.DockedBikes,
		"attribution":         Attribution,
	}
}

func (s *StationSensor) Update(ctx context.Context) error {
	return s.client.UpdateStation(ctx, s.stationID)
}

func (s *StationSensor) Reading(at time.Time) Reading {
	return Reading{
		Timestamp: at,
		Kind:      KindBicimad,
		SourceID:  s.stationID,
		Entity:    s.name,
		State:     s.client.DockedBikes(),
		Secondary: s.client.FreeBases(),
	}
}

// SetupStation authenticates, loads the station and builds its sensor.
func SetupStation(ctx context.Context, client *emt.Client, cfg *config.Config, station config.StationConfig) (*StationSensor, error) {
	stationClient := emt.NewStationClient(client, cfg.Email, cfg.Password, station.ID)
	if err := stationClient.Authenticate(ctx); err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	sensor := NewStationSensor(stationClient, station.ID, "", station.Icon)
	if err := sensor.Update(ctx); err != nil {
		return nil, fmt.Errorf("failed to load station %s: %w", station.ID, err)
	}
	sensor.name = "Bicimad - " + stationClient.StationInfo().Name

	log.Info().Str("station", station.ID).Str("name", sensor.name).Msg("Registered Bicimad station")
	return sensor, nil
}
