package emt

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
)

const endpointBicimadStations = "v3/transport/bicimad/stations/"

// StationClient keeps the status of a single BiciMAD station.
type StationClient struct {
	*Session
	station StationRecord
}

// NewStationClient creates a client for stationID. The record starts with every field absent.
func NewStationClient(client *Client, user, password, stationID string) *StationClient {
	return &StationClient{
		Session: NewSession(client, user, password),
		station: StationRecord{StationID: stationID},
	}
}

// StationID returns the station this client was built for.
func (s *StationClient) StationID() string {
	return s.station.StationID
}

// UpdateStation refreshes the docked bikes and free bases of the station.
// A degraded answer is retried once against the same endpoint.
func (s *StationClient) UpdateStation(ctx context.Context, stationID string) error {
	if ok, err := s.ready(); !ok {
		return err
	}

	resp, err := s.fetchStation(ctx, stationID)
	if err != nil {
		return err
	}

	switch ClassifyCode(resp.Code) {
	case OutcomeDisabled:
		log.Warn().Str("station", stationID).Msg("Bicimad station disabled or does not exist")
		return nil
	case OutcomeInvalidToken:
		log.Warn().Str("station", stationID).Msg("Invalid token")
		return nil
	case OutcomeQuotaExceeded:
		log.Warn().Str("station", stationID).Msg("API limit reached")
		return nil
	case OutcomeDegraded:
		log.Info().Str("station", stationID).Msg("Station detail degraded, fetching again")
		resp, err = s.fetchStation(ctx, s.station.StationID)
		if err != nil {
			return err
		}
	}

	var data []station
	if err := decodeData(resp, &data); err != nil {
		return &ParseError{What: "Bicimad station information", Err: err}
	}
	if len(data) == 0 {
		return &ParseError{What: "Bicimad station information", Err: missing("data[0]")}
	}

	s.station = normalizeStation(s.station.StationID, data[0])
	return nil
}

func (s *StationClient) fetchStation(ctx context.Context, stationID string) (*Response, error) {
	return s.client.Request(ctx, http.MethodGet, endpointBicimadStations+stationID, s.authHeaders(), nil)
}

// StationInfo returns a copy of the station record.
func (s *StationClient) StationInfo() StationRecord {
	out := s.station
	if s.station.Coordinates != nil {
		c := *s.station.Coordinates
		out.Coordinates = &c
	}
	out.DockedBikes = copyInt(s.station.DockedBikes)
	out.FreeBases = copyInt(s.station.FreeBases)
	return out
}

// DockedBikes returns the number of bikes at the station, nil until known.
func (s *StationClient) DockedBikes() *int {
	return copyInt(s.station.DockedBikes)
}

// FreeBases returns the number of empty docks at the station, nil until known.
func (s *StationClient) FreeBases() *int {
	return copyInt(s.station.FreeBases)
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	n := *v
	return &n
}
