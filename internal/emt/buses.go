package emt

import (
	"context"
	"net/http"
	"sort"

	"github.com/rs/zerolog/log"
)

const (
	endpointStops       = "v3/transport/busemtmad/stops/"
	endpointArroundStop = "v3/transport/busemtmad/stops/arroundstop/"
)

// BusClient keeps the detail and arrival estimates of a single bus stop.
type BusClient struct {
	*Session
	stop StopRecord
}

// NewBusClient creates a client for stopID. The record starts with every field absent.
func NewBusClient(client *Client, user, password, stopID string) *BusClient {
	return &BusClient{
		Session: NewSession(client, user, password),
		stop: StopRecord{
			StopID: stopID,
			Lines:  map[string]*LineRecord{},
		},
	}
}

// StopID returns the stop this client was built for.
func (b *BusClient) StopID() string {
	return b.stop.StopID
}

// UpdateDetail refreshes the stop name, location and served lines.
func (b *BusClient) UpdateDetail(ctx context.Context, stopID string) error {
	if ok, err := b.ready(); !ok {
		return err
	}

	resp, err := b.client.Request(ctx, http.MethodGet, endpointStops+stopID+"/detail/", b.authHeaders(), nil)
	if err != nil {
		return err
	}

	outcome := ClassifyCode(resp.Code)
	switch outcome {
	case OutcomeDisabled:
		log.Warn().Str("stop", stopID).Msg("Bus stop disabled or does not exist")
		return nil
	case OutcomeInvalidToken:
		log.Warn().Str("stop", stopID).Msg("Invalid token")
		return nil
	case OutcomeQuotaExceeded:
		log.Warn().Str("stop", stopID).Msg("API limit reached")
		return nil
	case OutcomeDegraded:
		return b.updateFromArroundStop(ctx, stopID)
	}

	var data []stopDetailData
	if err := decodeData(resp, &data); err != nil {
		return &ParseError{What: "bus stop information", Err: err}
	}
	if len(data) == 0 {
		return &ParseError{What: "bus stop information", Err: missing("data[0]")}
	}
	if len(data[0].Stops) == 0 {
		return &ParseError{What: "bus stop information", Err: missing("data[0].stops[0]")}
	}

	record, err := normalizeStopDetail(b.stop.StopID, data[0].Stops[0])
	if err != nil {
		return &ParseError{What: "bus stop information", Err: err}
	}
	b.stop = record
	return nil
}

// updateFromArroundStop is the single re-fetch performed when the detail endpoint answers
// with the degraded code.
func (b *BusClient) updateFromArroundStop(ctx context.Context, stopID string) error {
	log.Info().Str("stop", stopID).Msg("Stop detail degraded, falling back to stops around stop")

	resp, err := b.client.Request(ctx, http.MethodGet, endpointArroundStop+b.stop.StopID+"/0/", b.authHeaders(), nil)
	if err != nil {
		return err
	}

	var data []arroundStop
	if err := decodeData(resp, &data); err != nil {
		return &ParseError{What: "bus stop information", Err: err}
	}
	if len(data) == 0 {
		return &ParseError{What: "bus stop information", Err: missing("data[0]")}
	}

	record, err := normalizeArroundStop(b.stop.StopID, data[0])
	if err != nil {
		return &ParseError{What: "bus stop information", Err: err}
	}
	b.stop = record
	return nil
}

// UpdateArrivals refreshes the arrival estimates of every line at the stop.
func (b *BusClient) UpdateArrivals(ctx context.Context, stopID string) error {
	if ok, err := b.ready(); !ok {
		return err
	}

	body := map[string]string{
		"stopId":                      stopID,
		"Text_EstimationsRequired_YN": "Y",
	}
	resp, err := b.client.Request(ctx, http.MethodPost, endpointStops+stopID+"/arrives/", b.authHeaders(), body)
	if err != nil {
		return err
	}

	if outcome := ClassifyCode(resp.Code); outcome.Rejected() {
		log.Warn().Str("stop", stopID).Str("outcome", outcome.String()).Msg("Arrival times not available")
		return nil
	}

	var data []arrivalsData
	if err := decodeData(resp, &data); err != nil {
		return &ParseError{What: "the arrival times from the API", Err: err}
	}
	if len(data) == 0 {
		return &ParseError{What: "the arrival times from the API", Err: missing("data[0]")}
	}

	for _, line := range b.stop.Lines {
		line.Arrivals = []*int{}
		line.Distance = []*int{}
	}

	for _, arrival := range data[0].Arrive {
		line, ok := b.stop.Lines[arrival.Line]
		if !ok {
			continue
		}
		seconds, ok := estimateSeconds(arrival.EstimateArrive)
		if !ok {
			log.Error().
				Str("stop", stopID).
				Str("line", arrival.Line).
				Interface("arrival", arrival).
				Msg("Non-numeric arrival estimate")
			continue
		}
		minutes := ArrivalMinutes(seconds)
		line.Arrivals = append(line.Arrivals, &minutes)
		line.Distance = append(line.Distance, distanceMetres(arrival.DistanceBus))
	}

	return nil
}

// StopInfo returns a copy of the stop record.
func (b *BusClient) StopInfo() StopRecord {
	return b.stop.clone()
}

// Lines returns the labels of the lines serving the stop, sorted.
func (b *BusClient) Lines() []string {
	labels := make([]string, 0, len(b.stop.Lines))
	for label := range b.stop.Lines {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// LineInfo returns a copy of the line record. Lines not served at the stop yield a placeholder
// with every field absent.
func (b *BusClient) LineInfo(label string) LineRecord {
	line, ok := b.stop.Lines[label]
	if !ok {
		log.Warn().Str("stop", b.stop.StopID).Str("line", label).Msg("The bus line does not exist at this stop")
		return LineRecord{
			Distance: []*int{nil},
			Arrivals: []*int{nil, nil},
		}
	}

	info := line.clone()
	if len(info.Distance) == 0 {
		info.Distance = []*int{nil}
	}
	return info
}

// ArrivalTime returns the next two arrivals in minutes; missing estimates are nil.
func (b *BusClient) ArrivalTime(label string) [2]*int {
	var next [2]*int
	line, ok := b.stop.Lines[label]
	if !ok {
		return next
	}
	for i := 0; i < len(next) && i < len(line.Arrivals); i++ {
		if line.Arrivals[i] != nil {
			minutes := *line.Arrivals[i]
			next[i] = &minutes
		}
	}
	return next
}
