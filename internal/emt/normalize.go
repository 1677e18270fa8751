package emt

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxArrivalMinutes caps every estimate; the provider reports anything further away as 45.
const MaxArrivalMinutes = 45

func normalizeCoordinates(g *geometry, field string) (*Coordinates, error) {
	if g == nil {
		return nil, missing(field)
	}
	if len(g.Coordinates) < 2 {
		return nil, missing(field + ".coordinates")
	}
	return &Coordinates{Lon: g.Coordinates[0], Lat: g.Coordinates[1]}, nil
}

// normalizeStopDetail maps the primary detail shape.
func normalizeStopDetail(stopID string, raw stopDetail) (StopRecord, error) {
	if raw.Name == nil {
		return StopRecord{}, missing("name")
	}
	if raw.PostalAddress == nil {
		return StopRecord{}, missing("postalAddress")
	}
	if raw.DataLine == nil {
		return StopRecord{}, missing("dataLine")
	}
	coordinates, err := normalizeCoordinates(raw.Geometry, "geometry")
	if err != nil {
		return StopRecord{}, err
	}

	lines := make(map[string]*LineRecord, len(raw.DataLine))
	for i, line := range raw.DataLine {
		record, label, err := normalizeDetailLine(line)
		if err != nil {
			return StopRecord{}, fmt.Errorf("dataLine[%d]: %w", i, err)
		}
		lines[label] = record
	}

	return StopRecord{
		StopID:      stopID,
		Name:        *raw.Name,
		Coordinates: coordinates,
		Address:     *raw.PostalAddress,
		Lines:       lines,
	}, nil
}

func normalizeDetailLine(line stopDetailLine) (*LineRecord, string, error) {
	required := []struct {
		name  string
		value *string
	}{
		{"label", line.Label},
		{"headerA", line.HeaderA},
		{"headerB", line.HeaderB},
		{"direction", line.Direction},
		{"startTime", line.StartTime},
		{"stopTime", line.StopTime},
		{"dayType", line.DayType},
	}
	for _, field := range required {
		if field.value == nil {
			return nil, "", missing(field.name)
		}
	}

	if line.MaxFreq == nil {
		return nil, "", missing("maxFreq")
	}
	if line.MinFreq == nil {
		return nil, "", missing("minFreq")
	}
	maxFreq, err := toInt(line.MaxFreq)
	if err != nil {
		return nil, "", fmt.Errorf("maxFreq: %w", err)
	}
	minFreq, err := toInt(line.MinFreq)
	if err != nil {
		return nil, "", fmt.Errorf("minFreq: %w", err)
	}

	destination, origin := *line.HeaderB, *line.HeaderA
	if *line.Direction == "A" {
		destination, origin = *line.HeaderA, *line.HeaderB
	}

	return &LineRecord{
		Destination:  destination,
		Origin:       origin,
		StartTime:    *line.StartTime,
		EndTime:      *line.StopTime,
		MaxFrequency: &maxFreq,
		MinFrequency: &minFreq,
		DayType:      *line.DayType,
		Distance:     []*int{},
		Arrivals:     []*int{},
	}, *line.Label, nil
}

// normalizeArroundStop maps the flatter shape served by the stops-around-stop endpoint.
// It carries no schedule, so only destination and origin are known.
func normalizeArroundStop(stopID string, raw arroundStop) (StopRecord, error) {
	if raw.StopName == nil {
		return StopRecord{}, missing("stopName")
	}
	if raw.Address == nil {
		return StopRecord{}, missing("address")
	}
	if raw.Lines == nil {
		return StopRecord{}, missing("lines")
	}
	coordinates, err := normalizeCoordinates(raw.Geometry, "geometry")
	if err != nil {
		return StopRecord{}, err
	}

	lines := make(map[string]*LineRecord, len(raw.Lines))
	for i, line := range raw.Lines {
		if line.Label == nil || line.NameA == nil || line.NameB == nil || line.To == nil {
			return StopRecord{}, fmt.Errorf("lines[%d]: %w", i, missing("label/nameA/nameB/to"))
		}
		destination, origin := *line.NameB, *line.NameA
		if *line.To == "A" {
			destination, origin = *line.NameA, *line.NameB
		}
		lines[*line.Label] = &LineRecord{
			Destination: destination,
			Origin:      origin,
			Distance:    []*int{},
			Arrivals:    []*int{},
		}
	}

	return StopRecord{
		StopID:      stopID,
		Name:        *raw.StopName,
		Coordinates: coordinates,
		Address:     *raw.Address,
		Lines:       lines,
	}, nil
}

// normalizeStation maps a BiciMAD station. Apart from the data element itself every field is
// optional and left absent when missing.
func normalizeStation(stationID string, raw station) StationRecord {
	record := StationRecord{
		StationID:   stationID,
		Number:      formatNumber(raw.Number),
		DockedBikes: optionalInt(raw.DockBikes),
		FreeBases:   optionalInt(raw.FreeBases),
	}
	record.Name = record.Number
	if raw.Name != nil && *raw.Name != "" {
		record.Name = *raw.Name
	}
	if raw.Address != nil {
		record.Address = *raw.Address
	}
	if coordinates, err := normalizeCoordinates(raw.Geometry, "geometry"); err == nil {
		record.Coordinates = coordinates
	}
	return record
}

func formatNumber(v any) string {
	switch n := v.(type) {
	case nil:
		return ""
	case string:
		return n
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return fmt.Sprint(n)
	}
}

// toInt accepts a JSON number or a numeric string, truncating fractions.
func toInt(v any) (int, error) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.Abs(n) > math.MaxInt32 {
			return 0, fmt.Errorf("number %v out of range", n)
		}
		return int(n), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(n))
	default:
		return 0, fmt.Errorf("unexpected %T value", v)
	}
}

// optionalInt is toInt for fields that are simply absent when unusable.
func optionalInt(v any) *int {
	if v == nil {
		return nil
	}
	n, err := toInt(v)
	if err != nil {
		return nil
	}
	return &n
}

// ArrivalMinutes converts an estimate in seconds into whole minutes, truncating toward zero
// and capping at MaxArrivalMinutes.
func ArrivalMinutes(seconds float64) int {
	minutes := math.Trunc(seconds / 60)
	if minutes > MaxArrivalMinutes {
		return MaxArrivalMinutes
	}
	if minutes < math.MinInt32 {
		return math.MinInt32
	}
	return int(minutes)
}

// estimateSeconds accepts only JSON numbers.
func estimateSeconds(v any) (float64, bool) {
	seconds, ok := v.(float64)
	return seconds, ok
}

func distanceMetres(v any) *int {
	if _, ok := v.(float64); !ok {
		return nil
	}
	return optionalInt(v)
}
