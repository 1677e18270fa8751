package emt

// Coordinates is a GeoJSON point as the provider sends it: longitude first.
type Coordinates struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// StopRecord is the canonical view of a bus stop and the lines that serve it.
type StopRecord struct {
	StopID      string
	Name        string
	Coordinates *Coordinates
	Address     string
	Lines       map[string]*LineRecord
}

// LineRecord holds the schedule of one line at a stop plus its latest estimates.
// Arrivals are minutes until arrival, Distance the matching distances in metres.
type LineRecord struct {
	Destination  string
	Origin       string
	StartTime    string
	EndTime      string
	MaxFrequency *int
	MinFrequency *int
	DayType      string
	Distance     []*int
	Arrivals     []*int
}

// StationRecord is the canonical view of a BiciMAD station.
type StationRecord struct {
	StationID   string
	Number      string
	Name        string
	Coordinates *Coordinates
	Address     string
	DockedBikes *int
	FreeBases   *int
}

func (r *StopRecord) clone() StopRecord {
	out := *r
	if r.Coordinates != nil {
		c := *r.Coordinates
		out.Coordinates = &c
	}
	out.Lines = make(map[string]*LineRecord, len(r.Lines))
	for label, line := range r.Lines {
		copied := line.clone()
		out.Lines[label] = &copied
	}
	return out
}

func (l *LineRecord) clone() LineRecord {
	out := *l
	out.MaxFrequency = copyInt(l.MaxFrequency)
	out.MinFrequency = copyInt(l.MinFrequency)
	out.Distance = copyInts(l.Distance)
	out.Arrivals = copyInts(l.Arrivals)
	return out
}

func copyInts(in []*int) []*int {
	out := make([]*int, len(in))
	for i, v := range in {
		out[i] = copyInt(v)
	}
	return out
}

// Wire shapes. Fields that are required by the normalizer are pointers so that an absent key
// can be told apart from a zero value.

type geometry struct {
	Coordinates []float64 `json:"coordinates"`
}

type loginData struct {
	AccessToken *string `json:"accessToken"`
}

type stopDetailData struct {
	Stops []stopDetail `json:"stops"`
}

type stopDetail struct {
	Name          *string          `json:"name"`
	Geometry      *geometry        `json:"geometry"`
	PostalAddress *string          `json:"postalAddress"`
	DataLine      []stopDetailLine `json:"dataLine"`
}

type stopDetailLine struct {
	Label     *string `json:"label"`
	HeaderA   *string `json:"headerA"`
	HeaderB   *string `json:"headerB"`
	Direction *string `json:"direction"`
	MaxFreq   any     `json:"maxFreq"`
	MinFreq   any     `json:"minFreq"`
	StartTime *string `json:"startTime"`
	StopTime  *string `json:"stopTime"`
	DayType   *string `json:"dayType"`
}

type arroundStop struct {
	StopName *string           `json:"stopName"`
	Geometry *geometry         `json:"geometry"`
	Address  *string           `json:"address"`
	Lines    []arroundStopLine `json:"lines"`
}

type arroundStopLine struct {
	Label *string `json:"label"`
	NameA *string `json:"nameA"`
	NameB *string `json:"nameB"`
	To    *string `json:"to"`
}

type arrivalsData struct {
	Arrive []arrivalEntry `json:"Arrive"`
}

// estimateArrive and DistanceBus are left untyped: a non-numeric estimate must not fail the
// decoding of the whole response.
type arrivalEntry struct {
	Line           string `json:"line"`
	EstimateArrive any    `json:"estimateArrive"`
	DistanceBus    any    `json:"DistanceBus"`
}

type station struct {
	Number    any       `json:"number"`
	Name      *string   `json:"name"`
	Geometry  *geometry `json:"geometry"`
	Address   *string   `json:"address"`
	DockBikes any       `json:"dock_bikes"`
	FreeBases any       `json:"free_bases"`
}
