package models

// Detail levels selecting which journey fields are rendered.
const (
	DetailBasic    = "basic"
	DetailDetailed = "detailed"
)

// JourneysEntry is the answer to one planning request.
type JourneysEntry struct {
	Journeys []Journey `json:"journeys" groups:"basic,detailed"`
	// Truncated is set when the search ran out of time or rounds.
	Truncated bool   `json:"truncated" groups:"basic,detailed"`
	Rounds    int    `json:"rounds" groups:"detailed"`
	Realtime  string `json:"realtime" groups:"basic,detailed"`
	Clockwise bool   `json:"clockwise" groups:"basic,detailed"`
	// RequestedTime is the reference datetime in epoch milliseconds.
	RequestedTime int64  `json:"requestedTime" groups:"basic,detailed"`
	Generation    uint64 `json:"generation" groups:"detailed"`
}

// Journey times are epoch milliseconds; durations are seconds.
type Journey struct {
	DepartureTime int64     `json:"departureTime" groups:"basic,detailed"`
	ArrivalTime   int64     `json:"arrivalTime" groups:"basic,detailed"`
	Duration      int64     `json:"duration" groups:"basic,detailed"`
	Transfers     int       `json:"transfers" groups:"basic,detailed"`
	WalkingTime   int64     `json:"walkingTime" groups:"detailed"`
	Segments      []Segment `json:"segments" groups:"basic,detailed"`
}

type Segment struct {
	Type          string `json:"type" groups:"basic,detailed"`
	FromStopID    string `json:"fromStopId" groups:"basic,detailed"`
	ToStopID      string `json:"toStopId" groups:"basic,detailed"`
	DepartureTime int64  `json:"departureTime" groups:"basic,detailed"`
	ArrivalTime   int64  `json:"arrivalTime" groups:"basic,detailed"`
	Duration      int64  `json:"duration" groups:"basic,detailed"`
	// Set on public transport segments only.
	VehicleJourneyID string `json:"vehicleJourneyId,omitempty" groups:"basic,detailed"`
	RouteID          string `json:"routeId,omitempty" groups:"basic,detailed"`
	LineID           string `json:"lineId,omitempty" groups:"basic,detailed"`
	Headsign         string `json:"headsign,omitempty" groups:"basic,detailed"`
	OnDemand         bool   `json:"onDemand,omitempty" groups:"basic,detailed"`
	// Direction is the compass heading of a walking segment.
	Direction string        `json:"direction,omitempty" groups:"detailed"`
	StopTimes []SegmentStop `json:"stopTimes,omitempty" groups:"detailed"`
}

// SegmentStop is one call of the vehicle within a public transport segment.
type SegmentStop struct {
	StopID        string `json:"stopId" groups:"detailed"`
	ArrivalTime   int64  `json:"arrivalTime" groups:"detailed"`
	DepartureTime int64  `json:"departureTime" groups:"detailed"`
}

// BatchRequest asks for journeys between the same endpoints at several
// reference datetimes.
type BatchRequest struct {
	From      string   `json:"from"`
	To        string   `json:"to"`
	DateTimes []string `json:"datetimes"`
	Clockwise *bool    `json:"clockwise,omitempty"`
	// Params holds any other journeys.json parameter.
	Params map[string][]string `json:"params,omitempty"`
}

// BatchItem is the result for one datetime of a batch. Error is set instead
// of Result when that datetime could not be planned.
type BatchItem struct {
	DateTime string         `json:"datetime" groups:"basic,detailed"`
	Result   *JourneysEntry `json:"result,omitempty" groups:"basic,detailed"`
	Error    string         `json:"error,omitempty" groups:"basic,detailed"`
}
