package models

// VehicleJourney is one run of a vehicle along a route. Frequency journeys
// carry their headway window in seconds after midnight.
type VehicleJourney struct {
	ID                   string     `json:"id" groups:"basic,detailed"`
	RouteID              string     `json:"routeId" groups:"basic,detailed"`
	Headsign             string     `json:"headsign" groups:"basic,detailed"`
	BlockID              string     `json:"blockId,omitempty" groups:"detailed"`
	WheelchairAccessible bool       `json:"wheelchairAccessible" groups:"detailed"`
	BikesAllowed         bool       `json:"bikesAllowed" groups:"detailed"`
	Realtime             bool       `json:"realtime" groups:"detailed"`
	Frequency            *Frequency `json:"frequency,omitempty" groups:"detailed"`
}

type Frequency struct {
	StartTime int32 `json:"startTime" groups:"detailed"`
	EndTime   int32 `json:"endTime" groups:"detailed"`
	Headway   int32 `json:"headwaySecs" groups:"detailed"`
}
