package models

// BlockEntry is the stay-in chain a vehicle journey belongs to, in running
// order.
type BlockEntry struct {
	ID    string      `json:"id"`
	Trips []BlockTrip `json:"trips"`
}

// BlockTrip times are seconds after midnight of the first trip's service day.
type BlockTrip struct {
	VehicleJourneyID string `json:"vehicleJourneyId"`
	RouteID          string `json:"routeId"`
	FirstStopID      string `json:"firstStopId"`
	LastStopID       string `json:"lastStopId"`
	DepartureTime    int32  `json:"departureTime"`
	ArrivalTime      int32  `json:"arrivalTime"`
	// LayoverTime is the wait before this trip leaves, zero for the first.
	LayoverTime int32 `json:"layoverTime"`
}
