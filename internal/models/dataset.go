package models

// DatasetEntry describes the generation currently served.
type DatasetEntry struct {
	Version          uint64            `json:"version"`
	LoadedAt         int64             `json:"loadedAt"`
	RealtimeAt       int64             `json:"realtimeAt,omitempty"`
	StartDate        string            `json:"startDate"`
	EndDate          string            `json:"endDate"`
	Timezone         string            `json:"timezone"`
	Disruptions      int               `json:"disruptions"`
	SkippedTrips     int               `json:"skippedTrips"`
	StopAreas        int               `json:"stopAreas"`
	StopPoints       int               `json:"stopPoints"`
	Lines            int               `json:"lines"`
	Routes           int               `json:"routes"`
	JourneyPatterns  int               `json:"journeyPatterns"`
	VehicleJourneys  int               `json:"vehicleJourneys"`
	ValidityPatterns int               `json:"validityPatterns"`
	Connections      int               `json:"connections"`
	Coverage         []AgencyCoverage  `json:"coverage"`
	Agencies         []AgencyReference `json:"agencies"`
}
