package models

// ReferencesModel References model for related data
type ReferencesModel struct {
	Agencies        []AgencyReference `json:"agencies" groups:"basic,detailed"`
	Lines           []Line            `json:"lines" groups:"basic,detailed"`
	Routes          []Route           `json:"routes" groups:"basic,detailed"`
	Stops           []Stop            `json:"stops" groups:"basic,detailed"`
	VehicleJourneys []VehicleJourney  `json:"vehicleJourneys" groups:"detailed"`
}

// NewEmptyReferences creates a new empty References model with initialized empty slices
func NewEmptyReferences() ReferencesModel {
	return ReferencesModel{
		Agencies:        []AgencyReference{},
		Lines:           []Line{},
		Routes:          []Route{},
		Stops:           []Stop{},
		VehicleJourneys: []VehicleJourney{},
	}
}
