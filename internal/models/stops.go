package models

const (
	StopTypePoint = "stopPoint"
	StopTypeArea  = "stopArea"
)

// Stop describes a stop point or a stop area. Parent is the area of a point;
// StopPointIDs lists the points of an area.
type Stop struct {
	ID                 string   `json:"id" groups:"basic,detailed"`
	Type               string   `json:"type" groups:"basic,detailed"`
	Name               string   `json:"name" groups:"basic,detailed"`
	Lat                float64  `json:"lat" groups:"basic,detailed"`
	Lon                float64  `json:"lon" groups:"basic,detailed"`
	Parent             string   `json:"parent,omitempty" groups:"detailed"`
	Zone               string   `json:"zone,omitempty" groups:"detailed"`
	WheelchairBoarding bool     `json:"wheelchairBoarding" groups:"detailed"`
	BikeAccepted       bool     `json:"bikeAccepted" groups:"detailed"`
	RouteIDs           []string `json:"routeIds" groups:"detailed"`
	StopPointIDs       []string `json:"stopPointIds,omitempty" groups:"detailed"`
}

type StopsResponse struct {
	List       []Stop `json:"list"`
	OutOfRange bool   `json:"outOfRange"`
}
