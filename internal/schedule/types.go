// Package schedule is the immutable, index-addressed transit dataset searched
// by the planner. Entities live in arenas on Dataset and refer to each other
// through dense integer indices.
package schedule

import (
	"fmt"

	"planner.onebusaway.org/internal/frequency"
)

type (
	StopAreaIdx            uint32
	StopPointIdx           uint32
	LineIdx                uint32
	RouteIdx               uint32
	JourneyPatternIdx      uint32
	JourneyPatternPointIdx uint32
	VehicleJourneyIdx      uint32
	ValidityPatternIdx     uint32
)

// NoVehicleJourney marks an absent prev/next link.
const NoVehicleJourney VehicleJourneyIdx = ^VehicleJourneyIdx(0)

// RTLevel selects which view of the timetable a search runs against.
type RTLevel uint8

const (
	Base RTLevel = iota
	Adapted
	RealTime
	NumLevels
)

func (l RTLevel) String() string {
	switch l {
	case Base:
		return "base"
	case Adapted:
		return "adapted"
	case RealTime:
		return "realtime"
	}
	return fmt.Sprintf("RTLevel(%d)", uint8(l))
}

// ParseRTLevel accepts the names produced by String.
func ParseRTLevel(s string) (RTLevel, error) {
	switch s {
	case "", "base":
		return Base, nil
	case "adapted":
		return Adapted, nil
	case "realtime":
		return RealTime, nil
	}
	return Base, fmt.Errorf("unknown realtime level %q", s)
}

// Kind discriminates vehicle journeys.
type Kind uint8

const (
	Discrete Kind = iota
	Frequency
)

type StopArea struct {
	Idx        StopAreaIdx
	ID         string
	Name       string
	Lat, Lon   float64
	Wheelchair bool
	StopPoints []StopPointIdx
}

type StopPoint struct {
	Idx        StopPointIdx
	ID         string
	Name       string
	Lat, Lon   float64
	StopArea   StopAreaIdx
	Wheelchair bool
	Bike       bool
	Zone       string
	Routes     []RouteIdx
	Points     []JourneyPatternPointIdx
}

type Line struct {
	Idx     LineIdx
	ID      string
	Name    string
	Code    string
	Network string
	Mode    string
	Routes  []RouteIdx
}

type Route struct {
	Idx             RouteIdx
	ID              string
	Name            string
	Line            LineIdx
	Patterns        []JourneyPatternIdx
	VehicleJourneys []VehicleJourneyIdx
}

// JourneyPattern groups the vehicle journeys of a route serving the same
// ordered stop points.
type JourneyPattern struct {
	Idx       JourneyPatternIdx
	Route     RouteIdx
	Points    []JourneyPatternPointIdx
	Discrete  []VehicleJourneyIdx
	Frequency []VehicleJourneyIdx
}

type JourneyPatternPoint struct {
	Idx       JourneyPatternPointIdx
	Pattern   JourneyPatternIdx
	Order     int
	StopPoint StopPointIdx
}

// StopTime times are seconds after midnight of the journey's reference day.
// For frequency journeys they are offsets from the start of an instance.
type StopTime struct {
	StopPoint         StopPointIdx
	Arrival           int32
	Departure         int32
	Pickup            bool
	DropOff           bool
	BoardingDuration  int32
	AlightingDuration int32
	ODT               bool
	LocalTrafficZone  uint16
}

// BoardTime is when a traveller must be at the stop to catch the vehicle.
func (st StopTime) BoardTime() int32 { return st.Departure - st.BoardingDuration }

// AlightTime is when a traveller is free at the stop after leaving the vehicle.
func (st StopTime) AlightTime() int32 { return st.Arrival + st.AlightingDuration }

type VehicleJourney struct {
	Idx        VehicleJourneyIdx
	ID         string
	Route      RouteIdx
	Pattern    JourneyPatternIdx
	Kind       Kind
	Window     frequency.Window
	StopTimes  []StopTime
	Validity   [NumLevels]ValidityPatternIdx
	Prev, Next VehicleJourneyIdx
	Wheelchair bool
	Bike       bool
	BlockID    string
	Headsign   string
	// Realtime is set on journeys derived from or added by disruptions.
	Realtime bool
}

// Connection is a directed walking link.
type Connection struct {
	From, To StopPointIdx
	Duration int32
}

// Link is one adjacency entry: the stop at the other end and the walk time.
type Link struct {
	Stop     StopPointIdx
	Duration int32
}

// StopTimeRef addresses one stop time.
type StopTimeRef struct {
	VehicleJourney VehicleJourneyIdx
	Order          int
}

// Stats summarizes a dataset.
type Stats struct {
	StopAreas        int `json:"stopAreas"`
	StopPoints       int `json:"stopPoints"`
	Lines            int `json:"lines"`
	Routes           int `json:"routes"`
	JourneyPatterns  int `json:"journeyPatterns"`
	VehicleJourneys  int `json:"vehicleJourneys"`
	ValidityPatterns int `json:"validityPatterns"`
	Connections      int `json:"connections"`
	Days             int `json:"days"`
}
