package schedule

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"planner.onebusaway.org/internal/calendar"
)

// TimeEntry is one row of a per-point departure or arrival index. Key is the
// time of day in [0, 86400) and Shift the number of days between the
// journey's reference day and the day of Key.
type TimeEntry struct {
	Key            int32
	Shift          int32
	VehicleJourney VehicleJourneyIdx
}

// Dataset is immutable once built and safe for concurrent readers.
type Dataset struct {
	Days            int
	DayZero         time.Time
	Location        *time.Location
	DefaultTransfer int32

	StopAreas            []StopArea
	StopPoints           []StopPoint
	Lines                []Line
	Routes               []Route
	JourneyPatterns      []JourneyPattern
	JourneyPatternPoints []JourneyPatternPoint
	VehicleJourneys      []VehicleJourney
	ValidityPatterns     []*calendar.ValidityPattern
	Connections          []Connection

	areaByID  map[string]StopAreaIdx
	pointByID map[string]StopPointIdx
	lineByID  map[string]LineIdx
	routeByID map[string]RouteIdx
	vjByID    map[string]VehicleJourneyIdx
	networks  map[string][]LineIdx

	departures [][]TimeEntry
	arrivals   [][]TimeEntry
	outgoing   [][]Link
	incoming   [][]Link
}

func newDataset(days int, dayZero time.Time, loc *time.Location, defaultTransfer int32) *Dataset {
	return &Dataset{
		Days:            days,
		DayZero:         dayZero,
		Location:        loc,
		DefaultTransfer: defaultTransfer,
		areaByID:        map[string]StopAreaIdx{},
		pointByID:       map[string]StopPointIdx{},
		lineByID:        map[string]LineIdx{},
		routeByID:       map[string]RouteIdx{},
		vjByID:          map[string]VehicleJourneyIdx{},
		networks:        map[string][]LineIdx{},
	}
}

func (ds *Dataset) addArea(s StopAreaSpec) StopAreaIdx {
	idx := StopAreaIdx(len(ds.StopAreas))
	ds.StopAreas = append(ds.StopAreas, StopArea{
		Idx: idx, ID: s.ID, Name: s.Name, Lat: s.Lat, Lon: s.Lon, Wheelchair: s.Wheelchair,
	})
	ds.areaByID[s.ID] = idx
	return idx
}

func (ds *Dataset) addLine(s LineSpec) LineIdx {
	idx := LineIdx(len(ds.Lines))
	ds.Lines = append(ds.Lines, Line{
		Idx: idx, ID: s.ID, Name: s.Name, Code: s.Code, Network: s.Network, Mode: s.Mode,
	})
	ds.lineByID[s.ID] = idx
	if s.Network != "" {
		ds.networks[s.Network] = append(ds.networks[s.Network], idx)
	}
	return idx
}

func (ds *Dataset) addRoute(s RouteSpec, line LineIdx) RouteIdx {
	idx := RouteIdx(len(ds.Routes))
	ds.Routes = append(ds.Routes, Route{Idx: idx, ID: s.ID, Name: s.Name, Line: line})
	ds.routeByID[s.ID] = idx
	ds.Lines[line].Routes = append(ds.Lines[line].Routes, idx)
	return idx
}

func (ds *Dataset) addPattern(route RouteIdx, stopTimes []StopTime) JourneyPatternIdx {
	idx := JourneyPatternIdx(len(ds.JourneyPatterns))
	jp := JourneyPattern{Idx: idx, Route: route, Points: make([]JourneyPatternPointIdx, len(stopTimes))}
	for order, st := range stopTimes {
		jpp := JourneyPatternPointIdx(len(ds.JourneyPatternPoints))
		ds.JourneyPatternPoints = append(ds.JourneyPatternPoints, JourneyPatternPoint{
			Idx: jpp, Pattern: idx, Order: order, StopPoint: st.StopPoint,
		})
		jp.Points[order] = jpp
	}
	ds.JourneyPatterns = append(ds.JourneyPatterns, jp)
	ds.Routes[route].Patterns = append(ds.Routes[route].Patterns, idx)
	return idx
}

// index derives the lookup structures used by searches.
func (ds *Dataset) index() {
	for i := range ds.JourneyPatternPoints {
		jpp := &ds.JourneyPatternPoints[i]
		sp := &ds.StopPoints[jpp.StopPoint]
		sp.Points = append(sp.Points, jpp.Idx)
		route := ds.JourneyPatterns[jpp.Pattern].Route
		if !containsRoute(sp.Routes, route) {
			sp.Routes = append(sp.Routes, route)
		}
	}

	ds.departures = make([][]TimeEntry, len(ds.JourneyPatternPoints))
	ds.arrivals = make([][]TimeEntry, len(ds.JourneyPatternPoints))
	for _, jp := range ds.JourneyPatterns {
		for order, jpp := range jp.Points {
			var deps, arrs []TimeEntry
			for _, vjIdx := range jp.Discrete {
				st := ds.VehicleJourneys[vjIdx].StopTimes[order]
				if st.Pickup {
					deps = append(deps, timeEntry(st.BoardTime(), vjIdx))
				}
				if st.DropOff {
					arrs = append(arrs, timeEntry(st.AlightTime(), vjIdx))
				}
			}
			sortEntries(deps)
			sortEntries(arrs)
			ds.departures[jpp] = deps
			ds.arrivals[jpp] = arrs
		}
	}

	ds.outgoing = make([][]Link, len(ds.StopPoints))
	ds.incoming = make([][]Link, len(ds.StopPoints))
	for _, c := range ds.Connections {
		ds.outgoing[c.From] = append(ds.outgoing[c.From], Link{Stop: c.To, Duration: c.Duration})
		ds.incoming[c.To] = append(ds.incoming[c.To], Link{Stop: c.From, Duration: c.Duration})
	}
	for i := range ds.incoming {
		in := ds.incoming[i]
		sort.Slice(in, func(a, b int) bool { return in[a].Stop < in[b].Stop })
	}
}

func timeEntry(secs int32, vj VehicleJourneyIdx) TimeEntry {
	dt := calendar.DateTime(secs)
	return TimeEntry{Key: dt.Hour(), Shift: int32(dt.Date()), VehicleJourney: vj}
}

func sortEntries(entries []TimeEntry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Key != b.Key {
			return a.Key < b.Key
		}
		if a.Shift != b.Shift {
			return a.Shift < b.Shift
		}
		return a.VehicleJourney < b.VehicleJourney
	})
}

func containsRoute(routes []RouteIdx, r RouteIdx) bool {
	for _, x := range routes {
		if x == r {
			return true
		}
	}
	return false
}

func (ds *Dataset) StopAreaByID(id string) (StopAreaIdx, bool) {
	idx, ok := ds.areaByID[id]
	return idx, ok
}

func (ds *Dataset) StopPointByID(id string) (StopPointIdx, bool) {
	idx, ok := ds.pointByID[id]
	return idx, ok
}

func (ds *Dataset) LineByID(id string) (LineIdx, bool) {
	idx, ok := ds.lineByID[id]
	return idx, ok
}

func (ds *Dataset) RouteByID(id string) (RouteIdx, bool) {
	idx, ok := ds.routeByID[id]
	return idx, ok
}

func (ds *Dataset) VehicleJourneyByID(id string) (VehicleJourneyIdx, bool) {
	idx, ok := ds.vjByID[id]
	return idx, ok
}

// NetworkLines returns the lines of a network.
func (ds *Dataset) NetworkLines(network string) []LineIdx {
	return ds.networks[network]
}

// ObjectType names the kinds of object an identifier may refer to.
type ObjectType uint8

const (
	ObjectStopArea ObjectType = iota
	ObjectStopPoint
	ObjectLine
	ObjectRoute
	ObjectVehicleJourney
	ObjectNetwork
)

func (t ObjectType) String() string {
	return [...]string{"stop_area", "stop_point", "line", "route", "vehicle_journey", "network"}[t]
}

// ObjectRef is a typed reference to an entity.
type ObjectRef struct {
	Type ObjectType
	Idx  uint32
}

// Lookup returns every entity named id. GTFS identifiers are only unique per
// file, so one id may match several kinds.
func (ds *Dataset) Lookup(id string) []ObjectRef {
	var refs []ObjectRef
	if idx, ok := ds.areaByID[id]; ok {
		refs = append(refs, ObjectRef{ObjectStopArea, uint32(idx)})
	}
	if idx, ok := ds.pointByID[id]; ok {
		refs = append(refs, ObjectRef{ObjectStopPoint, uint32(idx)})
	}
	if idx, ok := ds.lineByID[id]; ok {
		refs = append(refs, ObjectRef{ObjectLine, uint32(idx)})
	}
	if idx, ok := ds.routeByID[id]; ok {
		refs = append(refs, ObjectRef{ObjectRoute, uint32(idx)})
	}
	if idx, ok := ds.vjByID[id]; ok {
		refs = append(refs, ObjectRef{ObjectVehicleJourney, uint32(idx)})
	}
	if _, ok := ds.networks[id]; ok {
		refs = append(refs, ObjectRef{Type: ObjectNetwork})
	}
	return refs
}

// StopPointsFor expands a stop point or stop area id into stop points.
func (ds *Dataset) StopPointsFor(id string) ([]StopPointIdx, bool) {
	if idx, ok := ds.pointByID[id]; ok {
		return []StopPointIdx{idx}, true
	}
	if idx, ok := ds.areaByID[id]; ok {
		return ds.StopAreas[idx].StopPoints, true
	}
	return nil, false
}

// Departures lists discrete journeys boardable at a pattern point, sorted by
// time of day.
func (ds *Dataset) Departures(jpp JourneyPatternPointIdx) []TimeEntry {
	return ds.departures[jpp]
}

// Arrivals lists discrete journeys one can leave at a pattern point, sorted
// by time of day.
func (ds *Dataset) Arrivals(jpp JourneyPatternPointIdx) []TimeEntry {
	return ds.arrivals[jpp]
}

// ConnectionsFrom lists walking links leaving sp, including the same-stop one.
func (ds *Dataset) ConnectionsFrom(sp StopPointIdx) []Link {
	return ds.outgoing[sp]
}

// ConnectionsTo lists walking links arriving at sp.
func (ds *Dataset) ConnectionsTo(sp StopPointIdx) []Link {
	return ds.incoming[sp]
}

// IsActive reports whether vj runs on reference day at level.
func (ds *Dataset) IsActive(vj VehicleJourneyIdx, level RTLevel, day int) bool {
	return ds.ValidityPatterns[ds.VehicleJourneys[vj].Validity[level]].Check(day)
}

// StayInSuccessor returns the journey continuing vj in its block and the base
// instant of that continuation, given the base instant of vj.
func (ds *Dataset) StayInSuccessor(vj VehicleJourneyIdx, base calendar.DateTime) (VehicleJourneyIdx, calendar.DateTime, bool) {
	cur := &ds.VehicleJourneys[vj]
	if cur.Next == NoVehicleJourney {
		return NoVehicleJourney, 0, false
	}
	next := &ds.VehicleJourneys[cur.Next]
	lastArrival := base + calendar.DateTime(cur.StopTimes[len(cur.StopTimes)-1].Arrival)
	nextBase := base
	for nextBase+calendar.DateTime(next.StopTimes[0].Departure) < lastArrival {
		nextBase += calendar.SecondsPerDay
	}
	return cur.Next, nextBase, true
}

// StayInPredecessor is the inverse of StayInSuccessor.
func (ds *Dataset) StayInPredecessor(vj VehicleJourneyIdx, base calendar.DateTime) (VehicleJourneyIdx, calendar.DateTime, bool) {
	cur := &ds.VehicleJourneys[vj]
	if cur.Prev == NoVehicleJourney {
		return NoVehicleJourney, 0, false
	}
	prev := &ds.VehicleJourneys[cur.Prev]
	firstDeparture := base + calendar.DateTime(cur.StopTimes[0].Departure)
	prevBase := base
	for prevBase+calendar.DateTime(prev.StopTimes[len(prev.StopTimes)-1].Arrival) > firstDeparture {
		prevBase -= calendar.SecondsPerDay
	}
	return cur.Prev, prevBase, true
}

// Block returns the whole stay-in chain containing vj, first journey first.
func (ds *Dataset) Block(vj VehicleJourneyIdx) []VehicleJourneyIdx {
	first := vj
	for steps := 0; ds.VehicleJourneys[first].Prev != NoVehicleJourney && steps < len(ds.VehicleJourneys); steps++ {
		first = ds.VehicleJourneys[first].Prev
	}
	var chain []VehicleJourneyIdx
	for cur := first; cur != NoVehicleJourney && len(chain) <= len(ds.VehicleJourneys); cur = ds.VehicleJourneys[cur].Next {
		chain = append(chain, cur)
	}
	return chain
}

// LineOf returns the line operating vj.
func (ds *Dataset) LineOf(vj VehicleJourneyIdx) *Line {
	return &ds.Lines[ds.Routes[ds.VehicleJourneys[vj].Route].Line]
}

// Stats counts the entities of the dataset.
func (ds *Dataset) Stats() Stats {
	return Stats{
		StopAreas:        len(ds.StopAreas),
		StopPoints:       len(ds.StopPoints),
		Lines:            len(ds.Lines),
		Routes:           len(ds.Routes),
		JourneyPatterns:  len(ds.JourneyPatterns),
		VehicleJourneys:  len(ds.VehicleJourneys),
		ValidityPatterns: len(ds.ValidityPatterns),
		Connections:      len(ds.Connections),
		Days:             ds.Days,
	}
}

// InvariantError lists every data invariant a dataset failed. It is fatal at
// load time.
type InvariantError struct {
	Violations []string
}

func (e *InvariantError) Error() string {
	const shown = 5
	items := e.Violations
	suffix := ""
	if len(items) > shown {
		suffix = fmt.Sprintf(" (and %d more)", len(items)-shown)
		items = items[:shown]
	}
	return fmt.Sprintf("schedule invariants violated: %s%s", strings.Join(items, "; "), suffix)
}

// PatternsAt lists the pattern points serving sp.
func (ds *Dataset) PatternsAt(sp StopPointIdx) []JourneyPatternPointIdx {
	return ds.StopPoints[sp].Points
}
