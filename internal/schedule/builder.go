package schedule

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"planner.onebusaway.org/internal/calendar"
	"planner.onebusaway.org/internal/frequency"
)

const (
	autoAreaPrefix = "area:"
	defaultLineID  = "default"
	defaultRouteID = "default"
)

type StopAreaSpec struct {
	ID         string
	Name       string
	Lat, Lon   float64
	Wheelchair bool
}

// StopPointSpec describes a stop point. An empty StopArea creates a
// dedicated area named "area:<ID>".
type StopPointSpec struct {
	ID         string
	Name       string
	StopArea   string
	Lat, Lon   float64
	Wheelchair bool
	Bike       bool
	Zone       string
}

type LineSpec struct {
	ID      string
	Name    string
	Code    string
	Network string
	Mode    string
}

// RouteSpec describes a route. An empty Line creates a line with the
// route's ID.
type RouteSpec struct {
	ID   string
	Name string
	Line string
}

// StopTimeSpec uses negative flags so that the zero value allows both
// pickup and drop-off.
type StopTimeSpec struct {
	StopPoint         string
	Arrival           int32
	Departure         int32
	NoPickup          bool
	NoDropOff         bool
	BoardingDuration  int32
	AlightingDuration int32
	ODT               bool
	LocalTrafficZone  uint16
}

// VehicleJourneySpec describes one trip. Validity applies to every level
// unless LevelValidity overrides it. An empty Route attaches the journey to
// a shared default route.
type VehicleJourneySpec struct {
	ID            string
	Route         string
	Validity      *calendar.ValidityPattern
	LevelValidity map[RTLevel]*calendar.ValidityPattern
	StopTimes     []StopTimeSpec
	Frequency     *frequency.Window
	Wheelchair    bool
	Bike          bool
	BlockID       string
	Headsign      string
	Realtime      bool
}

type connectionSpec struct {
	from, to string
	duration int32
}

// Builder collects entities and produces an immutable Dataset. Invariant
// violations are reported together by Build.
type Builder struct {
	days            int
	dayZero         time.Time
	location        *time.Location
	defaultTransfer int32

	areas       []StopAreaSpec
	points      []StopPointSpec
	lines       []LineSpec
	routes      []RouteSpec
	journeys    []VehicleJourneySpec
	connections []connectionSpec
	noTransfer  []string
	stayIn      [][2]string
}

// NewBuilder starts a dataset covering days service days.
func NewBuilder(days int) *Builder {
	return &Builder{
		days:     days,
		dayZero:  time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
		location: time.UTC,
	}
}

// SetCalendar anchors day 0 of the dataset to a civil date in loc.
func (b *Builder) SetCalendar(dayZero time.Time, loc *time.Location) *Builder {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := dayZero.Date()
	b.dayZero = time.Date(y, m, d, 0, 0, 0, 0, loc)
	b.location = loc
	return b
}

// SetDefaultTransfer sets the duration of the same-stop connection added to
// stop points that have none.
func (b *Builder) SetDefaultTransfer(secs int32) *Builder {
	b.defaultTransfer = secs
	return b
}

func (b *Builder) Days() int { return b.days }

func (b *Builder) AddStopArea(s StopAreaSpec) *Builder {
	b.areas = append(b.areas, s)
	return b
}

func (b *Builder) AddStopPoint(s StopPointSpec) *Builder {
	b.points = append(b.points, s)
	return b
}

func (b *Builder) AddLine(s LineSpec) *Builder {
	b.lines = append(b.lines, s)
	return b
}

func (b *Builder) AddRoute(s RouteSpec) *Builder {
	b.routes = append(b.routes, s)
	return b
}

func (b *Builder) AddVehicleJourney(s VehicleJourneySpec) *Builder {
	b.journeys = append(b.journeys, s)
	return b
}

// AddConnection adds a directed walking link.
func (b *Builder) AddConnection(from, to string, duration int32) *Builder {
	b.connections = append(b.connections, connectionSpec{from: from, to: to, duration: duration})
	return b
}

// ForbidTransferAt removes the self connection of stop, so that no change
// of vehicle can happen there.
func (b *Builder) ForbidTransferAt(stop string) *Builder {
	b.noTransfer = append(b.noTransfer, stop)
	return b
}

// AddSymmetricConnection adds the link in both directions.
func (b *Builder) AddSymmetricConnection(a, c string, duration int32) *Builder {
	b.AddConnection(a, c, duration)
	if a != c {
		b.AddConnection(c, a, duration)
	}
	return b
}

// LinkStayIn chains next after prev in the same vehicle block.
func (b *Builder) LinkStayIn(prev, next string) *Builder {
	b.stayIn = append(b.stayIn, [2]string{prev, next})
	return b
}

// VehicleJourneySpecs exposes the collected journeys so that callers deriving
// a dataset can edit them before Build.
func (b *Builder) VehicleJourneySpecs() []VehicleJourneySpec {
	return b.journeys
}

// ReplaceVehicleJourney swaps the spec with the same ID. It reports whether
// one was found.
func (b *Builder) ReplaceVehicleJourney(s VehicleJourneySpec) bool {
	for i := range b.journeys {
		if b.journeys[i].ID == s.ID {
			b.journeys[i] = s
			return true
		}
	}
	return false
}

// Build validates everything added so far and returns the dataset.
func (b *Builder) Build() (*Dataset, error) {
	v := &violations{}
	ds := newDataset(b.days, b.dayZero, b.location, b.defaultTransfer)

	b.buildStops(ds, v)
	b.buildLines(ds, v)
	b.buildJourneys(ds, v)
	b.buildStayIn(ds, v)
	b.buildConnections(ds, v)

	if err := v.err(); err != nil {
		return nil, err
	}
	ds.index()
	return ds, nil
}

func (b *Builder) buildStops(ds *Dataset, v *violations) {
	for _, s := range b.areas {
		if s.ID == "" {
			v.add("stop area with empty id")
			continue
		}
		if _, dup := ds.areaByID[s.ID]; dup {
			v.add("duplicate stop area %q", s.ID)
			continue
		}
		ds.addArea(s)
	}
	for _, s := range b.points {
		if s.ID == "" {
			v.add("stop point with empty id")
			continue
		}
		if _, dup := ds.pointByID[s.ID]; dup {
			v.add("duplicate stop point %q", s.ID)
			continue
		}
		areaID := s.StopArea
		if areaID == "" {
			areaID = autoAreaPrefix + s.ID
			if _, ok := ds.areaByID[areaID]; !ok {
				ds.addArea(StopAreaSpec{ID: areaID, Name: s.Name, Lat: s.Lat, Lon: s.Lon, Wheelchair: s.Wheelchair})
			}
		}
		area, ok := ds.areaByID[areaID]
		if !ok {
			v.add("stop point %q references unknown stop area %q", s.ID, areaID)
			continue
		}
		idx := StopPointIdx(len(ds.StopPoints))
		ds.StopPoints = append(ds.StopPoints, StopPoint{
			Idx:        idx,
			ID:         s.ID,
			Name:       s.Name,
			Lat:        s.Lat,
			Lon:        s.Lon,
			StopArea:   area,
			Wheelchair: s.Wheelchair,
			Bike:       s.Bike,
			Zone:       s.Zone,
		})
		ds.pointByID[s.ID] = idx
		ds.StopAreas[area].StopPoints = append(ds.StopAreas[area].StopPoints, idx)
	}
}

func (b *Builder) buildLines(ds *Dataset, v *violations) {
	for _, s := range b.lines {
		if s.ID == "" {
			v.add("line with empty id")
			continue
		}
		if _, dup := ds.lineByID[s.ID]; dup {
			v.add("duplicate line %q", s.ID)
			continue
		}
		ds.addLine(s)
	}
	for _, s := range b.routes {
		if s.ID == "" {
			v.add("route with empty id")
			continue
		}
		if _, dup := ds.routeByID[s.ID]; dup {
			v.add("duplicate route %q", s.ID)
			continue
		}
		lineID := s.Line
		if lineID == "" {
			lineID = s.ID
			if _, ok := ds.lineByID[lineID]; !ok {
				ds.addLine(LineSpec{ID: lineID, Name: s.Name})
			}
		}
		line, ok := ds.lineByID[lineID]
		if !ok {
			v.add("route %q references unknown line %q", s.ID, lineID)
			continue
		}
		ds.addRoute(s, line)
	}
}

func (b *Builder) defaultRoute(ds *Dataset) RouteIdx {
	if r, ok := ds.routeByID[defaultRouteID]; ok {
		return r
	}
	line, ok := ds.lineByID[defaultLineID]
	if !ok {
		line = ds.addLine(LineSpec{ID: defaultLineID, Name: defaultLineID})
	}
	return ds.addRoute(RouteSpec{ID: defaultRouteID, Name: defaultRouteID}, line)
}

func (b *Builder) buildJourneys(ds *Dataset, v *violations) {
	patternByKey := map[string][]JourneyPatternIdx{}
	patternByValidity := map[string]ValidityPatternIdx{}

	internPattern := func(vp *calendar.ValidityPattern) ValidityPatternIdx {
		key := vp.String()
		if idx, ok := patternByValidity[key]; ok {
			return idx
		}
		idx := ValidityPatternIdx(len(ds.ValidityPatterns))
		ds.ValidityPatterns = append(ds.ValidityPatterns, vp.Clone())
		patternByValidity[key] = idx
		return idx
	}

	for _, s := range b.journeys {
		if s.ID != "" {
			if _, dup := ds.vjByID[s.ID]; dup {
				v.add("duplicate vehicle journey %q", s.ID)
				continue
			}
		}
		stopTimes, ok := ds.checkJourney(v, s)
		if !ok {
			continue
		}

		route := ds.routeByID[s.Route]
		if s.Route == "" {
			route = b.defaultRoute(ds)
		}

		kind := Discrete
		var window frequency.Window
		if s.Frequency != nil {
			kind = Frequency
			window = *s.Frequency
		}

		var validity [NumLevels]ValidityPatternIdx
		base := s.Validity
		if base == nil {
			base = calendar.NewValidityPattern(b.days)
		}
		validity[Base] = internPattern(base)
		for level := Adapted; level < NumLevels; level++ {
			if vp := s.LevelValidity[level]; vp != nil {
				validity[level] = internPattern(vp)
			} else {
				validity[level] = validity[Base]
			}
		}

		idx := VehicleJourneyIdx(len(ds.VehicleJourneys))
		ds.VehicleJourneys = append(ds.VehicleJourneys, VehicleJourney{
			Idx:        idx,
			ID:         s.ID,
			Route:      route,
			Kind:       kind,
			Window:     window,
			StopTimes:  stopTimes,
			Validity:   validity,
			Prev:       NoVehicleJourney,
			Next:       NoVehicleJourney,
			Wheelchair: s.Wheelchair,
			Bike:       s.Bike,
			BlockID:    s.BlockID,
			Headsign:   s.Headsign,
			Realtime:   s.Realtime,
		})
		ds.vjByID[s.ID] = idx
		ds.Routes[route].VehicleJourneys = append(ds.Routes[route].VehicleJourneys, idx)

		key := patternKey(route, stopTimes)
		jp, ok := ds.patternFor(patternByKey[key], &ds.VehicleJourneys[idx])
		if !ok {
			jp = ds.addPattern(route, stopTimes)
			patternByKey[key] = append(patternByKey[key], jp)
		}
		ds.VehicleJourneys[idx].Pattern = jp
		if kind == Frequency {
			ds.JourneyPatterns[jp].Frequency = append(ds.JourneyPatterns[jp].Frequency, idx)
		} else {
			ds.JourneyPatterns[jp].Discrete = append(ds.JourneyPatterns[jp].Discrete, idx)
		}
	}
}

// ValidateJourney runs the per-journey checks of Build against the stop
// points and routes of ds. Id clashes with existing journeys are not
// reported.
func (ds *Dataset) ValidateJourney(s VehicleJourneySpec) error {
	v := &violations{}
	ds.checkJourney(v, s)
	return v.err()
}

func (ds *Dataset) checkJourney(v *violations, s VehicleJourneySpec) ([]StopTime, bool) {
	if s.ID == "" {
		v.add("vehicle journey with empty id")
		return nil, false
	}
	if len(s.StopTimes) == 0 {
		v.add("vehicle journey %q has no stop times", s.ID)
		return nil, false
	}
	if s.Route != "" {
		if _, ok := ds.routeByID[s.Route]; !ok {
			v.add("vehicle journey %q references unknown route %q", s.ID, s.Route)
			return nil, false
		}
	}
	stopTimes, ok := ds.resolveStopTimes(v, s)
	if !ok {
		return nil, false
	}
	if s.Frequency != nil {
		if err := s.Frequency.Validate(); err != nil {
			v.add("vehicle journey %q: %v", s.ID, err)
			return nil, false
		}
	}
	if s.Validity != nil && s.Validity.Days() != ds.Days {
		v.add("vehicle journey %q validity covers %d days, dataset covers %d", s.ID, s.Validity.Days(), ds.Days)
		return nil, false
	}
	for level := Adapted; level < NumLevels; level++ {
		if vp := s.LevelValidity[level]; vp != nil && vp.Days() != ds.Days {
			v.add("vehicle journey %q %s validity covers %d days, dataset covers %d", s.ID, level, vp.Days(), ds.Days)
			return nil, false
		}
	}
	return stopTimes, true
}

func (ds *Dataset) resolveStopTimes(v *violations, s VehicleJourneySpec) ([]StopTime, bool) {
	out := make([]StopTime, len(s.StopTimes))
	for i, st := range s.StopTimes {
		sp, ok := ds.pointByID[st.StopPoint]
		if !ok {
			v.add("vehicle journey %q stop time %d references unknown stop point %q", s.ID, i, st.StopPoint)
			return nil, false
		}
		if st.BoardingDuration < 0 || st.AlightingDuration < 0 {
			v.add("vehicle journey %q stop time %d has a negative access duration", s.ID, i)
			return nil, false
		}
		if st.Arrival > st.Departure {
			v.add("vehicle journey %q stop time %d arrives after it departs", s.ID, i)
			return nil, false
		}
		if i > 0 && out[i-1].Departure > st.Arrival {
			v.add("vehicle journey %q stop times are not ordered at position %d", s.ID, i)
			return nil, false
		}
		out[i] = StopTime{
			StopPoint:         sp,
			Arrival:           st.Arrival,
			Departure:         st.Departure,
			Pickup:            !st.NoPickup,
			DropOff:           !st.NoDropOff,
			BoardingDuration:  st.BoardingDuration,
			AlightingDuration: st.AlightingDuration,
			ODT:               st.ODT,
			LocalTrafficZone:  st.LocalTrafficZone,
		}
	}
	return out, true
}

func patternKey(route RouteIdx, stopTimes []StopTime) string {
	var sb strings.Builder
	sb.WriteString(strconv.FormatUint(uint64(route), 10))
	for _, st := range stopTimes {
		sb.WriteByte('|')
		sb.WriteString(strconv.FormatUint(uint64(st.StopPoint), 10))
	}
	return sb.String()
}

// patternFor picks the first candidate pattern vj can join without
// overtaking, or being overtaken by, one of its discrete journeys.
func (ds *Dataset) patternFor(candidates []JourneyPatternIdx, vj *VehicleJourney) (JourneyPatternIdx, bool) {
	for _, jp := range candidates {
		if vj.Kind == Frequency {
			return jp, true
		}
		clash := false
		for _, other := range ds.JourneyPatterns[jp].Discrete {
			if ds.overtakes(vj, &ds.VehicleJourneys[other]) {
				clash = true
				break
			}
		}
		if !clash {
			return jp, true
		}
	}
	return 0, false
}

// overtakes reports whether a and b run on a common day and one of them
// catches up with the other somewhere along the shared stop sequence.
// Journeys with identical stop times never overtake.
func (ds *Dataset) overtakes(a, b *VehicleJourney) bool {
	shared := false
	for level := Base; level < NumLevels; level++ {
		if ds.ValidityPatterns[a.Validity[level]].Intersects(ds.ValidityPatterns[b.Validity[level]]) {
			shared = true
			break
		}
	}
	if !shared || sameTimes(a.StopTimes, b.StopTimes) {
		return false
	}
	first, second := a.StopTimes, b.StopTimes
	if first[0].Departure >= second[0].Departure {
		first, second = second, first
	}
	for i := range first {
		if first[i].Arrival >= second[i].Arrival || first[i].Departure >= second[i].Departure {
			return true
		}
	}
	return false
}

func sameTimes(a, b []StopTime) bool {
	for i := range a {
		if a[i].Arrival != b[i].Arrival || a[i].Departure != b[i].Departure {
			return false
		}
	}
	return true
}

func (b *Builder) buildStayIn(ds *Dataset, v *violations) {
	for _, link := range b.stayIn {
		prev, okPrev := ds.vjByID[link[0]]
		next, okNext := ds.vjByID[link[1]]
		if !okPrev || !okNext {
			v.add("stay-in link %s -> %s references an unknown vehicle journey", link[0], link[1])
			continue
		}
		p, n := &ds.VehicleJourneys[prev], &ds.VehicleJourneys[next]
		if prev == next {
			v.add("stay-in link %s -> %s is a self loop", p.ID, n.ID)
			continue
		}
		if p.Kind != Discrete || n.Kind != Discrete {
			v.add("stay-in link %s -> %s involves a frequency journey", p.ID, n.ID)
			continue
		}
		if p.Next != NoVehicleJourney || n.Prev != NoVehicleJourney {
			v.add("stay-in link %s -> %s conflicts with an existing link", p.ID, n.ID)
			continue
		}
		if p.StopTimes[len(p.StopTimes)-1].StopPoint != n.StopTimes[0].StopPoint {
			v.add("stay-in link %s -> %s does not continue at the terminal stop", p.ID, n.ID)
			continue
		}
		p.Next = next
		n.Prev = prev
	}

	for i := range ds.VehicleJourneys {
		steps := 0
		for cur := ds.VehicleJourneys[i].Next; cur != NoVehicleJourney; cur = ds.VehicleJourneys[cur].Next {
			steps++
			if cur == VehicleJourneyIdx(i) || steps > len(ds.VehicleJourneys) {
				v.add("stay-in chain through %q is cyclic", ds.VehicleJourneys[i].ID)
				break
			}
		}
	}
}

func (b *Builder) buildConnections(ds *Dataset, v *violations) {
	type pair struct{ from, to StopPointIdx }
	best := map[pair]int32{}
	var order []pair
	for _, c := range b.connections {
		from, okFrom := ds.pointByID[c.from]
		to, okTo := ds.pointByID[c.to]
		if !okFrom || !okTo {
			v.add("connection %s -> %s references an unknown stop point", c.from, c.to)
			continue
		}
		if c.duration < 0 {
			v.add("connection %s -> %s has a negative duration", c.from, c.to)
			continue
		}
		k := pair{from, to}
		if d, ok := best[k]; ok {
			if c.duration < d {
				best[k] = c.duration
			}
			continue
		}
		best[k] = c.duration
		order = append(order, k)
	}
	forbidden := map[StopPointIdx]bool{}
	for _, id := range b.noTransfer {
		sp, ok := ds.pointByID[id]
		if !ok {
			v.add("forbidden transfer references unknown stop point %q", id)
			continue
		}
		forbidden[sp] = true
	}
	for i := range ds.StopPoints {
		k := pair{StopPointIdx(i), StopPointIdx(i)}
		if forbidden[k.from] {
			delete(best, k)
			continue
		}
		if _, ok := best[k]; !ok {
			best[k] = b.defaultTransfer
			order = append(order, k)
		}
	}
	order = slices.DeleteFunc(order, func(k pair) bool {
		_, ok := best[k]
		return !ok
	})
	sort.Slice(order, func(i, j int) bool {
		if order[i].from != order[j].from {
			return order[i].from < order[j].from
		}
		return order[i].to < order[j].to
	})
	ds.Connections = make([]Connection, 0, len(order))
	for _, k := range order {
		ds.Connections = append(ds.Connections, Connection{From: k.from, To: k.to, Duration: best[k]})
	}
}

// NewBuilderFrom returns a builder pre-filled with every entity of ds, so
// that a derived dataset can be produced without touching ds.
func NewBuilderFrom(ds *Dataset) *Builder {
	b := NewBuilder(ds.Days).SetCalendar(ds.DayZero, ds.Location).SetDefaultTransfer(ds.DefaultTransfer)
	for _, a := range ds.StopAreas {
		b.AddStopArea(StopAreaSpec{ID: a.ID, Name: a.Name, Lat: a.Lat, Lon: a.Lon, Wheelchair: a.Wheelchair})
	}
	for _, sp := range ds.StopPoints {
		b.AddStopPoint(StopPointSpec{
			ID:         sp.ID,
			Name:       sp.Name,
			StopArea:   ds.StopAreas[sp.StopArea].ID,
			Lat:        sp.Lat,
			Lon:        sp.Lon,
			Wheelchair: sp.Wheelchair,
			Bike:       sp.Bike,
			Zone:       sp.Zone,
		})
	}
	for _, l := range ds.Lines {
		b.AddLine(LineSpec{ID: l.ID, Name: l.Name, Code: l.Code, Network: l.Network, Mode: l.Mode})
	}
	for _, r := range ds.Routes {
		b.AddRoute(RouteSpec{ID: r.ID, Name: r.Name, Line: ds.Lines[r.Line].ID})
	}
	for i := range ds.VehicleJourneys {
		b.AddVehicleJourney(ds.VehicleJourneySpec(VehicleJourneyIdx(i)))
	}
	for _, vj := range ds.VehicleJourneys {
		if vj.Next != NoVehicleJourney {
			b.LinkStayIn(vj.ID, ds.VehicleJourneys[vj.Next].ID)
		}
	}
	selfLinked := make([]bool, len(ds.StopPoints))
	for _, c := range ds.Connections {
		b.AddConnection(ds.StopPoints[c.From].ID, ds.StopPoints[c.To].ID, c.Duration)
		if c.From == c.To {
			selfLinked[c.From] = true
		}
	}
	for i, linked := range selfLinked {
		if !linked {
			b.ForbidTransferAt(ds.StopPoints[i].ID)
		}
	}
	return b
}

// VehicleJourneySpec converts a journey back into its builder form.
func (ds *Dataset) VehicleJourneySpec(idx VehicleJourneyIdx) VehicleJourneySpec {
	vj := &ds.VehicleJourneys[idx]
	spec := VehicleJourneySpec{
		ID:         vj.ID,
		Route:      ds.Routes[vj.Route].ID,
		Validity:   ds.ValidityPatterns[vj.Validity[Base]].Clone(),
		StopTimes:  make([]StopTimeSpec, len(vj.StopTimes)),
		Wheelchair: vj.Wheelchair,
		Bike:       vj.Bike,
		BlockID:    vj.BlockID,
		Headsign:   vj.Headsign,
		Realtime:   vj.Realtime,
	}
	for level := Adapted; level < NumLevels; level++ {
		if vj.Validity[level] != vj.Validity[Base] {
			if spec.LevelValidity == nil {
				spec.LevelValidity = map[RTLevel]*calendar.ValidityPattern{}
			}
			spec.LevelValidity[level] = ds.ValidityPatterns[vj.Validity[level]].Clone()
		}
	}
	if vj.Kind == Frequency {
		w := vj.Window
		spec.Frequency = &w
	}
	for i, st := range vj.StopTimes {
		spec.StopTimes[i] = StopTimeSpec{
			StopPoint:         ds.StopPoints[st.StopPoint].ID,
			Arrival:           st.Arrival,
			Departure:         st.Departure,
			NoPickup:          !st.Pickup,
			NoDropOff:         !st.DropOff,
			BoardingDuration:  st.BoardingDuration,
			AlightingDuration: st.AlightingDuration,
			ODT:               st.ODT,
			LocalTrafficZone:  st.LocalTrafficZone,
		}
	}
	return spec
}

type violations struct {
	items []string
}

func (v *violations) add(format string, args ...any) {
	v.items = append(v.items, fmt.Sprintf(format, args...))
}

func (v *violations) err() error {
	if len(v.items) == 0 {
		return nil
	}
	return &InvariantError{Violations: v.items}
}
