package gtfs

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/jamespfennell/gtfs"

	"planner.onebusaway.org/internal/calendar"
	"planner.onebusaway.org/internal/frequency"
	"planner.onebusaway.org/internal/schedule"
	"planner.onebusaway.org/internal/utils"
)

const (
	locationTypeStation = 1

	pickupNone         = 1
	pickupPhoneAgency  = 2
	pickupCoordinate   = 3
	accessibilityTrue  = 1
	metersPerDegreeLat = 111_320.0
)

var ErrNoService = errors.New("feed has no active service dates")

// Sequences maps a vehicle journey ID to the GTFS stop_sequence of each of
// its stop times, so that trip updates can be matched by sequence number.
type Sequences map[string][]uint32

// Order returns the position of stop_sequence seq in journey vj.
func (s Sequences) Order(vj string, seq uint32) (int, bool) {
	for i, v := range s[vj] {
		if v == seq {
			return i, true
		}
	}
	return 0, false
}

type Agency struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Timezone string `json:"timezone"`
}

// Feed is a converted static feed.
type Feed struct {
	Dataset   *schedule.Dataset
	Sequences Sequences
	Agencies  []Agency
	// Skipped lists trips left out because their stop times are unusable.
	Skipped []string
}

type tripTimes struct {
	id        string
	route     string
	service   string
	block     string
	stopTimes []schedule.StopTimeSpec
	sequences []uint32
}

type converter struct {
	static   *gtfs.Static
	sameStop []TransferRow
	opts     BuildOptions

	builder *schedule.Builder
	dayZero time.Time
	days    int

	points   map[string]schedule.StopPointSpec
	children map[string][]string
	routes   map[string]string

	feed *Feed
}

// BuildDataset converts a parsed static feed into a dataset.
// sameStop carries the transfers.txt rows that stay at one stop.
func BuildDataset(static *gtfs.Static, sameStop []TransferRow, opts BuildOptions) (*Feed, error) {
	c := &converter{
		static:   static,
		sameStop: sameStop,
		opts:     opts,
		points:   map[string]schedule.StopPointSpec{},
		children: map[string][]string{},
		routes:   map[string]string{},
		feed:     &Feed{Sequences: Sequences{}},
	}
	if err := c.calendar(); err != nil {
		return nil, err
	}
	c.agencies()
	c.stops()
	c.lines()
	trips := c.trips()
	c.journeys(trips)
	c.blocks(trips)
	c.connections()

	ds, err := c.builder.Build()
	if err != nil {
		return nil, err
	}
	c.feed.Dataset = ds
	return c.feed, nil
}

func (c *converter) calendar() error {
	var first, last time.Time
	widen := func(t time.Time) {
		if t.IsZero() {
			return
		}
		if first.IsZero() || t.Before(first) {
			first = t
		}
		if last.IsZero() || t.After(last) {
			last = t
		}
	}
	for _, s := range c.static.Services {
		widen(s.StartDate)
		widen(s.EndDate)
		for _, d := range s.AddedDates {
			widen(d)
		}
	}
	if first.IsZero() {
		return ErrNoService
	}

	loc := time.UTC
	if len(c.static.Agencies) > 0 && c.static.Agencies[0].Timezone != "" {
		if l, err := time.LoadLocation(c.static.Agencies[0].Timezone); err == nil {
			loc = l
		}
	}

	c.dayZero = time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, time.UTC)
	c.days = calendar.DaysBetween(c.dayZero, last) + 1
	if c.opts.Days > 0 && c.days > c.opts.Days {
		c.days = c.opts.Days
	}
	c.builder = schedule.NewBuilder(c.days).
		SetCalendar(c.dayZero, loc).
		SetDefaultTransfer(c.opts.DefaultTransfer)
	return nil
}

func (c *converter) agencies() {
	for _, a := range c.static.Agencies {
		c.feed.Agencies = append(c.feed.Agencies, Agency{ID: a.Id, Name: a.Name, URL: a.Url, Timezone: a.Timezone})
	}
}

func (c *converter) stops() {
	for _, s := range c.static.Stops {
		if int(s.Type) == locationTypeStation {
			lat, lon := coordinates(&s)
			c.builder.AddStopArea(schedule.StopAreaSpec{
				ID:         s.Id,
				Name:       s.Name,
				Lat:        lat,
				Lon:        lon,
				Wheelchair: int(s.WheelchairBoarding) == accessibilityTrue,
			})
		}
	}
	for _, s := range c.static.Stops {
		if int(s.Type) != 0 {
			continue
		}
		lat, lon := coordinates(&s)
		spec := schedule.StopPointSpec{
			ID:         s.Id,
			Name:       s.Name,
			Lat:        lat,
			Lon:        lon,
			Wheelchair: int(s.WheelchairBoarding) == accessibilityTrue,
			Zone:       s.ZoneId,
		}
		if s.Parent != nil && int(s.Parent.Type) == locationTypeStation {
			spec.StopArea = s.Parent.Id
			c.children[s.Parent.Id] = append(c.children[s.Parent.Id], s.Id)
		}
		c.points[s.Id] = spec
		c.builder.AddStopPoint(spec)
	}
}

func coordinates(s *gtfs.Stop) (float64, float64) {
	var lat, lon float64
	if s.Latitude != nil {
		lat = *s.Latitude
	}
	if s.Longitude != nil {
		lon = *s.Longitude
	}
	return lat, lon
}

func (c *converter) lines() {
	for _, r := range c.static.Routes {
		name := r.LongName
		if name == "" {
			name = r.ShortName
		}
		network := ""
		if r.Agency != nil {
			network = r.Agency.Id
		}
		c.builder.AddLine(schedule.LineSpec{
			ID:      r.Id,
			Name:    name,
			Code:    r.ShortName,
			Network: network,
			Mode:    RouteMode(int(r.Type)),
		})
	}
}

// RouteMode names a GTFS route_type, including the extended types.
func RouteMode(routeType int) string {
	switch {
	case routeType == 0 || (routeType >= 900 && routeType < 1000):
		return "tram"
	case routeType == 1 || (routeType >= 400 && routeType < 500):
		return "subway"
	case routeType == 2 || (routeType >= 100 && routeType < 200):
		return "rail"
	case routeType == 3 || (routeType >= 700 && routeType < 800):
		return "bus"
	case routeType == 4 || (routeType >= 1000 && routeType < 1100):
		return "ferry"
	case routeType == 5:
		return "cable_tram"
	case routeType == 6 || (routeType >= 1300 && routeType < 1400):
		return "aerial_lift"
	case routeType == 7 || (routeType >= 1400 && routeType < 1500):
		return "funicular"
	case routeType == 11 || (routeType >= 800 && routeType < 900):
		return "trolleybus"
	case routeType == 12:
		return "monorail"
	case routeType >= 200 && routeType < 300:
		return "coach"
	}
	return "other"
}

// trips resolves stop times of every usable trip, sorted by sequence with
// missing intermediate times interpolated.
func (c *converter) trips() []tripTimes {
	out := make([]tripTimes, 0, len(c.static.Trips))
	for i := range c.static.Trips {
		t := &c.static.Trips[i]
		if t.Route == nil || t.Service == nil || len(t.StopTimes) < 2 {
			c.feed.Skipped = append(c.feed.Skipped, t.ID)
			continue
		}
		sts := make([]gtfs.ScheduledStopTime, len(t.StopTimes))
		copy(sts, t.StopTimes)
		sort.SliceStable(sts, func(a, b int) bool { return sts[a].StopSequence < sts[b].StopSequence })

		tt := tripTimes{
			id:      t.ID,
			route:   fmt.Sprintf("%s:%d", t.Route.Id, int(t.DirectionId)),
			service: t.Service.Id,
			block:   t.BlockID,
		}
		ok := true
		for _, st := range sts {
			if st.Stop == nil {
				ok = false
				break
			}
			if _, known := c.points[st.Stop.Id]; !known {
				ok = false
				break
			}
			spec := schedule.StopTimeSpec{
				StopPoint: st.Stop.Id,
				Arrival:   int32(st.ArrivalTime / time.Second),
				Departure: int32(st.DepartureTime / time.Second),
				NoPickup:  int(st.PickupType) == pickupNone,
				NoDropOff: int(st.DropOffType) == pickupNone,
				ODT:       isOnDemand(int(st.PickupType)) || isOnDemand(int(st.DropOffType)),
			}
			tt.stopTimes = append(tt.stopTimes, spec)
			tt.sequences = append(tt.sequences, uint32(st.StopSequence))
		}
		if !ok || !interpolate(tt.stopTimes) || !ordered(tt.stopTimes) {
			c.feed.Skipped = append(c.feed.Skipped, t.ID)
			continue
		}
		c.routes[tt.route] = t.Route.Id
		out = append(out, tt)
	}
	return out
}

func isOnDemand(policy int) bool {
	return policy == pickupPhoneAgency || policy == pickupCoordinate
}

// interpolate fills intermediate stop times left blank in the feed. Both
// terminals must be timed.
func interpolate(sts []schedule.StopTimeSpec) bool {
	missing := func(i int) bool {
		return i > 0 && sts[i].Arrival == 0 && sts[i].Departure == 0
	}
	if missing(len(sts) - 1) {
		return false
	}
	for i := 1; i < len(sts); i++ {
		if !missing(i) {
			continue
		}
		j := i
		for missing(j) {
			j++
		}
		from, to := sts[i-1].Departure, sts[j].Arrival
		for k := i; k < j; k++ {
			v := from + (to-from)*int32(k-i+1)/int32(j-i+1)
			sts[k].Arrival, sts[k].Departure = v, v
		}
		i = j
	}
	return true
}

func ordered(sts []schedule.StopTimeSpec) bool {
	for i, st := range sts {
		if st.Arrival > st.Departure {
			return false
		}
		if i > 0 && sts[i-1].Departure > st.Arrival {
			return false
		}
	}
	return true
}

func (c *converter) validity(serviceID string) *calendar.ValidityPattern {
	for i := range c.static.Services {
		s := &c.static.Services[i]
		if s.Id != serviceID {
			continue
		}
		w := calendar.Weekly{
			Start:        s.StartDate,
			End:          s.EndDate,
			AddedDates:   s.AddedDates,
			RemovedDates: s.RemovedDates,
		}
		w.Weekdays[time.Sunday] = s.Sunday
		w.Weekdays[time.Monday] = s.Monday
		w.Weekdays[time.Tuesday] = s.Tuesday
		w.Weekdays[time.Wednesday] = s.Wednesday
		w.Weekdays[time.Thursday] = s.Thursday
		w.Weekdays[time.Friday] = s.Friday
		w.Weekdays[time.Saturday] = s.Saturday
		return calendar.FromWeekly(w, c.dayZero, c.days)
	}
	return calendar.NewValidityPattern(c.days)
}

func (c *converter) journeys(trips []tripTimes) {
	routeIDs := make([]string, 0, len(c.routes))
	for r := range c.routes {
		routeIDs = append(routeIDs, r)
	}
	sort.Strings(routeIDs)
	for _, r := range routeIDs {
		c.builder.AddRoute(schedule.RouteSpec{ID: r, Name: r, Line: c.routes[r]})
	}

	validity := map[string]*calendar.ValidityPattern{}
	byID := map[string]*gtfs.ScheduledTrip{}
	for i := range c.static.Trips {
		byID[c.static.Trips[i].ID] = &c.static.Trips[i]
	}

	for _, tt := range trips {
		vp, ok := validity[tt.service]
		if !ok {
			vp = c.validity(tt.service)
			validity[tt.service] = vp
		}
		t := byID[tt.id]
		base := schedule.VehicleJourneySpec{
			ID:         tt.id,
			Route:      tt.route,
			Validity:   vp,
			StopTimes:  tt.stopTimes,
			Wheelchair: int(t.WheelchairAccessible) == accessibilityTrue,
			Bike:       int(t.BikesAllowed) == accessibilityTrue,
			BlockID:    tt.block,
			Headsign:   t.Headsign,
		}

		rows := t.Frequencies
		if len(rows) == 0 {
			c.builder.AddVehicleJourney(base)
			c.feed.Sequences[tt.id] = tt.sequences
			continue
		}
		added := false
		for n, row := range rows {
			start, end := seconds(row.StartTime), seconds(row.EndTime)
			headway := seconds(row.Headway)
			if headway <= 0 || end <= start {
				continue
			}
			added = true
			id := tt.id
			if len(rows) > 1 {
				id = tt.id + ":f" + strconv.Itoa(n)
			}
			offsets := shift(tt.stopTimes, -tt.stopTimes[0].Departure)
			if row.ExactTimes == gtfs.ScheduleBased {
				for k, dep := 0, start; dep < end; k, dep = k+1, dep+headway {
					spec := base
					spec.ID = id + ":" + strconv.Itoa(k)
					spec.StopTimes = shift(offsets, dep)
					c.builder.AddVehicleJourney(spec)
					c.feed.Sequences[spec.ID] = tt.sequences
				}
				continue
			}
			spec := base
			spec.ID = id
			spec.StopTimes = offsets
			spec.Frequency = &frequency.Window{Start: start, End: end - 1, Headway: headway}
			c.builder.AddVehicleJourney(spec)
			c.feed.Sequences[spec.ID] = tt.sequences
		}
		if !added {
			c.feed.Skipped = append(c.feed.Skipped, tt.id)
		}
	}
}

func seconds(d time.Duration) int32 {
	return int32(d / time.Second)
}

func shift(sts []schedule.StopTimeSpec, by int32) []schedule.StopTimeSpec {
	out := make([]schedule.StopTimeSpec, len(sts))
	for i, st := range sts {
		st.Arrival += by
		st.Departure += by
		out[i] = st
	}
	return out
}

// blocks chains discrete trips sharing a block and a service when each one
// starts where and after the previous one ends.
func (c *converter) blocks(trips []tripTimes) {
	frequencyTrips := map[string]bool{}
	for _, t := range c.static.Trips {
		if len(t.Frequencies) > 0 {
			frequencyTrips[t.ID] = true
		}
	}
	groups := map[string][]tripTimes{}
	var keys []string
	for _, tt := range trips {
		if tt.block == "" || frequencyTrips[tt.id] {
			continue
		}
		key := tt.block + "\x00" + tt.service
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		groups[key] = append(groups[key], tt)
	}
	sort.Strings(keys)
	for _, key := range keys {
		group := groups[key]
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].stopTimes[0].Departure < group[j].stopTimes[0].Departure
		})
		for i := 1; i < len(group); i++ {
			prev, next := group[i-1], group[i]
			last := prev.stopTimes[len(prev.stopTimes)-1]
			first := next.stopTimes[0]
			if last.StopPoint == first.StopPoint && last.Arrival <= first.Departure {
				c.builder.LinkStayIn(prev.id, next.id)
			}
		}
	}
}

type stopPair struct{ from, to string }

// resolve expands a station ID to its stop points.
func (c *converter) resolve(id string) []string {
	if _, ok := c.points[id]; ok {
		return []string{id}
	}
	return c.children[id]
}

func (c *converter) walk(a, b schedule.StopPointSpec) int32 {
	return utils.WalkingSeconds(utils.Haversine(a.Lat, a.Lon, b.Lat, b.Lon), c.opts.WalkingSpeed)
}

type transferRule struct {
	from, to string
	kind     gtfs.TransferType
	minTime  int32
}

func (c *converter) transferRules() []transferRule {
	rules := make([]transferRule, 0, len(c.static.Transfers)+len(c.sameStop))
	for _, t := range c.static.Transfers {
		r := transferRule{from: t.From.Id, to: t.To.Id, kind: t.Type}
		if t.MinTransferTime != nil {
			r.minTime = *t.MinTransferTime
		}
		rules = append(rules, r)
	}
	for _, row := range c.sameStop {
		rules = append(rules, transferRule{
			from:    row.FromStopID,
			to:      row.ToStopID,
			kind:    gtfs.TransferType(row.TransferType),
			minTime: int32(row.MinTransferTime),
		})
	}
	return rules
}

func (c *converter) connections() {
	explicit := map[stopPair]bool{}
	for _, rule := range c.transferRules() {
		for _, from := range c.resolve(rule.from) {
			for _, to := range c.resolve(rule.to) {
				p := stopPair{from, to}
				explicit[p] = true
				switch rule.kind {
				case gtfs.TransferType_NotPossible:
					if from == to {
						c.builder.ForbidTransferAt(from)
					}
				case gtfs.TransferType_RequiresTime:
					c.builder.AddConnection(from, to, rule.minTime)
				default:
					d := c.opts.DefaultTransfer
					if from != to {
						d = max(d, c.walk(c.points[from], c.points[to]))
					}
					c.builder.AddConnection(from, to, d)
				}
			}
		}
	}

	// Stop points of the same area are always connected.
	for _, ids := range c.children {
		for _, a := range ids {
			for _, b := range ids {
				if a != b && !explicit[stopPair{a, b}] {
					c.builder.AddConnection(a, b, c.walk(c.points[a], c.points[b]))
				}
			}
		}
	}

	radius := c.opts.ProximityRadius
	if radius <= 0 {
		return
	}
	type cell struct{ x, y int }
	size := radius / metersPerDegreeLat
	grid := map[cell][]string{}
	ids := make([]string, 0, len(c.points))
	for id := range c.points {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	at := func(p schedule.StopPointSpec) cell {
		return cell{int(math.Floor(p.Lon / size)), int(math.Floor(p.Lat / size))}
	}
	for _, id := range ids {
		k := at(c.points[id])
		grid[k] = append(grid[k], id)
	}
	for _, id := range ids {
		a := c.points[id]
		// Longitude degrees shrink with latitude, widen the search to match.
		span := 1
		if cos := math.Cos(a.Lat * math.Pi / 180); cos > 0.01 {
			span = int(math.Ceil(1 / cos))
		}
		home := at(a)
		for dx := -span; dx <= span; dx++ {
			for dy := -1; dy <= 1; dy++ {
				for _, other := range grid[cell{home.x + dx, home.y + dy}] {
					if other == id || explicit[stopPair{id, other}] {
						continue
					}
					b := c.points[other]
					d := utils.Haversine(a.Lat, a.Lon, b.Lat, b.Lon)
					if d <= radius {
						c.builder.AddConnection(id, other, utils.WalkingSeconds(d, c.opts.WalkingSpeed))
					}
				}
			}
		}
	}
}
