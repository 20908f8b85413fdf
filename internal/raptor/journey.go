package raptor

import (
	"planner.onebusaway.org/internal/calendar"
	"planner.onebusaway.org/internal/schedule"
)

type SegmentType uint8

const (
	PublicTransport SegmentType = iota
	Walking
	Waiting
	Boarding
	Alighting
	StayIn
)

func (t SegmentType) String() string {
	switch t {
	case PublicTransport:
		return "public_transport"
	case Walking:
		return "walking"
	case Waiting:
		return "waiting"
	case Boarding:
		return "boarding"
	case Alighting:
		return "alighting"
	case StayIn:
		return "stay_in"
	}
	return "unknown"
}

// Segment is one typed part of a journey. StopTimes and VehicleJourney are
// only set on public transport segments.
type Segment struct {
	Type           SegmentType
	From, To       schedule.StopPointIdx
	Departure      calendar.DateTime
	Arrival        calendar.DateTime
	StopPoints     []schedule.StopPointIdx
	StopTimes      []schedule.StopTimeRef
	VehicleJourney schedule.VehicleJourneyIdx
	// OnDemand is set when a stop time of the segment needs booking.
	OnDemand bool
}

func (s Segment) Duration() int64 {
	return int64(s.Arrival - s.Departure)
}

// Journey is an itinerary. Departure and Arrival include the access and
// egress durations of the request.
type Journey struct {
	Departure calendar.DateTime
	Arrival   calendar.DateTime
	Transfers int
	Segments  []Segment
}

func (j *Journey) Duration() int64 {
	return int64(j.Arrival - j.Departure)
}

// dominates reports whether j is at least as good as o on arrival,
// transfers and departure.
func (j *Journey) dominates(o *Journey) bool {
	return j.Arrival <= o.Arrival && j.Transfers <= o.Transfers && j.Departure >= o.Departure
}

func (j *Journey) sameCriteria(o *Journey) bool {
	return j.Arrival == o.Arrival && j.Transfers == o.Transfers && j.Departure == o.Departure
}

// leg is an intermediate reconstruction step: either a walk or a vehicle ride
// in chronological terms.
type leg struct {
	walk     bool
	from, to schedule.StopPointIdx
	duration int32

	firstVJ    schedule.VehicleJourneyIdx
	firstBase  calendar.DateTime
	firstOrder int
	lastVJ     schedule.VehicleJourneyIdx
	lastBase   calendar.DateTime
	lastOrder  int
}

// reconstruct follows parents from the target reached in round k back to a
// seed and returns the journey in chronological order.
func (s *search) reconstruct(k int, req *Request) (Journey, bool) {
	sc := s.sc
	target := sc.targets[k]
	if target.at == s.dir.worst() {
		return Journey{}, false
	}

	var legs []leg
	kind, round, sp := target.kind, k, target.stop
	seed := sp
	for guard := 0; guard <= 2*(k+2); guard++ {
		if kind == ptLabel {
			p := sc.ptParent[round][sp]
			legs = append(legs, s.rideLeg(p))
			kind, sp = trLabel, p.from
			round--
			if round < 0 {
				return Journey{}, false
			}
			continue
		}
		p := sc.trParent[round][sp]
		if p.kind == trSeed {
			seed = sp
			break
		}
		legs = append(legs, s.walkLeg(p.from, sp, p.duration))
		if p.kind == trSeedWalk {
			seed = p.from
			break
		}
		kind, sp = ptLabel, p.from
	}
	if len(legs) == 0 {
		return Journey{}, false
	}

	origin, destination := seed, target.stop
	if s.dir == forward {
		for i, j := 0, len(legs)-1; i < j; i, j = i+1, j-1 {
			legs[i], legs[j] = legs[j], legs[i]
		}
	} else {
		origin, destination = target.stop, seed
	}
	return s.assemble(legs, origin, destination, req), true
}

func (s *search) rideLeg(p ptParent) leg {
	r := p.ride
	l := leg{
		from:       s.ds.VehicleJourneys[r.boardVJ].StopTimes[r.boardOrder].StopPoint,
		to:         s.ds.VehicleJourneys[r.reachVJ].StopTimes[r.reachOrder].StopPoint,
		firstVJ:    r.boardVJ,
		firstBase:  r.boardBase,
		firstOrder: r.boardOrder,
		lastVJ:     r.reachVJ,
		lastBase:   r.reachBase,
		lastOrder:  r.reachOrder,
	}
	if s.dir == backward {
		l.from, l.to = l.to, l.from
		l.firstVJ, l.lastVJ = l.lastVJ, l.firstVJ
		l.firstBase, l.lastBase = l.lastBase, l.firstBase
		l.firstOrder, l.lastOrder = l.lastOrder, l.firstOrder
	}
	return l
}

// walkLeg turns a transfer from the search's point of view into a
// chronological walk.
func (s *search) walkLeg(searchFrom, searchTo schedule.StopPointIdx, duration int32) leg {
	if s.dir == forward {
		return leg{walk: true, from: searchFrom, to: searchTo, duration: duration}
	}
	return leg{walk: true, from: searchTo, to: searchFrom, duration: duration}
}

// assemble expands chronological legs into segments. A walk starts as soon
// as the previous ride ends; a leading walk ends when the first ride starts.
func (s *search) assemble(legs []leg, origin, destination schedule.StopPointIdx, req *Request) Journey {
	var (
		segments []Segment
		rides    int
	)
	last := calendar.MinusInf
	for i, l := range legs {
		if l.walk {
			dep := last
			if dep == calendar.MinusInf {
				dep = s.nextRideStart(legs[i+1:]).Add(-l.duration)
			}
			arr := dep.Add(l.duration)
			segments = append(segments, Segment{
				Type:           Walking,
				From:           l.from,
				To:             l.to,
				Departure:      dep,
				Arrival:        arr,
				StopPoints:     []schedule.StopPointIdx{l.from, l.to},
				VehicleJourney: schedule.NoVehicleJourney,
			})
			last = arr
			continue
		}
		rides++
		segments = s.appendRide(segments, l, last)
		last = segments[len(segments)-1].Arrival
	}

	j := Journey{Segments: segments, Transfers: rides - 1}
	if len(segments) > 0 {
		j.Departure = segments[0].Departure.Add(-req.Departures[origin])
		j.Arrival = segments[len(segments)-1].Arrival.Add(req.Arrivals[destination])
	}
	return j
}

// nextRideStart is when the traveller must be at the stop for the first ride
// in legs.
func (s *search) nextRideStart(legs []leg) calendar.DateTime {
	var walked int32
	for _, l := range legs {
		if l.walk {
			walked += l.duration
			continue
		}
		st := s.ds.VehicleJourneys[l.firstVJ].StopTimes[l.firstOrder]
		return l.firstBase.Add(st.BoardTime()).Add(-walked)
	}
	return calendar.MinusInf
}

func (s *search) appendRide(segments []Segment, l leg, ready calendar.DateTime) []Segment {
	ds := s.ds
	first := &ds.VehicleJourneys[l.firstVJ]
	boardAt := first.StopTimes[l.firstOrder]
	boardStop := boardAt.StopPoint

	if first.Kind == schedule.Frequency && ready != calendar.MinusInf {
		if start := l.firstBase.Add(boardAt.BoardTime()); ready < start {
			segments = append(segments, waitSegment(boardStop, ready, start))
		}
	}
	if boardAt.BoardingDuration > 0 {
		dep := l.firstBase.Add(boardAt.BoardTime())
		segments = append(segments, Segment{
			Type: Boarding, From: boardStop, To: boardStop,
			Departure: dep, Arrival: dep.Add(boardAt.BoardingDuration),
			StopPoints:     []schedule.StopPointIdx{boardStop},
			VehicleJourney: schedule.NoVehicleJourney,
		})
	}

	vj, base, order := l.firstVJ, l.firstBase, l.firstOrder
	for steps := 0; steps <= len(ds.VehicleJourneys); steps++ {
		j := &ds.VehicleJourneys[vj]
		end := len(j.StopTimes) - 1
		done := vj == l.lastVJ && base == l.lastBase
		if done {
			end = l.lastOrder
		}
		segments = append(segments, rideSegment(j, base, order, end))
		if done {
			break
		}
		next, nextBase, ok := ds.StayInSuccessor(vj, base)
		if !ok {
			break
		}
		arrived := base.Add(j.StopTimes[end].Arrival)
		terminal := j.StopTimes[end].StopPoint
		segments = append(segments, Segment{
			Type: StayIn, From: terminal, To: terminal,
			Departure: arrived, Arrival: arrived,
			StopPoints:     []schedule.StopPointIdx{terminal},
			VehicleJourney: schedule.NoVehicleJourney,
		})
		if resume := nextBase.Add(ds.VehicleJourneys[next].StopTimes[0].Departure); arrived < resume {
			segments = append(segments, waitSegment(terminal, arrived, resume))
		}
		vj, base, order = next, nextBase, 0
	}

	alightAt := ds.VehicleJourneys[l.lastVJ].StopTimes[l.lastOrder]
	if alightAt.AlightingDuration > 0 {
		arr := l.lastBase.Add(alightAt.Arrival)
		segments = append(segments, Segment{
			Type: Alighting, From: alightAt.StopPoint, To: alightAt.StopPoint,
			Departure: arr, Arrival: arr.Add(alightAt.AlightingDuration),
			StopPoints:     []schedule.StopPointIdx{alightAt.StopPoint},
			VehicleJourney: schedule.NoVehicleJourney,
		})
	}
	return segments
}

func rideSegment(vj *schedule.VehicleJourney, base calendar.DateTime, from, to int) Segment {
	seg := Segment{
		Type:           PublicTransport,
		From:           vj.StopTimes[from].StopPoint,
		To:             vj.StopTimes[to].StopPoint,
		Departure:      base.Add(vj.StopTimes[from].Departure),
		Arrival:        base.Add(vj.StopTimes[to].Arrival),
		VehicleJourney: vj.Idx,
	}
	for i := from; i <= to; i++ {
		st := vj.StopTimes[i]
		seg.StopPoints = append(seg.StopPoints, st.StopPoint)
		seg.StopTimes = append(seg.StopTimes, schedule.StopTimeRef{VehicleJourney: vj.Idx, Order: i})
		if st.ODT {
			seg.OnDemand = true
		}
	}
	return seg
}

func waitSegment(sp schedule.StopPointIdx, from, to calendar.DateTime) Segment {
	return Segment{
		Type: Waiting, From: sp, To: sp,
		Departure: from, Arrival: to,
		StopPoints:     []schedule.StopPointIdx{sp},
		VehicleJourney: schedule.NoVehicleJourney,
	}
}
