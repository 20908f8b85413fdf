package raptor

import (
	"context"
	"slices"

	"planner.onebusaway.org/internal/calendar"
	"planner.onebusaway.org/internal/frequency"
	"planner.onebusaway.org/internal/schedule"
)

// search is one pass of the round-based propagation. A clockwise pass starts
// from the departure points at ref and minimizes arrival; a counter-clockwise
// pass starts from the arrival points and maximizes departure.
type search struct {
	ds     *schedule.Dataset
	sc     *scratch
	dir    direction
	level  schedule.RTLevel
	filter *filter

	seeds   []endpoint
	targets map[schedule.StopPointIdx]int32
	ref     calendar.DateTime
	// rounds is the number of boardings allowed.
	rounds int
	// budget stops the search early when positive.
	budget int
	// bestTarget starts at the bound imposed by the caller and tightens with
	// every target reached.
	bestTarget calendar.DateTime

	roundsRun int
	truncated bool
}

// boarded is the vehicle currently ridden while scanning a pattern.
type boarded struct {
	ok    bool
	vj    schedule.VehicleJourneyIdx
	base  calendar.DateTime
	order int
	stop  schedule.StopPointIdx
	zone  uint16
}

func (s *search) run(ctx context.Context) {
	s.sc.reset(s.dir, s.rounds+1, len(s.ds.StopPoints), len(s.ds.JourneyPatterns))
	s.initialize()

	for k := 1; k <= s.rounds && len(s.sc.markedList) > 0; k++ {
		if ctx.Err() != nil || (s.budget > 0 && k > s.budget) {
			s.truncated = true
			return
		}
		s.queuePatterns()
		s.scanRound(k)
		s.transfer(k)
		s.roundsRun = k
	}
}

// initialize sets round 0: seed labels at ref shifted by their access time,
// then one walking hop from each seed.
func (s *search) initialize() {
	sc := s.sc
	for _, e := range s.seeds {
		t := s.dir.add(s.ref, e.access)
		sc.seedTime[e.stop] = t
		if s.dir.better(t, sc.tr[0][e.stop]) {
			sc.tr[0][e.stop] = t
			sc.bestTr[e.stop] = t
			sc.trParent[0][e.stop] = trParent{from: e.stop, kind: trSeed}
			s.mark(e.stop)
		}
	}
	for _, e := range s.seeds {
		for _, link := range s.links(e.stop) {
			if link.Stop == e.stop {
				continue
			}
			t := s.dir.add(sc.seedTime[e.stop], link.Duration)
			if !s.dir.better(t, sc.bestTr[link.Stop]) {
				continue
			}
			sc.tr[0][link.Stop] = t
			sc.bestTr[link.Stop] = t
			sc.trParent[0][link.Stop] = trParent{from: e.stop, duration: link.Duration, kind: trSeedWalk}
			s.mark(link.Stop)
		}
	}
	sc.markedList = sortedStops(sc.markedList)
}

func (s *search) links(sp schedule.StopPointIdx) []schedule.Link {
	if s.dir == forward {
		return s.ds.ConnectionsFrom(sp)
	}
	return s.ds.ConnectionsTo(sp)
}

func (s *search) mark(sp schedule.StopPointIdx) {
	if !s.sc.marked[sp] {
		s.sc.marked[sp] = true
		s.sc.markedList = append(s.sc.markedList, sp)
	}
}

// queuePatterns records, for every pattern serving a marked stop, the first
// position to scan from.
func (s *search) queuePatterns() {
	sc := s.sc
	for _, sp := range sc.markedList {
		sc.marked[sp] = false
		for _, jppIdx := range s.ds.PatternsAt(sp) {
			jpp := &s.ds.JourneyPatternPoints[jppIdx]
			cur := sc.queue[jpp.Pattern]
			switch {
			case cur < 0:
				sc.queue[jpp.Pattern] = jpp.Order
				sc.queueList = append(sc.queueList, jpp.Pattern)
			case s.dir == forward && jpp.Order < cur, s.dir == backward && jpp.Order > cur:
				sc.queue[jpp.Pattern] = jpp.Order
			}
		}
	}
	sc.markedList = sc.markedList[:0]
	slices.Sort(sc.queueList)
}

func (s *search) scanRound(k int) {
	sc := s.sc
	for _, jpIdx := range sc.queueList {
		start := sc.queue[jpIdx]
		sc.queue[jpIdx] = -1
		s.scanPattern(k, &s.ds.JourneyPatterns[jpIdx], start)
	}
	sc.queueList = sc.queueList[:0]
}

func (s *search) scanPattern(k int, jp *schedule.JourneyPattern, start int) {
	sc := s.sc
	var cur boarded
	step := 1
	if s.dir == backward {
		step = -1
	}
	for i := start; i >= 0 && i < len(jp.Points); i += step {
		jpp := jp.Points[i]
		sp := s.ds.JourneyPatternPoints[jpp].StopPoint

		if cur.ok {
			s.reach(k, cur, cur.vj, cur.base, i)
		}

		label := sc.tr[k-1][sp]
		if label == s.dir.worst() || !s.filter.stopUsable(sp) {
			continue
		}
		vj, base, ok := s.bestTrip(jp, i, jpp, label)
		if !ok {
			continue
		}
		if cur.ok && !s.dir.better(s.boardInstant(vj, base, i), s.boardInstant(cur.vj, cur.base, i)) {
			continue
		}
		cur = boarded{
			ok:    true,
			vj:    vj,
			base:  base,
			order: i,
			stop:  sp,
			zone:  s.ds.VehicleJourneys[vj].StopTimes[i].LocalTrafficZone,
		}
	}
	if cur.ok {
		s.stayIn(k, cur)
	}
}

// boardInstant is the search-side instant at which the traveller meets vj at
// position i: the boarding time when clockwise, the alighting time otherwise.
func (s *search) boardInstant(vj schedule.VehicleJourneyIdx, base calendar.DateTime, i int) calendar.DateTime {
	st := &s.ds.VehicleJourneys[vj].StopTimes[i]
	if s.dir == forward {
		return base.Add(st.BoardTime())
	}
	return base.Add(st.AlightTime())
}

// reachInstant is the other end of a ride: when the traveller is free after
// alighting when clockwise, when they must be at the stop otherwise.
func (s *search) reachInstant(vj schedule.VehicleJourneyIdx, base calendar.DateTime, i int) calendar.DateTime {
	st := &s.ds.VehicleJourneys[vj].StopTimes[i]
	if s.dir == forward {
		return base.Add(st.AlightTime())
	}
	return base.Add(st.BoardTime())
}

// reach offers the stop at position i of vj to the round-k labels.
func (s *search) reach(k int, cur boarded, vj schedule.VehicleJourneyIdx, base calendar.DateTime, i int) {
	sc := s.sc
	st := &s.ds.VehicleJourneys[vj].StopTimes[i]
	if s.dir == forward && !st.DropOff || s.dir == backward && !st.Pickup {
		return
	}
	if cur.zone != 0 && st.LocalTrafficZone == cur.zone {
		return
	}
	sp := st.StopPoint
	if !s.filter.stopUsable(sp) {
		return
	}
	t := s.reachInstant(vj, base, i)
	if !s.dir.better(t, sc.bestPT[sp]) || !s.dir.better(t, s.bestTarget) {
		return
	}
	sc.pt[k][sp] = t
	sc.bestPT[sp] = t
	sc.ptParent[k][sp] = ptParent{
		from: cur.stop,
		ride: ride{
			boardVJ:    cur.vj,
			boardBase:  cur.base,
			boardOrder: cur.order,
			reachVJ:    vj,
			reachBase:  base,
			reachOrder: i,
		},
	}
	if !sc.ptMarked[sp] {
		sc.ptMarked[sp] = true
		sc.ptList = append(sc.ptList, sp)
	}
	if egress, ok := s.targets[sp]; ok {
		s.offerTarget(k, sp, s.dir.add(t, egress), ptLabel)
	}
}

func (s *search) offerTarget(k int, sp schedule.StopPointIdx, at calendar.DateTime, kind labelKind) {
	if !s.dir.better(at, s.bestTarget) {
		return
	}
	s.bestTarget = at
	s.sc.targets[k] = roundTarget{at: at, stop: sp, kind: kind}
}

// stayIn keeps riding the vehicle across its block once the pattern ends.
func (s *search) stayIn(k int, cur boarded) {
	vj, base := cur.vj, cur.base
	for steps := 0; steps < len(s.ds.VehicleJourneys); steps++ {
		var ok bool
		if s.dir == forward {
			vj, base, ok = s.ds.StayInSuccessor(vj, base)
		} else {
			vj, base, ok = s.ds.StayInPredecessor(vj, base)
		}
		if !ok || !s.runs(vj, base.Date()) {
			return
		}
		n := len(s.ds.VehicleJourneys[vj].StopTimes)
		if s.dir == forward {
			for i := 0; i < n; i++ {
				s.reach(k, cur, vj, base, i)
			}
		} else {
			for i := n - 1; i >= 0; i-- {
				s.reach(k, cur, vj, base, i)
			}
		}
	}
}

// runs reports whether vj may be used on reference day day.
func (s *search) runs(vj schedule.VehicleJourneyIdx, day int) bool {
	return s.ds.IsActive(vj, s.level, day) && s.filter.journeyUsable(vj)
}

// bestTrip finds the vehicle to catch at position i of jp given the label at
// its stop: the earliest boardable when clockwise, the latest one can leave
// in time otherwise.
func (s *search) bestTrip(jp *schedule.JourneyPattern, i int, jpp schedule.JourneyPatternPointIdx, label calendar.DateTime) (schedule.VehicleJourneyIdx, calendar.DateTime, bool) {
	bestVJ, bestBase, found := schedule.NoVehicleJourney, calendar.DateTime(0), false
	bestAt := s.dir.worst()

	if vj, base, ok := s.discreteTrip(jpp, label); ok {
		bestVJ, bestBase, found = vj, base, true
		bestAt = s.boardInstant(vj, base, i)
	}

	for _, vj := range jp.Frequency {
		if !s.filter.journeyUsable(vj) {
			continue
		}
		st := &s.ds.VehicleJourneys[vj].StopTimes[i]
		valid := func(day int) bool { return s.ds.IsActive(vj, s.level, day) }
		var (
			at     calendar.DateTime
			ok     bool
			offset int32
		)
		window := s.ds.VehicleJourneys[vj].Window
		if s.dir == forward {
			if !st.Pickup {
				continue
			}
			offset = st.BoardTime()
			at, ok = frequency.Next(label, window, offset, valid)
		} else {
			if !st.DropOff {
				continue
			}
			offset = st.AlightTime()
			at, ok = frequency.Previous(label, window, offset, valid)
		}
		if ok && s.dir.better(at, bestAt) {
			bestVJ, bestBase, bestAt, found = vj, at.Add(-offset), at, true
		}
	}
	return bestVJ, bestBase, found
}

// discreteTrip walks the sorted time index of jpp on the label's day, then on
// the following day (preceding day when counter-clockwise).
func (s *search) discreteTrip(jpp schedule.JourneyPatternPointIdx, label calendar.DateTime) (schedule.VehicleJourneyIdx, calendar.DateTime, bool) {
	day, hour := label.Date(), label.Hour()
	if s.dir == forward {
		entries := s.ds.Departures(jpp)
		first, _ := slices.BinarySearchFunc(entries, hour, func(e schedule.TimeEntry, h int32) int {
			return cmpInt32(e.Key, h)
		})
		for _, pass := range [...]struct{ day, from int }{{day, first}, {day + 1, 0}} {
			for _, e := range entries[pass.from:] {
				refDay := pass.day - int(e.Shift)
				if s.runs(e.VehicleJourney, refDay) {
					return e.VehicleJourney, calendar.NewDateTime(refDay, 0), true
				}
			}
		}
		return schedule.NoVehicleJourney, 0, false
	}

	entries := s.ds.Arrivals(jpp)
	last, _ := slices.BinarySearchFunc(entries, hour+1, func(e schedule.TimeEntry, h int32) int {
		return cmpInt32(e.Key, h)
	})
	for _, pass := range [...]struct{ day, to int }{{day, last}, {day - 1, len(entries)}} {
		for j := pass.to - 1; j >= 0; j-- {
			e := entries[j]
			refDay := pass.day - int(e.Shift)
			if s.runs(e.VehicleJourney, refDay) {
				return e.VehicleJourney, calendar.NewDateTime(refDay, 0), true
			}
		}
	}
	return schedule.NoVehicleJourney, 0, false
}

// transfer applies walking connections from every stop improved by vehicles
// in round k, including the same-stop connection.
func (s *search) transfer(k int) {
	sc := s.sc
	sc.ptList = sortedStops(sc.ptList)
	for _, sp := range sc.ptList {
		sc.ptMarked[sp] = false
		from := sc.pt[k][sp]
		for _, link := range s.links(sp) {
			t := s.dir.add(from, link.Duration)
			if !s.dir.better(t, sc.bestTr[link.Stop]) || !s.dir.better(t, s.bestTarget) {
				continue
			}
			sc.tr[k][link.Stop] = t
			sc.bestTr[link.Stop] = t
			sc.trParent[k][link.Stop] = trParent{from: sp, duration: link.Duration, kind: trWalk}
			s.mark(link.Stop)
			if link.Stop == sp {
				continue
			}
			if egress, ok := s.targets[link.Stop]; ok {
				s.offerTarget(k, link.Stop, s.dir.add(t, egress), trLabel)
			}
		}
	}
	sc.ptList = sc.ptList[:0]
	sc.markedList = sortedStops(sc.markedList)
}

func sortedStops(stops []schedule.StopPointIdx) []schedule.StopPointIdx {
	slices.Sort(stops)
	return stops
}

func cmpInt32(a, b int32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
