package raptor

import (
	"planner.onebusaway.org/internal/calendar"
	"planner.onebusaway.org/internal/schedule"
)

// direction is true for clockwise searches, which minimize arrival times.
// Counter-clockwise searches maximize departure times with the same code.
type direction bool

const (
	forward  direction = true
	backward direction = false
)

func (d direction) better(a, b calendar.DateTime) bool {
	if d {
		return a < b
	}
	return a > b
}

func (d direction) worst() calendar.DateTime {
	if d {
		return calendar.Inf
	}
	return calendar.MinusInf
}

// add moves t by secs in the direction of the search.
func (d direction) add(t calendar.DateTime, secs int32) calendar.DateTime {
	if d {
		return t.Add(secs)
	}
	return t.Add(-secs)
}

func (d direction) reverse() direction { return !d }

type trKind uint8

const (
	trSeed trKind = iota
	trSeedWalk
	trWalk
)

// trParent explains a transfer label: the stop walked from and how.
type trParent struct {
	from     schedule.StopPointIdx
	duration int32
	kind     trKind
}

// ride is a vehicle run between two stop times, possibly across a stay-in
// chain, stored in search order: board is where the search picked the
// vehicle up, reach where it left it.
type ride struct {
	boardVJ    schedule.VehicleJourneyIdx
	boardBase  calendar.DateTime
	boardOrder int
	reachVJ    schedule.VehicleJourneyIdx
	reachBase  calendar.DateTime
	reachOrder int
}

type ptParent struct {
	from schedule.StopPointIdx
	ride ride
}

type labelKind uint8

const (
	ptLabel labelKind = iota
	trLabel
)

// roundTarget is the best target reached in one round.
type roundTarget struct {
	at   calendar.DateTime
	stop schedule.StopPointIdx
	kind labelKind
}

// scratch holds every per-search mutable buffer. Instances are pooled by the
// Planner and fully reset before use.
type scratch struct {
	pt       [][]calendar.DateTime
	tr       [][]calendar.DateTime
	ptParent [][]ptParent
	trParent [][]trParent
	bestPT   []calendar.DateTime
	bestTr   []calendar.DateTime
	seedTime []calendar.DateTime
	targets  []roundTarget

	marked     []bool
	markedList []schedule.StopPointIdx
	ptMarked   []bool
	ptList     []schedule.StopPointIdx
	nextList   []schedule.StopPointIdx

	queue     []int
	queueList []schedule.JourneyPatternIdx
}

func (s *scratch) reset(d direction, rounds, stops, patterns int) {
	worst := d.worst()
	grow := func(rows [][]calendar.DateTime) [][]calendar.DateTime {
		if cap(rows) < rounds {
			rows = append(rows[:cap(rows)], make([][]calendar.DateTime, rounds-cap(rows))...)
		}
		rows = rows[:rounds]
		for i := range rows {
			rows[i] = fill(rows[i], stops, worst)
		}
		return rows
	}
	s.pt = grow(s.pt)
	s.tr = grow(s.tr)

	if cap(s.ptParent) < rounds {
		s.ptParent = append(s.ptParent[:cap(s.ptParent)], make([][]ptParent, rounds-cap(s.ptParent))...)
	}
	s.ptParent = s.ptParent[:rounds]
	if cap(s.trParent) < rounds {
		s.trParent = append(s.trParent[:cap(s.trParent)], make([][]trParent, rounds-cap(s.trParent))...)
	}
	s.trParent = s.trParent[:rounds]
	for i := 0; i < rounds; i++ {
		if cap(s.ptParent[i]) < stops {
			s.ptParent[i] = make([]ptParent, stops)
		}
		s.ptParent[i] = s.ptParent[i][:stops]
		if cap(s.trParent[i]) < stops {
			s.trParent[i] = make([]trParent, stops)
		}
		s.trParent[i] = s.trParent[i][:stops]
	}

	s.bestPT = fill(s.bestPT, stops, worst)
	s.bestTr = fill(s.bestTr, stops, worst)
	s.seedTime = fill(s.seedTime, stops, worst)

	if cap(s.targets) < rounds {
		s.targets = make([]roundTarget, rounds)
	}
	s.targets = s.targets[:rounds]
	for i := range s.targets {
		s.targets[i] = roundTarget{at: worst}
	}

	s.marked = clearBools(s.marked, stops)
	s.ptMarked = clearBools(s.ptMarked, stops)
	s.markedList = s.markedList[:0]
	s.ptList = s.ptList[:0]
	s.nextList = s.nextList[:0]

	if cap(s.queue) < patterns {
		s.queue = make([]int, patterns)
	}
	s.queue = s.queue[:patterns]
	for i := range s.queue {
		s.queue[i] = -1
	}
	s.queueList = s.queueList[:0]
}

func fill(xs []calendar.DateTime, n int, v calendar.DateTime) []calendar.DateTime {
	if cap(xs) < n {
		xs = make([]calendar.DateTime, n)
	}
	xs = xs[:n]
	for i := range xs {
		xs[i] = v
	}
	return xs
}

func clearBools(xs []bool, n int) []bool {
	if cap(xs) < n {
		return make([]bool, n)
	}
	xs = xs[:n]
	clear(xs)
	return xs
}
