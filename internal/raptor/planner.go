package raptor

import (
	"context"
	"sort"
	"sync"

	"planner.onebusaway.org/internal/calendar"
	"planner.onebusaway.org/internal/schedule"
)

// Planner runs searches against one dataset generation. It is safe for
// concurrent use; each search borrows its own scratch buffers.
type Planner struct {
	ds   *schedule.Dataset
	pool sync.Pool
}

// Result holds the Pareto set of journeys. Truncated is set when the search
// stopped early because of the context or the round budget.
type Result struct {
	Journeys  []Journey
	Truncated bool
	// Rounds is the number of rounds run by the main pass.
	Rounds int
}

func NewPlanner(ds *schedule.Dataset) *Planner {
	return &Planner{
		ds: ds,
		pool: sync.Pool{
			New: func() any { return &scratch{} },
		},
	}
}

func (p *Planner) Dataset() *schedule.Dataset {
	return p.ds
}

// Compute answers req. Infeasible requests yield an empty result, not an
// error; errors are reserved for malformed input.
func (p *Planner) Compute(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(p.ds); err != nil {
		return nil, err
	}
	f, err := newFilter(p.ds, &req)
	if err != nil {
		return nil, err
	}
	departures := usableEndpoints(req.Departures, f)
	if len(departures) == 0 {
		return nil, ErrNoDeparture
	}
	arrivals := usableEndpoints(req.Arrivals, f)
	if len(arrivals) == 0 {
		return nil, ErrNoArrival
	}

	sc := p.pool.Get().(*scratch)
	defer p.pool.Put(sc)

	ref := req.DateTime.DateTime()
	dir := direction(req.Clockwise)
	seeds, targets := departures, arrivals
	if dir == backward {
		seeds, targets = arrivals, departures
	}

	main := &search{
		ds:         p.ds,
		sc:         sc,
		dir:        dir,
		level:      req.Level,
		filter:     f,
		seeds:      seeds,
		targets:    accessMap(targets),
		ref:        ref,
		rounds:     req.maxTransfers() + 1,
		budget:     req.MaxRounds,
		bestTarget: bound(dir, ref, req.MaxDuration),
	}
	main.run(ctx)

	result := &Result{Truncated: main.truncated, Rounds: main.roundsRun}
	type candidate struct {
		round   int
		at      calendar.DateTime
		journey Journey
	}
	var candidates []candidate
	for k := 1; k <= main.roundsRun; k++ {
		if j, ok := main.reconstruct(k, &req); ok {
			candidates = append(candidates, candidate{round: k, at: sc.targets[k].at, journey: j})
		}
	}

	// Each candidate is left-aligned by searching back from where it ends
	// with the same number of rounds, bounded by the original datetime.
	for i := range candidates {
		if ctx.Err() != nil {
			result.Truncated = true
			break
		}
		c := &candidates[i]
		second := &search{
			ds:         p.ds,
			sc:         sc,
			dir:        dir.reverse(),
			level:      req.Level,
			filter:     f,
			seeds:      targets,
			targets:    accessMap(seeds),
			ref:        c.at,
			rounds:     c.round,
			bestTarget: boundAt(dir.reverse(), ref),
		}
		second.run(ctx)
		if second.truncated {
			result.Truncated = true
			continue
		}
		if j, ok := second.best(&req); ok && j.Transfers <= c.journey.Transfers && !dir.better(c.journey.endpoint(dir), j.endpoint(dir)) {
			c.journey = j
		}
	}

	journeys := make([]Journey, 0, len(candidates))
	for _, c := range candidates {
		journeys = append(journeys, c.journey)
	}
	journeys = paretoFilter(journeys)
	journeys = directPathFilter(journeys, &req, ref)
	sortJourneys(journeys, dir)
	result.Journeys = journeys
	return result, nil
}

// best reconstructs the most aligned journey of a second pass: the one
// reached in the latest round, which has the best target.
func (s *search) best(req *Request) (Journey, bool) {
	for k := s.roundsRun; k >= 1; k-- {
		if j, ok := s.reconstruct(k, req); ok {
			return j, true
		}
	}
	return Journey{}, false
}

// endpoint is the criterion a search in direction d optimizes.
func (j *Journey) endpoint(d direction) calendar.DateTime {
	if d == forward {
		return j.Arrival
	}
	return j.Departure
}

func accessMap(endpoints []endpoint) map[schedule.StopPointIdx]int32 {
	m := make(map[schedule.StopPointIdx]int32, len(endpoints))
	for _, e := range endpoints {
		m[e.stop] = e.access
	}
	return m
}

// bound returns the initial target label: labels must be strictly better to
// be kept.
func bound(d direction, ref calendar.DateTime, maxDuration int32) calendar.DateTime {
	if maxDuration <= 0 {
		return d.worst()
	}
	return boundAt(d, d.add(ref, maxDuration))
}

// boundAt admits targets equal to limit.
func boundAt(d direction, limit calendar.DateTime) calendar.DateTime {
	return d.add(limit, 1)
}

// paretoFilter drops duplicates and journeys dominated by another one.
func paretoFilter(journeys []Journey) []Journey {
	kept := journeys[:0:0]
	for i := range journeys {
		j := &journeys[i]
		dominated := false
		for o := range journeys {
			if o == i {
				continue
			}
			other := &journeys[o]
			if other.sameCriteria(j) {
				if o < i {
					dominated = true
					break
				}
				continue
			}
			if other.dominates(j) {
				dominated = true
				break
			}
		}
		if !dominated {
			kept = append(kept, *j)
		}
	}
	return kept
}

// directPathFilter discards public transport journeys no faster than
// walking the whole way plus one transfer's worth of walking.
func directPathFilter(journeys []Journey, req *Request, ref calendar.DateTime) []Journey {
	if req.DirectPathDuration == nil {
		return journeys
	}
	limit := int64(*req.DirectPathDuration) + int64(req.walkingBudget())
	kept := journeys[:0]
	for _, j := range journeys {
		var duration int64
		if req.Clockwise {
			duration = int64(j.Arrival - ref)
		} else {
			duration = int64(ref - j.Departure)
		}
		if limit <= duration {
			continue
		}
		kept = append(kept, j)
	}
	return kept
}

func sortJourneys(journeys []Journey, d direction) {
	sort.SliceStable(journeys, func(a, b int) bool {
		x, y := &journeys[a], &journeys[b]
		if d == forward {
			if x.Arrival != y.Arrival {
				return x.Arrival < y.Arrival
			}
		} else if x.Departure != y.Departure {
			return x.Departure > y.Departure
		}
		if x.Transfers != y.Transfers {
			return x.Transfers < y.Transfers
		}
		if d == forward {
			return x.Departure > y.Departure
		}
		return x.Arrival < y.Arrival
	})
}
