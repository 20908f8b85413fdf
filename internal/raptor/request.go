// Package raptor answers journey queries over a schedule.Dataset with a
// round-based Pareto search on arrival time, number of transfers and
// departure time.
package raptor

import (
	"errors"
	"fmt"
	"sort"

	"planner.onebusaway.org/internal/calendar"
	"planner.onebusaway.org/internal/schedule"
)

const (
	// DefaultMaxTransfers is the transfer cap used by NewRequest.
	DefaultMaxTransfers = 10
	// DefaultWalkingTransferBudget is added to a direct walking path before
	// comparing it with public transport journeys.
	DefaultWalkingTransferBudget int32 = 120
)

var (
	ErrUnknownID      = errors.New("unknown object id")
	ErrNoDeparture    = errors.New("no usable departure stop point")
	ErrNoArrival      = errors.New("no usable arrival stop point")
	ErrInvalidRequest = errors.New("invalid request")
)

type Accessibility struct {
	Wheelchair bool
	Bike       bool
}

// Request describes one journey query. Departures and Arrivals map stop
// points to the time needed to reach them from the real origin or to leave
// them for the real destination.
type Request struct {
	Departures map[schedule.StopPointIdx]int32
	Arrivals   map[schedule.StopPointIdx]int32
	// DateTime is the earliest departure when Clockwise, the latest arrival
	// otherwise.
	DateTime      calendar.PackedDateTime
	Level         schedule.RTLevel
	Accessibility Accessibility
	// MaxTransfers bounds the number of vehicle changes. Negative values
	// select DefaultMaxTransfers.
	MaxTransfers int
	ForbiddenIDs []string
	AllowedIDs   []string
	Clockwise    bool
	// DirectPathDuration is the duration of walking the whole way, if known.
	DirectPathDuration *int32
	// WalkingTransferBudget is added to DirectPathDuration before discarding
	// slower journeys. Zero selects DefaultWalkingTransferBudget.
	WalkingTransferBudget int32
	// MaxDuration bounds the journey duration measured from DateTime. Zero
	// means unbounded.
	MaxDuration int32
	// MaxRounds stops the search early when positive; results are then
	// flagged as truncated.
	MaxRounds int
}

// NewRequest returns a clockwise request with default limits.
func NewRequest(departures, arrivals map[schedule.StopPointIdx]int32, dt calendar.PackedDateTime) Request {
	return Request{
		Departures:   departures,
		Arrivals:     arrivals,
		DateTime:     dt,
		MaxTransfers: DefaultMaxTransfers,
		Clockwise:    true,
	}
}

func (r *Request) maxTransfers() int {
	if r.MaxTransfers < 0 {
		return DefaultMaxTransfers
	}
	return r.MaxTransfers
}

func (r *Request) walkingBudget() int32 {
	if r.WalkingTransferBudget <= 0 {
		return DefaultWalkingTransferBudget
	}
	return r.WalkingTransferBudget
}

func (r *Request) validate(ds *schedule.Dataset) error {
	if r.Level >= schedule.NumLevels {
		return fmt.Errorf("%w: realtime level %d", ErrInvalidRequest, r.Level)
	}
	if r.MaxDuration < 0 {
		return fmt.Errorf("%w: negative max duration", ErrInvalidRequest)
	}
	if r.DirectPathDuration != nil && *r.DirectPathDuration < 0 {
		return fmt.Errorf("%w: negative direct path duration", ErrInvalidRequest)
	}
	check := func(points map[schedule.StopPointIdx]int32) error {
		for sp, access := range points {
			if int(sp) >= len(ds.StopPoints) {
				return fmt.Errorf("%w: stop point index %d", ErrUnknownID, sp)
			}
			if access < 0 {
				return fmt.Errorf("%w: negative access duration at %s", ErrInvalidRequest, ds.StopPoints[sp].ID)
			}
		}
		return nil
	}
	if len(r.Departures) == 0 {
		return ErrNoDeparture
	}
	if len(r.Arrivals) == 0 {
		return ErrNoArrival
	}
	if err := check(r.Departures); err != nil {
		return err
	}
	return check(r.Arrivals)
}

// endpoint is one stop point of a seed or target set.
type endpoint struct {
	stop   schedule.StopPointIdx
	access int32
}

// usableEndpoints drops stop points the filter excludes and orders the rest
// by index so that searches are deterministic.
func usableEndpoints(points map[schedule.StopPointIdx]int32, f *filter) []endpoint {
	out := make([]endpoint, 0, len(points))
	for sp, access := range points {
		if f.stopForbidden(sp) {
			continue
		}
		out = append(out, endpoint{stop: sp, access: access})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].stop < out[j].stop })
	return out
}
