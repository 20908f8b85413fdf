// Package disruption derives the Adapted and RealTime views of a dataset from
// live trip events. The base timetable is never modified: Apply builds a new
// generation.
package disruption

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jinzhu/copier"

	"planner.onebusaway.org/internal/calendar"
	"planner.onebusaway.org/internal/schedule"
)

type Kind uint8

const (
	TripCancelled Kind = iota
	TripDelayed
	TripAdded
)

func (k Kind) String() string {
	switch k {
	case TripCancelled:
		return "trip_cancelled"
	case TripDelayed:
		return "trip_delayed"
	case TripAdded:
		return "trip_added"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

var (
	ErrUnknownTrip   = errors.New("unknown vehicle journey")
	ErrInvalidDay    = errors.New("service day outside the dataset")
	ErrInvalidLevel  = errors.New("disruptions apply to adapted or realtime levels only")
	ErrEmptyTrip     = errors.New("added trip has no stop times")
	ErrDuplicateTrip = errors.New("vehicle journey id already in use")
)

// StopTimeUpdate shifts the stop at Order. A delay holds for every
// following stop until another update replaces it.
type StopTimeUpdate struct {
	Order          int
	ArrivalDelay   int32
	DepartureDelay int32
}

// Disruption is one event on one service day. Level is the lowest level it
// applies to; higher levels see it as well.
type Disruption struct {
	Kind           Kind
	VehicleJourney string
	Day            int
	Level          schedule.RTLevel
	Updates        []StopTimeUpdate
	// Added describes the new trip for TripAdded.
	Added *schedule.VehicleJourneySpec
}

// RealtimeID names the journey that replaces vj on day when it runs late.
func RealtimeID(vj string, day int) string {
	return fmt.Sprintf("%s:RealTime:%d", vj, day)
}

// Apply returns a dataset in which every disruption is visible at its levels.
// Disruptions that cannot be applied are reported together and skipped.
func Apply(base *schedule.Dataset, items []Disruption) (*schedule.Dataset, error) {
	b := schedule.NewBuilderFrom(base)
	specs := map[string]*schedule.VehicleJourneySpec{}
	for i := range b.VehicleJourneySpecs() {
		s := &b.VehicleJourneySpecs()[i]
		specs[s.ID] = s
	}

	var (
		errs  []error
		order []string
	)
	added := map[string]schedule.VehicleJourneySpec{}
	addTrip := func(trip schedule.VehicleJourneySpec) {
		if _, seen := added[trip.ID]; !seen {
			order = append(order, trip.ID)
		}
		added[trip.ID] = trip
	}
	for _, d := range items {
		if err := check(base, d); err != nil {
			errs = append(errs, err)
			continue
		}
		switch d.Kind {
		case TripCancelled:
			s, ok := specs[d.VehicleJourney]
			if !ok {
				errs = append(errs, fmt.Errorf("%s %s: %w", d.Kind, d.VehicleJourney, ErrUnknownTrip))
				continue
			}
			for level := d.Level; level < schedule.NumLevels; level++ {
				if err := removeDay(s, level, d.Day); err != nil {
					errs = append(errs, err)
				}
			}
		case TripDelayed:
			s, ok := specs[d.VehicleJourney]
			if !ok {
				errs = append(errs, fmt.Errorf("%s %s: %w", d.Kind, d.VehicleJourney, ErrUnknownTrip))
				continue
			}
			late, err := delayed(s, d, base.Days)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if err := removeDay(s, schedule.RealTime, d.Day); err != nil {
				errs = append(errs, err)
				continue
			}
			addTrip(late)
		case TripAdded:
			if d.Added == nil || len(d.Added.StopTimes) == 0 {
				errs = append(errs, fmt.Errorf("%s %s: %w", d.Kind, d.VehicleJourney, ErrEmptyTrip))
				continue
			}
			var trip schedule.VehicleJourneySpec
			if err := copier.CopyWithOption(&trip, d.Added, copier.Option{DeepCopy: true}); err != nil {
				errs = append(errs, fmt.Errorf("copy added trip %s: %w", d.VehicleJourney, err))
				continue
			}
			if trip.ID == "" {
				trip.ID = d.VehicleJourney
			}
			trip.Realtime = true
			onlyAt(&trip, d.Level, d.Day, base.Days)
			addTrip(trip)
		}
	}

	for _, id := range order {
		trip := added[id]
		if _, exists := base.VehicleJourneyByID(id); exists {
			errs = append(errs, fmt.Errorf("%s: %w", id, ErrDuplicateTrip))
			continue
		}
		if err := base.ValidateJourney(trip); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
			continue
		}
		b.AddVehicleJourney(trip)
	}
	ds, err := b.Build()
	if err != nil {
		return nil, errors.Join(append(errs, err)...)
	}
	return ds, errors.Join(errs...)
}

func check(base *schedule.Dataset, d Disruption) error {
	if d.Day < 0 || d.Day >= base.Days {
		return fmt.Errorf("%s %s day %d: %w", d.Kind, d.VehicleJourney, d.Day, ErrInvalidDay)
	}
	if d.Level == schedule.Base || d.Level >= schedule.NumLevels {
		return fmt.Errorf("%s %s: %w", d.Kind, d.VehicleJourney, ErrInvalidLevel)
	}
	return nil
}

// removeDay turns day off at level, materializing the level pattern from the
// base one when the journey had no override yet.
func removeDay(s *schedule.VehicleJourneySpec, level schedule.RTLevel, day int) error {
	if s.LevelValidity == nil {
		s.LevelValidity = map[schedule.RTLevel]*calendar.ValidityPattern{}
	}
	vp, ok := s.LevelValidity[level]
	if !ok || vp == nil {
		vp = s.Validity.Clone()
		s.LevelValidity[level] = vp
	}
	return vp.Remove(day)
}

// onlyAt makes trip run on day at level and above, and nowhere else.
func onlyAt(trip *schedule.VehicleJourneySpec, level schedule.RTLevel, day, days int) {
	trip.Validity = calendar.NewValidityPattern(days)
	trip.LevelValidity = map[schedule.RTLevel]*calendar.ValidityPattern{}
	for l := schedule.Adapted; l < schedule.NumLevels; l++ {
		vp := calendar.NewValidityPattern(days)
		if l >= level {
			_ = vp.Add(day)
		}
		trip.LevelValidity[l] = vp
	}
}

// delayed builds the realtime copy of s for one day with updates applied.
func delayed(s *schedule.VehicleJourneySpec, d Disruption, days int) (schedule.VehicleJourneySpec, error) {
	var late schedule.VehicleJourneySpec
	if err := copier.CopyWithOption(&late, s, copier.Option{DeepCopy: true}); err != nil {
		return late, fmt.Errorf("copy %s: %w", s.ID, err)
	}
	late.ID = RealtimeID(s.ID, d.Day)
	late.Realtime = true
	if s.Frequency != nil {
		return late, fmt.Errorf("%s %s: frequency journeys cannot be delayed", d.Kind, s.ID)
	}

	updates := append([]StopTimeUpdate(nil), d.Updates...)
	sort.Slice(updates, func(i, j int) bool { return updates[i].Order < updates[j].Order })

	var arrivalDelay, departureDelay int32
	next := 0
	for i := range late.StopTimes {
		for next < len(updates) && updates[next].Order <= i {
			if updates[next].Order == i {
				arrivalDelay, departureDelay = updates[next].ArrivalDelay, updates[next].DepartureDelay
			}
			next++
		}
		st := &late.StopTimes[i]
		st.Arrival += arrivalDelay
		st.Departure += departureDelay
		arrivalDelay = departureDelay
		if st.Departure < st.Arrival {
			st.Departure = st.Arrival
		}
		if i > 0 && st.Arrival < late.StopTimes[i-1].Departure {
			st.Arrival = late.StopTimes[i-1].Departure
			if st.Departure < st.Arrival {
				st.Departure = st.Arrival
			}
		}
	}
	onlyAt(&late, schedule.RealTime, d.Day, days)
	return late, nil
}
