// Package frequency expands headway-based trips into concrete instances.
package frequency

import (
	"errors"

	"planner.onebusaway.org/internal/calendar"
)

const day = calendar.SecondsPerDay

var (
	ErrInvalidHeadway = errors.New("headway must be positive")
	ErrInvalidWindow  = errors.New("window bounds must lie within two days")
)

// Window is the headway template of a frequency trip. Start and End are
// seconds after midnight of the reference day at which the first stop is
// served. End < Start means the window crosses midnight.
type Window struct {
	Start   int32
	End     int32
	Headway int32
}

// Validate checks the template.
func (w Window) Validate() error {
	if w.Headway <= 0 {
		return ErrInvalidHeadway
	}
	if w.Start < 0 || w.Start >= 2*day || w.End < 0 || w.End > 2*day {
		return ErrInvalidWindow
	}
	return nil
}

// Overnight reports whether the window crosses midnight.
func (w Window) Overnight() bool {
	return w.End < w.Start
}

func (w Window) end() int64 {
	if w.Overnight() {
		return int64(w.End) + day
	}
	return int64(w.End)
}

// Instances returns the number of departures the window produces on one day.
func (w Window) Instances() int {
	if w.Headway <= 0 {
		return 0
	}
	return int((w.end()-int64(w.Start))/int64(w.Headway)) + 1
}

// span is the number of days a window plus offset can reach past its
// reference day.
func (w Window) span(offset int32) int {
	reach := w.end() + int64(offset)
	if reach < 0 {
		return 1
	}
	return int(reach/day) + 1
}

// Next returns the earliest instance instant at a stop that is not before t.
// offset is the time from the start of an instance to the moment it is
// boardable at the stop. valid reports whether the trip runs on a reference
// day.
func Next(t calendar.DateTime, w Window, offset int32, valid func(day int) bool) (calendar.DateTime, bool) {
	if w.Headway <= 0 || t.IsInfinite() {
		return calendar.Inf, false
	}
	h := int64(w.Headway)
	target := int64(t)
	best, found := int64(calendar.Inf), false
	for d := t.Date() - w.span(offset); d <= t.Date()+1; d++ {
		if !valid(d) {
			continue
		}
		lo := int64(d)*day + int64(w.Start) + int64(offset)
		hi := int64(d)*day + w.end() + int64(offset)
		var c int64
		switch {
		case target <= lo:
			c = lo
		case target <= hi:
			c = lo + ceilDiv(target-lo, h)*h
			if c > hi {
				continue
			}
		default:
			continue
		}
		if c < best {
			best, found = c, true
		}
	}
	return calendar.DateTime(best), found
}

// Previous returns the latest instance instant at a stop that is not after
// t. offset is the time from the start of an instance to the moment a
// traveller is free at the stop.
func Previous(t calendar.DateTime, w Window, offset int32, valid func(day int) bool) (calendar.DateTime, bool) {
	if w.Headway <= 0 || t.IsInfinite() {
		return calendar.MinusInf, false
	}
	h := int64(w.Headway)
	target := int64(t)
	best, found := int64(calendar.MinusInf), false
	for d := t.Date() - w.span(offset); d <= t.Date()+1; d++ {
		if !valid(d) {
			continue
		}
		lo := int64(d)*day + int64(w.Start) + int64(offset)
		hi := int64(d)*day + w.end() + int64(offset)
		var c int64
		switch {
		case target < lo:
			continue
		case target >= hi:
			c = lo + ((hi-lo)/h)*h
		default:
			c = lo + ((target-lo)/h)*h
		}
		if c > best {
			best, found = c, true
		}
	}
	return calendar.DateTime(best), found
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
