// Package calendar holds the time arithmetic used by the journey planner:
// datetimes relative to the first day of the production period, and
// per-day activation bitsets.
package calendar

import (
	"fmt"
	"math"
	"time"
)

// SecondsPerDay is the length of a service day used by all arithmetic.
const SecondsPerDay = 86400

// DateTime is a number of seconds since midnight of day 0 of the dataset.
type DateTime int64

const (
	// Inf is later than every reachable instant.
	Inf DateTime = math.MaxInt64
	// MinusInf is earlier than every reachable instant.
	MinusInf DateTime = math.MinInt64
)

// NewDateTime builds a DateTime from a relative day and a number of seconds,
// which may be negative or exceed a day.
func NewDateTime(day int, secs int32) DateTime {
	return DateTime(int64(day)*SecondsPerDay + int64(secs))
}

// Date returns the relative day of dt.
func (dt DateTime) Date() int {
	return int(floorDiv(int64(dt), SecondsPerDay))
}

// Hour returns the seconds elapsed since midnight of Date().
func (dt DateTime) Hour() int32 {
	return int32(floorMod(int64(dt), SecondsPerDay))
}

// IsInfinite reports whether dt is one of the sentinels.
func (dt DateTime) IsInfinite() bool {
	return dt == Inf || dt == MinusInf
}

// Add shifts dt by secs, leaving sentinels untouched.
func (dt DateTime) Add(secs int32) DateTime {
	if dt.IsInfinite() {
		return dt
	}
	return dt + DateTime(secs)
}

// Pack converts dt to its boundary representation. Days outside the uint16
// range are clamped.
func (dt DateTime) Pack() PackedDateTime {
	d := dt.Date()
	if d < 0 {
		return PackedDateTime{Date: 0, Time: int32(int64(dt))}
	}
	if d > math.MaxUint16 {
		d = math.MaxUint16
	}
	return PackedDateTime{Date: uint16(d), Time: dt.Hour()}
}

// Time converts dt into wall-clock time, counting days from dayZero in loc.
func (dt DateTime) Time(dayZero time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := dayZero.Date()
	midnight := time.Date(y, m, d+dt.Date(), 0, 0, 0, 0, loc)
	return midnight.Add(time.Duration(dt.Hour()) * time.Second)
}

func (dt DateTime) String() string {
	switch dt {
	case Inf:
		return "+inf"
	case MinusInf:
		return "-inf"
	}
	h := dt.Hour()
	return fmt.Sprintf("D%d %02d:%02d:%02d", dt.Date(), h/3600, h/60%60, h%60)
}

// FromTime converts t into a DateTime relative to dayZero, using the calendar
// date of t in loc.
func FromTime(t time.Time, dayZero time.Time, loc *time.Location) DateTime {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	y, m, d := local.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return NewDateTime(DaysBetween(dayZero, midnight), int32(local.Sub(midnight)/time.Second))
}

// DaysBetween counts civil days from a to b, ignoring clock time.
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// PackedDateTime is the datetime exchanged with callers: a relative day and
// a signed number of seconds that may fall outside [0, 86400).
type PackedDateTime struct {
	Date uint16
	Time int32
}

// DateTime normalizes p.
func (p PackedDateTime) DateTime() DateTime {
	return NewDateTime(int(p.Date), p.Time)
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int64) int64 {
	return a - floorDiv(a, b)*b
}
