package calendar

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"
	"time"
)

// ErrDayOutOfRange is returned when a day falls outside a pattern's period.
var ErrDayOutOfRange = errors.New("day outside of validity pattern range")

// ValidityPattern is a per-day activation bitset covering days [0, Days()).
type ValidityPattern struct {
	words []uint64
	days  int
}

// NewValidityPattern returns an empty pattern covering days days.
func NewValidityPattern(days int) *ValidityPattern {
	if days < 0 {
		days = 0
	}
	return &ValidityPattern{
		words: make([]uint64, (days+63)/64),
		days:  days,
	}
}

// FromDays builds a pattern active on the given days.
func FromDays(days int, active ...int) (*ValidityPattern, error) {
	vp := NewValidityPattern(days)
	for _, d := range active {
		if err := vp.Add(d); err != nil {
			return nil, err
		}
	}
	return vp, nil
}

// Days returns the number of days covered.
func (vp *ValidityPattern) Days() int {
	return vp.days
}

// Check reports whether the pattern is active on day. Days out of range are
// never active.
func (vp *ValidityPattern) Check(day int) bool {
	if vp == nil || day < 0 || day >= vp.days {
		return false
	}
	return vp.words[day/64]&(1<<(uint(day)%64)) != 0
}

// CheckAround reports whether the pattern is active on day or on one of its
// neighbours.
func (vp *ValidityPattern) CheckAround(day int) bool {
	return vp.Check(day-1) || vp.Check(day) || vp.Check(day+1)
}

// Add activates day.
func (vp *ValidityPattern) Add(day int) error {
	if day < 0 || day >= vp.days {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrDayOutOfRange, day, vp.days)
	}
	vp.words[day/64] |= 1 << (uint(day) % 64)
	return nil
}

// Remove deactivates day.
func (vp *ValidityPattern) Remove(day int) error {
	if day < 0 || day >= vp.days {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrDayOutOfRange, day, vp.days)
	}
	vp.words[day/64] &^= 1 << (uint(day) % 64)
	return nil
}

// Shift returns a copy moved by n days: the result is active on d when vp is
// active on d-n. Bits moved outside the range are dropped.
func (vp *ValidityPattern) Shift(n int) *ValidityPattern {
	out := NewValidityPattern(vp.days)
	for d := 0; d < vp.days; d++ {
		if vp.Check(d - n) {
			_ = out.Add(d)
		}
	}
	return out
}

// Shifted returns the one-day-earlier derivation: active on d when vp is
// active on d+1.
func (vp *ValidityPattern) Shifted() *ValidityPattern {
	return vp.Shift(-1)
}

// Clone returns an independent copy.
func (vp *ValidityPattern) Clone() *ValidityPattern {
	out := &ValidityPattern{words: make([]uint64, len(vp.words)), days: vp.days}
	copy(out.words, vp.words)
	return out
}

// Count returns the number of active days.
func (vp *ValidityPattern) Count() int {
	n := 0
	for _, w := range vp.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Empty reports whether no day is active.
func (vp *ValidityPattern) Empty() bool {
	for _, w := range vp.words {
		if w != 0 {
			return false
		}
	}
	return true
}

// Intersects reports whether vp and other share an active day.
func (vp *ValidityPattern) Intersects(other *ValidityPattern) bool {
	for i := range vp.words {
		if i < len(other.words) && vp.words[i]&other.words[i] != 0 {
			return true
		}
	}
	return false
}

// Equal compares range and activation.
func (vp *ValidityPattern) Equal(other *ValidityPattern) bool {
	if vp.days != other.days {
		return false
	}
	for i := range vp.words {
		if vp.words[i] != other.words[i] {
			return false
		}
	}
	return true
}

// String renders one character per day, day 0 first.
func (vp *ValidityPattern) String() string {
	var sb strings.Builder
	sb.Grow(vp.days)
	for d := 0; d < vp.days; d++ {
		if vp.Check(d) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// Weekly describes a service in the weekday-plus-exceptions form used by
// GTFS calendars.
type Weekly struct {
	Weekdays     [7]bool // indexed by time.Weekday
	Start, End   time.Time
	AddedDates   []time.Time
	RemovedDates []time.Time
}

// FromWeekly expands w into a pattern of days days starting at dayZero.
// Exception dates outside the period are ignored.
func FromWeekly(w Weekly, dayZero time.Time, days int) *ValidityPattern {
	vp := NewValidityPattern(days)
	first := DaysBetween(dayZero, w.Start)
	last := DaysBetween(dayZero, w.End)
	if !w.Start.IsZero() && !w.End.IsZero() {
		for d := max(first, 0); d <= last && d < days; d++ {
			wd := dayZero.AddDate(0, 0, d).Weekday()
			if w.Weekdays[wd] {
				_ = vp.Add(d)
			}
		}
	}
	for _, t := range w.AddedDates {
		_ = vp.Add(DaysBetween(dayZero, t))
	}
	for _, t := range w.RemovedDates {
		_ = vp.Remove(DaysBetween(dayZero, t))
	}
	return vp
}
