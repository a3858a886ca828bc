// Package schedule provides the wall-clock minute math shared by the slot
// generator and the booking validator. Keeping the overlap predicate in one
// place is what guarantees the two paths can never disagree about a conflict.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// ParseClock parses a "HH:MM" (or "HH:MM:SS") wall-clock value into
// minutes since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return 0, fmt.Errorf("invalid time format: %s", s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q: %w", s, err)
	}

	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("time out of range: %s", s)
	}
	return hour*60 + minute, nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ParseDate parses a "YYYY-MM-DD" calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// DayOfWeek returns the day of week for a date, 0=Sunday..6=Saturday.
func DayOfWeek(date time.Time) int {
	return int(date.Weekday())
}

// Interval is a half-open [Start, End) range in minutes since midnight.
type Interval struct {
	Start int
	End   int
}

// NewInterval builds an interval from a start offset and a duration.
func NewInterval(start, durationMinutes int) Interval {
	return Interval{Start: start, End: start + durationMinutes}
}

// Overlaps reports whether two half-open intervals intersect.
// Touching endpoints do not count as overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start < other.End && i.End > other.Start
}

// Contains reports whether other lies entirely within i.
func (i Interval) Contains(other Interval) bool {
	return other.Start >= i.Start && other.End <= i.End
}

// String renders the interval as "HH:MM-HH:MM".
func (i Interval) String() string {
	return FormatClock(i.Start) + "-" + FormatClock(i.End)
}
