package domain

import (
	"time"
)

const (
	clockLayout = "15:04"
	dateLayout  = "2006-01-02"
)

// Window is a half-open [Start, End) interval in minutes since midnight.
type Window struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Overlaps reports whether two windows intersect. Touching endpoints do not.
func (w Window) Overlaps(o Window) bool {
	return w.Start < o.End && w.End > o.Start
}

// ParseClock converts a wall-clock "HH:MM" into minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return 0, Invalid("time %q must be HH:MM", s)
	}

	return t.Hour()*60 + t.Minute(), nil
}

// ParseWindow parses a start/end pair and requires start < end.
func ParseWindow(start, end string) (Window, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Window{}, err
	}

	e, err := ParseClock(end)
	if err != nil {
		return Window{}, err
	}

	if s >= e {
		return Window{}, Invalid("start time %s must be before end time %s", start, end)
	}

	return Window{Start: s, End: e}, nil
}

// ParseDate parses a calendar date (YYYY-MM-DD) and returns its day.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, Invalid("date %q must be YYYY-MM-DD", s)
	}

	return t, nil
}

// Day normalizes t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayBounds returns the first and last instants of t's calendar day.
func DayBounds(t time.Time) (time.Time, time.Time) {
	start := Day(t)
	return start, start.Add(24*time.Hour - time.Millisecond)
}

// FormatDate renders a day as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// Blocks reports whether the booking occupies its venue slot.
func (b *Booking) Blocks() bool {
	return b.Status == BookingPending || b.Status == BookingConfirmed
}

// Window returns the booking's time window. Stored bookings always carry
// valid times, so a parse failure yields an empty window.
func (b *Booking) Window() Window {
	w, err := ParseWindow(b.StartTime, b.EndTime)
	if err != nil {
		return Window{}
	}
	return w
}

// BusyWindows collects windows of the bookings that occupy the slot.
func BusyWindows(bookings []Booking) []Window {
	out := make([]Window, 0, len(bookings))
	for i := range bookings {
		if !bookings[i].Blocks() {
			continue
		}
		out = append(out, bookings[i].Window())
	}
	return out
}

// Conflicts counts the busy windows overlapping req.
func Conflicts(req Window, busy []Window) int {
	n := 0
	for _, w := range busy {
		if req.Overlaps(w) {
			n++
		}
	}
	return n
}
