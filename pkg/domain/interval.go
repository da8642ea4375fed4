package domain

import (
	"sort"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Empty reports whether the interval has no duration.
func (i Interval) Empty() bool {
	return !i.End.After(i.Start)
}

// Covers reports whether [start, end) lies completely inside the interval.
func (i Interval) Covers(start, end time.Time) bool {
	return !start.Before(i.Start) && !end.After(i.End)
}

// MergeIntervals sorts the intervals and joins overlapping or touching ones.
func MergeIntervals(in []Interval) []Interval {
	items := make([]Interval, 0, len(in))
	for _, i := range in {
		if !i.Empty() {
			items = append(items, i)
		}
	}
	sort.Slice(items, func(a, b int) bool { return items[a].Start.Before(items[b].Start) })

	var out []Interval
	for _, i := range items {
		if n := len(out); n > 0 && !i.Start.After(out[n-1].End) {
			if i.End.After(out[n-1].End) {
				out[n-1].End = i.End
			}
			continue
		}
		out = append(out, i)
	}
	return out
}

// SubtractIntervals removes every busy range from the free ranges.
func SubtractIntervals(free, busy []Interval) []Interval {
	free = MergeIntervals(free)
	busy = MergeIntervals(busy)

	var out []Interval
	for _, f := range free {
		cur := f
		for _, b := range busy {
			if !b.End.After(cur.Start) || !b.Start.Before(cur.End) {
				continue
			}
			if b.Start.After(cur.Start) {
				out = append(out, Interval{Start: cur.Start, End: b.Start})
			}
			cur.Start = b.End
			if cur.Empty() {
				break
			}
		}
		if !cur.Empty() {
			out = append(out, cur)
		}
	}
	return out
}

// Slot is a bookable start time on a given date.
type Slot struct {
	Time        string    `json:"time"` // HH:MM in organisation time
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	EmployeeIDs []string  `json:"employeeIds"`
}
