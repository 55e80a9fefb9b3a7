package service

import "time"

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether two half-open intervals intersect. Adjacent
// intervals (one ends exactly where the other begins) do not.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// HasConflict reports whether the candidate interval intersects any blocked
// interval or any scheduled lesson interval. Pure; callers supply the
// relevant supersets (same teacher, overlapping window).
func HasConflict(candidateStart, candidateEnd time.Time, blocked, scheduled []Interval) bool {
	for _, b := range blocked {
		if Overlaps(candidateStart, candidateEnd, b.Start, b.End) {
			return true
		}
	}
	for _, s := range scheduled {
		if Overlaps(candidateStart, candidateEnd, s.Start, s.End) {
			return true
		}
	}
	return false
}
