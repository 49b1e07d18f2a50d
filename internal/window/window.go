// Package window maps a pool's start instant and a 1-indexed day number to
// the 24-hour challenge-day interval for that day. Every "has this day
// ended" decision in the engine goes through these functions.
//
// Days are anchored to the pool's exact start instant, not to midnight: day
// N covers [start+(N-1)*24h, start+N*24h). Intervals are expressed in the
// app's reference timezone (US Eastern) so that civil-time comparisons such
// as "does this screenshot show today's date" agree with what participants
// see.
package window

import "time"

const daySeconds = 86400

// Reference is the app-wide civil timezone.
var Reference = mustLoad("America/New_York")

func mustLoad(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic("window: load reference timezone: " + err.Error())
	}
	return loc
}

// Day returns the half-open interval [from, to) of the given challenge day,
// in the reference timezone. day is 1-indexed.
func Day(start int64, day int) (from, to time.Time) {
	base := time.Unix(start, 0).In(Reference)
	from = base.Add(time.Duration(day-1) * 24 * time.Hour)
	to = from.Add(24 * time.Hour)
	return from, to
}

// CurrentDay returns the challenge day containing now, 1-indexed, minimum 1.
// ok is false when the pool has not started yet.
func CurrentDay(start int64, now time.Time) (day int, ok bool) {
	ts := now.Unix()
	if ts < start {
		return 0, false
	}
	day = int((ts-start)/daySeconds) + 1
	if day < 1 {
		day = 1
	}
	return day, true
}

// Ended reports whether the given challenge day is over at now.
func Ended(start int64, day int, now time.Time) bool {
	_, to := Day(start, day)
	return !now.Before(to)
}

// InGrace reports whether now falls within the grace window immediately
// after the given day's end. The window governs when the engine still
// re-checks a day; it never widens what counts as an admissible proof.
func InGrace(start int64, day int, now time.Time, grace time.Duration) bool {
	_, to := Day(start, day)
	return !now.Before(to) && now.Before(to.Add(grace))
}
