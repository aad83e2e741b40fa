package schedule

import (
	"fmt"
	"sort"
	"time"
)

const layout = "15:04"

// Grid is the fixed, process-wide set of UTC check times. Immutable after
// construction.
type Grid struct {
	times map[string]struct{}
	order []string
}

// ParseGrid validates and normalises a list of HH:MM entries.
func ParseGrid(entries []string) (Grid, error) {
	if len(entries) == 0 {
		return Grid{}, fmt.Errorf("schedule: empty check-time grid")
	}

	times := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		t, err := time.Parse(layout, e)
		if err != nil {
			return Grid{}, fmt.Errorf("schedule: invalid check time %q", e)
		}
		times[t.Format(layout)] = struct{}{}
	}

	order := make([]string, 0, len(times))
	for t := range times {
		order = append(order, t)
	}
	sort.Strings(order)

	return Grid{times: times, order: order}, nil
}

// Times returns the grid entries in ascending order.
func (g Grid) Times() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Contains reports whether hhmm is a grid entry.
func (g Grid) Contains(hhmm string) bool {
	_, ok := g.times[hhmm]
	return ok
}

// Match returns the grid entry the given instant falls on, at minute
// resolution in UTC.
func (g Grid) Match(t time.Time) (string, bool) {
	hhmm := t.UTC().Format(layout)
	_, ok := g.times[hhmm]
	return hhmm, ok
}

// LocalToUTC translates a user-local HH:MM to its UTC equivalent given a
// whole-hour timezone offset, wrapping across midnight.
func LocalToUTC(local string, tzOffset int) (string, error) {
	t, err := time.Parse(layout, local)
	if err != nil {
		return "", fmt.Errorf("schedule: invalid check time %q", local)
	}
	return t.Add(time.Duration(-tzOffset) * time.Hour).Format(layout), nil
}

// DueAt reports whether a user with the given local check times and
// timezone offset is due at the given UTC check time. Offsets are resolved
// here, at comparison time, so a changed offset takes effect immediately.
// Malformed stored entries are skipped rather than failing the round.
func DueAt(checkTimes []string, tzOffset int, utcCheck string) bool {
	for _, local := range checkTimes {
		utc, err := LocalToUTC(local, tzOffset)
		if err != nil {
			continue
		}
		if utc == utcCheck {
			return true
		}
	}
	return false
}
