package ics

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// DefaultMaxOccurrences caps how many occurrences one recurring event may
// contribute when the caller does not configure a limit.
const DefaultMaxOccurrences = 500

// Window is a half-open query interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether [start, end) intersects the window.
func (w Window) Overlaps(start, end time.Time) bool {
	return start.Before(w.End) && end.After(w.Start)
}

// Valid reports whether the window is non-empty.
func (w Window) Valid() bool {
	return w.Start.Before(w.End)
}

// ExpandOccurrences generates the concrete occurrence start times of a
// recurring master within the window, ascending.
//
// skip lists the original occurrence times claimed by overrides; matching
// candidates are omitted without counting toward the cap, since the
// override path emits them instead. Candidates whose computed end
// (start+duration) does not reach the window are likewise omitted without
// counting. EXDATE values on the master are excluded inside the rule set.
//
// truncated reports that maxOccurrences stopped the expansion early.
func ExpandOccurrences(master *Component, w Window, skip []time.Time, maxOccurrences int, loc *time.Location) (starts []time.Time, truncated bool, err error) {
	if maxOccurrences <= 0 {
		maxOccurrences = DefaultMaxOccurrences
	}

	dtstartProp, ok := master.Prop("DTSTART")
	if !ok {
		return nil, false, fmt.Errorf("event %q has no DTSTART", master.PropValue("UID"))
	}
	dtstart, allDay, err := ParseDateTime(dtstartProp.Value, dtstartProp.Params, loc)
	if err != nil {
		return nil, false, fmt.Errorf("event %q: %w", master.PropValue("UID"), err)
	}

	duration := eventDuration(master, dtstart, allDay, loc)
	if duration < 0 {
		duration = 0
	}

	opt, err := rrule.StrToROption(master.PropValue("RRULE"))
	if err != nil {
		return nil, false, fmt.Errorf("event %q: bad RRULE: %w", master.PropValue("UID"), err)
	}
	opt.Dtstart = dtstart

	rule, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, false, fmt.Errorf("event %q: bad RRULE: %w", master.PropValue("UID"), err)
	}

	var set rrule.Set
	set.RRule(rule)
	for _, ex := range exDates(master, loc) {
		set.ExDate(ex.In(dtstart.Location()))
	}

	// Reach back by one duration so an occurrence straddling the window
	// start is still produced, and filter the half-open end below (Between
	// is inclusive on both bounds).
	candidates := set.Between(w.Start.Add(-duration).In(dtstart.Location()), w.End.In(dtstart.Location()), true)

	skipSet := make(map[int64]struct{}, len(skip))
	for _, t := range skip {
		skipSet[t.UnixNano()] = struct{}{}
	}

	for _, candidate := range candidates {
		if _, overridden := skipSet[candidate.UnixNano()]; overridden {
			continue
		}
		if !candidate.Add(duration).After(w.Start) {
			// Ends at or before the window; pre-window, not capped.
			continue
		}
		if !candidate.Before(w.End) {
			break
		}
		starts = append(starts, candidate)
		if len(starts) >= maxOccurrences {
			truncated = true
			break
		}
	}

	return starts, truncated, nil
}

// exDates collects every EXDATE time on the event. EXDATE repeats and each
// instance may hold a comma-separated list.
func exDates(ev *Component, loc *time.Location) []time.Time {
	var out []time.Time
	for _, prop := range ev.PropsNamed("EXDATE") {
		for _, part := range strings.Split(prop.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			t, _, err := ParseDateTime(part, prop.Params, loc)
			if err != nil {
				continue
			}
			out = append(out, t)
		}
	}
	return out
}
