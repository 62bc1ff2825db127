package ics

import (
	"strconv"
	"strings"
	"time"

	appLog "famcal/internal/log"
	"famcal/internal/model"
)

// SourceData is the input triple for one calendar source: identity, color
// and the raw ICS text the fetch layer produced.
type SourceData struct {
	Name  string
	Color string
	Raw   string
}

// Options controls materialization of one source.
type Options struct {
	// Window is the half-open query interval; only occurrences overlapping
	// it are emitted.
	Window Window

	// Location interprets floating ICS times. Nil means time.Local.
	Location *time.Location

	// MaxOccurrences caps expansion per recurring event
	// (DefaultMaxOccurrences when zero).
	MaxOccurrences int
}

// BuildEvents runs the full per-source pipeline: unfold, parse, group,
// expand, materialize. It returns every concrete occurrence from this
// source overlapping the window, in unspecified order.
//
// Only a document-level parse failure is returned as an error; individual
// events with missing or broken fields are skipped and logged.
func BuildEvents(src SourceData, opts Options) ([]model.CalendarEvent, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	root, err := ParseDocument(src.Raw)
	if err != nil {
		return nil, err
	}

	vevents := root.Events()
	if root.Name == "VEVENT" {
		vevents = []*Component{root}
	}

	var out []model.CalendarEvent

	for _, group := range GroupEvents(vevents) {
		if group.MasterCancelled() {
			appLog.Debug("series cancelled", "calendar", src.Name, "uid", group.UID)
			continue
		}

		overrideTimes := group.OverrideTimes(loc)

		if group.HasMaster() {
			out = append(out, masterOccurrences(src, group, overrideTimes, opts.Window, opts.MaxOccurrences, loc)...)
		}

		for _, ov := range group.Overrides {
			if ev := overrideOccurrence(src, group, ov, opts.Window, loc); ev != nil {
				out = append(out, *ev)
			}
		}
	}

	return out, nil
}

// masterOccurrences emits the master's own occurrences: the expanded series
// for a recurring event, or the single occurrence of a plain one. Slots
// claimed by an override are left to the override path.
func masterOccurrences(src SourceData, group *EventGroup, overrideTimes []time.Time, w Window, maxOccurrences int, loc *time.Location) []model.CalendarEvent {
	master := group.Master

	dtstartProp, ok := master.Prop("DTSTART")
	if !ok {
		appLog.Warn("event has no DTSTART, skipping", "calendar", src.Name, "uid", group.UID)
		return nil
	}
	start, allDay, err := ParseDateTime(dtstartProp.Value, dtstartProp.Params, loc)
	if err != nil {
		appLog.Warn("unparseable DTSTART, skipping event", "calendar", src.Name, "uid", group.UID, "value", dtstartProp.Value)
		return nil
	}

	duration := eventDuration(master, start, allDay, loc)
	if duration < 0 {
		duration = 0
	}

	if master.PropValue("RRULE") == "" {
		// Simple singular event; the expander is bypassed entirely.
		for _, t := range overrideTimes {
			if t.Equal(start) {
				return nil
			}
		}
		if ev := buildEvent(src, master, group.UID, start, start.Add(duration), allDay, w); ev != nil {
			return []model.CalendarEvent{*ev}
		}
		return nil
	}

	starts, truncated, err := ExpandOccurrences(master, w, overrideTimes, maxOccurrences, loc)
	if err != nil {
		appLog.Error("recurrence expansion failed, skipping event", err, "calendar", src.Name, "uid", group.UID)
		return nil
	}
	if truncated {
		appLog.Warn("recurrence expansion hit instance cap", "calendar", src.Name, "uid", group.UID, "cap", maxOccurrences)
	}

	out := make([]model.CalendarEvent, 0, len(starts))
	for _, occStart := range starts {
		if ev := buildEvent(src, master, group.UID, occStart, occStart.Add(duration), allDay, w); ev != nil {
			out = append(out, *ev)
		}
	}
	return out
}

// overrideOccurrence materializes one override from its own property set.
// An override without explicit end or duration inherits the master's
// duration; a cancelled override suppresses its slot without replacement.
func overrideOccurrence(src SourceData, group *EventGroup, ov *Component, w Window, loc *time.Location) *model.CalendarEvent {
	dtstartProp, ok := ov.Prop("DTSTART")
	if !ok {
		appLog.Warn("override has no DTSTART, skipping", "calendar", src.Name, "uid", group.UID)
		return nil
	}
	start, allDay, err := ParseDateTime(dtstartProp.Value, dtstartProp.Params, loc)
	if err != nil {
		appLog.Warn("unparseable override DTSTART, skipping", "calendar", src.Name, "uid", group.UID, "value", dtstartProp.Value)
		return nil
	}

	duration, explicit := explicitDuration(ov, start, loc)
	if !explicit {
		if group.Master != nil {
			if mp, ok := group.Master.Prop("DTSTART"); ok {
				if mStart, mAllDay, merr := ParseDateTime(mp.Value, mp.Params, loc); merr == nil {
					duration = eventDuration(group.Master, mStart, mAllDay, loc)
				}
			}
		} else if allDay {
			duration = 24 * time.Hour
		}
	}
	if duration < 0 {
		duration = 0
	}

	return buildEvent(src, ov, group.UID, start, start.Add(duration), allDay, w)
}

// buildEvent applies the cancellation and window filters and produces the
// normalized occurrence record.
func buildEvent(src SourceData, ev *Component, uid string, start, end time.Time, allDay bool, w Window) *model.CalendarEvent {
	title := strings.TrimSpace(UnescapeText(ev.PropValue("SUMMARY")))

	// Some feeds flag cancellations in the title instead of STATUS.
	if isCancelled(ev) || strings.HasPrefix(title, "Canceled:") {
		return nil
	}
	if !w.Overlaps(start, end) {
		return nil
	}
	if title == "" {
		title = "Untitled"
	}

	return &model.CalendarEvent{
		ID:          src.Name + "-" + uid + "-" + strconv.FormatInt(start.UnixMilli(), 10),
		Title:       title,
		Start:       start.UTC(),
		End:         end.UTC(),
		AllDay:      allDay,
		Calendar:    src.Name,
		Color:       src.Color,
		Location:    strings.TrimSpace(UnescapeText(ev.PropValue("LOCATION"))),
		Description: strings.TrimSpace(UnescapeText(ev.PropValue("DESCRIPTION"))),
	}
}

// explicitDuration resolves an event's duration from DTEND or DURATION.
// ok is false when the event declares neither.
func explicitDuration(ev *Component, start time.Time, loc *time.Location) (d time.Duration, ok bool) {
	if endProp, found := ev.Prop("DTEND"); found {
		if end, _, err := ParseDateTime(endProp.Value, endProp.Params, loc); err == nil {
			return end.Sub(start), true
		}
	}
	if durProp, found := ev.Prop("DURATION"); found {
		if d, err := ParseDuration(durProp.Value); err == nil {
			return d, true
		}
	}
	return 0, false
}

// eventDuration resolves duration with the full precedence chain:
// DTEND, then DURATION, then one day for all-day events, then zero.
func eventDuration(ev *Component, start time.Time, allDay bool, loc *time.Location) time.Duration {
	if d, ok := explicitDuration(ev, start, loc); ok {
		return d
	}
	if allDay {
		return 24 * time.Hour
	}
	return 0
}
