package ics

import (
	"strings"
	"time"
)

// EventGroup collects every VEVENT sharing one UID: at most one master (no
// RECURRENCE-ID) plus any number of per-instance overrides.
type EventGroup struct {
	UID       string
	Master    *Component
	Overrides []*Component
}

// GroupEvents partitions VEVENT components by UID, preserving the order in
// which UIDs first appear. VEVENTs without a UID are dropped (bad data, not
// an error). If a feed carries several RECURRENCE-ID-less components for one
// UID, the first one wins as master and the rest are ignored.
func GroupEvents(vevents []*Component) []*EventGroup {
	byUID := make(map[string]*EventGroup)
	var order []*EventGroup

	for _, ev := range vevents {
		uid := strings.TrimSpace(ev.PropValue("UID"))
		if uid == "" {
			continue
		}

		group, ok := byUID[uid]
		if !ok {
			group = &EventGroup{UID: uid}
			byUID[uid] = group
			order = append(order, group)
		}

		if _, isOverride := ev.Prop("RECURRENCE-ID"); isOverride {
			group.Overrides = append(group.Overrides, ev)
		} else if group.Master == nil {
			group.Master = ev
		}
	}

	return order
}

// HasMaster reports whether the group has a base component.
func (g *EventGroup) HasMaster() bool {
	return g.Master != nil
}

// MasterCancelled reports whether the master carries STATUS:CANCELLED, which
// suppresses the whole series including its overrides.
func (g *EventGroup) MasterCancelled() bool {
	if g.Master == nil {
		return false
	}
	return isCancelled(g.Master)
}

// OverrideTimes returns the original occurrence times declared by the
// group's overrides (their RECURRENCE-ID values). Expansion of the master
// must never emit an occurrence at any of these times. Unparseable values
// are skipped.
func (g *EventGroup) OverrideTimes(loc *time.Location) []time.Time {
	var out []time.Time
	for _, ov := range g.Overrides {
		prop, ok := ov.Prop("RECURRENCE-ID")
		if !ok {
			continue
		}
		t, _, err := ParseDateTime(prop.Value, prop.Params, loc)
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	return out
}

// isCancelled reports whether a VEVENT carries STATUS:CANCELLED.
func isCancelled(ev *Component) bool {
	return strings.EqualFold(strings.TrimSpace(ev.PropValue("STATUS")), "CANCELLED")
}
