package ics

import (
	"testing"
	"time"
)

func mustParseEvents(t *testing.T, raw string) []*Component {
	t.Helper()
	root, err := ParseDocument(raw)
	if err != nil {
		t.Fatalf("ParseDocument() error: %v", err)
	}
	return root.Events()
}

func TestGroupEvents(t *testing.T) {
	raw := `BEGIN:VCALENDAR
BEGIN:VEVENT
UID:weekly
DTSTART:20260105T090000Z
RRULE:FREQ=WEEKLY
END:VEVENT
BEGIN:VEVENT
UID:weekly
RECURRENCE-ID:20260112T090000Z
DTSTART:20260112T140000Z
END:VEVENT
BEGIN:VEVENT
UID:single
DTSTART:20260110T100000Z
END:VEVENT
BEGIN:VEVENT
DTSTART:20260111T100000Z
SUMMARY:no uid, dropped
END:VEVENT
END:VCALENDAR
`
	groups := GroupEvents(mustParseEvents(t, raw))

	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}

	// Insertion order is preserved.
	if groups[0].UID != "weekly" || groups[1].UID != "single" {
		t.Errorf("group order = %q, %q", groups[0].UID, groups[1].UID)
	}

	weekly := groups[0]
	if !weekly.HasMaster() {
		t.Fatal("weekly group should have a master")
	}
	if len(weekly.Overrides) != 1 {
		t.Fatalf("weekly group overrides = %d, want 1", len(weekly.Overrides))
	}

	times := weekly.OverrideTimes(time.UTC)
	if len(times) != 1 {
		t.Fatalf("OverrideTimes() returned %d entries, want 1", len(times))
	}
	want := time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC)
	if !times[0].Equal(want) {
		t.Errorf("override time = %v, want %v", times[0], want)
	}

	single := groups[1]
	if !single.HasMaster() || len(single.Overrides) != 0 {
		t.Errorf("single group master=%v overrides=%d", single.HasMaster(), len(single.Overrides))
	}
}

func TestGroupEventsFirstMasterWins(t *testing.T) {
	raw := `BEGIN:VCALENDAR
BEGIN:VEVENT
UID:dup
DTSTART:20260105T090000Z
SUMMARY:first master
END:VEVENT
BEGIN:VEVENT
UID:dup
DTSTART:20260106T090000Z
SUMMARY:second master
END:VEVENT
END:VCALENDAR
`
	groups := GroupEvents(mustParseEvents(t, raw))
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if got := groups[0].Master.PropValue("SUMMARY"); got != "first master" {
		t.Errorf("master SUMMARY = %q, want first master", got)
	}
}

func TestGroupEventsOverrideOnly(t *testing.T) {
	raw := `BEGIN:VCALENDAR
BEGIN:VEVENT
UID:orphan
RECURRENCE-ID:20260112T090000Z
DTSTART:20260112T140000Z
END:VEVENT
END:VCALENDAR
`
	groups := GroupEvents(mustParseEvents(t, raw))
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if groups[0].HasMaster() {
		t.Error("orphan override group should have no master")
	}
	if groups[0].MasterCancelled() {
		t.Error("MasterCancelled() without master must be false")
	}
}

func TestMasterCancelled(t *testing.T) {
	raw := `BEGIN:VCALENDAR
BEGIN:VEVENT
UID:gone
DTSTART:20260105T090000Z
STATUS:CANCELLED
END:VEVENT
BEGIN:VEVENT
UID:kept
DTSTART:20260105T090000Z
STATUS:CONFIRMED
END:VEVENT
END:VCALENDAR
`
	groups := GroupEvents(mustParseEvents(t, raw))
	if !groups[0].MasterCancelled() {
		t.Error("STATUS:CANCELLED master not detected")
	}
	if groups[1].MasterCancelled() {
		t.Error("STATUS:CONFIRMED master reported cancelled")
	}
}

func TestOverrideTimesSkipsUnparseable(t *testing.T) {
	raw := `BEGIN:VCALENDAR
BEGIN:VEVENT
UID:x
RECURRENCE-ID:garbage
DTSTART:20260112T140000Z
END:VEVENT
BEGIN:VEVENT
UID:x
RECURRENCE-ID:20260119T090000Z
DTSTART:20260119T150000Z
END:VEVENT
END:VCALENDAR
`
	groups := GroupEvents(mustParseEvents(t, raw))
	times := groups[0].OverrideTimes(time.UTC)
	if len(times) != 1 {
		t.Fatalf("OverrideTimes() = %d entries, want 1 (garbage skipped)", len(times))
	}
}
