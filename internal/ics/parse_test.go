package ics

import (
	"errors"
	"strings"
	"testing"

	ical "github.com/arran4/golang-ical"
)

const sampleFeed = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//Example//Family Calendar//EN
BEGIN:VEVENT
UID:breakfast@example.com
DTSTART;TZID=Europe/Berlin:20260110T080000
DTEND;TZID=Europe/Berlin:20260110T083000
SUMMARY:Breakfast
LOCATION:Kitchen
END:VEVENT
BEGIN:VEVENT
UID:standup@example.com
DTSTART:20260112T090000Z
DTEND:20260112T091500Z
SUMMARY:Standup
DESCRIPTION:Short sync\, bring coffee
END:VEVENT
END:VCALENDAR
`

func TestParseDocument(t *testing.T) {
	root, err := ParseDocument(sampleFeed)
	if err != nil {
		t.Fatalf("ParseDocument() error: %v", err)
	}

	if root.Name != "VCALENDAR" {
		t.Errorf("root name = %q, want VCALENDAR", root.Name)
	}
	if got := root.PropValue("VERSION"); got != "2.0" {
		t.Errorf("VERSION = %q, want 2.0", got)
	}

	events := root.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 VEVENTs, got %d", len(events))
	}

	first := events[0]
	if got := first.PropValue("UID"); got != "breakfast@example.com" {
		t.Errorf("UID = %q", got)
	}
	dtstart, ok := first.Prop("DTSTART")
	if !ok {
		t.Fatal("first event has no DTSTART")
	}
	if got := dtstart.Param("TZID"); got != "Europe/Berlin" {
		t.Errorf("DTSTART TZID = %q, want Europe/Berlin", got)
	}
	if dtstart.Value != "20260110T080000" {
		t.Errorf("DTSTART value = %q", dtstart.Value)
	}
}

func TestParseDocumentPropertySplitting(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		wantName   string
		wantValue  string
		wantParams map[string]string
	}{
		{
			name:      "plain property",
			line:      "SUMMARY:Dinner",
			wantName:  "SUMMARY",
			wantValue: "Dinner",
		},
		{
			name:       "single parameter",
			line:       "DTSTART;VALUE=DATE:20260201",
			wantName:   "DTSTART",
			wantValue:  "20260201",
			wantParams: map[string]string{"VALUE": "DATE"},
		},
		{
			name:       "multiple parameters",
			line:       "ATTENDEE;ROLE=REQ-PARTICIPANT;PARTSTAT=ACCEPTED:mailto:a@b.c",
			wantName:   "ATTENDEE",
			wantValue:  "mailto:a@b.c",
			wantParams: map[string]string{"ROLE": "REQ-PARTICIPANT", "PARTSTAT": "ACCEPTED"},
		},
		{
			name:       "quoted parameter containing colon",
			line:       `ORGANIZER;CN="Doe: John":mailto:john@example.com`,
			wantName:   "ORGANIZER",
			wantValue:  "mailto:john@example.com",
			wantParams: map[string]string{"CN": "Doe: John"},
		},
		{
			name:      "value containing colons",
			line:      "URL:https://example.com/cal",
			wantName:  "URL",
			wantValue: "https://example.com/cal",
		},
		{
			name:      "lowercase name is uppercased",
			line:      "summary:quiet",
			wantName:  "SUMMARY",
			wantValue: "quiet",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prop, ok := parseContentLine(tt.line)
			if !ok {
				t.Fatalf("parseContentLine(%q) not ok", tt.line)
			}
			if prop.Name != tt.wantName {
				t.Errorf("name = %q, want %q", prop.Name, tt.wantName)
			}
			if prop.Value != tt.wantValue {
				t.Errorf("value = %q, want %q", prop.Value, tt.wantValue)
			}
			for k, want := range tt.wantParams {
				if got := prop.Param(k); got != want {
					t.Errorf("param %s = %q, want %q", k, got, want)
				}
			}
		})
	}
}

func TestParseDocumentMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"unclosed component", "BEGIN:VCALENDAR\nBEGIN:VEVENT\nUID:x\nEND:VCALENDAR\n"},
		{"stray end", "BEGIN:VCALENDAR\nEND:VCALENDAR\nEND:VEVENT\n"},
		{"mismatched end", "BEGIN:VCALENDAR\nEND:VEVENT\n"},
		{"empty document", ""},
		{"no components", "VERSION:2.0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDocument(tt.raw)
			if !errors.Is(err, ErrMalformedDocument) {
				t.Errorf("ParseDocument() error = %v, want ErrMalformedDocument", err)
			}
		})
	}
}

func TestParseDocumentFirstMatchSemantics(t *testing.T) {
	raw := "BEGIN:VCALENDAR\nBEGIN:VEVENT\nUID:first\nUID:second\nEND:VEVENT\nEND:VCALENDAR\n"
	root, err := ParseDocument(raw)
	if err != nil {
		t.Fatalf("ParseDocument() error: %v", err)
	}
	ev := root.Events()[0]
	if got := ev.PropValue("UID"); got != "first" {
		t.Errorf("PropValue(UID) = %q, want first (first-match semantics)", got)
	}
	if got := len(ev.PropsNamed("UID")); got != 2 {
		t.Errorf("PropsNamed(UID) returned %d entries, want 2", got)
	}
}

func TestParseDocumentNestedComponents(t *testing.T) {
	raw := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"BEGIN:VEVENT",
		"UID:with-alarm",
		"DTSTART:20260110T080000Z",
		"BEGIN:VALARM",
		"TRIGGER:-PT15M",
		"ACTION:DISPLAY",
		"END:VALARM",
		"SUMMARY:After the alarm",
		"END:VEVENT",
		"END:VCALENDAR",
		"",
	}, "\r\n")

	root, err := ParseDocument(raw)
	if err != nil {
		t.Fatalf("ParseDocument() error: %v", err)
	}
	events := root.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 VEVENT, got %d", len(events))
	}
	ev := events[0]
	if len(ev.Children) != 1 || ev.Children[0].Name != "VALARM" {
		t.Fatalf("expected one VALARM child, got %+v", ev.Children)
	}
	// Properties after the nested component still belong to the VEVENT.
	if got := ev.PropValue("SUMMARY"); got != "After the alarm" {
		t.Errorf("SUMMARY = %q", got)
	}
}

// TestParseDocumentAgainstReferenceLibrary cross-checks property extraction
// against arran4/golang-ical on the same feed.
func TestParseDocumentAgainstReferenceLibrary(t *testing.T) {
	root, err := ParseDocument(sampleFeed)
	if err != nil {
		t.Fatalf("ParseDocument() error: %v", err)
	}
	refCal, err := ical.ParseCalendar(strings.NewReader(sampleFeed))
	if err != nil {
		t.Fatalf("reference parser error: %v", err)
	}

	ours := root.Events()
	theirs := refCal.Events()
	if len(ours) != len(theirs) {
		t.Fatalf("event count mismatch: ours %d, reference %d", len(ours), len(theirs))
	}

	for i := range ours {
		if got, want := ours[i].PropValue("UID"), theirs[i].Id(); got != want {
			t.Errorf("event %d UID: ours %q, reference %q", i, got, want)
		}
		refSummary := theirs[i].GetProperty(ical.ComponentPropertySummary)
		if refSummary == nil {
			t.Fatalf("reference event %d has no SUMMARY", i)
		}
		if got := ours[i].PropValue("SUMMARY"); got != refSummary.Value {
			t.Errorf("event %d SUMMARY: ours %q, reference %q", i, got, refSummary.Value)
		}
		refStart := theirs[i].GetProperty(ical.ComponentPropertyDtStart)
		if got := ours[i].PropValue("DTSTART"); got != refStart.Value {
			t.Errorf("event %d DTSTART: ours %q, reference %q", i, got, refStart.Value)
		}
	}
}
