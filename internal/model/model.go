package model

import "time"

// CalendarEvent is one concrete occurrence of an event, normalized for the
// display client. Start/End are always UTC; the client applies its own
// display timezone.
type CalendarEvent struct {
	// ID is unique within one schedule response. It is composed from
	// calendar name, event UID and occurrence start, so the same UID
	// recurring multiple times still yields distinct IDs.
	ID    string    `json:"id"`
	Title string    `json:"title"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	AllDay bool `json:"allDay"`

	// Calendar and Color identify the source the event came from.
	Calendar string `json:"calendar"`
	Color    string `json:"color"`

	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
}

// CalendarInfo is the display metadata for one configured source.
type CalendarInfo struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Schedule is the aggregated response handed to the display client:
// every configured calendar's metadata plus all occurrences overlapping
// the requested window, sorted by start time.
type Schedule struct {
	Calendars []CalendarInfo  `json:"calendars"`
	Events    []CalendarEvent `json:"events"`
	FetchedAt time.Time       `json:"fetchedAt"`
}
