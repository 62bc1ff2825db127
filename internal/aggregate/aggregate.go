// Package aggregate fans the per-source ICS pipeline out over all
// configured calendars and merges the results into one schedule.
package aggregate

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"famcal/internal/config"
	"famcal/internal/ics"
	appLog "famcal/internal/log"
	"famcal/internal/model"
)

// Fetcher retrieves the raw ICS body for one source. *ics.Fetcher is the
// production implementation; tests substitute a canned one.
type Fetcher interface {
	Fetch(ctx context.Context, name, url string) (body []byte, fromCache bool, err error)
}

// Aggregator runs the fetch+parse+expand pipeline for every configured
// source and merges the occurrences. It is immutable after construction.
type Aggregator struct {
	sources        []config.CalendarConfig
	fetcher        Fetcher
	loc            *time.Location
	maxOccurrences int
	pastDays       int
	futureDays     int
}

// New builds an Aggregator from the loaded configuration. An invalid
// timezone falls back to the host zone.
func New(cfg *config.Config, fetcher Fetcher) *Aggregator {
	loc := time.Local
	if cfg.Timezone != "" {
		if l, err := time.LoadLocation(cfg.Timezone); err == nil {
			loc = l
		} else {
			appLog.Warn("invalid timezone, using host zone", "timezone", cfg.Timezone)
		}
	}

	return &Aggregator{
		sources:        cfg.Calendars,
		fetcher:        fetcher,
		loc:            loc,
		maxOccurrences: cfg.MaxOccurrences,
		pastDays:       cfg.PastDays,
		futureDays:     cfg.FutureDays,
	}
}

// Location returns the zone used to interpret floating ICS times.
func (a *Aggregator) Location() *time.Location {
	return a.loc
}

// DefaultWindow is the query window used when a client passes no bounds.
func (a *Aggregator) DefaultWindow(now time.Time) ics.Window {
	return ics.Window{
		Start: now.AddDate(0, 0, -a.pastDays),
		End:   now.AddDate(0, 0, a.futureDays),
	}
}

// Schedule fetches and materializes every source concurrently and returns
// the merged, start-sorted schedule for the window.
//
// A source failing to fetch or parse contributes zero events; the response
// still lists it in the calendars metadata so the display legend stays
// complete. Only an invalid window is an error.
func (a *Aggregator) Schedule(ctx context.Context, w ics.Window) (*model.Schedule, error) {
	if !w.Valid() {
		return nil, errors.New("aggregate: window end is not after window start")
	}

	// One slot per source keeps merge order deterministic regardless of
	// which goroutine finishes first.
	perSource := make([][]model.CalendarEvent, len(a.sources))

	var wg sync.WaitGroup
	for i, src := range a.sources {
		wg.Add(1)
		go func(i int, src config.CalendarConfig) {
			defer wg.Done()
			perSource[i] = a.collect(ctx, src, w)
		}(i, src)
	}
	wg.Wait()

	var events []model.CalendarEvent
	for _, evs := range perSource {
		events = append(events, evs...)
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})
	if events == nil {
		events = []model.CalendarEvent{}
	}

	calendars := make([]model.CalendarInfo, 0, len(a.sources))
	for _, src := range a.sources {
		calendars = append(calendars, model.CalendarInfo{Name: src.Name, Color: src.Color})
	}

	return &model.Schedule{
		Calendars: calendars,
		Events:    events,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// collect runs the pipeline for one source, folding every failure into a
// zero contribution.
func (a *Aggregator) collect(ctx context.Context, src config.CalendarConfig, w ics.Window) []model.CalendarEvent {
	body, fromCache, err := a.fetcher.Fetch(ctx, src.Name, src.URL)
	if err != nil {
		appLog.Error("calendar fetch failed, contributing no events", err, "calendar", src.Name)
		return nil
	}

	events, err := ics.BuildEvents(ics.SourceData{
		Name:  src.Name,
		Color: src.Color,
		Raw:   string(body),
	}, ics.Options{
		Window:         w,
		Location:       a.loc,
		MaxOccurrences: a.maxOccurrences,
	})
	if err != nil {
		appLog.Error("calendar parse failed, contributing no events", err, "calendar", src.Name)
		return nil
	}

	appLog.Debug("calendar materialized", "calendar", src.Name, "events", len(events), "from_cache", fromCache)
	return events
}
