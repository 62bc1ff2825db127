package ics

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// dateTimeLayouts are tried in order for non-UTC date-time values. Feeds
// produced by lenient exporters occasionally drop the seconds.
var dateTimeLayouts = []string{
	"20060102T150405",
	"20060102T1504",
}

const dateLayout = "20060102"

// ParseDateTime parses an ICS DATE or DATE-TIME value.
//
// Resolution order:
//   - "...Z" suffix: UTC.
//   - TZID parameter naming a loadable IANA zone: that zone.
//   - otherwise (floating time or unknown TZID): loc.
//
// allDay reports whether the value was a bare date (or carried VALUE=DATE).
func ParseDateTime(value string, params map[string]string, loc *time.Location) (t time.Time, allDay bool, err error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false, errors.New("empty date-time value")
	}
	if loc == nil {
		loc = time.Local
	}

	if tzid, ok := lookupParam(params, "TZID"); ok && tzid != "" {
		if zone, lerr := time.LoadLocation(tzid); lerr == nil {
			loc = zone
		}
	}

	forceDate := false
	if v, ok := lookupParam(params, "VALUE"); ok && strings.EqualFold(v, "DATE") {
		forceDate = true
	}

	if strings.HasSuffix(value, "Z") {
		for _, layout := range dateTimeLayouts {
			if t, err = time.Parse(layout+"Z", value); err == nil {
				return t, forceDate, nil
			}
		}
		return time.Time{}, false, fmt.Errorf("unparseable UTC date-time %q", value)
	}

	if strings.ContainsRune(value, 'T') && !forceDate {
		for _, layout := range dateTimeLayouts {
			if t, err = time.ParseInLocation(layout, value, loc); err == nil {
				return t, false, nil
			}
		}
		return time.Time{}, false, fmt.Errorf("unparseable date-time %q", value)
	}

	// Bare 8-digit date: an all-day value anchored at local midnight.
	if t, err = time.ParseInLocation(dateLayout, value, loc); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("unparseable date %q", value)
}

// ParseDuration parses an RFC 5545 DURATION value such as "PT1H30M",
// "-PT15M", "P2D" or "P1DT12H".
func ParseDuration(value string) (time.Duration, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return 0, errors.New("empty duration value")
	}

	negative := false
	switch s[0] {
	case '-':
		negative = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	if len(s) == 0 || s[0] != 'P' {
		return 0, fmt.Errorf("duration %q does not start with P", value)
	}
	s = s[1:]

	var total time.Duration
	inTime := false
	sawComponent := false
	num := 0
	haveNum := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			num = num*10 + int(c-'0')
			haveNum = true
		case c == 'T':
			if haveNum {
				return 0, fmt.Errorf("misplaced T in duration %q", value)
			}
			inTime = true
		default:
			if !haveNum {
				return 0, fmt.Errorf("designator %q without digits in duration %q", string(c), value)
			}
			var unit time.Duration
			switch {
			case c == 'W' && !inTime:
				unit = 7 * 24 * time.Hour
			case c == 'D' && !inTime:
				unit = 24 * time.Hour
			case c == 'H' && inTime:
				unit = time.Hour
			case c == 'M' && inTime:
				unit = time.Minute
			case c == 'S' && inTime:
				unit = time.Second
			default:
				return 0, fmt.Errorf("unexpected designator %q in duration %q", string(c), value)
			}
			total += time.Duration(num) * unit
			num = 0
			haveNum = false
			sawComponent = true
		}
	}

	if haveNum {
		return 0, fmt.Errorf("trailing digits in duration %q", value)
	}
	if !sawComponent {
		return 0, fmt.Errorf("duration %q has no components", value)
	}
	if negative {
		total = -total
	}
	return total, nil
}

// UnescapeText reverses RFC 5545 TEXT escaping (\n, \N, \,, \;, \\).
func UnescapeText(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n', 'N':
			b.WriteByte('\n')
		case ',', ';', '\\':
			b.WriteByte(s[i])
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// lookupParam finds a parameter case-insensitively in a possibly nil map.
func lookupParam(params map[string]string, name string) (string, bool) {
	for k, v := range params {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}
