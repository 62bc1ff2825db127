package ics

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedDocument is returned when BEGIN/END nesting does not balance
// and no component tree can be built.
var ErrMalformedDocument = errors.New("ics: malformed document")

// RawProperty is a single logical content line, split into its name, its
// parameters and its value. It carries no interpretation; higher stages
// decide what DTSTART or RRULE mean.
type RawProperty struct {
	Name   string
	Params map[string]string
	Value  string
}

// Param returns the named parameter value, or "" if absent.
// Parameter names are matched case-insensitively per RFC 5545.
func (p RawProperty) Param(name string) string {
	v, _ := lookupParam(p.Params, name)
	return v
}

// Component is a named ICS component (VCALENDAR, VEVENT, ...) holding its
// properties and child components in source order.
type Component struct {
	Name     string
	Props    []RawProperty
	Children []*Component
}

// Prop returns the first property with the given name. Later duplicates are
// intentionally ignored; scalar lookups use first-match semantics.
func (c *Component) Prop(name string) (RawProperty, bool) {
	for _, p := range c.Props {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return RawProperty{}, false
}

// PropValue returns the value of the first property with the given name,
// or "" if the component has no such property.
func (c *Component) PropValue(name string) string {
	p, ok := c.Prop(name)
	if !ok {
		return ""
	}
	return p.Value
}

// PropsNamed returns all properties with the given name, in source order.
// EXDATE legally repeats, so callers need more than first-match here.
func (c *Component) PropsNamed(name string) []RawProperty {
	var out []RawProperty
	for _, p := range c.Props {
		if strings.EqualFold(p.Name, name) {
			out = append(out, p)
		}
	}
	return out
}

// Events returns the component's direct VEVENT children in source order.
func (c *Component) Events() []*Component {
	var out []*Component
	for _, child := range c.Children {
		if child.Name == "VEVENT" {
			out = append(out, child)
		}
	}
	return out
}

// ParseDocument parses raw ICS text into its root component tree.
//
// Lines are unfolded first, then grouped into components on BEGIN/END
// markers. The returned component is the root VCALENDAR (the first
// top-level component, whatever its name; feeds that omit the VCALENDAR
// wrapper around a lone VEVENT still parse). Unbalanced BEGIN/END nesting
// yields ErrMalformedDocument.
func ParseDocument(raw string) (*Component, error) {
	lines := UnfoldLines(raw)
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrMalformedDocument)
	}

	var root *Component
	var stack []*Component

	for _, line := range lines {
		prop, ok := parseContentLine(line)
		if !ok {
			// Not a NAME:VALUE line at all; skip rather than abort.
			continue
		}

		switch {
		case strings.EqualFold(prop.Name, "BEGIN"):
			comp := &Component{Name: strings.ToUpper(strings.TrimSpace(prop.Value))}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, comp)
			} else if root == nil {
				root = comp
			} else {
				// A second top-level component; feeds occasionally
				// concatenate calendars. Fold it into the first root.
				root.Children = append(root.Children, comp)
			}
			stack = append(stack, comp)

		case strings.EqualFold(prop.Name, "END"):
			name := strings.ToUpper(strings.TrimSpace(prop.Value))
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: END:%s without matching BEGIN", ErrMalformedDocument, name)
			}
			top := stack[len(stack)-1]
			if top.Name != name {
				return nil, fmt.Errorf("%w: END:%s closes BEGIN:%s", ErrMalformedDocument, name, top.Name)
			}
			stack = stack[:len(stack)-1]

		default:
			if len(stack) == 0 {
				// Property outside any component (stray PRODID etc).
				continue
			}
			top := stack[len(stack)-1]
			top.Props = append(top.Props, prop)
		}
	}

	if len(stack) != 0 {
		return nil, fmt.Errorf("%w: %d unclosed component(s)", ErrMalformedDocument, len(stack))
	}
	if root == nil {
		return nil, fmt.Errorf("%w: no components found", ErrMalformedDocument)
	}
	return root, nil
}

// parseContentLine splits one unfolded line into name, parameters and value.
// The split happens at the first ':' outside double quotes; parameters are
// ';'-delimited KEY=VALUE pairs between the name and that colon.
func parseContentLine(line string) (RawProperty, bool) {
	sep := indexUnquoted(line, ':')
	if sep < 0 {
		return RawProperty{}, false
	}

	head := line[:sep]
	value := line[sep+1:]

	var params map[string]string
	name := head
	if i := indexUnquoted(head, ';'); i >= 0 {
		name = head[:i]
		params = parseParams(head[i+1:])
	}

	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return RawProperty{}, false
	}

	return RawProperty{Name: name, Params: params, Value: value}, true
}

// parseParams parses ';'-delimited KEY=VALUE parameter pairs, stripping
// optional double quotes around values. A bare KEY without '=' is kept with
// an empty value.
func parseParams(s string) map[string]string {
	params := make(map[string]string)
	for len(s) > 0 {
		part := s
		if i := indexUnquoted(s, ';'); i >= 0 {
			part = s[:i]
			s = s[i+1:]
		} else {
			s = ""
		}
		if part == "" {
			continue
		}
		key, val, found := strings.Cut(part, "=")
		key = strings.ToUpper(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		if found {
			params[key] = strings.Trim(val, `"`)
		} else {
			params[key] = ""
		}
	}
	return params
}

// indexUnquoted returns the index of the first c in s that is not inside a
// double-quoted span, or -1.
func indexUnquoted(s string, c byte) int {
	inQuotes := false
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '"':
			inQuotes = !inQuotes
		case s[i] == c && !inQuotes:
			return i
		}
	}
	return -1
}
