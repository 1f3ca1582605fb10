package config

import (
	"fmt"
	"strings"
)

// WaitEvent names a page state the renderer waits for after navigation.
type WaitEvent string

const (
	WaitLoad             WaitEvent = "load"
	WaitDOMContentLoaded WaitEvent = "domcontentloaded"
	WaitNetworkIdle      WaitEvent = "networkidle"
	WaitNetworkIdle0     WaitEvent = "networkidle0"
	WaitNetworkIdle2     WaitEvent = "networkidle2"
)

var knownWaitEvents = []WaitEvent{
	WaitLoad,
	WaitDOMContentLoaded,
	WaitNetworkIdle,
	WaitNetworkIdle0,
	WaitNetworkIdle2,
}

// WaitCondition is a non-empty set of wait events; navigation is complete
// when all of them fired.
type WaitCondition struct {
	events []WaitEvent
}

// ParseWaitCondition accepts a single event name or a comma separated
// combination of distinct names, e.g. "load,networkidle2".
func ParseWaitCondition(raw string) (WaitCondition, error) {
	parts := strings.Split(raw, ",")
	seen := make(map[WaitEvent]struct{}, len(parts))
	events := make([]WaitEvent, 0, len(parts))

	for _, part := range parts {
		name := WaitEvent(strings.ToLower(strings.TrimSpace(part)))
		if !isKnownWaitEvent(name) {
			return WaitCondition{}, fmt.Errorf("%w: %q (expected one of %s)", ErrInvalidWaitCondition, raw, knownWaitEventList())
		}
		if _, dup := seen[name]; dup {
			return WaitCondition{}, fmt.Errorf("%w: %q lists %s twice", ErrInvalidWaitCondition, raw, name)
		}
		seen[name] = struct{}{}
		events = append(events, name)
	}
	return WaitCondition{events: events}, nil
}

// MustParseWaitCondition panics on invalid input. Meant for constants and tests.
func MustParseWaitCondition(raw string) WaitCondition {
	wc, err := ParseWaitCondition(raw)
	if err != nil {
		panic(err)
	}
	return wc
}

func (w WaitCondition) Events() []WaitEvent {
	events := make([]WaitEvent, len(w.events))
	copy(events, w.events)
	return events
}

func (w WaitCondition) IsZero() bool {
	return len(w.events) == 0
}

func (w WaitCondition) String() string {
	names := make([]string, len(w.events))
	for i, e := range w.events {
		names[i] = string(e)
	}
	return strings.Join(names, ",")
}

func isKnownWaitEvent(e WaitEvent) bool {
	for _, known := range knownWaitEvents {
		if e == known {
			return true
		}
	}
	return false
}

func knownWaitEventList() string {
	names := make([]string, len(knownWaitEvents))
	for i, e := range knownWaitEvents {
		names[i] = string(e)
	}
	return strings.Join(names, ", ")
}

// ScopeMode selects how the scope prefix is derived when none is given.
type ScopeMode string

const (
	// ScopeModePrefix scopes the crawl to the seed's parent directory.
	ScopeModePrefix ScopeMode = "prefix"
	// ScopeModeHost scopes the crawl to the seed's origin.
	ScopeModeHost ScopeMode = "host"
)

func ParseScopeMode(raw string) (ScopeMode, error) {
	switch ScopeMode(strings.ToLower(strings.TrimSpace(raw))) {
	case ScopeModePrefix:
		return ScopeModePrefix, nil
	case ScopeModeHost:
		return ScopeModeHost, nil
	default:
		return "", fmt.Errorf("%w: %q (expected prefix or host)", ErrInvalidScopeMode, raw)
	}
}
