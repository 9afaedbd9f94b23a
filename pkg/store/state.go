package store

import (
	"sort"

	"github.com/roadpulse/roadpulse/pkg/traffic"
)

// State holds the four in-memory datasets the store owns.
type State struct {
	Patterns map[string][]*traffic.Pattern
	Hotspots map[string]*traffic.Hotspot
	Routes   map[string][]*traffic.AlternativeRoute
	Analyses map[string]*traffic.StoredAnalysis
}

// NewState returns an empty state with all maps allocated.
func NewState() *State {
	return &State{
		Patterns: make(map[string][]*traffic.Pattern),
		Hotspots: make(map[string]*traffic.Hotspot),
		Routes:   make(map[string][]*traffic.AlternativeRoute),
		Analyses: make(map[string]*traffic.StoredAnalysis),
	}
}

// Clone deep-copies the state. Patterns, routes and analyses are immutable
// once stored, so their pointers are shared; slices, maps and the mutable
// hotspot aggregates are copied.
func (s *State) Clone() *State {
	c := NewState()
	for k, list := range s.Patterns {
		c.Patterns[k] = append([]*traffic.Pattern(nil), list...)
	}
	for k, h := range s.Hotspots {
		c.Hotspots[k] = h.Clone()
	}
	for k, list := range s.Routes {
		c.Routes[k] = append([]*traffic.AlternativeRoute(nil), list...)
	}
	for k, a := range s.Analyses {
		c.Analyses[k] = a
	}
	return c
}

// PatternCount returns the total number of stored patterns.
func (s *State) PatternCount() int {
	var n int
	for _, list := range s.Patterns {
		n += len(list)
	}
	return n
}

// RouteCount returns the total number of stored routes.
func (s *State) RouteCount() int {
	var n int
	for _, list := range s.Routes {
		n += len(list)
	}
	return n
}

// AllPatterns returns every stored pattern, key order unspecified.
func (s *State) AllPatterns() []*traffic.Pattern {
	out := make([]*traffic.Pattern, 0, s.PatternCount())
	for _, list := range s.Patterns {
		out = append(out, list...)
	}
	return out
}

// HotspotKeys returns the hotspot keys in sorted order.
func (s *State) HotspotKeys() []string {
	keys := make([]string, 0, len(s.Hotspots))
	for k := range s.Hotspots {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
