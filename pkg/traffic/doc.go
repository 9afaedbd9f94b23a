// Package traffic defines the core domain model for RoadPulse: immutable
// traffic patterns, rolling hotspot aggregates, alternative routes, and the
// pattern extractor that derives calendar context from raw analyses.
//
// A location key is latitude/longitude rounded to 4 decimal places, joined
// with a comma. All per-location grouping in the system hangs off that key.
package traffic
