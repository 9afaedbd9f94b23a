// Package hotspots maintains the rolling per-location aggregates derived
// from the pattern stream. The arithmetic here is a compatibility contract:
// the incremental mean is exact, the frequency counter only ever goes up,
// and the seasonal value is a two-point average of old and new.
package hotspots
