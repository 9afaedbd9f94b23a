// Package analytics is the read side of the engine: time-bucketed and
// ranked views over a consistent store snapshot, geographic nearby-hotspot
// queries, and a two-level result cache (in-process LRU in front of an
// optional Redis). Cache keys embed the store version, so every write
// naturally invalidates all cached reports without explicit purging.
package analytics
