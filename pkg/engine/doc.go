// Package engine wires the write path together: extract a pattern from
// each incoming analysis, fold it into the per-location hotspot, persist
// through the bounded store, and hand the records to the replication
// scheduler. One Engine instance is constructed at startup and passed to
// callers; there is no ambient global state.
package engine
