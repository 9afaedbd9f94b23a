// Package store persists the four core datasets (patterns, hotspots,
// routes, stored analyses) to one size-capped JSON file. Writes go through
// a single mutex; readers get deep-copied snapshots. When the serialized
// document outgrows the cap the store evicts the oldest half of each
// capped section and retries, so disk usage stays bounded at the cost of
// silently dropping old data. Hotspot aggregates are never evicted.
package store
