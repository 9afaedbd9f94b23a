// Package replication fans the dataset out to remote backends without ever
// blocking the local write path. Per-event replication is at-most-once:
// each pattern, hotspot and analysis is pushed to every configured backend
// through a bounded worker pool, and a failed attempt is logged and
// forgotten. Consolidated backups run on a cron schedule plus once shortly
// after startup, uploading one self-contained artifact per archive backend.
package replication
