// Package config loads application configuration from ROADPULSE_* environment
// variables with sensible defaults for local development.
//
// Usage:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// The replication backends (Postgres, S3, Redis) are all optional: an empty
// URL or bucket simply disables that backend. The local store and HTTP
// server always run.
package config
