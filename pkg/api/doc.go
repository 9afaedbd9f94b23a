// Package api exposes the traffic engine over HTTP.
//
// All routes live under /api/v1 and speak JSON:
//
//	POST /api/v1/analyses               record an analysis
//	POST /api/v1/routes                 record an alternative route
//	GET  /api/v1/analytics?location=    filtered or global analytics report
//	GET  /api/v1/hotspots/nearby        hotspots within a radius of a point
//	GET  /api/v1/routes/best            routes for an origin/destination pair
//	GET  /api/v1/storage/stats          local store occupancy
//	GET  /api/v1/export                 full state dump
//	POST /api/v1/import                 full state restore
//	POST /api/v1/backups                trigger a backup to all archives
//	GET  /api/v1/backups                most recent backup records
//
// Health and metrics endpoints are served from a separate port by the
// observability package.
package api
