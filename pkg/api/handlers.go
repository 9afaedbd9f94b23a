package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/roadpulse/roadpulse/pkg/httputil"
	"github.com/roadpulse/roadpulse/pkg/store"
	"github.com/roadpulse/roadpulse/pkg/traffic"
)

// maxImportBytes bounds import payloads well above the store's own cap.
const maxImportBytes = 32 * 1024 * 1024

// AnalysisRequest is the body of POST /api/v1/analyses.
type AnalysisRequest struct {
	Observation traffic.Observation    `json:"observation"`
	Result      traffic.AnalysisResult `json:"result"`
}

// RouteRequest is the body of POST /api/v1/routes.
type RouteRequest struct {
	Origin      traffic.Location `json:"origin"`
	Destination traffic.Location `json:"destination"`
	Description string           `json:"description"`
}

// recordAnalysis handles POST /api/v1/analyses
func (s *Server) recordAnalysis(w http.ResponseWriter, r *http.Request) {
	var req AnalysisRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	pattern, err := s.engine.RecordAnalysis(r.Context(), req.Observation, req.Result)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	httputil.WriteCreated(w, pattern)
}

// recordRoute handles POST /api/v1/routes
func (s *Server) recordRoute(w http.ResponseWriter, r *http.Request) {
	var req RouteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	route, err := s.engine.RecordRoute(r.Context(), req.Origin, req.Destination, req.Description)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	httputil.WriteCreated(w, route)
}

// getAnalytics handles GET /api/v1/analytics?location=<key>
func (s *Server) getAnalytics(w http.ResponseWriter, r *http.Request) {
	locationKey := httputil.ParseQueryString(r, "location", "")
	report := s.engine.Analytics(r.Context(), locationKey)
	httputil.WriteSuccess(w, report)
}

// getNearbyHotspots handles GET /api/v1/hotspots/nearby?lat=&lng=&radius_km=
func (s *Server) getNearbyHotspots(w http.ResponseWriter, r *http.Request) {
	lat, err := httputil.RequireQueryFloat(r, "lat")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	lng, err := httputil.RequireQueryFloat(r, "lng")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	radiusKm, err := httputil.ParseQueryFloat(r, "radius_km", 10)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if radiusKm <= 0 {
		httputil.WriteBadRequest(w, "radius_km must be positive")
		return
	}

	hotspots := s.engine.NearbyHotspots(traffic.Location{Latitude: lat, Longitude: lng}, radiusKm)
	httputil.WriteSuccess(w, hotspots)
}

// getBestRoutes handles GET /api/v1/routes/best?origin=<lat,lng>&destination=<lat,lng>
func (s *Server) getBestRoutes(w http.ResponseWriter, r *http.Request) {
	origin, err := parseLocationParam(r, "origin")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	destination, err := parseLocationParam(r, "destination")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	routes := s.engine.BestRoutes(origin, destination)
	httputil.WriteSuccess(w, routes)
}

// getStorageStats handles GET /api/v1/storage/stats
func (s *Server) getStorageStats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, s.engine.StorageStats())
}

// exportAll handles GET /api/v1/export
func (s *Server) exportAll(w http.ResponseWriter, r *http.Request) {
	data, err := s.engine.ExportAll()
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="traffic-backup.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// importAll handles POST /api/v1/import
func (s *Server) importAll(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	if err := s.engine.ImportAll(data); err != nil {
		if errors.Is(err, store.ErrFormat) {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		httputil.WriteInternalError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]string{"status": "imported"})
}

// triggerBackup handles POST /api/v1/backups
func (s *Server) triggerBackup(w http.ResponseWriter, r *http.Request) {
	records, err := s.engine.Backup(r.Context())
	if err != nil {
		httputil.WriteErrorMessage(w, http.StatusBadGateway, err.Error())
		return
	}
	httputil.WriteSuccess(w, records)
}

// listBackups handles GET /api/v1/backups
func (s *Server) listBackups(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, s.engine.LastBackups())
}

// parseLocationParam parses a "lat,lng" query parameter into a Location.
func parseLocationParam(r *http.Request, key string) (traffic.Location, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return traffic.Location{}, fmt.Errorf("missing query param: %s", key)
	}

	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return traffic.Location{}, fmt.Errorf("invalid location for %s: %s (want lat,lng)", key, raw)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return traffic.Location{}, fmt.Errorf("invalid latitude for %s: %s", key, parts[0])
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return traffic.Location{}, fmt.Errorf("invalid longitude for %s: %s", key, parts[1])
	}

	return traffic.Location{Latitude: lat, Longitude: lng}, nil
}
