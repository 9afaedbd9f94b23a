package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/roadpulse/roadpulse/pkg/analytics"
	"github.com/roadpulse/roadpulse/pkg/engine"
	"github.com/roadpulse/roadpulse/pkg/observability"
	"github.com/roadpulse/roadpulse/pkg/store"
	"github.com/roadpulse/roadpulse/pkg/traffic"
)

var downtown = traffic.Location{Latitude: 40.7128, Longitude: -74.006}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := observability.NewLogger(observability.ErrorLevel, &bytes.Buffer{})

	st, err := store.Open(store.DefaultConfig(filepath.Join(t.TempDir(), "store.json")), logger, nil)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}

	svc := analytics.NewService(st, nil, logger, nil)
	eng := engine.New(traffic.NewExtractor(nil), st, svc, nil, logger, nil)
	return NewServer(eng, logger, nil)
}

func recordOne(t *testing.T, srv *Server, loc traffic.Location, congestion float64) traffic.Pattern {
	t.Helper()
	body := fmt.Sprintf(`{
		"observation": {"location": {"latitude": %f, "longitude": %f}, "samples": [{"speed": 25}], "timeOfDay": "morning"},
		"result": {"severity": "high", "predictedCongestion": %f, "confidence": 0.9, "summary": "congested"}
	}`, loc.Latitude, loc.Longitude, congestion)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("record analysis status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var p traffic.Pattern
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode pattern: %v", err)
	}
	return p
}

func TestRecordAnalysisHandler(t *testing.T) {
	srv := newTestServer(t)

	p := recordOne(t, srv, downtown, 85)
	if p.ID == "" {
		t.Error("pattern ID not assigned")
	}
	if p.Severity != traffic.SeverityHigh {
		t.Errorf("Severity = %q, want high", p.Severity)
	}
	if p.CongestionLevel != 85 {
		t.Errorf("CongestionLevel = %f, want 85", p.CongestionLevel)
	}
}

func TestRecordAnalysisHandler_Invalid(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{not json`},
		{"latitude out of range", `{"observation": {"location": {"latitude": 95, "longitude": 0}}, "result": {"severity": "low"}}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/analyses", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestRecordRouteHandler(t *testing.T) {
	srv := newTestServer(t)

	body := `{
		"origin": {"latitude": 40.7128, "longitude": -74.006},
		"destination": {"latitude": 40.758, "longitude": -73.9855},
		"description": "take the FDR"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/routes", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var route traffic.AlternativeRoute
	if err := json.Unmarshal(rec.Body.Bytes(), &route); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if route.Description != "take the FDR" {
		t.Errorf("Description = %q", route.Description)
	}
}

func TestGetAnalyticsHandler(t *testing.T) {
	srv := newTestServer(t)
	recordOne(t, srv, downtown, 80)
	recordOne(t, srv, downtown, 60)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/analytics?location="+downtown.Key(), nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var report analytics.Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if report.TotalDataPoints != 2 {
		t.Errorf("TotalDataPoints = %d, want 2", report.TotalDataPoints)
	}
}

func TestGetNearbyHotspotsHandler(t *testing.T) {
	srv := newTestServer(t)
	recordOne(t, srv, downtown, 90)

	t.Run("within radius", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/hotspots/nearby?lat=40.7128&lng=-74.006&radius_km=5", nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var hotspots []analytics.NearbyHotspot
		if err := json.Unmarshal(rec.Body.Bytes(), &hotspots); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(hotspots) != 1 {
			t.Fatalf("len = %d, want 1", len(hotspots))
		}
	})

	t.Run("missing lat", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/hotspots/nearby?lng=-74.006", nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("negative radius", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/hotspots/nearby?lat=40.7&lng=-74.0&radius_km=-2", nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestGetBestRoutesHandler(t *testing.T) {
	srv := newTestServer(t)

	body := `{
		"origin": {"latitude": 40.7128, "longitude": -74.006},
		"destination": {"latitude": 40.758, "longitude": -73.9855},
		"description": "take the FDR"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/routes", strings.NewReader(body))
	srv.ServeHTTP(httptest.NewRecorder(), req)

	t.Run("found", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/routes/best?origin=40.7128,-74.006&destination=40.758,-73.9855", nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var routes []*traffic.AlternativeRoute
		if err := json.Unmarshal(rec.Body.Bytes(), &routes); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(routes) != 1 {
			t.Fatalf("len = %d, want 1", len(routes))
		}
	})

	t.Run("bad origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/routes/best?origin=oops&destination=40.758,-73.9855", nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestStorageStatsHandler(t *testing.T) {
	srv := newTestServer(t)
	recordOne(t, srv, downtown, 75)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/storage/stats", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var stats store.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.PatternCount != 1 || stats.HotspotCount != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestExportImportHandlers(t *testing.T) {
	src := newTestServer(t)
	recordOne(t, src, downtown, 70)

	exportReq := httptest.NewRequest(http.MethodGet, "/api/v1/export", nil)
	exportRec := httptest.NewRecorder()
	src.ServeHTTP(exportRec, exportReq)
	if exportRec.Code != http.StatusOK {
		t.Fatalf("export status = %d", exportRec.Code)
	}

	dst := newTestServer(t)
	importReq := httptest.NewRequest(http.MethodPost, "/api/v1/import", bytes.NewReader(exportRec.Body.Bytes()))
	importRec := httptest.NewRecorder()
	dst.ServeHTTP(importRec, importReq)
	if importRec.Code != http.StatusOK {
		t.Fatalf("import status = %d, body = %s", importRec.Code, importRec.Body.String())
	}

	statsReq := httptest.NewRequest(http.MethodGet, "/api/v1/storage/stats", nil)
	statsRec := httptest.NewRecorder()
	dst.ServeHTTP(statsRec, statsReq)
	var stats store.Stats
	if err := json.Unmarshal(statsRec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.PatternCount != 1 {
		t.Errorf("imported PatternCount = %d, want 1", stats.PatternCount)
	}
}

func TestImportHandler_BadArtifact(t *testing.T) {
	srv := newTestServer(t)

	body := `{"type": "something_else", "version": "1.0"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/import", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestBackupHandlers_NoScheduler(t *testing.T) {
	srv := newTestServer(t)

	postRec := httptest.NewRecorder()
	srv.ServeHTTP(postRec, httptest.NewRequest(http.MethodPost, "/api/v1/backups", nil))
	if postRec.Code != http.StatusOK {
		t.Errorf("trigger status = %d", postRec.Code)
	}

	getRec := httptest.NewRecorder()
	srv.ServeHTTP(getRec, httptest.NewRequest(http.MethodGet, "/api/v1/backups", nil))
	if getRec.Code != http.StatusOK {
		t.Errorf("list status = %d", getRec.Code)
	}
}

func TestHandlerMiddleware(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/storage/stats", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header not set by middleware")
	}
}
