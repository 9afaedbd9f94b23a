package httputil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseJSONOrError(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	t.Run("valid", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"i-95"}`))
		rec := httptest.NewRecorder()
		var p payload
		if !ParseJSONOrError(rec, r, &p) {
			t.Fatal("ParseJSONOrError returned false for valid JSON")
		}
		if p.Name != "i-95" {
			t.Errorf("Name = %q", p.Name)
		}
	})

	t.Run("invalid", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{not json`))
		rec := httptest.NewRecorder()
		var p payload
		if ParseJSONOrError(rec, r, &p) {
			t.Fatal("ParseJSONOrError returned true for invalid JSON")
		}
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestParseQueryFloat(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?lat=40.7128&radius_km=oops", nil)

	lat, err := ParseQueryFloat(r, "lat", 0)
	if err != nil || lat != 40.7128 {
		t.Errorf("lat = %v, %v; want 40.7128, nil", lat, err)
	}

	missing, err := ParseQueryFloat(r, "lng", 5)
	if err != nil || missing != 5 {
		t.Errorf("default = %v, %v; want 5, nil", missing, err)
	}

	if _, err := ParseQueryFloat(r, "radius_km", 0); err == nil {
		t.Error("expected error for non-numeric value")
	}
}

func TestRequireQueryFloat(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?lng=-74.006", nil)

	lng, err := RequireQueryFloat(r, "lng")
	if err != nil || lng != -74.006 {
		t.Errorf("lng = %v, %v", lng, err)
	}

	if _, err := RequireQueryFloat(r, "lat"); err == nil {
		t.Error("expected error for missing param")
	}
}

func TestRequireQueryString(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?origin=40.0000,-74.0000", nil)

	if v, err := RequireQueryString(r, "origin"); err != nil || v != "40.0000,-74.0000" {
		t.Errorf("origin = %q, %v", v, err)
	}
	if _, err := RequireQueryString(r, "destination"); err == nil {
		t.Error("expected error for missing param")
	}
}

func TestParseQueryInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=25", nil)

	if v, err := ParseQueryInt(r, "limit", 10); err != nil || v != 25 {
		t.Errorf("limit = %d, %v", v, err)
	}
	if v, err := ParseQueryInt(r, "offset", 10); err != nil || v != 10 {
		t.Errorf("offset default = %d, %v", v, err)
	}
}
