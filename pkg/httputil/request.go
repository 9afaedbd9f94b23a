package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// ParseJSON decodes JSON from the request body into dest.
func ParseJSON(r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// ParseJSONOrError decodes JSON and writes a 400 response on failure.
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := ParseJSON(r, dest); err != nil {
		WriteBadRequest(w, err.Error())
		return false
	}
	return true
}

// ParseQueryString extracts a string query parameter with a default.
func ParseQueryString(r *http.Request, key, defaultVal string) string {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// ParseQueryInt extracts and parses an integer query parameter.
func ParseQueryInt(r *http.Request, key string, defaultVal int) (int, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for query param %s: %s", key, str)
	}
	return val, nil
}

// ParseQueryFloat extracts and parses a float query parameter. Coordinates
// and radii arrive this way.
func ParseQueryFloat(r *http.Request, key string, defaultVal float64) (float64, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number for query param %s: %s", key, str)
	}
	return val, nil
}

// RequireQueryFloat extracts a float query parameter that must be present.
func RequireQueryFloat(r *http.Request, key string) (float64, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return 0, fmt.Errorf("missing query param: %s", key)
	}
	val, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number for query param %s: %s", key, str)
	}
	return val, nil
}

// RequireQueryString extracts a string query parameter that must be present.
func RequireQueryString(r *http.Request, key string) (string, error) {
	val := r.URL.Query().Get(key)
	if val == "" {
		return "", fmt.Errorf("missing query param: %s", key)
	}
	return val, nil
}
