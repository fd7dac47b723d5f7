// Package httpx holds the JSON response helpers shared by plugin HTTP
// handlers. Errors use the RFC 9457 problem+json shape.
package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

// WriteJSON writes data as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes a problem+json error response.
func WriteError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	slug := strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "-"))
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "https://plainview.io/problems/" + slug,
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}

// ParseLimit reads the limit query parameter, clamped to (0, 1000].
func ParseLimit(r *http.Request, defaultLimit int) int {
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 && n <= 1000 {
			return n
		}
	}
	return defaultLimit
}

// DecodeJSON decodes the request body into dst, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
