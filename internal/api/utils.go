package api

import (
	"encoding/json"
	"net/http"

	"ssoforge/pkg/apierr"
	"ssoforge/pkg/middleware"
	"ssoforge/pkg/store"
)

const maxBodyBytes = 1 << 20

func readJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		apierr.Write(w, apierr.Validation("Invalid request body"))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// requireAuth fetches the caller or writes a 401. Routes that accept
// anonymous callers use middleware.CallerFrom directly instead.
func requireAuth(w http.ResponseWriter, r *http.Request) *store.Account {
	a := middleware.CallerFrom(r.Context())
	if a == nil {
		apierr.Write(w, apierr.Unauthorized("This resource requires authentication"))
	}
	return a
}
