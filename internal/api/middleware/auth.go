package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type contextKey string

const ownerContextKey contextKey = "owner"

// OwnerHeader carries the authenticated user's identifier, set by the edge
// proxy after session validation.
const OwnerHeader = "X-User-ID"

// OwnerFromContext returns the authenticated owner id, or "" when the
// request was not authenticated.
func OwnerFromContext(ctx context.Context) string {
	o, _ := ctx.Value(ownerContextKey).(string)
	return o
}

// OwnerAuth requires the owner identity header on every request it wraps.
// Identity verification itself happens upstream; this layer only rejects
// requests that arrive without one.
func OwnerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ownerID := strings.TrimSpace(r.Header.Get(OwnerHeader))
		if ownerID == "" {
			writeError(w, http.StatusUnauthorized, "missing user identity header")
			return
		}

		ctx := context.WithValue(r.Context(), ownerContextKey, ownerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
