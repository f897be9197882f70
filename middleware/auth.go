package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
)

// EventSecretMiddleware admits requests carrying the shared event secret, either as a
// bearer token or in the X-Events-Secret header. An empty secret disables the check.
func EventSecretMiddleware(secret string) func(http.Handler) http.Handler {
	if secret == "" {
		log.Warn("EVENTS_SECRET not set, event endpoints are unauthenticated")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get("X-Events-Secret")
			if provided == "" {
				authHeader := r.Header.Get("Authorization")
				token := strings.TrimPrefix(authHeader, "Bearer ")
				if token == authHeader {
					respondWithError(w, http.StatusUnauthorized, "Authorization header required")
					return
				}
				provided = token
			}

			if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
				log.WithField("path", r.URL.Path).Warn("Rejected event request with invalid secret")
				respondWithError(w, http.StatusUnauthorized, "Invalid secret")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
