package middleware

import (
	"net/http"
	"strings"
)

// TokenVerifier validates a bearer token. Satisfied by *auth.Authenticator.
type TokenVerifier interface {
	Verify(token string) error
}

// Auth returns a handler that requires a valid Bearer token before
// delegating to next. Responds with 401 if the header is missing, not a
// Bearer header, or fails verification; no downstream work happens first.
func Auth(verifier TokenVerifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			unauthorized(w)
			return
		}
		if err := verifier.Verify(strings.TrimPrefix(authHeader, "Bearer ")); err != nil {
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
}
