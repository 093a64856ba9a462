package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/officeflow/attendance/internal/auth"
)

type emailKey struct{}

// RequireAuth validates the Bearer token and stores the authenticated
// email in the request context.
func RequireAuth(tokens *auth.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				unauthorized(w, "missing token")
				return
			}

			email, err := tokens.Verify(strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				unauthorized(w, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), emailKey{}, email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthenticatedEmail returns the email set by RequireAuth, empty if the
// request did not pass through it.
func AuthenticatedEmail(ctx context.Context) string {
	email, _ := ctx.Value(emailKey{}).(string)
	return email
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
