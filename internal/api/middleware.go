package api

import (
	"context"
	"database/sql"
	"log"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/erazemk/oficina/internal/auth"
	"github.com/erazemk/oficina/internal/model"
	"github.com/erazemk/oficina/internal/store"
)

type contextKey string

const (
	claimsKey    contextKey = "claims"
	principalKey contextKey = "principal"
)

// AuthMiddleware validates the bearer JWT, rejects revoked tokens and loads
// the principal. The role comes from the profile, not the token, so a role
// change applies to sessions that are already open.
func AuthMiddleware(secret string, db *sql.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				jsonError(w, http.StatusUnauthorized, "missing or invalid authorization header")
				return
			}

			tokenStr := strings.TrimPrefix(header, "Bearer ")
			claims, err := auth.ValidateToken(secret, tokenStr)
			if err != nil {
				jsonError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			revoked, err := store.IsTokenRevoked(r.Context(), db, claims.ID)
			if err != nil {
				slog.Error("failed to check token revocation", "error", err)
				jsonError(w, http.StatusServiceUnavailable, "temporary failure, try again")
				return
			}
			if revoked {
				jsonError(w, http.StatusUnauthorized, "token has been revoked")
				return
			}

			user, err := store.GetUser(r.Context(), db, claims.UserID)
			if err != nil {
				slog.Error("failed to load principal", "error", err)
				jsonError(w, http.StatusServiceUnavailable, "temporary failure, try again")
				return
			}
			if user == nil {
				jsonError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = context.WithValue(ctx, principalKey, user.Principal())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole returns middleware that only lets principals with role through.
func RequireRole(role model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := GetPrincipal(r.Context())
			if p == nil {
				jsonError(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			if p.Role != role {
				slog.Warn("role check failed", "user", p.ID, "role", p.Role, "path", r.URL.Path)
				jsonError(w, http.StatusForbidden, "not permitted")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetClaims retrieves the JWT claims from the context.
func GetClaims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsKey).(*auth.Claims)
	return claims
}

// GetPrincipal retrieves the authenticated principal from the context.
func GetPrincipal(ctx context.Context) *model.Principal {
	p, _ := ctx.Value(principalKey).(*model.Principal)
	return p
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs HTTP requests with method, path, status, and duration.
// Public token paths are logged without the token.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("%s %s %d %s", r.Method, redactPath(r.URL.Path), rec.status, time.Since(start).Round(time.Millisecond))
	})
}

// redactPath hides the token segment of /public/{type}/{token} and
// /api/public/{type}/{token}.
func redactPath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p == "public" && i+2 < len(parts) {
			parts[i+2] = "***"
			break
		}
	}
	return strings.Join(parts, "/")
}
