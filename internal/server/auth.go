package server

import (
	"context"
	"encoding/json"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"

	"taskdeck/internal/engine"
)

const tokenCookie = "token"

type AuthConfig struct {
	// CookieSecure marks the token cookie Secure; enable behind HTTPS.
	CookieSecure bool
}

type userKey struct{}

func withUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// actorIDFromContext returns the authenticated user id or a 401.
func actorIDFromContext(ctx context.Context) (string, huma.StatusError) {
	if id, ok := ctx.Value(userKey{}).(string); ok && id != "" {
		return id, nil
	}
	return "", newAPIError(http.StatusUnauthorized, "Not authorized", "authentication required")
}

func publicPaths(basePath string) map[string]struct{} {
	return map[string]struct{}{
		path.Join(basePath, "health"):        {},
		path.Join(basePath, "auth/register"): {},
		path.Join(basePath, "auth/login"):    {},
		path.Join(basePath, "auth/logout"):   {},
		path.Join(basePath, "openapi.json"):  {},
		"/docs":                              {},
	}
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// requestToken prefers the Authorization header and falls back to the token
// cookie set by login.
func requestToken(req *http.Request) (string, bool) {
	if authz := strings.TrimSpace(req.Header.Get("Authorization")); authz != "" {
		return bearerToken(authz)
	}
	if c, err := req.Cookie(tokenCookie); err == nil && c.Value != "" {
		return c.Value, true
	}
	return "", false
}

func newAuthMiddleware(basePath string, e engine.Engine, log logrus.FieldLogger) func(http.Handler) http.Handler {
	public := publicPaths(basePath)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !underBasePath(req.URL.Path, basePath) || req.Method == http.MethodOptions {
				next.ServeHTTP(w, req)
				return
			}
			if _, ok := public[strings.TrimSuffix(req.URL.Path, "/")]; ok {
				next.ServeHTTP(w, req)
				return
			}
			token, ok := requestToken(req)
			if !ok {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "Not authorized", "no token provided"))
				return
			}
			userID, err := e.Authenticate(token)
			if err != nil {
				log.WithError(err).WithField("path", req.URL.Path).Debug("rejected token")
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "Not authorized", err.Error()))
				return
			}
			next.ServeHTTP(w, req.WithContext(withUser(req.Context(), userID)))
		})
	}
}

// underBasePath matches basePath itself and paths below it, not siblings
// sharing its prefix such as /apix.
func underBasePath(p, basePath string) bool {
	base := strings.TrimSuffix(basePath, "/")
	return base == "" || p == base || strings.HasPrefix(p, base+"/")
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.GetStatus())
	_ = json.NewEncoder(w).Encode(err)
}

// corsMiddleware answers preflights and echoes allowed origins with
// credentials enabled so the token cookie travels.
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(origins))
	wildcard := false
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "*" {
			wildcard = true
		}
		allowed[o] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if _, ok := allowed[origin]; origin != "" && (ok || wildcard) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			}
			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
