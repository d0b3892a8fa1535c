package httpapi

import (
	"net/http"
	"strings"

	"boldx.dev/intake/internal/identity"
	"boldx.dev/intake/internal/intake"
)

// publicPaths are reachable without a bearer token. Signed downloads under
// /files/ carry their own token in the query string.
var publicPaths = map[string]bool{
	"/healthz":       true,
	"/readyz":        true,
	"/metrics":       true,
	"/v1/info":       true,
	"/v1/auth/token": true,
	"/":              true,
}

func publicPath(path string) bool {
	if publicPaths[path] {
		return true
	}
	return strings.HasPrefix(path, "/files/")
}

// withAuth validates the bearer token and stashes the caller's identity on
// the context. Public paths pass through untouched.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if publicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token := extractBearerToken(r)
		if token == "" {
			writeError(w, r, http.StatusUnauthorized, "missing bearer token")
			return
		}
		claims, err := identity.ParseAndValidate(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		user := identity.User{ID: claims.Subject, Email: claims.Email}
		ctx := identity.ContextWithUser(r.Context(), user)
		ctx = identity.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func extractBearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// requireUser returns the caller, or writes 401 and reports false.
func requireUser(w http.ResponseWriter, r *http.Request) (identity.User, bool) {
	user, ok := identity.UserFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return identity.User{}, false
	}
	return user, true
}

// requireAdmin gates review-console operations on the caller's email domain.
func requireAdmin(w http.ResponseWriter, r *http.Request) (identity.User, bool) {
	user, ok := requireUser(w, r)
	if !ok {
		return identity.User{}, false
	}
	if !identity.IsAdminEmail(user.Email) {
		writeError(w, r, http.StatusForbidden, "admin access required")
		return identity.User{}, false
	}
	return user, true
}

// canAccess reports whether the caller owns the application or reviews it.
func canAccess(user identity.User, app intake.Application) bool {
	return app.UserID == user.ID || identity.IsAdminEmail(user.Email)
}
