package middleware

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/JonMunkholm/farmerimport/internal/config"
)

type principalKey struct{}

// Principal is the caller identified by APIKeyAuth.
type Principal struct {
	Name string
	Role string
}

// IsAdmin reports whether the caller may commit and create farmers.
func (p Principal) IsAdmin() bool {
	return p.Role == config.RoleAdmin
}

// PrincipalFromContext returns the caller attached by APIKeyAuth.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// WithPrincipal attaches p to ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// APIKeyAuth identifies callers by the X-API-Key header, or by the password
// of HTTP basic auth so browsers can reach the pages.
//
// With require false, requests without a key pass as an anonymous admin. A
// key that is presented is always checked.
func APIKeyAuth(keys []config.APIKey, require bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get("X-API-Key")
			if presented == "" {
				if _, pass, ok := r.BasicAuth(); ok {
					presented = pass
				}
			}

			if presented == "" {
				if !require {
					next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), Principal{Role: config.RoleAdmin})))
					return
				}
				slog.Warn("auth: missing API key",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				w.Header().Set("WWW-Authenticate", `Basic realm="farmer-import"`)
				writeAuthError(w, http.StatusUnauthorized, "missing API key", "AUTH_MISSING_KEY")
				return
			}

			key, ok := matchAPIKey(presented, keys)
			if !ok {
				slog.Warn("auth: invalid API key",
					"path", r.URL.Path,
					"method", r.Method,
					"remote_addr", r.RemoteAddr,
				)
				writeAuthError(w, http.StatusForbidden, "invalid API key", "AUTH_INVALID_KEY")
				return
			}

			p := Principal{Name: key.Name, Role: key.Role}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireRole rejects callers whose role is not role. Admins pass every check.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok || (p.Role != role && !p.IsAdmin()) {
				slog.Warn("auth: role denied",
					"path", r.URL.Path,
					"method", r.Method,
					"actor", p.Name,
					"role", p.Role,
					"required", role,
				)
				writeAuthError(w, http.StatusForbidden, "this action needs the "+role+" role", "AUTH_FORBIDDEN")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// matchAPIKey compares against every configured key in constant time, so the
// time taken does not reveal which key (if any) matched.
func matchAPIKey(presented string, keys []config.APIKey) (config.APIKey, bool) {
	var match config.APIKey
	found := 0
	for _, k := range keys {
		eq := subtle.ConstantTimeCompare([]byte(presented), []byte(k.Key))
		if eq == 1 && found == 0 {
			match = k
		}
		found |= eq
	}
	return match, found == 1
}

func writeAuthError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + message + `","code":"` + code + `"}`))
}
