// Package middleware adapts the engine's Authorize gate to net/http.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/caseworks/authcore"
)

// Guard wraps handlers with an authorization check.
type Guard struct {
	engine *authcore.Engine
}

// NewGuard returns a Guard over engine.
func NewGuard(engine *authcore.Engine) *Guard {
	return &Guard{engine: engine}
}

// Require returns middleware enforcing the given Access requirement. On
// success the identity is attached to the request context; fetch it with
// authcore.IdentityFromContext.
func (g *Guard) Require(access authcore.Access) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := authcore.WithClientIP(r.Context(), remoteIP(r))
			ctx = authcore.WithUserAgent(ctx, r.UserAgent())

			identity, err := g.engine.Authorize(ctx, bearerToken(r), access)
			if err != nil {
				writeAuthError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(authcore.WithIdentity(ctx, identity)))
		})
	}
}

// RequireFunc is Require for plain handler functions.
func (g *Guard) RequireFunc(access authcore.Access, next http.HandlerFunc) http.Handler {
	return g.Require(access)(next)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func remoteIP(r *http.Request) string {
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return host
}

func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, authcore.ErrAccountLocked):
		http.Error(w, "account locked", http.StatusLocked)
	case errors.Is(err, authcore.ErrPermissionDenied),
		errors.Is(err, authcore.ErrAccountInactive):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, authcore.ErrUnauthenticated),
		errors.Is(err, authcore.ErrTokenVersionStale):
		w.Header().Set("WWW-Authenticate", `Bearer realm="caseworks"`)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	default:
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}
}
