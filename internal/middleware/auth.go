package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/linkup-dev/linkup/internal/domain"
	internal_errors "github.com/linkup-dev/linkup/internal/errors"
	"github.com/linkup-dev/linkup/internal/logger"
	"github.com/linkup-dev/linkup/internal/utils"
)

type contextKey struct{}

var identityKey = contextKey{}

// Authorizer resolves a raw access token into an identity.
type Authorizer interface {
	Authorize(ctx context.Context, bearer string, allowedRoles ...domain.Role) (domain.Identity, error)
}

type Auth struct {
	gate          Authorizer
	secureCookies bool
}

func New(gate Authorizer, secureCookies bool) *Auth {
	return &Auth{gate: gate, secureCookies: secureCookies}
}

// NeedAuth admits any authorized identity.
func (a *Auth) NeedAuth() func(http.Handler) http.Handler {
	return a.auth()
}

func (a *Auth) AdminOnly() func(http.Handler) http.Handler {
	return a.auth(domain.RoleAdmin)
}

func (a *Auth) auth(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := a.gate.Authorize(r.Context(), extractToken(r), roles...)
			if err != nil {
				// dead sessions never become valid again, drop the cookie
				if errors.Is(err, internal_errors.ErrAccountSuspended) || errors.Is(err, internal_errors.ErrTokenExpired) {
					ClearSessionCookie(w, a.secureCookies)
				}
				logger.Log.Debug("request rejected by gate", "path", r.URL.Path, "error", err)
				utils.WriteErrorAndStatusCode(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken prefers the session cookie and falls back to the Authorization header.
func extractToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(domain.Identity)
	return identity, ok
}

// GetIdentity returns nil on routes that are not behind NeedAuth or AdminOnly.
func GetIdentity(r *http.Request) *domain.Identity {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		return nil
	}
	return &identity
}

// WithIdentity is used by tests that call handlers directly.
func WithIdentity(ctx context.Context, identity domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}
