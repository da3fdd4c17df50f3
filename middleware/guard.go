package middleware

import (
	"context"
	"net/http"
	"strings"

	authkit "github.com/scriptdeck/authkit"
)

type identityContextKey struct{}

// IdentityFromContext returns the verified identity injected by a guard.
func IdentityFromContext(ctx context.Context) (*authkit.AccessIdentity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(*authkit.AccessIdentity)
	return identity, ok
}

// RequireAuth verifies the bearer token on every request and injects the
// resulting [authkit.AccessIdentity] into the request context.
func RequireAuth(engine *authkit.Engine) func(http.Handler) http.Handler {
	return guard(engine, "")
}

// RequirePermission verifies the bearer token and additionally requires
// the named permission in the token's mask snapshot. Unknown permission
// names reject every request.
func RequirePermission(engine *authkit.Engine, permissionName string) func(http.Handler) http.Handler {
	return guard(engine, permissionName)
}

func guard(engine *authkit.Engine, permissionName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			identity, err := engine.ValidateAccess(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			if permissionName != "" {
				if err := engine.AuthorizeIdentity(identity, permissionName); err != nil {
					http.Error(w, "forbidden", http.StatusForbidden)
					return
				}
			}

			ctx := context.WithValue(r.Context(), identityContextKey{}, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
