package middleware

import (
	"context"
	"net/http"
	"strings"

	"ssoforge/pkg/store"
)

const (
	CtxKeyAccount ctxKey = "account"
	CtxKeyToken   ctxKey = "token"
)

// SessionResolver turns a raw bearer token into an account, or nil when the
// token is missing, malformed, expired or revoked.
type SessionResolver interface {
	ResolveSession(ctx context.Context, raw string) *store.Account
}

// SessionAuth attaches the caller's account to the request context. A bad or
// absent token yields an anonymous request rather than a 401: several routes
// (IdP creation among them) accept anonymous callers, so each handler decides
// what it requires.
func SessionAuth(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			a := resolver.ResolveSession(r.Context(), raw)
			if a == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), CtxKeyAccount, a)
			ctx = context.WithValue(ctx, CtxKeyToken, raw)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return ""
	}
	return strings.TrimSpace(authz[len("Bearer "):])
}

// CallerFrom returns the authenticated account, or nil for anonymous requests.
func CallerFrom(ctx context.Context) *store.Account {
	if a, ok := ctx.Value(CtxKeyAccount).(*store.Account); ok {
		return a
	}
	return nil
}

// CurrentTokenFrom returns the raw session token used on this request.
func CurrentTokenFrom(ctx context.Context) string {
	if t, ok := ctx.Value(CtxKeyToken).(string); ok {
		return t
	}
	return ""
}
