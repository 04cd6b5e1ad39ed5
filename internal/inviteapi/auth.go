package inviteapi

import (
	"context"
	"net/http"

	"github.com/scille-labs/invite-conduit/internal/identity"
)

type greeterKey struct{}

// WithGreeter attaches the authenticated member to the context.
func WithGreeter(ctx context.Context, m *identity.Member) context.Context {
	return context.WithValue(ctx, greeterKey{}, m)
}

// GreeterFromContext returns the authenticated member, if any.
func GreeterFromContext(ctx context.Context) (*identity.Member, bool) {
	m, ok := ctx.Value(greeterKey{}).(*identity.Member)
	return m, ok
}

// RequireGreeter implements the AUTHENTICATED handshake stand-in (§6): HTTP
// Basic auth identifies an organization member. The conduit's transport,
// message framing, and real handshake are out of scope; this middleware is
// the minimal substitute that lets the API layer be exercised end to end.
func RequireGreeter(store identity.MemberStore, auth *identity.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, password, ok := r.BasicAuth()
			if !ok {
				w.Header().Set("WWW-Authenticate", `Basic realm="invite-conduit"`)
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}

			org := orgFromPath(r)
			member, err := auth.Authenticate(r.Context(), store, org, username, password)
			if err != nil {
				http.Error(w, "invalid credentials", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithGreeter(r.Context(), member)))
		})
	}
}
