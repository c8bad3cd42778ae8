package auth

import (
	"log/slog"
	"net/http"

	"github.com/rhuss/missive/pkg/api"
	"github.com/rhuss/missive/pkg/debug"
	"github.com/rhuss/missive/pkg/observability"
	"github.com/rhuss/missive/pkg/transport"
)

// InvalidTokenMessage is the only reason ever returned to a client whose
// credentials were rejected.
const InvalidTokenMessage = "Invalid token"

// Middleware creates HTTP middleware from an AuthChain. It runs
// authentication and injects the resolved identity into the request context.
// Every rejection produces the same 401 body regardless of cause.
func Middleware(chain *AuthChain) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := chain.Authenticate(r.Context(), r)

			if result.Decision != Yes || result.Identity == nil {
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", result.Err,
				)
				observability.AuthFailuresTotal.WithLabelValues("rejected").Inc()
				transport.WriteAPIError(w, api.NewUnauthenticatedError(InvalidTokenMessage))
				return
			}

			if result.Identity.Subject == "" {
				slog.Error("authenticator returned identity with empty subject")
				observability.AuthFailuresTotal.WithLabelValues("empty_subject").Inc()
				transport.WriteAPIError(w, api.NewServerError("internal authentication error"))
				return
			}

			debug.Log("auth", "authentication succeeded",
				"subject", result.Identity.Subject,
				"method", result.Identity.Method,
				"path", r.URL.Path,
			)

			ctx := SetIdentity(r.Context(), result.Identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireIdentity returns the identity stored by Middleware, writing a 401
// and returning nil when the handler was reached without one.
func RequireIdentity(w http.ResponseWriter, r *http.Request) *Identity {
	id := IdentityFromContext(r.Context())
	if id == nil || id.Subject == "" {
		transport.WriteAPIError(w, api.NewUnauthenticatedError(InvalidTokenMessage))
		return nil
	}
	return id
}
