// Package ownership provides the middleware that restricts project-scoped
// routes to the identity that owns the project.
package ownership

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/rhuss/missive/pkg/api"
	"github.com/rhuss/missive/pkg/auth"
	"github.com/rhuss/missive/pkg/debug"
	"github.com/rhuss/missive/pkg/observability"
	"github.com/rhuss/missive/pkg/transport"
)

// PathParam is the route wildcard that carries the project id.
const PathParam = "projectId"

// DeniedMessage is returned for every ownership rejection. A project that
// does not exist and one owned by someone else look the same to the caller.
const DeniedMessage = "Access denied"

// ProjectChecker answers whether a project is owned by a subject. A missing
// project must be reported as (false, nil).
type ProjectChecker interface {
	IsOwnedBy(ctx context.Context, projectID, ownerID string) (bool, error)
}

// Require returns middleware that admits the request only when the identity
// placed in the context by auth.Middleware owns the project named by the
// {projectId} path value.
func Require(checker ProjectChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := auth.RequireIdentity(w, r)
			if identity == nil {
				return
			}

			projectID := r.PathValue(PathParam)
			if projectID == "" {
				transport.WriteAPIError(w, api.NewInvalidRequestError(PathParam, "project id is required"))
				return
			}

			owned, err := checker.IsOwnedBy(r.Context(), projectID, identity.Subject)
			if err != nil {
				slog.Error("ownership check failed",
					"project_id", projectID,
					"error", err,
				)
				transport.WriteAPIError(w, api.NewServerError("internal server error"))
				return
			}
			if !owned {
				debug.Log("auth", "ownership denied",
					"project_id", projectID,
					"subject", identity.Subject,
				)
				observability.OwnershipDenialsTotal.Inc()
				transport.WriteAPIError(w, api.NewForbiddenError(DeniedMessage))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
