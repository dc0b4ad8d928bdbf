package middleware

import (
	"fmt"
	"net/http"

	"github.com/cmlabs-hris/leave-engine/internal/domain/user"
	"github.com/cmlabs-hris/leave-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/leave-engine/internal/pkg/authz"
)

// RequirePermission checks if the caller's role holds permission. It must
// run after ResolveActor.
func RequirePermission(enforcer *authz.Enforcer, permission user.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				response.HandleError(w, user.ErrActorRequired)
				return
			}

			if !enforcer.Allowed(actor.Role, permission) {
				response.Forbidden(w, fmt.Sprintf("Insufficient permissions: required '%s', but user role is '%s'", permission, actor.Role))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
