package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/leave-engine/internal/domain/employee"
	"github.com/cmlabs-hris/leave-engine/internal/domain/user"
	"github.com/cmlabs-hris/leave-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/leave-engine/internal/pkg/jwt"
	"github.com/go-chi/jwtauth/v5"
)

type actorKey struct{}

func WithActor(ctx context.Context, actor user.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the caller resolved by ResolveActor.
func ActorFromContext(ctx context.Context) (user.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(user.Actor)
	return actor, ok && !actor.IsZero()
}

// ResolveActor builds the caller from token claims. Employee and department
// are completed from the directory when the token does not carry them; the
// role always comes from the token.
func ResolveActor(directory employee.Directory) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, claims, err := jwtauth.FromContext(r.Context())
			if err != nil {
				response.HandleError(w, user.ErrInvalidToken)
				return
			}

			actor := jwt.ActorFromClaims(claims)
			if actor.IsZero() {
				response.HandleError(w, user.ErrActorRequired)
				return
			}

			if actor.EmployeeID == "" || actor.DepartmentID == "" {
				emp, err := lookupEmployee(r.Context(), directory, actor)
				switch {
				case err == nil:
					actor.EmployeeID = emp.ID
					actor.DepartmentID = emp.DepartmentID
				case errors.Is(err, employee.ErrEmployeeNotFound):
					// Users without an employee record may still act as admins.
				default:
					slog.ErrorContext(r.Context(), "Failed to resolve actor", "user_id", actor.UserID, "error", err)
					response.InternalServerError(w, "Failed to resolve caller")
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func lookupEmployee(ctx context.Context, directory employee.Directory, actor user.Actor) (employee.Employee, error) {
	if actor.EmployeeID != "" {
		return directory.FindEmployeeByID(ctx, actor.EmployeeID)
	}
	if actor.Email != "" {
		return directory.FindEmployeeByEmail(ctx, actor.Email)
	}
	return employee.Employee{}, employee.ErrEmployeeNotFound
}
