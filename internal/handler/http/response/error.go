package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/leave-engine/internal/domain/employee"
	"github.com/cmlabs-hris/leave-engine/internal/domain/leave"
	"github.com/cmlabs-hris/leave-engine/internal/domain/user"
	"github.com/cmlabs-hris/leave-engine/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Field-level validation failures carry details
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Auth
	case errors.Is(err, user.ErrActorRequired):
		Unauthorized(w, "Authentication required")
	case errors.Is(err, user.ErrInvalidToken):
		Unauthorized(w, "Invalid or expired token")
	case errors.Is(err, user.ErrAdminPrivilegeRequired):
		Forbidden(w, "Admin privilege required")
	case errors.Is(err, user.ErrInsufficientPermissions):
		Forbidden(w, "Insufficient permissions")
	case errors.Is(err, leave.ErrForbidden):
		Forbidden(w, "Not allowed to act on this leave request")

	// Wrapped validation, e.g. unknown employee on submit
	case errors.Is(err, leave.ErrValidation):
		BadRequest(w, err.Error(), nil)

	// Not found
	case errors.Is(err, leave.ErrLeaveRequestNotFound):
		NotFound(w, "Leave request not found")
	case errors.Is(err, leave.ErrAccountNotFound):
		NotFound(w, "Leave account not found")
	case errors.Is(err, leave.ErrPolicyNotFound):
		NotFound(w, "Leave policy not found")
	case errors.Is(err, employee.ErrEmployeeNotFound):
		NotFound(w, "Employee not found")

	// State conflicts
	case errors.Is(err, leave.ErrAlreadyResolved):
		Conflict(w, "Leave request already resolved")
	case errors.Is(err, leave.ErrInvalidTransition):
		Conflict(w, "Invalid leave status transition")
	case errors.Is(err, leave.ErrCarryForwardDone):
		Conflict(w, "Carry forward already applied")
	case errors.Is(err, leave.ErrInsufficientBalance):
		BadRequest(w, "Insufficient leave balance", nil)
	case errors.Is(err, leave.ErrInvariantViolation):
		slog.Error("Ledger invariant violation", "error", err)
		Conflict(w, "Ledger invariant violation")

	default:
		slog.Error("Unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
