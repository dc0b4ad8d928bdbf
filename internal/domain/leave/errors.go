package leave

import (
	"errors"

	"github.com/cmlabs-hris/leave-engine/internal/pkg/validator"
)

var (
	ErrValidation           = validator.ErrInvalid
	ErrAccountNotFound      = errors.New("leave account not found")
	ErrInsufficientBalance  = errors.New("insufficient leave balance")
	ErrAlreadyResolved      = errors.New("leave request already resolved")
	ErrInvariantViolation   = errors.New("ledger invariant violation")
	ErrNotificationFailure  = errors.New("notification delivery failed")
	ErrInvalidTransition    = errors.New("invalid leave status transition")
	ErrLeaveRequestNotFound = errors.New("leave request not found")
	ErrForbidden            = errors.New("not allowed to act on this leave request")
	ErrPolicyNotFound       = errors.New("leave policy not found")
	ErrCarryForwardDone     = errors.New("carry forward already applied")
)
