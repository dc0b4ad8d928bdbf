package leave

import (
	"fmt"

	"github.com/cmlabs-hris/leave-engine/internal/domain/user"
)

type Action string

const (
	ActionSubmit  Action = "submit"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionCancel  Action = "cancel"
)

// LedgerEffect is the ledger primitive a transition requires.
type LedgerEffect string

const (
	EffectNone    LedgerEffect = "none"
	EffectReserve LedgerEffect = "reserve"
	EffectConfirm LedgerEffect = "confirm"
	EffectRelease LedgerEffect = "release"
)

// StatusNone is the state of a request that has not been submitted yet.
const StatusNone Status = ""

type transitionKey struct {
	from   Status
	action Action
}

type transition struct {
	to     Status
	effect LedgerEffect
}

var transitions = map[transitionKey]transition{
	{StatusNone, ActionSubmit}:     {StatusPending, EffectReserve},
	{StatusPending, ActionApprove}: {StatusApproved, EffectConfirm},
	{StatusPending, ActionReject}:  {StatusRejected, EffectRelease},
	{StatusPending, ActionCancel}:  {StatusCancelled, EffectRelease},
	{StatusApproved, ActionCancel}: {StatusCancelled, EffectNone},
}

// Transition is the pure state machine over request statuses.
func Transition(from Status, action Action) (Status, LedgerEffect, error) {
	if t, ok := transitions[transitionKey{from, action}]; ok {
		return t.to, t.effect, nil
	}
	switch {
	case from == StatusApproved && (action == ActionApprove || action == ActionReject):
		return from, EffectNone, fmt.Errorf("%w: request is %s", ErrAlreadyResolved, from)
	case (from == StatusRejected || from == StatusCancelled) && action != ActionSubmit:
		return from, EffectNone, fmt.Errorf("%w: request is %s", ErrAlreadyResolved, from)
	}
	return from, EffectNone, fmt.Errorf("%w: %s from %q", ErrInvalidTransition, action, from)
}

// Decision is an authorized transition for a specific request and actor.
type Decision struct {
	From   Status
	To     Status
	Effect LedgerEffect
}

// Decide checks the role gate for action and then runs the state machine.
// Status is checked first so repeated decisions report ErrAlreadyResolved.
func Decide(req *LeaveRequest, action Action, actor user.Actor) (Decision, error) {
	to, effect, err := Transition(req.Status, action)
	if err != nil {
		return Decision{}, err
	}

	var allowed bool
	switch action {
	case ActionSubmit:
		allowed = user.CanSubmitFor(actor, req.EmployeeID)
	case ActionApprove, ActionReject:
		allowed = user.CanApprove(actor, req.Resource())
	case ActionCancel:
		allowed = user.CanModify(actor, req.Resource())
	}
	if !allowed {
		return Decision{}, fmt.Errorf("%w: %s cannot %s", ErrForbidden, actor.Role, action)
	}

	return Decision{From: req.Status, To: to, Effect: effect}, nil
}
