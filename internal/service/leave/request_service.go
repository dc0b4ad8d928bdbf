package leave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cmlabs-hris/leave-engine/internal/domain/employee"
	"github.com/cmlabs-hris/leave-engine/internal/domain/leave"
	"github.com/cmlabs-hris/leave-engine/internal/domain/user"
	"github.com/google/uuid"
)

type RequestService struct {
	tx        leave.Transactor
	requests  leave.LeaveRequestRepository
	ledger    leave.LedgerService
	directory employee.Directory
	conflicts *ConflictDetector
	events    leave.EventPublisher
	now       func() time.Time
}

func NewRequestService(
	tx leave.Transactor,
	requests leave.LeaveRequestRepository,
	ledger leave.LedgerService,
	directory employee.Directory,
	events leave.EventPublisher,
) *RequestService {
	return &RequestService{
		tx:        tx,
		requests:  requests,
		ledger:    ledger,
		directory: directory,
		conflicts: NewConflictDetector(requests),
		events:    events,
		now:       time.Now,
	}
}

var _ leave.LeaveService = (*RequestService)(nil)

// SetClock overrides time.Now. Used by tests and the reminder command.
func (s *RequestService) SetClock(now func() time.Time) {
	s.now = now
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func actorID(actor user.Actor) string {
	if actor.EmployeeID != "" {
		return actor.EmployeeID
	}
	return actor.UserID
}

// resolveEmployee finds the employee a submission is filed for.
func (s *RequestService) resolveEmployee(ctx context.Context, actor user.Actor, email string) (employee.Employee, error) {
	var (
		emp employee.Employee
		err error
	)
	if email != "" && !strings.EqualFold(email, actor.Email) {
		emp, err = s.directory.FindEmployeeByEmail(ctx, email)
	} else {
		emp, err = s.directory.FindEmployeeByID(ctx, actor.EmployeeID)
	}
	if err != nil {
		if errors.Is(err, employee.ErrEmployeeNotFound) {
			return employee.Employee{}, fmt.Errorf("%w: %w", leave.ErrValidation, err)
		}
		return employee.Employee{}, fmt.Errorf("failed to look up employee: %w", err)
	}
	if !emp.IsActive {
		return employee.Employee{}, fmt.Errorf("%w: %w", leave.ErrValidation, employee.ErrEmployeeInactive)
	}
	return emp, nil
}

func (s *RequestService) Submit(ctx context.Context, actor user.Actor, req leave.SubmitLeaveRequest) (leave.SubmitResult, error) {
	if actor.IsZero() {
		return leave.SubmitResult{}, user.ErrActorRequired
	}
	if err := req.Validate(); err != nil {
		return leave.SubmitResult{}, err
	}

	emp, err := s.resolveEmployee(ctx, actor, req.EmployeeEmail)
	if err != nil {
		return leave.SubmitResult{}, err
	}

	start, end := req.Dates()
	now := s.now()
	priority := req.Priority
	if priority == "" {
		priority = leave.PriorityNormal
	}

	request := leave.LeaveRequest{
		ID:              newID(),
		EmployeeID:      emp.ID,
		EmployeeName:    emp.FullName,
		EmployeeEmail:   emp.Email,
		DepartmentID:    emp.DepartmentID,
		LeaveType:       leave.LeaveType(req.LeaveType),
		StartDate:       start,
		EndDate:         end,
		TotalDays:       leave.CalculateTotalDays(start, end),
		Reason:          strings.TrimSpace(req.Reason),
		Status:          leave.StatusNone,
		Priority:        priority,
		SubmissionDate:  now,
		LastModified:    now,
		IsActive:        true,
		ConflictDetails: []string{},
		ApprovalWorkflow: []leave.ApprovalStep{
			{Status: leave.StepPending, Order: 1},
		},
	}

	decision, err := leave.Decide(&request, leave.ActionSubmit, actor)
	if err != nil {
		return leave.SubmitResult{}, err
	}
	request.Status = decision.To

	var check leave.BalanceCheck
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.conflicts.Detect(ctx, &request); err != nil {
			return err
		}

		// Seeds the account lazily; the warning comes from the locked reserve below.
		if _, err := s.ledger.CheckBalance(ctx, request.EmployeeID, request.LeaveType, request.Days(), request.Year()); err != nil {
			return fmt.Errorf("failed to check balance: %w", err)
		}

		if err := s.requests.Create(ctx, request); err != nil {
			return fmt.Errorf("failed to create leave request: %w", err)
		}

		account, err := s.ledger.Reserve(ctx, reservation(request, ""))
		if err != nil {
			return fmt.Errorf("failed to reserve leave balance: %w", err)
		}
		check = leave.NewBalanceCheck(request.LeaveType, account.Available().Add(request.Days()), request.Days())
		return nil
	})
	if err != nil {
		return leave.SubmitResult{}, err
	}

	result := leave.SubmitResult{Request: request, Balance: check}
	if !check.HasBalance {
		result.Warning = fmt.Sprintf("%s: %s", leave.ErrInsufficientBalance, check.Message)
		slog.WarnContext(ctx, "leave request over-subscribes balance",
			"leave_request_id", request.ID, "employee_id", request.EmployeeID, "available", check.Available.String())
	}

	slog.InfoContext(ctx, "leave request submitted",
		"leave_request_id", request.ID, "employee_id", request.EmployeeID,
		"leave_type", request.LeaveType, "days", request.TotalDays, "has_conflicts", request.HasConflicts)
	s.publish(ctx, leave.Event{Type: leave.EventLeaveSubmitted, ActorID: actorID(actor), Request: &request})
	return result, nil
}

func reservation(r leave.LeaveRequest, reason string) leave.MutationParams {
	return leave.MutationParams{
		EmployeeID:     r.EmployeeID,
		LeaveType:      r.LeaveType,
		Days:           r.Days(),
		LeaveRequestID: r.ID,
		Year:           r.Year(),
		Reason:         reason,
	}
}

func (s *RequestService) Approve(ctx context.Context, actor user.Actor, id string, req leave.DecisionRequest) (leave.LeaveRequest, error) {
	return s.decide(ctx, actor, id, leave.ActionApprove, req)
}

func (s *RequestService) Reject(ctx context.Context, actor user.Actor, id string, req leave.DecisionRequest) (leave.LeaveRequest, error) {
	return s.decide(ctx, actor, id, leave.ActionReject, req)
}

func stepStatus(to leave.Status) leave.StepStatus {
	switch to {
	case leave.StatusApproved:
		return leave.StepApproved
	case leave.StatusRejected:
		return leave.StepRejected
	case leave.StatusCancelled:
		return leave.StepCancelled
	}
	return leave.StepPending
}

// applyEffect runs the ledger side effect of a transition inside the
// caller's transaction.
func (s *RequestService) applyEffect(ctx context.Context, r leave.LeaveRequest, effect leave.LedgerEffect, reason string) error {
	var err error
	switch effect {
	case leave.EffectReserve:
		_, err = s.ledger.Reserve(ctx, reservation(r, reason))
	case leave.EffectConfirm:
		_, err = s.ledger.Confirm(ctx, reservation(r, reason))
	case leave.EffectRelease:
		_, err = s.ledger.Release(ctx, reservation(r, reason))
	}
	if err != nil {
		return fmt.Errorf("failed to %s leave balance: %w", effect, err)
	}
	return nil
}

func (s *RequestService) decide(ctx context.Context, actor user.Actor, id string, action leave.Action, req leave.DecisionRequest) (leave.LeaveRequest, error) {
	if actor.IsZero() {
		return leave.LeaveRequest{}, user.ErrActorRequired
	}
	if err := req.Validate(); err != nil {
		return leave.LeaveRequest{}, err
	}

	var request leave.LeaveRequest
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		request, err = s.requests.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}

		decision, err := leave.Decide(&request, action, actor)
		if err != nil {
			return err
		}

		now := s.now()
		approver := actorID(actor)
		request.RecordStep(leave.ApprovalStep{
			ApproverID:   &approver,
			ApproverRole: actor.Role,
			Status:       stepStatus(decision.To),
			Comments:     req.Comments,
			ActionDate:   &now,
		})
		request.Status = decision.To
		request.LastModified = now
		request.DecidedAt = &now

		if err := s.requests.Update(ctx, request); err != nil {
			return fmt.Errorf("failed to update leave request: %w", err)
		}
		return s.applyEffect(ctx, request, decision.Effect, string(decision.To))
	})
	if err != nil {
		return leave.LeaveRequest{}, err
	}

	eventType := leave.EventLeaveApproved
	if request.Status == leave.StatusRejected {
		eventType = leave.EventLeaveRejected
	}
	slog.InfoContext(ctx, "leave request decided",
		"leave_request_id", request.ID, "status", request.Status, "actor_id", actorID(actor), "actor_role", actor.Role)
	s.publish(ctx, leave.Event{Type: eventType, ActorID: actorID(actor), Request: &request, Comments: req.Comments})
	return request, nil
}

// Cancel withdraws a request and soft-deletes it. Pending days are released;
// days already confirmed stay used.
func (s *RequestService) Cancel(ctx context.Context, actor user.Actor, id string, req leave.CancelLeaveRequest) (leave.LeaveRequest, error) {
	if actor.IsZero() {
		return leave.LeaveRequest{}, user.ErrActorRequired
	}
	if err := req.Validate(); err != nil {
		return leave.LeaveRequest{}, err
	}

	var request leave.LeaveRequest
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		request, err = s.requests.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}

		decision, err := leave.Decide(&request, leave.ActionCancel, actor)
		if err != nil {
			return err
		}

		now := s.now()
		by := actorID(actor)
		request.RecordStep(leave.ApprovalStep{
			ApproverID:   &by,
			ApproverRole: actor.Role,
			Status:       leave.StepCancelled,
			Comments:     req.Reason,
			ActionDate:   &now,
		})
		request.Status = decision.To
		request.IsActive = false
		request.LastModified = now
		request.CancelledBy = &by
		request.CancelledAt = &now
		request.CancellationReason = req.Reason

		if err := s.requests.Update(ctx, request); err != nil {
			return fmt.Errorf("failed to update leave request: %w", err)
		}
		return s.applyEffect(ctx, request, decision.Effect, "cancelled")
	})
	if err != nil {
		return leave.LeaveRequest{}, err
	}

	slog.InfoContext(ctx, "leave request cancelled", "leave_request_id", request.ID, "actor_id", actorID(actor))
	s.publish(ctx, leave.Event{Type: leave.EventLeaveCancelled, ActorID: actorID(actor), Request: &request, Reason: deref(req.Reason)})
	return request, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (s *RequestService) publish(ctx context.Context, event leave.Event) {
	if s.events == nil {
		return
	}
	event.ID = newID()
	event.OccurredAt = s.now()
	s.events.Publish(ctx, event)
}
