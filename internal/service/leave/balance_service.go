package leave

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/leave-engine/internal/domain/employee"
	"github.com/cmlabs-hris/leave-engine/internal/domain/leave"
	"github.com/cmlabs-hris/leave-engine/internal/domain/user"
	"github.com/shopspring/decimal"
)

// BalanceService puts the ledger behind the authorization policy.
type BalanceService struct {
	ledger    leave.LedgerService
	directory employee.Directory
}

func NewBalanceService(ledger leave.LedgerService, directory employee.Directory) *BalanceService {
	return &BalanceService{ledger: ledger, directory: directory}
}

var _ leave.BalanceService = (*BalanceService)(nil)

func requireAdmin(actor user.Actor) error {
	if actor.IsZero() {
		return user.ErrActorRequired
	}
	if !user.CanAdjustBalance(actor) {
		return user.ErrAdminPrivilegeRequired
	}
	return nil
}

func (s *BalanceService) requireEmployee(ctx context.Context, id string) error {
	if _, err := s.directory.FindEmployeeByID(ctx, id); err != nil {
		if errors.Is(err, employee.ErrEmployeeNotFound) {
			return fmt.Errorf("%w: %w", leave.ErrValidation, err)
		}
		return fmt.Errorf("failed to look up employee: %w", err)
	}
	return nil
}

// MyBalances lists the caller's accounts, seeding any that are missing.
func (s *BalanceService) MyBalances(ctx context.Context, actor user.Actor, year int) ([]leave.LeaveAccount, error) {
	if actor.EmployeeID == "" {
		return nil, user.ErrActorRequired
	}
	return s.ledger.InitializeAccounts(ctx, actor.EmployeeID, year)
}

func (s *BalanceService) Check(ctx context.Context, actor user.Actor, leaveType leave.LeaveType, days decimal.Decimal, year int) (leave.BalanceCheck, error) {
	if actor.EmployeeID == "" {
		return leave.BalanceCheck{}, user.ErrActorRequired
	}
	return s.ledger.CheckBalance(ctx, actor.EmployeeID, leaveType, days, year)
}

func (s *BalanceService) Initialize(ctx context.Context, actor user.Actor, req leave.InitializeAccountsRequest) ([]leave.LeaveAccount, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.requireEmployee(ctx, req.EmployeeID); err != nil {
		return nil, err
	}
	return s.ledger.InitializeAccounts(ctx, req.EmployeeID, req.Year)
}

func (s *BalanceService) Adjust(ctx context.Context, actor user.Actor, req leave.AdjustBalanceRequest) (leave.LeaveAccount, error) {
	if err := requireAdmin(actor); err != nil {
		return leave.LeaveAccount{}, err
	}
	if err := req.Validate(); err != nil {
		return leave.LeaveAccount{}, err
	}
	if err := s.requireEmployee(ctx, req.EmployeeID); err != nil {
		return leave.LeaveAccount{}, err
	}
	return s.ledger.Adjust(ctx, leave.AdjustParams{
		EmployeeID: req.EmployeeID,
		LeaveType:  req.LeaveType,
		Delta:      req.Delta,
		Reason:     req.Reason,
		Year:       req.Year,
		ActorID:    actorID(actor),
	})
}

func (s *BalanceService) CarryForward(ctx context.Context, actor user.Actor, req leave.CarryForwardRequest) (leave.LeaveAccount, error) {
	if err := requireAdmin(actor); err != nil {
		return leave.LeaveAccount{}, err
	}
	if err := req.Validate(); err != nil {
		return leave.LeaveAccount{}, err
	}
	return s.ledger.CarryForward(ctx, req.EmployeeID, req.LeaveType, req.FromYear, actorID(actor))
}

func (s *BalanceService) History(ctx context.Context, actor user.Actor, key leave.AccountKey) ([]leave.LedgerTransaction, error) {
	if actor.IsZero() {
		return nil, user.ErrActorRequired
	}
	if !user.CanViewBalance(actor, key.EmployeeID) {
		return nil, leave.ErrForbidden
	}
	return s.ledger.History(ctx, key)
}

func (s *BalanceService) Reconcile(ctx context.Context, actor user.Actor, key leave.AccountKey) (leave.ReconcileResult, error) {
	if err := requireAdmin(actor); err != nil {
		return leave.ReconcileResult{}, err
	}
	return s.ledger.Reconcile(ctx, key)
}
