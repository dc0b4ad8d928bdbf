package leave

import (
	"context"
	"time"

	"github.com/cmlabs-hris/leave-engine/internal/domain/user"
	"github.com/shopspring/decimal"
)

// LedgerService is the system of record for leave-day balances.
type LedgerService interface {
	InitializeAccounts(ctx context.Context, employeeID string, year int) ([]LeaveAccount, error)
	CheckBalance(ctx context.Context, employeeID string, leaveType LeaveType, days decimal.Decimal, year int) (BalanceCheck, error)
	Reserve(ctx context.Context, p MutationParams) (LeaveAccount, error)
	Confirm(ctx context.Context, p MutationParams) (LeaveAccount, error)
	Release(ctx context.Context, p MutationParams) (LeaveAccount, error)
	Adjust(ctx context.Context, p AdjustParams) (LeaveAccount, error)
	CarryForward(ctx context.Context, employeeID string, leaveType LeaveType, fromYear int, actorID string) (LeaveAccount, error)
	GetAccount(ctx context.Context, key AccountKey) (LeaveAccount, error)
	ListAccounts(ctx context.Context, employeeID string, year int) ([]LeaveAccount, error)
	History(ctx context.Context, key AccountKey) ([]LedgerTransaction, error)
	Reconcile(ctx context.Context, key AccountKey) (ReconcileResult, error)
}

// LeaveService drives the approval workflow on behalf of an actor.
type LeaveService interface {
	Submit(ctx context.Context, actor user.Actor, req SubmitLeaveRequest) (SubmitResult, error)
	Approve(ctx context.Context, actor user.Actor, id string, req DecisionRequest) (LeaveRequest, error)
	Reject(ctx context.Context, actor user.Actor, id string, req DecisionRequest) (LeaveRequest, error)
	Cancel(ctx context.Context, actor user.Actor, id string, req CancelLeaveRequest) (LeaveRequest, error)
}

// QueryService is the read-only projection for listings, exports and dashboards.
type QueryService interface {
	Get(ctx context.Context, actor user.Actor, id string) (LeaveRequest, error)
	ListLeaves(ctx context.Context, actor user.Actor, filter LeaveFilter) (ListLeaveResponse, error)
	ExportLeaves(ctx context.Context, actor user.Actor, filter LeaveFilter) ([]LeaveExportRow, error)
	CalculateLeaveStats(ctx context.Context, actor user.Actor, now time.Time) LeaveStats
}

// BalanceService gates ledger reads and corrections by actor.
type BalanceService interface {
	MyBalances(ctx context.Context, actor user.Actor, year int) ([]LeaveAccount, error)
	Check(ctx context.Context, actor user.Actor, leaveType LeaveType, days decimal.Decimal, year int) (BalanceCheck, error)
	Initialize(ctx context.Context, actor user.Actor, req InitializeAccountsRequest) ([]LeaveAccount, error)
	Adjust(ctx context.Context, actor user.Actor, req AdjustBalanceRequest) (LeaveAccount, error)
	CarryForward(ctx context.Context, actor user.Actor, req CarryForwardRequest) (LeaveAccount, error)
	History(ctx context.Context, actor user.Actor, key AccountKey) ([]LedgerTransaction, error)
	Reconcile(ctx context.Context, actor user.Actor, key AccountKey) (ReconcileResult, error)
}

type ReminderService interface {
	Run(ctx context.Context, now time.Time) (ReminderRunResult, error)
}
