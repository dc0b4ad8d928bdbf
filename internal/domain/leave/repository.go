package leave

import (
	"context"
	"time"
)

// Transactor runs fn in one unit of work. Repositories called with the
// ctx passed to fn join that unit of work.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// MutateFunc changes the locked account in place. Transactions appended
// through LeaveAccount.Apply are persisted with the new counters.
type MutateFunc func(account *LeaveAccount) error

type AccountRepository interface {
	// Get returns ErrAccountNotFound when the key has no account.
	Get(ctx context.Context, key AccountKey) (LeaveAccount, error)
	ListByEmployee(ctx context.Context, employeeID string, year int) ([]LeaveAccount, error)
	// CreateIfAbsent inserts the account with its seed transactions and reports whether it was new.
	CreateIfAbsent(ctx context.Context, account LeaveAccount) (bool, error)
	// Mutate serializes read-modify-write on a single key.
	Mutate(ctx context.Context, key AccountKey, fn MutateFunc) (LeaveAccount, error)
	Transactions(ctx context.Context, key AccountKey) ([]LedgerTransaction, error)
}

type PolicyRepository interface {
	ListActive(ctx context.Context) ([]LeavePolicy, error)
	// Get returns ErrPolicyNotFound for unknown leave types.
	Get(ctx context.Context, leaveType LeaveType) (LeavePolicy, error)
	Upsert(ctx context.Context, policy LeavePolicy) error
}

type LeaveRequestRepository interface {
	Create(ctx context.Context, req LeaveRequest) error
	// GetByID returns ErrLeaveRequestNotFound for unknown ids.
	GetByID(ctx context.Context, id string) (LeaveRequest, error)
	// GetByIDForUpdate locks the row for the surrounding transaction.
	GetByIDForUpdate(ctx context.Context, id string) (LeaveRequest, error)
	Update(ctx context.Context, req LeaveRequest) error
	// FindOverlapping returns active pending or approved requests of a department
	// overlapping [start, end], excluding excludeID.
	FindOverlapping(ctx context.Context, departmentID string, start, end time.Time, excludeID string) ([]LeaveRequest, error)
	List(ctx context.Context, filter LeaveFilter) ([]LeaveRequest, int64, error)
	// FindReminderCandidates returns approved, active, un-reminded requests ending in [from, to).
	FindReminderCandidates(ctx context.Context, from, to time.Time) ([]LeaveRequest, error)
	// MarkReminderSent flips the flag only if it was unset and reports whether it did.
	MarkReminderSent(ctx context.Context, id string, at time.Time) (bool, error)
	Stats(ctx context.Context, q StatsQuery) (LeaveStats, error)
}
