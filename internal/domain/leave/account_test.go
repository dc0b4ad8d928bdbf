package leave

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestNewAccountSeedsAllocation(t *testing.T) {
	now := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)
	key := AccountKey{EmployeeID: "emp-1", LeaveType: LeaveTypeAnnual, Year: 2025}
	policy := LeavePolicy{LeaveType: LeaveTypeAnnual, DefaultAllocation: d(21), IsActive: true}

	account := NewAccount("acc-1", key, policy, "tx-1", now)

	assert.True(t, account.TotalAllocated.Equal(d(21)))
	assert.True(t, account.Remaining.Equal(d(21)))
	require.Len(t, account.Transactions, 1)
	assert.Equal(t, TransactionAllocation, account.Transactions[0].Type)
	assert.Equal(t, now, account.LastUpdated)
	assert.NoError(t, account.Validate())
}

func TestApplyAndReplay(t *testing.T) {
	now := time.Now()
	reqID := "req-1"
	account := NewAccount("acc-1", AccountKey{EmployeeID: "emp-1", LeaveType: LeaveTypeAnnual, Year: 2025},
		LeavePolicy{DefaultAllocation: d(21)}, "tx-1", now)

	account.Apply(LedgerTransaction{ID: "tx-2", Type: TransactionUsed, Operation: OperationReserve, Amount: d(10), PendingDelta: d(10), Date: now, LeaveRequestID: &reqID})
	assert.True(t, account.Pending.Equal(d(10)))
	assert.True(t, account.Remaining.Equal(d(11)))
	assert.True(t, account.HasOperation(OperationReserve, reqID))
	assert.False(t, account.HasOperation(OperationConfirm, reqID))

	account.Apply(LedgerTransaction{ID: "tx-3", Type: TransactionUsed, Operation: OperationConfirm, Amount: d(10), PendingDelta: d(-10), UsedDelta: d(10), Date: now, LeaveRequestID: &reqID})
	assert.True(t, account.Used.Equal(d(10)))
	assert.True(t, account.Pending.IsZero())
	assert.True(t, account.Remaining.Equal(d(11)))

	replayed := Replay(account.Transactions)
	assert.True(t, replayed.Equal(account.Counters()))
	assert.True(t, replayed.Remaining().Equal(account.Remaining))
}

func TestValidateDetectsNegativeCounters(t *testing.T) {
	account := LeaveAccount{EmployeeID: "emp-1", LeaveType: LeaveTypeSick, Year: 2025, TotalAllocated: d(5), Pending: d(-1)}
	account.Recompute()
	assert.ErrorIs(t, account.Validate(), ErrInvariantViolation)

	account = LeaveAccount{TotalAllocated: d(5), Remaining: d(4)}
	assert.ErrorIs(t, account.Validate(), ErrInvariantViolation)
}

func TestOverSubscribedAccountIsStillValid(t *testing.T) {
	account := LeaveAccount{TotalAllocated: d(21), Used: d(5), Pending: d(20)}
	account.Recompute()
	assert.True(t, account.Remaining.Equal(d(-4)))
	assert.NoError(t, account.Validate())
}
