package leave_test

import (
	"context"
	"testing"

	"github.com/cmlabs-hris/leave-engine/internal/domain/employee"
	"github.com/cmlabs-hris/leave-engine/internal/domain/leave"
	"github.com/cmlabs-hris/leave-engine/internal/domain/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBalanceService_MyBalances(t *testing.T) {
	f := newFixture(t)
	accounts, err := f.balances.MyBalances(context.Background(), alice, 2025)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, leave.LeaveTypeAnnual, accounts[0].LeaveType)
	assert.True(t, accounts[0].Remaining.Equal(d(21)))

	_, err = f.balances.MyBalances(context.Background(), user.Actor{}, 2025)
	assert.ErrorIs(t, err, user.ErrActorRequired)
}

func TestBalanceService_AdminOnlyOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedAnnual(t, 0)

	adjust := leave.AdjustBalanceRequest{
		EmployeeID: alice.EmployeeID,
		LeaveType:  leave.LeaveTypeAnnual,
		Year:       2025,
		Delta:      d(2),
		Reason:     "long service bonus",
	}

	for _, actor := range []user.Actor{alice, engHead, manager} {
		_, err := f.balances.Adjust(ctx, actor, adjust)
		assert.ErrorIs(t, err, user.ErrAdminPrivilegeRequired, "role %s", actor.Role)

		_, err = f.balances.Initialize(ctx, actor, leave.InitializeAccountsRequest{EmployeeID: bob.EmployeeID, Year: 2025})
		assert.ErrorIs(t, err, user.ErrAdminPrivilegeRequired)
	}

	account, err := f.balances.Adjust(ctx, admin, adjust)
	require.NoError(t, err)
	assert.True(t, account.TotalAllocated.Equal(d(23)))

	adjust.EmployeeID = "ghost"
	_, err = f.balances.Adjust(ctx, admin, adjust)
	assert.ErrorIs(t, err, leave.ErrValidation)
	assert.ErrorIs(t, err, employee.ErrEmployeeNotFound)

	accounts, err := f.balances.Initialize(ctx, admin, leave.InitializeAccountsRequest{EmployeeID: bob.EmployeeID, Year: 2025})
	require.NoError(t, err)
	assert.Len(t, accounts, 2)

	_, err = f.balances.Reconcile(ctx, manager, leave.AccountKey{EmployeeID: alice.EmployeeID, LeaveType: leave.LeaveTypeAnnual, Year: 2025})
	assert.ErrorIs(t, err, user.ErrAdminPrivilegeRequired)

	result, err := f.balances.Reconcile(ctx, admin, leave.AccountKey{EmployeeID: alice.EmployeeID, LeaveType: leave.LeaveTypeAnnual, Year: 2025})
	require.NoError(t, err)
	assert.False(t, result.Drift)
}

func TestBalanceService_History(t *testing.T) {
	f := newFixture(t)
	key := f.seedAnnual(t, 0)
	f.submit(t, alice, "2025-04-01", "2025-04-02")

	txs, err := f.balances.History(context.Background(), alice, key)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, leave.OperationReserve, txs[1].Operation)
	assert.Equal(t, "reserved for pending request", txs[1].Description)

	_, err = f.balances.History(context.Background(), bob, key)
	assert.ErrorIs(t, err, leave.ErrForbidden)

	_, err = f.balances.History(context.Background(), manager, key)
	assert.NoError(t, err)
}
