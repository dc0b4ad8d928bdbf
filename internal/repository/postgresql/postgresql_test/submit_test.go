package postgresql_test

import (
	"context"
	"sync"
	"testing"

	"github.com/cmlabs-hris/leave-engine/internal/domain/leave"
	"github.com/cmlabs-hris/leave-engine/internal/domain/user"
	"github.com/cmlabs-hris/leave-engine/internal/repository/postgresql"
	leavesvc "github.com/cmlabs-hris/leave-engine/internal/service/leave"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = user.Actor{UserID: "u-1", EmployeeID: "emp-1", Email: "alice@example.com", Role: user.RoleStaff, DepartmentID: "eng"}
	bob   = user.Actor{UserID: "u-2", EmployeeID: "emp-2", Email: "bob@example.com", Role: user.RoleStaff, DepartmentID: "eng"}
)

func newRequestService(t *testing.T, setup *TestDatabaseSetup) (*leavesvc.RequestService, leave.LeaveRequestRepository) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, setup.InsertEmployee(ctx, alice.EmployeeID, alice.Email, "Alice", "eng", "staff"))
	require.NoError(t, setup.InsertEmployee(ctx, bob.EmployeeID, bob.Email, "Bob", "eng", "staff"))

	repo := postgresql.NewLeaveRequestRepository(setup.DB)
	svc := leavesvc.NewRequestService(
		postgresql.NewTransactor(setup.DB),
		repo,
		newLedger(t, setup),
		postgresql.NewEmployeeDirectory(setup.DB),
		nil,
	)
	return svc, repo
}

type submission struct {
	actor      user.Actor
	start, end string
}

func submitConcurrently(t *testing.T, svc *leavesvc.RequestService, subs ...submission) []leave.SubmitResult {
	t.Helper()
	results := make([]leave.SubmitResult, len(subs))
	errs := make([]error, len(subs))

	var wg sync.WaitGroup
	for i, s := range subs {
		wg.Add(1)
		go func(i int, s submission) {
			defer wg.Done()
			results[i], errs[i] = svc.Submit(context.Background(), s.actor, leave.SubmitLeaveRequest{
				LeaveType: string(leave.LeaveTypeAnnual),
				StartDate: s.start,
				EndDate:   s.end,
				Reason:    "family trip",
			})
		}(i, s)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	return results
}

func TestSubmit_ConcurrentOverSubscriptionWarnsOnce(t *testing.T) {
	setup := NewTestDatabase(t)
	svc, _ := newRequestService(t, setup)
	ctx := context.Background()

	ledgerSvc := newLedger(t, setup)
	_, err := ledgerSvc.InitializeAccounts(ctx, alice.EmployeeID, 2025)
	require.NoError(t, err)
	_, err = ledgerSvc.Reserve(ctx, leave.MutationParams{
		EmployeeID: alice.EmployeeID, LeaveType: leave.LeaveTypeAnnual, Year: 2025,
		Days: decimal.NewFromInt(5), LeaveRequestID: "lr-earlier",
	})
	require.NoError(t, err)

	results := submitConcurrently(t, svc,
		submission{alice, "2025-04-01", "2025-04-10"},
		submission{alice, "2025-06-01", "2025-06-10"},
	)

	warned := 0
	for _, r := range results {
		if r.Warning != "" {
			warned++
			assert.False(t, r.Balance.HasBalance)
			assert.True(t, r.Balance.Available.Equal(decimal.NewFromInt(6)), "available = %s", r.Balance.Available)
		} else {
			assert.True(t, r.Balance.Available.Equal(decimal.NewFromInt(16)), "available = %s", r.Balance.Available)
		}
	}
	assert.Equal(t, 1, warned)

	account, err := ledgerSvc.GetAccount(ctx, leave.AccountKey{EmployeeID: alice.EmployeeID, LeaveType: leave.LeaveTypeAnnual, Year: 2025})
	require.NoError(t, err)
	assert.True(t, account.Pending.Equal(decimal.NewFromInt(25)))
	assert.True(t, account.Remaining.Equal(decimal.NewFromInt(-4)))
}

func TestSubmit_ConcurrentOverlapsAreFlagged(t *testing.T) {
	setup := NewTestDatabase(t)
	svc, repo := newRequestService(t, setup)
	ctx := context.Background()

	results := submitConcurrently(t, svc,
		submission{alice, "2025-04-01", "2025-04-05"},
		submission{bob, "2025-04-03", "2025-04-08"},
	)

	for _, r := range results {
		stored, err := repo.GetByID(ctx, r.Request.ID)
		require.NoError(t, err)
		assert.True(t, stored.HasConflicts, "request of %s", stored.EmployeeID)
		assert.Len(t, stored.ConflictDetails, 1)
	}
}
