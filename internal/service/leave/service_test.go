package leave_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cmlabs-hris/leave-engine/internal/domain/employee"
	"github.com/cmlabs-hris/leave-engine/internal/domain/leave"
	"github.com/cmlabs-hris/leave-engine/internal/domain/user"
	"github.com/cmlabs-hris/leave-engine/internal/repository/memory"
	"github.com/cmlabs-hris/leave-engine/internal/service/ledger"
	leavesvc "github.com/cmlabs-hris/leave-engine/internal/service/leave"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []leave.Event
}

func (r *recorder) Publish(_ context.Context, e leave.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []leave.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]leave.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

var (
	alice    = user.Actor{UserID: "u-1", EmployeeID: "emp-1", Email: "alice@example.com", Role: user.RoleStaff, DepartmentID: "eng"}
	bob      = user.Actor{UserID: "u-2", EmployeeID: "emp-2", Email: "bob@example.com", Role: user.RoleStaff, DepartmentID: "eng"}
	engHead  = user.Actor{UserID: "u-3", EmployeeID: "emp-3", Email: "head@example.com", Role: user.RoleDepartmentHead, DepartmentID: "eng"}
	opsHead  = user.Actor{UserID: "u-4", EmployeeID: "emp-4", Email: "ops@example.com", Role: user.RoleDepartmentHead, DepartmentID: "ops"}
	manager  = user.Actor{UserID: "u-5", EmployeeID: "emp-5", Email: "manager@example.com", Role: user.RoleManager, DepartmentID: "hq"}
	admin    = user.Actor{UserID: "u-6", EmployeeID: "emp-6", Email: "admin@example.com", Role: user.RoleAdmin, DepartmentID: "hq"}
	everyone = []user.Actor{alice, bob, engHead, opsHead, manager, admin}
)

type fixture struct {
	store    *memory.Store
	ledger   *ledger.Service
	requests *leavesvc.RequestService
	queries  *leavesvc.QueryService
	balances *leavesvc.BalanceService
	repo     leave.LeaveRequestRepository
	events   *recorder
}

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	for _, a := range everyone {
		store.PutEmployee(employee.Employee{
			ID:           a.EmployeeID,
			Email:        a.Email,
			FullName:     strings.Split(a.Email, "@")[0],
			DepartmentID: a.DepartmentID,
			Role:         a.Role,
			IsActive:     true,
		})
	}

	policies := memory.NewLeavePolicyRepository(store)
	require.NoError(t, policies.Upsert(ctx, leave.LeavePolicy{LeaveType: leave.LeaveTypeAnnual, DefaultAllocation: d(21), IsActive: true}))
	require.NoError(t, policies.Upsert(ctx, leave.LeavePolicy{LeaveType: leave.LeaveTypeSick, DefaultAllocation: d(12), IsActive: true}))

	events := &recorder{}
	clock := func() time.Time { return fixedNow }
	ledgerSvc := ledger.NewService(store, memory.NewLeaveAccountRepository(store), policies, events, ledger.WithClock(clock))
	repo := memory.NewLeaveRequestRepository(store)
	directory := memory.NewEmployeeDirectory(store)

	requests := leavesvc.NewRequestService(store, repo, ledgerSvc, directory, events)
	requests.SetClock(clock)

	return fixture{
		store:    store,
		ledger:   ledgerSvc,
		requests: requests,
		queries:  leavesvc.NewQueryService(repo, directory),
		balances: leavesvc.NewBalanceService(ledgerSvc, directory),
		repo:     repo,
		events:   events,
	}
}

// seedAnnual gives emp-1 an annual 2025 account with 21 allocated and used days.
func (f fixture) seedAnnual(t *testing.T, used int64) leave.AccountKey {
	t.Helper()
	key := leave.AccountKey{EmployeeID: alice.EmployeeID, LeaveType: leave.LeaveTypeAnnual, Year: 2025}
	account := leave.NewAccount("acc-1", key, leave.LeavePolicy{LeaveType: leave.LeaveTypeAnnual, DefaultAllocation: d(21)}, "tx-1", fixedNow)
	if used > 0 {
		account.Apply(leave.LedgerTransaction{ID: "tx-2", Type: leave.TransactionUsed, Operation: leave.OperationConfirm, Amount: d(used), UsedDelta: d(used), Date: fixedNow})
	}
	f.store.PutAccount(account)
	return key
}

func (f fixture) submit(t *testing.T, actor user.Actor, start, end string) leave.SubmitResult {
	t.Helper()
	result, err := f.requests.Submit(context.Background(), actor, leave.SubmitLeaveRequest{
		LeaveType: string(leave.LeaveTypeAnnual),
		StartDate: start,
		EndDate:   end,
		Reason:    "family trip",
	})
	require.NoError(t, err)
	return result
}

func (f fixture) account(t *testing.T, key leave.AccountKey) leave.LeaveAccount {
	t.Helper()
	account, err := f.ledger.GetAccount(context.Background(), key)
	require.NoError(t, err)
	require.NoError(t, account.Validate())
	return account
}

func assertBalance(t *testing.T, a leave.LeaveAccount, used, pending, remaining int64) {
	t.Helper()
	assert.True(t, a.Used.Equal(d(used)), "used = %s", a.Used)
	assert.True(t, a.Pending.Equal(d(pending)), "pending = %s", a.Pending)
	assert.True(t, a.Remaining.Equal(d(remaining)), "remaining = %s", a.Remaining)
}

func countOps(a leave.LeaveAccount, op leave.Operation) int {
	n := 0
	for _, tx := range a.Transactions {
		if tx.Operation == op {
			n++
		}
	}
	return n
}

func TestSubmitApprove_ScenarioA(t *testing.T) {
	f := newFixture(t)
	key := f.seedAnnual(t, 5)

	submitted := f.submit(t, alice, "2025-04-01", "2025-04-10")
	assert.Equal(t, leave.StatusPending, submitted.Request.Status)
	assert.Equal(t, 10, submitted.Request.TotalDays)
	assert.Equal(t, leave.PriorityNormal, submitted.Request.Priority)
	assert.True(t, submitted.Balance.HasBalance)
	assert.Empty(t, submitted.Warning)
	assertBalance(t, f.account(t, key), 5, 10, 6)

	approved, err := f.requests.Approve(context.Background(), engHead, submitted.Request.ID, leave.DecisionRequest{})
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, approved.Status)
	require.NotNil(t, approved.DecidedAt)
	require.Len(t, approved.ApprovalWorkflow, 1)
	assert.Equal(t, leave.StepApproved, approved.ApprovalWorkflow[0].Status)
	assert.Equal(t, 1, approved.ApprovalWorkflow[0].Order)
	assert.Equal(t, user.RoleDepartmentHead, approved.ApprovalWorkflow[0].ApproverRole)
	assertBalance(t, f.account(t, key), 15, 0, 6)

	assert.Equal(t, []leave.EventType{leave.EventLeaveSubmitted, leave.EventLeaveApproved}, f.events.types())
}

func TestSubmit_ScenarioB_OverSubscriptionWarns(t *testing.T) {
	f := newFixture(t)
	key := f.seedAnnual(t, 5)

	f.submit(t, alice, "2025-04-01", "2025-04-10")
	second := f.submit(t, alice, "2025-06-01", "2025-06-10")
	assert.False(t, second.Balance.HasBalance)
	assert.NotEmpty(t, second.Warning)

	account := f.account(t, key)
	assertBalance(t, account, 5, 20, -4)

	check, err := f.ledger.CheckBalance(context.Background(), key.EmployeeID, key.LeaveType, d(1), key.Year)
	require.NoError(t, err)
	assert.False(t, check.HasBalance)
	assert.True(t, check.Available.Equal(d(-4)))
}

func TestSubmit_ConcurrentOverSubscriptionWarnsOnce(t *testing.T) {
	f := newFixture(t)
	key := f.seedAnnual(t, 5)

	results := make([]leave.SubmitResult, 2)
	var wg sync.WaitGroup
	for i, dates := range [][2]string{{"2025-04-01", "2025-04-10"}, {"2025-06-01", "2025-06-10"}} {
		wg.Add(1)
		go func(i int, start, end string) {
			defer wg.Done()
			r, err := f.requests.Submit(context.Background(), alice, leave.SubmitLeaveRequest{
				LeaveType: string(leave.LeaveTypeAnnual), StartDate: start, EndDate: end, Reason: "family trip",
			})
			assert.NoError(t, err)
			results[i] = r
		}(i, dates[0], dates[1])
	}
	wg.Wait()

	warned := 0
	for _, r := range results {
		if r.Warning != "" {
			warned++
			assert.True(t, r.Balance.Available.Equal(d(6)), "available = %s", r.Balance.Available)
		}
	}
	assert.Equal(t, 1, warned)
	assertBalance(t, f.account(t, key), 5, 20, -4)
}

func TestSubmit_AcrossYearEndChargesStartYear(t *testing.T) {
	f := newFixture(t)

	submitted := f.submit(t, alice, "2025-12-29", "2026-01-02")
	assert.Equal(t, 5, submitted.Request.TotalDays)
	assert.Empty(t, submitted.Warning)
	assertBalance(t, f.account(t, leave.AccountKey{EmployeeID: alice.EmployeeID, LeaveType: leave.LeaveTypeAnnual, Year: 2025}), 0, 5, 16)

	_, err := f.ledger.GetAccount(context.Background(), leave.AccountKey{EmployeeID: alice.EmployeeID, LeaveType: leave.LeaveTypeAnnual, Year: 2026})
	assert.ErrorIs(t, err, leave.ErrAccountNotFound)
}

func TestReject_ScenarioC(t *testing.T) {
	f := newFixture(t)
	key := f.seedAnnual(t, 5)

	submitted := f.submit(t, alice, "2025-04-01", "2025-04-10")
	comments := "project deadline"
	rejected, err := f.requests.Reject(context.Background(), manager, submitted.Request.ID, leave.DecisionRequest{Comments: &comments})
	require.NoError(t, err)
	assert.Equal(t, leave.StatusRejected, rejected.Status)
	require.NotNil(t, rejected.ApprovalWorkflow[0].Comments)
	assert.Equal(t, comments, *rejected.ApprovalWorkflow[0].Comments)

	assertBalance(t, f.account(t, key), 5, 0, 16)
}

func TestSubmit_ScenarioD_ConflictsAnnotateBothRequests(t *testing.T) {
	f := newFixture(t)
	f.seedAnnual(t, 0)

	first := f.submit(t, alice, "2025-04-01", "2025-04-05")
	assert.False(t, first.Request.HasConflicts)

	second := f.submit(t, alice, "2025-04-04", "2025-04-08")
	assert.True(t, second.Request.HasConflicts)
	require.Len(t, second.Request.ConflictDetails, 1)
	assert.Contains(t, second.Request.ConflictDetails[0], first.Request.ID)

	stored, err := f.repo.GetByID(context.Background(), first.Request.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasConflicts)
	require.Len(t, stored.ConflictDetails, 1)
	assert.Contains(t, stored.ConflictDetails[0], second.Request.ID)
}

func TestSubmit_NoConflictAcrossDepartmentsOrAfterRejection(t *testing.T) {
	f := newFixture(t)
	f.seedAnnual(t, 0)

	first := f.submit(t, alice, "2025-04-01", "2025-04-05")
	_, err := f.requests.Reject(context.Background(), manager, first.Request.ID, leave.DecisionRequest{})
	require.NoError(t, err)

	second := f.submit(t, bob, "2025-04-02", "2025-04-03")
	assert.False(t, second.Request.HasConflicts)

	third := f.submit(t, opsHead, "2025-04-02", "2025-04-03")
	assert.False(t, third.Request.HasConflicts)
}

func TestApprove_TwiceIsAlreadyResolved(t *testing.T) {
	f := newFixture(t)
	key := f.seedAnnual(t, 0)
	submitted := f.submit(t, alice, "2025-04-01", "2025-04-03")

	_, err := f.requests.Approve(context.Background(), manager, submitted.Request.ID, leave.DecisionRequest{})
	require.NoError(t, err)

	_, err = f.requests.Approve(context.Background(), admin, submitted.Request.ID, leave.DecisionRequest{})
	assert.ErrorIs(t, err, leave.ErrAlreadyResolved)

	_, err = f.requests.Reject(context.Background(), admin, submitted.Request.ID, leave.DecisionRequest{})
	assert.ErrorIs(t, err, leave.ErrAlreadyResolved)

	account := f.account(t, key)
	assert.Equal(t, 1, countOps(account, leave.OperationConfirm))
	assert.Equal(t, 0, countOps(account, leave.OperationRelease))
	assertBalance(t, account, 3, 0, 18)
}

func TestApprove_ConcurrentApproversConfirmOnce(t *testing.T) {
	f := newFixture(t)
	key := f.seedAnnual(t, 0)
	submitted := f.submit(t, alice, "2025-04-01", "2025-04-03")

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i, approver := range []user.Actor{manager, admin, engHead, manager} {
		wg.Add(1)
		go func(i int, approver user.Actor) {
			defer wg.Done()
			_, errs[i] = f.requests.Approve(context.Background(), approver, submitted.Request.ID, leave.DecisionRequest{})
		}(i, approver)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, leave.ErrAlreadyResolved)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, countOps(f.account(t, key), leave.OperationConfirm))
}

func TestDecide_Authorization(t *testing.T) {
	f := newFixture(t)
	key := f.seedAnnual(t, 0)
	submitted := f.submit(t, alice, "2025-04-01", "2025-04-03")

	for _, actor := range []user.Actor{alice, bob, opsHead} {
		_, err := f.requests.Approve(context.Background(), actor, submitted.Request.ID, leave.DecisionRequest{})
		assert.ErrorIs(t, err, leave.ErrForbidden, "role %s", actor.Role)
	}

	stored, err := f.repo.GetByID(context.Background(), submitted.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusPending, stored.Status)
	assertBalance(t, f.account(t, key), 0, 3, 18)
}

func TestSubmit_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.requests.Submit(ctx, alice, leave.SubmitLeaveRequest{LeaveType: "annual", StartDate: "2025-04-05", EndDate: "2025-04-01", Reason: "x"})
	assert.ErrorIs(t, err, leave.ErrValidation)

	_, err = f.requests.Submit(ctx, manager, leave.SubmitLeaveRequest{EmployeeEmail: "ghost@example.com", LeaveType: "annual", StartDate: "2025-04-01", EndDate: "2025-04-01", Reason: "x"})
	assert.ErrorIs(t, err, leave.ErrValidation)
	assert.ErrorIs(t, err, employee.ErrEmployeeNotFound)

	_, err = f.requests.Submit(ctx, alice, leave.SubmitLeaveRequest{EmployeeEmail: bob.Email, LeaveType: "annual", StartDate: "2025-04-01", EndDate: "2025-04-01", Reason: "x"})
	assert.ErrorIs(t, err, leave.ErrForbidden)

	_, err = f.requests.Submit(ctx, user.Actor{}, leave.SubmitLeaveRequest{})
	assert.ErrorIs(t, err, user.ErrActorRequired)
}

func TestSubmit_OnBehalfByManager(t *testing.T) {
	f := newFixture(t)
	result, err := f.requests.Submit(context.Background(), manager, leave.SubmitLeaveRequest{
		EmployeeEmail: bob.Email,
		LeaveType:     "sick",
		StartDate:     "2025-03-12",
		EndDate:       "2025-03-13",
		Reason:        "flu",
		Priority:      leave.PriorityUrgent,
	})
	require.NoError(t, err)
	assert.Equal(t, bob.EmployeeID, result.Request.EmployeeID)
	assert.Equal(t, "eng", result.Request.DepartmentID)

	account := f.account(t, leave.AccountKey{EmployeeID: bob.EmployeeID, LeaveType: leave.LeaveTypeSick, Year: 2025})
	assertBalance(t, account, 0, 2, 10)
}

func TestSubmit_FailureLeavesNoState(t *testing.T) {
	f := newFixture(t)
	f.seedAnnual(t, 0)
	existing := f.submit(t, alice, "2025-05-01", "2025-05-02")

	_, err := f.requests.Submit(context.Background(), alice, leave.SubmitLeaveRequest{
		LeaveType: string(leave.LeaveTypeMaternity),
		StartDate: "2025-05-01",
		EndDate:   "2025-05-02",
		Reason:    "no policy configured",
	})
	assert.ErrorIs(t, err, leave.ErrAccountNotFound)

	list, err := f.queries.ListLeaves(context.Background(), admin, leave.LeaveFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, list.TotalCount)

	stored, err := f.repo.GetByID(context.Background(), existing.Request.ID)
	require.NoError(t, err)
	assert.False(t, stored.HasConflicts, "back-annotation is rolled back with the failed submission")
}

func TestCancel(t *testing.T) {
	t.Run("owner cancels pending request and days are released", func(t *testing.T) {
		f := newFixture(t)
		key := f.seedAnnual(t, 0)
		submitted := f.submit(t, alice, "2025-04-01", "2025-04-03")

		reason := "plans changed"
		cancelled, err := f.requests.Cancel(context.Background(), alice, submitted.Request.ID, leave.CancelLeaveRequest{Reason: &reason})
		require.NoError(t, err)
		assert.Equal(t, leave.StatusCancelled, cancelled.Status)
		assert.False(t, cancelled.IsActive)
		require.NotNil(t, cancelled.CancelledBy)
		assert.Equal(t, alice.EmployeeID, *cancelled.CancelledBy)
		assert.Equal(t, leave.StepCancelled, cancelled.ApprovalWorkflow[0].Status)
		assertBalance(t, f.account(t, key), 0, 0, 21)

		_, err = f.requests.Cancel(context.Background(), alice, submitted.Request.ID, leave.CancelLeaveRequest{})
		assert.ErrorIs(t, err, leave.ErrAlreadyResolved)
	})

	t.Run("owner cannot cancel after a manager approved", func(t *testing.T) {
		f := newFixture(t)
		f.seedAnnual(t, 0)
		submitted := f.submit(t, alice, "2025-04-01", "2025-04-03")
		_, err := f.requests.Approve(context.Background(), manager, submitted.Request.ID, leave.DecisionRequest{})
		require.NoError(t, err)

		_, err = f.requests.Cancel(context.Background(), alice, submitted.Request.ID, leave.CancelLeaveRequest{})
		assert.ErrorIs(t, err, leave.ErrForbidden)
	})

	t.Run("owner may cancel after a department head approved", func(t *testing.T) {
		f := newFixture(t)
		key := f.seedAnnual(t, 0)
		submitted := f.submit(t, alice, "2025-04-01", "2025-04-03")
		_, err := f.requests.Approve(context.Background(), engHead, submitted.Request.ID, leave.DecisionRequest{})
		require.NoError(t, err)

		cancelled, err := f.requests.Cancel(context.Background(), alice, submitted.Request.ID, leave.CancelLeaveRequest{})
		require.NoError(t, err)
		require.Len(t, cancelled.ApprovalWorkflow, 2)
		assert.Equal(t, 2, cancelled.ApprovalWorkflow[1].Order)
		assertBalance(t, f.account(t, key), 3, 0, 18)
	})

	t.Run("manager cancels approved request and used days stay", func(t *testing.T) {
		f := newFixture(t)
		key := f.seedAnnual(t, 0)
		submitted := f.submit(t, alice, "2025-04-01", "2025-04-03")
		_, err := f.requests.Approve(context.Background(), manager, submitted.Request.ID, leave.DecisionRequest{})
		require.NoError(t, err)

		_, err = f.requests.Cancel(context.Background(), manager, submitted.Request.ID, leave.CancelLeaveRequest{})
		require.NoError(t, err)

		account := f.account(t, key)
		assertBalance(t, account, 3, 0, 18)
		assert.Equal(t, 0, countOps(account, leave.OperationRelease))
	})

	t.Run("other staff cannot cancel", func(t *testing.T) {
		f := newFixture(t)
		f.seedAnnual(t, 0)
		submitted := f.submit(t, alice, "2025-04-01", "2025-04-03")

		_, err := f.requests.Cancel(context.Background(), bob, submitted.Request.ID, leave.CancelLeaveRequest{})
		assert.ErrorIs(t, err, leave.ErrForbidden)
	})

	t.Run("unknown request", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.requests.Cancel(context.Background(), admin, "missing", leave.CancelLeaveRequest{})
		assert.ErrorIs(t, err, leave.ErrLeaveRequestNotFound)
	})
}
