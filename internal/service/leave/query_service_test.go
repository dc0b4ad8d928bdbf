package leave_test

import (
	"context"
	"testing"
	"time"

	"github.com/cmlabs-hris/leave-engine/internal/domain/leave"
	"github.com/cmlabs-hris/leave-engine/internal/domain/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListLeaves_ScopedByRole(t *testing.T) {
	f := newFixture(t)
	aliceReq := f.submit(t, alice, "2025-04-01", "2025-04-02")
	f.submit(t, bob, "2025-04-10", "2025-04-11")
	f.submit(t, opsHead, "2025-04-20", "2025-04-21")

	cases := []struct {
		actor user.Actor
		want  int64
	}{
		{alice, 1},
		{engHead, 2},
		{opsHead, 1},
		{manager, 3},
		{admin, 3},
	}
	for _, tc := range cases {
		t.Run(string(tc.actor.Role)+"/"+tc.actor.EmployeeID, func(t *testing.T) {
			resp, err := f.queries.ListLeaves(context.Background(), tc.actor, leave.LeaveFilter{})
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.TotalCount)
		})
	}

	_, err := f.queries.Get(context.Background(), bob, aliceReq.Request.ID)
	assert.ErrorIs(t, err, leave.ErrForbidden)

	got, err := f.queries.Get(context.Background(), engHead, aliceReq.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, aliceReq.Request.ID, got.ID)
}

func TestListLeaves_FiltersAndPaging(t *testing.T) {
	f := newFixture(t)
	for _, start := range []string{"2025-04-01", "2025-05-01", "2025-06-01", "2025-07-01", "2025-08-01"} {
		f.submit(t, alice, start, start)
	}
	approvedID := f.submit(t, bob, "2025-09-01", "2025-09-01").Request.ID
	_, err := f.requests.Approve(context.Background(), manager, approvedID, leave.DecisionRequest{})
	require.NoError(t, err)

	resp, err := f.queries.ListLeaves(context.Background(), admin, leave.LeaveFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 6, resp.TotalCount)
	assert.Equal(t, 3, resp.TotalPages)
	assert.Len(t, resp.Items, 2)
	assert.Equal(t, "3-4 of 6 results", resp.Showing)

	status := leave.StatusApproved
	resp, err = f.queries.ListLeaves(context.Background(), admin, leave.LeaveFilter{Status: &status})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, approvedID, resp.Items[0].ID)

	from := time.Date(2025, time.May, 15, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, time.July, 15, 0, 0, 0, 0, time.UTC)
	resp, err = f.queries.ListLeaves(context.Background(), admin, leave.LeaveFilter{StartDate: &from, EndDate: &to})
	require.NoError(t, err)
	assert.EqualValues(t, 2, resp.TotalCount)

	email := bob.Email
	resp, err = f.queries.ListLeaves(context.Background(), admin, leave.LeaveFilter{EmployeeEmail: &email})
	require.NoError(t, err)
	assert.EqualValues(t, 1, resp.TotalCount)

	resp, err = f.queries.ListLeaves(context.Background(), admin, leave.LeaveFilter{Page: 9})
	require.NoError(t, err)
	assert.Empty(t, resp.Items)
	assert.Equal(t, "0 results", resp.Showing)

	bad := leave.Status("archived")
	_, err = f.queries.ListLeaves(context.Background(), admin, leave.LeaveFilter{Status: &bad})
	assert.ErrorIs(t, err, leave.ErrValidation)
}

func TestExportLeaves(t *testing.T) {
	f := newFixture(t)
	id := f.submit(t, alice, "2025-04-01", "2025-04-03").Request.ID
	f.submit(t, bob, "2025-04-05", "2025-04-05")
	_, err := f.requests.Approve(context.Background(), engHead, id, leave.DecisionRequest{})
	require.NoError(t, err)

	rows, err := f.queries.ExportLeaves(context.Background(), engHead, leave.LeaveFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	var exported leave.LeaveExportRow
	for _, r := range rows {
		if r.ID == id {
			exported = r
		}
	}
	assert.Equal(t, "2025-04-01", exported.StartDate)
	assert.Equal(t, 3, exported.TotalDays)
	assert.Equal(t, engHead.EmployeeID, exported.ApprovedBy)

	rows, err = f.queries.ExportLeaves(context.Background(), bob, leave.LeaveFilter{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestCalculateLeaveStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	upcoming := f.submit(t, alice, "2025-04-01", "2025-04-03").Request.ID
	_, err := f.requests.Approve(ctx, engHead, upcoming, leave.DecisionRequest{})
	require.NoError(t, err)

	today := f.submit(t, bob, "2025-03-09", "2025-03-11").Request.ID
	_, err = f.requests.Approve(ctx, manager, today, leave.DecisionRequest{})
	require.NoError(t, err)

	rejected := f.submit(t, bob, "2025-05-01", "2025-05-01").Request.ID
	_, err = f.requests.Reject(ctx, manager, rejected, leave.DecisionRequest{})
	require.NoError(t, err)

	f.submit(t, opsHead, "2025-06-01", "2025-06-02")

	cancelled := f.submit(t, alice, "2025-07-01", "2025-07-01").Request.ID
	_, err = f.requests.Cancel(ctx, alice, cancelled, leave.CancelLeaveRequest{})
	require.NoError(t, err)

	all := f.queries.CalculateLeaveStats(ctx, admin, fixedNow)
	assert.Equal(t, leave.LeaveStats{
		TotalApplications: 4,
		PendingApprovals:  1,
		ApprovedThisMonth: 2,
		RejectedThisMonth: 1,
		UpcomingLeaves:    1,
		OnLeaveToday:      1,
	}, all)

	eng := f.queries.CalculateLeaveStats(ctx, engHead, fixedNow)
	assert.EqualValues(t, 3, eng.TotalApplications)
	assert.EqualValues(t, 0, eng.PendingApprovals)

	own := f.queries.CalculateLeaveStats(ctx, alice, fixedNow)
	assert.EqualValues(t, 1, own.TotalApplications)
	assert.EqualValues(t, 1, own.UpcomingLeaves)

	nextMonth := f.queries.CalculateLeaveStats(ctx, admin, fixedNow.AddDate(0, 1, 0))
	assert.Zero(t, nextMonth.ApprovedThisMonth)
	assert.Zero(t, nextMonth.RejectedThisMonth)
}
