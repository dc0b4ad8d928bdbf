package postgresql

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cmlabs-hris/leave-engine/internal/domain/leave"
	"github.com/cmlabs-hris/leave-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

const leaveRequestColumns = `
	lr.id, lr.employee_id, lr.employee_name, lr.employee_email, lr.department_id,
	lr.leave_type, lr.start_date, lr.end_date, lr.total_days, lr.reason,
	lr.status, lr.priority, lr.submission_date, lr.last_modified, lr.decided_at,
	lr.is_active, lr.has_conflicts, lr.conflict_details, lr.approval_workflow,
	lr.reminder_sent, lr.reminder_sent_at,
	lr.cancelled_by, lr.cancelled_at, lr.cancellation_reason
`

type leaveRequestRepositoryImpl struct {
	db *database.DB
}

func NewLeaveRequestRepository(db *database.DB) leave.LeaveRequestRepository {
	return &leaveRequestRepositoryImpl{db: db}
}

func scanLeaveRequest(row pgx.Row) (leave.LeaveRequest, error) {
	var lr leave.LeaveRequest
	err := row.Scan(
		&lr.ID, &lr.EmployeeID, &lr.EmployeeName, &lr.EmployeeEmail, &lr.DepartmentID,
		&lr.LeaveType, &lr.StartDate, &lr.EndDate, &lr.TotalDays, &lr.Reason,
		&lr.Status, &lr.Priority, &lr.SubmissionDate, &lr.LastModified, &lr.DecidedAt,
		&lr.IsActive, &lr.HasConflicts, &lr.ConflictDetails, &lr.ApprovalWorkflow,
		&lr.ReminderSent, &lr.ReminderSentAt,
		&lr.CancelledBy, &lr.CancelledAt, &lr.CancellationReason,
	)
	return lr, err
}

func collectLeaveRequests(rows pgx.Rows) ([]leave.LeaveRequest, error) {
	defer rows.Close()

	requests := make([]leave.LeaveRequest, 0)
	for rows.Next() {
		lr, err := scanLeaveRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leave request: %w", err)
		}
		requests = append(requests, lr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return requests, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Create implements leave.LeaveRequestRepository.
func (r *leaveRequestRepositoryImpl) Create(ctx context.Context, lr leave.LeaveRequest) error {
	q := GetQuerier(ctx, r.db)

	_, err := q.Exec(ctx, `
		INSERT INTO leave_requests (
			id, employee_id, employee_name, employee_email, department_id,
			leave_type, start_date, end_date, total_days, reason,
			status, priority, submission_date, last_modified, decided_at,
			is_active, has_conflicts, conflict_details, approval_workflow,
			reminder_sent, reminder_sent_at,
			cancelled_by, cancelled_at, cancellation_reason
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24
		)
	`,
		lr.ID, lr.EmployeeID, lr.EmployeeName, lr.EmployeeEmail, lr.DepartmentID,
		lr.LeaveType, lr.StartDate, lr.EndDate, lr.TotalDays, lr.Reason,
		lr.Status, lr.Priority, lr.SubmissionDate, lr.LastModified, lr.DecidedAt,
		lr.IsActive, lr.HasConflicts, nonNil(lr.ConflictDetails), nonNil(lr.ApprovalWorkflow),
		lr.ReminderSent, lr.ReminderSentAt,
		lr.CancelledBy, lr.CancelledAt, lr.CancellationReason,
	)
	if err != nil {
		return fmt.Errorf("insert leave request: %w", err)
	}
	return nil
}

func (r *leaveRequestRepositoryImpl) getByID(ctx context.Context, id string, forUpdate bool) (leave.LeaveRequest, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT ` + leaveRequestColumns + ` FROM leave_requests lr WHERE lr.id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	lr, err := scanLeaveRequest(q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return leave.LeaveRequest{}, leave.ErrLeaveRequestNotFound
		}
		return leave.LeaveRequest{}, fmt.Errorf("get leave request: %w", err)
	}
	return lr, nil
}

// GetByID implements leave.LeaveRequestRepository.
func (r *leaveRequestRepositoryImpl) GetByID(ctx context.Context, id string) (leave.LeaveRequest, error) {
	return r.getByID(ctx, id, false)
}

// GetByIDForUpdate implements leave.LeaveRequestRepository.
func (r *leaveRequestRepositoryImpl) GetByIDForUpdate(ctx context.Context, id string) (leave.LeaveRequest, error) {
	return r.getByID(ctx, id, true)
}

// Update implements leave.LeaveRequestRepository.
func (r *leaveRequestRepositoryImpl) Update(ctx context.Context, lr leave.LeaveRequest) error {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `
		UPDATE leave_requests SET
			status = $2, priority = $3, last_modified = $4, decided_at = $5,
			is_active = $6, has_conflicts = $7, conflict_details = $8, approval_workflow = $9,
			reminder_sent = $10, reminder_sent_at = $11,
			cancelled_by = $12, cancelled_at = $13, cancellation_reason = $14
		WHERE id = $1
	`,
		lr.ID, lr.Status, lr.Priority, lr.LastModified, lr.DecidedAt,
		lr.IsActive, lr.HasConflicts, nonNil(lr.ConflictDetails), nonNil(lr.ApprovalWorkflow),
		lr.ReminderSent, lr.ReminderSentAt,
		lr.CancelledBy, lr.CancelledAt, lr.CancellationReason,
	)
	if err != nil {
		return fmt.Errorf("update leave request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return leave.ErrLeaveRequestNotFound
	}
	return nil
}

// FindOverlapping implements leave.LeaveRequestRepository. Inside a
// transaction the department stays locked until commit, so concurrent
// submissions in one department scan one after the other.
func (r *leaveRequestRepositoryImpl) FindOverlapping(ctx context.Context, departmentID string, start, end time.Time, excludeID string) ([]leave.LeaveRequest, error) {
	q := GetQuerier(ctx, r.db)

	if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "leave_requests:"+departmentID); err != nil {
		return nil, fmt.Errorf("failed to lock department %s: %w", departmentID, err)
	}

	rows, err := q.Query(ctx, `
		SELECT `+leaveRequestColumns+`
		FROM leave_requests lr
		WHERE lr.department_id = $1
		  AND lr.is_active = TRUE
		  AND lr.status IN ('pending', 'approved')
		  AND lr.start_date <= $3
		  AND lr.end_date >= $2
		  AND lr.id <> $4
		ORDER BY lr.start_date
	`, departmentID, start, end, excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query overlapping leave requests: %w", err)
	}
	return collectLeaveRequests(rows)
}

// List implements leave.LeaveRequestRepository.
func (r *leaveRequestRepositoryImpl) List(ctx context.Context, filter leave.LeaveFilter) ([]leave.LeaveRequest, int64, error) {
	q := GetQuerier(ctx, r.db)

	baseQuery := `
		FROM leave_requests lr
		WHERE lr.is_active = TRUE
	`

	args := []interface{}{}
	argIdx := 1
	whereClauses := []string{}

	addClause := func(format string, value interface{}) {
		whereClauses = append(whereClauses, fmt.Sprintf(format, argIdx))
		args = append(args, value)
		argIdx++
	}

	// Row-level access scope
	switch {
	case filter.Scope.All:
	case filter.Scope.DepartmentID != "":
		addClause("lr.department_id = $%d", filter.Scope.DepartmentID)
	default:
		addClause("lr.employee_id = $%d", filter.Scope.EmployeeID)
	}

	if filter.Status != nil {
		addClause("lr.status = $%d", *filter.Status)
	}
	if filter.LeaveType != nil {
		addClause("lr.leave_type = $%d", *filter.LeaveType)
	}
	if filter.DepartmentID != nil && *filter.DepartmentID != "" {
		addClause("lr.department_id = $%d", *filter.DepartmentID)
	}
	if filter.EmployeeID != nil && *filter.EmployeeID != "" {
		addClause("lr.employee_id = $%d", *filter.EmployeeID)
	}
	if filter.EmployeeEmail != nil && *filter.EmployeeEmail != "" {
		addClause("LOWER(lr.employee_email) = LOWER($%d)", *filter.EmployeeEmail)
	}
	// Date range keeps requests that overlap the window
	if filter.StartDate != nil {
		addClause("lr.end_date >= $%d", *filter.StartDate)
	}
	if filter.EndDate != nil {
		addClause("lr.start_date <= $%d", *filter.EndDate)
	}

	if len(whereClauses) > 0 {
		baseQuery += " AND " + strings.Join(whereClauses, " AND ")
	}

	var total int64
	if err := q.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count leave requests: %w", err)
	}

	selectQuery := "SELECT " + leaveRequestColumns + baseQuery +
		" ORDER BY lr.submission_date DESC, lr.id" +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, filter.Limit, filter.Offset())

	rows, err := q.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query leave requests: %w", err)
	}
	requests, err := collectLeaveRequests(rows)
	if err != nil {
		return nil, 0, err
	}
	return requests, total, nil
}

// FindReminderCandidates implements leave.LeaveRequestRepository.
func (r *leaveRequestRepositoryImpl) FindReminderCandidates(ctx context.Context, from, to time.Time) ([]leave.LeaveRequest, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT `+leaveRequestColumns+`
		FROM leave_requests lr
		WHERE lr.status = 'approved'
		  AND lr.is_active = TRUE
		  AND lr.reminder_sent = FALSE
		  AND lr.end_date >= $1
		  AND lr.end_date < $2
		ORDER BY lr.end_date, lr.id
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminder candidates: %w", err)
	}
	return collectLeaveRequests(rows)
}

// MarkReminderSent implements leave.LeaveRequestRepository.
func (r *leaveRequestRepositoryImpl) MarkReminderSent(ctx context.Context, id string, at time.Time) (bool, error) {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `
		UPDATE leave_requests
		SET reminder_sent = TRUE, reminder_sent_at = $2
		WHERE id = $1 AND reminder_sent = FALSE
	`, id, at)
	if err != nil {
		return false, fmt.Errorf("mark reminder sent: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Stats implements leave.LeaveRequestRepository.
func (r *leaveRequestRepositoryImpl) Stats(ctx context.Context, sq leave.StatsQuery) (leave.LeaveStats, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE lr.status = 'pending'),
			COUNT(*) FILTER (WHERE lr.status = 'approved' AND lr.decided_at >= $1 AND lr.decided_at < $2),
			COUNT(*) FILTER (WHERE lr.status = 'rejected' AND lr.decided_at >= $1 AND lr.decided_at < $2),
			COUNT(*) FILTER (WHERE lr.status = 'approved' AND lr.start_date > $3),
			COUNT(*) FILTER (WHERE lr.status = 'approved' AND lr.start_date <= $3 AND lr.end_date >= $3)
		FROM leave_requests lr
		WHERE lr.is_active = TRUE
	`
	args := []interface{}{sq.MonthStart, sq.MonthEnd, sq.Today}
	if sq.EmployeeIDs != nil {
		query += ` AND lr.employee_id = ANY($4)`
		args = append(args, sq.EmployeeIDs)
	}

	var s leave.LeaveStats
	err := q.QueryRow(ctx, query, args...).Scan(
		&s.TotalApplications, &s.PendingApprovals,
		&s.ApprovedThisMonth, &s.RejectedThisMonth,
		&s.UpcomingLeaves, &s.OnLeaveToday,
	)
	if err != nil {
		return leave.LeaveStats{}, fmt.Errorf("failed to compute leave stats: %w", err)
	}
	return s, nil
}
