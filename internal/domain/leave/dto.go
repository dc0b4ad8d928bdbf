package leave

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/leave-engine/internal/domain/user"
	"github.com/cmlabs-hris/leave-engine/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

type SubmitLeaveRequest struct {
	// EmployeeEmail lets admins and managers file on behalf of someone else.
	EmployeeEmail string   `json:"employee_email,omitempty" validate:"omitempty,email"`
	LeaveType     string   `json:"leave_type" validate:"required,oneof=annual sick maternity paternity emergency bereavement personal study"`
	StartDate     string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate       string   `json:"end_date" validate:"required,datetime=2006-01-02"`
	Reason        string   `json:"reason" validate:"required,max=1000"`
	Priority      Priority `json:"priority,omitempty" validate:"omitempty,oneof=low normal high urgent"`

	start time.Time
	end   time.Time
}

func (r *SubmitLeaveRequest) Validate() error {
	errs := validator.Struct(r)
	if len(errs) > 0 {
		return errs
	}

	if validator.IsEmpty(r.Reason) {
		errs.Add("reason", "reason must not be blank")
	}

	r.start, _ = time.Parse(dateLayout, r.StartDate)
	r.end, _ = time.Parse(dateLayout, r.EndDate)
	if r.end.Before(r.start) {
		errs.Add("end_date", "end_date must not be before start_date")
	}

	return errs.Err()
}

// Dates returns the parsed dates. Valid after Validate.
func (r *SubmitLeaveRequest) Dates() (time.Time, time.Time) {
	return r.start, r.end
}

type DecisionRequest struct {
	Comments *string `json:"comments,omitempty" validate:"omitempty,max=1000"`
}

func (r *DecisionRequest) Validate() error {
	return validator.Struct(r).Err()
}

type CancelLeaveRequest struct {
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=1000"`
}

func (r *CancelLeaveRequest) Validate() error {
	return validator.Struct(r).Err()
}

type InitializeAccountsRequest struct {
	EmployeeID string `json:"employee_id" validate:"required"`
	Year       int    `json:"year" validate:"required,gte=2000,lte=2100"`
}

func (r *InitializeAccountsRequest) Validate() error {
	return validator.Struct(r).Err()
}

type AdjustBalanceRequest struct {
	EmployeeID string          `json:"employee_id" validate:"required"`
	LeaveType  LeaveType       `json:"leave_type" validate:"required"`
	Year       int             `json:"year" validate:"required,gte=2000,lte=2100"`
	Delta      decimal.Decimal `json:"delta"`
	Reason     string          `json:"reason" validate:"required,max=500"`
}

func (r *AdjustBalanceRequest) Validate() error {
	errs := validator.Struct(r)
	if r.LeaveType != "" && !r.LeaveType.IsValid() {
		errs.Add("leave_type", "leave_type is not a known leave type")
	}
	if r.Delta.IsZero() {
		errs.Add("delta", "delta must not be zero")
	}
	if validator.IsEmpty(r.Reason) {
		errs.Add("reason", "reason is required")
	}
	return errs.Err()
}

type CarryForwardRequest struct {
	EmployeeID string    `json:"employee_id" validate:"required"`
	LeaveType  LeaveType `json:"leave_type" validate:"required"`
	FromYear   int       `json:"from_year" validate:"required,gte=2000,lte=2100"`
}

func (r *CarryForwardRequest) Validate() error {
	errs := validator.Struct(r)
	if r.LeaveType != "" && !r.LeaveType.IsValid() {
		errs.Add("leave_type", "leave_type is not a known leave type")
	}
	return errs.Err()
}

// MutationParams addresses a reserve, confirm or release.
type MutationParams struct {
	EmployeeID     string
	LeaveType      LeaveType
	Days           decimal.Decimal
	LeaveRequestID string
	Year           int
	Reason         string
}

func (p MutationParams) Key() AccountKey {
	return AccountKey{EmployeeID: p.EmployeeID, LeaveType: p.LeaveType, Year: p.Year}
}

type AdjustParams struct {
	EmployeeID string
	LeaveType  LeaveType
	Delta      decimal.Decimal
	Reason     string
	Year       int
	ActorID    string
}

type BalanceCheck struct {
	HasBalance bool            `json:"has_balance"`
	Available  decimal.Decimal `json:"available"`
	Required   decimal.Decimal `json:"required"`
	Message    string          `json:"message"`
}

func NewBalanceCheck(leaveType LeaveType, available, required decimal.Decimal) BalanceCheck {
	check := BalanceCheck{
		HasBalance: available.GreaterThanOrEqual(required),
		Available:  available,
		Required:   required,
	}
	if check.HasBalance {
		check.Message = fmt.Sprintf("%s day(s) of %s leave available", available, leaveType)
	} else {
		check.Message = fmt.Sprintf("insufficient %s leave balance: %s available, %s required", leaveType, available, required)
	}
	return check
}

type ReconcileResult struct {
	Key      AccountKey      `json:"key"`
	Stored   Counters        `json:"stored"`
	Replayed Counters        `json:"replayed"`
	Drift    bool            `json:"drift"`
	Stale    decimal.Decimal `json:"stale_remaining"`
}

type SubmitResult struct {
	Request LeaveRequest `json:"request"`
	Balance BalanceCheck `json:"balance"`
	Warning string       `json:"warning,omitempty"`
}

type LeaveFilter struct {
	Status        *Status    `json:"status,omitempty"`
	LeaveType     *LeaveType `json:"leave_type,omitempty"`
	DepartmentID  *string    `json:"department_id,omitempty"`
	EmployeeID    *string    `json:"employee_id,omitempty"`
	EmployeeEmail *string    `json:"employee_email,omitempty"`
	StartDate     *time.Time `json:"start_date,omitempty"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	Page          int        `json:"page"`
	Limit         int        `json:"limit"`

	// Scope is set by the query service from the caller, never from input.
	Scope user.Scope `json:"-"`
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Normalize clamps paging and validates enum filters.
func (f *LeaveFilter) Normalize() error {
	var errs validator.ValidationErrors
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
	if f.Status != nil && !f.Status.IsValid() {
		errs.Add("status", "status is not a known status")
	}
	if f.LeaveType != nil && !f.LeaveType.IsValid() {
		errs.Add("leave_type", "leave_type is not a known leave type")
	}
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		errs.Add("end_date", "end_date must not be before start_date")
	}
	return errs.Err()
}

func (f *LeaveFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

type ListLeaveResponse struct {
	Items      []LeaveRequest `json:"items"`
	TotalCount int64          `json:"total_count"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"total_pages"`
	Showing    string         `json:"showing"`
}

// LeaveExportRow is the flat projection consumed by report generators.
type LeaveExportRow struct {
	ID             string    `json:"id"`
	EmployeeID     string    `json:"employee_id"`
	EmployeeName   string    `json:"employee_name"`
	EmployeeEmail  string    `json:"employee_email"`
	DepartmentID   string    `json:"department_id"`
	LeaveType      LeaveType `json:"leave_type"`
	StartDate      string    `json:"start_date"`
	EndDate        string    `json:"end_date"`
	TotalDays      int       `json:"total_days"`
	Status         Status    `json:"status"`
	Priority       Priority  `json:"priority"`
	Reason         string    `json:"reason"`
	SubmissionDate string    `json:"submission_date"`
	HasConflicts   bool      `json:"has_conflicts"`
	ApprovedBy     string    `json:"approved_by,omitempty"`
	DecisionDate   string    `json:"decision_date,omitempty"`
}

func ToExportRow(r LeaveRequest) LeaveExportRow {
	row := LeaveExportRow{
		ID:             r.ID,
		EmployeeID:     r.EmployeeID,
		EmployeeName:   r.EmployeeName,
		EmployeeEmail:  r.EmployeeEmail,
		DepartmentID:   r.DepartmentID,
		LeaveType:      r.LeaveType,
		StartDate:      r.StartDate.Format(dateLayout),
		EndDate:        r.EndDate.Format(dateLayout),
		TotalDays:      r.TotalDays,
		Status:         r.Status,
		Priority:       r.Priority,
		Reason:         r.Reason,
		SubmissionDate: r.SubmissionDate.Format(time.RFC3339),
		HasConflicts:   r.HasConflicts,
	}
	for _, step := range r.ApprovalWorkflow {
		if step.Status == StepApproved || step.Status == StepRejected {
			if step.ApproverID != nil {
				row.ApprovedBy = *step.ApproverID
			}
			if step.ActionDate != nil {
				row.DecisionDate = step.ActionDate.Format(time.RFC3339)
			}
		}
	}
	return row
}

type LeaveStats struct {
	TotalApplications int64 `json:"total_applications"`
	PendingApprovals  int64 `json:"pending_approvals"`
	ApprovedThisMonth int64 `json:"approved_this_month"`
	RejectedThisMonth int64 `json:"rejected_this_month"`
	UpcomingLeaves    int64 `json:"upcoming_leaves"`
	OnLeaveToday      int64 `json:"on_leave_today"`
}

// StatsQuery carries the boundaries used for one stats computation.
type StatsQuery struct {
	EmployeeIDs []string // nil means every employee
	MonthStart  time.Time
	MonthEnd    time.Time
	Today       time.Time
}

type ReminderRunResult struct {
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	Candidates  int       `json:"candidates"`
	Sent        int       `json:"sent"`
	Failed      int       `json:"failed"`
	Skipped     bool      `json:"skipped"`
}
