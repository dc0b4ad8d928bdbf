package leave

import (
	"math"
	"time"

	"github.com/cmlabs-hris/leave-engine/internal/domain/user"
	"github.com/shopspring/decimal"
)

type LeaveType string

const (
	LeaveTypeAnnual      LeaveType = "annual"
	LeaveTypeSick        LeaveType = "sick"
	LeaveTypeMaternity   LeaveType = "maternity"
	LeaveTypePaternity   LeaveType = "paternity"
	LeaveTypeEmergency   LeaveType = "emergency"
	LeaveTypeBereavement LeaveType = "bereavement"
	LeaveTypePersonal    LeaveType = "personal"
	LeaveTypeStudy       LeaveType = "study"
)

var AllLeaveTypes = []LeaveType{
	LeaveTypeAnnual,
	LeaveTypeSick,
	LeaveTypeMaternity,
	LeaveTypePaternity,
	LeaveTypeEmergency,
	LeaveTypeBereavement,
	LeaveTypePersonal,
	LeaveTypeStudy,
}

func (t LeaveType) IsValid() bool {
	for _, lt := range AllLeaveTypes {
		if lt == t {
			return true
		}
	}
	return false
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepApproved  StepStatus = "approved"
	StepRejected  StepStatus = "rejected"
	StepCancelled StepStatus = "cancelled"
)

// ApprovalStep is one recorded decision point of a request.
type ApprovalStep struct {
	ApproverID   *string    `json:"approver_id,omitempty"`
	ApproverRole user.Role  `json:"approver_role,omitempty"`
	Status       StepStatus `json:"status"`
	Comments     *string    `json:"comments,omitempty"`
	ActionDate   *time.Time `json:"action_date,omitempty"`
	Order        int        `json:"order"`
}

type LeaveRequest struct {
	ID                 string         `json:"id"`
	EmployeeID         string         `json:"employee_id"`
	EmployeeName       string         `json:"employee_name"`
	EmployeeEmail      string         `json:"employee_email"`
	DepartmentID       string         `json:"department_id"`
	LeaveType          LeaveType      `json:"leave_type"`
	StartDate          time.Time      `json:"start_date"`
	EndDate            time.Time      `json:"end_date"`
	TotalDays          int            `json:"total_days"`
	Reason             string         `json:"reason"`
	Status             Status         `json:"status"`
	Priority           Priority       `json:"priority"`
	SubmissionDate     time.Time      `json:"submission_date"`
	LastModified       time.Time      `json:"last_modified"`
	DecidedAt          *time.Time     `json:"decided_at,omitempty"`
	IsActive           bool           `json:"is_active"`
	HasConflicts       bool           `json:"has_conflicts"`
	ConflictDetails    []string       `json:"conflict_details"`
	ApprovalWorkflow   []ApprovalStep `json:"approval_workflow"`
	ReminderSent       bool           `json:"reminder_sent"`
	ReminderSentAt     *time.Time     `json:"reminder_sent_at,omitempty"`
	CancelledBy        *string        `json:"cancelled_by,omitempty"`
	CancelledAt        *time.Time     `json:"cancelled_at,omitempty"`
	CancellationReason *string        `json:"cancellation_reason,omitempty"`
}

// DateOnly truncates t to midnight UTC of its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CalculateTotalDays returns ceil((end-start)/1 day)+1, never less than 1.
func CalculateTotalDays(start, end time.Time) int {
	diff := end.Sub(start).Hours() / 24
	days := int(math.Ceil(diff)) + 1
	if days < 1 {
		return 1
	}
	return days
}

func (r *LeaveRequest) Days() decimal.Decimal {
	return decimal.NewFromInt(int64(r.TotalDays))
}

// Year is the ledger year charged by the request.
func (r *LeaveRequest) Year() int {
	return r.StartDate.Year()
}

func (r *LeaveRequest) AccountKey() AccountKey {
	return AccountKey{EmployeeID: r.EmployeeID, LeaveType: r.LeaveType, Year: r.Year()}
}

// Overlaps uses inclusive bounds on both sides.
func (r *LeaveRequest) Overlaps(start, end time.Time) bool {
	return !r.StartDate.After(end) && !r.EndDate.Before(start)
}

// PendingStep returns the index of the pending step, or -1.
func (r *LeaveRequest) PendingStep() int {
	for i, step := range r.ApprovalWorkflow {
		if step.Status == StepPending {
			return i
		}
	}
	return -1
}

// RecordStep updates the pending step in place or appends a new one.
func (r *LeaveRequest) RecordStep(step ApprovalStep) {
	if i := r.PendingStep(); i >= 0 {
		step.Order = r.ApprovalWorkflow[i].Order
		r.ApprovalWorkflow[i] = step
		return
	}
	step.Order = len(r.ApprovalWorkflow) + 1
	r.ApprovalWorkflow = append(r.ApprovalWorkflow, step)
}

func (r *LeaveRequest) AddConflict(detail string) {
	r.HasConflicts = true
	for _, d := range r.ConflictDetails {
		if d == detail {
			return
		}
	}
	r.ConflictDetails = append(r.ConflictDetails, detail)
}

// Resource projects the request for authorization checks.
func (r *LeaveRequest) Resource() user.Resource {
	decided := false
	for _, step := range r.ApprovalWorkflow {
		if step.ApproverRole.IsPrivileged() && step.Status != StepPending && step.Status != StepCancelled {
			decided = true
			break
		}
	}
	return user.Resource{
		OwnerEmployeeID:     r.EmployeeID,
		DepartmentID:        r.DepartmentID,
		DecidedByPrivileged: decided,
	}
}

// LeavePolicy is read-only HR configuration per leave type.
type LeavePolicy struct {
	LeaveType         LeaveType       `json:"leave_type"`
	DefaultAllocation decimal.Decimal `json:"default_allocation"`
	IsActive          bool            `json:"is_active"`
	AllowCarryForward bool            `json:"allow_carry_forward"`
	MaxCarryForward   decimal.Decimal `json:"max_carry_forward"`
}
