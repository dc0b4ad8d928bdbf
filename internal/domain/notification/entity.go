package notification

import "time"

type ReminderMessage struct {
	EmployeeName  string
	EmployeeEmail string
	LeaveType     string
	EndDate       time.Time
	TotalDays     int
}

type ApprovalMessage struct {
	EmployeeEmail string
	EmployeeName  string
	LeaveType     string
	Status        string
	Comments      *string
	StartDate     time.Time
	EndDate       time.Time
}
