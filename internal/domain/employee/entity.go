package employee

import "github.com/cmlabs-hris/leave-engine/internal/domain/user"

// Employee is the directory view of a person who can hold leave accounts.
type Employee struct {
	ID           string
	UserID       *string
	Email        string
	FullName     string
	DepartmentID string
	Role         user.Role
	IsActive     bool
}

// Actor builds the authorization identity of the employee.
func (e Employee) Actor() user.Actor {
	a := user.Actor{
		EmployeeID:   e.ID,
		Email:        e.Email,
		Role:         e.Role,
		DepartmentID: e.DepartmentID,
	}
	if e.UserID != nil {
		a.UserID = *e.UserID
	}
	return a
}
