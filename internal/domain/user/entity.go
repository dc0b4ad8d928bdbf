package user

import "strings"

type Role string

const (
	RoleAdmin          Role = "admin"
	RoleManager        Role = "manager"
	RoleDepartmentHead Role = "department_head"
	RoleStaff          Role = "staff"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleDepartmentHead, RoleStaff:
		return true
	}
	return false
}

// IsPrivileged reports whether the role acts on any employee regardless of department.
func (r Role) IsPrivileged() bool {
	return r == RoleAdmin || r == RoleManager
}

// ParseRole normalizes a role claim. Unknown values fall back to staff.
func ParseRole(s string) Role {
	role := Role(strings.ToLower(strings.TrimSpace(s)))
	if !role.IsValid() {
		return RoleStaff
	}
	return role
}

// Actor is the authenticated caller as resolved from the access token and directory.
type Actor struct {
	UserID       string `json:"user_id"`
	EmployeeID   string `json:"employee_id"`
	Email        string `json:"email"`
	Role         Role   `json:"role"`
	DepartmentID string `json:"department_id"`
}

func (a Actor) IsZero() bool {
	return a.UserID == "" && a.EmployeeID == "" && a.Email == ""
}
