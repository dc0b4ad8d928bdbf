package user

// Resource is the authorization view of a leave request.
type Resource struct {
	OwnerEmployeeID string
	DepartmentID    string
	// DecidedByPrivileged is set once an admin or manager step holds a non-pending status.
	DecidedByPrivileged bool
}

// CanSubmitFor reports whether actor may file a leave request on behalf of employeeID.
func CanSubmitFor(actor Actor, employeeID string) bool {
	if actor.IsZero() {
		return false
	}
	if actor.Role.IsPrivileged() {
		return true
	}
	return actor.EmployeeID != "" && actor.EmployeeID == employeeID
}

// CanApprove covers both approval and rejection.
func CanApprove(actor Actor, res Resource) bool {
	switch actor.Role {
	case RoleAdmin, RoleManager:
		return true
	case RoleDepartmentHead:
		return actor.DepartmentID != "" && actor.DepartmentID == res.DepartmentID
	}
	return false
}

// CanModify gates cancellation (soft delete) of a request.
func CanModify(actor Actor, res Resource) bool {
	if actor.Role.IsPrivileged() {
		return true
	}
	if actor.EmployeeID == "" || actor.EmployeeID != res.OwnerEmployeeID {
		return false
	}
	return !res.DecidedByPrivileged
}

func CanView(actor Actor, res Resource) bool {
	return AccessScope(actor).Allows(res.OwnerEmployeeID, res.DepartmentID)
}

// CanAdjustBalance gates manual ledger corrections.
func CanAdjustBalance(actor Actor) bool {
	return actor.Role == RoleAdmin
}

func CanViewBalance(actor Actor, employeeID string) bool {
	if actor.Role.IsPrivileged() {
		return true
	}
	return actor.EmployeeID != "" && actor.EmployeeID == employeeID
}

// Scope is the row-level filter applied to list, export and stats queries.
type Scope struct {
	All          bool
	DepartmentID string
	EmployeeID   string
}

func AccessScope(actor Actor) Scope {
	switch actor.Role {
	case RoleAdmin, RoleManager:
		return Scope{All: true}
	case RoleDepartmentHead:
		if actor.DepartmentID != "" {
			return Scope{DepartmentID: actor.DepartmentID}
		}
	}
	return Scope{EmployeeID: actor.EmployeeID}
}

func (s Scope) Allows(employeeID, departmentID string) bool {
	switch {
	case s.All:
		return true
	case s.DepartmentID != "":
		return s.DepartmentID == departmentID
	default:
		return s.EmployeeID != "" && s.EmployeeID == employeeID
	}
}
