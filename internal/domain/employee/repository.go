package employee

import "context"

// Directory resolves identities and department membership. It is read-only.
type Directory interface {
	FindEmployeeByEmail(ctx context.Context, email string) (Employee, error)
	FindEmployeeByID(ctx context.Context, id string) (Employee, error)
	FindDepartmentMembers(ctx context.Context, departmentID string) ([]string, error)
}
