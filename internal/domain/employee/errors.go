package employee

import "errors"

var (
	ErrEmployeeNotFound   = errors.New("employee not found")
	ErrEmployeeInactive   = errors.New("employee is inactive")
	ErrDepartmentNotFound = errors.New("department not found")
)
