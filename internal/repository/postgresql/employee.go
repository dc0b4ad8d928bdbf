package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/leave-engine/internal/domain/employee"
	"github.com/cmlabs-hris/leave-engine/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type employeeDirectoryImpl struct {
	db *database.DB
}

// NewEmployeeDirectory reads the employees table maintained by the HR directory.
func NewEmployeeDirectory(db *database.DB) employee.Directory {
	return &employeeDirectoryImpl{db: db}
}

func (r *employeeDirectoryImpl) findOne(ctx context.Context, where string, arg string) (employee.Employee, error) {
	q := GetQuerier(ctx, r.db)

	var e employee.Employee
	err := q.QueryRow(ctx, `
		SELECT id, user_id, email, full_name, department_id, role, is_active
		FROM employees
		WHERE `+where, arg).Scan(&e.ID, &e.UserID, &e.Email, &e.FullName, &e.DepartmentID, &e.Role, &e.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return employee.Employee{}, employee.ErrEmployeeNotFound
		}
		return employee.Employee{}, fmt.Errorf("find employee: %w", err)
	}
	return e, nil
}

// FindEmployeeByEmail implements employee.Directory.
func (r *employeeDirectoryImpl) FindEmployeeByEmail(ctx context.Context, email string) (employee.Employee, error) {
	return r.findOne(ctx, "LOWER(email) = LOWER($1)", email)
}

// FindEmployeeByID implements employee.Directory.
func (r *employeeDirectoryImpl) FindEmployeeByID(ctx context.Context, id string) (employee.Employee, error) {
	return r.findOne(ctx, "id = $1", id)
}

// FindDepartmentMembers implements employee.Directory.
func (r *employeeDirectoryImpl) FindDepartmentMembers(ctx context.Context, departmentID string) ([]string, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT id FROM employees
		WHERE department_id = $1 AND is_active = TRUE
		ORDER BY id
	`, departmentID)
	if err != nil {
		return nil, fmt.Errorf("find department members: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
