package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/cmlabs-hris/leave-engine/internal/domain/employee"
)

type employeeDirectory struct {
	store *Store
}

func NewEmployeeDirectory(store *Store) employee.Directory {
	return &employeeDirectory{store: store}
}

// PutEmployee adds or replaces a directory entry.
func (s *Store) PutEmployee(e employee.Employee) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employees[e.ID] = e
}

func (d *employeeDirectory) FindEmployeeByEmail(_ context.Context, email string) (employee.Employee, error) {
	d.store.mu.RLock()
	defer d.store.mu.RUnlock()

	for _, e := range d.store.employees {
		if strings.EqualFold(e.Email, email) {
			return e, nil
		}
	}
	return employee.Employee{}, employee.ErrEmployeeNotFound
}

func (d *employeeDirectory) FindEmployeeByID(_ context.Context, id string) (employee.Employee, error) {
	d.store.mu.RLock()
	defer d.store.mu.RUnlock()

	e, ok := d.store.employees[id]
	if !ok {
		return employee.Employee{}, employee.ErrEmployeeNotFound
	}
	return e, nil
}

func (d *employeeDirectory) FindDepartmentMembers(_ context.Context, departmentID string) ([]string, error) {
	d.store.mu.RLock()
	defer d.store.mu.RUnlock()

	ids := make([]string, 0)
	for _, e := range d.store.employees {
		if e.DepartmentID == departmentID && e.IsActive {
			ids = append(ids, e.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
