package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/cmlabs-hris/leave-engine/internal/domain/employee"
	"github.com/cmlabs-hris/leave-engine/internal/domain/user"
	"gopkg.in/yaml.v3"
)

type directorySeed struct {
	Employees []struct {
		ID           string `yaml:"id"`
		UserID       string `yaml:"user_id"`
		Email        string `yaml:"email"`
		FullName     string `yaml:"full_name"`
		DepartmentID string `yaml:"department_id"`
		Role         string `yaml:"role"`
		Inactive     bool   `yaml:"inactive"`
	} `yaml:"employees"`
}

// LoadDirectorySeed reads employees for the memory storage backend.
func LoadDirectorySeed(path string) ([]employee.Employee, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory seed: %w", err)
	}
	return ParseDirectorySeed(data)
}

func ParseDirectorySeed(data []byte) ([]employee.Employee, error) {
	var seed directorySeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse directory seed: %w", err)
	}

	seen := make(map[string]bool, len(seed.Employees))
	out := make([]employee.Employee, 0, len(seed.Employees))
	for i, e := range seed.Employees {
		if strings.TrimSpace(e.ID) == "" || strings.TrimSpace(e.Email) == "" {
			return nil, fmt.Errorf("directory seed entry %d needs id and email", i)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("duplicate employee %q in directory seed", e.ID)
		}
		seen[e.ID] = true

		emp := employee.Employee{
			ID:           e.ID,
			Email:        e.Email,
			FullName:     e.FullName,
			DepartmentID: e.DepartmentID,
			Role:         user.ParseRole(e.Role),
			IsActive:     !e.Inactive,
		}
		if e.UserID != "" {
			userID := e.UserID
			emp.UserID = &userID
		}
		out = append(out, emp)
	}
	return out, nil
}
