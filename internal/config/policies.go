package config

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/cmlabs-hris/leave-engine/internal/domain/leave"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed leave_policies.yaml
var defaultPolicies []byte

type policyFile struct {
	Policies []policyEntry `yaml:"policies"`
}

type policyEntry struct {
	LeaveType         string  `yaml:"leave_type"`
	DefaultAllocation float64 `yaml:"default_allocation"`
	IsActive          bool    `yaml:"is_active"`
	AllowCarryForward bool    `yaml:"allow_carry_forward"`
	MaxCarryForward   float64 `yaml:"max_carry_forward"`
}

// LoadPolicies reads leave policies from File, or the embedded defaults
// when no file is configured.
func (c PoliciesConfig) LoadPolicies() ([]leave.LeavePolicy, error) {
	data := defaultPolicies
	if c.File != "" {
		var err error
		data, err = os.ReadFile(c.File)
		if err != nil {
			return nil, fmt.Errorf("failed to read leave policies: %w", err)
		}
	}
	return ParsePolicies(data)
}

func ParsePolicies(data []byte) ([]leave.LeavePolicy, error) {
	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse leave policies: %w", err)
	}

	seen := make(map[leave.LeaveType]bool, len(file.Policies))
	policies := make([]leave.LeavePolicy, 0, len(file.Policies))
	for _, p := range file.Policies {
		lt := leave.LeaveType(p.LeaveType)
		if !lt.IsValid() {
			return nil, fmt.Errorf("unknown leave type %q in leave policies", p.LeaveType)
		}
		if seen[lt] {
			return nil, fmt.Errorf("duplicate leave policy for %q", lt)
		}
		if p.DefaultAllocation < 0 || p.MaxCarryForward < 0 {
			return nil, fmt.Errorf("leave policy for %q has a negative amount", lt)
		}
		seen[lt] = true

		policies = append(policies, leave.LeavePolicy{
			LeaveType:         lt,
			DefaultAllocation: decimal.NewFromFloat(p.DefaultAllocation),
			IsActive:          p.IsActive,
			AllowCarryForward: p.AllowCarryForward,
			MaxCarryForward:   decimal.NewFromFloat(p.MaxCarryForward),
		})
	}
	return policies, nil
}
