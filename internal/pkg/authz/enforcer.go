package authz

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/cmlabs-hris/leave-engine/internal/domain/user"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj && r.act == p.act
`

// Enforcer answers coarse role/permission checks. Department scoping and
// ownership stay in the domain policy.
type Enforcer struct {
	enforcer *casbin.Enforcer
	mu       sync.RWMutex
}

// NewEnforcer builds an in-memory casbin enforcer seeded from rolePermissions.
func NewEnforcer(rolePermissions map[user.Role][]user.Permission) (*Enforcer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("load rbac model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}

	count := 0
	for role, perms := range rolePermissions {
		for _, p := range perms {
			obj, act := splitPermission(p)
			if _, err := e.AddPolicy(string(role), obj, act); err != nil {
				return nil, fmt.Errorf("add policy %s %s: %w", role, p, err)
			}
			count++
		}
	}
	slog.Debug("rbac policies loaded", "policies", count)

	return &Enforcer{enforcer: e}, nil
}

// Allowed reports whether role holds permission. Enforcement errors deny.
func (e *Enforcer) Allowed(role user.Role, permission user.Permission) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	obj, act := splitPermission(permission)
	ok, err := e.enforcer.Enforce(string(role), obj, act)
	if err != nil {
		slog.Error("rbac enforce failed", "role", role, "permission", permission, "error", err)
		return false
	}
	return ok
}

// splitPermission turns "leave.approve" into ("leave", "approve").
func splitPermission(p user.Permission) (string, string) {
	s := string(p)
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return s[:i], s[i+1:]
		}
	}
	return s, "*"
}
