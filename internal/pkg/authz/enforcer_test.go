package authz

import (
	"testing"

	"github.com/cmlabs-hris/leave-engine/internal/domain/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnforcer_MatchesRolePermissions(t *testing.T) {
	e, err := NewEnforcer(user.RolePermissions)
	require.NoError(t, err)

	all := []user.Permission{
		user.PermissionLeaveCreate,
		user.PermissionLeaveViewOwn,
		user.PermissionLeaveViewAll,
		user.PermissionLeaveApprove,
		user.PermissionLeaveCancel,
		user.PermissionLeaveExport,
		user.PermissionLeaveStats,
		user.PermissionBalanceViewOwn,
		user.PermissionBalanceViewAll,
		user.PermissionBalanceManage,
		user.PermissionReminderRun,
	}
	for _, role := range []user.Role{user.RoleAdmin, user.RoleManager, user.RoleDepartmentHead, user.RoleStaff} {
		for _, p := range all {
			assert.Equal(t, user.HasPermission(role, p), e.Allowed(role, p), "%s %s", role, p)
		}
	}
}

func TestEnforcer_UnknownRoleDenied(t *testing.T) {
	e, err := NewEnforcer(user.RolePermissions)
	require.NoError(t, err)
	assert.False(t, e.Allowed(user.Role("owner"), user.PermissionLeaveCreate))
}

func TestSplitPermission(t *testing.T) {
	obj, act := splitPermission(user.PermissionBalanceViewAll)
	assert.Equal(t, "balance", obj)
	assert.Equal(t, "view_all", act)

	obj, act = splitPermission("audit")
	assert.Equal(t, "audit", obj)
	assert.Equal(t, "*", act)
}
