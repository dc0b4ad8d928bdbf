package user

type Permission string

const (
	// Leave requests
	PermissionLeaveCreate  Permission = "leave.create"
	PermissionLeaveViewOwn Permission = "leave.view_own"
	PermissionLeaveViewAll Permission = "leave.view_all"
	PermissionLeaveApprove Permission = "leave.approve"
	PermissionLeaveCancel  Permission = "leave.cancel"
	PermissionLeaveExport  Permission = "leave.export"
	PermissionLeaveStats   Permission = "leave.stats"

	// Balances
	PermissionBalanceViewOwn Permission = "balance.view_own"
	PermissionBalanceViewAll Permission = "balance.view_all"
	PermissionBalanceManage  Permission = "balance.manage"

	// Jobs
	PermissionReminderRun Permission = "reminder.run"
)

// RolePermissions maps roles to their permissions
var RolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermissionLeaveCreate,
		PermissionLeaveViewOwn,
		PermissionLeaveViewAll,
		PermissionLeaveApprove,
		PermissionLeaveCancel,
		PermissionLeaveExport,
		PermissionLeaveStats,
		PermissionBalanceViewOwn,
		PermissionBalanceViewAll,
		PermissionBalanceManage,
		PermissionReminderRun,
	},
	RoleManager: {
		PermissionLeaveCreate,
		PermissionLeaveViewOwn,
		PermissionLeaveViewAll,
		PermissionLeaveApprove,
		PermissionLeaveCancel,
		PermissionLeaveExport,
		PermissionLeaveStats,
		PermissionBalanceViewOwn,
		PermissionBalanceViewAll,
	},
	RoleDepartmentHead: {
		// Scoped to own department by the request-level policy
		PermissionLeaveCreate,
		PermissionLeaveViewOwn,
		PermissionLeaveViewAll,
		PermissionLeaveApprove,
		PermissionLeaveCancel,
		PermissionLeaveExport,
		PermissionLeaveStats,
		PermissionBalanceViewOwn,
	},
	RoleStaff: {
		PermissionLeaveCreate,
		PermissionLeaveViewOwn,
		PermissionLeaveCancel,
		PermissionLeaveStats,
		PermissionBalanceViewOwn,
	},
}

// HasPermission checks if a role has a specific permission
func HasPermission(role Role, permission Permission) bool {
	for _, p := range RolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}
