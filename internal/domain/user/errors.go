package user

import "errors"

var (
	ErrActorRequired           = errors.New("authenticated actor is required")
	ErrAdminPrivilegeRequired  = errors.New("admin privilege required")
	ErrInsufficientPermissions = errors.New("insufficient permissions")
	ErrInvalidRole             = errors.New("invalid role")
	ErrInvalidToken            = errors.New("invalid or expired token")
)
