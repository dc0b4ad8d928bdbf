package notification

import "context"

// Notifier delivers leave notifications. A false result or an error means
// the message was not delivered; callers treat both as non-fatal.
type Notifier interface {
	SendLeaveReminder(ctx context.Context, msg ReminderMessage) (bool, error)
	SendApprovalNotification(ctx context.Context, msg ApprovalMessage) (bool, error)
}
