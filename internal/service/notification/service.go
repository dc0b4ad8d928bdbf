package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cmlabs-hris/leave-engine/internal/domain/leave"
	"github.com/cmlabs-hris/leave-engine/internal/domain/notification"
	"github.com/cmlabs-hris/leave-engine/internal/pkg/email"
)

const (
	reminderTemplate = "leave_reminder.html"
	decisionTemplate = "leave_decision.html"
)

type emailNotifier struct {
	renderer  *email.Renderer
	transport email.Transport
}

// NewEmailNotifier renders leave notifications and hands them to transport.
func NewEmailNotifier(renderer *email.Renderer, transport email.Transport) notification.Notifier {
	return &emailNotifier{renderer: renderer, transport: transport}
}

func (n *emailNotifier) SendLeaveReminder(ctx context.Context, msg notification.ReminderMessage) (bool, error) {
	subject := fmt.Sprintf("Reminder: your %s leave ends on %s", msg.LeaveType, msg.EndDate.Format("2 Jan 2006"))
	return n.send(ctx, msg.EmployeeEmail, msg.EmployeeName, subject, reminderTemplate, msg)
}

func (n *emailNotifier) SendApprovalNotification(ctx context.Context, msg notification.ApprovalMessage) (bool, error) {
	subject := fmt.Sprintf("Your %s leave request was %s", msg.LeaveType, msg.Status)
	return n.send(ctx, msg.EmployeeEmail, msg.EmployeeName, subject, decisionTemplate, msg)
}

func (n *emailNotifier) send(ctx context.Context, to, name, subject, tmpl string, data any) (bool, error) {
	if strings.TrimSpace(to) == "" {
		return false, notification.ErrRecipientRequired
	}

	body, err := n.renderer.Render(tmpl, data)
	if err != nil {
		return false, err
	}

	err = n.transport.Send(ctx, email.Message{To: to, ToName: name, Subject: subject, HTML: body})
	if errors.Is(err, email.ErrNotConfigured) {
		return false, fmt.Errorf("%w: %w", notification.ErrTransportDisabled, err)
	}
	if err != nil {
		return false, err
	}

	slog.DebugContext(ctx, "Notification sent", "template", tmpl, "to", to)
	return true, nil
}

// DecisionSubscriber emails the employee when their request is approved or
// rejected. Delivery failures are logged and never surface to the decision.
type DecisionSubscriber struct {
	notifier notification.Notifier
}

func NewDecisionSubscriber(notifier notification.Notifier) *DecisionSubscriber {
	return &DecisionSubscriber{notifier: notifier}
}

func (s *DecisionSubscriber) Handle(ctx context.Context, event leave.Event) error {
	if event.Type != leave.EventLeaveApproved && event.Type != leave.EventLeaveRejected {
		return nil
	}
	if event.Request == nil {
		return nil
	}

	req := event.Request
	sent, err := s.notifier.SendApprovalNotification(ctx, notification.ApprovalMessage{
		EmployeeEmail: req.EmployeeEmail,
		EmployeeName:  req.EmployeeName,
		LeaveType:     string(req.LeaveType),
		Status:        string(req.Status),
		Comments:      event.Comments,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
	})
	if err != nil || !sent {
		slog.WarnContext(ctx, "Decision notification not delivered",
			"leave_request_id", req.ID,
			"status", req.Status,
			"error", err,
		)
	}
	return nil
}
