package notification_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cmlabs-hris/leave-engine/internal/domain/leave"
	"github.com/cmlabs-hris/leave-engine/internal/domain/notification"
	"github.com/cmlabs-hris/leave-engine/internal/pkg/email"
	notificationsvc "github.com/cmlabs-hris/leave-engine/internal/service/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) Send(ctx context.Context, msg email.Message) error {
	return m.Called(ctx, msg).Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendLeaveReminder(ctx context.Context, msg notification.ReminderMessage) (bool, error) {
	args := m.Called(ctx, msg)
	return args.Bool(0), args.Error(1)
}

func (m *mockNotifier) SendApprovalNotification(ctx context.Context, msg notification.ApprovalMessage) (bool, error) {
	args := m.Called(ctx, msg)
	return args.Bool(0), args.Error(1)
}

func newRenderer(t *testing.T) *email.Renderer {
	t.Helper()
	r, err := email.NewRenderer()
	require.NoError(t, err)
	return r
}

func TestEmailNotifier_SendLeaveReminder(t *testing.T) {
	transport := &mockTransport{}
	transport.On("Send", mock.Anything, mock.MatchedBy(func(m email.Message) bool {
		return m.To == "alice@example.com" &&
			m.Subject == "Reminder: your annual leave ends on 11 Mar 2025" &&
			m.HTML != ""
	})).Return(nil).Once()

	n := notificationsvc.NewEmailNotifier(newRenderer(t), transport)
	sent, err := n.SendLeaveReminder(context.Background(), notification.ReminderMessage{
		EmployeeName:  "Alice",
		EmployeeEmail: "alice@example.com",
		LeaveType:     "annual",
		EndDate:       time.Date(2025, time.March, 11, 0, 0, 0, 0, time.UTC),
		TotalDays:     2,
	})
	require.NoError(t, err)
	assert.True(t, sent)
	transport.AssertExpectations(t)
}

func TestEmailNotifier_Failures(t *testing.T) {
	transport := &mockTransport{}
	n := notificationsvc.NewEmailNotifier(newRenderer(t), transport)

	sent, err := n.SendLeaveReminder(context.Background(), notification.ReminderMessage{})
	assert.False(t, sent)
	assert.ErrorIs(t, err, notification.ErrRecipientRequired)

	transport.On("Send", mock.Anything, mock.Anything).Return(email.ErrNotConfigured).Once()
	sent, err = n.SendApprovalNotification(context.Background(), notification.ApprovalMessage{EmployeeEmail: "bob@example.com", Status: "approved"})
	assert.False(t, sent)
	assert.ErrorIs(t, err, notification.ErrTransportDisabled)

	transport.On("Send", mock.Anything, mock.Anything).Return(errors.New("connection refused")).Once()
	sent, err = n.SendApprovalNotification(context.Background(), notification.ApprovalMessage{EmployeeEmail: "bob@example.com", Status: "rejected"})
	assert.False(t, sent)
	assert.Error(t, err)
}

func TestDecisionSubscriber(t *testing.T) {
	notifier := &mockNotifier{}
	sub := notificationsvc.NewDecisionSubscriber(notifier)
	comments := "enjoy"
	req := &leave.LeaveRequest{
		ID:            "lr-1",
		EmployeeEmail: "alice@example.com",
		EmployeeName:  "Alice",
		LeaveType:     leave.LeaveTypeAnnual,
		Status:        leave.StatusApproved,
	}

	notifier.On("SendApprovalNotification", mock.Anything, mock.MatchedBy(func(m notification.ApprovalMessage) bool {
		return m.Status == "approved" && m.Comments != nil && *m.Comments == comments
	})).Return(false, errors.New("smtp down")).Once()

	// Delivery failure is swallowed.
	err := sub.Handle(context.Background(), leave.Event{Type: leave.EventLeaveApproved, Request: req, Comments: &comments})
	assert.NoError(t, err)

	err = sub.Handle(context.Background(), leave.Event{Type: leave.EventLeaveSubmitted, Request: req})
	assert.NoError(t, err)

	notifier.AssertExpectations(t)
	notifier.AssertNumberOfCalls(t, "SendApprovalNotification", 1)
}
