package leave

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventLeaveSubmitted  EventType = "leave.submitted"
	EventLeaveApproved   EventType = "leave.approved"
	EventLeaveRejected   EventType = "leave.rejected"
	EventLeaveCancelled  EventType = "leave.cancelled"
	EventBalanceAdjusted EventType = "balance.adjusted"
	EventReminderSent    EventType = "leave.reminder_sent"
)

// Event is a domain event emitted after the originating transaction commits.
type Event struct {
	ID         string          `json:"id"`
	Type       EventType       `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	ActorID    string          `json:"actor_id,omitempty"`
	Request    *LeaveRequest   `json:"request,omitempty"`
	Account    *LeaveAccount   `json:"account,omitempty"`
	Delta      decimal.Decimal `json:"delta,omitempty"`
	Reason     string          `json:"reason,omitempty"`
	Comments   *string         `json:"comments,omitempty"`
}

// Key groups events of one aggregate for ordered delivery.
func (e Event) Key() string {
	switch {
	case e.Request != nil:
		return e.Request.ID
	case e.Account != nil:
		return e.Account.Key().String()
	}
	return e.ID
}

type EventPublisher interface {
	Publish(ctx context.Context, event Event)
}

type EventHandler interface {
	Handle(ctx context.Context, event Event) error
}

type EventHandlerFunc func(ctx context.Context, event Event) error

func (f EventHandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}
