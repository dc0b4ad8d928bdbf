package audit

import (
	"context"
	"log/slog"

	"github.com/cmlabs-hris/leave-engine/internal/domain/leave"
)

// Subscriber writes one structured log record per domain event.
type Subscriber struct {
	logger *slog.Logger
}

func NewSubscriber(logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{logger: logger.With("component", "audit")}
}

func (s *Subscriber) Handle(ctx context.Context, event leave.Event) error {
	attrs := []any{
		slog.String("event_id", event.ID),
		slog.String("event_type", string(event.Type)),
		slog.Time("occurred_at", event.OccurredAt),
	}
	if event.ActorID != "" {
		attrs = append(attrs, slog.String("actor_id", event.ActorID))
	}
	if r := event.Request; r != nil {
		attrs = append(attrs, slog.Group("request",
			slog.String("id", r.ID),
			slog.String("employee_id", r.EmployeeID),
			slog.String("leave_type", string(r.LeaveType)),
			slog.String("status", string(r.Status)),
			slog.Int("total_days", r.TotalDays),
		))
	}
	if a := event.Account; a != nil {
		attrs = append(attrs, slog.Group("account",
			slog.String("key", a.Key().String()),
			slog.String("available", a.Available().String()),
		))
	}
	if !event.Delta.IsZero() {
		attrs = append(attrs, slog.String("delta", event.Delta.String()))
	}
	if event.Reason != "" {
		attrs = append(attrs, slog.String("reason", event.Reason))
	}

	s.logger.InfoContext(ctx, "Leave event", attrs...)
	return nil
}
