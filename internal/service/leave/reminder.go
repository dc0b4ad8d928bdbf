package leave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/leave-engine/internal/domain/leave"
	"github.com/cmlabs-hris/leave-engine/internal/domain/notification"
	"github.com/cmlabs-hris/leave-engine/internal/pkg/lock"
)

// Locker serializes reminder runs across processes.
type Locker interface {
	Obtain(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, error)
}

type ReminderConfig struct {
	Location *time.Location // default: UTC
	LockTTL  time.Duration  // default: 10 minutes
}

type ReminderService struct {
	requests leave.LeaveRequestRepository
	notifier notification.Notifier
	locker   Locker
	events   leave.EventPublisher
	config   ReminderConfig
}

// NewReminderService builds the reminder job. locker and events may be nil.
func NewReminderService(requests leave.LeaveRequestRepository, notifier notification.Notifier, locker Locker, events leave.EventPublisher, cfg ReminderConfig) *ReminderService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.LockTTL == 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	return &ReminderService{
		requests: requests,
		notifier: notifier,
		locker:   locker,
		events:   events,
		config:   cfg,
	}
}

var _ leave.ReminderService = (*ReminderService)(nil)

// Window returns tomorrow as [midnight+1d, midnight+2d), where midnight is
// the start of now's calendar day in the configured location. Leave dates
// are stored as UTC calendar dates so the bounds are expressed the same way.
func (s *ReminderService) Window(now time.Time) (time.Time, time.Time) {
	local := now.In(s.config.Location)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	return midnight.AddDate(0, 0, 1), midnight.AddDate(0, 0, 2)
}

// Run sends one reminder per approved leave ending tomorrow. Requests are
// flagged only after the notifier confirms delivery, so failed sends are
// retried on the next run and repeated runs never send twice.
func (s *ReminderService) Run(ctx context.Context, now time.Time) (leave.ReminderRunResult, error) {
	from, to := s.Window(now)
	result := leave.ReminderRunResult{WindowStart: from, WindowEnd: to}

	if s.locker != nil {
		release, err := s.locker.Obtain(ctx, "reminders:"+from.Format("2006-01-02"), s.config.LockTTL)
		if errors.Is(err, lock.ErrNotObtained) {
			slog.InfoContext(ctx, "reminder run skipped, another run holds the lock")
			result.Skipped = true
			return result, nil
		}
		if err != nil {
			return result, err
		}
		defer func() { _ = release(context.WithoutCancel(ctx)) }()
	}

	candidates, err := s.requests.FindReminderCandidates(ctx, from, to)
	if err != nil {
		return result, fmt.Errorf("failed to find reminder candidates: %w", err)
	}
	result.Candidates = len(candidates)

	for _, req := range candidates {
		ok, err := s.notifier.SendLeaveReminder(ctx, notification.ReminderMessage{
			EmployeeName:  req.EmployeeName,
			EmployeeEmail: req.EmployeeEmail,
			LeaveType:     string(req.LeaveType),
			EndDate:       req.EndDate,
			TotalDays:     req.TotalDays,
		})
		if err != nil || !ok {
			result.Failed++
			slog.WarnContext(ctx, "leave reminder not delivered",
				"leave_request_id", req.ID, "error", errors.Join(leave.ErrNotificationFailure, err))
			continue
		}

		marked, err := s.requests.MarkReminderSent(ctx, req.ID, now)
		if err != nil {
			result.Failed++
			slog.ErrorContext(ctx, "failed to flag leave reminder", "leave_request_id", req.ID, "error", err)
			continue
		}
		if !marked {
			continue
		}
		result.Sent++

		sentAt := now
		req.ReminderSent = true
		req.ReminderSentAt = &sentAt
		if s.events != nil {
			s.events.Publish(ctx, leave.Event{
				ID:         newID(),
				Type:       leave.EventReminderSent,
				OccurredAt: now,
				Request:    &req,
			})
		}
	}

	slog.InfoContext(ctx, "leave reminder run finished",
		"window_start", from, "candidates", result.Candidates, "sent", result.Sent, "failed", result.Failed)
	return result, nil
}
