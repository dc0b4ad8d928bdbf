package leave

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/leave-engine/internal/domain/employee"
	"github.com/cmlabs-hris/leave-engine/internal/domain/leave"
	"github.com/cmlabs-hris/leave-engine/internal/domain/user"
)

type QueryService struct {
	requests  leave.LeaveRequestRepository
	directory employee.Directory
}

func NewQueryService(requests leave.LeaveRequestRepository, directory employee.Directory) *QueryService {
	return &QueryService{requests: requests, directory: directory}
}

var _ leave.QueryService = (*QueryService)(nil)

func (s *QueryService) Get(ctx context.Context, actor user.Actor, id string) (leave.LeaveRequest, error) {
	if actor.IsZero() {
		return leave.LeaveRequest{}, user.ErrActorRequired
	}
	request, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return leave.LeaveRequest{}, err
	}
	if !user.CanView(actor, request.Resource()) {
		return leave.LeaveRequest{}, leave.ErrForbidden
	}
	return request, nil
}

func (s *QueryService) ListLeaves(ctx context.Context, actor user.Actor, filter leave.LeaveFilter) (leave.ListLeaveResponse, error) {
	if actor.IsZero() {
		return leave.ListLeaveResponse{}, user.ErrActorRequired
	}
	if err := filter.Normalize(); err != nil {
		return leave.ListLeaveResponse{}, err
	}
	filter.Scope = user.AccessScope(actor)

	items, total, err := s.requests.List(ctx, filter)
	if err != nil {
		return leave.ListLeaveResponse{}, fmt.Errorf("failed to list leave requests: %w", err)
	}

	totalPages := int((total + int64(filter.Limit) - 1) / int64(filter.Limit))
	showing := "0 results"
	if len(items) > 0 {
		from := filter.Offset() + 1
		showing = fmt.Sprintf("%d-%d of %d results", from, from+len(items)-1, total)
	}

	return leave.ListLeaveResponse{
		Items:      items,
		TotalCount: total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages,
		Showing:    showing,
	}, nil
}

// ExportLeaves walks every page of the filtered listing.
func (s *QueryService) ExportLeaves(ctx context.Context, actor user.Actor, filter leave.LeaveFilter) ([]leave.LeaveExportRow, error) {
	filter.Page = 1
	filter.Limit = leave.MaxPageLimit

	rows := make([]leave.LeaveExportRow, 0)
	for {
		page, err := s.ListLeaves(ctx, actor, filter)
		if err != nil {
			return nil, err
		}
		for _, r := range page.Items {
			rows = append(rows, leave.ToExportRow(r))
		}
		if len(page.Items) == 0 || int64(len(rows)) >= page.TotalCount {
			return rows, nil
		}
		filter.Page++
	}
}

// CalculateLeaveStats is best effort: any failure yields zeroed stats.
func (s *QueryService) CalculateLeaveStats(ctx context.Context, actor user.Actor, now time.Time) leave.LeaveStats {
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	q := leave.StatsQuery{
		MonthStart: monthStart,
		MonthEnd:   monthStart.AddDate(0, 1, 0),
		Today:      leave.DateOnly(now),
	}

	scope := user.AccessScope(actor)
	switch {
	case scope.All:
	case scope.DepartmentID != "":
		members, err := s.directory.FindDepartmentMembers(ctx, scope.DepartmentID)
		if err != nil {
			slog.WarnContext(ctx, "failed to load department members for stats",
				"department_id", scope.DepartmentID, "error", err)
			return leave.LeaveStats{}
		}
		q.EmployeeIDs = members
	default:
		q.EmployeeIDs = []string{scope.EmployeeID}
	}

	stats, err := s.requests.Stats(ctx, q)
	if err != nil {
		slog.WarnContext(ctx, "failed to calculate leave stats", "error", err)
		return leave.LeaveStats{}
	}
	return stats
}
