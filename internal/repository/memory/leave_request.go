package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/cmlabs-hris/leave-engine/internal/domain/leave"
)

type leaveRequestRepository struct {
	store *Store
}

func NewLeaveRequestRepository(store *Store) leave.LeaveRequestRepository {
	return &leaveRequestRepository{store: store}
}

func (r *leaveRequestRepository) Create(ctx context.Context, req leave.LeaveRequest) error {
	return r.store.WithinTransaction(ctx, func(ctx context.Context) error {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()

		if _, exists := r.store.requests[req.ID]; exists {
			return fmt.Errorf("leave request %s already exists", req.ID)
		}
		r.store.requests[req.ID] = cloneRequest(req)
		return nil
	})
}

func (r *leaveRequestRepository) GetByID(_ context.Context, id string) (leave.LeaveRequest, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	req, ok := r.store.requests[id]
	if !ok {
		return leave.LeaveRequest{}, leave.ErrLeaveRequestNotFound
	}
	return cloneRequest(req), nil
}

// GetByIDForUpdate relies on the store serializing transactions.
func (r *leaveRequestRepository) GetByIDForUpdate(ctx context.Context, id string) (leave.LeaveRequest, error) {
	return r.GetByID(ctx, id)
}

func (r *leaveRequestRepository) Update(ctx context.Context, req leave.LeaveRequest) error {
	return r.store.WithinTransaction(ctx, func(ctx context.Context) error {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()

		if _, ok := r.store.requests[req.ID]; !ok {
			return leave.ErrLeaveRequestNotFound
		}
		r.store.requests[req.ID] = cloneRequest(req)
		return nil
	})
}

func (r *leaveRequestRepository) FindOverlapping(_ context.Context, departmentID string, start, end time.Time, excludeID string) ([]leave.LeaveRequest, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]leave.LeaveRequest, 0)
	for _, req := range r.store.requests {
		if req.ID == excludeID || !req.IsActive || req.DepartmentID != departmentID {
			continue
		}
		if req.Status != leave.StatusPending && req.Status != leave.StatusApproved {
			continue
		}
		if req.Overlaps(start, end) {
			out = append(out, cloneRequest(req))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func matchesFilter(req leave.LeaveRequest, f leave.LeaveFilter) bool {
	if !req.IsActive {
		return false
	}
	if !f.Scope.Allows(req.EmployeeID, req.DepartmentID) {
		return false
	}
	if f.Status != nil && req.Status != *f.Status {
		return false
	}
	if f.LeaveType != nil && req.LeaveType != *f.LeaveType {
		return false
	}
	if f.DepartmentID != nil && *f.DepartmentID != "" && req.DepartmentID != *f.DepartmentID {
		return false
	}
	if f.EmployeeID != nil && *f.EmployeeID != "" && req.EmployeeID != *f.EmployeeID {
		return false
	}
	if f.EmployeeEmail != nil && *f.EmployeeEmail != "" && !strings.EqualFold(req.EmployeeEmail, *f.EmployeeEmail) {
		return false
	}
	if f.StartDate != nil && req.EndDate.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && req.StartDate.After(*f.EndDate) {
		return false
	}
	return true
}

func (r *leaveRequestRepository) List(_ context.Context, filter leave.LeaveFilter) ([]leave.LeaveRequest, int64, error) {
	r.store.mu.RLock()
	matched := make([]leave.LeaveRequest, 0)
	for _, req := range r.store.requests {
		if matchesFilter(req, filter) {
			matched = append(matched, cloneRequest(req))
		}
	}
	r.store.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].SubmissionDate.Equal(matched[j].SubmissionDate) {
			return matched[i].SubmissionDate.After(matched[j].SubmissionDate)
		}
		return matched[i].ID < matched[j].ID
	})

	total := int64(len(matched))
	offset := filter.Offset()
	if offset >= len(matched) {
		return []leave.LeaveRequest{}, total, nil
	}
	end := offset + filter.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

func (r *leaveRequestRepository) FindReminderCandidates(_ context.Context, from, to time.Time) ([]leave.LeaveRequest, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make([]leave.LeaveRequest, 0)
	for _, req := range r.store.requests {
		if req.Status != leave.StatusApproved || !req.IsActive || req.ReminderSent {
			continue
		}
		if !req.EndDate.Before(from) && req.EndDate.Before(to) {
			out = append(out, cloneRequest(req))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *leaveRequestRepository) MarkReminderSent(ctx context.Context, id string, at time.Time) (bool, error) {
	marked := false
	err := r.store.WithinTransaction(ctx, func(ctx context.Context) error {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()

		req, ok := r.store.requests[id]
		if !ok {
			return leave.ErrLeaveRequestNotFound
		}
		if req.ReminderSent {
			return nil
		}
		req = cloneRequest(req)
		req.ReminderSent = true
		req.ReminderSentAt = &at
		r.store.requests[id] = req
		marked = true
		return nil
	})
	return marked, err
}

func (r *leaveRequestRepository) Stats(_ context.Context, q leave.StatsQuery) (leave.LeaveStats, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	inMonth := func(t *time.Time) bool {
		return t != nil && !t.Before(q.MonthStart) && t.Before(q.MonthEnd)
	}

	var s leave.LeaveStats
	for _, req := range r.store.requests {
		if !req.IsActive {
			continue
		}
		if q.EmployeeIDs != nil && !slices.Contains(q.EmployeeIDs, req.EmployeeID) {
			continue
		}
		s.TotalApplications++
		switch req.Status {
		case leave.StatusPending:
			s.PendingApprovals++
		case leave.StatusApproved:
			if inMonth(req.DecidedAt) {
				s.ApprovedThisMonth++
			}
			if req.StartDate.After(q.Today) {
				s.UpcomingLeaves++
			} else if !req.EndDate.Before(q.Today) {
				s.OnLeaveToday++
			}
		case leave.StatusRejected:
			if inMonth(req.DecidedAt) {
				s.RejectedThisMonth++
			}
		}
	}
	return s, nil
}

// PutRequest overwrites a request. Used to seed fixtures.
func (s *Store) PutRequest(req leave.LeaveRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[req.ID] = cloneRequest(req)
}
