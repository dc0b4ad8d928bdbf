package leave

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/leave-engine/internal/domain/leave"
)

// ConflictDetector flags overlapping leave within a department. Conflicts
// are advisory and never block a submission.
type ConflictDetector struct {
	requests leave.LeaveRequestRepository
}

func NewConflictDetector(requests leave.LeaveRequestRepository) *ConflictDetector {
	return &ConflictDetector{requests: requests}
}

func describeConflict(r leave.LeaveRequest) string {
	name := r.EmployeeName
	if name == "" {
		name = r.EmployeeID
	}
	return fmt.Sprintf("overlaps %s %s leave %s (%s to %s)",
		name, r.LeaveType, r.ID, r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02"))
}

// Detect annotates req with every overlapping request and back-annotates
// each of them with req. It must run inside the submission transaction.
func (d *ConflictDetector) Detect(ctx context.Context, req *leave.LeaveRequest) ([]leave.LeaveRequest, error) {
	if req.DepartmentID == "" {
		return nil, nil
	}

	overlapping, err := d.requests.FindOverlapping(ctx, req.DepartmentID, req.StartDate, req.EndDate, req.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to find overlapping leave requests: %w", err)
	}

	for i := range overlapping {
		other := &overlapping[i]
		req.AddConflict(describeConflict(*other))

		before := len(other.ConflictDetails)
		other.AddConflict(describeConflict(*req))
		if len(other.ConflictDetails) == before {
			continue
		}
		other.LastModified = req.SubmissionDate
		if err := d.requests.Update(ctx, *other); err != nil {
			return nil, fmt.Errorf("failed to annotate leave request %s: %w", other.ID, err)
		}
	}
	return overlapping, nil
}
