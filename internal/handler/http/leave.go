package http

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cmlabs-hris/leave-engine/internal/domain/leave"
	"github.com/cmlabs-hris/leave-engine/internal/domain/user"
	"github.com/cmlabs-hris/leave-engine/internal/handler/http/middleware"
	"github.com/cmlabs-hris/leave-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/leave-engine/internal/pkg/validator"
	"github.com/go-chi/chi/v5"
)

type LeaveHandler interface {
	Submit(w http.ResponseWriter, r *http.Request)
	Approve(w http.ResponseWriter, r *http.Request)
	Reject(w http.ResponseWriter, r *http.Request)
	Cancel(w http.ResponseWriter, r *http.Request)

	Get(w http.ResponseWriter, r *http.Request)
	List(w http.ResponseWriter, r *http.Request)
	Export(w http.ResponseWriter, r *http.Request)
	Stats(w http.ResponseWriter, r *http.Request)
}

type LeaveHandlerImpl struct {
	leaveService leave.LeaveService
	queryService leave.QueryService
	now          func() time.Time
}

func NewLeaveHandler(leaveService leave.LeaveService, queryService leave.QueryService) LeaveHandler {
	return &LeaveHandlerImpl{
		leaveService: leaveService,
		queryService: queryService,
		now:          time.Now,
	}
}

// Submit implements LeaveHandler.
func (l *LeaveHandlerImpl) Submit(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var req leave.SubmitLeaveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Submit decode error", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	result, err := l.leaveService.Submit(r.Context(), actor, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	message := "Leave request submitted successfully"
	if result.Warning != "" {
		message = result.Warning
	}
	response.Created(w, message, result)
}

// Approve implements LeaveHandler.
func (l *LeaveHandlerImpl) Approve(w http.ResponseWriter, r *http.Request) {
	l.decide(w, r, "approved", l.leaveService.Approve)
}

// Reject implements LeaveHandler.
func (l *LeaveHandlerImpl) Reject(w http.ResponseWriter, r *http.Request) {
	l.decide(w, r, "rejected", l.leaveService.Reject)
}

type decideFunc func(ctx context.Context, actor user.Actor, id string, req leave.DecisionRequest) (leave.LeaveRequest, error)

func (l *LeaveHandlerImpl) decide(w http.ResponseWriter, r *http.Request, verb string, fn decideFunc) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Leave request ID is required", nil)
		return
	}

	var req leave.DecisionRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	updated, err := fn(r.Context(), actor, id, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, fmt.Sprintf("Leave request %s successfully", verb), updated)
}

// Cancel implements LeaveHandler.
func (l *LeaveHandlerImpl) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Leave request ID is required", nil)
		return
	}

	var req leave.CancelLeaveRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	updated, err := l.leaveService.Cancel(r.Context(), actor, id, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Leave request cancelled successfully", updated)
}

// Get implements LeaveHandler.
func (l *LeaveHandlerImpl) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Leave request ID is required", nil)
		return
	}

	req, err := l.queryService.Get(r.Context(), actor, id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, req)
}

// List implements LeaveHandler.
func (l *LeaveHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	filter, err := parseLeaveFilter(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := l.queryService.ListLeaves(r.Context(), actor, filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMeta(w, result, &response.Meta{
		Page:       result.Page,
		Limit:      result.Limit,
		TotalItems: result.TotalCount,
		TotalPages: result.TotalPages,
	})
}

var exportHeader = []string{
	"id", "employee_id", "employee_name", "employee_email", "department_id",
	"leave_type", "start_date", "end_date", "total_days", "status", "priority",
	"reason", "submission_date", "has_conflicts", "approved_by", "decision_date",
}

// Export implements LeaveHandler. ?format=csv streams a CSV attachment,
// anything else returns JSON rows.
func (l *LeaveHandlerImpl) Export(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	filter, err := parseLeaveFilter(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	rows, err := l.queryService.ExportLeaves(r.Context(), actor, filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	if r.URL.Query().Get("format") != "csv" {
		response.Success(w, rows)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="leaves-%s.csv"`, l.now().Format("20060102")))
	cw := csv.NewWriter(w)
	_ = cw.Write(exportHeader)
	for _, row := range rows {
		_ = cw.Write([]string{
			row.ID, row.EmployeeID, row.EmployeeName, row.EmployeeEmail, row.DepartmentID,
			string(row.LeaveType), row.StartDate, row.EndDate, strconv.Itoa(row.TotalDays),
			string(row.Status), string(row.Priority), row.Reason, row.SubmissionDate,
			strconv.FormatBool(row.HasConflicts), row.ApprovedBy, row.DecisionDate,
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		slog.ErrorContext(r.Context(), "Export write error", "error", err)
	}
}

// Stats implements LeaveHandler.
func (l *LeaveHandlerImpl) Stats(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	response.Success(w, l.queryService.CalculateLeaveStats(r.Context(), actor, l.now()))
}

func parseLeaveFilter(r *http.Request) (leave.LeaveFilter, error) {
	q := r.URL.Query()
	filter := leave.LeaveFilter{}
	var errs validator.ValidationErrors

	if status := q.Get("status"); status != "" {
		s := leave.Status(status)
		filter.Status = &s
	}
	if leaveType := q.Get("leave_type"); leaveType != "" {
		lt := leave.LeaveType(leaveType)
		filter.LeaveType = &lt
	}
	if departmentID := q.Get("department_id"); departmentID != "" {
		filter.DepartmentID = &departmentID
	}
	if employeeID := q.Get("employee_id"); employeeID != "" {
		filter.EmployeeID = &employeeID
	}
	if email := q.Get("employee_email"); email != "" {
		filter.EmployeeEmail = &email
	}

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"start_date", &filter.StartDate}, {"end_date", &filter.EndDate}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		t, ok := validator.IsValidDate(raw)
		if !ok {
			errs.Add(p.name, p.name+" must be YYYY-MM-DD")
			continue
		}
		*p.dst = &t
	}

	if pageStr := q.Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			filter.Page = p
		}
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			filter.Limit = l
		}
	}

	return filter, errs.Err()
}

// decodeOptionalBody accepts an empty body and writes a 400 on malformed JSON.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		slog.Error("Request decode error", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return false
	}
	return true
}
