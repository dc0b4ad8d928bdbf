package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cmlabs-hris/leave-engine/internal/domain/leave"
	"github.com/cmlabs-hris/leave-engine/internal/handler/http/middleware"
	"github.com/cmlabs-hris/leave-engine/internal/handler/http/response"
	"github.com/cmlabs-hris/leave-engine/internal/pkg/validator"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type BalanceHandler interface {
	MyBalances(w http.ResponseWriter, r *http.Request)
	Check(w http.ResponseWriter, r *http.Request)
	Initialize(w http.ResponseWriter, r *http.Request)
	Adjust(w http.ResponseWriter, r *http.Request)
	CarryForward(w http.ResponseWriter, r *http.Request)
	History(w http.ResponseWriter, r *http.Request)
	Reconcile(w http.ResponseWriter, r *http.Request)
}

type BalanceHandlerImpl struct {
	balanceService leave.BalanceService
	now            func() time.Time
}

func NewBalanceHandler(balanceService leave.BalanceService) BalanceHandler {
	return &BalanceHandlerImpl{balanceService: balanceService, now: time.Now}
}

func (b *BalanceHandlerImpl) year(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("year")
	if raw == "" {
		return b.now().Year(), nil
	}
	y, err := strconv.Atoi(raw)
	if err != nil {
		var errs validator.ValidationErrors
		errs.Add("year", "year must be a number")
		return 0, errs
	}
	return y, nil
}

// MyBalances implements BalanceHandler.
func (b *BalanceHandlerImpl) MyBalances(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	year, err := b.year(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	accounts, err := b.balanceService.MyBalances(r.Context(), actor, year)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, accounts)
}

// Check implements BalanceHandler.
func (b *BalanceHandlerImpl) Check(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	year, err := b.year(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	days, err := decimal.NewFromString(r.URL.Query().Get("days"))
	if err != nil {
		var errs validator.ValidationErrors
		errs.Add("days", "days must be a number")
		response.HandleError(w, errs)
		return
	}

	check, err := b.balanceService.Check(r.Context(), actor, leave.LeaveType(r.URL.Query().Get("leave_type")), days, year)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, check)
}

// Initialize implements BalanceHandler.
func (b *BalanceHandlerImpl) Initialize(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var req leave.InitializeAccountsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Initialize decode error", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	accounts, err := b.balanceService.Initialize(r.Context(), actor, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Leave accounts initialized", accounts)
}

// Adjust implements BalanceHandler.
func (b *BalanceHandlerImpl) Adjust(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var req leave.AdjustBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("Adjust decode error", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	account, err := b.balanceService.Adjust(r.Context(), actor, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Leave balance adjusted successfully", account)
}

// CarryForward implements BalanceHandler.
func (b *BalanceHandlerImpl) CarryForward(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	var req leave.CarryForwardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Error("CarryForward decode error", "error", err)
		response.BadRequest(w, "Invalid request format", nil)
		return
	}

	account, err := b.balanceService.CarryForward(r.Context(), actor, req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Leave balance carried forward", account)
}

// accountKey reads /{employeeID}/{leaveType}/{year} route params.
func accountKey(r *http.Request) (leave.AccountKey, error) {
	var errs validator.ValidationErrors
	key := leave.AccountKey{
		EmployeeID: chi.URLParam(r, "employeeID"),
		LeaveType:  leave.LeaveType(chi.URLParam(r, "leaveType")),
	}
	if key.EmployeeID == "" {
		errs.Add("employee_id", "employee_id is required")
	}
	if !key.LeaveType.IsValid() {
		errs.Add("leave_type", "leave_type is not a known leave type")
	}
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		errs.Add("year", "year must be a number")
	}
	key.Year = year
	return key, errs.Err()
}

// History implements BalanceHandler.
func (b *BalanceHandlerImpl) History(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	key, err := accountKey(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	txs, err := b.balanceService.History(r.Context(), actor, key)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, txs)
}

// Reconcile implements BalanceHandler.
func (b *BalanceHandlerImpl) Reconcile(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Unauthorized")
		return
	}

	key, err := accountKey(r)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	result, err := b.balanceService.Reconcile(r.Context(), actor, key)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}
