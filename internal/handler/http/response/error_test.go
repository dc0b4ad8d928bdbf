package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cmlabs-hris/leave-engine/internal/domain/employee"
	"github.com/cmlabs-hris/leave-engine/internal/domain/leave"
	"github.com/cmlabs-hris/leave-engine/internal/domain/user"
	"github.com/cmlabs-hris/leave-engine/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"field validation", validator.ValidationErrors{{Field: "reason", Message: "reason is required"}}, http.StatusUnprocessableEntity, "VALIDATION_ERROR"},
		{"wrapped validation beats not found", fmt.Errorf("%w: %w", leave.ErrValidation, employee.ErrEmployeeNotFound), http.StatusBadRequest, "BAD_REQUEST"},
		{"actor required", user.ErrActorRequired, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"admin required", user.ErrAdminPrivilegeRequired, http.StatusForbidden, "FORBIDDEN"},
		{"forbidden", fmt.Errorf("approve: %w", leave.ErrForbidden), http.StatusForbidden, "FORBIDDEN"},
		{"request not found", leave.ErrLeaveRequestNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"employee not found", employee.ErrEmployeeNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"already resolved", leave.ErrAlreadyResolved, http.StatusConflict, "CONFLICT"},
		{"carry forward done", leave.ErrCarryForwardDone, http.StatusConflict, "CONFLICT"},
		{"invariant", leave.ErrInvariantViolation, http.StatusConflict, "CONFLICT"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HandleError(rec, tc.err)

			assert.Equal(t, tc.status, rec.Code)
			var body Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, tc.code, body.Error.Code)
		})
	}
}

func TestHandleError_ValidationDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleError(rec, validator.ValidationErrors{{Field: "end_date", Message: "end_date must not be before start_date"}})

	var body Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "end_date must not be before start_date", body.Error.Details["end_date"])
}
