package http

import (
	"net/http"
	"time"

	"github.com/cmlabs-hris/leave-engine/internal/domain/leave"
	"github.com/cmlabs-hris/leave-engine/internal/handler/http/response"
)

type ReminderHandler interface {
	Run(w http.ResponseWriter, r *http.Request)
}

type ReminderHandlerImpl struct {
	reminderService leave.ReminderService
	now             func() time.Time
}

func NewReminderHandler(reminderService leave.ReminderService) ReminderHandler {
	return &ReminderHandlerImpl{reminderService: reminderService, now: time.Now}
}

// Run triggers one reminder sweep. Safe to call repeatedly.
func (h *ReminderHandlerImpl) Run(w http.ResponseWriter, r *http.Request) {
	result, err := h.reminderService.Run(r.Context(), h.now())
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}
