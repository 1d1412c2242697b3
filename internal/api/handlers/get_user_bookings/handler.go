package get_user_bookings

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wsb-platform/booking-service/internal/api/handlers"
	"github.com/wsb-platform/booking-service/internal/api/middleware"
	"github.com/wsb-platform/booking-service/internal/domain"
)

const (
	msgInvalidID     = "некорректный идентификатор пользователя"
	msgForbidden     = "чужие бронирования видны только администратору"
	msgInvalidStatus = "некорректный статус, допустимы planned/active/cancelled/finished"
)

type Handler struct {
	service BookingService
	logger  Logger
}

func NewHandler(service BookingService, logger Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Handle GET /api/v1/users/{userId}/bookings?status=
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		handlers.RespondError(w, http.StatusUnauthorized, "требуется аутентификация")
		return
	}

	userID, err := strconv.ParseInt(mux.Vars(r)["userId"], 10, 64)
	if err != nil {
		handlers.RespondBadRequest(w, msgInvalidID)
		return
	}

	if userID != actor.UserID && !actor.IsAdmin {
		h.logger.Warn("GET /users/{userId}/bookings - Forbidden: user_id=%d, actor_id=%d", userID, actor.UserID)
		handlers.RespondForbidden(w, msgForbidden)
		return
	}

	statusFilter := domain.BookingStatus(r.URL.Query().Get("status"))
	switch statusFilter {
	case "", domain.StatusPlanned, domain.StatusActive, domain.StatusCancelled, domain.StatusFinished:
	default:
		handlers.RespondBadRequest(w, msgInvalidStatus)
		return
	}

	list, err := h.service.GetUserBookings(r.Context(), userID)
	if err != nil {
		h.logger.Error("GET /users/{userId}/bookings - Failed to get bookings: user_id=%d, error=%v", userID, err)
		handlers.RespondInternalError(w)
		return
	}

	now := time.Now()
	result := make([]*handlers.BookingResponse, 0, len(list))
	for _, b := range list {
		if statusFilter != "" && b.Status(now) != statusFilter {
			continue
		}
		result = append(result, handlers.FromBooking(b, now))
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}
