package create_booking

import (
	"errors"
	"net/http"
	"time"

	"github.com/wsb-platform/booking-service/internal/api/handlers"
	"github.com/wsb-platform/booking-service/internal/api/middleware"
	"github.com/wsb-platform/booking-service/internal/service/bookings"
)

const (
	msgInvalidRequestBody = "некорректное тело запроса"
	msgInvalidDate        = "некорректный формат даты, ожидается YYYY-MM-DD"
	msgInvalidDuration    = "длительность должна быть положительной и кратной шагу"
	msgOutsideWorkday     = "интервал выходит за рабочее окно дня"
	msgPastTime           = "время начала уже прошло"
	msgUserBlocked        = "пользователю запрещено бронирование"
	msgConflict           = "интервал пересекается с существующим бронированием"
	msgLimitExceeded      = "длительность превышает допустимый максимум"
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

// Handle POST /api/v1/bookings
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		handlers.RespondError(w, http.StatusUnauthorized, "требуется аутентификация")
		return
	}

	var req CreateBookingRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		h.logger.Warn("POST /bookings - Invalid request body: %v", err)
		handlers.RespondBadRequest(w, msgInvalidRequestBody)
		return
	}

	serviceReq, err := req.ToServiceRequest(actor.UserID)
	if err != nil {
		h.logger.Warn("POST /bookings - Failed to parse request: %v", err)
		handlers.RespondBadRequest(w, msgInvalidDate)
		return
	}

	booking, err := h.service.Create(r.Context(), serviceReq)
	if err != nil {
		var confErr *bookings.ConflictError

		switch {
		case errors.As(err, &confErr):
			h.logger.Warn("POST /bookings - Conflict: user_id=%d, equipment_id=%d, conflicts=%d",
				actor.UserID, req.EquipmentID, len(confErr.Conflicts))
			handlers.RespondConflict(w, handlers.FromConflicts(msgConflict, confErr.Conflicts))

		case errors.Is(err, bookings.ErrUserBlocked):
			h.logger.Warn("POST /bookings - User blocked: user_id=%d", actor.UserID)
			handlers.RespondForbidden(w, msgUserBlocked)

		case errors.Is(err, bookings.ErrLimitExceeded):
			h.logger.Warn("POST /bookings - Limit exceeded: user_id=%d, minutes=%d", actor.UserID, req.DurationMinutes)
			handlers.RespondBadRequest(w, msgLimitExceeded)

		case errors.Is(err, bookings.ErrInvalidDuration):
			h.logger.Warn("POST /bookings - Invalid duration: user_id=%d, minutes=%d", actor.UserID, req.DurationMinutes)
			handlers.RespondBadRequest(w, msgInvalidDuration)

		case errors.Is(err, bookings.ErrOutsideWorkday):
			h.logger.Warn("POST /bookings - Outside workday: user_id=%d, start=%s", actor.UserID, req.StartTime)
			handlers.RespondBadRequest(w, msgOutsideWorkday)

		case errors.Is(err, bookings.ErrPastTime):
			h.logger.Warn("POST /bookings - Past time: user_id=%d, start=%s", actor.UserID, req.StartTime)
			handlers.RespondBadRequest(w, msgPastTime)

		case errors.Is(err, bookings.ErrInvalidInput):
			h.logger.Warn("POST /bookings - Invalid input: user_id=%d: %v", actor.UserID, err)
			handlers.RespondBadRequest(w, msgInvalidRequestBody)

		default:
			h.logger.Error("POST /bookings - Failed to create booking: user_id=%d, error=%v", actor.UserID, err)
			handlers.RespondInternalError(w)
		}
		return
	}

	h.logger.Info("POST /bookings - Booking created: booking_id=%d, user_id=%d, equipment_id=%d",
		booking.ID, actor.UserID, req.EquipmentID)
	handlers.RespondJSON(w, http.StatusCreated, handlers.FromBooking(booking, time.Now()))
}
