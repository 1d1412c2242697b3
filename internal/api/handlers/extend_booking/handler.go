package extend_booking

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wsb-platform/booking-service/internal/api/handlers"
	"github.com/wsb-platform/booking-service/internal/api/middleware"
	"github.com/wsb-platform/booking-service/internal/service/bookings"
)

const (
	msgInvalidRequestBody = "некорректное тело запроса"
	msgInvalidID          = "некорректный идентификатор бронирования"
	msgNotFound           = "бронирование не найдено"
	msgForbidden          = "продление этого бронирования вам недоступно"
	msgAlreadyCancelled   = "бронирование уже отменено"
	msgAlreadyFinished    = "бронирование уже завершено"
	msgNotActive          = "продлить можно только идущее бронирование"
	msgInvalidDuration    = "продление должно быть положительным и кратным шагу"
	msgOutsideWorkday     = "продление выходит за рабочее окно дня"
	msgLimitExceeded      = "суммарная длительность превышает допустимый максимум"
	msgConflict           = "следующий слот уже занят"
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

// Handle PATCH /api/v1/bookings/{bookingId}/extend
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		handlers.RespondError(w, http.StatusUnauthorized, "требуется аутентификация")
		return
	}

	bookingID, err := strconv.ParseInt(mux.Vars(r)["bookingId"], 10, 64)
	if err != nil {
		handlers.RespondBadRequest(w, msgInvalidID)
		return
	}

	var req ExtendBookingRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		h.logger.Warn("PATCH /bookings/{id}/extend - Invalid request body: %v", err)
		handlers.RespondBadRequest(w, msgInvalidRequestBody)
		return
	}

	booking, err := h.service.Extend(r.Context(), bookingID, &bookings.ExtendRequest{
		ActorRequest: bookings.ActorRequest{
			ActorUserID: actor.UserID,
			IsAdmin:     actor.IsAdmin,
			SyncSlots:   true,
		},
		ExtensionMinutes: req.ExtensionMinutes,
	})
	if err != nil {
		var confErr *bookings.ConflictError

		switch {
		case errors.As(err, &confErr):
			h.logger.Warn("PATCH /bookings/{id}/extend - Tail busy: booking_id=%d", bookingID)
			handlers.RespondConflict(w, handlers.FromConflicts(msgConflict, confErr.Conflicts))

		case errors.Is(err, bookings.ErrNotFound):
			h.logger.Warn("PATCH /bookings/{id}/extend - Not found: booking_id=%d", bookingID)
			handlers.RespondNotFound(w, msgNotFound)

		case errors.Is(err, bookings.ErrForbidden):
			h.logger.Warn("PATCH /bookings/{id}/extend - Forbidden: booking_id=%d, user_id=%d", bookingID, actor.UserID)
			handlers.RespondForbidden(w, msgForbidden)

		case errors.Is(err, bookings.ErrAlreadyCancelled):
			h.logger.Warn("PATCH /bookings/{id}/extend - Already cancelled: booking_id=%d", bookingID)
			handlers.RespondError(w, http.StatusConflict, msgAlreadyCancelled)

		case errors.Is(err, bookings.ErrAlreadyFinished):
			h.logger.Warn("PATCH /bookings/{id}/extend - Already finished: booking_id=%d", bookingID)
			handlers.RespondError(w, http.StatusConflict, msgAlreadyFinished)

		case errors.Is(err, bookings.ErrNotActive):
			h.logger.Warn("PATCH /bookings/{id}/extend - Not active: booking_id=%d", bookingID)
			handlers.RespondError(w, http.StatusConflict, msgNotActive)

		case errors.Is(err, bookings.ErrInvalidDuration):
			h.logger.Warn("PATCH /bookings/{id}/extend - Invalid duration: booking_id=%d, minutes=%d", bookingID, req.ExtensionMinutes)
			handlers.RespondBadRequest(w, msgInvalidDuration)

		case errors.Is(err, bookings.ErrOutsideWorkday):
			h.logger.Warn("PATCH /bookings/{id}/extend - Outside workday: booking_id=%d", bookingID)
			handlers.RespondBadRequest(w, msgOutsideWorkday)

		case errors.Is(err, bookings.ErrLimitExceeded):
			h.logger.Warn("PATCH /bookings/{id}/extend - Limit exceeded: booking_id=%d", bookingID)
			handlers.RespondBadRequest(w, msgLimitExceeded)

		default:
			h.logger.Error("PATCH /bookings/{id}/extend - Failed to extend: booking_id=%d, error=%v", bookingID, err)
			handlers.RespondInternalError(w)
		}
		return
	}

	h.logger.Info("PATCH /bookings/{id}/extend - Booking extended: booking_id=%d, minutes=%d, interval=%s",
		bookingID, req.ExtensionMinutes, booking.TimeInterval)
	handlers.RespondJSON(w, http.StatusOK, handlers.FromBooking(booking, time.Now()))
}
