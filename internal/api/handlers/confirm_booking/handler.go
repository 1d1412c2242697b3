package confirm_booking

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wsb-platform/booking-service/internal/api/handlers"
	"github.com/wsb-platform/booking-service/internal/api/middleware"
	"github.com/wsb-platform/booking-service/internal/service/bookings"
)

const (
	msgInvalidID        = "некорректный идентификатор бронирования"
	msgNotFound         = "бронирование не найдено"
	msgForbidden        = "подтверждение этого бронирования вам недоступно"
	msgAlreadyCancelled = "бронирование уже отменено"
	msgAlreadyFinished  = "бронирование уже завершено"
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

// Handle POST /api/v1/bookings/{bookingId}/confirm
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

	if err := h.service.Confirm(r.Context(), bookingID, actor.UserID, actor.IsAdmin); err != nil {
		switch {
		case errors.Is(err, bookings.ErrNotFound):
			h.logger.Warn("POST /bookings/{bookingId}/confirm - Not found: booking_id=%d", bookingID)
			handlers.RespondNotFound(w, msgNotFound)

		case errors.Is(err, bookings.ErrForbidden):
			h.logger.Warn("POST /bookings/{bookingId}/confirm - Forbidden: booking_id=%d, user_id=%d", bookingID, actor.UserID)
			handlers.RespondForbidden(w, msgForbidden)

		case errors.Is(err, bookings.ErrAlreadyCancelled):
			// пользователь не успел: авто-отмена победила гонку
			h.logger.Warn("POST /bookings/{bookingId}/confirm - Already cancelled: booking_id=%d", bookingID)
			handlers.RespondError(w, http.StatusConflict, msgAlreadyCancelled)

		case errors.Is(err, bookings.ErrAlreadyFinished):
			h.logger.Warn("POST /bookings/{bookingId}/confirm - Already finished: booking_id=%d", bookingID)
			handlers.RespondError(w, http.StatusConflict, msgAlreadyFinished)

		default:
			h.logger.Error("POST /bookings/{bookingId}/confirm - Failed to confirm: booking_id=%d, error=%v", bookingID, err)
			handlers.RespondInternalError(w)
		}
		return
	}

	h.logger.Info("POST /bookings/{bookingId}/confirm - Start confirmed: booking_id=%d, user_id=%d", bookingID, actor.UserID)
	handlers.RespondJSON(w, http.StatusNoContent, nil)
}
