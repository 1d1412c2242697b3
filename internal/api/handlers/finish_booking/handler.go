package finish_booking

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
	msgInvalidID        = "некорректный идентификатор бронирования"
	msgNotFound         = "бронирование не найдено"
	msgForbidden        = "завершение этого бронирования вам недоступно"
	msgAlreadyCancelled = "бронирование уже отменено"
	msgAlreadyFinished  = "бронирование уже завершено"
	msgNotActive        = "бронирование еще не началось"
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

// Handle PATCH /api/v1/bookings/{bookingId}/finish
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

	booking, err := h.service.Finish(r.Context(), bookingID, &bookings.ActorRequest{
		ActorUserID: actor.UserID,
		IsAdmin:     actor.IsAdmin,
		SyncSlots:   true,
	})
	if err != nil {
		switch {
		case errors.Is(err, bookings.ErrNotFound):
			h.logger.Warn("PATCH /bookings/{id}/finish - Not found: booking_id=%d", bookingID)
			handlers.RespondNotFound(w, msgNotFound)

		case errors.Is(err, bookings.ErrForbidden):
			h.logger.Warn("PATCH /bookings/{id}/finish - Forbidden: booking_id=%d, user_id=%d", bookingID, actor.UserID)
			handlers.RespondForbidden(w, msgForbidden)

		case errors.Is(err, bookings.ErrAlreadyCancelled):
			h.logger.Warn("PATCH /bookings/{id}/finish - Already cancelled: booking_id=%d", bookingID)
			handlers.RespondError(w, http.StatusConflict, msgAlreadyCancelled)

		case errors.Is(err, bookings.ErrAlreadyFinished):
			h.logger.Warn("PATCH /bookings/{id}/finish - Already finished: booking_id=%d", bookingID)
			handlers.RespondError(w, http.StatusConflict, msgAlreadyFinished)

		case errors.Is(err, bookings.ErrNotActive):
			h.logger.Warn("PATCH /bookings/{id}/finish - Not active: booking_id=%d", bookingID)
			handlers.RespondError(w, http.StatusConflict, msgNotActive)

		default:
			h.logger.Error("PATCH /bookings/{id}/finish - Failed to finish: booking_id=%d, error=%v", bookingID, err)
			handlers.RespondInternalError(w)
		}
		return
	}

	h.logger.Info("PATCH /bookings/{id}/finish - Booking finished: booking_id=%d, user_id=%d", bookingID, actor.UserID)
	handlers.RespondJSON(w, http.StatusOK, handlers.FromBooking(booking, time.Now()))
}
