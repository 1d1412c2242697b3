package cancel_booking

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
	msgForbidden        = "отмена этого бронирования вам недоступна"
	msgAlreadyCancelled = "бронирование уже отменено"
	msgAlreadyFinished  = "бронирование уже завершено"
)

type Handler struct {
	service  BookingService
	notifier CancelNotifier
	logger   Logger
}

func NewHandler(service BookingService, notifier CancelNotifier, logger Logger) *Handler {
	return &Handler{
		service:  service,
		notifier: notifier,
		logger:   logger,
	}
}

// Handle PATCH /api/v1/bookings/{bookingId}/cancel
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

	result, err := h.service.Cancel(r.Context(), bookingID, &bookings.ActorRequest{
		ActorUserID: actor.UserID,
		IsAdmin:     actor.IsAdmin,
		SyncSlots:   true,
	})
	if err != nil {
		switch {
		case errors.Is(err, bookings.ErrNotFound):
			h.logger.Warn("PATCH /bookings/{id}/cancel - Not found: booking_id=%d", bookingID)
			handlers.RespondNotFound(w, msgNotFound)

		case errors.Is(err, bookings.ErrForbidden):
			h.logger.Warn("PATCH /bookings/{id}/cancel - Forbidden: booking_id=%d, user_id=%d", bookingID, actor.UserID)
			handlers.RespondForbidden(w, msgForbidden)

		case errors.Is(err, bookings.ErrAlreadyCancelled):
			h.logger.Warn("PATCH /bookings/{id}/cancel - Already cancelled: booking_id=%d", bookingID)
			handlers.RespondError(w, http.StatusConflict, msgAlreadyCancelled)

		case errors.Is(err, bookings.ErrAlreadyFinished):
			h.logger.Warn("PATCH /bookings/{id}/cancel - Already finished: booking_id=%d", bookingID)
			handlers.RespondError(w, http.StatusConflict, msgAlreadyFinished)

		default:
			h.logger.Error("PATCH /bookings/{id}/cancel - Failed to cancel: booking_id=%d, error=%v", bookingID, err)
			handlers.RespondInternalError(w)
		}
		return
	}

	h.logger.Info("PATCH /bookings/{id}/cancel - Booking cancelled: booking_id=%d, user_id=%d, owner_id=%d",
		bookingID, actor.UserID, result.OwnerUserID)

	// владелец узнает о чужой отмене; сбой доставки отмену не откатывает
	if actor.IsAdmin && result.OwnerUserID != actor.UserID {
		if nerr := h.notifier.NotifyCancelled(r.Context(), result.Booking); nerr != nil {
			h.logger.Warn("PATCH /bookings/{id}/cancel - Failed to notify owner: booking_id=%d, owner_id=%d, error=%v",
				bookingID, result.OwnerUserID, nerr)
		}
	}

	handlers.RespondJSON(w, http.StatusOK, handlers.FromBooking(result.Booking, time.Now()))
}
