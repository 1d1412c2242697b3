package get_booking

import (
	"context"

	"github.com/wsb-platform/booking-service/internal/domain"
)

type BookingService interface {
	GetByID(ctx context.Context, bookingID, actorUserID int64, isAdmin bool) (*domain.Booking, error)
}

type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
