package extend_booking

import (
	"context"

	"github.com/wsb-platform/booking-service/internal/domain"
	"github.com/wsb-platform/booking-service/internal/service/bookings"
)

type BookingService interface {
	Extend(ctx context.Context, bookingID int64, req *bookings.ExtendRequest) (*domain.Booking, error)
}

type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
