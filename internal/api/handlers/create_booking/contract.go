package create_booking

import (
	"context"

	"github.com/wsb-platform/booking-service/internal/domain"
	"github.com/wsb-platform/booking-service/internal/service/bookings"
)

type BookingService interface {
	Create(ctx context.Context, req *bookings.CreateRequest) (*domain.Booking, error)
}

type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
