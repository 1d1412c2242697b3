package cancel_booking

import (
	"context"

	"github.com/wsb-platform/booking-service/internal/domain"
	"github.com/wsb-platform/booking-service/internal/service/bookings"
)

type BookingService interface {
	Cancel(ctx context.Context, bookingID int64, req *bookings.ActorRequest) (*bookings.CancelResult, error)
}

// CancelNotifier сообщает владельцу об отмене его бронирования администратором
type CancelNotifier interface {
	NotifyCancelled(ctx context.Context, b *domain.Booking) error
}

type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
