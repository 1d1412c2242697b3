package confirm_booking

import "context"

type BookingService interface {
	Confirm(ctx context.Context, bookingID, actorUserID int64, isAdmin bool) error
}

type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
