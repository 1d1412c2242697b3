package bookings

import (
	"context"
	"time"

	"github.com/wsb-platform/booking-service/internal/domain"
)

// BookingRepository интерфейс репозитория бронирований
type BookingRepository interface {
	Create(ctx context.Context, b *domain.Booking) (*domain.Booking, error)
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Booking, error)
	GetByUserID(ctx context.Context, userID int64) ([]*domain.Booking, error)
	GetConflicts(ctx context.Context, equipmentID int64, start, end time.Time, excludeID *int64) ([]domain.ConflictInfo, error)
	SetCancelled(ctx context.Context, id int64) error
	CancelUnconfirmed(ctx context.Context, id int64) (bool, error)
	SetFinished(ctx context.Context, id int64, at time.Time) error
	UpdateEnd(ctx context.Context, id int64, newEnd time.Time, interval string, durationHours float64, extensionMinutes int) error
	SetConfirmed(ctx context.Context, id int64, at time.Time) (bool, error)
}

// UserRepository интерфейс репозитория пользователей
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

// SlotSync поддержание материализованной сетки слотов в той же транзакции,
// что и мутация бронирования
type SlotSync interface {
	EnsureDay(ctx context.Context, equipmentID int64, day time.Time) error
	MarkBooked(ctx context.Context, b *domain.Booking) error
	FreeFrom(ctx context.Context, bookingID int64, since time.Time) error
}

// ScheduleRebuilder перестроение расписания уведомлений бронирования
type ScheduleRebuilder interface {
	RebuildForBooking(ctx context.Context, bookingID int64) (int, error)
	ClearForBooking(ctx context.Context, bookingID int64, channels []domain.NotificationChannel) error
}

// TransactionManager интерфейс для управления транзакциями
type TransactionManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
	DoSerializable(ctx context.Context, fn func(ctx context.Context) error) error
}

// Clock источник текущего времени. "Сейчас" читается один раз на входе
// каждой операции, чтобы не плыть внутри транзакции.
type Clock interface {
	Now() time.Time
}

// RealClock часы по настенному времени
type RealClock struct{}

// Now возвращает текущее время
func (RealClock) Now() time.Time {
	return time.Now()
}

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
