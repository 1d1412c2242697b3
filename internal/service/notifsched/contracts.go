package notifsched

import (
	"context"
	"time"

	"github.com/wsb-platform/booking-service/internal/domain"
)

// BookingRepository интерфейс репозитория бронирований
type BookingRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	GetLive(ctx context.Context, now time.Time) ([]*domain.Booking, error)
}

// UserRepository интерфейс репозитория пользователей
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
}

// ScheduleRepository интерфейс хранилища расписания уведомлений
type ScheduleRepository interface {
	DeleteForBooking(ctx context.Context, bookingID int64, channels []domain.NotificationChannel) (int64, error)
	Insert(ctx context.Context, entries []*domain.ScheduleEntry) error
	Truncate(ctx context.Context) error
}

// TransactionManager интерфейс для управления транзакциями
type TransactionManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Clock источник текущего времени
type Clock interface {
	Now() time.Time
}

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
