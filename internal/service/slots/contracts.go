package slots

import (
	"context"
	"time"

	"github.com/wsb-platform/booking-service/internal/domain"
)

// SlotRepository интерфейс хранилища материализованной сетки слотов
type SlotRepository interface {
	GetDay(ctx context.Context, equipmentID int64, dayStart, dayEnd time.Time) ([]*domain.TimeSlot, error)
	InsertGrid(ctx context.Context, slots []*domain.TimeSlot) error
	MarkRange(ctx context.Context, equipmentID int64, start, end time.Time, status domain.SlotStatus, bookingID *int64) (int64, error)
	FreeByBooking(ctx context.Context, bookingID int64, since time.Time) error
}

// BookingRepository интерфейс репозитория бронирований
type BookingRepository interface {
	GetDayBookings(ctx context.Context, equipmentID int64, dayStart, dayEnd time.Time) ([]*domain.Booking, error)
}

// EquipmentRepository интерфейс репозитория оборудования
type EquipmentRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Equipment, error)
}

// TransactionManager интерфейс для управления транзакциями
type TransactionManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
