package dispatcher

import (
	"context"
	"errors"
	"time"

	"github.com/wsb-platform/booking-service/internal/domain"
)

// ErrPermanent доставка невозможна и повторы бессмысленны: получатель
// заблокировал бота, адрес не существует. Адаптеры оборачивают такие
// ошибки в ErrPermanent, остальные считаются временными.
var ErrPermanent = errors.New("dispatcher: permanent delivery failure")

// Notification все данные, нужные адаптеру для отправки одного уведомления
type Notification struct {
	Booking   *domain.Booking
	User      *domain.User
	Equipment *domain.Equipment
	Event     domain.NotificationEvent

	// OfferExtension добавить к напоминанию об окончании предложение
	// продлить бронирование
	OfferExtension bool
	// ConfirmDeadline дедлайн подтверждения начала; заполнен для EventStart
	ConfirmDeadline time.Time
}

// Adapter доставка уведомления в один канал
type Adapter interface {
	Send(ctx context.Context, n *Notification) error
}

// ScheduleStore интерфейс хранилища расписания уведомлений
type ScheduleStore interface {
	ClaimDue(ctx context.Context, limit int, now time.Time) ([]*domain.ScheduleEntry, error)
	MarkDone(ctx context.Context, id int64, reason *string) error
	MarkFailed(ctx context.Context, id int64, lastError string) error
	Reschedule(ctx context.Context, id int64, runAt time.Time, lastError string) error
	ResetStuck(ctx context.Context, threshold time.Duration, now time.Time) (int64, error)
}

// BookingStore интерфейс репозитория бронирований
type BookingStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	GetConflicts(ctx context.Context, equipmentID int64, start, end time.Time, excludeID *int64) ([]domain.ConflictInfo, error)
	SetConfirmDeadline(ctx context.Context, id int64, deadline time.Time) error
	GetUnconfirmedExpired(ctx context.Context, now time.Time) ([]int64, error)
}

// UserStore интерфейс репозитория пользователей
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	Deactivate(ctx context.Context, id int64) error
}

// EquipmentStore интерфейс репозитория оборудования
type EquipmentStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Equipment, error)
}

// BookingCore операции ядра, которые диспетчер вызывает сам
type BookingCore interface {
	AutoCancel(ctx context.Context, bookingID int64) (bool, error)
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
