package bookings

import (
	"time"

	"github.com/wsb-platform/booking-service/internal/domain"
	"github.com/wsb-platform/booking-service/pkg/types"
)

// Config параметры бронирования из конфигурации сервиса
type Config struct {
	Location    *time.Location
	WorkStart   types.TimeString
	WorkEnd     types.TimeString
	Step        time.Duration
	MaxDuration time.Duration
}

// CreateRequest запрос на создание бронирования
type CreateRequest struct {
	UserID          int64
	EquipmentID     int64
	Date            time.Time
	StartTime       types.TimeString
	DurationMinutes int
	// SkipUserCheck отключает проверку активности пользователя;
	// используется доверенными системными вызовами
	SkipUserCheck bool
	SyncSlots     bool
}

// ActorRequest общие поля запросов на изменение от имени пользователя
type ActorRequest struct {
	ActorUserID int64
	IsAdmin     bool
	SyncSlots   bool
}

// ExtendRequest запрос на продление бронирования
type ExtendRequest struct {
	ActorRequest
	ExtensionMinutes int
}

// CancelResult результат отмены: бронирование и владелец, которого
// нужно уведомить при принудительной отмене администратором
type CancelResult struct {
	Booking     *domain.Booking
	OwnerUserID int64
}
