package get_day_slots

import (
	"context"
	"time"

	"github.com/wsb-platform/booking-service/internal/domain"
)

type SlotService interface {
	SlotsFor(ctx context.Context, equipmentID int64, day time.Time) ([]*domain.TimeSlot, error)
}

type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
